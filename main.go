package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/df07/go-view-analysis/pkg/config"
	"github.com/df07/go-view-analysis/pkg/geometry"
	"github.com/df07/go-view-analysis/pkg/loaders"
	"github.com/df07/go-view-analysis/pkg/obstacle"
	"github.com/df07/go-view-analysis/pkg/viewanalysis"
)

const defaultConfigPath = "configs/analysis.yaml"

// options holds command line overrides
type options struct {
	configPath string
	plyPath    string
	outPath    string
}

// report is the JSON document written for a run
type report struct {
	GeneratedAt time.Time                   `json:"generatedAt"`
	Bunch       viewanalysis.BunchParams    `json:"bunch"`
	MaxDistance float64                     `json:"maxDistance"`
	Triangles   int                         `json:"triangles"`
	Results     []viewanalysis.SampleResult `json:"results"`
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "Analysis config file (YAML)")
	plyPath := flag.String("ply", "", "Obstacle mesh PLY file, overrides the config obstacle")
	outPath := flag.String("out", "", "Output JSON file (default output/analysis_<timestamp>.json)")
	help := flag.Bool("help", false, "Show help information")
	flag.Parse()

	if *help {
		fmt.Println("View Analysis")
		fmt.Println("Usage: view-analysis [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		fmt.Println()
		fmt.Println("For every sample point a cone of view rays is cast around its normal and the")
		fmt.Println("clear distance to the obstacle mesh is recorded for each ray.")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, options{configPath: *configPath, plyPath: *plyPath, outPath: *outPath}); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.LoadAnalysis(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.plyPath != "" {
		cfg.Obstacle.PLY = opts.plyPath
		cfg.Obstacle.Scene.Blocks = nil
		cfg.Obstacle.Scene.Towers = nil
	}
	if opts.outPath != "" {
		cfg.Output = opts.outPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))
	logger := slog.Default()
	logger.Info("view analysis starting", "config", opts.configPath)

	surface, err := buildSurface(cfg, logger)
	if err != nil {
		return fmt.Errorf("building obstacle: %w", err)
	}
	logger.Info("obstacle ready",
		"triangles", surface.TriangleCount(),
		"degenerate", surface.DegenerateCount())

	samples, err := loadSamples(cfg, logger)
	if err != nil {
		return fmt.Errorf("loading samples: %w", err)
	}

	analyzer, err := viewanalysis.NewAnalyzer(cfg.AnalyzerConfig(), logger)
	if err != nil {
		return fmt.Errorf("creating analyzer: %w", err)
	}
	results, err := analyzer.Analyze(ctx, samples, surface)
	if err != nil {
		return fmt.Errorf("analysing: %w", err)
	}

	filename, err := writeReport(cfg.Output, report{
		GeneratedAt: time.Now().UTC(),
		Bunch:       cfg.Bunch,
		MaxDistance: cfg.MaxDistance,
		Triangles:   surface.TriangleCount(),
		Results:     results,
	})
	if err != nil {
		return fmt.Errorf("writing results: %w", err)
	}

	logger.Info("results saved", "file", filename, "samples", len(results))
	return nil
}

// buildSurface loads the PLY obstacle or tessellates the configured primitives
func buildSurface(cfg config.Analysis, logger *slog.Logger) (*geometry.TriangleMesh, error) {
	if cfg.Obstacle.PLY == "" {
		return obstacle.Build(cfg.Obstacle.Scene, logger)
	}

	data, err := loaders.LoadPLY(cfg.Obstacle.PLY, logger)
	if err != nil {
		return nil, err
	}
	rotation := loaders.DegreesToRadians(cfg.Obstacle.Rotation)
	translation := cfg.Obstacle.Translation
	mesh, err := data.Mesh(&geometry.TriangleMeshOptions{
		Rotation:    &rotation,
		Translation: &translation,
	})
	if err != nil {
		return nil, err
	}
	if err := mesh.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Obstacle.PLY, err)
	}
	return mesh, nil
}

// loadSamples returns the inline samples followed by any from the samples PLY
func loadSamples(cfg config.Analysis, logger *slog.Logger) ([]viewanalysis.Sample, error) {
	samples := append([]viewanalysis.Sample(nil), cfg.Samples...)

	if cfg.SamplesPLY != "" {
		data, err := loaders.LoadPLY(cfg.SamplesPLY, logger)
		if err != nil {
			return nil, err
		}
		normals := data.VertexNormals()
		for i, v := range data.Vertices {
			samples = append(samples, viewanalysis.Sample{Point: v, Normal: normals[i]})
		}
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples configured", viewanalysis.ErrInvalidArgument)
	}
	return samples, nil
}

// writeReport writes the report as indented JSON and returns the file name
func writeReport(filename string, r report) (string, error) {
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = filepath.Join("output", fmt.Sprintf("analysis_%s.json", timestamp))
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	if err := encodeReport(file, r); err != nil {
		return "", fmt.Errorf("%s: %w", filename, err)
	}
	return filename, nil
}

// encodeReport writes r to w and closes it; a failed close fails the write
func encodeReport(w io.WriteCloser, r report) (err error) {
	defer func() {
		if closeErr := w.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing output: %w", closeErr)
		}
	}()

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}
