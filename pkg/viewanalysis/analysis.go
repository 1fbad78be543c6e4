package viewanalysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/df07/go-view-analysis/pkg/core"
)

// Sample is a point on an analysed surface and the surface normal there
type Sample struct {
	Point  core.Vec3 `json:"point" yaml:"point"`
	Normal core.Vec3 `json:"normal" yaml:"normal"`
}

// Summary aggregates the clear distances of one sample
type Summary struct {
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	OpenFraction float64 `json:"openFraction"` // Share of rays that reached the max distance
}

// SampleResult is the outcome of analysing one sample
type SampleResult struct {
	Index      int         `json:"index"`
	Directions []core.Vec3 `json:"directions"`
	Distances  []float64   `json:"distances"`
	Summary    Summary     `json:"summary"`
}

// Summarize computes min, max, mean and the open fraction of distances
func Summarize(distances []float64, maxDistance float64) Summary {
	if len(distances) == 0 {
		return Summary{}
	}

	s := Summary{Min: math.Inf(1), Max: math.Inf(-1)}
	sum := 0.0
	open := 0
	for _, d := range distances {
		s.Min = math.Min(s.Min, d)
		s.Max = math.Max(s.Max, d)
		sum += d
		if d >= maxDistance {
			open++
		}
	}
	s.Mean = sum / float64(len(distances))
	s.OpenFraction = float64(open) / float64(len(distances))
	return s
}

// AnalyzerConfig controls a batch view analysis
type AnalyzerConfig struct {
	Bunch       BunchParams
	MaxDistance float64
	Workers     int // Concurrent samples; runtime.NumCPU() when <= 0
}

// Analyzer runs ray-bunch generation and obstruction sampling over many
// sample points. It holds no per-call state and may be reused concurrently.
type Analyzer struct {
	config AnalyzerConfig
	logger *slog.Logger
}

// NewAnalyzer validates config and creates an Analyzer. A nil logger uses slog.Default().
func NewAnalyzer(config AnalyzerConfig, logger *slog.Logger) (*Analyzer, error) {
	if err := config.Bunch.Validate(); err != nil {
		return nil, err
	}
	if !(config.MaxDistance > 0) || math.IsInf(config.MaxDistance, 0) {
		return nil, fmt.Errorf("%w: max distance must be a positive number, got %v", ErrInvalidArgument, config.MaxDistance)
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{config: config, logger: logger}, nil
}

// Config returns the effective configuration
func (a *Analyzer) Config() AnalyzerConfig {
	return a.config
}

// Analyze generates a ray bunch around each sample's normal and measures the
// clear distance of every ray from the sample's point. Results keep sample
// order. Any failing sample fails the whole call; no partial results are
// returned.
func (a *Analyzer) Analyze(ctx context.Context, samples []Sample, surface Surface) ([]SampleResult, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidArgument)
	}
	if surface == nil {
		return nil, fmt.Errorf("%w: no obstacle surface", ErrInvalidArgument)
	}
	if err := surface.Validate(); err != nil {
		return nil, fmt.Errorf("%w: obstacle surface is not valid: %v", ErrInvalidArgument, err)
	}

	startTime := time.Now()
	results := make([]SampleResult, len(samples))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Workers)
	for i, sample := range samples {
		i, sample := i, sample
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := a.analyzeSample(i, sample, surface)
			if err != nil {
				return fmt.Errorf("sample %d: %w", i, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.logger.Info("view analysis complete",
		"samples", len(samples),
		"rays", len(samples)*a.config.Bunch.Size(),
		"workers", a.config.Workers,
		"elapsed", time.Since(startTime))

	return results, nil
}

// analyzeSample handles one sample
func (a *Analyzer) analyzeSample(index int, sample Sample, surface Surface) (SampleResult, error) {
	directions, err := GenerateBunch(sample.Normal, a.config.Bunch)
	if err != nil {
		return SampleResult{}, err
	}

	distances, err := ComputeClearDistances(sample.Point, directions, surface, a.config.MaxDistance)
	if err != nil {
		return SampleResult{}, err
	}

	summary := Summarize(distances, a.config.MaxDistance)
	a.logger.Debug("sample analysed",
		"index", index,
		"rays", len(directions),
		"mean", summary.Mean,
		"open", summary.OpenFraction)

	return SampleResult{
		Index:      index,
		Directions: directions,
		Distances:  distances,
		Summary:    summary,
	}, nil
}
