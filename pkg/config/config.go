package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/df07/go-view-analysis/pkg/core"
	"github.com/df07/go-view-analysis/pkg/obstacle"
	"github.com/df07/go-view-analysis/pkg/viewanalysis"
)

// Analysis holds all configuration for a view analysis run.
type Analysis struct {
	LogLevel string `yaml:"log_level"` // debug, info, warn, error

	// Ray bunch
	Bunch viewanalysis.BunchParams `yaml:"bunch"`

	// Obstruction sampling
	MaxDistance float64 `yaml:"max_distance"`
	Workers     int     `yaml:"workers"` // 0 = one per CPU

	// Obstacle surface
	Obstacle ObstacleConfig `yaml:"obstacle"`

	// Sample points, inline or from a PLY point cloud with normals
	Samples    []viewanalysis.Sample `yaml:"samples"`
	SamplesPLY string                `yaml:"samples_ply"`

	// Output JSON path; empty writes output/analysis_<timestamp>.json
	Output string `yaml:"output"`
}

// ObstacleConfig selects the obstacle source: a PLY mesh or massing primitives.
type ObstacleConfig struct {
	PLY         string         `yaml:"ply"`
	Rotation    core.Vec3      `yaml:"rotation"` // Euler degrees, applied before translation
	Translation core.Vec3      `yaml:"translation"`
	Scene       obstacle.Scene `yaml:",inline"`
}

// DefaultAnalysis returns Analysis config with sensible defaults.
func DefaultAnalysis() Analysis {
	return Analysis{
		LogLevel: "info",
		Bunch: viewanalysis.BunchParams{
			AngleStep:     10,
			RingCount:     4,
			DivisionCount: 12,
		},
		MaxDistance: 100,
		Obstacle: ObstacleConfig{
			Scene: obstacle.Scene{MeshCells: obstacle.DefaultMeshCells},
		},
	}
}

// LoadAnalysis loads analysis config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadAnalysis(path string) (Analysis, error) {
	cfg := DefaultAnalysis()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the values a run cannot start without. Sample and obstacle
// presence are checked by the caller once flag overrides are applied.
func (a Analysis) Validate() error {
	if err := a.Bunch.Validate(); err != nil {
		return err
	}
	if !(a.MaxDistance > 0) || math.IsInf(a.MaxDistance, 0) {
		return fmt.Errorf("%w: max_distance must be a positive number, got %v", viewanalysis.ErrInvalidArgument, a.MaxDistance)
	}
	if a.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", viewanalysis.ErrInvalidArgument, a.Workers)
	}
	if _, err := parseLevel(a.LogLevel); err != nil {
		return err
	}
	if a.Obstacle.PLY != "" && !a.Obstacle.Scene.IsEmpty() {
		return fmt.Errorf("%w: obstacle has both a ply file and primitives", viewanalysis.ErrInvalidArgument)
	}
	if a.Obstacle.Scene.MeshCells < 0 || a.Obstacle.Scene.MeshCells > obstacle.MaxMeshCells {
		return fmt.Errorf("%w: mesh_cells must be between 0 and %d, got %d", viewanalysis.ErrInvalidArgument, obstacle.MaxMeshCells, a.Obstacle.Scene.MeshCells)
	}
	return nil
}

// SlogLevel returns the configured log level, info when unrecognised.
func (a Analysis) SlogLevel() slog.Level {
	level, err := parseLevel(a.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// AnalyzerConfig returns the batch analyzer settings.
func (a Analysis) AnalyzerConfig() viewanalysis.AnalyzerConfig {
	return viewanalysis.AnalyzerConfig{
		Bunch:       a.Bunch,
		MaxDistance: a.MaxDistance,
		Workers:     a.Workers,
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: unknown log_level %q", viewanalysis.ErrInvalidArgument, s)
	}
}
