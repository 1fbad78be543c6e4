package viewanalysis

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/df07/go-view-analysis/pkg/core"
)

// NudgeDistance is how far the sample point is moved along the first view
// direction before any ray is cast, so the ray origin never sits exactly on
// an obstacle vertex or edge.
const NudgeDistance = 0.001

// Surface is the obstacle oracle supplied by a geometry kernel.
// Implementations must be safe for concurrent IntersectRay calls.
type Surface interface {
	// Validate reports whether the surface is usable (non-empty, non-degenerate).
	Validate() error
	// IntersectRay returns the ray parameter t >= 0 of the first intersection
	// along the ray's positive direction, in units of the direction's length.
	// hit is false when the ray misses.
	IntersectRay(ray core.Ray) (t float64, hit bool, err error)
}

// ComputeClearDistances returns, for each direction, the unobstructed
// distance from point to surface, or maxDistance when the view is clear.
// Results are in direction order and always within [0, maxDistance].
//
// All rays start from the same origin: point moved NudgeDistance along the
// normalized first direction. Directions are cast un-normalized and the
// result is the Euclidean distance to the hit, not the ray parameter.
// Errors returned by the surface are passed through unchanged.
func ComputeClearDistances(point core.Vec3, directions []core.Vec3, surface Surface, maxDistance float64) ([]float64, error) {
	origin, err := nudgedOrigin(point, directions, surface, maxDistance)
	if err != nil {
		return nil, err
	}

	distances := make([]float64, len(directions))
	for i, direction := range directions {
		d, err := clearDistance(origin, direction, surface, maxDistance)
		if err != nil {
			return nil, err
		}
		distances[i] = d
	}
	return distances, nil
}

// ComputeClearDistancesParallel behaves like ComputeClearDistances but casts
// rays on up to workers goroutines (runtime.NumCPU() when workers <= 0).
// The nudged origin is computed once before any ray is cast.
func ComputeClearDistancesParallel(ctx context.Context, point core.Vec3, directions []core.Vec3, surface Surface, maxDistance float64, workers int) ([]float64, error) {
	origin, err := nudgedOrigin(point, directions, surface, maxDistance)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	distances := make([]float64, len(directions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, direction := range directions {
		i, direction := i, direction
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := clearDistance(origin, direction, surface, maxDistance)
			if err != nil {
				return err
			}
			distances[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return distances, nil
}

// nudgedOrigin validates the inputs and returns the shared ray origin
func nudgedOrigin(point core.Vec3, directions []core.Vec3, surface Surface, maxDistance float64) (core.Vec3, error) {
	if !point.IsFinite() {
		return core.Vec3{}, fmt.Errorf("%w: sample point %v is not valid", ErrInvalidArgument, point)
	}
	if len(directions) == 0 {
		return core.Vec3{}, fmt.Errorf("%w: no view rays", ErrInvalidArgument)
	}
	for i, d := range directions {
		if !d.IsFinite() {
			return core.Vec3{}, fmt.Errorf("%w: view ray %d %v has a non-finite component", ErrInvalidArgument, i, d)
		}
	}
	if surface == nil {
		return core.Vec3{}, fmt.Errorf("%w: no obstacle surface", ErrInvalidArgument)
	}
	if err := surface.Validate(); err != nil {
		return core.Vec3{}, fmt.Errorf("%w: obstacle surface is not valid: %v", ErrInvalidArgument, err)
	}
	if !(maxDistance > 0) || math.IsInf(maxDistance, 0) {
		return core.Vec3{}, fmt.Errorf("%w: max distance must be a positive number, got %v", ErrInvalidArgument, maxDistance)
	}

	first := directions[0]
	if first.Length() < minVectorLength {
		return core.Vec3{}, fmt.Errorf("%w: first view ray %v has near-zero length", ErrDegenerateInput, first)
	}
	return point.Add(first.Normalize().Multiply(NudgeDistance)), nil
}

// clearDistance casts a single ray and caps the result at maxDistance
func clearDistance(origin, direction core.Vec3, surface Surface, maxDistance float64) (float64, error) {
	ray := core.NewRay(origin, direction)
	t, hit, err := surface.IntersectRay(ray)
	if err != nil {
		return 0, err
	}
	if !hit || !(t >= 0) || math.IsInf(t, 0) {
		return maxDistance, nil
	}

	d := ray.At(t).DistanceTo(origin)
	if !(d < maxDistance) {
		return maxDistance, nil
	}
	return d, nil
}
