package viewanalysis

import (
	"errors"
	"math"
	"sync"

	"github.com/df07/go-view-analysis/pkg/core"
)

// neverHit is a valid surface that nothing ever intersects
type neverHit struct{}

func (neverHit) Validate() error { return nil }

func (neverHit) IntersectRay(core.Ray) (float64, bool, error) { return -1, false, nil }

// planeZ is the infinite plane z = Z, hit from either side
type planeZ struct {
	Z float64
}

func (planeZ) Validate() error { return nil }

func (p planeZ) IntersectRay(ray core.Ray) (float64, bool, error) {
	if ray.Direction.Z == 0 {
		return -1, false, nil
	}
	t := (p.Z - ray.Origin.Z) / ray.Direction.Z
	if t < 0 {
		return -1, false, nil
	}
	return t, true, nil
}

// fixedHit reports the same answer for every ray
type fixedHit struct {
	t   float64
	hit bool
	err error
}

func (fixedHit) Validate() error { return nil }

func (f fixedHit) IntersectRay(core.Ray) (float64, bool, error) { return f.t, f.hit, f.err }

// invalidSurface fails validation
type invalidSurface struct{}

func (invalidSurface) Validate() error { return errors.New("mesh is empty") }

func (invalidSurface) IntersectRay(core.Ray) (float64, bool, error) { return -1, false, nil }

// recorder remembers every ray it is asked to intersect
type recorder struct {
	mu   sync.Mutex
	rays []core.Ray
}

func (r *recorder) Validate() error { return nil }

func (r *recorder) IntersectRay(ray core.Ray) (float64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rays = append(r.rays, ray)
	return -1, false, nil
}

// angleBetween returns the angle between two vectors in degrees
func angleBetween(a, b core.Vec3) float64 {
	cos := a.Dot(b) / (a.Length() * b.Length())
	return math.Acos(math.Max(-1, math.Min(1, cos))) * 180 / math.Pi
}
