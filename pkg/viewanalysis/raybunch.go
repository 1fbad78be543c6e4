package viewanalysis

import (
	"fmt"
	"math"

	"github.com/df07/go-view-analysis/pkg/core"
)

// axisTolerance decides when a normal counts as aligned with the global Z
// axis in PerpendicularVector.
const axisTolerance = 1e-6

// BunchParams describes the ring layout of a ray bunch
type BunchParams struct {
	AngleStep     float64 `json:"angleStep" yaml:"angle_step"`         // Degrees between successive rings
	RingCount     int     `json:"ringCount" yaml:"ring_count"`         // Rings including the normal itself as ring 0
	DivisionCount int     `json:"divisionCount" yaml:"division_count"` // Azimuthal samples per ring after ring 0
}

// Size returns the number of directions in one bunch: 1 + (rings-1)*divisions
func (p BunchParams) Size() int {
	return 1 + (p.RingCount-1)*p.DivisionCount
}

// Validate checks the ring layout
func (p BunchParams) Validate() error {
	if !(p.AngleStep > 0) || math.IsInf(p.AngleStep, 0) {
		return fmt.Errorf("%w: angle step must be a positive number of degrees, got %v", ErrInvalidArgument, p.AngleStep)
	}
	if p.RingCount <= 0 {
		return fmt.Errorf("%w: ring count must be greater than 0, got %d", ErrInvalidArgument, p.RingCount)
	}
	if p.DivisionCount <= 0 {
		return fmt.Errorf("%w: division count must be greater than 0, got %d", ErrInvalidArgument, p.DivisionCount)
	}
	return nil
}

// RayBunch holds the view directions generated for one input normal
type RayBunch struct {
	Index      int         `json:"index"` // Position of the normal in the input list
	Directions []core.Vec3 `json:"directions"`
}

// GenerateRayBunch produces one bunch of view directions per normal, in input
// order. Each bunch starts with the normal itself, followed by ringCount-1
// rings of divisionCount directions each, ring-major. Ring j sits j*angleStep
// degrees away from the normal; directions within a ring are spread evenly
// around it.
//
// Normals are used as given: rotation preserves their length, so unit
// normals give unit directions.
func GenerateRayBunch(normals []core.Vec3, angleStepDeg float64, ringCount, divisionCount int) ([]RayBunch, error) {
	params := BunchParams{AngleStep: angleStepDeg, RingCount: ringCount, DivisionCount: divisionCount}
	if len(normals) == 0 {
		return nil, fmt.Errorf("%w: no normal vectors", ErrInvalidArgument)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	for i, n := range normals {
		if err := checkDirection(n); err != nil {
			return nil, fmt.Errorf("normal %d: %w", i, err)
		}
	}

	bunches := make([]RayBunch, len(normals))
	for i, n := range normals {
		bunches[i] = RayBunch{Index: i, Directions: bunchFor(n, params)}
	}
	return bunches, nil
}

// GenerateBunch is GenerateRayBunch for a single normal and a parameter set
func GenerateBunch(normal core.Vec3, params BunchParams) ([]core.Vec3, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := checkDirection(normal); err != nil {
		return nil, fmt.Errorf("normal: %w", err)
	}
	return bunchFor(normal, params), nil
}

// bunchFor generates the directions for one validated normal
func bunchFor(v core.Vec3, params BunchParams) []core.Vec3 {
	ringStep := params.AngleStep * math.Pi / 180
	divisionStep := 2 * math.Pi / float64(params.DivisionCount)
	u := PerpendicularVector(v)

	directions := make([]core.Vec3, 0, params.Size())
	directions = append(directions, v)
	for j := 1; j < params.RingCount; j++ {
		w0 := v.RotateAbout(u, float64(j)*ringStep)
		for k := 0; k < params.DivisionCount; k++ {
			directions = append(directions, w0.RotateAbout(v, float64(k)*divisionStep))
		}
	}
	return directions
}

// PerpendicularVector returns a unit vector perpendicular to v.
//
// It solves x*v.X + y*v.Y + z*v.Z = 0 with z = 1 and one of x, y set to
// zero, dividing by whichever of v.X, v.Y is larger in magnitude. When both
// are within 1e-6 of zero, v points along the Z axis and (1, 0, 0) is used.
func PerpendicularVector(v core.Vec3) core.Vec3 {
	if math.Abs(v.X) < axisTolerance && math.Abs(v.Y) < axisTolerance {
		return core.NewVec3(1, 0, 0)
	}

	var u core.Vec3
	if math.Abs(v.X) < math.Abs(v.Y) {
		u = core.NewVec3(0, -v.Z/v.Y, 1)
	} else {
		u = core.NewVec3(-v.Z/v.X, 0, 1)
	}
	return u.Normalize()
}

// checkDirection rejects vectors that cannot define a direction
func checkDirection(v core.Vec3) error {
	if !v.IsFinite() {
		return fmt.Errorf("%w: vector %v has a non-finite component", ErrInvalidArgument, v)
	}
	if v.Length() < minVectorLength {
		return fmt.Errorf("%w: vector %v has near-zero length", ErrDegenerateInput, v)
	}
	return nil
}
