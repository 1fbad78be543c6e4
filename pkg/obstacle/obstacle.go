// Package obstacle builds obstacle surfaces for view analysis from simple
// massing primitives (blocks and towers) using the sdfx SDF library.
// Primitives are unioned as signed distance fields and tessellated with
// marching cubes into a geometry.TriangleMesh.
package obstacle

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/df07/go-view-analysis/pkg/core"
	"github.com/df07/go-view-analysis/pkg/geometry"
)

// DefaultMeshCells controls marching cubes resolution along the longest axis
const DefaultMeshCells = 100

// MaxMeshCells bounds the marching cubes resolution; cost grows with its cube
const MaxMeshCells = 400

var (
	// ErrNoPrimitives is returned when a scene has nothing to build
	ErrNoPrimitives = errors.New("no obstacle primitives")
	// ErrTooManyCells is returned when MeshCells exceeds MaxMeshCells
	ErrTooManyCells = fmt.Errorf("mesh cells must not exceed %d", MaxMeshCells)
)

// Block is an axis-aligned box standing on its minimum corner, optionally
// turned about the vertical axis through its center.
type Block struct {
	Min  core.Vec3 `yaml:"min" json:"min"`
	Size core.Vec3 `yaml:"size" json:"size"`
	Yaw  float64   `yaml:"yaw" json:"yaw"` // Degrees about +Z
}

// Tower is a vertical cylinder standing on the center of its base
type Tower struct {
	Base   core.Vec3 `yaml:"base" json:"base"`
	Radius float64   `yaml:"radius" json:"radius"`
	Height float64   `yaml:"height" json:"height"`
}

// Scene is a set of massing primitives
type Scene struct {
	Blocks    []Block `yaml:"blocks" json:"blocks"`
	Towers    []Tower `yaml:"towers" json:"towers"`
	MeshCells int     `yaml:"mesh_cells" json:"meshCells"`
}

// IsEmpty reports whether the scene has no primitives
func (s Scene) IsEmpty() bool {
	return len(s.Blocks) == 0 && len(s.Towers) == 0
}

// Build unions every primitive and tessellates the result. A nil logger uses slog.Default().
func Build(scene Scene, logger *slog.Logger) (*geometry.TriangleMesh, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if scene.IsEmpty() {
		return nil, ErrNoPrimitives
	}
	if scene.MeshCells > MaxMeshCells {
		return nil, fmt.Errorf("%w: got %d", ErrTooManyCells, scene.MeshCells)
	}
	cells := scene.MeshCells
	if cells <= 0 {
		cells = DefaultMeshCells
	}

	startTime := time.Now()

	var solid sdf.SDF3
	add := func(s sdf.SDF3) {
		if solid == nil {
			solid = s
			return
		}
		solid = sdf.Union3D(solid, s)
	}

	for i, block := range scene.Blocks {
		s, err := blockSDF(block)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		add(s)
	}
	for i, tower := range scene.Towers {
		s, err := towerSDF(tower)
		if err != nil {
			return nil, fmt.Errorf("tower %d: %w", i, err)
		}
		add(s)
	}

	mesh, err := tessellate(solid, cells)
	if err != nil {
		return nil, err
	}

	logger.Info("obstacle mesh built",
		"blocks", len(scene.Blocks),
		"towers", len(scene.Towers),
		"cells", cells,
		"triangles", mesh.TriangleCount(),
		"dropped", mesh.DegenerateCount(),
		"elapsed", time.Since(startTime))

	return mesh, nil
}

// blockSDF builds a block as a box centered on its footprint
func blockSDF(b Block) (sdf.SDF3, error) {
	if !(b.Size.X > 0 && b.Size.Y > 0 && b.Size.Z > 0) {
		return nil, fmt.Errorf("size must be positive on every axis, got %v", b.Size)
	}
	if !b.Min.IsFinite() || !b.Size.IsFinite() || math.IsNaN(b.Yaw) || math.IsInf(b.Yaw, 0) {
		return nil, fmt.Errorf("block has a non-finite value")
	}

	s, err := sdf.Box3D(v3.Vec{X: b.Size.X, Y: b.Size.Y, Z: b.Size.Z}, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Box3D: %w", err)
	}

	center := b.Min.Add(b.Size.Multiply(0.5))
	m := sdf.Translate3d(v3.Vec{X: center.X, Y: center.Y, Z: center.Z})
	if b.Yaw != 0 {
		m = m.Mul(sdf.RotateZ(b.Yaw * math.Pi / 180))
	}
	return sdf.Transform3D(s, m), nil
}

// towerSDF builds a tower as a Z-aligned cylinder lifted onto its base
func towerSDF(t Tower) (sdf.SDF3, error) {
	if !(t.Radius > 0 && t.Height > 0) || math.IsInf(t.Radius, 0) || math.IsInf(t.Height, 0) {
		return nil, fmt.Errorf("radius and height must be positive, got %v and %v", t.Radius, t.Height)
	}
	if !t.Base.IsFinite() {
		return nil, fmt.Errorf("tower base %v is not finite", t.Base)
	}

	s, err := sdf.Cylinder3D(t.Height, t.Radius, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Cylinder3D: %w", err)
	}
	m := sdf.Translate3d(v3.Vec{X: t.Base.X, Y: t.Base.Y, Z: t.Base.Z + t.Height/2})
	return sdf.Transform3D(s, m), nil
}

// tessellate converts an SDF into an indexed triangle mesh
func tessellate(s sdf.SDF3, cells int) (*geometry.TriangleMesh, error) {
	triangles := render.ToTriangles(s, render.NewMarchingCubesUniform(cells))

	vertices := make([]core.Vec3, 0, len(triangles)*3)
	faces := make([]int, 0, len(triangles)*3)
	for _, tri := range triangles {
		for j := 0; j < 3; j++ {
			v := tri.V[j]
			faces = append(faces, len(vertices))
			vertices = append(vertices, core.NewVec3(v.X, v.Y, v.Z))
		}
	}

	mesh, err := geometry.NewTriangleMesh(vertices, faces, nil)
	if err != nil {
		return nil, fmt.Errorf("building obstacle mesh: %w", err)
	}
	return mesh, nil
}
