package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/df07/go-view-analysis/pkg/core"
)

var (
	// ErrEmptyMesh is returned when a mesh has no usable triangles
	ErrEmptyMesh = errors.New("mesh has no non-degenerate triangles")
	// ErrNonFiniteVertex is returned when a mesh vertex has a NaN or infinite coordinate
	ErrNonFiniteVertex = errors.New("mesh has a non-finite vertex")
)

// TriangleMesh is an obstacle surface: a collection of triangles behind a BVH.
// It is immutable after construction, so one mesh can serve many concurrent
// ray casts.
type TriangleMesh struct {
	triangles  []*Triangle
	bvh        *BVH
	bbox       core.AABB
	degenerate int  // triangles dropped for having no area
	nonFinite  bool // at least one referenced vertex had a NaN/Inf coordinate
}

// TriangleMeshOptions contains optional transforms applied to the vertices
type TriangleMeshOptions struct {
	Rotation    *core.Vec3 // Euler rotation in radians (X, then Y, then Z)
	Center      *core.Vec3 // Rotation pivot; origin if nil
	Translation *core.Vec3 // Applied after rotation
}

// NewTriangleMesh creates a mesh from vertices and face indices.
// vertices: array of 3D points
// faces: triangle indices (each group of 3 indices forms a triangle)
// options: optional transforms (can be nil)
func NewTriangleMesh(vertices []core.Vec3, faces []int, options *TriangleMeshOptions) (*TriangleMesh, error) {
	if len(faces)%3 != 0 {
		return nil, fmt.Errorf("face index count %d is not a multiple of 3", len(faces))
	}

	workingVertices := transformVertices(vertices, options)

	numTriangles := len(faces) / 3
	mesh := &TriangleMesh{triangles: make([]*Triangle, 0, numTriangles)}

	for i := 0; i < numTriangles; i++ {
		i0, i1, i2 := faces[i*3], faces[i*3+1], faces[i*3+2]
		for _, idx := range [3]int{i0, i1, i2} {
			if idx < 0 || idx >= len(workingVertices) {
				return nil, fmt.Errorf("face %d: vertex index %d out of bounds (%d vertices)", i, idx, len(workingVertices))
			}
		}

		v0, v1, v2 := workingVertices[i0], workingVertices[i1], workingVertices[i2]
		if !v0.IsFinite() || !v1.IsFinite() || !v2.IsFinite() {
			mesh.nonFinite = true
			continue
		}

		triangle := NewTriangle(v0, v1, v2)
		if triangle.IsDegenerate() {
			mesh.degenerate++
			continue
		}
		mesh.triangles = append(mesh.triangles, triangle)
	}

	shapes := make([]Shape, len(mesh.triangles))
	for i, triangle := range mesh.triangles {
		shapes[i] = triangle
	}
	mesh.bvh = NewBVH(shapes)
	mesh.bbox = mesh.bvh.BoundingBox()

	return mesh, nil
}

// transformVertices applies the optional rotation and translation
func transformVertices(vertices []core.Vec3, options *TriangleMeshOptions) []core.Vec3 {
	if options == nil || (options.Rotation == nil && options.Translation == nil) {
		return vertices
	}

	out := make([]core.Vec3, len(vertices))
	for i, vertex := range vertices {
		if options.Rotation != nil {
			if options.Center != nil {
				vertex = vertex.Subtract(*options.Center)
			}
			vertex = vertex.Rotate(*options.Rotation)
			if options.Center != nil {
				vertex = vertex.Add(*options.Center)
			}
		}
		if options.Translation != nil {
			vertex = vertex.Add(*options.Translation)
		}
		out[i] = vertex
	}
	return out
}

// Validate reports whether the mesh can be used as an obstacle surface
func (tm *TriangleMesh) Validate() error {
	if tm == nil {
		return ErrEmptyMesh
	}
	if tm.nonFinite {
		return ErrNonFiniteVertex
	}
	if len(tm.triangles) == 0 {
		return ErrEmptyMesh
	}
	return nil
}

// IntersectRay returns the ray parameter of the first intersection along the
// ray's positive direction. The parameter is in units of the ray direction's
// length, not world units.
func (tm *TriangleMesh) IntersectRay(ray core.Ray) (float64, bool, error) {
	var hit HitRecord
	if !tm.bvh.Hit(ray, 0, math.Inf(1), &hit) {
		return -1, false, nil
	}
	return hit.T, true, nil
}

// BoundingBox returns the axis-aligned bounding box for the entire mesh
func (tm *TriangleMesh) BoundingBox() core.AABB {
	return tm.bbox
}

// TriangleCount returns the number of usable triangles in this mesh
func (tm *TriangleMesh) TriangleCount() int {
	return len(tm.triangles)
}

// DegenerateCount returns how many zero-area triangles were dropped
func (tm *TriangleMesh) DegenerateCount() int {
	return tm.degenerate
}
