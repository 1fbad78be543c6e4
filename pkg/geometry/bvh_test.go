package geometry

import (
	"math"
	"testing"

	"github.com/df07/go-view-analysis/pkg/core"
)

// wall returns a unit square in the plane x = offset, split in two triangles
func wall(offset float64) []Shape {
	a := core.NewVec3(offset, -0.5, -0.5)
	b := core.NewVec3(offset, 0.5, -0.5)
	c := core.NewVec3(offset, 0.5, 0.5)
	d := core.NewVec3(offset, -0.5, 0.5)
	return []Shape{NewTriangle(a, b, c), NewTriangle(a, c, d)}
}

func TestBVH_LeafThresholdBoundary(t *testing.T) {
	var shapes []Shape
	for i := 0; i < 4; i++ {
		shapes = append(shapes, wall(float64(i))...)
	}

	bvh := NewBVH(shapes)
	stats := bvh.getStats()
	if stats.totalNodes != 1 || stats.leafNodes != 1 {
		t.Errorf("Expected a single leaf for %d shapes, got %+v", len(shapes), stats)
	}

	shapes = append(shapes, wall(4)...)
	bvh = NewBVH(shapes)
	stats = bvh.getStats()
	if stats.leafNodes < 2 {
		t.Errorf("Expected a split for %d shapes, got %+v", len(shapes), stats)
	}
	if stats.totalShapes != len(shapes) {
		t.Errorf("Expected %d shapes stored, got %d", len(shapes), stats.totalShapes)
	}
}

func TestBVH_EmptyAndSingleShape(t *testing.T) {
	bvh := NewBVH(nil)
	if bvh.Root != nil {
		t.Error("Expected nil root for empty BVH")
	}

	var hit HitRecord
	ray := core.NewRay(core.NewVec3(-5, 0.2, -0.2), core.NewVec3(1, 0, 0))
	if bvh.Hit(ray, 0, math.Inf(1), &hit) {
		t.Error("Expected no hit for empty BVH")
	}

	bvh = NewBVH(wall(0)[:1])
	if !bvh.Hit(ray, 0, math.Inf(1), &hit) {
		t.Fatal("Expected hit on single triangle")
	}
	if math.Abs(hit.T-5) > 1e-9 {
		t.Errorf("Expected t=5, got %f", hit.T)
	}
}

func TestBVH_ClosestHit(t *testing.T) {
	// Twenty parallel walls along +X; the ray must report the nearest one
	var shapes []Shape
	for i := 19; i >= 0; i-- {
		shapes = append(shapes, wall(float64(i)+1)...)
	}
	bvh := NewBVH(shapes)

	tests := []struct {
		name      string
		origin    float64
		direction core.Vec3
		expectedT float64
		shouldHit bool
	}{
		{"from origin", 0, core.NewVec3(1, 0, 0), 1, true},
		{"from between walls", 4.5, core.NewVec3(1, 0, 0), 0.5, true},
		{"scaled direction", 0, core.NewVec3(2, 0, 0), 0.5, true},
		{"backwards past last wall", 0, core.NewVec3(-1, 0, 0), 0, false},
		{"beyond all walls", 25, core.NewVec3(1, 0, 0), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hit HitRecord
			ray := core.NewRay(core.NewVec3(tt.origin, 0.2, -0.1), tt.direction)
			isHit := bvh.Hit(ray, 0, math.Inf(1), &hit)
			if isHit != tt.shouldHit {
				t.Fatalf("Expected hit=%v, got %v", tt.shouldHit, isHit)
			}
			if isHit && math.Abs(hit.T-tt.expectedT) > 1e-9 {
				t.Errorf("Expected t=%f, got %f", tt.expectedT, hit.T)
			}
		})
	}
}

func TestBVH_DoesNotReorderInput(t *testing.T) {
	var shapes []Shape
	for i := 9; i >= 0; i-- {
		shapes = append(shapes, wall(float64(i))...)
	}
	first := shapes[0]
	NewBVH(shapes)
	if shapes[0] != first {
		t.Error("NewBVH modified the caller's slice")
	}
}
