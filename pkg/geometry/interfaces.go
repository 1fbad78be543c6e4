package geometry

import "github.com/df07/go-view-analysis/pkg/core"

// HitRecord contains information about a ray-surface intersection
type HitRecord struct {
	T float64 // Parameter t along the ray, in units of the ray direction
}

// Shape is anything the BVH can store and intersect
type Shape interface {
	Hit(ray core.Ray, tMin, tMax float64, hit *HitRecord) bool
	BoundingBox() core.AABB
}
