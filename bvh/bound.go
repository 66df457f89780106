// Package bvh implements a dynamic, balanced spatial index over bounded
// items. Two structurally identical variants are provided: a box-tree over
// axis-aligned bounding boxes and a ball-tree over bounding spheres. The tree
// supports incremental insertion, removal, in-place bound updates, randomized
// local rebalancing and a family of read-only spatial queries, with batched
// data-parallel forms.
//
// Mutating operations carry no internal synchronization. Callers must
// sequence Insert, Remove, Update and Optimize externally; queries are safe
// to fan out in parallel as long as no mutation runs concurrently.
package bvh

import "github.com/aukilabs/yggdrasil/geom"

// Bound is the closed capability contract a bounding volume must satisfy to
// back a tree. geom.Box and geom.Sphere implement it.
type Bound[B any] interface {
	// Union returns the smallest bound of the same kind covering both.
	Union(B) B
	// Contains reports whether the other bound is fully covered.
	Contains(B) bool
	// Overlaps reports whether the two bounds share any point.
	Overlaps(B) bool
	Equal(B) bool
	Centroid() geom.Vector3
	// Cost ranks bounds during placement and rebalancing: volume for boxes,
	// squared radius for spheres.
	Cost() float32
	ContainsPoint(geom.Vector3) bool
	// MinDistanceSq is a lower bound on the squared distance from the point
	// to anything covered by the bound.
	MinDistanceSq(geom.Vector3) float32

	// Tests against query shapes, with the bound as the subject.
	InsideBox(geom.Box) bool
	IntersectsBox(geom.Box) bool
	InsideSphere(geom.Sphere) bool
	IntersectsSphere(geom.Sphere) bool
	IntersectsCapsule(geom.Capsule) bool
	IntersectRay(geom.Ray, float32) (float32, float32, int)
	SideOfFrustum(geom.Frustum) geom.Side
}

// Item is the contract indexed values must satisfy: a stable identity and a
// bounding volume. Items are referenced, never owned; equality is identity
// equality.
type Item[B any] interface {
	ID() uint64
	Bound() B
}
