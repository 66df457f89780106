package bvh

import (
	"sort"

	"github.com/aukilabs/yggdrasil/geom"
)

// RayHit is one item struck by a raycast, with the surface intersection
// points of the item's bound along the ray.
type RayHit[T any] struct {
	// Item is the struck item.
	Item T

	// Points holds the surface intersection points in PointCount order. A
	// ray starting inside the bound produces a single exit point.
	Points [2]geom.Vector3

	// PointCount is 1 or 2.
	PointCount int

	// Distance is the ray parameter of the first intersection point.
	Distance float32
}

// RayHitComparer orders raycast results. It reports whether hit a should
// sort before hit b.
type RayHitComparer[T any] func(a, b RayHit[T]) bool

// Raycast returns all items whose bound intersects the ray within
// maxDistance, sorted by less. A nil less sorts by ascending first-hit
// distance.
func (t *Tree[T, B]) Raycast(ray geom.Ray, maxDistance float32, less RayHitComparer[T]) []RayHit[T] {
	if len(t.nodes) == 0 {
		return nil
	}

	var hits []RayHit[T]
	t.raycastNode(0, ray, maxDistance, &hits)

	if less == nil {
		less = func(a, b RayHit[T]) bool { return a.Distance < b.Distance }
	}
	sort.Slice(hits, func(i, j int) bool { return less(hits[i], hits[j]) })
	return hits
}

func (t *Tree[T, B]) raycastNode(idx int32, ray geom.Ray, maxDistance float32, out *[]RayHit[T]) {
	n := &t.nodes[idx]

	if n.isLeaf() {
		for _, id := range t.buffers[n.children].slice() {
			item := t.items[id]
			t0, t1, pts := item.Bound().IntersectRay(ray, maxDistance)
			if pts == 0 {
				continue
			}
			hit := RayHit[T]{Item: item, PointCount: pts, Distance: t0}
			hit.Points[0] = ray.Point(t0)
			if pts == 2 {
				hit.Points[1] = ray.Point(t1)
			}
			*out = append(*out, hit)
		}
		return
	}

	for _, c := range [2]int32{n.left, n.right} {
		b := t.nodes[c].bound
		// A segment wholly inside the bound crosses no surface, so the
		// surface test alone would wrongly prune it.
		if _, _, pts := b.IntersectRay(ray, maxDistance); pts > 0 || b.ContainsPoint(ray.Origin) {
			t.raycastNode(c, ray, maxDistance, out)
		}
	}
}
