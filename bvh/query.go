package bvh

import "github.com/aukilabs/yggdrasil/geom"

// All queries share the same bound-guided descent: a child wholly inside the
// query shape is bulk-collected without further per-item tests, an
// intersecting child is recursed into and a disjoint child is pruned. At a
// leaf every item is tested against the exact predicate, not the leaf's
// coarse bound. Queries are read-only and never fail: an empty or impossible
// query shape yields an empty result.

// SearchBoxContained returns the items whose bound lies wholly inside the
// box region.
func (t *Tree[T, B]) SearchBoxContained(region geom.Box) []T {
	return t.search(
		func(b B) bool { return b.InsideBox(region) },
		func(b B) bool { return b.IntersectsBox(region) },
		func(b B) bool { return b.InsideBox(region) },
	)
}

// SearchBoxOverlapping returns the items whose bound overlaps the box
// region.
func (t *Tree[T, B]) SearchBoxOverlapping(region geom.Box) []T {
	return t.search(
		func(b B) bool { return b.InsideBox(region) },
		func(b B) bool { return b.IntersectsBox(region) },
		func(b B) bool { return b.IntersectsBox(region) },
	)
}

// SearchSphereContained returns the items whose bound lies wholly inside the
// sphere region.
func (t *Tree[T, B]) SearchSphereContained(region geom.Sphere) []T {
	return t.search(
		func(b B) bool { return b.InsideSphere(region) },
		func(b B) bool { return b.IntersectsSphere(region) },
		func(b B) bool { return b.InsideSphere(region) },
	)
}

// SearchSphereOverlapping returns the items whose bound overlaps the sphere
// region.
func (t *Tree[T, B]) SearchSphereOverlapping(region geom.Sphere) []T {
	return t.search(
		func(b B) bool { return b.InsideSphere(region) },
		func(b B) bool { return b.IntersectsSphere(region) },
		func(b B) bool { return b.IntersectsSphere(region) },
	)
}

// SearchPolygon returns the items whose center lies inside the simple
// polygon on the horizontal plane. Descent is pruned with the polygon's
// bounding box; there is no bulk-collect fast path.
func (t *Tree[T, B]) SearchPolygon(polygon geom.Polygon) []T {
	bounds := polygon.Bounds()
	return t.search(
		func(b B) bool { return false },
		func(b B) bool { return b.IntersectsBox(bounds) },
		func(b B) bool { return polygon.ContainsPoint(b.Centroid().XZ()) },
	)
}

// FrustumQuery returns the items not outside the given plane set: children
// fully inside are bulk-collected, partially overlapping ones recursed,
// fully outside ones skipped.
func (t *Tree[T, B]) FrustumQuery(frustum geom.Frustum) []T {
	return t.search(
		func(b B) bool { return b.SideOfFrustum(frustum) == geom.SideInside },
		func(b B) bool { return b.SideOfFrustum(frustum) != geom.SideOutside },
		func(b B) bool { return b.SideOfFrustum(frustum) != geom.SideOutside },
	)
}

// ShapeCast returns the unsorted set of items whose bound overlaps the swept
// capsule. Unlike Raycast it computes no hit points and imposes no order.
func (t *Tree[T, B]) ShapeCast(capsule geom.Capsule) []T {
	return t.search(
		func(b B) bool { return false },
		func(b B) bool { return b.IntersectsCapsule(capsule) },
		func(b B) bool { return b.IntersectsCapsule(capsule) },
	)
}

func (t *Tree[T, B]) search(inside, intersects, match func(B) bool) []T {
	if len(t.nodes) == 0 {
		return nil
	}
	var out []T
	t.searchNode(0, inside, intersects, match, &out)
	return out
}

func (t *Tree[T, B]) searchNode(idx int32, inside, intersects, match func(B) bool, out *[]T) {
	n := &t.nodes[idx]

	if n.isLeaf() {
		for _, id := range t.buffers[n.children].slice() {
			if item := t.items[id]; match(item.Bound()) {
				*out = append(*out, item)
			}
		}
		return
	}

	for _, c := range [2]int32{n.left, n.right} {
		switch {
		case inside(t.nodes[c].bound):
			t.collectSubtree(c, out)
		case intersects(t.nodes[c].bound):
			t.searchNode(c, inside, intersects, match, out)
		}
	}
}

func (t *Tree[T, B]) collectSubtree(idx int32, out *[]T) {
	n := &t.nodes[idx]
	if n.isLeaf() {
		for _, id := range t.buffers[n.children].slice() {
			*out = append(*out, t.items[id])
		}
		return
	}
	t.collectSubtree(n.left, out)
	t.collectSubtree(n.right, out)
}
