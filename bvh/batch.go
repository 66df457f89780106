package bvh

import (
	"github.com/aukilabs/yggdrasil/geom"
	"github.com/aukilabs/yggdrasil/parallel"
)

// Batched operations run their per-unit work through parallel.Run. Queries
// are safe to fan out as-is since they never write tree state. Mutations run
// in two phases: a parallel phase touching at most per-leaf state with every
// leaf owned by one work unit, and a serial phase doing all shared-ancestor
// work.

// UpdateAll applies Update for a batch of items and returns the number of
// items that were present. Leaf bounds are extended in parallel, one work
// unit per touched leaf; ancestor propagation runs serially afterwards.
func (t *Tree[T, B]) UpdateAll(items []T) int {
	updated := 0
	perLeaf := make(map[int32][]B)
	for _, item := range items {
		leaf, ok := t.itemLeaf[item.ID()]
		if !ok {
			continue
		}
		t.items[item.ID()] = item
		perLeaf[leaf] = append(perLeaf[leaf], item.Bound())
		updated++
	}
	if updated == 0 {
		return 0
	}

	leafs := make([]int32, 0, len(perLeaf))
	for leaf := range perLeaf {
		leafs = append(leafs, leaf)
	}

	grown := make([]bool, len(leafs))
	parallel.Run(len(leafs), func(i int) {
		n := &t.nodes[leafs[i]]
		for _, b := range perLeaf[leafs[i]] {
			if !n.bound.Contains(b) {
				n.bound = n.bound.Union(b)
				grown[i] = true
			}
		}
	}).Wait()

	for i, leaf := range leafs {
		if grown[i] {
			t.propagateUp(t.nodes[leaf].parent)
		}
	}

	instrumentMutationN(t.label, mutationUpdate, updated)
	return updated
}

// RemoveAll applies Remove for a batch of items and returns the number of
// items that were present. Presence is resolved in parallel; the structural
// removals themselves rebalance shared ancestors and run serially.
func (t *Tree[T, B]) RemoveAll(items []T) int {
	present := make([]bool, len(items))
	parallel.Run(len(items), func(i int) {
		_, present[i] = t.itemLeaf[items[i].ID()]
	}).Wait()

	removed := 0
	for i, item := range items {
		if present[i] && t.Remove(item) {
			removed++
		}
	}
	return removed
}

// SearchBoxContainedBatch answers one containment search per region.
func (t *Tree[T, B]) SearchBoxContainedBatch(regions []geom.Box) [][]T {
	return runBatch(len(regions), func(i int) []T {
		return t.SearchBoxContained(regions[i])
	})
}

// SearchBoxOverlappingBatch answers one overlap search per region.
func (t *Tree[T, B]) SearchBoxOverlappingBatch(regions []geom.Box) [][]T {
	return runBatch(len(regions), func(i int) []T {
		return t.SearchBoxOverlapping(regions[i])
	})
}

// SearchSphereContainedBatch answers one containment search per region.
func (t *Tree[T, B]) SearchSphereContainedBatch(regions []geom.Sphere) [][]T {
	return runBatch(len(regions), func(i int) []T {
		return t.SearchSphereContained(regions[i])
	})
}

// SearchSphereOverlappingBatch answers one overlap search per region.
func (t *Tree[T, B]) SearchSphereOverlappingBatch(regions []geom.Sphere) [][]T {
	return runBatch(len(regions), func(i int) []T {
		return t.SearchSphereOverlapping(regions[i])
	})
}

// SearchPolygonBatch answers one polygon search per polygon.
func (t *Tree[T, B]) SearchPolygonBatch(polygons []geom.Polygon) [][]T {
	return runBatch(len(polygons), func(i int) []T {
		return t.SearchPolygon(polygons[i])
	})
}

// RaycastBatch answers one raycast per ray, each sorted with the same
// comparer.
func (t *Tree[T, B]) RaycastBatch(rays []geom.Ray, maxDistance float32, less RayHitComparer[T]) [][]RayHit[T] {
	return runBatch(len(rays), func(i int) []RayHit[T] {
		return t.Raycast(rays[i], maxDistance, less)
	})
}

// FrustumQueryBatch answers one frustum query per plane set.
func (t *Tree[T, B]) FrustumQueryBatch(frustums []geom.Frustum) [][]T {
	return runBatch(len(frustums), func(i int) []T {
		return t.FrustumQuery(frustums[i])
	})
}

// ShapeCastBatch answers one capsule cast per capsule.
func (t *Tree[T, B]) ShapeCastBatch(capsules []geom.Capsule) [][]T {
	return runBatch(len(capsules), func(i int) []T {
		return t.ShapeCast(capsules[i])
	})
}

// NearestNeighbors answers one nearest-neighbor query per point. It returns
// nil on an empty tree; otherwise every point resolves to an item.
func (t *Tree[T, B]) NearestNeighbors(points []geom.Vector3) []T {
	if len(t.items) == 0 || len(points) == 0 {
		return nil
	}
	out := make([]T, len(points))
	parallel.Run(len(points), func(i int) {
		out[i], _ = t.NearestNeighbor(points[i])
	}).Wait()
	return out
}

func runBatch[R any](n int, do func(i int) R) []R {
	if n == 0 {
		return nil
	}
	out := make([]R, n)
	parallel.Run(n, func(i int) {
		out[i] = do(i)
	}).Wait()
	return out
}
