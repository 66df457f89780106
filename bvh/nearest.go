package bvh

import (
	"math"

	"github.com/aukilabs/yggdrasil/geom"
)

// NearestNeighbor returns the item whose bound is closest to the given
// point, measured by minimum distance to the bound's surface (zero when the
// point is inside). It reports false on an empty tree.
func (t *Tree[T, B]) NearestNeighbor(point geom.Vector3) (T, bool) {
	var best T
	if len(t.items) == 0 {
		return best, false
	}
	bestDistSq := float32(math.Inf(1))
	t.nearestNode(0, point, &best, &bestDistSq)
	return best, true
}

// The nearer child is descended first so its result tightens the pruning
// distance before the farther child is considered.
func (t *Tree[T, B]) nearestNode(idx int32, point geom.Vector3, best *T, bestDistSq *float32) {
	n := &t.nodes[idx]

	if n.isLeaf() {
		for _, id := range t.buffers[n.children].slice() {
			item := t.items[id]
			if d := item.Bound().MinDistanceSq(point); d < *bestDistSq {
				*bestDistSq = d
				*best = item
			}
		}
		return
	}

	first, second := n.left, n.right
	dFirst := t.nodes[first].bound.MinDistanceSq(point)
	dSecond := t.nodes[second].bound.MinDistanceSq(point)
	if dSecond < dFirst {
		first, second = second, first
		dFirst, dSecond = dSecond, dFirst
	}

	if dFirst < *bestDistSq {
		t.nearestNode(first, point, best, bestDistSq)
	}
	if dSecond < *bestDistSq {
		t.nearestNode(second, point, best, bestDistSq)
	}
}
