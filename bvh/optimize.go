package bvh

import "sort"

// Optimize runs a bounded number of randomized local-improvement attempts:
// leaf-pair item exchanges and grandchild rotations. It is meant to run
// periodically, once per tick, to restore the query efficiency degraded by
// insertion and removal churn; it is never required for correctness and
// never changes the set any query returns.
func (t *Tree[T, B]) Optimize(leafSwaps, grandchildTricks int) {
	if len(t.nodes) == 0 {
		return
	}

	if leafSwaps > 0 && len(t.leaves) >= 2 {
		leafIdx := make([]int32, 0, len(t.leaves))
		for idx := range t.leaves {
			leafIdx = append(leafIdx, idx)
		}
		for i := 0; i < leafSwaps; i++ {
			t.tryLeafSwap(leafIdx)
		}
	}

	for i := 0; i < grandchildTricks; i++ {
		t.tryRotation()
	}
}

// tryLeafSwap samples two distinct leaves, recomputes their tight bounds and,
// when they overlap, lets each leaf steal items lying nearer to the other
// leaf's center before attempting pairwise swaps ranked by
// distance-to-own-center.
func (t *Tree[T, B]) tryLeafSwap(leafIdx []int32) {
	a := leafIdx[t.rng.Intn(len(leafIdx))]
	b := leafIdx[t.rng.Intn(len(leafIdx))]
	if a == b {
		return
	}

	t.refitLeaf(a)
	t.refitLeaf(b)
	t.propagateUp(t.nodes[a].parent)
	t.propagateUp(t.nodes[b].parent)

	if !t.nodes[a].bound.Overlaps(t.nodes[b].bound) {
		return
	}

	changed := t.stealBetween(a, b)
	changed = t.stealBetween(b, a) || changed
	changed = t.swapBetween(a, b) || changed

	if changed {
		t.refitLeaf(a)
		t.refitLeaf(b)
		t.propagateUp(t.nodes[a].parent)
		t.propagateUp(t.nodes[b].parent)
		instrumentOptimize(t.label, optimizeLeafSwap)
	}
}

// stealBetween moves items of from that sit nearer to to's center, capacity
// permitting. from always keeps at least one item.
func (t *Tree[T, B]) stealBetween(from, to int32) bool {
	centerFrom := t.nodes[from].bound.Centroid()
	centerTo := t.nodes[to].bound.Centroid()

	fromBuf := &t.buffers[t.nodes[from].children]
	toBuf := &t.buffers[t.nodes[to].children]

	moved := false
	for i := int32(0); i < fromBuf.count; {
		if fromBuf.count <= 1 || int(toBuf.count) >= t.maxChildren {
			break
		}

		id := fromBuf.ids[i]
		c := t.items[id].Bound().Centroid()
		if c.DistanceSq(centerTo) < c.DistanceSq(centerFrom) {
			fromBuf.remove(id)
			toBuf.append(id)
			t.itemLeaf[id] = to
			moved = true
			continue // the removed slot now holds another id
		}
		i++
	}
	return moved
}

// swapBetween exchanges item pairs between the two leaves, worst placed
// first, accepting a swap only if it strictly reduces the combined
// assignment cost of both leaves.
func (t *Tree[T, B]) swapBetween(a, b int32) bool {
	centerA := t.nodes[a].bound.Centroid()
	centerB := t.nodes[b].bound.Centroid()

	bufA := &t.buffers[t.nodes[a].children]
	bufB := &t.buffers[t.nodes[b].children]
	if bufA.count == 0 || bufB.count == 0 {
		return false
	}

	idsA := append([]uint64(nil), bufA.slice()...)
	idsB := append([]uint64(nil), bufB.slice()...)
	sort.Slice(idsA, func(i, j int) bool {
		return t.items[idsA[i]].Bound().Centroid().DistanceSq(centerA) >
			t.items[idsA[j]].Bound().Centroid().DistanceSq(centerA)
	})
	sort.Slice(idsB, func(i, j int) bool {
		return t.items[idsB[i]].Bound().Centroid().DistanceSq(centerB) >
			t.items[idsB[j]].Bound().Centroid().DistanceSq(centerB)
	})

	swapped := false
	n := len(idsA)
	if len(idsB) < n {
		n = len(idsB)
	}
	for i := 0; i < n; i++ {
		ca := t.items[idsA[i]].Bound().Centroid()
		cb := t.items[idsB[i]].Bound().Centroid()

		current := ca.DistanceSq(centerA) + cb.DistanceSq(centerB)
		exchanged := ca.DistanceSq(centerB) + cb.DistanceSq(centerA)
		if exchanged >= current {
			break
		}

		bufA.remove(idsA[i])
		bufB.remove(idsB[i])
		bufA.append(idsB[i])
		bufB.append(idsA[i])
		t.itemLeaf[idsA[i]] = b
		t.itemLeaf[idsB[i]] = a
		swapped = true
	}
	return swapped
}

// tryRotation samples a random node and evaluates re-parenting it against
// its uncle, an AVL-style restructuring compared by spatial cost instead of
// height.
func (t *Tree[T, B]) tryRotation() {
	if len(t.nodes) < 4 {
		return
	}

	n := int32(t.rng.Intn(len(t.nodes)))
	p := t.nodes[n].parent
	if p < 0 {
		return
	}
	g := t.nodes[p].parent
	if g < 0 {
		return
	}

	s := t.siblingOf(n)
	uncle := t.siblingOf(p)

	current := t.nodes[n].bound.Union(t.nodes[s].bound).Cost()
	// n ↔ uncle: the parent would hold (s, uncle)
	swapN := t.nodes[s].bound.Union(t.nodes[uncle].bound).Cost()
	// s ↔ uncle: the parent would hold (n, uncle)
	swapS := t.nodes[n].bound.Union(t.nodes[uncle].bound).Cost()

	switch {
	case swapN < current && swapN <= swapS:
		t.rotate(g, p, n, uncle)
		instrumentOptimizeImprovement(t.label, current-swapN)
	case swapS < current:
		t.rotate(g, p, s, uncle)
		instrumentOptimizeImprovement(t.label, current-swapS)
	}
}

// rotate exchanges child (under p) with uncle (under g), then refreshes the
// affected cached bounds.
func (t *Tree[T, B]) rotate(g, p, child, uncle int32) {
	gn := &t.nodes[g]
	if gn.left == uncle {
		gn.left = child
	} else {
		gn.right = child
	}

	pn := &t.nodes[p]
	if pn.left == child {
		pn.left = uncle
	} else {
		pn.right = uncle
	}

	t.nodes[child].parent = g
	t.nodes[uncle].parent = p

	pn.bound = t.nodes[pn.left].bound.Union(t.nodes[pn.right].bound)
	t.propagateUp(g)

	instrumentOptimize(t.label, optimizeRotation)
}
