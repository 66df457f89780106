package bvh

import "fmt"

// validate walks the whole arena and checks the structural invariants the
// mutation paths maintain. It exists for tests; production paths never call
// it.
func (t *Tree[T, B]) validate() error {
	if len(t.nodes) == 0 {
		return fmt.Errorf("empty node arena")
	}
	if t.nodes[0].parent != -1 {
		return fmt.Errorf("root has parent %d", t.nodes[0].parent)
	}

	seenItems := make(map[uint64]int32, len(t.items))
	visited := make([]bool, len(t.nodes))

	var walk func(idx int32) error
	walk = func(idx int32) error {
		if idx < 0 || int(idx) >= len(t.nodes) {
			return fmt.Errorf("child index %d out of range", idx)
		}
		if visited[idx] {
			return fmt.Errorf("node %d reached twice", idx)
		}
		visited[idx] = true
		n := &t.nodes[idx]

		if n.isLeaf() {
			if n.left != -1 || n.right != -1 {
				return fmt.Errorf("leaf %d has child links", idx)
			}
			if _, ok := t.leaves[idx]; !ok {
				return fmt.Errorf("leaf %d missing from leaf set", idx)
			}
			if int(n.children) >= len(t.buffers) {
				return fmt.Errorf("leaf %d buffer index %d out of range", idx, n.children)
			}

			buf := &t.buffers[n.children]
			if buf.count == 0 && idx != 0 {
				return fmt.Errorf("non-root leaf %d is empty", idx)
			}
			if int(buf.count) > t.maxChildren {
				return fmt.Errorf("leaf %d holds %d items, max %d", idx, buf.count, t.maxChildren)
			}
			for _, id := range buf.slice() {
				item, ok := t.items[id]
				if !ok {
					return fmt.Errorf("leaf %d lists unknown item %d", idx, id)
				}
				if owner, ok := t.itemLeaf[id]; !ok || owner != idx {
					return fmt.Errorf("item %d owner map says %d, found in leaf %d", id, owner, idx)
				}
				if _, dup := seenItems[id]; dup {
					return fmt.Errorf("item %d listed twice", id)
				}
				seenItems[id] = idx
				if !boundCovers(n.bound, item.Bound()) {
					return fmt.Errorf("leaf %d bound does not cover item %d", idx, id)
				}
			}
			return nil
		}

		if n.left < 0 || n.right < 0 {
			return fmt.Errorf("internal node %d lacks a child", idx)
		}
		for _, c := range [2]int32{n.left, n.right} {
			if int(c) >= len(t.nodes) {
				return fmt.Errorf("node %d child %d out of range", idx, c)
			}
			if t.nodes[c].parent != idx {
				return fmt.Errorf("node %d child %d has parent %d", idx, c, t.nodes[c].parent)
			}
			if !boundCovers(n.bound, t.nodes[c].bound) {
				return fmt.Errorf("node %d bound does not cover child %d", idx, c)
			}
		}
		if err := walk(n.left); err != nil {
			return err
		}
		return walk(n.right)
	}

	if err := walk(0); err != nil {
		return err
	}

	for i, ok := range visited {
		if !ok {
			return fmt.Errorf("node %d orphaned in arena", i)
		}
	}
	if len(seenItems) != len(t.items) {
		return fmt.Errorf("%d items stored, %d reachable", len(t.items), len(seenItems))
	}
	if len(seenItems) != len(t.itemLeaf) {
		return fmt.Errorf("%d items reachable, %d in owner map", len(seenItems), len(t.itemLeaf))
	}
	return nil
}

// boundCovers is Contains with a little slack for the float32 unions
// accumulated along deep hierarchies.
func boundCovers[B Bound[B]](outer, inner B) bool {
	if outer.Contains(inner) {
		return true
	}
	c := inner.Centroid()
	return outer.MinDistanceSq(c) <= 1e-3 && outer.Union(inner).Cost() <= outer.Cost()*(1+1e-3)+1e-3
}
