package bvh

const (
	// DefaultMaxChildren is the leaf fan-out used when none is configured.
	DefaultMaxChildren = 16

	// MaxChildrenLimit is the fan-out ceiling imposed by the fixed-capacity
	// children buffers.
	MaxChildrenLimit = 30

	// bufCap leaves one slot above the limit for the transient overflow
	// entry appended right before a split.
	bufCap = 32
)

// node is a record in the flat node arena. A node is either internal (two
// child node indices, children == -1) or a leaf (children buffer index,
// left == right == -1). Every node caches a bound covering its subtree and
// its parent index, -1 for the root.
type node[B any] struct {
	bound    B
	parent   int32
	left     int32
	right    int32
	children int32
}

func (n *node[B]) isLeaf() bool {
	return n.children >= 0
}

// childrenBuf is a fixed-capacity, unordered id list owned by exactly one
// leaf.
type childrenBuf struct {
	ids   [bufCap]uint64
	count int32
}

func (b *childrenBuf) append(id uint64) {
	b.ids[b.count] = id
	b.count++
}

// remove drops the id by swapping in the last entry; the list is unordered.
func (b *childrenBuf) remove(id uint64) bool {
	for i := int32(0); i < b.count; i++ {
		if b.ids[i] == id {
			b.count--
			b.ids[i] = b.ids[b.count]
			return true
		}
	}
	return false
}

func (b *childrenBuf) slice() []uint64 {
	return b.ids[:b.count]
}

func (t *Tree[T, B]) allocNode() int32 {
	t.nodes = append(t.nodes, node[B]{parent: -1, left: -1, right: -1, children: -1})
	return int32(len(t.nodes) - 1)
}

// freeNode vacates a node slot with swap-with-last compaction: the last
// active node moves into the freed slot and every back-reference to it is
// patched. The root at slot 0 is never freed.
func (t *Tree[T, B]) freeNode(idx int32) {
	last := int32(len(t.nodes) - 1)
	if idx != last {
		t.nodes[idx] = t.nodes[last]
		t.patchMovedNode(last, idx)
	}
	t.nodes = t.nodes[:last]
}

// freeNodePair frees two slots, highest index first, so the compaction move
// of the first free cannot invalidate the second index.
func (t *Tree[T, B]) freeNodePair(a, b int32) {
	if a < b {
		a, b = b, a
	}
	t.freeNode(a)
	t.freeNode(b)
}

func (t *Tree[T, B]) patchMovedNode(from, to int32) {
	n := &t.nodes[to]

	if n.parent >= 0 {
		p := &t.nodes[n.parent]
		if p.left == from {
			p.left = to
		} else if p.right == from {
			p.right = to
		}
	}

	if n.isLeaf() {
		delete(t.leaves, from)
		t.leaves[to] = struct{}{}
		for _, id := range t.buffers[n.children].slice() {
			t.itemLeaf[id] = to
		}
		return
	}

	t.nodes[n.left].parent = to
	t.nodes[n.right].parent = to
}

func (t *Tree[T, B]) allocBuffer() int32 {
	if n := len(t.freeBuffers); n > 0 {
		idx := t.freeBuffers[n-1]
		t.freeBuffers = t.freeBuffers[:n-1]
		t.buffers[idx].count = 0
		return idx
	}
	t.buffers = append(t.buffers, childrenBuf{})
	return int32(len(t.buffers) - 1)
}

func (t *Tree[T, B]) freeBuffer(idx int32) {
	t.buffers[idx].count = 0
	t.freeBuffers = append(t.freeBuffers, idx)
}
