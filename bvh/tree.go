package bvh

import (
	"math/rand"
	"time"

	"github.com/aukilabs/yggdrasil/geom"
)

// Tree is the dynamic spatial index. It is arena-backed: nodes and children
// buffers live in flat arrays addressed by integer index, which keeps
// rebalancing to O(1) index reassignment and makes the tree shareable by
// reference across parallel read-only work.
type Tree[T Item[B], B Bound[B]] struct {
	nodes       []node[B]
	buffers     []childrenBuf
	freeBuffers []int32

	items    map[uint64]T
	itemLeaf map[uint64]int32
	leaves   map[int32]struct{}

	maxChildren int
	label       string
	rng         *rand.Rand

	enclose func([]B) B
	split   func([]B) ([]int, []int)
}

// NewBoxTree creates a box-tree variant indexing axis-aligned bounding boxes.
// capacity pre-sizes the arenas; maxChildren bounds leaf fan-out (default 16,
// ceiling 30). Leaf overflow is divided with the Guttman quadratic split.
func NewBoxTree[T Item[geom.Box]](capacity, maxChildren int) *Tree[T, geom.Box] {
	t := newTree[T, geom.Box](capacity, maxChildren, "box")
	t.enclose = geom.EncloseBoxes
	t.split = func(bounds []geom.Box) ([]int, []int) {
		return guttmanSplit(bounds, t.maxChildren)
	}
	return t
}

// NewBallTree creates a ball-tree variant indexing bounding spheres. Leaf
// bounds are recomputed as centroid plus covering radius, and leaf overflow
// is divided at the median of a regression line through the entry centers.
func NewBallTree[T Item[geom.Sphere]](capacity, maxChildren int) *Tree[T, geom.Sphere] {
	t := newTree[T, geom.Sphere](capacity, maxChildren, "ball")
	t.enclose = geom.EncloseSpheres
	t.split = medianSplit[geom.Sphere]
	return t
}

func newTree[T Item[B], B Bound[B]](capacity, maxChildren int, label string) *Tree[T, B] {
	if maxChildren <= 0 {
		maxChildren = DefaultMaxChildren
	}
	if maxChildren > MaxChildrenLimit {
		maxChildren = MaxChildrenLimit
	}
	if capacity < 1 {
		capacity = 1
	}

	t := &Tree[T, B]{
		nodes:       make([]node[B], 0, 2*capacity),
		buffers:     make([]childrenBuf, 0, capacity),
		items:       make(map[uint64]T, capacity),
		itemLeaf:    make(map[uint64]int32, capacity),
		leaves:      make(map[int32]struct{}, capacity),
		maxChildren: maxChildren,
		label:       label,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	// an empty tree is a single degenerate leaf with an empty children list
	t.nodes = append(t.nodes, node[B]{parent: -1, left: -1, right: -1, children: 0})
	t.buffers = append(t.buffers, childrenBuf{})
	t.leaves[0] = struct{}{}
	return t
}

// Len returns the number of indexed items.
func (t *Tree[T, B]) Len() int {
	return len(t.items)
}

// MaxChildren returns the configured leaf fan-out bound.
func (t *Tree[T, B]) MaxChildren() int {
	return t.maxChildren
}

// NodeCount returns the number of active arena slots.
func (t *Tree[T, B]) NodeCount() int {
	return len(t.nodes)
}

// Node is a read-only view of an arena slot, exposed for introspection and
// debugging.
type Node[B any] struct {
	Bound   B
	Parent  int32
	Left    int32
	Right   int32
	Leaf    bool
	ItemIDs []uint64
}

// NodeAt returns a copy of the node at the given arena index.
func (t *Tree[T, B]) NodeAt(idx int) (Node[B], bool) {
	if idx < 0 || idx >= len(t.nodes) {
		return Node[B]{}, false
	}

	n := &t.nodes[idx]
	view := Node[B]{
		Bound:  n.bound,
		Parent: n.parent,
		Left:   n.left,
		Right:  n.right,
		Leaf:   n.isLeaf(),
	}
	if view.Leaf {
		view.ItemIDs = append([]uint64(nil), t.buffers[n.children].slice()...)
	}
	return view, true
}

// ItemByID returns the stored item with the given identity.
func (t *Tree[T, B]) ItemByID(id uint64) (T, bool) {
	item, ok := t.items[id]
	return item, ok
}

// Dispose releases all backing storage. Calling it again is a no-op; the
// tree must not be used afterwards.
func (t *Tree[T, B]) Dispose() {
	t.nodes = nil
	t.buffers = nil
	t.freeBuffers = nil
	t.items = nil
	t.itemLeaf = nil
	t.leaves = nil
}

// Insert adds the item to the index. Inserting an identity that is already
// present is a benign no-op returning false.
func (t *Tree[T, B]) Insert(item T) bool {
	id := item.ID()
	if _, ok := t.items[id]; ok {
		return false
	}

	leaf := t.chooseLeaf(item.Bound().Centroid())
	t.items[id] = item
	t.itemLeaf[id] = leaf
	buf := &t.buffers[t.nodes[leaf].children]
	buf.append(id)

	if int(buf.count) > t.maxChildren {
		t.splitLeaf(leaf)
	} else {
		t.refitLeaf(leaf)
		t.propagateUp(t.nodes[leaf].parent)
	}

	instrumentMutation(t.label, mutationInsert)
	return true
}

// chooseLeaf descends from the root picking at each internal node the child
// whose cached center is nearer to the insertion point. This is a cheap proxy
// for minimal-enlargement cost; sub-optimal placements are expected and
// corrected later by Optimize.
func (t *Tree[T, B]) chooseLeaf(center geom.Vector3) int32 {
	cur := int32(0)
	for !t.nodes[cur].isLeaf() {
		n := &t.nodes[cur]
		dl := center.DistanceSq(t.nodes[n.left].bound.Centroid())
		dr := center.DistanceSq(t.nodes[n.right].bound.Centroid())
		if dl <= dr {
			cur = n.left
		} else {
			cur = n.right
		}
	}
	return cur
}

// Remove deletes the item from the index. Removing an absent identity is a
// benign no-op returning false.
func (t *Tree[T, B]) Remove(item T) bool {
	id := item.ID()
	leaf, ok := t.itemLeaf[id]
	if !ok {
		return false
	}

	buf := &t.buffers[t.nodes[leaf].children]
	buf.remove(id)
	delete(t.items, id)
	delete(t.itemLeaf, id)

	parent := t.nodes[leaf].parent
	if parent < 0 {
		t.refitLeaf(leaf)
		instrumentMutation(t.label, mutationRemove)
		return true
	}

	sibling := t.siblingOf(leaf)
	sib := &t.nodes[sibling]
	switch {
	case sib.isLeaf() && int(buf.count)+int(t.buffers[sib.children].count) <= t.maxChildren:
		t.mergeLeaves(parent, leaf, sibling)

	case buf.count == 0:
		// the sibling is internal; promote it into the parent's place
		t.collapse(parent, leaf, sibling)

	default:
		// an under-capacity leaf with an internal sibling is left as-is, a
		// deliberate imbalance corrected opportunistically by Optimize
	}

	instrumentMutation(t.label, mutationRemove)
	return true
}

func (t *Tree[T, B]) siblingOf(idx int32) int32 {
	p := &t.nodes[t.nodes[idx].parent]
	if p.left == idx {
		return p.right
	}
	return p.left
}

// mergeLeaves combines both children lists into the parent's slot and turns
// the parent into a leaf.
func (t *Tree[T, B]) mergeLeaves(parent, leaf, sibling int32) {
	bufIdx := t.allocBuffer()
	buf := &t.buffers[bufIdx]

	for _, id := range t.buffers[t.nodes[leaf].children].slice() {
		buf.append(id)
		t.itemLeaf[id] = parent
	}
	for _, id := range t.buffers[t.nodes[sibling].children].slice() {
		buf.append(id)
		t.itemLeaf[id] = parent
	}

	t.freeBuffer(t.nodes[leaf].children)
	t.freeBuffer(t.nodes[sibling].children)

	p := &t.nodes[parent]
	p.left, p.right = -1, -1
	p.children = bufIdx
	delete(t.leaves, leaf)
	delete(t.leaves, sibling)
	t.leaves[parent] = struct{}{}

	t.refitLeaf(parent)
	t.propagateUp(t.nodes[parent].parent)
	t.freeNodePair(leaf, sibling)

	instrumentMutation(t.label, mutationMerge)
}

// collapse removes an emptied leaf whose sibling is internal by promoting
// the sibling subtree into the parent's position.
func (t *Tree[T, B]) collapse(parent, leaf, sibling int32) {
	t.freeBuffer(t.nodes[leaf].children)
	delete(t.leaves, leaf)

	g := t.nodes[parent].parent
	if g < 0 {
		// the parent is the root: move the sibling's record into slot 0
		sib := t.nodes[sibling]
		sib.parent = -1
		t.nodes[0] = sib
		t.nodes[sib.left].parent = 0
		t.nodes[sib.right].parent = 0
		t.freeNodePair(leaf, sibling)
		instrumentMutation(t.label, mutationCollapse)
		return
	}

	gn := &t.nodes[g]
	if gn.left == parent {
		gn.left = sibling
	} else {
		gn.right = sibling
	}
	t.nodes[sibling].parent = g
	t.freeNodePair(parent, leaf)

	instrumentMutation(t.label, mutationCollapse)
}

// Update replaces the stored value of an already-present item and extends,
// never shrinks, the owning leaf's cached bound. Updating an absent identity
// is a benign no-op returning false. Update never changes tree shape.
func (t *Tree[T, B]) Update(item T) bool {
	id := item.ID()
	leaf, ok := t.itemLeaf[id]
	if !ok {
		return false
	}

	t.items[id] = item

	b := item.Bound()
	n := &t.nodes[leaf]
	if !n.bound.Contains(b) {
		n.bound = n.bound.Union(b)
		t.propagateUp(n.parent)
	}

	instrumentMutation(t.label, mutationUpdate)
	return true
}

// refitLeaf recomputes the leaf's cached bound from its items.
func (t *Tree[T, B]) refitLeaf(leaf int32) {
	buf := &t.buffers[t.nodes[leaf].children]
	bounds := make([]B, 0, buf.count)
	for _, id := range buf.slice() {
		bounds = append(bounds, t.items[id].Bound())
	}
	t.nodes[leaf].bound = t.enclose(bounds)
}

// propagateUp recomputes each ancestor's bound as the exact union of its two
// children, stopping as soon as an ancestor's bound is unchanged.
func (t *Tree[T, B]) propagateUp(idx int32) {
	for idx >= 0 {
		n := &t.nodes[idx]
		union := t.nodes[n.left].bound.Union(t.nodes[n.right].bound)
		if union.Equal(n.bound) {
			return
		}
		n.bound = union
		idx = n.parent
	}
}

// splitLeaf divides an overflowing leaf: the leaf's slot becomes an internal
// node, its children buffer is freed and two new node and buffer slots take
// over the divided entries.
func (t *Tree[T, B]) splitLeaf(leaf int32) {
	bufIdx := t.nodes[leaf].children
	ids := append([]uint64(nil), t.buffers[bufIdx].slice()...)
	bounds := make([]B, len(ids))
	for i, id := range ids {
		bounds[i] = t.items[id].Bound()
	}

	left, right := t.split(bounds)

	lNode := t.allocNode()
	rNode := t.allocNode()
	lBuf := t.allocBuffer()
	rBuf := t.allocBuffer()
	t.freeBuffer(bufIdx)

	n := &t.nodes[leaf]
	n.children = -1
	n.left, n.right = lNode, rNode
	delete(t.leaves, leaf)

	t.fillLeaf(lNode, lBuf, leaf, ids, bounds, left)
	t.fillLeaf(rNode, rBuf, leaf, ids, bounds, right)

	t.nodes[leaf].bound = t.nodes[lNode].bound.Union(t.nodes[rNode].bound)
	t.propagateUp(t.nodes[leaf].parent)

	instrumentMutation(t.label, mutationSplit)
}

func (t *Tree[T, B]) fillLeaf(nodeIdx, bufIdx, parent int32, ids []uint64, bounds []B, group []int) {
	buf := &t.buffers[bufIdx]
	groupBounds := make([]B, 0, len(group))
	for _, gi := range group {
		buf.append(ids[gi])
		t.itemLeaf[ids[gi]] = nodeIdx
		groupBounds = append(groupBounds, bounds[gi])
	}

	t.nodes[nodeIdx] = node[B]{
		bound:    t.enclose(groupBounds),
		parent:   parent,
		left:     -1,
		right:    -1,
		children: bufIdx,
	}
	t.leaves[nodeIdx] = struct{}{}
}
