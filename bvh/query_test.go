package bvh

import (
	"testing"

	"github.com/aukilabs/yggdrasil/geom"
	"github.com/stretchr/testify/require"
)

func bruteForce[T Item[B], B Bound[B]](items []T, match func(B) bool) map[uint64]struct{} {
	out := make(map[uint64]struct{})
	for _, item := range items {
		if match(item.Bound()) {
			out[item.ID()] = struct{}{}
		}
	}
	return out
}

func requireSameIDs[T Item[B], B Bound[B]](t *testing.T, want map[uint64]struct{}, got []T) {
	t.Helper()
	require.Equal(t, len(want), len(got))
	for _, item := range got {
		require.Contains(t, want, item.ID())
	}
}

func TestSearchBoxAgainstBruteForce(t *testing.T) {
	items := randomBoxItems(21, 400, 60)
	tr := NewBoxTree[boxItem](128, 6)
	for _, item := range items {
		require.True(t, tr.Insert(item))
	}

	regions := []geom.Box{
		geom.NewBox(geom.Vector3{X: -10, Y: -10, Z: -10}, geom.Vector3{X: 10, Y: 10, Z: 10}),
		geom.NewBox(geom.Vector3{X: -60, Y: -60, Z: -60}, geom.Vector3{X: 60, Y: 60, Z: 60}),
		geom.NewBox(geom.Vector3{X: 55, Y: 55, Z: 55}, geom.Vector3{X: 56, Y: 56, Z: 56}),
		geom.NewBox(geom.Vector3{X: 500, Y: 500, Z: 500}, geom.Vector3{X: 600, Y: 600, Z: 600}),
	}

	for _, region := range regions {
		t.Run("contained", func(t *testing.T) {
			want := bruteForce(items, func(b geom.Box) bool { return b.InsideBox(region) })
			requireSameIDs(t, want, tr.SearchBoxContained(region))
		})
		t.Run("overlapping", func(t *testing.T) {
			want := bruteForce(items, func(b geom.Box) bool { return b.IntersectsBox(region) })
			requireSameIDs(t, want, tr.SearchBoxOverlapping(region))
		})
	}
}

func TestSearchSphereAgainstBruteForce(t *testing.T) {
	items := randomBallItems(22, 400, 60)
	tr := NewBallTree[ballItem](128, 6)
	for _, item := range items {
		require.True(t, tr.Insert(item))
	}

	regions := []geom.Sphere{
		geom.NewSphere(geom.Vector3{}, 15),
		geom.NewSphere(geom.Vector3{X: 30, Y: -30, Z: 10}, 25),
		geom.NewSphere(geom.Vector3{}, 200),
		geom.NewSphere(geom.Vector3{X: 500}, 1),
	}

	for _, region := range regions {
		t.Run("contained", func(t *testing.T) {
			want := bruteForce(items, func(b geom.Sphere) bool { return b.InsideSphere(region) })
			requireSameIDs(t, want, tr.SearchSphereContained(region))
		})
		t.Run("overlapping", func(t *testing.T) {
			want := bruteForce(items, func(b geom.Sphere) bool { return b.IntersectsSphere(region) })
			requireSameIDs(t, want, tr.SearchSphereOverlapping(region))
		})
	}
}

func TestSearchMixedShapeRegions(t *testing.T) {
	// sphere regions against a box-tree and box regions against a ball-tree
	boxes := randomBoxItems(23, 200, 40)
	boxTree := NewBoxTree[boxItem](64, 5)
	for _, item := range boxes {
		require.True(t, boxTree.Insert(item))
	}

	sphereRegion := geom.NewSphere(geom.Vector3{X: 5, Y: -5, Z: 0}, 20)
	want := bruteForce(boxes, func(b geom.Box) bool { return b.IntersectsSphere(sphereRegion) })
	requireSameIDs(t, want, boxTree.SearchSphereOverlapping(sphereRegion))

	balls := randomBallItems(23, 200, 40)
	ballTree := NewBallTree[ballItem](64, 5)
	for _, item := range balls {
		require.True(t, ballTree.Insert(item))
	}

	boxRegion := geom.NewBox(geom.Vector3{X: -25, Y: -25, Z: -25}, geom.Vector3{X: 5, Y: 5, Z: 5})
	wantBalls := bruteForce(balls, func(b geom.Sphere) bool { return b.InsideBox(boxRegion) })
	requireSameIDs(t, wantBalls, ballTree.SearchBoxContained(boxRegion))
}

func TestSearchPolygon(t *testing.T) {
	items := randomBoxItems(24, 300, 50)
	tr := NewBoxTree[boxItem](64, 6)
	for _, item := range items {
		require.True(t, tr.Insert(item))
	}

	t.Run("l-shape", func(t *testing.T) {
		poly := geom.NewPolygon([]geom.Vector2{
			{X: -40, Y: -40}, {X: 40, Y: -40}, {X: 40, Y: 0},
			{X: 0, Y: 0}, {X: 0, Y: 40}, {X: -40, Y: 40},
		})

		want := bruteForce(items, func(b geom.Box) bool {
			return poly.ContainsPoint(b.Centroid().XZ())
		})
		requireSameIDs(t, want, tr.SearchPolygon(poly))
	})

	t.Run("degenerate polygon matches nothing", func(t *testing.T) {
		require.Empty(t, tr.SearchPolygon(geom.NewPolygon([]geom.Vector2{{X: 0, Y: 0}, {X: 1, Y: 1}})))
	})
}

func TestFrustumQuery(t *testing.T) {
	items := randomBoxItems(25, 300, 50)
	tr := NewBoxTree[boxItem](64, 6)
	for _, item := range items {
		require.True(t, tr.Insert(item))
	}

	// a wedge opening along +x
	f := geom.Frustum{
		geom.PlaneThrough(geom.Vector3{}, geom.Vector3{X: 1, Y: 0, Z: 0}),
		geom.PlaneThrough(geom.Vector3{}, geom.Vector3{X: 0.5, Y: 0, Z: 1}.Normalized()),
		geom.PlaneThrough(geom.Vector3{}, geom.Vector3{X: 0.5, Y: 0, Z: -1}.Normalized()),
	}

	want := bruteForce(items, func(b geom.Box) bool { return b.SideOfFrustum(f) != geom.SideOutside })
	requireSameIDs(t, want, tr.FrustumQuery(f))
}

func TestShapeCast(t *testing.T) {
	items := randomBoxItems(26, 300, 50)
	tr := NewBoxTree[boxItem](64, 6)
	for _, item := range items {
		require.True(t, tr.Insert(item))
	}

	c := geom.NewCapsule(geom.Vector3{X: -60, Y: 0, Z: 0}, geom.Vector3{X: 60, Y: 0, Z: 0}, 5)
	want := bruteForce(items, func(b geom.Box) bool { return b.IntersectsCapsule(c) })
	requireSameIDs(t, want, tr.ShapeCast(c))
}
