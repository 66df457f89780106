package bvh

import (
	"testing"

	"github.com/aukilabs/yggdrasil/geom"
	"github.com/stretchr/testify/require"
)

func TestRaycastRow(t *testing.T) {
	tr := NewBoxTree[boxItem](32, 4)
	for i := 0; i < 10; i++ {
		require.True(t, tr.Insert(unitBoxAt(uint64(i), geom.Vector3{X: float32(i) * 3})))
	}

	t.Run("hits in ascending distance", func(t *testing.T) {
		hits := tr.Raycast(geom.NewRay(geom.Vector3{X: -5}, geom.Vector3{X: 1}), 100, nil)

		require.Len(t, hits, 10)
		for i, hit := range hits {
			require.Equal(t, uint64(i), hit.Item.ID())
			require.Equal(t, 2, hit.PointCount)
			if i > 0 {
				require.Greater(t, hit.Distance, hits[i-1].Distance)
			}
			require.InDelta(t, float64(hit.Points[0].X), float64(float32(i)*3-0.5), 1e-4)
			require.InDelta(t, float64(hit.Points[1].X), float64(float32(i)*3+0.5), 1e-4)
		}
	})

	t.Run("max distance truncates", func(t *testing.T) {
		hits := tr.Raycast(geom.NewRay(geom.Vector3{X: -5}, geom.Vector3{X: 1}), 11, nil)
		// boxes 0 and 1 are fully crossed, box 2 only entered
		require.Len(t, hits, 3)
		require.Equal(t, 2, hits[0].PointCount)
		require.Equal(t, 2, hits[1].PointCount)
		require.Equal(t, 1, hits[2].PointCount)
	})

	t.Run("origin inside an item yields its exit point", func(t *testing.T) {
		hits := tr.Raycast(geom.NewRay(geom.Vector3{X: 0}, geom.Vector3{X: 1}), 1, nil)

		require.Len(t, hits, 1)
		require.Equal(t, uint64(0), hits[0].Item.ID())
		require.Equal(t, 1, hits[0].PointCount)
		require.InDelta(t, 0.5, float64(hits[0].Points[0].X), 1e-4)
	})

	t.Run("miss", func(t *testing.T) {
		require.Empty(t, tr.Raycast(geom.NewRay(geom.Vector3{X: -5, Y: 10}, geom.Vector3{X: 1}), 100, nil))
	})

	t.Run("custom comparer reverses the order", func(t *testing.T) {
		farthestFirst := func(a, b RayHit[boxItem]) bool { return a.Distance > b.Distance }
		hits := tr.Raycast(geom.NewRay(geom.Vector3{X: -5}, geom.Vector3{X: 1}), 100, farthestFirst)

		require.Len(t, hits, 10)
		require.Equal(t, uint64(9), hits[0].Item.ID())
		require.Equal(t, uint64(0), hits[9].Item.ID())
	})
}

func TestRaycastAgainstBruteForce(t *testing.T) {
	items := randomBallItems(31, 300, 50)
	tr := NewBallTree[ballItem](64, 6)
	for _, item := range items {
		require.True(t, tr.Insert(item))
	}

	ray := geom.NewRay(geom.Vector3{X: -80, Y: 1, Z: -2}, geom.Vector3{X: 1, Y: 0.02, Z: 0.03}.Normalized())
	const maxDistance = 200

	want := bruteForce(items, func(b geom.Sphere) bool {
		_, _, n := b.IntersectRay(ray, maxDistance)
		return n > 0
	})

	hits := tr.Raycast(ray, maxDistance, nil)
	require.Equal(t, len(want), len(hits))
	for i, hit := range hits {
		require.Contains(t, want, hit.Item.ID())
		if i > 0 {
			require.GreaterOrEqual(t, hit.Distance, hits[i-1].Distance)
		}
	}
}
