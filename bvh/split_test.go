package bvh

import (
	"testing"

	"github.com/aukilabs/yggdrasil/geom"
	"github.com/stretchr/testify/require"
)

func requirePartition(t *testing.T, n int, left, right []int) {
	t.Helper()

	require.NotEmpty(t, left)
	require.NotEmpty(t, right)
	require.Equal(t, n, len(left)+len(right))

	seen := make(map[int]struct{}, n)
	for _, i := range append(append([]int(nil), left...), right...) {
		require.GreaterOrEqual(t, i, 0)
		require.Less(t, i, n)
		_, dup := seen[i]
		require.False(t, dup)
		seen[i] = struct{}{}
	}
}

func TestGuttmanSplit(t *testing.T) {
	t.Run("separates distant clusters", func(t *testing.T) {
		bounds := []geom.Box{
			geom.BoxAround(geom.Vector3{X: 0}, geom.Vector3{X: 1, Y: 1, Z: 1}),
			geom.BoxAround(geom.Vector3{X: 1}, geom.Vector3{X: 1, Y: 1, Z: 1}),
			geom.BoxAround(geom.Vector3{X: 100}, geom.Vector3{X: 1, Y: 1, Z: 1}),
			geom.BoxAround(geom.Vector3{X: 101}, geom.Vector3{X: 1, Y: 1, Z: 1}),
		}

		left, right := guttmanSplit(bounds, 4)
		requirePartition(t, len(bounds), left, right)

		groupOf := make(map[int]int)
		for _, i := range left {
			groupOf[i] = 0
		}
		for _, i := range right {
			groupOf[i] = 1
		}
		require.Equal(t, groupOf[0], groupOf[1])
		require.Equal(t, groupOf[2], groupOf[3])
		require.NotEqual(t, groupOf[0], groupOf[2])
	})

	t.Run("caps group size", func(t *testing.T) {
		bounds := make([]geom.Box, 9)
		for i := range bounds {
			bounds[i] = geom.BoxAround(geom.Vector3{X: float32(i)}, geom.Vector3{X: 0.4, Y: 0.4, Z: 0.4})
		}

		left, right := guttmanSplit(bounds, 8)
		requirePartition(t, len(bounds), left, right)
		require.LessOrEqual(t, len(left), 8)
		require.LessOrEqual(t, len(right), 8)
	})
}

func TestMedianSplit(t *testing.T) {
	t.Run("halves along the dominant axis", func(t *testing.T) {
		spheres := []geom.Sphere{
			geom.NewSphere(geom.Vector3{X: -9}, 1),
			geom.NewSphere(geom.Vector3{X: -3}, 1),
			geom.NewSphere(geom.Vector3{X: 3}, 1),
			geom.NewSphere(geom.Vector3{X: 9}, 1),
		}

		left, right := medianSplit(spheres)
		requirePartition(t, len(spheres), left, right)
		require.Len(t, left, 2)
		require.Len(t, right, 2)

		// both halves are contiguous along x
		low := map[int]struct{}{}
		for _, i := range left {
			low[i] = struct{}{}
		}
		_, has0 := low[0]
		_, has1 := low[1]
		_, has2 := low[2]
		_, has3 := low[3]
		require.True(t, has0 == has1 && has2 == has3 && has0 != has2)
	})

	t.Run("odd count", func(t *testing.T) {
		spheres := []geom.Sphere{
			geom.NewSphere(geom.Vector3{Z: 0}, 1),
			geom.NewSphere(geom.Vector3{Z: 5}, 1),
			geom.NewSphere(geom.Vector3{Z: 10}, 1),
		}

		left, right := medianSplit(spheres)
		requirePartition(t, len(spheres), left, right)
	})
}
