package bvh

import (
	"math"
	"math/rand"
	"testing"

	"github.com/aukilabs/yggdrasil/geom"
	"github.com/stretchr/testify/require"
)

func bruteNearest[T Item[B], B Bound[B]](items []T, p geom.Vector3) (T, float32) {
	var best T
	bestD := float32(math.Inf(1))
	for _, item := range items {
		if d := item.Bound().MinDistanceSq(p); d < bestD {
			bestD = d
			best = item
		}
	}
	return best, bestD
}

func TestNearestNeighborAgainstBruteForce(t *testing.T) {
	items := randomBoxItems(41, 350, 60)
	tr := NewBoxTree[boxItem](128, 6)
	for _, item := range items {
		require.True(t, tr.Insert(item))
	}

	rng := rand.New(rand.NewSource(41))
	for q := 0; q < 100; q++ {
		p := geom.Vector3{
			X: (rng.Float32()*2 - 1) * 100,
			Y: (rng.Float32()*2 - 1) * 100,
			Z: (rng.Float32()*2 - 1) * 100,
		}

		got, ok := tr.NearestNeighbor(p)
		require.True(t, ok)

		// ties on distance are acceptable either way
		_, wantD := bruteNearest(items, p)
		require.InDelta(t, float64(wantD), float64(got.Bound().MinDistanceSq(p)), 1e-3)
	}
}

func TestNearestNeighborInsidePoint(t *testing.T) {
	tr := NewBallTree[ballItem](8, 4)
	require.True(t, tr.Insert(ballItem{id: 1, sphere: geom.NewSphere(geom.Vector3{X: 5}, 2)}))
	require.True(t, tr.Insert(ballItem{id: 2, sphere: geom.NewSphere(geom.Vector3{X: -5}, 2)}))

	got, ok := tr.NearestNeighbor(geom.Vector3{X: 4})
	require.True(t, ok)
	require.Equal(t, uint64(1), got.ID())
	require.Equal(t, float32(0), got.Bound().MinDistanceSq(geom.Vector3{X: 4}))
}

func TestNearestNeighbors(t *testing.T) {
	items := randomBoxItems(42, 200, 40)
	tr := NewBoxTree[boxItem](64, 6)
	for _, item := range items {
		require.True(t, tr.Insert(item))
	}

	rng := rand.New(rand.NewSource(42))
	points := make([]geom.Vector3, 64)
	for i := range points {
		points[i] = geom.Vector3{
			X: (rng.Float32()*2 - 1) * 60,
			Y: (rng.Float32()*2 - 1) * 60,
			Z: (rng.Float32()*2 - 1) * 60,
		}
	}

	got := tr.NearestNeighbors(points)
	require.Len(t, got, len(points))
	for i, p := range points {
		serial, ok := tr.NearestNeighbor(p)
		require.True(t, ok)
		require.Equal(t, serial.ID(), got[i].ID())
	}

	require.Nil(t, NewBoxTree[boxItem](1, 4).NearestNeighbors(points))
}
