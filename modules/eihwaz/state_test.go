package eihwaz

import (
	"testing"

	"github.com/aukilabs/yggdrasil/geom"
	"github.com/aukilabs/yggdrasil/models"
	"github.com/aukilabs/yggdrasil/protocol"
	"github.com/stretchr/testify/require"
)

func newTestVolume(id uint64, center geom.Vector3) *models.Volume {
	v := &models.Volume{ID: id}
	v.SetShape(protocol.VolumeShape{
		Center:  center,
		Extents: geom.Vector3{X: 0.5, Y: 0.5, Z: 0.5},
	})
	return v
}

func TestStateAdd(t *testing.T) {
	s := NewState(8)

	s.Add(newTestVolume(1, geom.Vector3{}))
	s.Add(newTestVolume(2, geom.Vector3{X: 10}))

	volumes, boxNodes, ballNodes := s.Stats()
	require.Equal(t, 2, volumes)
	require.NotZero(t, boxNodes)
	require.NotZero(t, ballNodes)
}

func TestStateRemove(t *testing.T) {
	s := NewState(8)

	volume := newTestVolume(1, geom.Vector3{})
	s.Add(volume)
	require.True(t, s.Remove(volume))
	require.False(t, s.Remove(volume))

	volumes, _, _ := s.Stats()
	require.Zero(t, volumes)
}

func TestStateSearchBox(t *testing.T) {
	s := NewState(32)

	for i := 0; i < 10; i++ {
		s.Add(newTestVolume(uint64(i), geom.Vector3{X: float32(i) * 3}))
	}

	t.Run("overlapping", func(t *testing.T) {
		ids := s.SearchBox(geom.NewBox(
			geom.Vector3{X: -1, Y: -1, Z: -1},
			geom.Vector3{X: 7, Y: 1, Z: 1},
		), false)
		require.ElementsMatch(t, []uint64{0, 1, 2}, ids)
	})

	t.Run("contained", func(t *testing.T) {
		ids := s.SearchBox(geom.NewBox(
			geom.Vector3{X: 2, Y: -1, Z: -1},
			geom.Vector3{X: 7, Y: 1, Z: 1},
		), true)
		require.ElementsMatch(t, []uint64{1, 2}, ids)
	})
}

func TestStateSearchSphere(t *testing.T) {
	s := NewState(32)

	for i := 0; i < 10; i++ {
		s.Add(newTestVolume(uint64(i), geom.Vector3{X: float32(i) * 3}))
	}

	ids := s.SearchSphere(geom.NewSphere(geom.Vector3{X: 3}, 2), false)
	require.ElementsMatch(t, []uint64{1}, ids)
}

func TestStateUpdate(t *testing.T) {
	s := NewState(8)

	volume := newTestVolume(1, geom.Vector3{})
	s.Add(volume)

	volume.SetShape(protocol.VolumeShape{
		Center:  geom.Vector3{X: 20},
		Extents: geom.Vector3{X: 0.5, Y: 0.5, Z: 0.5},
	})
	s.Update(volume)

	ids := s.SearchBox(geom.NewBox(
		geom.Vector3{X: 19, Y: -1, Z: -1},
		geom.Vector3{X: 21, Y: 1, Z: 1},
	), false)
	require.ElementsMatch(t, []uint64{1}, ids)
}

func TestStateUpdateBatch(t *testing.T) {
	s := NewState(32)

	volumes := make([]*models.Volume, 10)
	for i := range volumes {
		volumes[i] = newTestVolume(uint64(i), geom.Vector3{X: float32(i) * 3})
		s.Add(volumes[i])
	}

	for i, v := range volumes {
		v.SetShape(protocol.VolumeShape{
			Center:  geom.Vector3{X: float32(i) * 3, Y: 5},
			Extents: geom.Vector3{X: 0.5, Y: 0.5, Z: 0.5},
		})
	}
	s.UpdateBatch(volumes)

	ids := s.SearchSphere(geom.NewSphere(geom.Vector3{Y: 5}, 2), false)
	require.ElementsMatch(t, []uint64{0}, ids)
}

func TestStateRemoveBatch(t *testing.T) {
	s := NewState(32)

	volumes := make([]*models.Volume, 10)
	for i := range volumes {
		volumes[i] = newTestVolume(uint64(i), geom.Vector3{X: float32(i) * 3})
		s.Add(volumes[i])
	}

	require.Equal(t, 5, s.RemoveBatch(volumes[:5]))

	count, _, _ := s.Stats()
	require.Equal(t, 5, count)
}

func TestStateNearest(t *testing.T) {
	s := NewState(32)

	t.Run("empty state returns nothing", func(t *testing.T) {
		require.Nil(t, s.Nearest([]geom.Vector3{{X: 1}}))
	})

	for i := 0; i < 10; i++ {
		s.Add(newTestVolume(uint64(i), geom.Vector3{X: float32(i) * 3}))
	}

	t.Run("one id per point", func(t *testing.T) {
		ids := s.Nearest([]geom.Vector3{
			{X: 0.2},
			{X: 26.8},
		})
		require.Equal(t, []uint64{0, 9}, ids)
	})

	t.Run("serial form matches", func(t *testing.T) {
		s.serialQueries = true
		defer func() { s.serialQueries = false }()

		ids := s.Nearest([]geom.Vector3{
			{X: 0.2},
			{X: 26.8},
		})
		require.Equal(t, []uint64{0, 9}, ids)
	})
}

func TestStateRaycast(t *testing.T) {
	s := NewState(32)

	for i := 0; i < 5; i++ {
		s.Add(newTestVolume(uint64(i), geom.Vector3{X: float32(i) * 3}))
	}

	hits := s.Raycast(geom.NewRay(
		geom.Vector3{X: -5},
		geom.Vector3{X: 1},
	), 0)
	require.Len(t, hits, 5)
	require.Equal(t, uint64(0), hits[0].VolumeID)
	require.Len(t, hits[0].Points, 2)

	for i := 1; i < len(hits); i++ {
		require.GreaterOrEqual(t, hits[i].Distance, hits[i-1].Distance)
	}
}

func TestStateOptimize(t *testing.T) {
	s := NewState(64)

	for i := 0; i < 50; i++ {
		s.Add(newTestVolume(uint64(i), geom.Vector3{X: float32(i % 10), Z: float32(i / 10)}))
	}
	s.Optimize(100, 100)

	ids := s.SearchBox(geom.NewBox(
		geom.Vector3{X: -10, Y: -10, Z: -10},
		geom.Vector3{X: 20, Y: 10, Z: 20},
	), false)
	require.Len(t, ids, 50)
}
