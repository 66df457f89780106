package models

import (
	"testing"

	"github.com/aukilabs/yggdrasil/geom"
	"github.com/aukilabs/yggdrasil/protocol"
	"github.com/stretchr/testify/require"
)

func TestVolumeSetShape(t *testing.T) {
	t.Run("explicit radius is kept", func(t *testing.T) {
		volume := &Volume{ID: 1}
		volume.SetShape(protocol.VolumeShape{
			Center:  geom.Vector3{X: 1, Y: 2, Z: 3},
			Extents: geom.Vector3{X: 1, Y: 1, Z: 1},
			Radius:  5,
		})

		shape := volume.Shape()
		require.Equal(t, float32(5), shape.Radius)
	})

	t.Run("radius is derived from extents", func(t *testing.T) {
		volume := &Volume{ID: 1}
		volume.SetShape(protocol.VolumeShape{
			Extents: geom.Vector3{X: 3, Y: 0, Z: 4},
		})

		shape := volume.Shape()
		require.InDelta(t, 5, shape.Radius, 1e-6)
	})
}

func TestVolumeBox(t *testing.T) {
	volume := &Volume{ID: 1}
	volume.SetShape(protocol.VolumeShape{
		Center:  geom.Vector3{X: 10, Y: 0, Z: 0},
		Extents: geom.Vector3{X: 1, Y: 2, Z: 3},
	})

	box := volume.Box()
	require.Equal(t, float32(9), box.Min.X)
	require.Equal(t, float32(11), box.Max.X)
	require.Equal(t, float32(-2), box.Min.Y)
	require.Equal(t, float32(3), box.Max.Z)
}

func TestVolumeSphere(t *testing.T) {
	volume := &Volume{ID: 1}
	volume.SetShape(protocol.VolumeShape{
		Center: geom.Vector3{X: 1, Y: 2, Z: 3},
		Radius: 4,
	})

	sphere := volume.Sphere()
	require.Equal(t, geom.Vector3{X: 1, Y: 2, Z: 3}, sphere.Center)
	require.Equal(t, float32(4), sphere.Radius)
}

func TestVolumeToWire(t *testing.T) {
	volume := &Volume{ID: 7, ParticipantID: 3}
	volume.SetShape(protocol.VolumeShape{Radius: 1})

	wire := volume.ToWire()
	require.Equal(t, uint64(7), wire.ID)
	require.Equal(t, uint32(3), wire.ParticipantID)
	require.Equal(t, float32(1), wire.Shape.Radius)
}

func TestVolumesToWire(t *testing.T) {
	volumes := []*Volume{
		{ID: 1},
		{ID: 2},
	}

	wire := VolumesToWire(volumes)
	require.Len(t, wire, 2)
	require.Equal(t, uint64(1), wire[0].ID)
	require.Equal(t, uint64(2), wire[1].ID)
}
