package models

import (
	"sync"

	"github.com/aukilabs/yggdrasil/geom"
	"github.com/aukilabs/yggdrasil/protocol"
)

// Volume is a session-scoped bounded item indexed by the spatial trees. Its
// shape is guarded because broadcast encoding may read it while the owning
// message loop writes it.
type Volume struct {
	ID            uint64
	ParticipantID uint32

	mutex   sync.RWMutex
	center  geom.Vector3
	extents geom.Vector3
	radius  float32
}

// SetShape replaces the volume geometry. A non-positive radius is derived
// from the extents so the box and sphere forms stay consistent.
func (v *Volume) SetShape(s protocol.VolumeShape) {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.center = s.Center
	v.extents = s.Extents
	if s.Radius > 0 {
		v.radius = s.Radius
	} else {
		v.radius = s.Extents.Length()
	}
}

// Box returns the axis-aligned box form of the volume.
func (v *Volume) Box() geom.Box {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	return geom.BoxAround(v.center, v.extents)
}

// Sphere returns the bounding sphere form of the volume.
func (v *Volume) Sphere() geom.Sphere {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	return geom.NewSphere(v.center, v.radius)
}

func (v *Volume) Shape() protocol.VolumeShape {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	return protocol.VolumeShape{
		Center:  v.center,
		Extents: v.extents,
		Radius:  v.radius,
	}
}

func (v *Volume) ToWire() protocol.Volume {
	return protocol.Volume{
		ID:            v.ID,
		ParticipantID: v.ParticipantID,
		Shape:         v.Shape(),
	}
}

func VolumesToWire(volumes []*Volume) []protocol.Volume {
	wire := make([]protocol.Volume, len(volumes))
	for i, v := range volumes {
		wire[i] = v.ToWire()
	}
	return wire
}
