package models

import (
	"sync"

	"github.com/aukilabs/yggdrasil/protocol"
)

// A session participant.
//
// Volume ownership is advisory: any session participant can remove a volume,
// so the owned id set is written from multiple connection goroutines and is
// mutex guarded.
type Participant struct {
	ID        uint32
	Responder protocol.ResponseSender

	mutex     sync.Mutex
	volumeIDs map[uint64]struct{}
}

func (p *Participant) AddVolume(v *Volume) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.volumeIDs == nil {
		p.volumeIDs = make(map[uint64]struct{})
	}
	p.volumeIDs[v.ID] = struct{}{}
}

func (p *Participant) RemoveVolume(v *Volume) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	delete(p.volumeIDs, v.ID)
}

// VolumeIDs returns a snapshot of the owned volume ids.
func (p *Participant) VolumeIDs() map[uint64]struct{} {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	ids := make(map[uint64]struct{}, len(p.volumeIDs))
	for id := range p.volumeIDs {
		ids[id] = struct{}{}
	}
	return ids
}

func (p *Participant) ToWire() protocol.Participant {
	return protocol.Participant{
		ID: p.ID,
	}
}

func ParticipantsToWire(participants []*Participant) []protocol.Participant {
	res := make([]protocol.Participant, len(participants))
	for i, p := range participants {
		res[i] = p.ToWire()
	}
	return res
}
