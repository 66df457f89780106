// Package eihwaz implements the spatial index module. It maintains a
// box-tree and a ball-tree over the session volumes and answers the region,
// polygon, nearest, raycast, frustum and shape cast queries.
package eihwaz

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/yggdrasil/featureflag"
	"github.com/aukilabs/yggdrasil/geom"
	"github.com/aukilabs/yggdrasil/models"
	"github.com/aukilabs/yggdrasil/protocol"
)

const (
	// DefaultCapacity pre-sizes the tree arenas of a fresh session.
	DefaultCapacity = 256

	defaultOptimizeLeafSwaps        = 32
	defaultOptimizeGrandchildTricks = 16
)

type Module struct {
	// FeatureFlags gates the broadcasts emitted on volume changes and the
	// per-frame tree rebalancing.
	FeatureFlags featureflag.FeatureFlag

	// Capacity pre-sizes the tree arenas of a fresh session. Zero falls back
	// to DefaultCapacity.
	Capacity int

	// OptimizeLeafSwaps and OptimizeGrandchildTricks size the rebalancing
	// round run on every session frame. Zero values fall back to defaults.
	OptimizeLeafSwaps        int
	OptimizeGrandchildTricks int

	currentSession     *models.Session
	currentParticipant *models.Participant
	state              *State
}

func (m *Module) Name() string {
	return "eihwaz"
}

func (m *Module) Init(s *models.Session, p *models.Participant) {
	m.currentSession = s
	m.currentParticipant = p

	capacity := m.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	state, ok := s.ModuleState(m.Name())
	if !ok {
		state = NewState(capacity)
		s.SetModuleState(m.Name(), state)
	}
	m.state = state.(*State)

	m.FeatureFlags.IfSet(featureflag.FlagDisableQueryParallelism, func() {
		m.state.serialQueries = true
	})

	m.state.optimizeOnce.Do(func() {
		m.FeatureFlags.IfNotSet(featureflag.FlagDisableFrameOptimize, func() {
			leafSwaps := m.OptimizeLeafSwaps
			if leafSwaps <= 0 {
				leafSwaps = defaultOptimizeLeafSwaps
			}
			grandchildTricks := m.OptimizeGrandchildTricks
			if grandchildTricks <= 0 {
				grandchildTricks = defaultOptimizeGrandchildTricks
			}

			state := m.state
			s.HandleFrame(func() {
				state.Optimize(leafSwaps, grandchildTricks)
			})
		})
	})
}

func (m *Module) HandleMsg(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var err error

	switch msg.Type {
	case protocol.MsgTypeVolumeAddRequest:
		err = m.handleVolumeAdd(ctx, respond, msg)

	case protocol.MsgTypeVolumeUpdate:
		err = m.handleVolumeUpdate(ctx, respond, msg)

	case protocol.MsgTypeVolumeRemoveRequest:
		err = m.handleVolumeRemove(ctx, respond, msg)

	case protocol.MsgTypeVolumeAddBatchRequest:
		err = m.handleVolumeAddBatch(ctx, respond, msg)

	case protocol.MsgTypeVolumeUpdateBatch:
		err = m.handleVolumeUpdateBatch(ctx, respond, msg)

	case protocol.MsgTypeVolumeRemoveBatchRequest:
		err = m.handleVolumeRemoveBatch(ctx, respond, msg)

	case protocol.MsgTypeRegionQueryRequest:
		err = m.handleRegionQuery(ctx, respond, msg)

	case protocol.MsgTypePolygonQueryRequest:
		err = m.handlePolygonQuery(ctx, respond, msg)

	case protocol.MsgTypeNearestRequest:
		err = m.handleNearest(ctx, respond, msg)

	case protocol.MsgTypeRaycastRequest:
		err = m.handleRaycast(ctx, respond, msg)

	case protocol.MsgTypeFrustumQueryRequest:
		err = m.handleFrustumQuery(ctx, respond, msg)

	case protocol.MsgTypeShapeCastRequest:
		err = m.handleShapeCast(ctx, respond, msg)

	case protocol.MsgTypeStatsRequest:
		err = m.handleStats(ctx, respond, msg)

	default:
		err = protocol.ErrModuleMsgSkip
	}

	return err
}

func (m *Module) HandleDisconnect() {
	participant := m.currentParticipant
	if participant == nil {
		return
	}

	for volumeID := range participant.VolumeIDs() {
		volume, ok := m.currentSession.VolumeByID(volumeID)
		if !ok {
			continue
		}
		m.state.Remove(volume)
		m.currentSession.RemoveVolume(volume)
	}
}

func (m *Module) joined() (*models.Session, *models.Participant, bool) {
	return m.currentSession, m.currentParticipant, m.currentSession != nil && m.currentParticipant != nil
}

func (m *Module) handleVolumeAdd(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.VolumeAddRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	session, participant, ok := m.joined()
	if !ok {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	if !validShape(req.Shape) {
		sendError(respond, req.RequestID, protocol.ErrorCodeBadRequest)
		return nil
	}

	volume := &models.Volume{
		ID:            session.NewVolumeID(),
		ParticipantID: participant.ID,
	}
	volume.SetShape(req.Shape)

	// Index before publishing to the session: a peer remove can only target
	// a volume it can already look up, so it never misses the trees.
	m.state.Add(volume)
	participant.AddVolume(volume)
	session.AddVolume(volume)

	now := protocol.Now()
	respond.Send(protocol.VolumeAddResponse{
		Type:      protocol.MsgTypeVolumeAddResponse,
		Timestamp: now,
		RequestID: req.RequestID,
		Volume:    volume.ToWire(),
	})
	m.FeatureFlags.IfNotSet(featureflag.FlagDisableVolumeAddBroadcast, func() {
		session.Broadcast(participant, protocol.VolumeAddBroadcast{
			Type:            protocol.MsgTypeVolumeAddBroadcast,
			Timestamp:       now,
			OriginTimestamp: req.Timestamp,
			Volume:          volume.ToWire(),
		})
	})
	return nil
}

func (m *Module) handleVolumeUpdate(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.VolumeUpdate
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	session, participant, ok := m.joined()
	if !ok {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	volume, ok := session.VolumeByID(req.VolumeID)
	if !ok || !validShape(req.Shape) {
		return nil
	}

	volume.SetShape(req.Shape)
	m.state.Update(volume)

	m.FeatureFlags.IfNotSet(featureflag.FlagDisableVolumeUpdateBroadcast, func() {
		session.Broadcast(participant, protocol.VolumeUpdateBroadcast{
			Type:            protocol.MsgTypeVolumeUpdateBroadcast,
			Timestamp:       protocol.Now(),
			OriginTimestamp: req.Timestamp,
			Volume:          volume.ToWire(),
		})
	})
	return nil
}

func (m *Module) handleVolumeRemove(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.VolumeRemoveRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	session, participant, ok := m.joined()
	if !ok {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	now := protocol.Now()

	volume, ok := session.VolumeByID(req.VolumeID)
	if !ok {
		// Removing an absent volume is a no-op, not an error.
		respond.Send(protocol.VolumeRemoveResponse{
			Type:      protocol.MsgTypeVolumeRemoveResponse,
			Timestamp: now,
			RequestID: req.RequestID,
		})
		return nil
	}

	m.removeVolume(session, volume)

	respond.Send(protocol.VolumeRemoveResponse{
		Type:      protocol.MsgTypeVolumeRemoveResponse,
		Timestamp: now,
		RequestID: req.RequestID,
	})
	m.FeatureFlags.IfNotSet(featureflag.FlagDisableVolumeRemoveBroadcast, func() {
		session.Broadcast(participant, protocol.VolumeRemoveBroadcast{
			Type:            protocol.MsgTypeVolumeRemoveBroadcast,
			Timestamp:       now,
			OriginTimestamp: req.Timestamp,
			VolumeID:        volume.ID,
		})
	})
	return nil
}

func (m *Module) removeVolume(session *models.Session, volume *models.Volume) {
	m.state.Remove(volume)
	session.RemoveVolume(volume)
	for _, owner := range session.GetParticipantsByIDs(volume.ParticipantID) {
		owner.RemoveVolume(volume)
	}
}

func (m *Module) handleVolumeAddBatch(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.VolumeAddBatchRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	session, participant, ok := m.joined()
	if !ok {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	for _, shape := range req.Shapes {
		if !validShape(shape) {
			sendError(respond, req.RequestID, protocol.ErrorCodeBadRequest)
			return nil
		}
	}

	volumes := make([]*models.Volume, len(req.Shapes))
	for i, shape := range req.Shapes {
		volume := &models.Volume{
			ID:            session.NewVolumeID(),
			ParticipantID: participant.ID,
		}
		volume.SetShape(shape)
		volumes[i] = volume
	}

	// Index before publishing, as in the single add.
	m.state.AddBatch(volumes)
	for _, volume := range volumes {
		participant.AddVolume(volume)
		session.AddVolume(volume)
	}

	now := protocol.Now()
	respond.Send(protocol.VolumeAddBatchResponse{
		Type:      protocol.MsgTypeVolumeAddBatchResponse,
		Timestamp: now,
		RequestID: req.RequestID,
		Volumes:   models.VolumesToWire(volumes),
	})
	m.FeatureFlags.IfNotSet(featureflag.FlagDisableVolumeAddBroadcast, func() {
		for _, volume := range volumes {
			session.Broadcast(participant, protocol.VolumeAddBroadcast{
				Type:            protocol.MsgTypeVolumeAddBroadcast,
				Timestamp:       now,
				OriginTimestamp: req.Timestamp,
				Volume:          volume.ToWire(),
			})
		}
	})
	return nil
}

func (m *Module) handleVolumeUpdateBatch(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.VolumeUpdateBatch
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	session, participant, ok := m.joined()
	if !ok {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	volumes := make([]*models.Volume, 0, len(req.Updates))
	for _, update := range req.Updates {
		volume, ok := session.VolumeByID(update.VolumeID)
		if !ok || !validShape(update.Shape) {
			continue
		}
		volume.SetShape(update.Shape)
		volumes = append(volumes, volume)
	}
	if len(volumes) == 0 {
		return nil
	}
	m.state.UpdateBatch(volumes)

	m.FeatureFlags.IfNotSet(featureflag.FlagDisableVolumeUpdateBroadcast, func() {
		now := protocol.Now()
		for _, volume := range volumes {
			session.Broadcast(participant, protocol.VolumeUpdateBroadcast{
				Type:            protocol.MsgTypeVolumeUpdateBroadcast,
				Timestamp:       now,
				OriginTimestamp: req.Timestamp,
				Volume:          volume.ToWire(),
			})
		}
	})
	return nil
}

func (m *Module) handleVolumeRemoveBatch(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.VolumeRemoveBatchRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	session, participant, ok := m.joined()
	if !ok {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	volumes := make([]*models.Volume, 0, len(req.VolumeIDs))
	for _, volumeID := range req.VolumeIDs {
		if volume, ok := session.VolumeByID(volumeID); ok {
			volumes = append(volumes, volume)
		}
	}

	removed := m.state.RemoveBatch(volumes)
	for _, volume := range volumes {
		session.RemoveVolume(volume)
		for _, owner := range session.GetParticipantsByIDs(volume.ParticipantID) {
			owner.RemoveVolume(volume)
		}
	}

	now := protocol.Now()
	respond.Send(protocol.VolumeRemoveBatchResponse{
		Type:         protocol.MsgTypeVolumeRemoveBatchResponse,
		Timestamp:    now,
		RequestID:    req.RequestID,
		RemovedCount: removed,
	})
	m.FeatureFlags.IfNotSet(featureflag.FlagDisableVolumeRemoveBroadcast, func() {
		for _, volume := range volumes {
			session.Broadcast(participant, protocol.VolumeRemoveBroadcast{
				Type:            protocol.MsgTypeVolumeRemoveBroadcast,
				Timestamp:       now,
				OriginTimestamp: req.Timestamp,
				VolumeID:        volume.ID,
			})
		}
	})
	return nil
}

func (m *Module) handleRegionQuery(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.RegionQueryRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if _, _, ok := m.joined(); !ok {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	if (req.Box == nil) == (req.Sphere == nil) {
		sendError(respond, req.RequestID, protocol.ErrorCodeBadRequest)
		return nil
	}

	var ids []uint64
	if req.Box != nil {
		ids = m.state.SearchBox(geom.NewBox(req.Box.Min, req.Box.Max), req.Contained)
	} else {
		ids = m.state.SearchSphere(geom.NewSphere(req.Sphere.Center, req.Sphere.Radius), req.Contained)
	}

	respond.Send(protocol.RegionQueryResponse{
		Type:      protocol.MsgTypeRegionQueryResponse,
		Timestamp: protocol.Now(),
		RequestID: req.RequestID,
		VolumeIDs: ids,
	})
	return nil
}

func (m *Module) handlePolygonQuery(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.PolygonQueryRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if _, _, ok := m.joined(); !ok {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	ids := m.state.SearchPolygon(geom.NewPolygon(req.Points))

	respond.Send(protocol.PolygonQueryResponse{
		Type:      protocol.MsgTypePolygonQueryResponse,
		Timestamp: protocol.Now(),
		RequestID: req.RequestID,
		VolumeIDs: ids,
	})
	return nil
}

func (m *Module) handleNearest(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.NearestRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if _, _, ok := m.joined(); !ok {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	ids := m.state.Nearest(req.Points)

	respond.Send(protocol.NearestResponse{
		Type:      protocol.MsgTypeNearestResponse,
		Timestamp: protocol.Now(),
		RequestID: req.RequestID,
		VolumeIDs: ids,
	})
	return nil
}

func (m *Module) handleRaycast(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.RaycastRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if _, _, ok := m.joined(); !ok {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	if req.Direction.LengthSq() == 0 || req.MaxDistance < 0 {
		sendError(respond, req.RequestID, protocol.ErrorCodeBadRequest)
		return nil
	}

	hits := m.state.Raycast(geom.NewRay(req.Origin, req.Direction), req.MaxDistance)

	respond.Send(protocol.RaycastResponse{
		Type:      protocol.MsgTypeRaycastResponse,
		Timestamp: protocol.Now(),
		RequestID: req.RequestID,
		Hits:      hits,
	})
	return nil
}

func (m *Module) handleFrustumQuery(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.FrustumQueryRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if _, _, ok := m.joined(); !ok {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	for _, plane := range req.Planes {
		if plane.Normal.LengthSq() == 0 {
			sendError(respond, req.RequestID, protocol.ErrorCodeBadRequest)
			return nil
		}
	}

	frustum := make(geom.Frustum, len(req.Planes))
	for i, plane := range req.Planes {
		frustum[i] = geom.NewPlane(plane.Normal, plane.D)
	}

	ids := m.state.FrustumQuery(frustum)

	respond.Send(protocol.FrustumQueryResponse{
		Type:      protocol.MsgTypeFrustumQueryResponse,
		Timestamp: protocol.Now(),
		RequestID: req.RequestID,
		VolumeIDs: ids,
	})
	return nil
}

func (m *Module) handleShapeCast(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.ShapeCastRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if _, _, ok := m.joined(); !ok {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	if req.Radius < 0 {
		sendError(respond, req.RequestID, protocol.ErrorCodeBadRequest)
		return nil
	}

	ids := m.state.ShapeCast(geom.NewCapsule(req.A, req.B, req.Radius))

	respond.Send(protocol.ShapeCastResponse{
		Type:      protocol.MsgTypeShapeCastResponse,
		Timestamp: protocol.Now(),
		RequestID: req.RequestID,
		VolumeIDs: ids,
	})
	return nil
}

func (m *Module) handleStats(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.StatsRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if _, _, ok := m.joined(); !ok {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	volumes, boxNodes, ballNodes := m.state.Stats()

	respond.Send(protocol.StatsResponse{
		Type:          protocol.MsgTypeStatsResponse,
		Timestamp:     protocol.Now(),
		RequestID:     req.RequestID,
		VolumeCount:   volumes,
		BoxNodeCount:  boxNodes,
		BallNodeCount: ballNodes,
	})
	return nil
}

func validShape(s protocol.VolumeShape) bool {
	return s.Radius >= 0 &&
		s.Extents.X >= 0 &&
		s.Extents.Y >= 0 &&
		s.Extents.Z >= 0 &&
		(s.Radius > 0 || s.Extents.LengthSq() > 0)
}

func sendError(respond protocol.ResponseSender, requestID uint32, code protocol.ErrorCode) {
	respond.Send(protocol.ErrorResponse{
		Type:      protocol.MsgTypeErrorResponse,
		Timestamp: protocol.Now(),
		RequestID: requestID,
		Code:      code,
	})
}
