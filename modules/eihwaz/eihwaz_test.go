package eihwaz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/yggdrasil/featureflag"
	"github.com/aukilabs/yggdrasil/geom"
	"github.com/aukilabs/yggdrasil/models"
	"github.com/aukilabs/yggdrasil/protocol"
	"github.com/stretchr/testify/require"
)

type testResponder struct {
	payloads []any
	msgs     []protocol.Msg
}

func (r *testResponder) Send(payload any) {
	r.payloads = append(r.payloads, payload)
}

func (r *testResponder) SendMsg(msg protocol.Msg) {
	r.msgs = append(r.msgs, msg)
}

func newTestModule(t *testing.T) (*Module, *models.Session, *models.Participant, *testResponder) {
	t.Helper()

	session := models.NewSession(1, time.Hour)
	t.Cleanup(session.Close)

	responder := &testResponder{}
	participant := &models.Participant{ID: session.NewParticipantID(), Responder: responder}
	session.AddParticipant(participant)

	module := &Module{FeatureFlags: featureflag.New(nil)}
	module.Init(session, participant)
	return module, session, participant, responder
}

func msgFromPayload(t *testing.T, payload any) protocol.Msg {
	t.Helper()

	msg, err := protocol.MsgFromPayload(payload)
	require.NoError(t, err)
	return msg
}

func addTestVolume(t *testing.T, module *Module, respond *testResponder, center geom.Vector3) protocol.Volume {
	t.Helper()

	msg := msgFromPayload(t, protocol.VolumeAddRequest{
		Type:      protocol.MsgTypeVolumeAddRequest,
		Timestamp: protocol.Now(),
		Shape: protocol.VolumeShape{
			Center:  center,
			Extents: geom.Vector3{X: 0.5, Y: 0.5, Z: 0.5},
		},
	})
	err := module.HandleMsg(context.Background(), respond, msg)
	require.NoError(t, err)

	res, ok := respond.payloads[len(respond.payloads)-1].(protocol.VolumeAddResponse)
	require.True(t, ok)
	return res.Volume
}

func TestModuleName(t *testing.T) {
	var m Module
	require.Equal(t, "eihwaz", m.Name())
}

func TestModuleSkipsUnknownMsg(t *testing.T) {
	module, _, _, responder := newTestModule(t)

	msg := msgFromPayload(t, protocol.SyncClock{
		Type:      protocol.MsgTypeSyncClock,
		Timestamp: protocol.Now(),
	})
	err := module.HandleMsg(context.Background(), responder, msg)
	require.ErrorIs(t, err, protocol.ErrModuleMsgSkip)
}

func TestModuleRequiresJoinedSession(t *testing.T) {
	var module Module

	msg := msgFromPayload(t, protocol.VolumeAddRequest{
		Type:      protocol.MsgTypeVolumeAddRequest,
		Timestamp: protocol.Now(),
	})
	err := module.HandleMsg(context.Background(), &testResponder{}, msg)
	require.Error(t, err)
	require.True(t, errors.IsType(err, protocol.ErrTypeSessionNotJoined))
}

func TestModuleVolumeAdd(t *testing.T) {
	t.Run("volume is added and broadcasted", func(t *testing.T) {
		module, session, participant, responder := newTestModule(t)

		otherResponder := &testResponder{}
		other := &models.Participant{ID: session.NewParticipantID(), Responder: otherResponder}
		session.AddParticipant(other)

		volume := addTestVolume(t, module, responder, geom.Vector3{X: 1})
		require.NotZero(t, volume.ID)
		require.Equal(t, participant.ID, volume.ParticipantID)
		require.Equal(t, 1, session.VolumeCount())

		require.Len(t, otherResponder.msgs, 1)
		require.Equal(t, protocol.MsgTypeVolumeAddBroadcast, otherResponder.msgs[0].Type)
	})

	t.Run("invalid shape is rejected", func(t *testing.T) {
		module, session, _, responder := newTestModule(t)

		msg := msgFromPayload(t, protocol.VolumeAddRequest{
			Type:      protocol.MsgTypeVolumeAddRequest,
			Timestamp: protocol.Now(),
			Shape:     protocol.VolumeShape{Radius: -1},
		})
		err := module.HandleMsg(context.Background(), responder, msg)
		require.NoError(t, err)

		res, ok := responder.payloads[0].(protocol.ErrorResponse)
		require.True(t, ok)
		require.Equal(t, protocol.ErrorCodeBadRequest, res.Code)
		require.Zero(t, session.VolumeCount())
	})
}

func TestModuleVolumeUpdate(t *testing.T) {
	t.Run("volume is moved and broadcasted", func(t *testing.T) {
		module, session, _, responder := newTestModule(t)

		otherResponder := &testResponder{}
		other := &models.Participant{ID: session.NewParticipantID(), Responder: otherResponder}
		session.AddParticipant(other)

		volume := addTestVolume(t, module, responder, geom.Vector3{})
		otherResponder.msgs = nil

		msg := msgFromPayload(t, protocol.VolumeUpdate{
			Type:      protocol.MsgTypeVolumeUpdate,
			Timestamp: protocol.Now(),
			VolumeID:  volume.ID,
			Shape: protocol.VolumeShape{
				Center:  geom.Vector3{X: 20},
				Extents: geom.Vector3{X: 0.5, Y: 0.5, Z: 0.5},
			},
		})
		err := module.HandleMsg(context.Background(), responder, msg)
		require.NoError(t, err)

		ids := module.state.SearchBox(geom.NewBox(
			geom.Vector3{X: 19, Y: -1, Z: -1},
			geom.Vector3{X: 21, Y: 1, Z: 1},
		), false)
		require.ElementsMatch(t, []uint64{volume.ID}, ids)

		require.Len(t, otherResponder.msgs, 1)
		require.Equal(t, protocol.MsgTypeVolumeUpdateBroadcast, otherResponder.msgs[0].Type)
	})

	t.Run("unknown volume is a no-op", func(t *testing.T) {
		module, _, _, responder := newTestModule(t)

		msg := msgFromPayload(t, protocol.VolumeUpdate{
			Type:      protocol.MsgTypeVolumeUpdate,
			Timestamp: protocol.Now(),
			VolumeID:  42,
		})
		err := module.HandleMsg(context.Background(), responder, msg)
		require.NoError(t, err)
		require.Empty(t, responder.payloads)
	})
}

func TestModuleVolumeRemove(t *testing.T) {
	t.Run("volume is removed and broadcasted", func(t *testing.T) {
		module, session, _, responder := newTestModule(t)

		otherResponder := &testResponder{}
		other := &models.Participant{ID: session.NewParticipantID(), Responder: otherResponder}
		session.AddParticipant(other)

		volume := addTestVolume(t, module, responder, geom.Vector3{})
		otherResponder.msgs = nil

		msg := msgFromPayload(t, protocol.VolumeRemoveRequest{
			Type:      protocol.MsgTypeVolumeRemoveRequest,
			Timestamp: protocol.Now(),
			RequestID: 7,
			VolumeID:  volume.ID,
		})
		err := module.HandleMsg(context.Background(), responder, msg)
		require.NoError(t, err)

		res, ok := responder.payloads[len(responder.payloads)-1].(protocol.VolumeRemoveResponse)
		require.True(t, ok)
		require.Equal(t, uint32(7), res.RequestID)
		require.Zero(t, session.VolumeCount())

		require.Len(t, otherResponder.msgs, 1)
		require.Equal(t, protocol.MsgTypeVolumeRemoveBroadcast, otherResponder.msgs[0].Type)
	})

	t.Run("removing an unknown volume still responds", func(t *testing.T) {
		module, _, _, responder := newTestModule(t)

		msg := msgFromPayload(t, protocol.VolumeRemoveRequest{
			Type:      protocol.MsgTypeVolumeRemoveRequest,
			Timestamp: protocol.Now(),
			VolumeID:  42,
		})
		err := module.HandleMsg(context.Background(), responder, msg)
		require.NoError(t, err)

		_, ok := responder.payloads[0].(protocol.VolumeRemoveResponse)
		require.True(t, ok)
	})
}

func TestModuleVolumeAddBatch(t *testing.T) {
	module, session, _, responder := newTestModule(t)

	shapes := make([]protocol.VolumeShape, 5)
	for i := range shapes {
		shapes[i] = protocol.VolumeShape{
			Center:  geom.Vector3{X: float32(i) * 3},
			Extents: geom.Vector3{X: 0.5, Y: 0.5, Z: 0.5},
		}
	}

	msg := msgFromPayload(t, protocol.VolumeAddBatchRequest{
		Type:      protocol.MsgTypeVolumeAddBatchRequest,
		Timestamp: protocol.Now(),
		Shapes:    shapes,
	})
	err := module.HandleMsg(context.Background(), responder, msg)
	require.NoError(t, err)

	res, ok := responder.payloads[0].(protocol.VolumeAddBatchResponse)
	require.True(t, ok)
	require.Len(t, res.Volumes, 5)
	require.Equal(t, 5, session.VolumeCount())
}

func TestModuleVolumeUpdateBatch(t *testing.T) {
	module, _, _, responder := newTestModule(t)

	volumeA := addTestVolume(t, module, responder, geom.Vector3{})
	volumeB := addTestVolume(t, module, responder, geom.Vector3{X: 3})

	msg := msgFromPayload(t, protocol.VolumeUpdateBatch{
		Type:      protocol.MsgTypeVolumeUpdateBatch,
		Timestamp: protocol.Now(),
		Updates: []protocol.VolumeStateUpdate{
			{
				VolumeID: volumeA.ID,
				Shape: protocol.VolumeShape{
					Center:  geom.Vector3{Y: 10},
					Extents: geom.Vector3{X: 0.5, Y: 0.5, Z: 0.5},
				},
			},
			{
				VolumeID: volumeB.ID,
				Shape: protocol.VolumeShape{
					Center:  geom.Vector3{Y: 20},
					Extents: geom.Vector3{X: 0.5, Y: 0.5, Z: 0.5},
				},
			},
			{VolumeID: 999},
		},
	})
	err := module.HandleMsg(context.Background(), responder, msg)
	require.NoError(t, err)

	ids := module.state.SearchSphere(geom.NewSphere(geom.Vector3{Y: 10}, 2), false)
	require.ElementsMatch(t, []uint64{volumeA.ID}, ids)
}

func TestModuleVolumeRemoveBatch(t *testing.T) {
	module, session, _, responder := newTestModule(t)

	volumeA := addTestVolume(t, module, responder, geom.Vector3{})
	volumeB := addTestVolume(t, module, responder, geom.Vector3{X: 3})

	msg := msgFromPayload(t, protocol.VolumeRemoveBatchRequest{
		Type:      protocol.MsgTypeVolumeRemoveBatchRequest,
		Timestamp: protocol.Now(),
		VolumeIDs: []uint64{volumeA.ID, volumeB.ID, 999},
	})
	err := module.HandleMsg(context.Background(), responder, msg)
	require.NoError(t, err)

	res, ok := responder.payloads[len(responder.payloads)-1].(protocol.VolumeRemoveBatchResponse)
	require.True(t, ok)
	require.Equal(t, 2, res.RemovedCount)
	require.Zero(t, session.VolumeCount())
}

func TestModuleRegionQuery(t *testing.T) {
	module, _, _, responder := newTestModule(t)

	var ids []uint64
	for i := 0; i < 5; i++ {
		v := addTestVolume(t, module, responder, geom.Vector3{X: float32(i) * 3})
		ids = append(ids, v.ID)
	}
	responder.payloads = nil

	t.Run("box region", func(t *testing.T) {
		msg := msgFromPayload(t, protocol.RegionQueryRequest{
			Type:      protocol.MsgTypeRegionQueryRequest,
			Timestamp: protocol.Now(),
			Box: &protocol.BoxRegion{
				Min: geom.Vector3{X: -1, Y: -1, Z: -1},
				Max: geom.Vector3{X: 4, Y: 1, Z: 1},
			},
		})
		err := module.HandleMsg(context.Background(), responder, msg)
		require.NoError(t, err)

		res, ok := responder.payloads[len(responder.payloads)-1].(protocol.RegionQueryResponse)
		require.True(t, ok)
		require.ElementsMatch(t, []uint64{ids[0], ids[1]}, res.VolumeIDs)
	})

	t.Run("sphere region", func(t *testing.T) {
		msg := msgFromPayload(t, protocol.RegionQueryRequest{
			Type:      protocol.MsgTypeRegionQueryRequest,
			Timestamp: protocol.Now(),
			Sphere: &protocol.SphereRegion{
				Center: geom.Vector3{X: 3},
				Radius: 2,
			},
		})
		err := module.HandleMsg(context.Background(), responder, msg)
		require.NoError(t, err)

		res, ok := responder.payloads[len(responder.payloads)-1].(protocol.RegionQueryResponse)
		require.True(t, ok)
		require.ElementsMatch(t, []uint64{ids[1]}, res.VolumeIDs)
	})

	t.Run("both regions set is rejected", func(t *testing.T) {
		msg := msgFromPayload(t, protocol.RegionQueryRequest{
			Type:      protocol.MsgTypeRegionQueryRequest,
			Timestamp: protocol.Now(),
			Box:       &protocol.BoxRegion{},
			Sphere:    &protocol.SphereRegion{},
		})
		err := module.HandleMsg(context.Background(), responder, msg)
		require.NoError(t, err)

		res, ok := responder.payloads[len(responder.payloads)-1].(protocol.ErrorResponse)
		require.True(t, ok)
		require.Equal(t, protocol.ErrorCodeBadRequest, res.Code)
	})

	t.Run("no region set is rejected", func(t *testing.T) {
		msg := msgFromPayload(t, protocol.RegionQueryRequest{
			Type:      protocol.MsgTypeRegionQueryRequest,
			Timestamp: protocol.Now(),
		})
		err := module.HandleMsg(context.Background(), responder, msg)
		require.NoError(t, err)

		res, ok := responder.payloads[len(responder.payloads)-1].(protocol.ErrorResponse)
		require.True(t, ok)
		require.Equal(t, protocol.ErrorCodeBadRequest, res.Code)
	})
}

func TestModulePolygonQuery(t *testing.T) {
	module, _, _, responder := newTestModule(t)

	volumeA := addTestVolume(t, module, responder, geom.Vector3{X: 1, Z: 1})
	addTestVolume(t, module, responder, geom.Vector3{X: 10, Z: 10})

	msg := msgFromPayload(t, protocol.PolygonQueryRequest{
		Type:      protocol.MsgTypePolygonQueryRequest,
		Timestamp: protocol.Now(),
		Points: []geom.Vector2{
			{X: -2, Y: -2},
			{X: 4, Y: -2},
			{X: 4, Y: 4},
			{X: -2, Y: 4},
		},
	})
	err := module.HandleMsg(context.Background(), responder, msg)
	require.NoError(t, err)

	res, ok := responder.payloads[len(responder.payloads)-1].(protocol.PolygonQueryResponse)
	require.True(t, ok)
	require.ElementsMatch(t, []uint64{volumeA.ID}, res.VolumeIDs)
}

func TestModuleNearest(t *testing.T) {
	module, _, _, responder := newTestModule(t)

	volumeA := addTestVolume(t, module, responder, geom.Vector3{})
	volumeB := addTestVolume(t, module, responder, geom.Vector3{X: 10})

	msg := msgFromPayload(t, protocol.NearestRequest{
		Type:      protocol.MsgTypeNearestRequest,
		Timestamp: protocol.Now(),
		Points: []geom.Vector3{
			{X: 1},
			{X: 9},
		},
	})
	err := module.HandleMsg(context.Background(), responder, msg)
	require.NoError(t, err)

	res, ok := responder.payloads[len(responder.payloads)-1].(protocol.NearestResponse)
	require.True(t, ok)
	require.Equal(t, []uint64{volumeA.ID, volumeB.ID}, res.VolumeIDs)
}

func TestModuleRaycast(t *testing.T) {
	module, _, _, responder := newTestModule(t)

	volume := addTestVolume(t, module, responder, geom.Vector3{X: 3})

	t.Run("hits are returned by distance", func(t *testing.T) {
		msg := msgFromPayload(t, protocol.RaycastRequest{
			Type:      protocol.MsgTypeRaycastRequest,
			Timestamp: protocol.Now(),
			Origin:    geom.Vector3{X: -5},
			Direction: geom.Vector3{X: 1},
		})
		err := module.HandleMsg(context.Background(), responder, msg)
		require.NoError(t, err)

		res, ok := responder.payloads[len(responder.payloads)-1].(protocol.RaycastResponse)
		require.True(t, ok)
		require.Len(t, res.Hits, 1)
		require.Equal(t, volume.ID, res.Hits[0].VolumeID)
		require.Len(t, res.Hits[0].Points, 2)
	})

	t.Run("zero direction is rejected", func(t *testing.T) {
		msg := msgFromPayload(t, protocol.RaycastRequest{
			Type:      protocol.MsgTypeRaycastRequest,
			Timestamp: protocol.Now(),
		})
		err := module.HandleMsg(context.Background(), responder, msg)
		require.NoError(t, err)

		res, ok := responder.payloads[len(responder.payloads)-1].(protocol.ErrorResponse)
		require.True(t, ok)
		require.Equal(t, protocol.ErrorCodeBadRequest, res.Code)
	})
}

func TestModuleFrustumQuery(t *testing.T) {
	module, _, _, responder := newTestModule(t)

	volumeA := addTestVolume(t, module, responder, geom.Vector3{X: 5})
	addTestVolume(t, module, responder, geom.Vector3{X: -5})

	t.Run("volumes in front of the planes are returned", func(t *testing.T) {
		msg := msgFromPayload(t, protocol.FrustumQueryRequest{
			Type:      protocol.MsgTypeFrustumQueryRequest,
			Timestamp: protocol.Now(),
			Planes: []protocol.FrustumPlane{
				{Normal: geom.Vector3{X: 1}, D: 0},
			},
		})
		err := module.HandleMsg(context.Background(), responder, msg)
		require.NoError(t, err)

		res, ok := responder.payloads[len(responder.payloads)-1].(protocol.FrustumQueryResponse)
		require.True(t, ok)
		require.ElementsMatch(t, []uint64{volumeA.ID}, res.VolumeIDs)
	})

	t.Run("zero normal is rejected", func(t *testing.T) {
		msg := msgFromPayload(t, protocol.FrustumQueryRequest{
			Type:      protocol.MsgTypeFrustumQueryRequest,
			Timestamp: protocol.Now(),
			Planes:    []protocol.FrustumPlane{{}},
		})
		err := module.HandleMsg(context.Background(), responder, msg)
		require.NoError(t, err)

		res, ok := responder.payloads[len(responder.payloads)-1].(protocol.ErrorResponse)
		require.True(t, ok)
		require.Equal(t, protocol.ErrorCodeBadRequest, res.Code)
	})
}

func TestModuleShapeCast(t *testing.T) {
	module, _, _, responder := newTestModule(t)

	volumeA := addTestVolume(t, module, responder, geom.Vector3{X: 5})
	addTestVolume(t, module, responder, geom.Vector3{X: 5, Y: 10})

	msg := msgFromPayload(t, protocol.ShapeCastRequest{
		Type:      protocol.MsgTypeShapeCastRequest,
		Timestamp: protocol.Now(),
		A:         geom.Vector3{},
		B:         geom.Vector3{X: 10},
		Radius:    1,
	})
	err := module.HandleMsg(context.Background(), responder, msg)
	require.NoError(t, err)

	res, ok := responder.payloads[len(responder.payloads)-1].(protocol.ShapeCastResponse)
	require.True(t, ok)
	require.ElementsMatch(t, []uint64{volumeA.ID}, res.VolumeIDs)
}

func TestModuleStats(t *testing.T) {
	module, _, _, responder := newTestModule(t)

	addTestVolume(t, module, responder, geom.Vector3{})

	msg := msgFromPayload(t, protocol.StatsRequest{
		Type:      protocol.MsgTypeStatsRequest,
		Timestamp: protocol.Now(),
	})
	err := module.HandleMsg(context.Background(), responder, msg)
	require.NoError(t, err)

	res, ok := responder.payloads[len(responder.payloads)-1].(protocol.StatsResponse)
	require.True(t, ok)
	require.Equal(t, 1, res.VolumeCount)
	require.NotZero(t, res.BoxNodeCount)
	require.NotZero(t, res.BallNodeCount)
}

func TestModuleHandleDisconnect(t *testing.T) {
	module, session, _, responder := newTestModule(t)

	addTestVolume(t, module, responder, geom.Vector3{})
	addTestVolume(t, module, responder, geom.Vector3{X: 3})
	require.Equal(t, 2, session.VolumeCount())

	module.HandleDisconnect()
	require.Zero(t, session.VolumeCount())

	count, _, _ := module.state.Stats()
	require.Zero(t, count)
}

func TestModuleConcurrentPeerRemove(t *testing.T) {
	session := models.NewSession(1, time.Hour)
	t.Cleanup(session.Close)

	flags := featureflag.New([]string{
		string(featureflag.FlagDisableVolumeAddBroadcast),
		string(featureflag.FlagDisableVolumeRemoveBroadcast),
	})

	ownerResponder := &testResponder{}
	owner := &models.Participant{ID: session.NewParticipantID(), Responder: ownerResponder}
	session.AddParticipant(owner)
	ownerModule := &Module{FeatureFlags: flags}
	ownerModule.Init(session, owner)

	peerResponder := &testResponder{}
	peer := &models.Participant{ID: session.NewParticipantID(), Responder: peerResponder}
	session.AddParticipant(peer)
	peerModule := &Module{FeatureFlags: flags}
	peerModule.Init(session, peer)

	const volumeCount = 200

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < volumeCount; i++ {
			msg := msgFromPayload(t, protocol.VolumeAddRequest{
				Type:      protocol.MsgTypeVolumeAddRequest,
				Timestamp: protocol.Now(),
				Shape: protocol.VolumeShape{
					Center:  geom.Vector3{X: float32(i)},
					Extents: geom.Vector3{X: 0.5, Y: 0.5, Z: 0.5},
				},
			})
			require.NoError(t, ownerModule.HandleMsg(context.Background(), ownerResponder, msg))
		}
	}()
	go func() {
		defer wg.Done()
		for id := uint64(1); id <= volumeCount; id++ {
			msg := msgFromPayload(t, protocol.VolumeRemoveRequest{
				Type:      protocol.MsgTypeVolumeRemoveRequest,
				Timestamp: protocol.Now(),
				VolumeID:  id,
			})
			require.NoError(t, peerModule.HandleMsg(context.Background(), peerResponder, msg))
		}
	}()

	wg.Wait()

	count, _, _ := ownerModule.state.Stats()
	require.Equal(t, session.VolumeCount(), count)

	everything := geom.NewBox(
		geom.Vector3{X: -1, Y: -1, Z: -1},
		geom.Vector3{X: volumeCount + 1, Y: 1, Z: 1},
	)
	require.Len(t, ownerModule.state.SearchBox(everything, false), count)
}
