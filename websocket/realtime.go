package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/yggdrasil/featureflag"
	yhttp "github.com/aukilabs/yggdrasil/http"
	"github.com/aukilabs/yggdrasil/models"
	"github.com/aukilabs/yggdrasil/modules"
	"github.com/aukilabs/yggdrasil/protocol"
	"golang.org/x/net/websocket"
)

const customMessageMaxSize = 10240

// RealtimeHandler represents a service that manages multiple client connections
// and relays their actions in realtime.
type RealtimeHandler struct {
	// The interval between each sync clock message sent to the connected
	// client.
	ClientSyncClockInterval time.Duration

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The duration of a frame.
	FrameDuration time.Duration

	// The store that contains all the server sessions.
	Sessions *models.SessionStore

	// The modules that expand Yggdrasil features.
	Modules []modules.Module

	FeatureFlags featureflag.FeatureFlag

	conn               *websocket.Conn
	currentSession     *models.Session
	currentParticipant *models.Participant

	stopFrameHandling func()

	clientID string
	appKey   string
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	req := conn.Request()
	h.clientID = req.Header.Get(yhttp.HeaderClientID)
	h.appKey = yhttp.GetAppKeyFromUserToken(yhttp.GetUserTokenFromHTTPRequest(req))

	h.conn = conn
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	respond.Send(protocol.Response{
		Type:      protocol.MsgTypePingResponse,
		Timestamp: protocol.Now(),
		RequestID: req.RequestID,
	})
	return nil
}

func (h *RealtimeHandler) HandleParticipantJoin(ctx context.Context, handleFrame func(), respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.ParticipantJoinRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if h.currentSession != nil && h.Sessions.GlobalSessionID(h.currentSession.ID) == req.SessionID {
		respond.Send(protocol.ErrorResponse{
			Type:      protocol.MsgTypeErrorResponse,
			Timestamp: protocol.Now(),
			RequestID: req.RequestID,
			Code:      protocol.ErrorCodeSessionAlreadyJoined,
		})
		return nil
	}

	if h.currentParticipant != nil {
		h.leaveSession()
	}

	session, ok := h.Sessions.GetByGlobalID(req.SessionID)
	if !ok && req.SessionID != "" {
		respond.Send(protocol.ErrorResponse{
			Type:      protocol.MsgTypeErrorResponse,
			Timestamp: protocol.Now(),
			RequestID: req.RequestID,
			Code:      protocol.ErrorCodeNotFound,
		})
		return nil
	}

	if !ok {
		session = models.NewSession(h.Sessions.NewID(), h.FrameDuration)
		session.AppKey = h.appKey
		if err := h.Sessions.Add(ctx, session); err != nil {
			respond.Send(protocol.ErrorResponse{
				Type:      protocol.MsgTypeErrorResponse,
				Timestamp: protocol.Now(),
				RequestID: req.RequestID,
				Code:      protocol.ErrorCodeInternalServerError,
			})
			return nil
		}
		go session.StartDispatchFrames()
	}

	participant := &models.Participant{
		ID:        session.NewParticipantID(),
		Responder: respond,
	}

	session.AddParticipant(participant)
	h.stopFrameHandling = session.HandleFrame(handleFrame)

	respond.Send(protocol.ParticipantJoinResponse{
		Type:          protocol.MsgTypeParticipantJoinResponse,
		Timestamp:     protocol.Now(),
		RequestID:     req.RequestID,
		SessionID:     h.Sessions.GlobalSessionID(session.ID),
		SessionUUID:   session.SessionUUID,
		ParticipantID: participant.ID,
	})

	h.currentSession = session
	h.currentParticipant = participant

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableSessionState, func() {
		respond.Send(protocol.SessionState{
			Type:         protocol.MsgTypeSessionState,
			Timestamp:    protocol.Now(),
			Participants: models.ParticipantsToWire(session.GetParticipants()),
			Volumes:      models.VolumesToWire(session.Volumes()),
		})
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableParticipantJoinBroadcast, func() {
		session.Broadcast(participant, protocol.ParticipantJoinBroadcast{
			Type:            protocol.MsgTypeParticipantJoinBroadcast,
			Timestamp:       protocol.Now(),
			OriginTimestamp: req.Timestamp,
			ParticipantID:   participant.ID,
		})
	})

	for _, m := range h.Modules {
		m.Init(session, participant)
	}

	return nil
}

func (h *RealtimeHandler) HandleDisconnect(_ error) {
	if h.currentParticipant != nil {
		h.leaveSession()
	}
}

func (h *RealtimeHandler) HandleCustomMessage(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var customMessage protocol.CustomMessage
	if err := msg.DataTo(&customMessage); err != nil {
		return err
	}

	participant := h.currentParticipant
	session := h.currentSession
	if participant == nil || session == nil {
		return errors.New("session not joined").
			WithType(protocol.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.Type)
	}

	if len(customMessage.Body) > customMessageMaxSize {
		respond.Send(protocol.ErrorResponse{
			Type:      protocol.MsgTypeErrorResponse,
			Timestamp: protocol.Now(),
			Code:      protocol.ErrorCodeTooLarge,
		})
		return nil
	}

	customMessageBroadcast := protocol.CustomMessageBroadcast{
		Type:            protocol.MsgTypeCustomMessageBroadcast,
		Timestamp:       protocol.Now(),
		OriginTimestamp: customMessage.Timestamp,
		ParticipantID:   participant.ID,
		Body:            customMessage.Body,
	}

	if len(customMessage.ParticipantIDs) != 0 {
		session.BroadcastTo(participant, customMessageBroadcast, customMessage.ParticipantIDs...)
		return nil
	}

	session.Broadcast(participant, customMessageBroadcast)
	return nil
}

func (h *RealtimeHandler) HandleWithModule(ctx context.Context, m modules.Module, respond protocol.ResponseSender, msg protocol.Msg) error {
	err := m.HandleMsg(ctx, respond, msg)
	if errors.IsType(err, protocol.ErrTypeMsgSkip) {
		return nil
	}
	if err != nil {
		return errors.New("handling message with module failed").
			WithTag("module", m.Name()).
			Wrap(err)
	}
	return nil
}

func (h *RealtimeHandler) SendSyncClock(ctx context.Context, respond protocol.ResponseSender) error {
	respond.Send(protocol.SyncClock{
		Type:      protocol.MsgTypeSyncClock,
		Timestamp: protocol.Now(),
	})
	return nil
}

func (h *RealtimeHandler) Receiver() protocol.Receiver {
	return func() (protocol.Msg, int, error) {
		return protocol.Receive(h.conn)
	}
}

func (h *RealtimeHandler) Sender() protocol.Sender {
	return func(msg protocol.Msg) (int, error) {
		return protocol.Send(h.conn, msg)
	}
}

func (h *RealtimeHandler) Close() {
}

func (h *RealtimeHandler) SyncClockInterval() time.Duration {
	return h.ClientSyncClockInterval
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) GetSessions() *models.SessionStore {
	return h.Sessions
}

func (h *RealtimeHandler) GetModules() []modules.Module {
	return h.Modules
}

func (h *RealtimeHandler) CurrentSession() *models.Session {
	return h.currentSession
}

func (h *RealtimeHandler) CurrentParticipant() *models.Participant {
	return h.currentParticipant
}

func (h *RealtimeHandler) leaveSession() {
	session := h.currentSession
	participant := h.currentParticipant

	if participant == nil || session == nil {
		return
	}

	now := protocol.Now()

	for _, m := range h.Modules {
		m.HandleDisconnect()
	}

	// Volumes the modules did not reclaim are dropped with their owner.
	for id := range participant.VolumeIDs() {
		volume, ok := session.VolumeByID(id)
		if !ok {
			continue
		}

		session.RemoveVolume(volume)

		h.FeatureFlags.IfNotSet(featureflag.FlagDisableVolumeRemoveBroadcast, func() {
			session.Broadcast(participant, protocol.VolumeRemoveBroadcast{
				Type:            protocol.MsgTypeVolumeRemoveBroadcast,
				Timestamp:       now,
				OriginTimestamp: now,
				VolumeID:        volume.ID,
			})
		})
	}

	if h.stopFrameHandling != nil {
		h.stopFrameHandling()
	}
	session.RemoveParticipant(participant)

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableParticipantLeaveBroadcast, func() {
		session.Broadcast(participant, protocol.ParticipantLeaveBroadcast{
			Type:            protocol.MsgTypeParticipantLeaveBroadcast,
			Timestamp:       now,
			OriginTimestamp: now,
			ParticipantID:   participant.ID,
		})
	})

	if session.ParticipantCount() == 0 {
		h.Sessions.Remove(context.Background(), session)
		session.Close()
	}

	h.currentParticipant = nil
	h.currentSession = nil
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}
