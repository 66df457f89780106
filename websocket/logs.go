package websocket

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	yhttp "github.com/aukilabs/yggdrasil/http"
	"github.com/aukilabs/yggdrasil/protocol"
	"golang.org/x/net/websocket"
)

const (
	clientIDTag      = "client_id"
	appKeyTag        = "app_key"
	sessionIDTag     = "session_id"
	participantIDTag = "participant_id"
)

func HandlerWithLogs(h Handler, summaryInterval time.Duration) Handler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &handlerWithLogs{
		Handler:            h,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go handler.startSummaryWorker(ctx)
	return handler
}

type handlerWithLogs struct {
	Handler

	originalRequest *http.Request
	appKey          string

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[string]int

	sessionID     string
	sessionUUID   string
	participantID uint32
}

func (h *handlerWithLogs) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)

	req := conn.Request()
	h.originalRequest = req
	h.appKey = yhttp.GetAppKeyFromUserToken(yhttp.GetUserTokenFromHTTPRequest(req))

	logs.WithTag(clientIDTag, h.GetClientID()).
		WithTag(appKeyTag, h.appKey).
		Info("new client is connected")
}

func (h *handlerWithLogs) HandleParticipantJoin(ctx context.Context, handleFrame func(), respond protocol.ResponseSender, msg protocol.Msg) error {
	if err := h.Handler.HandleParticipantJoin(ctx, handleFrame, respond, msg); err != nil {
		return err
	}

	if h.CurrentParticipant() == nil {
		var req protocol.ParticipantJoinRequest
		// Check for error here is unecessary since it would never go here
		// if the request parsing failed in h.Handler.HandleParticipantJoin.
		msg.DataTo(&req)

		logs.WithTag(clientIDTag, h.GetClientID()).
			WithTag(appKeyTag, h.appKey).
			WithTag(sessionIDTag, req.SessionID).
			WithTag("request_id", req.RequestID).
			WithTag("http_headers", struct {
				UserAgent     string `json:"user_agent,omitempty"`
				XForwardedFor string `json:"x_forwarded_for,omitempty"`
			}{
				UserAgent:     h.originalRequest.UserAgent(),
				XForwardedFor: h.originalRequest.Header.Get(yhttp.HeaderXForwardedFor),
			}).
			Info("participant failed to join a session")
		return nil
	}

	h.sessionID = h.GetSessions().GlobalSessionID(h.CurrentSession().ID)
	h.sessionUUID = h.CurrentSession().SessionUUID
	h.participantID = h.CurrentParticipant().ID

	logs.WithTag(clientIDTag, h.GetClientID()).
		WithTag(appKeyTag, h.appKey).
		WithTag(sessionIDTag, h.sessionID).
		WithTag("session_uuid", h.sessionUUID).
		WithTag(participantIDTag, h.participantID).
		WithTag("http_headers", struct {
			UserAgent     string `json:"user_agent,omitempty"`
			XForwardedFor string `json:"x_forwarded_for,omitempty"`
		}{
			UserAgent:     h.originalRequest.UserAgent(),
			XForwardedFor: h.originalRequest.Header.Get(yhttp.HeaderXForwardedFor),
		}).
		Info("participant joined a session")
	return nil
}

func (h *handlerWithLogs) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)
	logs.WithTag(clientIDTag, h.GetClientID()).
		WithTag(appKeyTag, h.appKey).
		WithTag(sessionIDTag, h.sessionID).
		WithTag(participantIDTag, h.participantID).
		Info("client disconnected")
}

func (h *handlerWithLogs) Receiver() protocol.Receiver {
	receive := h.Handler.Receiver()

	return func() (protocol.Msg, int, error) {
		msg, n, err := receive()
		if err != nil && !stderrors.Is(err, io.EOF) && !stderrors.Is(err, net.ErrClosed) {
			logs.WithTag(clientIDTag, h.GetClientID()).
				WithTag(appKeyTag, h.appKey).
				WithTag(sessionIDTag, h.sessionID).
				WithTag("session_uuid", h.sessionUUID).
				WithTag(participantIDTag, h.participantID).
				Error(errors.New("receiving message failed").Wrap(err))
		} else if err == nil {
			logs.WithTag(clientIDTag, h.GetClientID()).
				WithTag(appKeyTag, h.appKey).
				WithTag(sessionIDTag, h.sessionID).
				WithTag("session_uuid", h.sessionUUID).
				WithTag(participantIDTag, h.participantID).
				WithTag("msg_type", msg.Type).
				Debug("message received")
			h.incCounter(string(msg.Type))
		}
		return msg, n, err
	}
}

func (h *handlerWithLogs) Sender() protocol.Sender {
	sender := h.Handler.Sender()

	return func(msg protocol.Msg) (int, error) {
		n, err := sender(msg)
		if err != nil && !stderrors.Is(err, net.ErrClosed) {
			logs.WithTag(clientIDTag, h.GetClientID()).
				WithTag(appKeyTag, h.appKey).
				WithTag(sessionIDTag, h.sessionID).
				WithTag("session_uuid", h.sessionUUID).
				WithTag(participantIDTag, h.participantID).
				WithTag("msg_type", msg.Type).
				Error(errors.New("sending message failed").Wrap(err))
		} else if err == nil {
			logs.WithTag(clientIDTag, h.GetClientID()).
				WithTag(appKeyTag, h.appKey).
				WithTag(sessionIDTag, h.sessionID).
				WithTag("session_uuid", h.sessionUUID).
				WithTag(participantIDTag, h.participantID).
				WithTag("msg_type", msg.Type).
				Debug("message sent")
		}
		return n, err
	}
}

func (h *handlerWithLogs) Close() {
	h.Handler.Close()
	h.closeSummaryWorker()
	h.logSummary()
}

func (h *handlerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(h.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.logSummary()
		}
	}
}

func (h *handlerWithLogs) incCounter(msgType string) {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	h.counter[msgType]++
}

func (h *handlerWithLogs) logSummary() {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	if len(h.counter) == 0 {
		return
	}

	entry := logs.
		WithTag(clientIDTag, h.GetClientID()).
		WithTag(appKeyTag, h.appKey).
		WithTag(participantIDTag, h.participantID).
		WithTag(sessionIDTag, h.sessionID).
		WithTag("session_uuid", h.sessionUUID).
		WithTag("time_interval", h.summaryInterval)

	for k, v := range h.counter {
		entry = entry.WithTag(k, v)
		delete(h.counter, k)
	}

	entry.Info("inbound message summary")
}
