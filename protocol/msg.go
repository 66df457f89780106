// Package protocol defines the wire protocol shared by the websocket
// transport, the modules and the clients: a JSON message envelope, the
// message type registry, payload shapes and the per-connection scheduling
// primitives.
package protocol

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// MsgType identifies a wire message.
type MsgType string

const (
	MsgTypePingRequest  MsgType = "ping_request"
	MsgTypePingResponse MsgType = "ping_response"

	MsgTypeParticipantJoinRequest    MsgType = "participant_join_request"
	MsgTypeParticipantJoinResponse   MsgType = "participant_join_response"
	MsgTypeParticipantJoinBroadcast  MsgType = "participant_join_broadcast"
	MsgTypeParticipantLeaveBroadcast MsgType = "participant_leave_broadcast"

	MsgTypeSessionState  MsgType = "session_state"
	MsgTypeSyncClock     MsgType = "sync_clock"
	MsgTypeErrorResponse MsgType = "error_response"

	MsgTypeCustomMessage          MsgType = "custom_message"
	MsgTypeCustomMessageBroadcast MsgType = "custom_message_broadcast"
)

// Msg is a received or sendable wire message: the envelope head fields
// parsed out for dispatch, plus the full raw payload.
type Msg struct {
	Type      MsgType
	Timestamp int64
	RequestID uint32
	Data      json.RawMessage
}

type msgHead struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`
}

// DataTo decodes the message payload into the given value.
func (m Msg) DataTo(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message payload failed").
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

// Now returns the wire timestamp for the current time, in Unix microseconds.
func Now() int64 {
	return time.Now().UnixMicro()
}

// MsgFromPayload encodes a payload struct into a sendable message. The
// payload carries its own type, timestamp and optional request id fields;
// they are parsed back out into the envelope head.
func MsgFromPayload(v any) (Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Msg{}, errors.New("encoding message payload failed").Wrap(err)
	}
	return MsgFromData(data)
}

// MsgFromData parses the envelope head out of raw payload bytes.
func MsgFromData(data []byte) (Msg, error) {
	var head msgHead
	if err := json.Unmarshal(data, &head); err != nil {
		return Msg{}, errors.New("decoding message head failed").Wrap(err)
	}
	if head.Type == "" {
		return Msg{}, errors.New("message has no type")
	}

	return Msg{
		Type:      head.Type,
		Timestamp: head.Timestamp,
		RequestID: head.RequestID,
		Data:      data,
	}, nil
}

// Send writes the message on the connection and returns the number of bytes
// sent.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	if err := websocket.Message.Send(conn, []byte(msg.Data)); err != nil {
		return 0, errors.New("sending websocket message failed").
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}
	return len(msg.Data), nil
}

// Receive reads the next message from the connection and returns it with its
// size in bytes.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var data []byte
	if err := websocket.Message.Receive(conn, &data); err != nil {
		return Msg{}, 0, err
	}

	msg, err := MsgFromData(data)
	if err != nil {
		return Msg{}, len(data), err
	}
	return msg, len(data), nil
}

// Receiver reads incoming messages from a connection.
type Receiver func() (Msg, int, error)

// Sender writes a message to a connection, returning its size in bytes.
type Sender func(Msg) (int, error)

// ResponseSender sends messages back to the connected client.
type ResponseSender interface {
	// Send encodes and sends a payload struct.
	Send(payload any)

	// SendMsg sends an already-encoded message.
	SendMsg(Msg)
}
