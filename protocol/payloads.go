package protocol

// Request is the head shared by all request payloads, also used to decode
// just the common fields of an incoming request.
type Request struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`
}

// Response is the head shared by all response payloads. It doubles as the
// full payload of responses carrying no further data, such as pings.
type Response struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Type      MsgType   `json:"type"`
	Timestamp int64     `json:"timestamp"`
	RequestID uint32    `json:"request_id,omitempty"`
	Code      ErrorCode `json:"code"`
}

type ParticipantJoinRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	// SessionID is the global id of the session to join; empty to create a
	// new session.
	SessionID string `json:"session_id,omitempty"`
}

type ParticipantJoinResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	SessionID     string `json:"session_id"`
	SessionUUID   string `json:"session_uuid"`
	ParticipantID uint32 `json:"participant_id"`
}

type ParticipantJoinBroadcast struct {
	Type            MsgType `json:"type"`
	Timestamp       int64   `json:"timestamp"`
	OriginTimestamp int64   `json:"origin_timestamp"`
	ParticipantID   uint32  `json:"participant_id"`
}

type ParticipantLeaveBroadcast struct {
	Type            MsgType `json:"type"`
	Timestamp       int64   `json:"timestamp"`
	OriginTimestamp int64   `json:"origin_timestamp"`
	ParticipantID   uint32  `json:"participant_id"`
}

type Participant struct {
	ID uint32 `json:"id"`
}

// SessionState is sent to a participant right after joining and describes
// the current session content.
type SessionState struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`

	Participants []Participant `json:"participants,omitempty"`
	Volumes      []Volume      `json:"volumes,omitempty"`
}

type SyncClock struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
}

// CustomMessage is an opaque application payload relayed to the other
// session participants, or to ParticipantIDs only when set.
type CustomMessage struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`

	ParticipantIDs []uint32 `json:"participant_ids,omitempty"`
	Body           []byte   `json:"body"`
}

type CustomMessageBroadcast struct {
	Type            MsgType `json:"type"`
	Timestamp       int64   `json:"timestamp"`
	OriginTimestamp int64   `json:"origin_timestamp"`

	ParticipantID uint32 `json:"participant_id"`
	Body          []byte `json:"body"`
}
