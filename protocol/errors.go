package protocol

import "github.com/aukilabs/go-tooling/pkg/errors"

const (
	// ErrTypeMsgSkip tags the error a module returns when it does not handle
	// a message type.
	ErrTypeMsgSkip = "websocket-msg-skip"

	// ErrTypeSessionNotJoined tags errors caused by messages that require a
	// joined session.
	ErrTypeSessionNotJoined = "websocket-session-not-joined"
)

// ErrModuleMsgSkip is returned by modules to report that handling a message
// was deliberately skipped.
var ErrModuleMsgSkip = errors.New("module message skipped").WithType(ErrTypeMsgSkip)

// ErrorCode qualifies an error response on the wire.
type ErrorCode string

const (
	ErrorCodeBadRequest           ErrorCode = "bad_request"
	ErrorCodeNotFound             ErrorCode = "not_found"
	ErrorCodeUnauthorized         ErrorCode = "unauthorized"
	ErrorCodeTooLarge             ErrorCode = "too_large"
	ErrorCodeSessionAlreadyJoined ErrorCode = "session_already_joined"
	ErrorCodeInternalServerError  ErrorCode = "internal_server_error"
	ErrorCodeServerTooBusy        ErrorCode = "server_too_busy"
)
