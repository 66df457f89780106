package modules

import (
	"context"

	"github.com/aukilabs/yggdrasil/models"
	"github.com/aukilabs/yggdrasil/protocol"
)

// Module is the interface that describes a module that extends Yggdrasil
// capabilities.
type Module interface {
	// Returns the module name.
	Name() string

	// Initializes the module.
	Init(*models.Session, *models.Participant)

	// Handles a given message. Modules are free to decide whether they handle a
	// message.
	//
	// Returning protocol.ErrModuleMsgSkip indicates that handling a message was
	// skipped.
	//
	// Any other returned errors causes the current WebSocket client to be
	// disconnected.
	HandleMsg(context.Context, protocol.ResponseSender, protocol.Msg) error

	// Handles a client disconnection.
	HandleDisconnect()
}
