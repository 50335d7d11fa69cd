// Package client provides the connection handle the client-side machines
// share. The channel is constructed once by the orchestrating caller and
// injected into each machine; its lifecycle is owned there, never ambient.
package client

import (
	"encoding/json"

	"github.com/benchmates/theater/internal/domain"
)

// Handler consumes one inbound frame of the subscribed type.
type Handler func(data json.RawMessage)

// Channel is an event-based publish/subscribe connection to the relay.
// Subscriptions are scoped: the returned cancel must be called on teardown
// of the owning machine, after which the handler is never invoked again.
type Channel interface {
	// PeerID is the transport-assigned identity of this connection.
	PeerID() domain.PeerID

	// Emit sends a frame; the value carries its own "type" field.
	Emit(v any) error

	Subscribe(msgType string, h Handler) (cancel func())

	Close() error
}
