package domain

import "github.com/google/uuid"

// PeerID is the opaque identity the transport assigns to a connection.
// It exists only for the connection lifetime.
type PeerID string

func NewPeerID() PeerID {
	return PeerID(uuid.NewString())
}
