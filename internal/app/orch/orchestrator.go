// Package orch wires registry, rooms and policy into the relay core.
package orch

import (
	"github.com/benchmates/theater/internal/app"
	"github.com/benchmates/theater/internal/core"
	"github.com/benchmates/theater/internal/domain"
)

type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomFactory
	Policy   app.Policy
}

// Relay forwards a marshaled frame to every other member of the sender's
// room. A sender outside any room, or alone in one, is a silent no-op.
func (o *Orchestrator) Relay(from domain.PeerID, data core.Frame) {
	roomID, ok := o.Registry.RoomOf(from)
	if !ok {
		return
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}

	res := room.Broadcast(from, data)
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackpressure(room, slow) {
		case app.KickMember:
			o.Registry.Cancel(slow)
		case app.DropFrame, app.NoAction:
		}
	}
}

// RelayToRoom is Relay for callers that already know the room; used for
// notices about a peer that is no longer registered (disconnects).
func (o *Orchestrator) RelayToRoom(roomID domain.RoomID, from domain.PeerID, data core.Frame) {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}
	room.Broadcast(from, data)
}
