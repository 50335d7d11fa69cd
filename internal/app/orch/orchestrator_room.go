package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/benchmates/theater/internal/domain"
)

// Join puts the peer into the room, creating it on first use. A peer is in
// at most one room, so joining moves it out of any previous one. Joining a
// room the peer is already in is a no-op apart from refreshing the binding.
func (o *Orchestrator) Join(peer domain.PeerID, roomID domain.RoomID) {
	if prev, ok := o.Registry.RoomOf(peer); ok && prev != roomID {
		o.leaveRoom(peer, prev)
	}
	conn, ok := o.Registry.Conn(peer)
	if !ok {
		return
	}
	room := o.Rooms.GetOrCreate(roomID)
	room.AddMember(peer, conn)
	o.Registry.UpdateRoom(peer, roomID)
	log.Info().Str("module", "app.orch").Str("peer", string(peer)).Str("room", string(roomID)).Msg("joined room")
}

// Leave removes the peer from its room, if any, and returns that room's ID
// so the caller can notify the remaining members. Empty rooms are dropped.
func (o *Orchestrator) Leave(peer domain.PeerID) (domain.RoomID, bool) {
	roomID, ok := o.Registry.RoomOf(peer)
	if !ok {
		return "", false
	}
	o.leaveRoom(peer, roomID)
	return roomID, true
}

func (o *Orchestrator) leaveRoom(peer domain.PeerID, roomID domain.RoomID) {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		o.Registry.ClearRoom(peer)
		return
	}
	room.RemoveMember(peer)
	o.Registry.ClearRoom(peer)
	if room.MemberCount() == 0 {
		o.Rooms.Drop(roomID)
		log.Info().Str("module", "app.orch").Str("room", string(roomID)).Msg("dropped empty room")
	}
}
