package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/benchmates/theater/internal/domain"
	"github.com/benchmates/theater/internal/protocol"
)

const maxRoomIDLen = 64

func (ctl *WSController) handleJoin(peer domain.PeerID, c *wsSignalConn, data []byte) {
	var p protocol.Join
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	if p.Room == "" {
		ctl.sendError(c, "empty room id")
		return
	}
	if len(p.Room) > maxRoomIDLen {
		p.Room = p.Room[:maxRoomIDLen]
	}

	log.Info().Str("module", "signal").Str("peer", string(peer)).Str("room", string(p.Room)).Msg("join")
	ctl.Orch.Join(peer, p.Room)

	room, ok := ctl.Orch.Rooms.Get(p.Room)
	count := 0
	if ok {
		count = room.MemberCount()
	}
	ctl.sendJSON(c, protocol.Joined{
		Type:  protocol.TypeJoined,
		Room:  p.Room,
		Count: count,
	})
}
