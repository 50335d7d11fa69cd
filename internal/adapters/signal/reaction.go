package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/benchmates/theater/internal/domain"
	"github.com/benchmates/theater/internal/protocol"
)

// handleReaction fans an emoji out to the room. Reactions are best-effort
// and unordered; floods are capped per peer and dropped silently.
func (ctl *WSController) handleReaction(peer domain.PeerID, data []byte) {
	var p protocol.Reaction
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad reaction payload")
		return
	}
	if p.Emoji == "" {
		return
	}
	if !ctl.Reactions.Allow(peer) {
		log.Debug().Str("module", "signal").Str("peer", string(peer)).Msg("reaction rate limited")
		return
	}
	ctl.relay(peer, protocol.Reaction{
		Type:  protocol.TypeReactionReceive,
		Emoji: p.Emoji,
	})
}
