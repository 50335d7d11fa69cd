package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/benchmates/theater/internal/domain"
	"github.com/benchmates/theater/internal/protocol"
)

// handlePlayback relays play/pause/seek to the sender's roommates as the
// matching receive-* event. The relay stamps the authoritative sender
// identity; the client-chosen sequence number passes through untouched so
// receivers can drop echoes and stale deliveries.
func (ctl *WSController) handlePlayback(peer domain.PeerID, msgType string, data []byte) {
	var p protocol.Playback
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", msgType).Msg("bad playback payload")
		return
	}

	kind := domain.PlaybackKind(msgType)
	if err := kind.Validate(); err != nil {
		log.Warn().Str("module", "signal").Str("type", msgType).Msg("unroutable playback kind")
		return
	}

	out := protocol.Playback{
		Type: protocol.ReceiveType(kind),
		From: peer,
		Seq:  p.Seq,
	}
	if kind.HasPosition() {
		out.Timestamp = p.Timestamp
	}
	ctl.relay(peer, out)
}

// handleFileChange tells the partner which local file was just loaded.
// Informational only; nothing on the receiving side synchronizes to it.
func (ctl *WSController) handleFileChange(peer domain.PeerID, data []byte) {
	var p protocol.FileChange
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad file-change payload")
		return
	}
	ctl.relay(peer, protocol.FileChange{
		Type: protocol.TypeReceiveFileChange,
		Name: p.Name,
		From: peer,
	})
}
