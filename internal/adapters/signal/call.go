package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/benchmates/theater/internal/domain"
	"github.com/benchmates/theater/internal/protocol"
)

// handleCallIntent rebroadcasts an offer as an incoming-call notice. The
// sender identity is preserved so the callee can address its answer. The
// offer blob is never inspected here.
func (ctl *WSController) handleCallIntent(peer domain.PeerID, data []byte) {
	var p protocol.CallIntent
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad call-intent payload")
		return
	}
	log.Info().Str("module", "signal").Str("peer", string(peer)).Str("room", string(p.Room)).Msg("call intent")
	ctl.relay(peer, protocol.IncomingCall{
		Type:  protocol.TypeIncomingCall,
		Offer: p.Offer,
		From:  peer,
	})
}

// handleCallAnswer rebroadcasts an answer as a call-accepted notice. It is
// room-wide rather than peer-targeted; the caller's handshake guards make
// extra deliveries harmless. An answer with no outstanding offer is the
// receiving machine's problem, not a relay error.
func (ctl *WSController) handleCallAnswer(peer domain.PeerID, data []byte) {
	var p protocol.CallAnswer
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad call-answer payload")
		return
	}
	log.Info().Str("module", "signal").Str("peer", string(peer)).Str("room", string(p.Room)).Msg("call answer")
	ctl.relay(peer, protocol.CallAccepted{
		Type:   protocol.TypeCallAccepted,
		Answer: p.Answer,
	})
}
