package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/benchmates/theater/internal/domain"
	"github.com/benchmates/theater/internal/protocol"
)

func (ctl *WSController) writePump(ctx context.Context, c *wsSignalConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *WSController) readPump(ctx context.Context, peer domain.PeerID, c *wsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("peer", string(peer)).Msg("readPump closing")
		ctl.disconnect(peer)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("peer", string(peer)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("peer", string(peer)).Msg("readPump read error")
				return
			}
			ctl.dispatch(peer, c, data)
		}
	}
}

func (ctl *WSController) dispatch(peer domain.PeerID, c *wsSignalConn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case protocol.TypeJoin:
		ctl.handleJoin(peer, c, data)
	case protocol.TypePlay, protocol.TypePause, protocol.TypeSeek:
		ctl.handlePlayback(peer, env.Type, data)
	case protocol.TypeCallIntent:
		ctl.handleCallIntent(peer, data)
	case protocol.TypeCallAnswer:
		ctl.handleCallAnswer(peer, data)
	case protocol.TypeReactionSend:
		ctl.handleReaction(peer, data)
	case protocol.TypeFileChange:
		ctl.handleFileChange(peer, data)
	case protocol.TypePing:
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *WSController) sendJSON(c *wsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// relay marshals v and fans it out to the sender's roommates.
func (ctl *WSController) relay(from domain.PeerID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("relay marshal")
		return
	}
	ctl.Orch.Relay(from, b)
}

func (ctl *WSController) relayToRoom(room domain.RoomID, from domain.PeerID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("relay marshal")
		return
	}
	ctl.Orch.RelayToRoom(room, from, b)
}

func (ctl *WSController) sendError(c *wsSignalConn, msg string) {
	ctl.sendJSON(c, protocol.Error{Type: protocol.TypeError, Error: msg})
}
