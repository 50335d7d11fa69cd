package signal

import "github.com/benchmates/theater/internal/protocol"

func (ctl *WSController) handlePing(c *wsSignalConn) {
	ctl.sendJSON(c, protocol.Envelope{Type: protocol.TypePong})
}
