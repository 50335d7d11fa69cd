package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/benchmates/theater/internal/app/orch"
	"github.com/benchmates/theater/internal/core"
	"github.com/benchmates/theater/internal/domain"
	"github.com/benchmates/theater/internal/protocol"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// WSController owns the websocket side of the relay: one goroutine pair per
// peer, envelope dispatch, and fan-out through the orchestrator.
type WSController struct {
	Orch      *orch.Orchestrator
	Reactions *ReactionLimiter
	ReadLimit int64
}

func NewWSController(o *orch.Orchestrator) *WSController {
	return &WSController{
		Orch:      o,
		Reactions: NewReactionLimiter(10, time.Second),
	}
}

type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection until either
// side goes away. The peer identity comes from the client-token middleware;
// the first frame the client sees is a welcome carrying that identity.
func (ctl *WSController) HandleSignal(ctx context.Context, c *gin.Context) {
	peer := domain.PeerID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("peer", string(peer)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &wsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	// The registered cancel also closes the socket: the read pump blocks in
	// ReadMessage and would never observe the context alone.
	ctl.Orch.Registry.Bind(peer, conn, func() {
		cancel()
		conn.Close()
	})
	ctl.sendJSON(conn, protocol.Welcome{Type: protocol.TypeWelcome, Peer: peer})

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, peer, conn)
}

// disconnect runs exactly once per connection, from the read pump's defer.
// The remaining room members get a peer-left notice so their machines can
// react to the partner going away.
func (ctl *WSController) disconnect(peer domain.PeerID) {
	roomID, ok := ctl.Orch.Leave(peer)
	ctl.Orch.Registry.Unbind(peer)
	ctl.Reactions.Forget(peer)
	if ok {
		ctl.relayToRoom(roomID, peer, protocol.PeerLeft{Type: protocol.TypePeerLeft, Peer: peer})
	}
}
