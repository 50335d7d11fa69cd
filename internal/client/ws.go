package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/benchmates/theater/internal/domain"
	"github.com/benchmates/theater/internal/protocol"
)

var ErrChannelClosed = errors.New("channel closed")

// WSChannel implements Channel over a gorilla websocket. One read pump
// dispatches inbound frames to subscribers sequentially, so handlers see a
// single logical thread of control.
type WSChannel struct {
	conn *websocket.Conn
	peer domain.PeerID

	writeMu sync.Mutex

	subMu   sync.Mutex
	nextSub int
	subs    map[string]map[int]Handler

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the relay's signal endpoint and blocks until the server
// delivers the welcome frame carrying this connection's peer identity.
func Dial(ctx context.Context, url string) (*WSChannel, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	ch := &WSChannel{
		conn: conn,
		subs: make(map[string]map[int]Handler),
		done: make(chan struct{}),
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	}
	var welcome protocol.Welcome
	if err := conn.ReadJSON(&welcome); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	if welcome.Type != protocol.TypeWelcome || welcome.Peer == "" {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected first frame %q", welcome.Type)
	}
	_ = conn.SetReadDeadline(time.Time{})
	ch.peer = welcome.Peer

	go ch.readPump()
	log.Info().Str("module", "client").Str("peer", string(ch.peer)).Msg("channel connected")
	return ch, nil
}

func (ch *WSChannel) PeerID() domain.PeerID { return ch.peer }

func (ch *WSChannel) Emit(v any) error {
	select {
	case <-ch.done:
		return ErrChannelClosed
	default:
	}
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	if err := ch.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	return ch.conn.WriteJSON(v)
}

func (ch *WSChannel) Subscribe(msgType string, h Handler) (cancel func()) {
	ch.subMu.Lock()
	defer ch.subMu.Unlock()
	id := ch.nextSub
	ch.nextSub++
	if ch.subs[msgType] == nil {
		ch.subs[msgType] = make(map[int]Handler)
	}
	ch.subs[msgType][id] = h
	return func() {
		ch.subMu.Lock()
		defer ch.subMu.Unlock()
		delete(ch.subs[msgType], id)
	}
}

func (ch *WSChannel) Close() error {
	var err error
	ch.closeOnce.Do(func() {
		close(ch.done)
		err = ch.conn.Close()
		log.Info().Str("module", "client").Str("peer", string(ch.peer)).Msg("channel closed")
	})
	return err
}

func (ch *WSChannel) readPump() {
	defer ch.Close()
	for {
		_, data, err := ch.conn.ReadMessage()
		if err != nil {
			select {
			case <-ch.done:
			default:
				log.Info().Err(err).Str("module", "client").Str("peer", string(ch.peer)).Msg("read pump stopped")
			}
			return
		}
		ch.dispatch(data)
	}
}

func (ch *WSChannel) dispatch(data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad frame")
		return
	}
	ch.subMu.Lock()
	handlers := make([]Handler, 0, len(ch.subs[env.Type]))
	for _, h := range ch.subs[env.Type] {
		handlers = append(handlers, h)
	}
	ch.subMu.Unlock()
	for _, h := range handlers {
		h(data)
	}
}
