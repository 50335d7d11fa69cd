package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/benchmates/theater/internal/core"
	"github.com/benchmates/theater/internal/domain"
)

type peerEntry struct {
	Room   domain.RoomID
	Conn   core.SignalConnection
	Cancel context.CancelFunc
}

// Registry tracks every connected peer and which room, if any, it is in.
// A peer is in at most one room at a time.
type Registry struct {
	mu    sync.RWMutex
	peers map[domain.PeerID]*peerEntry
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[domain.PeerID]*peerEntry)}
}

func (r *Registry) Bind(peer domain.PeerID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[peer] = &peerEntry{Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("peer", string(peer)).Msg("bound peer")
}

func (r *Registry) Unbind(peer domain.PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, peer)
	log.Info().Str("module", "app.registry").Str("peer", string(peer)).Msg("unbound peer")
}

func (r *Registry) Conn(peer domain.PeerID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.peers[peer]; ok {
		return e.Conn, true
	}
	return nil, false
}

// RoomOf returns the room the peer currently occupies, if any.
func (r *Registry) RoomOf(peer domain.PeerID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.peers[peer]
	if !ok || e.Room == "" {
		return "", false
	}
	return e.Room, true
}

func (r *Registry) UpdateRoom(peer domain.PeerID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[peer]
	if !ok {
		return false
	}
	e.Room = room
	log.Info().Str("module", "app.registry").Str("peer", string(peer)).Str("room", string(room)).Msg("updated room")
	return true
}

func (r *Registry) ClearRoom(peer domain.PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.peers[peer]; ok {
		e.Room = ""
	}
}

// Cancel aborts the peer's connection context, tearing the session down.
func (r *Registry) Cancel(peer domain.PeerID) bool {
	r.mu.RLock()
	e, ok := r.peers[peer]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("peer", string(peer)).Msg("canceled peer")
	return true
}
