package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/benchmates/theater/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned connections.
type roomImpl struct {
	room   *domain.Room
	mu     sync.RWMutex
	byPeer map[domain.PeerID]SignalConnection
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:   room,
		byPeer: make(map[domain.PeerID]SignalConnection),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPeer)
}

func (r *roomImpl) Members() []domain.PeerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PeerID, 0, len(r.byPeer))
	for peer := range r.byPeer {
		out = append(out, peer)
	}
	return out
}

// AddMember is idempotent: re-adding a present peer just refreshes its
// connection.
func (r *roomImpl) AddMember(peer domain.PeerID, conn SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPeer[peer] = conn
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("peer", string(peer)).Msg("member added")
}

func (r *roomImpl) RemoveMember(peer domain.PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byPeer, peer)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("peer", string(peer)).Msg("member removed")
}

func (r *roomImpl) Broadcast(from domain.PeerID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for peer, conn := range r.byPeer {
		if peer == from {
			continue
		}
		if err := conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, peer)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
