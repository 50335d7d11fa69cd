package signal

import (
	"sync"
	"time"

	"github.com/benchmates/theater/internal/domain"
)

// ReactionLimiter caps how many reactions a peer may send inside a sliding
// window. Over-limit reactions are dropped, not queued.
type ReactionLimiter struct {
	mu       sync.Mutex
	history  map[domain.PeerID][]time.Time
	limit    int
	interval time.Duration
}

func NewReactionLimiter(limit int, interval time.Duration) *ReactionLimiter {
	return &ReactionLimiter{
		history:  make(map[domain.PeerID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *ReactionLimiter) Allow(peer domain.PeerID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[peer]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[peer] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[peer] = fresh
	return true
}

// Forget drops a disconnected peer's window so the map does not grow with
// connection churn.
func (rl *ReactionLimiter) Forget(peer domain.PeerID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, peer)
}
