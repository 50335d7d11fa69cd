package main

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// virtualPlayer stands in for a real media element: position advances with
// wall-clock time while playing.
type virtualPlayer struct {
	mu        sync.Mutex
	playing   bool
	pos       float64
	updatedAt time.Time
}

func (p *virtualPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return
	}
	p.playing = true
	p.updatedAt = time.Now()
	log.Info().Float64("pos", p.pos).Msg("player: play")
}

func (p *virtualPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return
	}
	p.pos += time.Since(p.updatedAt).Seconds()
	p.playing = false
	log.Info().Float64("pos", p.pos).Msg("player: pause")
}

func (p *virtualPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return p.pos + time.Since(p.updatedAt).Seconds()
	}
	return p.pos
}

func (p *virtualPlayer) SetPosition(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = seconds
	p.updatedAt = time.Now()
	log.Info().Float64("pos", seconds).Msg("player: seek")
}
