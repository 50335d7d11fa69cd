// Package sync keeps two participants' local media players in lockstep.
//
// Echoes are cut two ways: every emitted event carries the originating peer
// identity and a per-peer sequence number, so a receiver drops its own
// events and stale deliveries outright; and while a remote event is being
// applied to the local player, the transitions the player fires back are
// suppressed for a short window, since those are genuine local transitions
// that origin tagging cannot tell apart from user actions.
package sync

import (
	"encoding/json"
	stdsync "sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/benchmates/theater/internal/client"
	"github.com/benchmates/theater/internal/domain"
	"github.com/benchmates/theater/internal/protocol"
)

const (
	// DefaultSuppressWindow must exceed the expected round-trip relay
	// latency or the echo loop reopens.
	DefaultSuppressWindow = 500 * time.Millisecond

	// DefaultDriftThreshold is the largest position skew, in seconds, that
	// is left uncorrected. Correcting below it trades visible jitter for
	// nothing; clock and relay skew alone produce that much.
	DefaultDriftThreshold = 0.5
)

// Player is the local media player surface the machine drives.
type Player interface {
	Play()
	Pause()
	Position() float64
	SetPosition(seconds float64)
}

// Machine mediates between one local player and the relay.
type Machine struct {
	ch     client.Channel
	player Player
	room   domain.RoomID

	suppressWindow time.Duration
	driftThreshold float64

	mu         stdsync.Mutex
	seq        uint64
	suppressed bool
	timer      *time.Timer
	lastSeq    map[domain.PeerID]uint64
	cancels    []func()
	started    bool
}

type Option func(*Machine)

func WithSuppressWindow(d time.Duration) Option {
	return func(m *Machine) { m.suppressWindow = d }
}

func WithDriftThreshold(seconds float64) Option {
	return func(m *Machine) { m.driftThreshold = seconds }
}

func New(ch client.Channel, player Player, room domain.RoomID, opts ...Option) *Machine {
	m := &Machine{
		ch:             ch,
		player:         player,
		room:           room,
		suppressWindow: DefaultSuppressWindow,
		driftThreshold: DefaultDriftThreshold,
		lastSeq:        make(map[domain.PeerID]uint64),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start subscribes the machine to the relay. Stop releases every
// subscription; the machine is single-use.
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	sub := func(t string, kind domain.PlaybackKind) {
		m.cancels = append(m.cancels, m.ch.Subscribe(t, func(data json.RawMessage) {
			m.onRemote(kind, data)
		}))
	}
	sub(protocol.TypeReceivePlay, domain.PlaybackPlay)
	sub(protocol.TypeReceivePause, domain.PlaybackPause)
	sub(protocol.TypeReceiveSeek, domain.PlaybackSeek)
	m.cancels = append(m.cancels, m.ch.Subscribe(protocol.TypePeerLeft, m.onPeerLeft))
}

func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cancels {
		c()
	}
	m.cancels = nil
	if m.timer != nil {
		m.timer.Stop()
	}
	m.suppressed = false
}

// OnLocalPlay, OnLocalPause and OnLocalSeek are the player observer: the
// UI calls them for every transition the local player fires. Transitions
// observed inside the suppression window are not re-emitted.
func (m *Machine) OnLocalPlay()  { m.emitLocal(domain.PlaybackPlay) }
func (m *Machine) OnLocalPause() { m.emitLocal(domain.PlaybackPause) }
func (m *Machine) OnLocalSeek()  { m.emitLocal(domain.PlaybackSeek) }

func (m *Machine) emitLocal(kind domain.PlaybackKind) {
	m.mu.Lock()
	if m.suppressed {
		m.mu.Unlock()
		log.Debug().Str("module", "sync").Str("kind", string(kind)).Msg("suppressed local transition")
		return
	}
	m.seq++
	seq := m.seq
	m.mu.Unlock()

	out := protocol.Playback{
		Type: string(kind),
		Room: m.room,
		Seq:  seq,
	}
	if kind.HasPosition() {
		out.Timestamp = m.player.Position()
	}
	if err := m.ch.Emit(out); err != nil {
		log.Error().Err(err).Str("module", "sync").Str("kind", string(kind)).Msg("emit playback")
	}
}

// Suppressed reports whether the player observer is currently muted.
func (m *Machine) Suppressed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suppressed
}

func (m *Machine) onRemote(kind domain.PlaybackKind, data json.RawMessage) {
	var p protocol.Playback
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "sync").Msg("bad playback event")
		return
	}
	ev := domain.PlaybackEvent{
		Kind:     kind,
		Position: p.Timestamp,
		Origin:   p.From,
		Seq:      p.Seq,
	}

	m.mu.Lock()
	if ev.Origin == m.ch.PeerID() {
		m.mu.Unlock()
		return
	}
	if ev.Origin != "" && ev.Seq != 0 {
		if last, ok := m.lastSeq[ev.Origin]; ok && ev.Seq <= last {
			m.mu.Unlock()
			log.Debug().Str("module", "sync").Uint64("seq", ev.Seq).Msg("stale playback event")
			return
		}
		m.lastSeq[ev.Origin] = ev.Seq
	}
	m.suppress()
	m.mu.Unlock()

	if ev.Kind.HasPosition() {
		if drift := m.player.Position() - ev.Position; drift > m.driftThreshold || drift < -m.driftThreshold {
			m.player.SetPosition(ev.Position)
		}
	}
	switch ev.Kind {
	case domain.PlaybackPlay:
		m.player.Play()
	case domain.PlaybackPause:
		m.player.Pause()
	case domain.PlaybackSeek:
		// position correction above is the whole effect
	}
}

// suppress raises the flag and schedules its release. Called with m.mu
// held; back-to-back remote events just push the release further out.
func (m *Machine) suppress() {
	m.suppressed = true
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.suppressWindow, func() {
		m.mu.Lock()
		m.suppressed = false
		m.mu.Unlock()
	})
}

// onPeerLeft forgets the departed peer's sequence state and lifts any
// pending suppression: the lone viewer regains immediate control.
func (m *Machine) onPeerLeft(data json.RawMessage) {
	var p protocol.PeerLeft
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lastSeq, p.Peer)
	if m.timer != nil {
		m.timer.Stop()
	}
	m.suppressed = false
	log.Info().Str("module", "sync").Str("peer", string(p.Peer)).Msg("partner left, sync state cleared")
}
