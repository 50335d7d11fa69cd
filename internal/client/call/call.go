// Package call drives peer-connection negotiation through the signaling
// relay. One Machine handles at most one call; after it reaches Ended a
// fresh Machine is created for the next attempt.
package call

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/benchmates/theater/internal/client"
	"github.com/benchmates/theater/internal/domain"
	"github.com/benchmates/theater/internal/protocol"
)

// State transitions are monotonic:
// Idle → Calling | ReceivingCall → Connected → Ended.
type State int

const (
	StateIdle State = iota
	StateCalling
	StateReceivingCall
	StateConnected
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCalling:
		return "calling"
	case StateReceivingCall:
		return "receiving_call"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

var (
	ErrNotIdle      = errors.New("call already in progress")
	ErrNotReceiving = errors.New("no incoming call to accept")
	ErrEnded        = errors.New("call machine ended")
)

// MediaStream is an acquired local camera/microphone capture.
type MediaStream interface {
	Release()
}

// PeerConnection is the opaque negotiation handle. Offers and answers are
// complete single-shot descriptions: CreateOffer and AcceptOffer return
// only after candidate gathering finishes, so each direction exchanges one
// blob instead of streaming candidates.
type PeerConnection interface {
	CreateOffer(ctx context.Context) (json.RawMessage, error)
	AcceptOffer(ctx context.Context, offer json.RawMessage) (json.RawMessage, error)
	AcceptAnswer(answer json.RawMessage) error
	Close() error
}

// Engine acquires local media and builds peer connections around it.
type Engine interface {
	Acquire(ctx context.Context) (MediaStream, error)
	NewConnection(stream MediaStream) (PeerConnection, error)
}

type Role int

const (
	RoleNone Role = iota
	RoleInitiator
	RoleResponder
)

// Machine is the per-participant handshake driver. The peer-connection
// handle lives inside it; End tears the handle down before the machine
// goes terminal, so there is never more than one live handle.
type Machine struct {
	ch     client.Channel
	engine Engine
	room   domain.RoomID

	mu      sync.Mutex
	state   State
	role    Role
	pc      PeerConnection
	stream  MediaStream
	caller  domain.PeerID
	offer   json.RawMessage
	cancels []func()

	onIncoming func(from domain.PeerID)
	onEnded    func()
}

func New(ch client.Channel, engine Engine, room domain.RoomID) *Machine {
	return &Machine{
		ch:     ch,
		engine: engine,
		room:   room,
		state:  StateIdle,
	}
}

// OnIncoming registers the callback fired when a call intent arrives while
// the machine is Idle. Set before Start.
func (m *Machine) OnIncoming(fn func(from domain.PeerID)) { m.onIncoming = fn }

// OnEnded registers the callback fired when the machine goes terminal.
// Set before Start.
func (m *Machine) OnEnded(fn func()) { m.onEnded = fn }

func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels = append(m.cancels,
		m.ch.Subscribe(protocol.TypeIncomingCall, m.onIncomingCall),
		m.ch.Subscribe(protocol.TypeCallAccepted, m.onCallAccepted),
		m.ch.Subscribe(protocol.TypePeerLeft, m.onPeerLeft),
	)
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Initiate acquires local media, builds a peer connection, and emits the
// offer. On media or negotiation failure the machine stays Idle and the
// error is returned for the caller to surface. The wait for the partner's
// answer is unbounded; End aborts it.
func (m *Machine) Initiate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateEnded {
		return ErrEnded
	}
	if m.state != StateIdle {
		return ErrNotIdle
	}

	if err := m.setupConnection(ctx); err != nil {
		return err
	}
	offer, err := m.pc.CreateOffer(ctx)
	if err != nil {
		m.teardownLocked()
		return err
	}
	if err := m.ch.Emit(protocol.CallIntent{
		Type:  protocol.TypeCallIntent,
		Room:  m.room,
		Offer: offer,
	}); err != nil {
		m.teardownLocked()
		return err
	}
	m.role = RoleInitiator
	m.state = StateCalling
	log.Info().Str("module", "call").Msg("offer sent, calling")
	return nil
}

// Accept answers the stored incoming offer: responder-role connection,
// apply the offer, emit the answer back through the relay.
func (m *Machine) Accept(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReceivingCall {
		return ErrNotReceiving
	}

	if err := m.setupConnection(ctx); err != nil {
		// The stored offer survives; the user may retry while the
		// caller still waits.
		return err
	}
	answer, err := m.pc.AcceptOffer(ctx, m.offer)
	if err != nil {
		m.terminateLocked()
		return err
	}
	if err := m.ch.Emit(protocol.CallAnswer{
		Type:   protocol.TypeCallAnswer,
		Room:   m.room,
		Answer: answer,
	}); err != nil {
		m.terminateLocked()
		return err
	}
	m.role = RoleResponder
	m.state = StateConnected
	log.Info().Str("module", "call").Str("caller", string(m.caller)).Msg("answer sent, connected")
	return nil
}

// End releases media, closes the handle, and goes terminal. Valid from any
// state; idempotent.
func (m *Machine) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateEnded {
		return
	}
	m.terminateLocked()
	log.Info().Str("module", "call").Msg("call ended")
}

// terminateLocked is the single path into the terminal state: handle and
// media torn down first, subscriptions released, callback fired.
func (m *Machine) terminateLocked() {
	m.teardownLocked()
	m.state = StateEnded
	for _, c := range m.cancels {
		c()
	}
	m.cancels = nil
	m.notifyEnded()
}

// setupConnection acquires media (once) and installs a fresh handle.
// Called with m.mu held and m.pc nil.
func (m *Machine) setupConnection(ctx context.Context) error {
	if m.stream == nil {
		stream, err := m.engine.Acquire(ctx)
		if err != nil {
			log.Warn().Err(err).Str("module", "call").Msg("media acquisition failed")
			return err
		}
		m.stream = stream
	}
	pc, err := m.engine.NewConnection(m.stream)
	if err != nil {
		return err
	}
	m.pc = pc
	return nil
}

func (m *Machine) teardownLocked() {
	if m.pc != nil {
		_ = m.pc.Close()
		m.pc = nil
	}
	if m.stream != nil {
		m.stream.Release()
		m.stream = nil
	}
	m.role = RoleNone
}

func (m *Machine) notifyEnded() {
	if m.onEnded != nil {
		go m.onEnded()
	}
}

// onIncomingCall records the offer and caller. Guard: anything but Idle
// ignores the intent — a second incoming call during an active one is
// dropped on the floor.
func (m *Machine) onIncomingCall(data json.RawMessage) {
	var p protocol.IncomingCall
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "call").Msg("bad incoming-call payload")
		return
	}
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		log.Info().Str("module", "call").Str("state", m.state.String()).Msg("ignoring call intent, not idle")
		return
	}
	m.caller = p.From
	m.offer = p.Offer
	m.state = StateReceivingCall
	m.mu.Unlock()

	log.Info().Str("module", "call").Str("from", string(p.From)).Msg("incoming call")
	if m.onIncoming != nil {
		m.onIncoming(p.From)
	}
}

// onCallAccepted applies the answer. Guard: only honored while Calling —
// the relay broadcasts room-wide, so duplicates after Connected and
// answers that never had an offer both land here and are ignored.
func (m *Machine) onCallAccepted(data json.RawMessage) {
	var p protocol.CallAccepted
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "call").Msg("bad call-accepted payload")
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateCalling {
		log.Info().Str("module", "call").Str("state", m.state.String()).Msg("ignoring call-accepted")
		return
	}
	if err := m.pc.AcceptAnswer(p.Answer); err != nil {
		log.Error().Err(err).Str("module", "call").Msg("apply answer")
		m.terminateLocked()
		return
	}
	m.state = StateConnected
	log.Info().Str("module", "call").Msg("answer applied, connected")
}

// onPeerLeft ends the call when the partner's connection goes away; there
// is nobody left to negotiate or talk with.
func (m *Machine) onPeerLeft(data json.RawMessage) {
	var p protocol.PeerLeft
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	m.mu.Lock()
	active := m.state == StateCalling || m.state == StateReceivingCall || m.state == StateConnected
	m.mu.Unlock()
	if active {
		log.Info().Str("module", "call").Str("peer", string(p.Peer)).Msg("partner left, ending call")
		m.End()
	}
}
