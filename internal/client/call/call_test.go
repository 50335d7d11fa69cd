package call

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/benchmates/theater/internal/client"
	"github.com/benchmates/theater/internal/domain"
	"github.com/benchmates/theater/internal/protocol"
)

type fakeChannel struct {
	peer     domain.PeerID
	emitted  []any
	onEmit   func(v any)
	handlers map[string][]client.Handler
}

func newFakeChannel(peer domain.PeerID) *fakeChannel {
	return &fakeChannel{peer: peer, handlers: make(map[string][]client.Handler)}
}

func (c *fakeChannel) PeerID() domain.PeerID { return c.peer }

func (c *fakeChannel) Emit(v any) error {
	c.emitted = append(c.emitted, v)
	if c.onEmit != nil {
		c.onEmit(v)
	}
	return nil
}

func (c *fakeChannel) Subscribe(msgType string, h client.Handler) func() {
	c.handlers[msgType] = append(c.handlers[msgType], h)
	return func() {}
}

func (c *fakeChannel) Close() error { return nil }

func (c *fakeChannel) deliver(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatal(err)
	}
	for _, h := range c.handlers[env.Type] {
		h(data)
	}
}

// connect wires two channels the way the relay does: an intent from one
// side arrives at the other as incoming-call with the sender identity, an
// answer comes back as call-accepted.
func connect(t *testing.T, a, b *fakeChannel) {
	t.Helper()
	route := func(from, to *fakeChannel) func(v any) {
		return func(v any) {
			switch msg := v.(type) {
			case protocol.CallIntent:
				to.deliver(t, protocol.IncomingCall{
					Type:  protocol.TypeIncomingCall,
					Offer: msg.Offer,
					From:  from.peer,
				})
			case protocol.CallAnswer:
				to.deliver(t, protocol.CallAccepted{
					Type:   protocol.TypeCallAccepted,
					Answer: msg.Answer,
				})
			}
		}
	}
	a.onEmit = route(a, b)
	b.onEmit = route(b, a)
}

type fakeStream struct {
	released bool
}

func (s *fakeStream) Release() { s.released = true }

type fakePC struct {
	offered         bool
	appliedOffer    json.RawMessage
	answersAccepted int
	closed          bool
}

func (pc *fakePC) CreateOffer(ctx context.Context) (json.RawMessage, error) {
	pc.offered = true
	return json.RawMessage(`{"sdp":"offer"}`), nil
}

func (pc *fakePC) AcceptOffer(ctx context.Context, offer json.RawMessage) (json.RawMessage, error) {
	pc.appliedOffer = offer
	return json.RawMessage(`{"sdp":"answer"}`), nil
}

func (pc *fakePC) AcceptAnswer(answer json.RawMessage) error {
	pc.answersAccepted++
	return nil
}

func (pc *fakePC) Close() error {
	pc.closed = true
	return nil
}

type fakeEngine struct {
	acquireErr error
	streams    []*fakeStream
	pcs        []*fakePC
}

func (e *fakeEngine) Acquire(ctx context.Context) (MediaStream, error) {
	if e.acquireErr != nil {
		return nil, e.acquireErr
	}
	s := &fakeStream{}
	e.streams = append(e.streams, s)
	return s, nil
}

func (e *fakeEngine) NewConnection(stream MediaStream) (PeerConnection, error) {
	pc := &fakePC{}
	e.pcs = append(e.pcs, pc)
	return pc, nil
}

func newMachine(t *testing.T, peer domain.PeerID) (*Machine, *fakeChannel, *fakeEngine) {
	t.Helper()
	ch := newFakeChannel(peer)
	engine := &fakeEngine{}
	m := New(ch, engine, "movie-1")
	m.Start()
	return m, ch, engine
}

func TestInitiateEntersCalling(t *testing.T) {
	t.Parallel()
	m, ch, engine := newMachine(t, "a")

	if err := m.Initiate(context.Background()); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if got := m.State(); got != StateCalling {
		t.Fatalf("state = %v, want calling", got)
	}
	if len(ch.emitted) != 1 {
		t.Fatalf("emitted %d frames, want 1", len(ch.emitted))
	}
	intent, ok := ch.emitted[0].(protocol.CallIntent)
	if !ok || intent.Room != "movie-1" || len(intent.Offer) == 0 {
		t.Fatalf("emitted = %+v", ch.emitted[0])
	}
	if !engine.pcs[0].offered {
		t.Fatal("no offer was created on the connection")
	}
}

func TestMediaDenialStaysIdle(t *testing.T) {
	t.Parallel()
	m, ch, engine := newMachine(t, "a")
	engine.acquireErr = errors.New("permission denied")

	if err := m.Initiate(context.Background()); err == nil {
		t.Fatal("expected media acquisition error")
	}
	if got := m.State(); got != StateIdle {
		t.Fatalf("state = %v, want idle after media denial", got)
	}
	if len(ch.emitted) != 0 {
		t.Fatal("nothing should be emitted on media denial")
	}
}

func TestHandshake(t *testing.T) {
	t.Parallel()
	caller, callerCh, callerEngine := newMachine(t, "a")
	callee, calleeCh, calleeEngine := newMachine(t, "b")
	connect(t, callerCh, calleeCh)

	var incomingFrom domain.PeerID
	callee.OnIncoming(func(from domain.PeerID) { incomingFrom = from })

	if err := caller.Initiate(context.Background()); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if got := callee.State(); got != StateReceivingCall {
		t.Fatalf("callee state = %v, want receiving_call", got)
	}
	if incomingFrom != "a" {
		t.Fatalf("incoming from = %q, want a", incomingFrom)
	}

	if err := callee.Accept(context.Background()); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got := callee.State(); got != StateConnected {
		t.Fatalf("callee state = %v, want connected", got)
	}
	if got := caller.State(); got != StateConnected {
		t.Fatalf("caller state = %v, want connected", got)
	}
	if string(calleeEngine.pcs[0].appliedOffer) != `{"sdp":"offer"}` {
		t.Fatalf("callee applied offer %s", calleeEngine.pcs[0].appliedOffer)
	}
	if callerEngine.pcs[0].answersAccepted != 1 {
		t.Fatalf("caller accepted %d answers, want 1", callerEngine.pcs[0].answersAccepted)
	}

	// The relay is room-wide, so a duplicate call-accepted can arrive
	// after the handshake; it must change nothing.
	callerCh.deliver(t, protocol.CallAccepted{
		Type:   protocol.TypeCallAccepted,
		Answer: json.RawMessage(`{"sdp":"answer"}`),
	})
	if got := caller.State(); got != StateConnected {
		t.Fatalf("state after duplicate accept = %v, want connected", got)
	}
	if callerEngine.pcs[0].answersAccepted != 1 {
		t.Fatal("duplicate call-accepted was applied")
	}
}

func TestAnswerWithoutOfferIgnored(t *testing.T) {
	t.Parallel()
	m, ch, _ := newMachine(t, "a")

	ch.deliver(t, protocol.CallAccepted{
		Type:   protocol.TypeCallAccepted,
		Answer: json.RawMessage(`{"sdp":"answer"}`),
	})
	if got := m.State(); got != StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}
}

func TestSecondIncomingCallIgnored(t *testing.T) {
	t.Parallel()
	m, ch, _ := newMachine(t, "b")

	ch.deliver(t, protocol.IncomingCall{
		Type:  protocol.TypeIncomingCall,
		Offer: json.RawMessage(`{"sdp":"first"}`),
		From:  "a",
	})
	ch.deliver(t, protocol.IncomingCall{
		Type:  protocol.TypeIncomingCall,
		Offer: json.RawMessage(`{"sdp":"second"}`),
		From:  "c",
	})

	if got := m.State(); got != StateReceivingCall {
		t.Fatalf("state = %v, want receiving_call", got)
	}
	if err := m.Accept(context.Background()); err != nil {
		t.Fatalf("accept: %v", err)
	}
	// The first offer is the one answered.
	ca, ok := ch.emitted[0].(protocol.CallAnswer)
	if !ok {
		t.Fatalf("emitted = %+v", ch.emitted[0])
	}
	if len(ca.Answer) == 0 {
		t.Fatal("no answer payload")
	}
}

func TestInitiateWhileBusy(t *testing.T) {
	t.Parallel()
	m, _, _ := newMachine(t, "a")
	if err := m.Initiate(context.Background()); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if err := m.Initiate(context.Background()); !errors.Is(err, ErrNotIdle) {
		t.Fatalf("second initiate = %v, want ErrNotIdle", err)
	}
}

func TestAcceptWithoutIncoming(t *testing.T) {
	t.Parallel()
	m, _, _ := newMachine(t, "a")
	if err := m.Accept(context.Background()); !errors.Is(err, ErrNotReceiving) {
		t.Fatalf("accept = %v, want ErrNotReceiving", err)
	}
}

func TestEndReleasesResources(t *testing.T) {
	t.Parallel()
	m, _, engine := newMachine(t, "a")
	if err := m.Initiate(context.Background()); err != nil {
		t.Fatalf("initiate: %v", err)
	}

	m.End()
	if got := m.State(); got != StateEnded {
		t.Fatalf("state = %v, want ended", got)
	}
	if !engine.pcs[0].closed {
		t.Fatal("peer connection not closed")
	}
	if !engine.streams[0].released {
		t.Fatal("media stream not released")
	}

	m.End() // idempotent
	if err := m.Initiate(context.Background()); !errors.Is(err, ErrEnded) {
		t.Fatalf("initiate after end = %v, want ErrEnded", err)
	}
}

func TestPeerLeftEndsActiveCall(t *testing.T) {
	t.Parallel()
	m, ch, engine := newMachine(t, "a")
	if err := m.Initiate(context.Background()); err != nil {
		t.Fatalf("initiate: %v", err)
	}

	ch.deliver(t, protocol.PeerLeft{Type: protocol.TypePeerLeft, Peer: "b"})

	if got := m.State(); got != StateEnded {
		t.Fatalf("state = %v, want ended after partner left", got)
	}
	if !engine.pcs[0].closed {
		t.Fatal("peer connection not closed on partner leave")
	}
}
