package reaction

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/benchmates/theater/internal/client"
	"github.com/benchmates/theater/internal/domain"
	"github.com/benchmates/theater/internal/protocol"
)

type fakeChannel struct {
	emitted  []any
	handlers map[string][]client.Handler
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[string][]client.Handler)}
}

func (c *fakeChannel) PeerID() domain.PeerID { return "me" }

func (c *fakeChannel) Emit(v any) error {
	c.emitted = append(c.emitted, v)
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

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition never became true")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSendDisplaysLocallyAndEmits(t *testing.T) {
	t.Parallel()
	ch := newFakeChannel()
	o := New(ch, "movie-1")
	o.Start()
	t.Cleanup(o.Stop)

	o.Send("❤️")

	snap := o.Snapshot()
	if len(snap) != 1 || snap[0].Emoji != "❤️" {
		t.Fatalf("snapshot = %v, want one ❤️", snap)
	}
	if snap[0].Left < 20 || snap[0].Left > 80 {
		t.Fatalf("left offset %d out of range", snap[0].Left)
	}
	if len(ch.emitted) != 1 {
		t.Fatalf("emitted %d frames, want 1", len(ch.emitted))
	}
	r, ok := ch.emitted[0].(protocol.Reaction)
	if !ok || r.Emoji != "❤️" || r.Room != "movie-1" {
		t.Fatalf("emitted = %+v", ch.emitted[0])
	}
}

func TestReceivedReactionDisplays(t *testing.T) {
	t.Parallel()
	ch := newFakeChannel()
	o := New(ch, "movie-1")
	o.Start()
	t.Cleanup(o.Stop)

	ch.deliver(t, protocol.Reaction{Type: protocol.TypeReactionReceive, Emoji: "🎉"})

	snap := o.Snapshot()
	if len(snap) != 1 || snap[0].Emoji != "🎉" {
		t.Fatalf("snapshot = %v, want one 🎉", snap)
	}
	if len(ch.emitted) != 0 {
		t.Fatal("received reaction must not be re-emitted")
	}
}

func TestReactionsExpireIndependently(t *testing.T) {
	t.Parallel()
	ch := newFakeChannel()
	o := New(ch, "movie-1", WithTTL(40*time.Millisecond))
	o.Start()
	t.Cleanup(o.Stop)

	o.Send("😂")
	time.Sleep(25 * time.Millisecond)
	o.Send("😮")

	// First expires, second is still on screen.
	waitFor(t, func() bool {
		snap := o.Snapshot()
		return len(snap) == 1 && snap[0].Emoji == "😮"
	})
	waitFor(t, func() bool { return len(o.Snapshot()) == 0 })
}

func TestRapidSendsAllDisplay(t *testing.T) {
	t.Parallel()
	ch := newFakeChannel()
	o := New(ch, "movie-1", WithTTL(time.Second))
	o.Start()
	t.Cleanup(o.Stop)

	for _, e := range Palette {
		o.Send(e)
	}
	if got := len(o.Snapshot()); got != len(Palette) {
		t.Fatalf("snapshot size = %d, want %d", got, len(Palette))
	}
}

func TestEmptyEmojiIgnored(t *testing.T) {
	t.Parallel()
	ch := newFakeChannel()
	o := New(ch, "movie-1")
	o.Start()
	t.Cleanup(o.Stop)

	ch.deliver(t, protocol.Reaction{Type: protocol.TypeReactionReceive})
	if got := len(o.Snapshot()); got != 0 {
		t.Fatalf("snapshot size = %d, want 0", got)
	}
}

func TestOnChangeFires(t *testing.T) {
	t.Parallel()
	ch := newFakeChannel()
	o := New(ch, "movie-1", WithTTL(20*time.Millisecond))
	changes := make(chan struct{}, 8)
	o.OnChange(func() { changes <- struct{}{} })
	o.Start()
	t.Cleanup(o.Stop)

	o.Send("🥺")
	<-changes // add
	select {
	case <-changes: // expiry
	case <-time.After(2 * time.Second):
		t.Fatal("no redraw on expiry")
	}
}
