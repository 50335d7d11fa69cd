// Package reaction is the ephemeral emoji overlay. Send shows the emoji
// locally and fans it out; a received emoji is shown exactly the same way.
// Every displayed instance expires on its own clock — no ordering, no
// deduplication, no delivery guarantee.
package reaction

import (
	"encoding/json"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/benchmates/theater/internal/client"
	"github.com/benchmates/theater/internal/domain"
	"github.com/benchmates/theater/internal/protocol"
)

// DefaultTTL is how long one emoji stays on screen.
const DefaultTTL = 2 * time.Second

// Palette is the fixed reaction set offered by the bar.
var Palette = []string{"❤️", "😂", "😮", "🥺", "🎉"}

type Overlay struct {
	ch   client.Channel
	room domain.RoomID
	ttl  time.Duration

	mu     sync.Mutex
	active map[string]domain.Reaction
	cancel func()

	onChange func()
}

type Option func(*Overlay)

func WithTTL(d time.Duration) Option {
	return func(o *Overlay) { o.ttl = d }
}

func New(ch client.Channel, room domain.RoomID, opts ...Option) *Overlay {
	o := &Overlay{
		ch:     ch,
		room:   room,
		ttl:    DefaultTTL,
		active: make(map[string]domain.Reaction),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnChange registers a redraw hook invoked after every add or expiry.
// Set before Start.
func (o *Overlay) OnChange(fn func()) { o.onChange = fn }

func (o *Overlay) Start() {
	o.cancel = o.ch.Subscribe(protocol.TypeReactionReceive, func(data json.RawMessage) {
		var p protocol.Reaction
		if err := json.Unmarshal(data, &p); err != nil {
			log.Error().Err(err).Str("module", "reaction").Msg("bad reaction payload")
			return
		}
		o.display(p.Emoji)
	})
}

func (o *Overlay) Stop() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

// Send displays the emoji locally, then emits it to the room.
func (o *Overlay) Send(emoji string) {
	o.display(emoji)
	if err := o.ch.Emit(protocol.Reaction{
		Type:  protocol.TypeReactionSend,
		Room:  o.room,
		Emoji: emoji,
	}); err != nil {
		log.Error().Err(err).Str("module", "reaction").Msg("emit reaction")
	}
}

// Snapshot returns the reactions currently on screen.
func (o *Overlay) Snapshot() []domain.Reaction {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.Reaction, 0, len(o.active))
	for _, r := range o.active {
		out = append(out, r)
	}
	return out
}

func (o *Overlay) display(emoji string) {
	if emoji == "" {
		return
	}
	r := domain.Reaction{
		ID:      uuid.NewString(),
		Emoji:   emoji,
		Left:    rand.IntN(60) + 20,
		Created: time.Now(),
	}
	o.mu.Lock()
	o.active[r.ID] = r
	o.mu.Unlock()
	o.changed()

	time.AfterFunc(o.ttl, func() {
		o.mu.Lock()
		delete(o.active, r.ID)
		o.mu.Unlock()
		o.changed()
	})
}

func (o *Overlay) changed() {
	if o.onChange != nil {
		o.onChange()
	}
}
