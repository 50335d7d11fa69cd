package core

import (
	"errors"
	"testing"

	"github.com/benchmates/theater/internal/domain"
)

type recordConn struct {
	frames []Frame
	fail   bool
}

func (c *recordConn) TrySend(f Frame) error {
	if c.fail {
		return errors.New("backpressure")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordConn) Close() {}

func TestRoomMembership(t *testing.T) {
	t.Parallel()
	room := NewRoomService(&domain.Room{ID: "movie-1"})

	room.AddMember("a", &recordConn{})
	room.AddMember("b", &recordConn{})
	if got := room.MemberCount(); got != 2 {
		t.Fatalf("member count = %d, want 2", got)
	}

	// idempotent re-add
	room.AddMember("a", &recordConn{})
	if got := room.MemberCount(); got != 2 {
		t.Fatalf("member count after re-add = %d, want 2", got)
	}

	room.RemoveMember("a")
	if got := room.MemberCount(); got != 1 {
		t.Fatalf("member count after remove = %d, want 1", got)
	}
	members := room.Members()
	if len(members) != 1 || members[0] != "b" {
		t.Fatalf("members = %v, want [b]", members)
	}
}

func TestRoomIsolation(t *testing.T) {
	t.Parallel()
	one := NewRoomService(&domain.Room{ID: "movie-1"})
	two := NewRoomService(&domain.Room{ID: "movie-2"})

	one.AddMember("a", &recordConn{})
	one.AddMember("b", &recordConn{})

	if got := two.MemberCount(); got != 0 {
		t.Fatalf("movie-2 member count = %d, want 0", got)
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	t.Parallel()
	room := NewRoomService(&domain.Room{ID: "movie-1"})
	a := &recordConn{}
	b := &recordConn{}
	room.AddMember("a", a)
	room.AddMember("b", b)

	res := room.Broadcast("a", Frame(`{"type":"receive-play"}`))
	if res.SentTo != 1 {
		t.Fatalf("sent_to = %d, want 1", res.SentTo)
	}
	if len(a.frames) != 0 {
		t.Fatalf("sender received its own broadcast: %v", a.frames)
	}
	if len(b.frames) != 1 {
		t.Fatalf("partner frames = %d, want 1", len(b.frames))
	}
}

func TestBroadcastEmptyRoomIsNoOp(t *testing.T) {
	t.Parallel()
	room := NewRoomService(&domain.Room{ID: "empty"})
	res := room.Broadcast("ghost", Frame("x"))
	if res.SentTo != 0 || len(res.Dropped) != 0 {
		t.Fatalf("empty broadcast result = %+v, want zero", res)
	}
}

func TestBroadcastReportsBackpressure(t *testing.T) {
	t.Parallel()
	room := NewRoomService(&domain.Room{ID: "movie-1"})
	room.AddMember("a", &recordConn{})
	room.AddMember("b", &recordConn{fail: true})

	res := room.Broadcast("a", Frame("x"))
	if len(res.Dropped) != 1 || res.Dropped[0] != "b" {
		t.Fatalf("dropped = %v, want [b]", res.Dropped)
	}
}
