package app

import (
	"github.com/benchmates/theater/internal/core"
	"github.com/benchmates/theater/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a member whose send buffer overflowed
// during a broadcast.
type Policy interface {
	OnBackpressure(room core.RoomService, peer domain.PeerID) BackpressureAction
}

// SimplePolicy kicks slow members; a peer that cannot keep up with a
// two-person event stream has a dead connection anyway.
type SimplePolicy struct{}

func (SimplePolicy) OnBackpressure(room core.RoomService, peer domain.PeerID) BackpressureAction {
	return KickMember
}
