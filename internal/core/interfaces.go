package core

import "github.com/benchmates/theater/internal/domain"

// Frame is a marshaled wire message.
type Frame []byte

// SignalConnection abstracts a peer's messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// PublishResult reports delivery stats/backpressure to the orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []domain.PeerID
}

// RoomService owns a room's membership set but never touches transport
// resource lifecycles.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	Members() []domain.PeerID

	AddMember(peer domain.PeerID, conn SignalConnection)
	RemoveMember(peer domain.PeerID)

	// Broadcast delivers data to every member except from. An empty room
	// is a silent no-op.
	Broadcast(from domain.PeerID, data Frame) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

// RoomFactory creates rooms on first use and drops them once empty.
type RoomFactory interface {
	GetOrCreate(id domain.RoomID) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	Drop(id domain.RoomID)
}
