// Package protocol defines the JSON message surface shared by the relay
// server and the client machines. Every frame is an object discriminated
// by its "type" field. Offer/answer payloads are opaque blobs produced and
// consumed by the peer-connection layer, never inspected here.
package protocol

import (
	"encoding/json"

	"github.com/benchmates/theater/internal/domain"
)

// Client→server event types.
const (
	TypeJoin         = "join"
	TypePlay         = "play"
	TypePause        = "pause"
	TypeSeek         = "seek"
	TypeCallIntent   = "call-intent"
	TypeCallAnswer   = "call-answer"
	TypeReactionSend = "reaction-send"
	TypeFileChange   = "file-change"
	TypePing         = "ping"
)

// Server→client event types.
const (
	TypeWelcome           = "welcome"
	TypeJoined            = "joined"
	TypeReceivePlay       = "receive-play"
	TypeReceivePause      = "receive-pause"
	TypeReceiveSeek       = "receive-seek"
	TypeIncomingCall      = "incoming-call"
	TypeCallAccepted      = "call-accepted"
	TypeReactionReceive   = "reaction-receive"
	TypeReceiveFileChange = "receive-file-change"
	TypePeerLeft          = "peer-left"
	TypePong              = "pong"
	TypeError             = "error"
)

// Envelope is the minimal shape every frame decodes to for dispatch.
type Envelope struct {
	Type string `json:"type"`
}

type Join struct {
	Type string        `json:"type"`
	Room domain.RoomID `json:"room"`
}

type Joined struct {
	Type  string        `json:"type"`
	Room  domain.RoomID `json:"room"`
	Count int           `json:"count"`
}

// Playback covers play/pause/seek in both directions. Timestamp is only
// meaningful for kinds that carry a position. From and Seq are stamped by
// the server and the emitting client respectively.
type Playback struct {
	Type      string        `json:"type"`
	Room      domain.RoomID `json:"room,omitempty"`
	Timestamp float64       `json:"timestamp,omitempty"`
	From      domain.PeerID `json:"from,omitempty"`
	Seq       uint64        `json:"seq,omitempty"`
}

type CallIntent struct {
	Type  string          `json:"type"`
	Room  domain.RoomID   `json:"room"`
	Offer json.RawMessage `json:"offer"`
}

type IncomingCall struct {
	Type  string          `json:"type"`
	Offer json.RawMessage `json:"offer"`
	From  domain.PeerID   `json:"from"`
}

type CallAnswer struct {
	Type   string          `json:"type"`
	Room   domain.RoomID   `json:"room"`
	Answer json.RawMessage `json:"answer"`
}

type CallAccepted struct {
	Type   string          `json:"type"`
	Answer json.RawMessage `json:"answer"`
}

type Reaction struct {
	Type  string        `json:"type"`
	Room  domain.RoomID `json:"room,omitempty"`
	Emoji string        `json:"emoji"`
}

type FileChange struct {
	Type string        `json:"type"`
	Room domain.RoomID `json:"room,omitempty"`
	Name string        `json:"name"`
	From domain.PeerID `json:"from,omitempty"`
}

type Welcome struct {
	Type string        `json:"type"`
	Peer domain.PeerID `json:"peer"`
}

type PeerLeft struct {
	Type string        `json:"type"`
	Peer domain.PeerID `json:"peer"`
}

type Error struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ReceiveType maps a local playback kind to the event the partner receives.
func ReceiveType(kind domain.PlaybackKind) string {
	switch kind {
	case domain.PlaybackPlay:
		return TypeReceivePlay
	case domain.PlaybackPause:
		return TypeReceivePause
	default:
		return TypeReceiveSeek
	}
}

// KindOf is the inverse of ReceiveType for inbound relayed events.
func KindOf(receiveType string) (domain.PlaybackKind, bool) {
	switch receiveType {
	case TypeReceivePlay:
		return domain.PlaybackPlay, true
	case TypeReceivePause:
		return domain.PlaybackPause, true
	case TypeReceiveSeek:
		return domain.PlaybackSeek, true
	}
	return "", false
}
