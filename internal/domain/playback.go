package domain

import "errors"

// PlaybackKind is a local player transition mirrored to the partner.
type PlaybackKind string

const (
	PlaybackPlay  PlaybackKind = "play"
	PlaybackPause PlaybackKind = "pause"
	PlaybackSeek  PlaybackKind = "seek"
)

var ErrUnknownPlaybackKind = errors.New("unknown playback kind")

func (k PlaybackKind) Validate() error {
	switch k {
	case PlaybackPlay, PlaybackPause, PlaybackSeek:
		return nil
	}
	return ErrUnknownPlaybackKind
}

// HasPosition reports whether events of this kind carry a position the
// receiver may need to adopt.
func (k PlaybackKind) HasPosition() bool {
	return k == PlaybackPlay || k == PlaybackSeek
}

// PlaybackEvent is one player transition. Position is seconds into the
// media file. Origin and Seq identify the emitting peer and its place in
// that peer's event stream; receivers drop their own echoes and stale
// deliveries by looking at them.
type PlaybackEvent struct {
	Kind     PlaybackKind `json:"kind"`
	Position float64      `json:"timestamp"`
	Origin   PeerID       `json:"from"`
	Seq      uint64       `json:"seq"`
}
