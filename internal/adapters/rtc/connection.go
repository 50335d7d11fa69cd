// Package rtc realizes the call engine on pion/webrtc. Negotiation is
// single-shot: descriptions are returned only after ICE gathering
// completes, so each side ships one full blob instead of trickling
// candidates.
package rtc

import (
	"context"
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// Connection adapts one *webrtc.PeerConnection to the call machine's
// handle port.
type Connection struct {
	pc *webrtc.PeerConnection
}

func newConnection(pc *webrtc.PeerConnection, onRemoteTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) *Connection {
	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("ice_state", s.String()).Msg("ICE state")
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer_connection_state", s.String()).Msg("peer state")
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("remote track")
		if onRemoteTrack != nil {
			onRemoteTrack(track, receiver)
		}
	})
	return &Connection{pc: pc}
}

// CreateOffer produces the complete local description, candidates included.
func (c *Connection) CreateOffer(ctx context.Context) (json.RawMessage, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	return c.finishGathering(ctx, offer)
}

// AcceptOffer applies a remote offer and returns the complete answer.
func (c *Connection) AcceptOffer(ctx context.Context, offer json.RawMessage) (json.RawMessage, error) {
	var remote webrtc.SessionDescription
	if err := json.Unmarshal(offer, &remote); err != nil {
		return nil, err
	}
	if err := c.pc.SetRemoteDescription(remote); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	return c.finishGathering(ctx, answer)
}

func (c *Connection) finishGathering(ctx context.Context, desc webrtc.SessionDescription) (json.RawMessage, error) {
	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(desc); err != nil {
		return nil, err
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return json.Marshal(c.pc.LocalDescription())
}

func (c *Connection) AcceptAnswer(answer json.RawMessage) error {
	var remote webrtc.SessionDescription
	if err := json.Unmarshal(answer, &remote); err != nil {
		return err
	}
	return c.pc.SetRemoteDescription(remote)
}

func (c *Connection) Close() error {
	err := c.pc.Close()
	if err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("close error")
	} else {
		log.Info().Str("module", "rtc").Msg("closed")
	}
	return err
}
