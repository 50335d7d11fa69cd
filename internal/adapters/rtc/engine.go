package rtc

import (
	"errors"

	"github.com/pion/webrtc/v4"

	"github.com/benchmates/theater/internal/client/call"
)

var ErrNoLocalMedia = errors.New("no local media device available")

// Engine builds peer connections around captured local media. It satisfies
// call.Engine; construction is platform-specific (see media_linux.go and
// media_other.go).
type Engine struct {
	api *webrtc.API
	cfg webrtc.Configuration

	onRemoteTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver)

	capture // platform-specific capture state
}

// OnRemoteTrack registers the sink for the partner's media. Set once,
// before any call is made; remote tracks arrive asynchronously after the
// handshake connects.
func (e *Engine) OnRemoteTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	e.onRemoteTrack = fn
}

// localStream is the package-internal face of call.MediaStream: it knows
// how to attach itself to a fresh peer connection.
type localStream interface {
	call.MediaStream
	addTo(pc *webrtc.PeerConnection) error
}

func (e *Engine) NewConnection(stream call.MediaStream) (call.PeerConnection, error) {
	pc, err := e.api.NewPeerConnection(e.cfg)
	if err != nil {
		return nil, err
	}
	if ls, ok := stream.(localStream); ok {
		if err := ls.addTo(pc); err != nil {
			_ = pc.Close()
			return nil, err
		}
	} else {
		addRecvOnlyTransceivers(pc)
	}
	return newConnection(pc, e.onRemoteTrack), nil
}

// addRecvOnlyTransceivers guarantees the SDP has valid audio/video m-lines
// with ICE credentials even without local capture.
func addRecvOnlyTransceivers(pc *webrtc.PeerConnection) {
	_, _ = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	_, _ = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
}
