//go:build linux && cgo

package rtc

import (
	"context"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/benchmates/theater/internal/client/call"
)

// capture holds the codec selector shared by every call's GetUserMedia.
type capture struct {
	selector *mediadevices.CodecSelector
}

// NewEngine builds the VP8+Opus capture engine on top of V4L2/malgo.
func NewEngine() (*Engine, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, err
	}
	vpxParams.BitRate = 1_500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, err
	}

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	mediaEngine := &webrtc.MediaEngine{}
	selector.Populate(mediaEngine)

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, err
	}

	// Generous ICE timeouts: a brief NAT hiccup should not end the call.
	se := webrtc.SettingEngine{}
	se.SetICETimeouts(30*time.Second, 120*time.Second, 2*time.Second)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(se),
	)

	return &Engine{
		api:     api,
		cfg:     DefaultWebRTCConfig(),
		capture: capture{selector: selector},
	}, nil
}

// captureStream owns the mediadevices tracks for one call.
type captureStream struct {
	tracks []mediadevices.Track
}

func (s *captureStream) addTo(pc *webrtc.PeerConnection) error {
	for _, track := range s.tracks {
		if _, err := pc.AddTrack(track); err != nil {
			return err
		}
	}
	return nil
}

func (s *captureStream) Release() {
	for _, t := range s.tracks {
		_ = t.Close()
	}
}

// Acquire captures camera and microphone. GetUserMedia fails as a unit if
// either track cannot be opened, so it falls back to video-only and then
// audio-only before giving up; a busy microphone should not block the
// camera and vice versa.
func (e *Engine) Acquire(ctx context.Context) (call.MediaStream, error) {
	type attempt struct {
		video bool
		audio bool
		label string
	}
	for _, a := range []attempt{
		{true, true, "video+audio"},
		{true, false, "video-only"},
		{false, true, "audio-only"},
	} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		constraints := mediadevices.MediaStreamConstraints{Codec: e.selector}
		if a.video {
			constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
				// Raw formats only: some cameras expose an MJPEG node
				// whose malformed frames poison the VP8 encoder.
				c.FrameFormat = prop.FrameFormatOneOf{
					frame.FormatYUYV,
					frame.FormatI420,
					frame.FormatI444,
					frame.FormatRGBA,
				}
				c.Width = prop.IntRanged{Max: 640}
				c.Height = prop.IntRanged{Max: 480}
			}
		}
		if a.audio {
			constraints.Audio = func(_ *mediadevices.MediaTrackConstraints) {}
		}

		stream, err := mediadevices.GetUserMedia(constraints)
		if err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("attempt", a.label).Msg("GetUserMedia failed")
			continue
		}
		tracks := stream.GetTracks()
		for _, track := range tracks {
			track.OnEnded(func(err error) {
				if err != nil {
					log.Warn().Err(err).Str("module", "rtc").Msg("local track ended")
				}
			})
		}
		log.Info().Str("module", "rtc").Str("attempt", a.label).Int("tracks", len(tracks)).Msg("local media captured")
		return &captureStream{tracks: tracks}, nil
	}
	return nil, ErrNoLocalMedia
}
