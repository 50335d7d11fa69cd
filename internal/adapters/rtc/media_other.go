//go:build !linux || !cgo

package rtc

import (
	"context"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/benchmates/theater/internal/client/call"
)

type capture struct{}

// NewEngine builds a receive-only engine. Camera/mic capture via
// pion/mediadevices needs platform drivers (V4L2/malgo on Linux); on other
// platforms calls proceed without local media.
func NewEngine() (*Engine, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
	)

	return &Engine{api: api, cfg: DefaultWebRTCConfig()}, nil
}

// Acquire returns an empty stream: no capture support here, so the
// connection gets receive-only transceivers instead of local tracks.
func (e *Engine) Acquire(ctx context.Context) (call.MediaStream, error) {
	log.Warn().Str("module", "rtc").Msg("no media capture on this platform, receive-only")
	return emptyStream{}, nil
}

type emptyStream struct{}

func (emptyStream) Release() {}
