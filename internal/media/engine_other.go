//go:build !linux

package media

import (
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// newPlatform builds a default-codec WebRTC API. Camera/mic capture via
// pion/mediadevices needs platform drivers that only ship for Linux here;
// on other platforms the client joins receive-only and the peer links add
// recvonly transceivers instead of local tracks.
func newPlatform(log zerolog.Logger) (*webrtc.API, capturer, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, nil, err
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
	)

	return api, &nullCapturer{log: log}, nil
}

type nullCapturer struct {
	log zerolog.Logger
}

func (n *nullCapturer) acquire(_ Constraints) (*Stream, error) {
	n.log.Warn().Msg("no local capture on this platform, joining receive-only")
	return NewStream(nil, nil), nil
}
