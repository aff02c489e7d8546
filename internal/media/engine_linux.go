//go:build linux

package media

import (
	"errors"
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
	"github.com/rs/zerolog"
)

// newPlatform builds a WebRTC API with VP8+Opus codecs and a capturer
// backed by pion/mediadevices (V4L2 + malgo).
func newPlatform(log zerolog.Logger) (*webrtc.API, capturer, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, nil, err
	}
	vpxParams.BitRate = 1_500_000 // 1.5 Mbps

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, nil, err
	}

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	mediaEngine := &webrtc.MediaEngine{}
	selector.Populate(mediaEngine)

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, nil, err
	}

	// Generous ICE timeouts so a brief NAT or relay hiccup does not
	// immediately terminate the call.
	se := webrtc.SettingEngine{}
	se.SetICETimeouts(30*time.Second, 120*time.Second, 2*time.Second)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(se),
	)

	return api, &linuxCapturer{selector: selector, log: log}, nil
}

type linuxCapturer struct {
	selector *mediadevices.CodecSelector
	log      zerolog.Logger
}

type captureAttempt struct {
	video bool
	audio bool
	label string
}

// captureAttempts lists device combinations to try, most complete
// first. Only combinations the caller actually asked for appear, so
// fallback never retries what the first attempt already covered.
func captureAttempts(c Constraints) []captureAttempt {
	switch {
	case c.Video && c.Audio:
		return []captureAttempt{
			{video: true, audio: true, label: "video+audio"},
			{video: true, label: "video-only"},
			{audio: true, label: "audio-only"},
		}
	case c.Video:
		return []captureAttempt{{video: true, label: "video-only"}}
	case c.Audio:
		return []captureAttempt{{audio: true, label: "audio-only"}}
	default:
		return nil
	}
}

// acquire captures camera and microphone with graceful fallback.
// GetUserMedia fails as a unit if either track cannot be opened, so a
// missing microphone must not prevent the camera from working and vice
// versa: try both, then video-only, then audio-only.
func (l *linuxCapturer) acquire(c Constraints) (*Stream, error) {
	var lastErr error
	for _, a := range captureAttempts(c) {
		constraints := mediadevices.MediaStreamConstraints{Codec: l.selector}
		if a.video {
			constraints.Video = func(mc *mediadevices.MediaTrackConstraints) {
				// Exclude MJPEG: some cameras expose an MJPEG V4L2 node
				// producing malformed frames that poison the VP8 encoder.
				mc.FrameFormat = prop.FrameFormatOneOf{
					frame.FormatYUYV,
					frame.FormatI420,
					frame.FormatI444,
					frame.FormatRGBA,
				}
				mc.Width = prop.IntRanged{Max: 640}
				mc.Height = prop.IntRanged{Max: 480}
			}
		}
		if a.audio {
			constraints.Audio = func(_ *mediadevices.MediaTrackConstraints) {}
		}

		ms, err := mediadevices.GetUserMedia(constraints)
		if err != nil {
			l.log.Warn().Err(err).Str("attempt", a.label).Msg("capture attempt failed")
			lastErr = err
			continue
		}

		tracks := ms.GetTracks()
		locals := make([]webrtc.TrackLocal, 0, len(tracks))
		for _, t := range tracks {
			t.OnEnded(func(err error) {
				if err != nil {
					l.log.Warn().Err(err).Msg("local track ended")
				}
			})
			locals = append(locals, t)
		}

		l.log.Info().Str("attempt", a.label).Int("tracks", len(tracks)).Msg("local media captured")
		return NewStream(locals, func() {
			for _, t := range tracks {
				t.Close()
			}
		}), nil
	}

	if lastErr == nil {
		lastErr = errors.New("no media kinds requested")
	}
	return nil, lastErr
}
