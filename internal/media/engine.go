package media

import (
	"context"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Engine builds peer connections sharing one WebRTC API (media engine,
// codecs, interceptors) and acquires local media through the platform
// capturer. One Engine serves every peer link of a call.
type Engine struct {
	api  *webrtc.API
	conf webrtc.Configuration
	cap  capturer
	log  zerolog.Logger
}

// capturer is the platform half of the engine. acquire may block on
// device negotiation; Engine.Acquire adds cancellation around it.
type capturer interface {
	acquire(c Constraints) (*Stream, error)
}

func NewEngine(iceServers []webrtc.ICEServer, forceRelay bool, log zerolog.Logger) (*Engine, error) {
	api, cap, err := newPlatform(log)
	if err != nil {
		return nil, err
	}

	policy := webrtc.ICETransportPolicyAll
	if forceRelay {
		policy = webrtc.ICETransportPolicyRelay
	}

	return &Engine{
		api: api,
		conf: webrtc.Configuration{
			ICEServers:         iceServers,
			ICETransportPolicy: policy,
		},
		cap: cap,
		log: log,
	}, nil
}

// NewPeerConnection creates a peer connection configured with the
// engine's codecs and ICE servers.
func (e *Engine) NewPeerConnection() (*webrtc.PeerConnection, error) {
	return e.api.NewPeerConnection(e.conf)
}

// Acquire captures local media. Cancelling ctx abandons the attempt;
// a capture that completes after cancellation is released immediately.
func (e *Engine) Acquire(ctx context.Context, c Constraints) (*Stream, error) {
	type result struct {
		s   *Stream
		err error
	}
	done := make(chan result, 1)

	go func() {
		s, err := e.cap.acquire(c)
		done <- result{s, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, Classify(r.err)
		}
		return r.s, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.s != nil {
				r.s.Close()
			}
		}()
		return nil, ctx.Err()
	}
}
