// Package media owns local camera/microphone capture for the native call
// client. Capture uses pion/mediadevices where platform drivers exist
// (V4L2 and malgo on Linux); elsewhere the client participates
// receive-only. The rest of the client only sees Source and Stream.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Media acquisition failures, surfaced to the user before any call
// membership changes.
var (
	ErrPermissionDenied = errors.New("media permission denied")
	ErrDeviceNotFound   = errors.New("media device not found")
	ErrDeviceBusy       = errors.New("media device busy")
)

// Constraints selects which kinds of local media to capture.
type Constraints struct {
	Audio bool
	Video bool
}

// Source acquires local media. Acquire honours ctx: cancelling it
// abandons the attempt and releases anything captured meanwhile.
type Source interface {
	Acquire(ctx context.Context, c Constraints) (*Stream, error)
}

// Stream is a captured set of local tracks. Close releases the devices
// synchronously and is idempotent.
type Stream struct {
	mu     sync.Mutex
	tracks []webrtc.TrackLocal
	stop   func()
	closed bool
}

func NewStream(tracks []webrtc.TrackLocal, stop func()) *Stream {
	return &Stream{tracks: tracks, stop: stop}
}

// Tracks returns the captured local tracks. Empty for a receive-only
// stream.
func (s *Stream) Tracks() []webrtc.TrackLocal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks
}

// Close releases the capture devices. Safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.stop != nil {
		s.stop()
	}
}

// Closed reports whether the stream has been released.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Classify maps a raw capture error onto the acquisition taxonomy,
// preserving the original as the wrapped cause. mediadevices surfaces
// driver errors as opaque strings, so this is a best-effort match.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission") || strings.Contains(msg, "denied") || strings.Contains(msg, "not permitted"):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case strings.Contains(msg, "busy") || strings.Contains(msg, "in use"):
		return fmt.Errorf("%w: %v", ErrDeviceBusy, err)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "no such") || strings.Contains(msg, "failed to find"):
		return fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
	}
	return err
}

// AddRecvOnlyTransceivers adds recvonly video and audio transceivers so
// CreateOffer/CreateAnswer always produce valid m-lines with ICE
// credentials, even when the local side captured nothing.
func AddRecvOnlyTransceivers(pc *webrtc.PeerConnection) error {
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}
	return nil
}
