package media

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want error
	}{
		{"permission", "failed to open camera: permission denied", ErrPermissionDenied},
		{"busy", "device or resource busy", ErrDeviceBusy},
		{"in use", "microphone already in use", ErrDeviceBusy},
		{"not found", "failed to find the best driver that fits the constraints", ErrDeviceNotFound},
		{"no such", "no such device", ErrDeviceNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(errors.New(tc.in))
			if !errors.Is(got, tc.want) {
				t.Fatalf("Classify(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestClassifyPassesThroughUnknown(t *testing.T) {
	in := errors.New("something else entirely")
	got := Classify(in)
	if got != in {
		t.Fatalf("expected unknown error unchanged, got %v", got)
	}
	if Classify(nil) != nil {
		t.Fatalf("expected nil for nil")
	}
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	calls := 0
	s := NewStream(nil, func() { calls++ })

	s.Close()
	s.Close()

	if calls != 1 {
		t.Fatalf("stop called %d times, want 1", calls)
	}
	if !s.Closed() {
		t.Fatalf("expected stream closed")
	}
}
