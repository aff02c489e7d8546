package signaling

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/yipyip1/Thesis-Sync-sub000/internal/protocol"
)

// fakeSender records delivered messages in place of a live connection.
type fakeSender struct {
	mu       sync.Mutex
	msgs     []*protocol.Message
	detached bool
	full     bool
}

func (f *fakeSender) Deliver(msg *protocol.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.msgs = append(f.msgs, msg)
	return true
}

func (f *fakeSender) Detach() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detached = true
}

func (f *fakeSender) messages() []*protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*protocol.Message, len(f.msgs))
	copy(out, f.msgs)
	return out
}

func (f *fakeSender) countType(msgType string) int {
	n := 0
	for _, m := range f.messages() {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

func (f *fakeSender) isDetached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detached
}

func newTestRegistry() *Registry {
	return NewRegistry(zerolog.Nop())
}

func TestCreateCall(t *testing.T) {
	r := newTestRegistry()

	call := r.CreateCall("group-7", "alice")
	if call.ID == "" {
		t.Fatal("expected a call id")
	}
	if call.GroupID != "group-7" || call.InitiatorUserID != "alice" {
		t.Fatalf("unexpected call metadata: %+v", call)
	}
	if call.State() != CallStarting {
		t.Fatalf("expected starting state, got %s", call.State())
	}

	other := r.CreateCall("group-7", "bob")
	if other.ID == call.ID {
		t.Fatal("call ids must be unique")
	}
}

func TestRejoinSnapshotExcludesSelf(t *testing.T) {
	r := newTestRegistry()
	call := r.CreateCall("group-7", "alice")

	a := &fakeSender{}
	if _, err := r.JoinCall(call.ID, "alice", "sess-a", a); err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	b := &fakeSender{}
	if _, err := r.JoinCall(call.ID, "bob", "sess-b", b); err != nil {
		t.Fatalf("second join failed: %v", err)
	}

	// A repeated join-call for the same call must not hand the joiner
	// its own session back, nor re-announce it to everyone else.
	snap, err := r.JoinCall(call.ID, "bob", "sess-b", b)
	if err != nil {
		t.Fatalf("re-join failed: %v", err)
	}
	if len(snap) != 1 || snap[0].SessionID != "sess-a" {
		t.Fatalf("re-join snapshot should hold only the peer, got %+v", snap)
	}
	if n := a.countType(protocol.MessageTypeParticipantJoined); n != 1 {
		t.Fatalf("existing member saw %d participant-joined, want 1", n)
	}
}

func TestJoinCallSnapshotExcludesJoiner(t *testing.T) {
	r := newTestRegistry()
	call := r.CreateCall("group-7", "alice")

	a := &fakeSender{}
	snap, err := r.JoinCall(call.ID, "alice", "sess-a", a)
	if err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	if len(snap) != 0 {
		t.Fatalf("first joiner should see an empty snapshot, got %d", len(snap))
	}
	if call.State() != CallActive {
		t.Fatalf("expected active state after first join, got %s", call.State())
	}

	b := &fakeSender{}
	snap, err = r.JoinCall(call.ID, "bob", "sess-b", b)
	if err != nil {
		t.Fatalf("second join failed: %v", err)
	}
	if len(snap) != 1 || snap[0].SessionID != "sess-a" || snap[0].UserID != "alice" {
		t.Fatalf("unexpected snapshot for second joiner: %+v", snap)
	}

	joined := a.messages()
	if len(joined) != 1 || joined[0].Type != protocol.MessageTypeParticipantJoined {
		t.Fatalf("expected one participant-joined at existing member, got %+v", joined)
	}
	if joined[0].SessionID != "sess-b" || joined[0].UserID != "bob" {
		t.Fatalf("participant-joined carries wrong identity: %+v", joined[0])
	}
	if b.countType(protocol.MessageTypeParticipantJoined) != 0 {
		t.Fatal("joiner must not be notified about itself")
	}
}

func TestJoinUnknownCall(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.JoinCall("nope", "alice", "sess-a", &fakeSender{}); !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound, got %v", err)
	}
}

func TestJoinEndedCall(t *testing.T) {
	r := newTestRegistry()
	call := r.CreateCall("group-7", "alice")

	call.mu.Lock()
	call.state = CallEnded
	call.mu.Unlock()

	if _, err := r.JoinCall(call.ID, "bob", "sess-b", &fakeSender{}); !errors.Is(err, ErrCallEnded) {
		t.Fatalf("expected ErrCallEnded, got %v", err)
	}
}

func TestLeaveCallNotifiesOthers(t *testing.T) {
	r := newTestRegistry()
	call := r.CreateCall("group-7", "alice")

	a, b := &fakeSender{}, &fakeSender{}
	r.JoinCall(call.ID, "alice", "sess-a", a)
	r.JoinCall(call.ID, "bob", "sess-b", b)

	if err := r.LeaveCall(call.ID, "sess-b"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if !b.isDetached() {
		t.Fatal("leaver must be detached from the call")
	}
	if a.countType(protocol.MessageTypeParticipantLeft) != 1 {
		t.Fatal("remaining member should see one participant-left")
	}

	parts, err := r.Participants(call.ID)
	if err != nil {
		t.Fatalf("participants failed: %v", err)
	}
	if len(parts) != 1 || parts[0].SessionID != "sess-a" {
		t.Fatalf("unexpected membership after leave: %+v", parts)
	}
}

func TestLeaveUnknownSessionIsBenign(t *testing.T) {
	r := newTestRegistry()
	call := r.CreateCall("group-7", "alice")
	r.JoinCall(call.ID, "alice", "sess-a", &fakeSender{})

	if err := r.LeaveCall(call.ID, "sess-ghost"); err != nil {
		t.Fatalf("leaving a call one is not in must be benign, got %v", err)
	}
}

func TestLastLeaveEndsCall(t *testing.T) {
	r := newTestRegistry()
	call := r.CreateCall("group-7", "alice")
	r.JoinCall(call.ID, "alice", "sess-a", &fakeSender{})

	if err := r.LeaveCall(call.ID, "sess-a"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if _, err := r.JoinCall(call.ID, "bob", "sess-b", &fakeSender{}); !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("call id must not be reusable after the call ends, got %v", err)
	}
}

func TestEndCallBroadcastsAndDestroys(t *testing.T) {
	r := newTestRegistry()
	call := r.CreateCall("group-7", "alice")

	a, b := &fakeSender{}, &fakeSender{}
	r.JoinCall(call.ID, "alice", "sess-a", a)
	r.JoinCall(call.ID, "bob", "sess-b", b)

	if err := r.EndCall(call.ID); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	for name, s := range map[string]*fakeSender{"a": a, "b": b} {
		if s.countType(protocol.MessageTypeCallEnded) != 1 {
			t.Fatalf("sender %s should see one call-ended", name)
		}
		if !s.isDetached() {
			t.Fatalf("sender %s should be detached", name)
		}
	}

	if err := r.EndCall(call.ID); !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound on double end, got %v", err)
	}
}

func TestConcurrentJoins(t *testing.T) {
	r := newTestRegistry()
	call := r.CreateCall("group-7", "alice")

	const n = 32
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sid := fmt.Sprintf("sess-%02d", i)
			if _, err := r.JoinCall(call.ID, fmt.Sprintf("user-%02d", i), sid, &fakeSender{}); err != nil {
				t.Errorf("join %s failed: %v", sid, err)
			}
		}(i)
	}
	wg.Wait()

	parts, err := r.Participants(call.ID)
	if err != nil {
		t.Fatalf("participants failed: %v", err)
	}
	if len(parts) != n {
		t.Fatalf("expected %d participants, got %d", n, len(parts))
	}
}
