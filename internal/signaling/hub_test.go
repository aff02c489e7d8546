package signaling

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yipyip1/Thesis-Sync-sub000/internal/protocol"
)

func newTestHub() *Hub {
	return NewHub(newTestRegistry(), zerolog.Nop())
}

func newTestClient(hub *Hub, sessionID, userID string) *Client {
	return NewClient(hub, nil, sessionID, userID, zerolog.Nop())
}

func recvMsg(t *testing.T, c *Client) *protocol.Message {
	t.Helper()
	select {
	case m, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed unexpectedly")
		}
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func expectType(t *testing.T, c *Client, msgType string) *protocol.Message {
	t.Helper()
	m := recvMsg(t, c)
	if m.Type != msgType {
		t.Fatalf("expected %s, got %s", msgType, m.Type)
	}
	return m
}

func TestRegisterDeliversIdentity(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	c := newTestClient(hub, "sess-a", "alice")
	hub.Register(c)

	m := expectType(t, c, protocol.MessageTypeConnected)
	if m.SessionID != "sess-a" || m.UserID != "alice" {
		t.Fatalf("connected carries wrong identity: %+v", m)
	}
}

func TestStartCallAnnouncesToEveryone(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	a := newTestClient(hub, "sess-a", "alice")
	b := newTestClient(hub, "sess-b", "bob")
	hub.Register(a)
	hub.Register(b)
	expectType(t, a, protocol.MessageTypeConnected)
	expectType(t, b, protocol.MessageTypeConnected)

	hub.HandleMessage(a, &protocol.Message{Type: protocol.MessageTypeStartCall, GroupID: "group-7"})

	for _, c := range []*Client{a, b} {
		m := expectType(t, c, protocol.MessageTypeCallStarted)
		if m.GroupID != "group-7" || m.InitiatorUserID != "alice" || m.CallID == "" {
			t.Fatalf("unexpected call-started: %+v", m)
		}
	}
}

func TestStartCallRequiresGroup(t *testing.T) {
	hub := newTestHub()
	a := newTestClient(hub, "sess-a", "alice")

	hub.HandleMessage(a, &protocol.Message{Type: protocol.MessageTypeStartCall})

	m := expectType(t, a, protocol.MessageTypeError)
	if m.Error == "" {
		t.Fatal("error event must carry a reason")
	}
}

func TestJoinDeliversSnapshotAndTracksCall(t *testing.T) {
	hub := newTestHub()
	call := hub.Registry.CreateCall("group-7", "alice")

	a := newTestClient(hub, "sess-a", "alice")
	b := newTestClient(hub, "sess-b", "bob")

	hub.HandleMessage(a, &protocol.Message{Type: protocol.MessageTypeJoinCall, CallID: call.ID})
	m := expectType(t, a, protocol.MessageTypeExistingParticipants)
	if len(m.Participants) != 0 {
		t.Fatalf("first joiner should see empty snapshot, got %+v", m.Participants)
	}
	if a.CallID() != call.ID {
		t.Fatalf("client call association not set, got %q", a.CallID())
	}

	hub.HandleMessage(b, &protocol.Message{Type: protocol.MessageTypeJoinCall, CallID: call.ID})
	m = expectType(t, b, protocol.MessageTypeExistingParticipants)
	if len(m.Participants) != 1 || m.Participants[0].SessionID != "sess-a" {
		t.Fatalf("unexpected snapshot: %+v", m.Participants)
	}

	expectType(t, a, protocol.MessageTypeParticipantJoined)
}

func TestJoinUnknownCallSendsError(t *testing.T) {
	hub := newTestHub()
	a := newTestClient(hub, "sess-a", "alice")

	hub.HandleMessage(a, &protocol.Message{Type: protocol.MessageTypeJoinCall, CallID: "nope"})

	m := expectType(t, a, protocol.MessageTypeError)
	if m.CallID != "nope" {
		t.Fatalf("error must reference the call, got %+v", m)
	}
	if a.CallID() != "" {
		t.Fatal("failed join must not set a call association")
	}
}

func TestJoinSwitchesCalls(t *testing.T) {
	hub := newTestHub()
	first := hub.Registry.CreateCall("group-7", "alice")
	second := hub.Registry.CreateCall("group-7", "bob")

	a := newTestClient(hub, "sess-a", "alice")
	other := newTestClient(hub, "sess-o", "olga")

	hub.HandleMessage(a, &protocol.Message{Type: protocol.MessageTypeJoinCall, CallID: first.ID})
	expectType(t, a, protocol.MessageTypeExistingParticipants)
	hub.HandleMessage(other, &protocol.Message{Type: protocol.MessageTypeJoinCall, CallID: first.ID})
	expectType(t, other, protocol.MessageTypeExistingParticipants)
	expectType(t, a, protocol.MessageTypeParticipantJoined)

	hub.HandleMessage(a, &protocol.Message{Type: protocol.MessageTypeJoinCall, CallID: second.ID})
	expectType(t, a, protocol.MessageTypeExistingParticipants)

	if a.CallID() != second.ID {
		t.Fatalf("expected switch to second call, got %q", a.CallID())
	}
	expectType(t, other, protocol.MessageTypeParticipantLeft)
}

func TestLeaveClearsAssociation(t *testing.T) {
	hub := newTestHub()
	call := hub.Registry.CreateCall("group-7", "alice")

	a := newTestClient(hub, "sess-a", "alice")
	hub.HandleMessage(a, &protocol.Message{Type: protocol.MessageTypeJoinCall, CallID: call.ID})
	expectType(t, a, protocol.MessageTypeExistingParticipants)

	hub.HandleMessage(a, &protocol.Message{Type: protocol.MessageTypeLeaveCall, CallID: call.ID})
	if a.CallID() != "" {
		t.Fatalf("leave must clear the association, got %q", a.CallID())
	}
}

func TestEndCallUnknownSendsError(t *testing.T) {
	hub := newTestHub()
	a := newTestClient(hub, "sess-a", "alice")

	hub.HandleMessage(a, &protocol.Message{Type: protocol.MessageTypeEndCall, CallID: "nope"})
	expectType(t, a, protocol.MessageTypeError)
}

func TestSignalDispatch(t *testing.T) {
	hub := newTestHub()
	call := hub.Registry.CreateCall("group-7", "alice")

	a := newTestClient(hub, "sess-a", "alice")
	b := newTestClient(hub, "sess-b", "bob")
	hub.HandleMessage(a, &protocol.Message{Type: protocol.MessageTypeJoinCall, CallID: call.ID})
	expectType(t, a, protocol.MessageTypeExistingParticipants)
	hub.HandleMessage(b, &protocol.Message{Type: protocol.MessageTypeJoinCall, CallID: call.ID})
	expectType(t, b, protocol.MessageTypeExistingParticipants)
	expectType(t, a, protocol.MessageTypeParticipantJoined)

	hub.HandleMessage(a, &protocol.Message{
		Type:       protocol.MessageTypeSignal,
		CallID:     call.ID,
		Target:     "sess-b",
		SignalType: protocol.SignalTypeOffer,
	})

	m := expectType(t, b, protocol.MessageTypeSignal)
	if m.From != "sess-a" {
		t.Fatalf("expected From stamp, got %+v", m)
	}
}

func TestUnregisterForcesLeave(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	call := hub.Registry.CreateCall("group-7", "alice")

	a := newTestClient(hub, "sess-a", "alice")
	b := newTestClient(hub, "sess-b", "bob")
	hub.Register(a)
	hub.Register(b)
	expectType(t, a, protocol.MessageTypeConnected)
	expectType(t, b, protocol.MessageTypeConnected)

	hub.HandleMessage(a, &protocol.Message{Type: protocol.MessageTypeJoinCall, CallID: call.ID})
	expectType(t, a, protocol.MessageTypeExistingParticipants)
	hub.HandleMessage(b, &protocol.Message{Type: protocol.MessageTypeJoinCall, CallID: call.ID})
	expectType(t, b, protocol.MessageTypeExistingParticipants)
	expectType(t, a, protocol.MessageTypeParticipantJoined)

	// Transport drop without a leave-call.
	hub.unregister <- b

	m := expectType(t, a, protocol.MessageTypeParticipantLeft)
	if m.SessionID != "sess-b" {
		t.Fatalf("expected participant-left for sess-b, got %+v", m)
	}

	// The hub closes the dropped session's send channel.
	select {
	case _, ok := <-b.send:
		if ok {
			t.Fatal("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for send channel close")
	}
}
