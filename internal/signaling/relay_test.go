package signaling

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/yipyip1/Thesis-Sync-sub000/internal/protocol"
)

func signalMsg(callID, target, signalType string, payload string) *protocol.Message {
	return &protocol.Message{
		Type:       protocol.MessageTypeSignal,
		CallID:     callID,
		Target:     target,
		SignalType: signalType,
		Payload:    json.RawMessage(payload),
	}
}

func TestRelayStampsSenderIdentity(t *testing.T) {
	r := newTestRegistry()
	call := r.CreateCall("group-7", "alice")

	a, b := &fakeSender{}, &fakeSender{}
	r.JoinCall(call.ID, "alice", "sess-a", a)
	r.JoinCall(call.ID, "bob", "sess-b", b)

	r.Relay(signalMsg(call.ID, "sess-b", protocol.SignalTypeOffer, `{"type":"offer"}`), "sess-a")

	got := b.messages()
	if len(got) != 1 {
		t.Fatalf("expected 1 message at target, got %d", len(got))
	}
	sig := got[0]
	if sig.Type != protocol.MessageTypeSignal || sig.SignalType != protocol.SignalTypeOffer {
		t.Fatalf("unexpected relayed message: %+v", sig)
	}
	if sig.From != "sess-a" {
		t.Fatalf("relay must stamp the sender session, got From=%q", sig.From)
	}
	if sig.Target != "" {
		t.Fatalf("target must not leak to the receiver, got %q", sig.Target)
	}
}

func TestRelayDropsInvalidSignalType(t *testing.T) {
	r := newTestRegistry()
	call := r.CreateCall("group-7", "alice")

	b := &fakeSender{}
	r.JoinCall(call.ID, "bob", "sess-b", b)

	r.Relay(signalMsg(call.ID, "sess-b", "renegotiate", `{}`), "sess-a")

	if b.countType(protocol.MessageTypeSignal) != 0 {
		t.Fatal("invalid signal type must be dropped")
	}
}

func TestRelayDropsWhenCallGone(t *testing.T) {
	r := newTestRegistry()
	// No call at all; must not panic or error.
	r.Relay(signalMsg("nope", "sess-b", protocol.SignalTypeAnswer, `{}`), "sess-a")
}

func TestRelayDropsWhenTargetGone(t *testing.T) {
	r := newTestRegistry()
	call := r.CreateCall("group-7", "alice")

	a := &fakeSender{}
	r.JoinCall(call.ID, "alice", "sess-a", a)

	// Target never joined; sender must not see an error event.
	r.Relay(signalMsg(call.ID, "sess-gone", protocol.SignalTypeICECandidate, `{}`), "sess-a")

	if a.countType(protocol.MessageTypeError) != 0 {
		t.Fatal("dropped relays must stay silent toward the sender")
	}
}

func TestRelayPreservesPairOrder(t *testing.T) {
	r := newTestRegistry()
	call := r.CreateCall("group-7", "alice")

	b := &fakeSender{}
	r.JoinCall(call.ID, "bob", "sess-b", b)

	const n = 20
	for i := range n {
		payload := fmt.Sprintf(`{"seq":%d}`, i)
		r.Relay(signalMsg(call.ID, "sess-b", protocol.SignalTypeICECandidate, payload), "sess-a")
	}

	var seq int
	for _, m := range b.messages() {
		if m.Type != protocol.MessageTypeSignal {
			continue
		}
		want := fmt.Sprintf(`{"seq":%d}`, seq)
		if string(m.Payload) != want {
			t.Fatalf("signal %d out of order: got %s", seq, m.Payload)
		}
		seq++
	}
	if seq != n {
		t.Fatalf("expected %d relayed signals in order, got %d", n, seq)
	}
}

func TestRelayReportsFullTargetBuffer(t *testing.T) {
	r := newTestRegistry()
	call := r.CreateCall("group-7", "alice")

	b := &fakeSender{full: true}
	r.JoinCall(call.ID, "bob", "sess-b", b)

	// Best effort: a full buffer drops the envelope without erroring.
	r.Relay(signalMsg(call.ID, "sess-b", protocol.SignalTypeOffer, `{}`), "sess-a")

	if got := b.countType(protocol.MessageTypeSignal); got != 0 {
		t.Fatalf("expected drop on full buffer, got %d delivered", got)
	}
}
