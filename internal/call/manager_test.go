package call

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/yipyip1/Thesis-Sync-sub000/internal/media"
	"github.com/yipyip1/Thesis-Sync-sub000/internal/protocol"
)

// signalBus routes envelopes directly between managers, standing in for
// the server relay.
type signalBus struct {
	mu       sync.Mutex
	managers map[string]*Manager
}

func newSignalBus() *signalBus {
	return &signalBus{managers: make(map[string]*Manager)}
}

func (b *signalBus) attach(sessionID string, m *Manager) {
	b.mu.Lock()
	b.managers[sessionID] = m
	b.mu.Unlock()
}

func (b *signalBus) from(sessionID string) SignalFunc {
	return func(target, signalType string, payload []byte) error {
		b.mu.Lock()
		m := b.managers[target]
		b.mu.Unlock()
		if m != nil {
			m.HandleSignal(sessionID, signalType, payload)
		}
		return nil
	}
}

func newBusManager(bus *signalBus, sessionID string) *Manager {
	m := NewManager(ManagerConfig{
		SelfSessionID: sessionID,
		Factory:       testFactory{},
		Send:          bus.from(sessionID),
		Log:           zerolog.Nop(),
	})
	bus.attach(sessionID, m)
	return m
}

const (
	earlierSession = "0000000000000001-aaaa"
	laterSession   = "0000000000000002-bbbb"
)

func TestManagersFormOneEdgeWithComplementaryRoles(t *testing.T) {
	bus := newSignalBus()
	a := newBusManager(bus, earlierSession)
	b := newBusManager(bus, laterSession)
	defer a.CloseAll()
	defer b.CloseAll()

	a.SetLocalStream(media.NewStream(nil, nil))
	b.SetLocalStream(media.NewStream(nil, nil))

	// The late joiner receives the existing participants and dials them.
	b.HandleSnapshot([]protocol.Participant{{SessionID: earlierSession, UserID: "alice"}})

	if a.LinkCount() != 1 || b.LinkCount() != 1 {
		t.Fatalf("expected one edge per side, got %d and %d", a.LinkCount(), b.LinkCount())
	}

	la, ok := a.Link(laterSession)
	if !ok || la.Role() != RoleResponder {
		t.Fatalf("earlier session must respond, got %v", la)
	}
	lb, ok := b.Link(earlierSession)
	if !ok || lb.Role() != RoleInitiator {
		t.Fatalf("later session must initiate, got %v", lb)
	}

	// The whole exchange runs through the bus synchronously. The links
	// may already have reached connected if ICE finished underneath.
	if !handshakeDone(la.State()) || !handshakeDone(lb.State()) {
		t.Fatalf("handshake incomplete: %s and %s", la.State(), lb.State())
	}
}

func handshakeDone(s LinkState) bool {
	return s == LinkSignalingAnswered || s == LinkConnected
}

func TestSnapshotDeferredUntilMediaReady(t *testing.T) {
	bus := newSignalBus()
	a := newBusManager(bus, earlierSession)
	b := newBusManager(bus, laterSession)
	defer a.CloseAll()
	defer b.CloseAll()

	a.SetLocalStream(media.NewStream(nil, nil))

	b.HandleSnapshot([]protocol.Participant{{SessionID: earlierSession, UserID: "alice"}})
	if b.LinkCount() != 0 {
		t.Fatal("no links may form before local media is ready")
	}

	b.SetLocalStream(media.NewStream(nil, nil))
	if b.LinkCount() != 1 {
		t.Fatal("deferred snapshot must connect once media is ready")
	}
}

func TestPeerJoinedIsDeduplicated(t *testing.T) {
	bus := newSignalBus()
	a := newBusManager(bus, earlierSession)
	b := newBusManager(bus, laterSession)
	defer a.CloseAll()
	defer b.CloseAll()

	a.SetLocalStream(media.NewStream(nil, nil))
	b.SetLocalStream(media.NewStream(nil, nil))

	p := protocol.Participant{SessionID: earlierSession, UserID: "alice"}
	b.HandlePeerJoined(p)
	b.HandlePeerJoined(p)

	if b.LinkCount() != 1 {
		t.Fatalf("duplicate join must not create a second edge, got %d", b.LinkCount())
	}
}

func TestIncomingOfferReplacesStaleLink(t *testing.T) {
	bus := newSignalBus()
	a := newBusManager(bus, earlierSession)
	b := newBusManager(bus, laterSession)
	defer a.CloseAll()
	defer b.CloseAll()

	a.SetLocalStream(media.NewStream(nil, nil))
	b.SetLocalStream(media.NewStream(nil, nil))

	// Both sides learn about each other at once. The earlier session
	// creates a waiting responder link first; the later session's offer
	// then lands on it and rebuilds it.
	a.HandlePeerJoined(protocol.Participant{SessionID: laterSession, UserID: "bob"})
	la, ok := a.Link(laterSession)
	if !ok || la.State() != LinkAwaitingOffer {
		t.Fatalf("expected a waiting responder link, got %v", la)
	}

	b.HandlePeerJoined(protocol.Participant{SessionID: earlierSession, UserID: "alice"})

	if a.LinkCount() != 1 || b.LinkCount() != 1 {
		t.Fatalf("expected one edge per side, got %d and %d", a.LinkCount(), b.LinkCount())
	}
	la, _ = a.Link(laterSession)
	if la.Role() != RoleResponder || !handshakeDone(la.State()) {
		t.Fatalf("rebuilt link should have finished responding, got %s %s", la.Role(), la.State())
	}
}

func TestPeerLeftClosesExactlyOneLink(t *testing.T) {
	var events []LinkEvent
	var mu sync.Mutex
	b2 := NewManager(ManagerConfig{
		SelfSessionID: laterSession,
		Factory:       testFactory{},
		Send:          func(string, string, []byte) error { return nil },
		OnLink: func(ev LinkEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
		Log: zerolog.Nop(),
	})
	defer b2.CloseAll()
	b2.SetLocalStream(media.NewStream(nil, nil))

	b2.HandleSnapshot([]protocol.Participant{
		{SessionID: earlierSession, UserID: "alice"},
		{SessionID: "0000000000000003-cccc", UserID: "carol"},
	})
	if b2.LinkCount() != 2 {
		t.Fatalf("expected two edges, got %d", b2.LinkCount())
	}

	b2.HandlePeerLeft(earlierSession)
	if b2.LinkCount() != 1 {
		t.Fatalf("expected one edge after leave, got %d", b2.LinkCount())
	}
	if _, ok := b2.Link("0000000000000003-cccc"); !ok {
		t.Fatal("the remaining edge must stay untouched")
	}

	mu.Lock()
	defer mu.Unlock()
	var closed int
	for _, ev := range events {
		if ev.State == LinkClosed && ev.RemoteSessionID == earlierSession {
			closed++
		}
	}
	if closed != 1 {
		t.Fatalf("expected one closed event for the leaver, got %d", closed)
	}

	// Leaving twice is benign.
	b2.HandlePeerLeft(earlierSession)
}

func TestCloseAllStopsFutureWork(t *testing.T) {
	bus := newSignalBus()
	b := newBusManager(bus, laterSession)

	b.SetLocalStream(media.NewStream(nil, nil))
	b.HandleSnapshot([]protocol.Participant{{SessionID: earlierSession, UserID: "alice"}})
	b.CloseAll()

	if b.LinkCount() != 0 {
		t.Fatalf("close must drop every link, %d left", b.LinkCount())
	}

	b.HandlePeerJoined(protocol.Participant{SessionID: "0000000000000003-cccc", UserID: "carol"})
	if b.LinkCount() != 0 {
		t.Fatal("a closed manager must not create links")
	}
}
