package call

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yipyip1/Thesis-Sync-sub000/internal/gateway"
	"github.com/yipyip1/Thesis-Sync-sub000/internal/media"
	"github.com/yipyip1/Thesis-Sync-sub000/internal/protocol"
)

// Phase is the client's call lifecycle state.
type Phase int

const (
	PhaseNotInCall Phase = iota
	PhaseRequesting
	PhaseJoining
	PhaseInCall
	PhaseEnding
)

func (p Phase) String() string {
	switch p {
	case PhaseNotInCall:
		return "not-in-call"
	case PhaseRequesting:
		return "requesting-media"
	case PhaseJoining:
		return "joining"
	case PhaseInCall:
		return "in-call"
	case PhaseEnding:
		return "ending"
	}
	return "unknown"
}

// handshakeTimeout bounds the waits for server acks during call setup.
const handshakeTimeout = 15 * time.Second

// Identity is who this client is, as assigned by the server at connect.
type Identity struct {
	SessionID string
	UserID    string
}

// SendFunc pushes one message to the signaling server.
type SendFunc func(*protocol.Message)

// NoticeKind discriminates UI-facing events.
type NoticeKind int

const (
	NoticeParticipantJoined NoticeKind = iota
	NoticeParticipantLeft
	NoticeCallEnded
	NoticeIncomingCall
	NoticeLink
	NoticePeerMedia
	NoticeServerError
)

// Notice is one UI-facing event from the call core.
type Notice struct {
	Kind        NoticeKind
	CallID      string
	GroupID     string
	Participant protocol.Participant
	SessionID   string
	Link        LinkEvent
	Media       MediaState
	Message     string
}

// Orchestrator ties local media acquisition, call membership and mesh
// management together. One orchestrator serves one connection; it keeps
// at most one active call, and starting another call leaves the current
// one first. All call state lives here, scoped to the session; there are
// no package-level globals.
type Orchestrator struct {
	handler *gateway.Handler
	send    SendFunc
	source  media.Source
	factory ConnectionFactory
	self    Identity
	log     zerolog.Logger

	mu         sync.Mutex
	phase      Phase
	callID     string
	groupID    string
	mgr        *Manager
	stream     *media.Stream
	roster     []protocol.Participant
	localMedia MediaState

	notices chan Notice
}

func NewOrchestrator(h *gateway.Handler, send SendFunc, source media.Source, factory ConnectionFactory, self Identity, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		handler:    h,
		send:       send,
		source:     source,
		factory:    factory,
		self:       self,
		log:        log.With().Str("session_id", self.SessionID).Logger(),
		phase:      PhaseNotInCall,
		localMedia: MediaState{AudioEnabled: true, VideoEnabled: true},
		notices:    make(chan Notice, 64),
	}
}

// Phase returns the current lifecycle phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// CallID returns the active call id, or "".
func (o *Orchestrator) CallID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.callID
}

// Roster returns the participants that were already in the call when
// we joined. Later joins and leaves arrive as notices.
func (o *Orchestrator) Roster() []protocol.Participant {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.roster
}

// Notices returns the stream of UI-facing events.
func (o *Orchestrator) Notices() <-chan Notice {
	return o.notices
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

// Start acquires local media, asks the server to create a call for
// groupID and joins it. Media failure aborts before any call membership
// changes. Returns the new call id.
func (o *Orchestrator) Start(ctx context.Context, groupID string) (string, error) {
	if o.Phase() != PhaseNotInCall {
		o.Leave()
	}

	o.setPhase(PhaseRequesting)
	stream, err := o.source.Acquire(ctx, media.Constraints{Audio: true, Video: true})
	if err != nil {
		o.setPhase(PhaseNotInCall)
		return "", NewError("acquire media", err)
	}

	o.send(&protocol.Message{Type: protocol.MessageTypeStartCall, GroupID: groupID})

	callID, err := o.awaitCallStarted(ctx, groupID)
	if err != nil {
		stream.Close()
		o.setPhase(PhaseNotInCall)
		return "", err
	}

	if err := o.joinWithStream(ctx, callID, groupID, stream); err != nil {
		return "", err
	}
	return callID, nil
}

// Join acquires local media and joins an existing call.
func (o *Orchestrator) Join(ctx context.Context, callID, groupID string) error {
	if o.Phase() != PhaseNotInCall {
		o.Leave()
	}

	o.setPhase(PhaseRequesting)
	stream, err := o.source.Acquire(ctx, media.Constraints{Audio: true, Video: true})
	if err != nil {
		o.setPhase(PhaseNotInCall)
		return NewError("acquire media", err)
	}

	return o.joinWithStream(ctx, callID, groupID, stream)
}

func (o *Orchestrator) awaitCallStarted(ctx context.Context, groupID string) (string, error) {
	timeout := time.After(handshakeTimeout)
	for {
		select {
		case ci, ok := <-o.handler.CallStarted:
			if !ok {
				return "", NewError("start call", ErrSignalingError)
			}
			if ci.GroupID == groupID && ci.InitiatorUserID == o.self.UserID {
				return ci.CallID, nil
			}
			// Someone else's call; surface it and keep waiting for ours.
			o.notify(Notice{Kind: NoticeIncomingCall, CallID: ci.CallID, GroupID: ci.GroupID})
		case se, ok := <-o.handler.Errors:
			if !ok {
				return "", NewError("start call", ErrSignalingError)
			}
			return "", WrapError("start call", ErrSignalingError, se.Message)
		case <-timeout:
			return "", WrapError("start call", ErrTimeout, "no call-started from server")
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (o *Orchestrator) joinWithStream(ctx context.Context, callID, groupID string, stream *media.Stream) error {
	o.setPhase(PhaseJoining)

	mgr := NewManager(ManagerConfig{
		SelfSessionID: o.self.SessionID,
		Factory:       o.factory,
		Send: func(target, signalType string, payload []byte) error {
			o.send(&protocol.Message{
				Type:       protocol.MessageTypeSignal,
				CallID:     callID,
				Target:     target,
				SignalType: signalType,
				Payload:    payload,
			})
			return nil
		},
		OnLink: func(ev LinkEvent) {
			o.notify(Notice{Kind: NoticeLink, CallID: callID, Link: ev})
		},
		OnPeerMedia: func(remote string, ms MediaState) {
			o.notify(Notice{Kind: NoticePeerMedia, CallID: callID, SessionID: remote, Media: ms})
		},
		Log: o.log,
	})
	mgr.SetLocalStream(stream)

	o.mu.Lock()
	o.mgr = mgr
	o.stream = stream
	o.callID = callID
	o.groupID = groupID
	o.mu.Unlock()

	o.send(&protocol.Message{Type: protocol.MessageTypeJoinCall, CallID: callID, GroupID: groupID})

	timeout := time.After(handshakeTimeout)
	select {
	case snap, ok := <-o.handler.Existing:
		if !ok {
			o.teardown()
			return NewError("join call", ErrSignalingError)
		}
		mgr.HandleSnapshot(snap.Participants)
		o.mu.Lock()
		o.roster = snap.Participants
		o.mu.Unlock()
		o.setPhase(PhaseInCall)
		o.log.Info().Str("call_id", callID).Int("existing", len(snap.Participants)).Msg("joined call")
		return nil
	case se, ok := <-o.handler.Errors:
		o.teardown()
		if !ok {
			return NewError("join call", ErrSignalingError)
		}
		return WrapError("join call", ErrSignalingError, se.Message)
	case <-timeout:
		o.teardown()
		return WrapError("join call", ErrTimeout, "no snapshot from server")
	case <-ctx.Done():
		o.teardown()
		return ctx.Err()
	}
}

// Run processes in-call events until ctx is cancelled or the connection
// drops. A dropped transport tears the local call state down.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			o.Leave()
			return

		case ev, ok := <-o.handler.Joined:
			if !ok {
				o.teardown()
				return
			}
			if mgr := o.manager(); mgr != nil && ev.CallID == o.CallID() {
				mgr.HandlePeerJoined(ev.Participant)
				o.notify(Notice{Kind: NoticeParticipantJoined, CallID: ev.CallID, Participant: ev.Participant})
			}

		case ev, ok := <-o.handler.Left:
			if !ok {
				o.teardown()
				return
			}
			if mgr := o.manager(); mgr != nil && ev.CallID == o.CallID() {
				mgr.HandlePeerLeft(ev.SessionID)
				o.notify(Notice{Kind: NoticeParticipantLeft, CallID: ev.CallID, SessionID: ev.SessionID})
			}

		case callID, ok := <-o.handler.Ended:
			if !ok {
				o.teardown()
				return
			}
			if callID == o.CallID() {
				o.teardown()
				o.notify(Notice{Kind: NoticeCallEnded, CallID: callID})
			}

		case sig, ok := <-o.handler.Signal:
			if !ok {
				o.teardown()
				return
			}
			if mgr := o.manager(); mgr != nil && sig.CallID == o.CallID() {
				mgr.HandleSignal(sig.From, sig.SignalType, sig.Payload)
			}

		case ci, ok := <-o.handler.CallStarted:
			if !ok {
				o.teardown()
				return
			}
			o.notify(Notice{Kind: NoticeIncomingCall, CallID: ci.CallID, GroupID: ci.GroupID})

		case se, ok := <-o.handler.Errors:
			if !ok {
				o.teardown()
				return
			}
			o.notify(Notice{Kind: NoticeServerError, CallID: se.CallID, Message: se.Message})
		}
	}
}

// Leave exits the current call, synchronously closing every peer link
// and releasing local media. Leaving while not in a call is benign.
func (o *Orchestrator) Leave() {
	o.mu.Lock()
	callID := o.callID
	phase := o.phase
	o.mu.Unlock()

	if phase == PhaseNotInCall {
		return
	}
	if callID != "" {
		o.send(&protocol.Message{Type: protocol.MessageTypeLeaveCall, CallID: callID})
	}
	o.teardown()
}

// End terminates the call for everyone.
func (o *Orchestrator) End() {
	o.mu.Lock()
	callID := o.callID
	groupID := o.groupID
	o.mu.Unlock()

	if callID == "" {
		return
	}
	o.send(&protocol.Message{Type: protocol.MessageTypeEndCall, CallID: callID, GroupID: groupID})
	o.teardown()
}

// teardown force-closes all local call state: every link, the local
// stream, any deferred work. It always lands in NotInCall.
func (o *Orchestrator) teardown() {
	o.mu.Lock()
	mgr := o.mgr
	stream := o.stream
	o.mgr = nil
	o.stream = nil
	o.roster = nil
	o.callID = ""
	o.groupID = ""
	o.phase = PhaseEnding
	o.mu.Unlock()

	if mgr != nil {
		mgr.CloseAll()
	}
	if stream != nil {
		stream.Close()
	}
	o.setPhase(PhaseNotInCall)
}

func (o *Orchestrator) manager() *Manager {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mgr
}

// ToggleAudio flips the local microphone. Returns the new enabled state.
func (o *Orchestrator) ToggleAudio() bool {
	return o.toggleMedia(func(ms *MediaState) bool {
		ms.AudioEnabled = !ms.AudioEnabled
		return ms.AudioEnabled
	})
}

// ToggleVideo flips the local camera. Returns the new enabled state.
func (o *Orchestrator) ToggleVideo() bool {
	return o.toggleMedia(func(ms *MediaState) bool {
		ms.VideoEnabled = !ms.VideoEnabled
		return ms.VideoEnabled
	})
}

func (o *Orchestrator) toggleMedia(flip func(*MediaState) bool) bool {
	o.mu.Lock()
	enabled := flip(&o.localMedia)
	ms := o.localMedia
	mgr := o.mgr
	o.mu.Unlock()

	if mgr != nil {
		mgr.SetMediaState(ms)
	}
	return enabled
}

// MediaStateNow returns the current local toggles.
func (o *Orchestrator) MediaStateNow() MediaState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.localMedia
}

// notify emits a notice without ever blocking call processing.
func (o *Orchestrator) notify(n Notice) {
	select {
	case o.notices <- n:
	default:
	}
}
