package signaling

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yipyip1/Thesis-Sync-sub000/internal/protocol"
)

var (
	// ErrCallNotFound is returned for operations on an unknown call id.
	ErrCallNotFound = errors.New("call not found")

	// ErrCallEnded is returned when a join races with the end of a call
	// that is still being torn down.
	ErrCallEnded = errors.New("call already ended")
)

// CallState tracks the forward-only lifecycle of a call.
type CallState int

const (
	CallStarting CallState = iota
	CallActive
	CallEnded
)

func (s CallState) String() string {
	switch s {
	case CallStarting:
		return "starting"
	case CallActive:
		return "active"
	case CallEnded:
		return "ended"
	}
	return "unknown"
}

// Sender is what the registry needs from a connected client: a non-blocking
// delivery attempt and a hook to clear the client's call association when
// the call ends underneath it.
type Sender interface {
	Deliver(msg *protocol.Message) bool
	Detach()
}

// MediaState mirrors the participant's local track toggles. Authoritative
// state travels peer-to-peer on the control channel; these are defaults for
// the snapshot a late joiner sees before the first control message arrives.
type MediaState struct {
	AudioEnabled bool
	VideoEnabled bool
}

// Session is one participant's membership in a call, keyed by the
// transport-connection session id.
type Session struct {
	ID     string
	UserID string
	Media  MediaState
	sender Sender
}

// Call is the authoritative participant set for one active call.
// All mutations for a call serialize on its mutex; distinct calls
// proceed fully in parallel.
type Call struct {
	ID              string
	GroupID         string
	InitiatorUserID string
	CreatedAt       time.Time

	mu       sync.Mutex
	state    CallState
	sessions map[string]*Session
}

// State returns the call's lifecycle state.
func (c *Call) State() CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Registry is the single source of truth for active calls. The registry
// map is the only cross-handler shared state on the server.
type Registry struct {
	mu    sync.RWMutex
	calls map[string]*Call
	log   zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		calls: make(map[string]*Call),
		log:   log.With().Str("component", "registry").Logger(),
	}
}

// CreateCall registers a new call for groupID and returns it. The call
// stays in Starting until the first participant joins.
func (r *Registry) CreateCall(groupID, initiatorUserID string) *Call {
	call := &Call{
		ID:              uuid.NewString(),
		GroupID:         groupID,
		InitiatorUserID: initiatorUserID,
		CreatedAt:       time.Now(),
		state:           CallStarting,
		sessions:        make(map[string]*Session),
	}

	r.mu.Lock()
	r.calls[call.ID] = call
	r.mu.Unlock()

	r.log.Info().
		Str("call_id", call.ID).
		Str("group_id", groupID).
		Str("user_id", initiatorUserID).
		Msg("call created")
	return call
}

func (r *Registry) lookup(callID string) (*Call, bool) {
	r.mu.RLock()
	call, ok := r.calls[callID]
	r.mu.RUnlock()
	return call, ok
}

func (r *Registry) remove(callID string) {
	r.mu.Lock()
	delete(r.calls, callID)
	r.mu.Unlock()
}

// JoinCall adds a session to the call and returns a snapshot of the
// participants that were already present, in join order not guaranteed.
// Everyone already in the call receives participant-joined.
func (r *Registry) JoinCall(callID, userID, sessionID string, sender Sender) ([]protocol.Participant, error) {
	call, ok := r.lookup(callID)
	if !ok {
		return nil, ErrCallNotFound
	}

	call.mu.Lock()
	defer call.mu.Unlock()

	if call.state == CallEnded {
		return nil, ErrCallEnded
	}

	// A session re-sending join-call for its current call is already in
	// the map; filter it so the snapshot never includes the joiner.
	_, rejoin := call.sessions[sessionID]

	snapshot := make([]protocol.Participant, 0, len(call.sessions))
	for id, s := range call.sessions {
		if id == sessionID {
			continue
		}
		snapshot = append(snapshot, protocol.Participant{SessionID: s.ID, UserID: s.UserID})
	}

	call.sessions[sessionID] = &Session{
		ID:     sessionID,
		UserID: userID,
		Media:  MediaState{AudioEnabled: true, VideoEnabled: true},
		sender: sender,
	}
	call.state = CallActive

	if !rejoin {
		joined := &protocol.Message{
			Type:      protocol.MessageTypeParticipantJoined,
			CallID:    call.ID,
			UserID:    userID,
			SessionID: sessionID,
		}
		for id, s := range call.sessions {
			if id == sessionID {
				continue
			}
			if !s.sender.Deliver(joined) {
				r.log.Warn().Str("call_id", call.ID).Str("session_id", id).Msg("dropped participant-joined, send buffer full")
			}
		}
	}

	r.log.Info().
		Str("call_id", call.ID).
		Str("session_id", sessionID).
		Str("user_id", userID).
		Int("participants", len(call.sessions)).
		Msg("participant joined")
	return snapshot, nil
}

// LeaveCall removes a session from the call. Removing the last session
// ends the call. Leaving a call one is not actually in is benign.
func (r *Registry) LeaveCall(callID, sessionID string) error {
	call, ok := r.lookup(callID)
	if !ok {
		return ErrCallNotFound
	}

	call.mu.Lock()

	sess, ok := call.sessions[sessionID]
	if !ok {
		call.mu.Unlock()
		return nil
	}
	delete(call.sessions, sessionID)
	sess.sender.Detach()

	left := &protocol.Message{
		Type:      protocol.MessageTypeParticipantLeft,
		CallID:    call.ID,
		SessionID: sessionID,
	}
	for id, s := range call.sessions {
		if !s.sender.Deliver(left) {
			r.log.Warn().Str("call_id", call.ID).Str("session_id", id).Msg("dropped participant-left, send buffer full")
		}
	}

	empty := len(call.sessions) == 0
	if empty {
		call.state = CallEnded
	}
	call.mu.Unlock()

	r.log.Info().Str("call_id", call.ID).Str("session_id", sessionID).Msg("participant left")

	if empty {
		r.remove(call.ID)
		r.log.Info().Str("call_id", call.ID).Msg("call ended, last participant left")
	}
	return nil
}

// EndCall terminates the call for every participant and destroys it.
// The call id is never reused.
func (r *Registry) EndCall(callID string) error {
	call, ok := r.lookup(callID)
	if !ok {
		return ErrCallNotFound
	}

	call.mu.Lock()
	if call.state == CallEnded {
		call.mu.Unlock()
		return ErrCallEnded
	}
	call.state = CallEnded

	ended := &protocol.Message{
		Type:   protocol.MessageTypeCallEnded,
		CallID: call.ID,
	}
	for id, s := range call.sessions {
		if !s.sender.Deliver(ended) {
			r.log.Warn().Str("call_id", call.ID).Str("session_id", id).Msg("dropped call-ended, send buffer full")
		}
		s.sender.Detach()
	}
	call.sessions = make(map[string]*Session)
	call.mu.Unlock()

	r.remove(call.ID)
	r.log.Info().Str("call_id", call.ID).Msg("call ended")
	return nil
}

// Participants returns the current member snapshot of a call.
func (r *Registry) Participants(callID string) ([]protocol.Participant, error) {
	call, ok := r.lookup(callID)
	if !ok {
		return nil, ErrCallNotFound
	}

	call.mu.Lock()
	defer call.mu.Unlock()

	out := make([]protocol.Participant, 0, len(call.sessions))
	for _, s := range call.sessions {
		out = append(out, protocol.Participant{SessionID: s.ID, UserID: s.UserID})
	}
	return out, nil
}
