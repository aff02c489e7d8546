package gateway

import (
	"github.com/yipyip1/Thesis-Sync-sub000/internal/protocol"
)

// ConnectedInfo is the identity the server assigned this connection.
type ConnectedInfo struct {
	SessionID string
	UserID    string
}

// CallInfo announces a call that started somewhere in the user's groups.
type CallInfo struct {
	CallID          string
	GroupID         string
	InitiatorUserID string
}

// Snapshot lists who was already in a call when we joined.
type Snapshot struct {
	CallID       string
	Participants []protocol.Participant
}

// ParticipantEvent is one participant joining a call we are in.
type ParticipantEvent struct {
	CallID      string
	Participant protocol.Participant
}

// LeftEvent is one participant leaving a call we are in.
type LeftEvent struct {
	CallID    string
	SessionID string
}

// SignalEvent carries one relayed offer/answer/ice-candidate envelope.
type SignalEvent struct {
	CallID     string
	From       string
	SignalType string
	Payload    []byte
}

// ServerError is a user-visible failure reported by the server.
type ServerError struct {
	CallID  string
	Message string
}

// Handler routes incoming signaling messages to typed channels.
type Handler struct {
	client *Client

	Connected   chan ConnectedInfo
	CallStarted chan CallInfo
	Existing    chan Snapshot
	Joined      chan ParticipantEvent
	Left        chan LeftEvent
	Ended       chan string
	Signal      chan SignalEvent
	Errors      chan ServerError
}

// NewHandler creates a new message handler. client may be nil in tests
// that feed the channels directly.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:      client,
		Connected:   make(chan ConnectedInfo, 1),
		CallStarted: make(chan CallInfo, 4),
		Existing:    make(chan Snapshot, 1),
		Joined:      make(chan ParticipantEvent, 16),
		Left:        make(chan LeftEvent, 16),
		Ended:       make(chan string, 1),
		Signal:      make(chan SignalEvent, 64),
		Errors:      make(chan ServerError, 4),
	}
}

// Start consumes the client's incoming stream and routes until the
// connection closes. Channel order within one sender is preserved.
//
// Start is the only goroutine that sends on the typed channels, so it
// alone closes them, once the incoming stream is exhausted. Consumers
// learn about a disconnect by seeing their channel close.
func (h *Handler) Start() {
	defer func() {
		close(h.Connected)
		close(h.CallStarted)
		close(h.Existing)
		close(h.Joined)
		close(h.Left)
		close(h.Ended)
		close(h.Signal)
		close(h.Errors)
	}()

	for msg := range h.client.Incoming() {
		switch msg.Type {

		case protocol.MessageTypeConnected:
			h.Connected <- ConnectedInfo{SessionID: msg.SessionID, UserID: msg.UserID}

		case protocol.MessageTypeCallStarted:
			h.CallStarted <- CallInfo{
				CallID:          msg.CallID,
				GroupID:         msg.GroupID,
				InitiatorUserID: msg.InitiatorUserID,
			}

		case protocol.MessageTypeExistingParticipants:
			h.Existing <- Snapshot{CallID: msg.CallID, Participants: msg.Participants}

		case protocol.MessageTypeParticipantJoined:
			h.Joined <- ParticipantEvent{
				CallID:      msg.CallID,
				Participant: protocol.Participant{SessionID: msg.SessionID, UserID: msg.UserID},
			}

		case protocol.MessageTypeParticipantLeft:
			h.Left <- LeftEvent{CallID: msg.CallID, SessionID: msg.SessionID}

		case protocol.MessageTypeCallEnded:
			h.Ended <- msg.CallID

		case protocol.MessageTypeSignal:
			h.Signal <- SignalEvent{
				CallID:     msg.CallID,
				From:       msg.From,
				SignalType: msg.SignalType,
				Payload:    msg.Payload,
			}

		case protocol.MessageTypeError:
			h.Errors <- ServerError{CallID: msg.CallID, Message: msg.Error}

		default:
		}
	}
}
