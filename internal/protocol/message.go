package protocol

import "encoding/json"

// Message defines the structure for all C2S (Client to Server)
// and S2C (Server to Client) websocket messages. Fields are sparse;
// which ones are set depends on Type.
type Message struct {
	Type            string          `json:"type"`
	CallID          string          `json:"call_id,omitempty"`
	GroupID         string          `json:"group_id,omitempty"`
	UserID          string          `json:"user_id,omitempty"`
	SessionID       string          `json:"session_id,omitempty"`
	InitiatorUserID string          `json:"initiator_user_id,omitempty"`
	From            string          `json:"from,omitempty"`
	Target          string          `json:"target,omitempty"`
	SignalType      string          `json:"signal_type,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	Participants    []Participant   `json:"participants,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// Participant is the wire form of one call member.
type Participant struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// Message type constants.
const (
	// Client to server.
	MessageTypeStartCall = "start-call"
	MessageTypeJoinCall  = "join-call"
	MessageTypeLeaveCall = "leave-call"
	MessageTypeEndCall   = "end-call"
	MessageTypeSignal    = "signal"

	// Server to client.
	MessageTypeConnected            = "connected"
	MessageTypeCallStarted          = "call-started"
	MessageTypeParticipantJoined    = "participant-joined"
	MessageTypeParticipantLeft      = "participant-left"
	MessageTypeExistingParticipants = "existing-participants"
	MessageTypeCallEnded            = "call-ended"
	MessageTypeError                = "error"
)

// Signal type discriminants for the opaque payload of a signal message.
const (
	SignalTypeOffer        = "offer"
	SignalTypeAnswer       = "answer"
	SignalTypeICECandidate = "ice-candidate"
)

// ValidSignalType reports whether t is one of the three accepted
// signal discriminants. The relay refuses to forward anything else.
func ValidSignalType(t string) bool {
	switch t {
	case SignalTypeOffer, SignalTypeAnswer, SignalTypeICECandidate:
		return true
	}
	return false
}
