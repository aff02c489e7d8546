package call

import (
	"errors"
	"fmt"
)

var (
	ErrNotInCall         = errors.New("not in a call")
	ErrAlreadyInCall     = errors.New("already in a call")
	ErrCallOver          = errors.New("call has ended")
	ErrSignalingError    = errors.New("signaling server error")
	ErrSignalingConflict = errors.New("signaling state conflict")
	ErrUnexpectedSignal  = errors.New("unexpected signal type")
	ErrTimeout           = errors.New("timeout")
)

// CallError wraps a failure with the operation and, when relevant, the
// remote session it concerned.
type CallError struct {
	Op      string
	Peer    string
	Err     error
	Details string
}

func (e *CallError) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *CallError {
	return &CallError{Op: op, Err: err}
}

func NewPeerError(op, peer string, err error) *CallError {
	return &CallError{Op: op, Peer: peer, Err: err}
}

func WrapError(op string, err error, details string) *CallError {
	return &CallError{Op: op, Err: err, Details: details}
}
