package signaling

import (
	"github.com/yipyip1/Thesis-Sync-sub000/internal/protocol"
)

// Relay forwards an opaque offer/answer/ice-candidate envelope from the
// session identified by fromSessionID to the target session named in msg.
//
// Delivery is best effort: an unknown call, an ended call or a vanished
// target (the peer left mid-handshake) drops the envelope with a log line
// and never surfaces an error to the sender. The payload is not inspected.
//
// FIFO order between any (from, target) pair is preserved end to end:
// each sender's events arrive on a single read loop and each target has a
// single write loop draining an ordered channel.
func (r *Registry) Relay(msg *protocol.Message, fromSessionID string) {
	log := r.log.With().
		Str("call_id", msg.CallID).
		Str("from", fromSessionID).
		Str("target", msg.Target).
		Str("signal_type", msg.SignalType).
		Logger()

	if !protocol.ValidSignalType(msg.SignalType) {
		log.Warn().Msg("dropping signal with invalid type")
		return
	}

	call, ok := r.lookup(msg.CallID)
	if !ok {
		log.Debug().Msg("dropping signal, call gone")
		return
	}

	call.mu.Lock()
	defer call.mu.Unlock()

	if call.state == CallEnded {
		log.Debug().Msg("dropping signal, call ended")
		return
	}

	target, ok := call.sessions[msg.Target]
	if !ok {
		// Target left mid-handshake. Non-fatal: the sender will see a
		// participant-left for it and tear down its side of the link.
		log.Debug().Msg("dropping signal, target gone")
		return
	}

	out := &protocol.Message{
		Type:       protocol.MessageTypeSignal,
		CallID:     call.ID,
		From:       fromSessionID,
		SignalType: msg.SignalType,
		Payload:    msg.Payload,
	}
	if !target.sender.Deliver(out) {
		log.Warn().Msg("dropped signal, target send buffer full")
	}
}
