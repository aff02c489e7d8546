package signaling

import (
	"github.com/rs/zerolog"

	"github.com/yipyip1/Thesis-Sync-sub000/internal/protocol"
)

// Hub tracks every connected session and routes their lifecycle through a
// single goroutine. Call mutations do not pass through the hub loop; they
// go straight to the registry, which serializes per call, so two calls
// never wait on each other.
type Hub struct {
	Registry *Registry

	register   chan *Client
	unregister chan *Client

	// announce fans a message out to every live session. Used for
	// call-started, which must reach group members that are not yet in
	// any call; clients filter by group id.
	announce chan *protocol.Message

	quit chan struct{}

	// sessions is owned by the Run goroutine.
	sessions map[string]*Client

	log zerolog.Logger
}

func NewHub(registry *Registry, log zerolog.Logger) *Hub {
	return &Hub{
		Registry:   registry,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		announce:   make(chan *protocol.Message, 64),
		quit:       make(chan struct{}),
		sessions:   make(map[string]*Client),
		log:        log.With().Str("component", "hub").Logger(),
	}
}

// Register hands a freshly upgraded connection to the hub.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Stop shuts the hub down, closing every live connection.
func (h *Hub) Stop() {
	close(h.quit)
}

// Run is the hub's main loop. It owns the session map.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			for id, c := range h.sessions {
				close(c.send)
				delete(h.sessions, id)
			}
			return

		case c := <-h.register:
			h.sessions[c.sessionID] = c
			h.log.Info().Str("session_id", c.sessionID).Str("user_id", c.userID).Msg("session connected")

			// The client learns its own server-assigned session id here;
			// everything else it does references it.
			c.Deliver(&protocol.Message{
				Type:      protocol.MessageTypeConnected,
				SessionID: c.sessionID,
				UserID:    c.userID,
			})

		case c := <-h.unregister:
			if _, ok := h.sessions[c.sessionID]; !ok {
				continue
			}
			delete(h.sessions, c.sessionID)

			// Forced cleanup scoped to the dropped session: do not wait
			// for a leave-call that will never arrive.
			if callID := c.CallID(); callID != "" {
				if err := h.Registry.LeaveCall(callID, c.sessionID); err != nil {
					h.log.Debug().Err(err).Str("session_id", c.sessionID).Msg("cleanup leave")
				}
			}
			close(c.send)
			h.log.Info().Str("session_id", c.sessionID).Msg("session disconnected")

		case msg := <-h.announce:
			for id, c := range h.sessions {
				if !c.Deliver(msg) {
					h.log.Warn().Str("session_id", id).Msg("dropped announce, send buffer full")
				}
			}
		}
	}
}

// HandleMessage processes one inbound event. It is invoked on the sending
// connection's read goroutine, one invocation per event, so per-sender
// ordering holds without extra queueing.
func (h *Hub) HandleMessage(c *Client, msg *protocol.Message) {
	switch msg.Type {

	case protocol.MessageTypeStartCall:
		if msg.GroupID == "" {
			c.Deliver(&protocol.Message{Type: protocol.MessageTypeError, Error: "start-call requires a group id"})
			return
		}
		call := h.Registry.CreateCall(msg.GroupID, c.userID)

		select {
		case h.announce <- &protocol.Message{
			Type:            protocol.MessageTypeCallStarted,
			CallID:          call.ID,
			GroupID:         call.GroupID,
			InitiatorUserID: call.InitiatorUserID,
		}:
		case <-h.quit:
		}

	case protocol.MessageTypeJoinCall:
		// One active call per session: joining a new call leaves the
		// current one first.
		if current := c.CallID(); current != "" && current != msg.CallID {
			h.Registry.LeaveCall(current, c.sessionID)
			c.setCall("")
		}

		snapshot, err := h.Registry.JoinCall(msg.CallID, c.userID, c.sessionID, c)
		if err != nil {
			c.Deliver(&protocol.Message{Type: protocol.MessageTypeError, CallID: msg.CallID, Error: err.Error()})
			return
		}
		c.setCall(msg.CallID)

		c.Deliver(&protocol.Message{
			Type:         protocol.MessageTypeExistingParticipants,
			CallID:       msg.CallID,
			Participants: snapshot,
		})

	case protocol.MessageTypeLeaveCall:
		if err := h.Registry.LeaveCall(msg.CallID, c.sessionID); err != nil {
			c.Deliver(&protocol.Message{Type: protocol.MessageTypeError, CallID: msg.CallID, Error: err.Error()})
			return
		}
		c.setCall("")

	case protocol.MessageTypeEndCall:
		if err := h.Registry.EndCall(msg.CallID); err != nil {
			c.Deliver(&protocol.Message{Type: protocol.MessageTypeError, CallID: msg.CallID, Error: err.Error()})
			return
		}

	case protocol.MessageTypeSignal:
		h.Registry.Relay(msg, c.sessionID)

	default:
		h.log.Warn().Str("type", msg.Type).Str("session_id", c.sessionID).Msg("unknown message type")
	}
}
