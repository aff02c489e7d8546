package call

import (
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/yipyip1/Thesis-Sync-sub000/internal/media"
	"github.com/yipyip1/Thesis-Sync-sub000/internal/protocol"
)

// LinkEvent notifies the caller of a mesh edge changing state.
type LinkEvent struct {
	RemoteSessionID string
	State           LinkState
}

// ManagerConfig wires a Manager to its surroundings.
type ManagerConfig struct {
	SelfSessionID string
	Factory       ConnectionFactory
	Send          SignalFunc
	OnLink        func(LinkEvent)
	OnPeerMedia   func(remote string, ms MediaState)
	Log           zerolog.Logger
}

// Manager owns every peer link of the current call: one per remote
// session, with the initiator side fixed by ShouldInitiate. It never
// creates a duplicate edge, and it self-heals signaling conflicts by
// destroying and recreating the affected link instead of failing.
type Manager struct {
	self        string
	factory     ConnectionFactory
	send        SignalFunc
	onLink      func(LinkEvent)
	onPeerMedia func(string, MediaState)
	log         zerolog.Logger

	mu         sync.Mutex
	links      map[string]*PeerLink
	stream     *media.Stream
	ready      bool
	deferred   []protocol.Participant
	localMedia MediaState
	closed     bool
}

func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		self:        cfg.SelfSessionID,
		factory:     cfg.Factory,
		send:        cfg.Send,
		onLink:      cfg.OnLink,
		onPeerMedia: cfg.OnPeerMedia,
		log:         cfg.Log.With().Str("component", "mesh").Logger(),
		links:       make(map[string]*PeerLink),
		localMedia:  MediaState{AudioEnabled: true, VideoEnabled: true},
	}
}

// SetLocalStream marks local media ready and connects to every
// participant whose snapshot arrived while capture was still running.
// Deferred participants are never silently skipped.
func (m *Manager) SetLocalStream(s *media.Stream) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.stream = s
	m.ready = true
	pending := m.deferred
	m.deferred = nil
	m.mu.Unlock()

	for _, p := range pending {
		m.connectTo(p.SessionID)
	}
}

// HandleSnapshot processes the existing-participants list a joiner
// receives. If local media is not captured yet the snapshot is deferred,
// not dropped.
func (m *Manager) HandleSnapshot(parts []protocol.Participant) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if !m.ready {
		m.deferred = append(m.deferred, parts...)
		m.mu.Unlock()
		m.log.Debug().Int("participants", len(parts)).Msg("deferring snapshot until media is ready")
		return
	}
	m.mu.Unlock()

	for _, p := range parts {
		m.connectTo(p.SessionID)
	}
}

// HandlePeerJoined reacts to a new participant announcement.
func (m *Manager) HandlePeerJoined(p protocol.Participant) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if !m.ready {
		m.deferred = append(m.deferred, p)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.connectTo(p.SessionID)
}

// HandlePeerLeft destroys the link to the departed session, if any.
func (m *Manager) HandlePeerLeft(sessionID string) {
	m.mu.Lock()
	l, ok := m.links[sessionID]
	if ok {
		delete(m.links, sessionID)
	}
	m.mu.Unlock()

	if ok {
		l.Close()
		m.emit(LinkEvent{RemoteSessionID: sessionID, State: LinkClosed})
	}
}

// HandleSignal routes one relayed envelope to its link.
func (m *Manager) HandleSignal(from, signalType string, payload []byte) {
	switch signalType {
	case protocol.SignalTypeOffer:
		m.handleOffer(from, payload)
	case protocol.SignalTypeAnswer:
		m.handleAnswer(from, payload)
	case protocol.SignalTypeICECandidate:
		m.handleICECandidate(from, payload)
	default:
		m.log.Warn().Str("signal_type", signalType).Str("from", from).Msg("dropping unknown signal")
	}
}

// connectTo ensures exactly one link exists toward sessionID, dialing it
// when the arbiter says this side initiates.
func (m *Manager) connectTo(sessionID string) {
	if sessionID == "" || sessionID == m.self {
		return
	}

	role := RoleResponder
	if ShouldInitiate(m.self, sessionID) {
		role = RoleInitiator
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if _, exists := m.links[sessionID]; exists {
		m.mu.Unlock()
		return
	}
	l, err := m.newLinkLocked(sessionID, role)
	if err != nil {
		m.mu.Unlock()
		m.log.Error().Err(err).Str("peer", sessionID).Msg("failed to create link")
		return
	}
	m.links[sessionID] = l
	m.mu.Unlock()

	if role == RoleInitiator {
		if err := l.Offer(); err != nil {
			m.log.Error().Err(err).Str("peer", sessionID).Msg("offer failed")
			m.dropLink(sessionID, LinkFailed)
		}
	}
}

// newLinkLocked builds a link using the current stream. Caller holds m.mu.
func (m *Manager) newLinkLocked(sessionID string, role Role) (*PeerLink, error) {
	return newPeerLink(linkConfig{
		remote:      sessionID,
		role:        role,
		factory:     m.factory,
		stream:      m.stream,
		send:        m.send,
		onState:     func(remote string, s LinkState) { m.emit(LinkEvent{RemoteSessionID: remote, State: s}) },
		onPeerMedia: m.onPeerMedia,
		localMedia:  m.localMedia,
		log:         m.log,
	})
}

func (m *Manager) handleOffer(from string, payload []byte) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		m.log.Warn().Err(err).Str("from", from).Msg("bad offer payload")
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if existing, ok := m.links[from]; ok {
		// An offer landing on a link that is mid-handshake means the two
		// sides disagree about the edge (glare or a stale link from a
		// previous attempt). The incoming signal wins: destroy ours and
		// rebuild as responder from the offer.
		delete(m.links, from)
		m.mu.Unlock()
		existing.Close()
		m.log.Info().Str("peer", from).Str("was", existing.State().String()).Msg("recreating link from incoming offer")
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
	}
	l, err := m.newLinkLocked(from, RoleResponder)
	if err != nil {
		m.mu.Unlock()
		m.log.Error().Err(err).Str("peer", from).Msg("failed to create link for offer")
		return
	}
	m.links[from] = l
	m.mu.Unlock()

	if err := l.AcceptOffer(offer); err != nil {
		m.log.Error().Err(err).Str("peer", from).Msg("accept offer failed")
		m.dropLink(from, LinkFailed)
	}
}

func (m *Manager) handleAnswer(from string, payload []byte) {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &answer); err != nil {
		m.log.Warn().Err(err).Str("from", from).Msg("bad answer payload")
		return
	}

	m.mu.Lock()
	l, ok := m.links[from]
	m.mu.Unlock()
	if !ok {
		m.log.Debug().Str("from", from).Msg("dropping answer for unknown link")
		return
	}

	err := l.ApplyAnswer(answer)
	if err == nil {
		return
	}

	m.log.Warn().Err(err).Str("peer", from).Msg("answer rejected, recreating link")
	m.dropLink(from, LinkClosed)
	// Start over toward the peer if we are still the initiator for it.
	if ShouldInitiate(m.self, from) {
		m.connectTo(from)
	}
}

func (m *Manager) handleICECandidate(from string, payload []byte) {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &init); err != nil {
		m.log.Warn().Err(err).Str("from", from).Msg("bad ice candidate payload")
		return
	}

	m.mu.Lock()
	l, ok := m.links[from]
	m.mu.Unlock()
	if !ok {
		m.log.Debug().Str("from", from).Msg("dropping candidate for unknown link")
		return
	}

	if err := l.AddICECandidate(init); err != nil {
		m.log.Warn().Err(err).Str("peer", from).Msg("ice candidate rejected")
	}
}

func (m *Manager) dropLink(sessionID string, final LinkState) {
	m.mu.Lock()
	l, ok := m.links[sessionID]
	if ok {
		delete(m.links, sessionID)
	}
	m.mu.Unlock()
	if ok {
		l.Close()
		m.emit(LinkEvent{RemoteSessionID: sessionID, State: final})
	}
}

// SetMediaState applies local mute/camera toggles across every link.
func (m *Manager) SetMediaState(ms MediaState) {
	m.mu.Lock()
	m.localMedia = ms
	links := make([]*PeerLink, 0, len(m.links))
	for _, l := range m.links {
		links = append(links, l)
	}
	m.mu.Unlock()

	for _, l := range links {
		l.SetLocalMedia(ms)
	}
}

// Link returns the link toward sessionID, if one exists.
func (m *Manager) Link(sessionID string) (*PeerLink, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[sessionID]
	return l, ok
}

// LinkCount reports the number of live mesh edges.
func (m *Manager) LinkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

// CloseAll tears down every link and cancels all deferred work. The
// manager accepts no new work afterwards.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	links := m.links
	m.links = make(map[string]*PeerLink)
	m.deferred = nil
	m.mu.Unlock()

	for _, l := range links {
		l.Close()
	}
}

func (m *Manager) emit(ev LinkEvent) {
	if m.onLink != nil {
		m.onLink(ev)
	}
}
