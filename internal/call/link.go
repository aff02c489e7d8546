package call

import (
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/yipyip1/Thesis-Sync-sub000/internal/media"
	"github.com/yipyip1/Thesis-Sync-sub000/internal/protocol"
)

// Role says which side of a link dials. The arbiter fixes it per pair
// before any signaling happens.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

// LinkState is the signaling lifecycle of one mesh edge.
type LinkState int

const (
	LinkNew LinkState = iota
	LinkSignalingOffered
	LinkAwaitingOffer
	LinkSignalingAnswered
	LinkConnected
	LinkClosed
	LinkFailed
)

func (s LinkState) String() string {
	switch s {
	case LinkNew:
		return "new"
	case LinkSignalingOffered:
		return "signaling-offered"
	case LinkAwaitingOffer:
		return "awaiting-offer"
	case LinkSignalingAnswered:
		return "signaling-answered"
	case LinkConnected:
		return "connected"
	case LinkClosed:
		return "closed"
	case LinkFailed:
		return "failed"
	}
	return "unknown"
}

// SignalFunc sends one envelope to the named remote session through the
// signaling server. The payload is opaque to everything in between.
type SignalFunc func(target, signalType string, payload []byte) error

// ConnectionFactory builds peer connections. Satisfied by *media.Engine.
type ConnectionFactory interface {
	NewPeerConnection() (*webrtc.PeerConnection, error)
}

type trackSender struct {
	kind   webrtc.RTPCodecType
	sender *webrtc.RTPSender
	track  webrtc.TrackLocal
}

// PeerLink is one edge of the mesh: the local end of the connection to a
// single remote session.
type PeerLink struct {
	remoteSessionID string
	role            Role
	sendSignal      SignalFunc
	onState         func(remote string, s LinkState)
	onPeerMedia     func(remote string, ms MediaState)
	log             zerolog.Logger

	mu         sync.Mutex
	state      LinkState
	pc         *webrtc.PeerConnection
	pendingICE []webrtc.ICECandidateInit
	control    *webrtc.DataChannel
	senders    []trackSender
	localMedia MediaState
}

type linkConfig struct {
	remote      string
	role        Role
	factory     ConnectionFactory
	stream      *media.Stream
	send        SignalFunc
	onState     func(string, LinkState)
	onPeerMedia func(string, MediaState)
	localMedia  MediaState
	log         zerolog.Logger
}

func newPeerLink(cfg linkConfig) (*PeerLink, error) {
	pc, err := cfg.factory.NewPeerConnection()
	if err != nil {
		return nil, NewPeerError("create peer connection", cfg.remote, err)
	}

	l := &PeerLink{
		remoteSessionID: cfg.remote,
		role:            cfg.role,
		sendSignal:      cfg.send,
		onState:         cfg.onState,
		onPeerMedia:     cfg.onPeerMedia,
		localMedia:      cfg.localMedia,
		state:           LinkNew,
		pc:              pc,
		log: cfg.log.With().
			Str("peer", cfg.remote).
			Str("role", cfg.role.String()).
			Logger(),
	}
	if cfg.role == RoleResponder {
		l.state = LinkAwaitingOffer
	}

	tracks := []webrtc.TrackLocal(nil)
	if cfg.stream != nil {
		tracks = cfg.stream.Tracks()
	}
	if len(tracks) == 0 {
		if err := media.AddRecvOnlyTransceivers(pc); err != nil {
			pc.Close()
			return nil, NewPeerError("add transceivers", cfg.remote, err)
		}
	}
	for _, t := range tracks {
		sender, err := pc.AddTrack(t)
		if err != nil {
			pc.Close()
			return nil, NewPeerError("add track", cfg.remote, err)
		}
		l.senders = append(l.senders, trackSender{kind: t.Kind(), sender: sender, track: t})
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		payload, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		if err := l.sendSignal(l.remoteSessionID, protocol.SignalTypeICECandidate, payload); err != nil {
			l.log.Warn().Err(err).Msg("failed to send ice candidate")
		}
	})

	pc.OnConnectionStateChange(func(cs webrtc.PeerConnectionState) {
		switch cs {
		case webrtc.PeerConnectionStateConnected:
			l.setState(LinkConnected)
		case webrtc.PeerConnectionStateFailed:
			l.setState(LinkFailed)
		}
	})

	// The initiator opens the control channel; the responder picks it up
	// from the remote side.
	if cfg.role == RoleInitiator {
		dc, err := pc.CreateDataChannel(controlChannelLabel, nil)
		if err != nil {
			pc.Close()
			return nil, NewPeerError("create control channel", cfg.remote, err)
		}
		l.attachControl(dc)
	} else {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			if dc.Label() == controlChannelLabel {
				l.attachControl(dc)
			}
		})
	}

	return l, nil
}

func (l *PeerLink) RemoteSessionID() string { return l.remoteSessionID }
func (l *PeerLink) Role() Role              { return l.role }

func (l *PeerLink) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *PeerLink) setState(s LinkState) {
	l.mu.Lock()
	if l.state == LinkClosed || l.state == s {
		l.mu.Unlock()
		return
	}
	l.state = s
	l.mu.Unlock()

	l.log.Debug().Str("state", s.String()).Msg("link state")
	if l.onState != nil {
		l.onState(l.remoteSessionID, s)
	}
}

// Offer builds and sends the local offer. Initiator path only.
func (l *PeerLink) Offer() error {
	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return NewPeerError("create offer", l.remoteSessionID, err)
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return NewPeerError("set local description", l.remoteSessionID, err)
	}

	payload, err := json.Marshal(l.pc.LocalDescription())
	if err != nil {
		return NewPeerError("marshal offer", l.remoteSessionID, err)
	}
	if err := l.sendSignal(l.remoteSessionID, protocol.SignalTypeOffer, payload); err != nil {
		return NewPeerError("send offer", l.remoteSessionID, err)
	}

	l.setState(LinkSignalingOffered)
	return nil
}

// AcceptOffer applies the remote offer and sends back an answer.
// Responder path.
func (l *PeerLink) AcceptOffer(offer webrtc.SessionDescription) error {
	if err := l.pc.SetRemoteDescription(offer); err != nil {
		return NewPeerError("set remote description", l.remoteSessionID, err)
	}
	l.flushPendingICE()

	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return NewPeerError("create answer", l.remoteSessionID, err)
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		return NewPeerError("set local description", l.remoteSessionID, err)
	}

	payload, err := json.Marshal(l.pc.LocalDescription())
	if err != nil {
		return NewPeerError("marshal answer", l.remoteSessionID, err)
	}
	if err := l.sendSignal(l.remoteSessionID, protocol.SignalTypeAnswer, payload); err != nil {
		return NewPeerError("send answer", l.remoteSessionID, err)
	}

	l.setState(LinkSignalingAnswered)
	return nil
}

// ApplyAnswer applies the remote answer. Valid only while an offer is
// outstanding; anything else is a signaling conflict the manager resolves
// by recreating the link.
func (l *PeerLink) ApplyAnswer(answer webrtc.SessionDescription) error {
	l.mu.Lock()
	if l.state != LinkSignalingOffered {
		state := l.state
		l.mu.Unlock()
		return WrapError("apply answer", ErrSignalingConflict, "link is "+state.String())
	}
	l.mu.Unlock()

	if err := l.pc.SetRemoteDescription(answer); err != nil {
		return NewPeerError("set remote description", l.remoteSessionID, err)
	}
	l.flushPendingICE()
	l.setState(LinkSignalingAnswered)
	return nil
}

// AddICECandidate applies a relayed candidate, buffering it until a
// remote description exists.
func (l *PeerLink) AddICECandidate(init webrtc.ICECandidateInit) error {
	l.mu.Lock()
	if l.pc.RemoteDescription() == nil {
		l.pendingICE = append(l.pendingICE, init)
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	if err := l.pc.AddICECandidate(init); err != nil {
		return NewPeerError("add ice candidate", l.remoteSessionID, err)
	}
	return nil
}

func (l *PeerLink) flushPendingICE() {
	l.mu.Lock()
	pending := l.pendingICE
	l.pendingICE = nil
	l.mu.Unlock()

	for _, init := range pending {
		if err := l.pc.AddICECandidate(init); err != nil {
			l.log.Warn().Err(err).Msg("failed to apply buffered ice candidate")
		}
	}
}

// SetLocalMedia applies the local track toggles on this link's senders
// and tells the peer over the control channel.
func (l *PeerLink) SetLocalMedia(ms MediaState) {
	l.mu.Lock()
	l.localMedia = ms
	senders := l.senders
	dc := l.control
	l.mu.Unlock()

	for _, ts := range senders {
		enabled := ms.AudioEnabled
		if ts.kind == webrtc.RTPCodecTypeVideo {
			enabled = ms.VideoEnabled
		}
		var err error
		if enabled {
			err = ts.sender.ReplaceTrack(ts.track)
		} else {
			err = ts.sender.ReplaceTrack(nil)
		}
		if err != nil {
			l.log.Warn().Err(err).Str("kind", ts.kind.String()).Msg("failed to toggle track")
		}
	}

	if dc != nil && dc.ReadyState() == webrtc.DataChannelStateOpen {
		l.sendMediaState(dc, ms)
	}
}

func (l *PeerLink) attachControl(dc *webrtc.DataChannel) {
	l.mu.Lock()
	l.control = dc
	l.mu.Unlock()

	dc.OnOpen(func() {
		l.mu.Lock()
		ms := l.localMedia
		l.mu.Unlock()
		l.sendMediaState(dc, ms)
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		cm, err := decodeControl(msg.Data)
		if err != nil {
			l.log.Warn().Err(err).Msg("bad control message")
			return
		}
		if cm.Kind == controlKindMediaState && l.onPeerMedia != nil {
			l.onPeerMedia(l.remoteSessionID, cm.Media)
		}
	})
}

func (l *PeerLink) sendMediaState(dc *webrtc.DataChannel, ms MediaState) {
	data, err := encodeMediaState(ms)
	if err != nil {
		l.log.Warn().Err(err).Msg("encode media state")
		return
	}
	if err := dc.Send(data); err != nil {
		l.log.Warn().Err(err).Msg("send media state")
	}
}

// Close tears the link down. Idempotent.
func (l *PeerLink) Close() {
	l.mu.Lock()
	if l.state == LinkClosed {
		l.mu.Unlock()
		return
	}
	l.state = LinkClosed
	l.pendingICE = nil
	l.mu.Unlock()

	if err := l.pc.Close(); err != nil {
		l.log.Debug().Err(err).Msg("close peer connection")
	}
}
