package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yipyip1/Thesis-Sync-sub000/internal/call"
	"github.com/yipyip1/Thesis-Sync-sub000/internal/protocol"
)

// CallController is what the live view needs from the call core.
type CallController interface {
	ToggleAudio() bool
	ToggleVideo() bool
	Leave()
	End()
	Notices() <-chan call.Notice
}

type participantView struct {
	sessionID string
	userID    string
	link      string
	media     call.MediaState
}

type noticeMsg call.Notice

type durationTickMsg time.Time

// CallModel is the live in-call bubbletea view: roster, per-peer link
// and media state, and the local mute/camera toggles.
type CallModel struct {
	ctrl    CallController
	callID  string
	groupID string

	spinner   spinner.Model
	startTime time.Time
	order     []string
	peers     map[string]*participantView
	local     call.MediaState
	status    string
	reason    string
	quitting  bool
}

func NewCallModel(ctrl CallController, callID, groupID string, existing []protocol.Participant, local call.MediaState) *CallModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	m := &CallModel{
		ctrl:      ctrl,
		callID:    callID,
		groupID:   groupID,
		spinner:   s,
		startTime: time.Now(),
		peers:     make(map[string]*participantView),
		local:     local,
		status:    "Connecting to peers...",
	}
	for _, p := range existing {
		m.addPeer(p)
	}
	return m
}

func (m *CallModel) addPeer(p protocol.Participant) {
	if _, ok := m.peers[p.SessionID]; ok {
		return
	}
	m.peers[p.SessionID] = &participantView{
		sessionID: p.SessionID,
		userID:    p.UserID,
		link:      "connecting",
		media:     call.MediaState{AudioEnabled: true, VideoEnabled: true},
	}
	m.order = append(m.order, p.SessionID)
}

func (m *CallModel) removePeer(sessionID string) {
	if _, ok := m.peers[sessionID]; !ok {
		return
	}
	delete(m.peers, sessionID)
	for i, id := range m.order {
		if id == sessionID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// EndReason reports why the view quit, for the post-call summary.
func (m *CallModel) EndReason() string {
	if m.reason == "" {
		return "left"
	}
	return m.reason
}

// PeerCount reports the roster size at quit time.
func (m *CallModel) PeerCount() int {
	return len(m.peers)
}

// Duration reports how long the view ran.
func (m *CallModel) Duration() time.Duration {
	return time.Since(m.startTime)
}

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.listenForNotices(),
		tea.Tick(time.Second, func(t time.Time) tea.Msg {
			return durationTickMsg(t)
		}),
	)
}

func (m *CallModel) listenForNotices() tea.Cmd {
	return func() tea.Msg {
		n, ok := <-m.ctrl.Notices()
		if !ok {
			return noticeMsg(call.Notice{Kind: call.NoticeCallEnded})
		}
		return noticeMsg(n)
	}
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "m":
			m.local.AudioEnabled = m.ctrl.ToggleAudio()
		case "v":
			m.local.VideoEnabled = m.ctrl.ToggleVideo()
		case "q", "ctrl+c":
			m.ctrl.Leave()
			m.reason = "left"
			m.quitting = true
			return m, tea.Quit
		case "e":
			m.ctrl.End()
			m.reason = "ended for everyone"
			m.quitting = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case durationTickMsg:
		if !m.quitting {
			cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg {
				return durationTickMsg(t)
			}))
		}

	case noticeMsg:
		n := call.Notice(msg)
		switch n.Kind {
		case call.NoticeParticipantJoined:
			m.addPeer(n.Participant)
			m.status = fmt.Sprintf("%s joined", n.Participant.UserID)
		case call.NoticeParticipantLeft:
			if p, ok := m.peers[n.SessionID]; ok {
				m.status = fmt.Sprintf("%s left", p.userID)
			}
			m.removePeer(n.SessionID)
		case call.NoticeLink:
			if p, ok := m.peers[n.Link.RemoteSessionID]; ok {
				p.link = n.Link.State.String()
			}
		case call.NoticePeerMedia:
			if p, ok := m.peers[n.SessionID]; ok {
				p.media = n.Media
			}
		case call.NoticeCallEnded:
			m.reason = "ended for everyone"
			m.quitting = true
			return m, tea.Quit
		case call.NoticeServerError:
			m.status = ErrorStyle.Render(n.Message)
		case call.NoticeIncomingCall:
			m.status = fmt.Sprintf("another call started in group %s", n.GroupID)
		}
		cmds = append(cmds, m.listenForNotices())
	}

	return m, tea.Batch(cmds...)
}

func (m *CallModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	elapsed := time.Since(m.startTime).Truncate(time.Second)
	b.WriteString(fmt.Sprintf("\n%s In Call %s %s\n\n",
		IconCall,
		MutedStyle.Render(truncateString(m.callID, 28)),
		MutedStyle.Render(fmt.Sprintf("%s %s", IconTime, elapsed)),
	))

	mic := IconMicOn + " on"
	if !m.local.AudioEnabled {
		mic = IconMicOff + " muted"
	}
	cam := IconCamOn + " on"
	if !m.local.VideoEnabled {
		cam = IconCamOff + " off"
	}
	b.WriteString(fmt.Sprintf("You: %s  %s\n\n", mic, cam))

	if len(m.order) == 0 {
		b.WriteString(fmt.Sprintf("%s Waiting for teammates to join...\n", m.spinner.View()))
	} else {
		rows := make([]ParticipantRow, 0, len(m.order))
		for i, id := range m.order {
			p := m.peers[id]
			rows = append(rows, ParticipantRow{
				Index:  i + 1,
				UserID: p.userID,
				Link:   p.link,
				Audio:  p.media.AudioEnabled,
				Video:  p.media.VideoEnabled,
			})
		}
		b.WriteString(NewParticipantTable(rows).View())
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n" + m.status + "\n")
	}

	b.WriteString("\n" + MutedStyle.Render("m toggle mic · v toggle camera · q leave · e end for everyone"))

	return b.String()
}

// RunCallView runs the live view until the user leaves or the call
// ends. Inline mode keeps earlier terminal output visible.
func RunCallView(m *CallModel) error {
	_, err := tea.NewProgram(m).Run()
	return err
}
