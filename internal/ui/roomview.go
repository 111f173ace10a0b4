package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ratjar110/gameshow-app/internal/client/room"
	"github.com/ratjar110/gameshow-app/internal/protocol"
)

// HostAction sends one host event; nil data means no payload. Guests
// run the view with a nil action.
type HostAction func(event string, data any) error

// tickMsg drives periodic snapshot refreshes and the round countdown.
type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RoomModel is the live room view. It polls the room state snapshot on
// a ticker rather than subscribing, so the model stays decoupled from
// the session's goroutines.
type RoomModel struct {
	roomID   string
	isHost   bool
	snapshot func() room.Snapshot
	action   HostAction

	spinner  spinner.Model
	status   string
	quitting bool
}

func NewRoomModel(roomID string, isHost bool, snapshot func() room.Snapshot, action HostAction) *RoomModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &RoomModel{
		roomID:   roomID,
		isHost:   isHost,
		snapshot: snapshot,
		action:   action,
		spinner:  s,
	}
}

func (m *RoomModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func (m *RoomModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		default:
			if m.isHost {
				m.handleHostKey(msg.String())
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		if !m.quitting {
			cmds = append(cmds, tickCmd())
		}
	}

	return m, tea.Batch(cmds...)
}

// hostKeys maps single keys to the host events they fire.
var hostKeys = map[string]struct {
	event string
	data  any
	label string
}{
	"m": {protocol.EventMuteAll, nil, "Muted everyone"},
	"u": {protocol.EventUnmuteAll, nil, "Unmuted everyone"},
	"r": {protocol.EventRevealContestants, nil, "Contestants revealed"},
	"h": {protocol.EventHideContestants, nil, "Contestants hidden"},
	"s": {protocol.EventStartRound, protocol.RoundData{Duration: 60}, "Round started (60s)"},
	"e": {protocol.EventEndRound, nil, "Round ended"},
	"c": {protocol.EventClearSpotlight, nil, "Spotlight cleared"},
}

func (m *RoomModel) handleHostKey(key string) {
	binding, ok := hostKeys[key]
	if !ok {
		return
	}
	if err := m.action(binding.event, binding.data); err != nil {
		m.status = ErrorStyle.Render(err.Error())
		return
	}
	m.status = SuccessStyle.Render(binding.label)
}

func (m *RoomModel) View() string {
	if m.quitting {
		return ""
	}

	snap := m.snapshot()
	var b strings.Builder

	role := "Contestant"
	icon := IconPeer
	if m.isHost {
		role = "Host"
		icon = IconHost
	}
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s Gameshow - Room %s (%s)", icon, m.roomID, role)))
	b.WriteString("\n\n")

	if snap.SelfID == "" {
		b.WriteString(fmt.Sprintf("%s Connecting to relay...\n", m.spinner.View()))
		return b.String()
	}

	if snap.Announcement != "" {
		b.WriteString(AnnouncementStyle.Render(fmt.Sprintf("📣 %s", snap.Announcement)))
		b.WriteString("\n\n")
	}

	b.WriteString(m.viewStatusLine(snap))
	b.WriteString("\n\n")

	b.WriteString(ParticipantTableView(participantRows(snap)))
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString("\n" + m.status + "\n")
	}

	b.WriteString(m.viewFooter())
	return b.String()
}

func (m *RoomModel) viewStatusLine(snap room.Snapshot) string {
	parts := []string{
		fmt.Sprintf("%s %d in room", IconPeer, len(snap.Peers)+1),
	}

	if snap.Revealed {
		parts = append(parts, SuccessStyle.Render(IconLive+" revealed"))
	} else {
		parts = append(parts, MutedStyle.Render(IconHidden+" hidden"))
	}

	if remaining := snap.RoundRemaining(time.Now()); remaining > 0 {
		parts = append(parts, WarningStyle.Render(fmt.Sprintf("%s round %ds", IconRound, int(remaining.Seconds()))))
	}

	return strings.Join(parts, "  ")
}

func (m *RoomModel) viewFooter() string {
	if m.isHost {
		return FooterStyle.Render("m mute all · u unmute all · r reveal · h hide · s start round · e end round · q quit")
	}
	return FooterStyle.Render("Press q to leave the room")
}

func participantRows(snap room.Snapshot) []ParticipantRow {
	rows := make([]ParticipantRow, 0, len(snap.Peers))
	for _, p := range snap.Peers {
		role := "Contestant"
		if p.IsHost {
			role = "Host"
		}
		name := p.DisplayName
		if name == "" {
			name = p.ID
		}
		score := "-"
		if v, ok := snap.Scores[p.ID]; ok {
			score = fmt.Sprintf("%d", v)
		}
		rows = append(rows, ParticipantRow{
			Name:      name,
			Role:      role,
			Group:     p.Group,
			Score:     score,
			Spotlight: snap.SpotlightID == p.ID,
		})
	}
	return rows
}
