package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	gptable "github.com/jedib0t/go-pretty/v6/table"
)

// ParticipantRow is one roster line in the live room view.
type ParticipantRow struct {
	Name      string
	Role      string
	Group     string
	Score     string
	Spotlight bool
}

// ParticipantTableView renders the roster with lipgloss/table.
func ParticipantTableView(rows []ParticipantRow) string {
	if len(rows) == 0 {
		return MutedStyle.Render("Nobody else is here yet")
	}

	headers := []string{"", "Name", "Role", "Group", "Score"}
	var body [][]string
	for _, r := range rows {
		marker := " "
		if r.Spotlight {
			marker = IconSpotlight
		}
		group := r.Group
		if group == "" {
			group = "-"
		}
		body = append(body, []string{marker, truncateString(r.Name, 24), r.Role, group, r.Score})
	}

	tbl := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(body...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == lgtable.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// SessionSummary holds the end-of-show stats printed after the session
// loop exits.
type SessionSummary struct {
	Room     string
	Role     string
	Peers    int
	Duration string
}

// RenderSessionSummary prints the summary as a go-pretty table.
func RenderSessionSummary(title string, summary SessionSummary) {
	tw := gptable.NewWriter()
	tw.SetTitle(title)
	tw.SetStyle(gptable.StyleRounded)
	tw.AppendHeader(gptable.Row{"Metric", "Value"})
	tw.AppendRows([]gptable.Row{
		{"Room", summary.Room},
		{"Role", summary.Role},
		{"Peers seen", fmt.Sprintf("%d", summary.Peers)},
		{"Duration", summary.Duration},
	})
	fmt.Println(tw.Render())
}

// RoomInfo is the banner shown after a room is opened.
type RoomInfo struct {
	RoomID   string
	RoomLink string
}

func (r RoomInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Room Ready!\n\n%s Room ID:    %s\n%s Room Link:  %s",
		IconSuccess,
		IconRoom, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconWeb, MutedStyle.Render(r.RoomLink),
	)

	return boxStyle.Render(content)
}

func RenderRoomInfo(roomID, roomLink string) {
	fmt.Println(RoomInfo{RoomID: roomID, RoomLink: roomLink}.View())
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
