package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/jedib0t/go-pretty/v6/table"
)

// ParticipantRow is one remote participant in the roster table.
type ParticipantRow struct {
	Index     int
	UserID    string
	SessionID string
	Link      string
	Audio     bool
	Video     bool
}

// ParticipantTable renders the call roster using lipgloss/table
type ParticipantTable struct {
	rows []ParticipantRow
}

func NewParticipantTable(rows []ParticipantRow) *ParticipantTable {
	return &ParticipantTable{rows: rows}
}

// View renders the table as a string
func (t *ParticipantTable) View() string {
	if len(t.rows) == 0 {
		return MutedStyle.Render("No one else is in the call yet")
	}

	headers := []string{"#", "User", "Link", "Mic", "Cam"}

	var rows [][]string
	for _, r := range t.rows {
		mic := IconMicOn
		if !r.Audio {
			mic = IconMicOff
		}
		cam := IconCamOn
		if !r.Video {
			cam = IconCamOff
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.Index),
			truncateString(r.UserID, 24),
			r.Link,
			mic,
			cam,
		})
	}

	tbl := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
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

// Render outputs the table directly to stdout
func (t *ParticipantTable) Render() {
	fmt.Println(t.View())
}

// CallSummary captures the stats shown when a call ends.
type CallSummary struct {
	CallID   string
	GroupID  string
	Peers    int
	Duration string
	Reason   string
}

// RenderCallSummary prints an end-of-call stats table using go-pretty.
func RenderCallSummary(summary CallSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Call", summary.CallID},
		{"Group", summary.GroupID},
		{"Peers", summary.Peers},
		{"Duration", summary.Duration},
		{"Ended", summary.Reason},
	})
	t.Render()
}

// CallInfoBox renders the banner shown after creating a call, with the
// id teammates need to join.
func CallInfoBox(callID, groupID string) string {
	content := fmt.Sprintf("%s Call Started!\n\n%s Call ID:   %s\n%s Group:     %s\n\nShare the call id so teammates can run: synccall join <call-id>",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(callID),
		IconGroup, MutedStyle.Render(groupID),
	)
	return SuccessBoxStyle.Render(content)
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
