package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/garyjia/travel-approval/internal/domain/approval"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

const colGap = 2

var (
	styleHeader = lipgloss.NewStyle().Bold(true)
	styleDim    = lipgloss.NewStyle().Faint(true)
)

// renderTable pads every column to its widest visible cell
func renderTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	cols := len(headers)
	widths := make([]int, cols)
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < cols && i < len(row); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string, style *lipgloss.Style) {
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			pad := widths[i] - lipgloss.Width(cell)
			if style != nil {
				cell = style.Render(cell)
			}
			b.WriteString(cell)
			if i < cols-1 {
				b.WriteString(strings.Repeat(" ", pad+colGap))
			}
		}
		b.WriteString("\n")
	}

	writeRow(headers, &styleHeader)
	sep := make([]string, cols)
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(sep, &styleDim)
	for _, row := range rows {
		writeRow(row, nil)
	}
	return b.String()
}

func formatResolution(result *approval.Result) string {
	var b strings.Builder
	if result.SelfApproved {
		b.WriteString("Self-approved: no approvers required\n")
	}
	if result.PrimaryMode != "" {
		fmt.Fprintf(&b, "Primary mode: %s\n", result.PrimaryMode)
	}
	if result.ManagerDecision.Reason != "" {
		fmt.Fprintf(&b, "Manager: included=%t (%s)\n", result.ManagerDecision.Include, result.ManagerDecision.Reason)
	}
	for _, note := range result.AdvanceBookingNotes {
		fmt.Fprintf(&b, "Note: %s\n", note)
	}
	if len(result.Chain) == 0 {
		return b.String()
	}

	rows := make([][]string, 0, len(result.Chain))
	for _, entry := range result.Chain {
		name, email := "-", "-"
		if entry.User != nil {
			name, email = entry.User.Name, entry.User.Email
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", entry.Sequence),
			string(entry.Level),
			name,
			email,
			yesNo(entry.IsRequired),
			yesNo(entry.CanApprove),
			orDash(entry.TriggeredByRule),
		})
	}
	b.WriteString(renderTable([]string{"SEQ", "LEVEL", "APPROVER", "EMAIL", "REQUIRED", "CAN APPROVE", "RULE"}, rows))
	return b.String()
}

func formatApplication(app *entity.TravelApplication) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Application #%d: %s\n", app.ID, app.Purpose)
	fmt.Fprintf(&b, "Status: %s\n", app.Status)
	fmt.Fprintf(&b, "Estimated cost: %s\n", app.EstimatedTotalCost.StringFixed(2))
	if app.CurrentApproverID != nil {
		fmt.Fprintf(&b, "Current approver: %d\n", *app.CurrentApproverID)
	}
	if app.SelfApproved {
		b.WriteString("Self-approved\n")
	}

	var rows [][]string
	for _, trip := range app.Trips {
		for _, booking := range trip.Bookings {
			rows = append(rows, []string{
				trip.Origin + " -> " + trip.Destination,
				booking.ModeName,
				booking.EstimatedCost.StringFixed(2),
			})
		}
	}
	if len(rows) > 0 {
		b.WriteString(renderTable([]string{"TRIP", "MODE", "COST"}, rows))
	}
	return b.String()
}

func formatFlows(flows []*entity.TravelApprovalFlow) string {
	if len(flows) == 0 {
		return "No approval flows\n"
	}
	rows := make([][]string, 0, len(flows))
	for _, f := range flows {
		rows = append(rows, []string{
			fmt.Sprintf("%d", f.Sequence),
			string(f.ApprovalLevel),
			fmt.Sprintf("%d", f.ApproverID),
			f.Status,
			yesNo(f.IsRequired),
			orDash(f.Notes),
		})
	}
	return renderTable([]string{"SEQ", "LEVEL", "APPROVER", "STATUS", "REQUIRED", "NOTES"}, rows)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
