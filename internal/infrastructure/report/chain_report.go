package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/approval"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

const (
	sheetSummary  = "Summary"
	sheetChain    = "Approval Chain"
	sheetBookings = "Bookings"
	timeLayout    = "2006-01-02 15:04"
)

var (
	chainHeader   = []interface{}{"Sequence", "Level", "Approver", "Email", "Status", "Required", "Can Approve", "Triggered By", "Acted At", "Notes"}
	bookingHeader = []interface{}{"Trip", "Origin", "Destination", "Departure", "Return", "Mode", "Estimated Cost", "Distance (km)", "Disposal"}
)

// ChainReport renders approval chains as xlsx workbooks
type ChainReport struct {
	logger *zap.Logger
}

var _ port.ChainExporter = (*ChainReport)(nil)

// NewChainReport creates a new chain report writer
func NewChainReport(logger *zap.Logger) *ChainReport {
	return &ChainReport{logger: logger}
}

// Save renders the workbook to path
func (r *ChainReport) Save(data port.ChainSnapshot, path string) error {
	f, err := r.build(data)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	r.logger.Info("Approval chain report written",
		zap.Int64("application_id", data.Application.ID),
		zap.String("path", path))
	return nil
}

// Write renders the workbook to w
func (r *ChainReport) Write(data port.ChainSnapshot, w io.Writer) error {
	f, err := r.build(data)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (r *ChainReport) build(data port.ChainSnapshot) (*excelize.File, error) {
	if data.Application == nil {
		return nil, fmt.Errorf("report requires an application")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{sheetChain, sheetBookings} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	steps := []func(*excelize.File, port.ChainSnapshot, int) error{
		r.fillSummary,
		r.fillChain,
		r.fillBookings,
	}
	for _, step := range steps {
		if err := step(f, data, bold); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func (r *ChainReport) fillSummary(f *excelize.File, data port.ChainSnapshot, bold int) error {
	app := data.Application
	rows := [][]interface{}{
		{"Application", app.ID},
		{"Purpose", app.Purpose},
		{"Status", app.Status},
		{"Estimated Total", app.EstimatedTotalCost.StringFixed(2)},
		{"Self Approved", app.SelfApproved},
	}
	if data.Requester != nil {
		rows = append(rows, []interface{}{"Requester", data.Requester.Name}, []interface{}{"Grade", data.Requester.Grade})
	}
	if app.SubmittedAt != nil {
		rows = append(rows, []interface{}{"Submitted At", app.SubmittedAt.Format(timeLayout)})
	}
	if res := data.Resolution; res != nil {
		rows = append(rows,
			[]interface{}{"Primary Mode", res.PrimaryMode},
			[]interface{}{"Manager", managerLabel(res.ManagerDecision)},
			[]interface{}{"Triggers", triggerLabel(res.Triggers)},
		)
		for _, note := range res.AdvanceBookingNotes {
			rows = append(rows, []interface{}{"Advance Booking", note})
		}
	}

	for i, row := range rows {
		if err := setRow(f, sheetSummary, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheetSummary, "A1", fmt.Sprintf("A%d", len(rows)), bold); err != nil {
		return fmt.Errorf("failed to style summary: %w", err)
	}
	return f.SetColWidth(sheetSummary, "A", "B", 24)
}

func (r *ChainReport) fillChain(f *excelize.File, data port.ChainSnapshot, bold int) error {
	if err := writeHeader(f, sheetChain, chainHeader, bold); err != nil {
		return err
	}

	row := 2
	if len(data.Flows) > 0 {
		for _, flow := range data.Flows {
			user := data.Users[flow.ApproverID]
			acted := ""
			if flow.ApprovedAt != nil {
				acted = flow.ApprovedAt.Format(timeLayout)
			}
			if err := setRow(f, sheetChain, row, []interface{}{
				flow.Sequence, flow.ApprovalLevel.String(), userName(user, flow.ApproverID), userEmail(user),
				flow.Status, flow.IsRequired, flow.CanApprove, flow.TriggeredByRule, acted, flow.Notes,
			}); err != nil {
				return err
			}
			row++
		}
		return nil
	}

	if data.Resolution == nil {
		return nil
	}
	for _, entry := range data.Resolution.Chain {
		if err := setRow(f, sheetChain, row, []interface{}{
			entry.Sequence, entry.Level.String(), userName(entry.User, 0), userEmail(entry.User),
			"proposed", entry.IsRequired, entry.CanApprove, entry.TriggeredByRule, "", "",
		}); err != nil {
			return err
		}
		row++
	}
	return nil
}

func (r *ChainReport) fillBookings(f *excelize.File, data port.ChainSnapshot, bold int) error {
	if err := writeHeader(f, sheetBookings, bookingHeader, bold); err != nil {
		return err
	}

	signals := approval.Aggregate(data.Application)
	byID := make(map[int64]approval.BookingSignal, len(signals))
	for _, s := range signals {
		byID[s.BookingID] = s
	}

	row := 2
	for i, trip := range data.Application.Trips {
		for _, b := range trip.Bookings {
			distance := ""
			disposal := false
			if s, ok := byID[b.ID]; ok {
				if s.DistanceKm != nil {
					distance = s.DistanceKm.String()
				}
				disposal = s.IsDisposal
			}
			if err := setRow(f, sheetBookings, row, []interface{}{
				i + 1, trip.Origin, trip.Destination, formatDate(trip.DepartureDate), formatDate(trip.ReturnDate),
				b.ModeName, b.EstimatedCost.StringFixed(2), distance, disposal,
			}); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, header []interface{}, bold int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func managerLabel(d approval.ManagerDecision) string {
	if d.Include {
		return "included"
	}
	return "omitted: " + d.Reason
}

func triggerLabel(t approval.Triggers) string {
	var fired []string
	for _, tr := range []approval.Trigger{t.FlightAmount, t.CarDistance, t.DisposalDuration} {
		if tr.Fired {
			fired = append(fired, tr.Rule)
		}
	}
	if len(fired) == 0 {
		return "none"
	}
	return strings.Join(fired, ", ")
}

func userName(u *entity.User, id int64) string {
	if u != nil {
		return u.Name
	}
	if id != 0 {
		return fmt.Sprintf("user #%d", id)
	}
	return ""
}

func userEmail(u *entity.User) string {
	if u == nil {
		return ""
	}
	return u.Email
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
