package export

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"

	"evently/internal/attendance"
)

var dayColumnWidths = []float64{60, 25, 25, 25, 25, 36}

type document struct {
	*fpdf.Fpdf
	tr func(string) string
}

func newDocument(title string) *document {
	pdf := fpdf.New("P", "mm", "Legal", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("evently", true)
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AliasNbPages("")
	d := &document{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	return d
}

func (d *document) heading(text string, size float64) {
	d.SetFont("Helvetica", "B", size)
	d.SetTextColor(51, 51, 51)
	d.CellFormat(0, size/2+2, d.tr(text), "", 1, "C", false, 0, "")
}

func (d *document) line(label string, value any) {
	d.SetFont("Helvetica", "B", 10)
	d.CellFormat(50, 6, d.tr(label), "", 0, "L", false, 0, "")
	d.SetFont("Helvetica", "", 10)
	d.CellFormat(0, 6, d.tr(fmt.Sprint(value)), "", 1, "L", false, 0, "")
}

func (d *document) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func rgb(hex string) (int, int, int) {
	v, _ := strconv.ParseUint(hex, 16, 32)
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}

func (d *document) dayTable(day attendance.DayReport) {
	d.SetFont("Helvetica", "B", 9)
	d.SetFillColor(211, 211, 211)
	for i, h := range dayHeaders {
		d.CellFormat(dayColumnWidths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	d.Ln(-1)

	d.SetFont("Helvetica", "", 9)
	for _, entry := range day.Entries {
		cps := checkpoints(entry.Record)
		text, color := statusLabel(entry, day.Summary.Status)
		d.CellFormat(dayColumnWidths[0], 6, d.tr(entry.Participant.DisplayName()), "1", 0, "L", false, 0, "")
		for i, v := range cps {
			d.CellFormat(dayColumnWidths[i+1], 6, v, "1", 0, "C", false, 0, "")
		}
		d.SetFillColor(rgb(color))
		d.CellFormat(dayColumnWidths[5], 6, d.tr(text), "1", 1, "C", true, 0, "")
	}
	d.Ln(4)
}

func (d *document) daySummary(s attendance.DaySummary) {
	d.line("Total Participants:", s.TotalParticipants)
	if s.Status == attendance.DayCompleted {
		d.line("Present:", s.Present)
		d.line("Absent:", s.Absent)
		return
	}
	d.line("Checked In:", s.CheckedIn)
	d.line("Status:", string(s.Status))
}

// DailyReportPDF renders one day's roster and summary.
func DailyReportPDF(ev attendance.EventDetails, day attendance.DayReport) ([]byte, error) {
	d := newDocument(ev.EventName + " - Daily Attendance Report")
	d.heading(ev.EventName, 16)
	d.heading(eventSubtitle(ev), 11)
	d.heading(fmt.Sprintf("Day %d - %s", day.Summary.Day, longDate(day.Summary.Date)), 12)
	d.Ln(4)
	d.dayTable(day)
	d.heading("Daily Summary", 12)
	d.daySummary(day.Summary)
	return d.bytes()
}

// FullReportPDF renders the event summary followed by every day.
func FullReportPDF(rep attendance.EventReport) ([]byte, error) {
	ev := rep.Event
	d := newDocument(ev.EventName + " - Full Attendance Report")
	d.heading(ev.EventName, 16)
	d.heading(eventSubtitle(ev), 11)
	d.Ln(2)
	d.heading("Overall Event Attendance Summary", 12)
	d.line("Total Days:", rep.TotalDays)
	d.line("Total Participants:", rep.TotalParticipants)
	d.line("Average Daily Attendance:", rep.RateText())
	d.Ln(4)

	for _, day := range rep.Days {
		d.heading(fmt.Sprintf("Day %d - %s", day.Summary.Day, longDate(day.Summary.Date)), 12)
		d.dayTable(day)
		d.daySummary(day.Summary)
		d.Ln(6)
	}
	return d.bytes()
}

// QRCell is one participant tile of a QR sheet.
type QRCell struct {
	Name string
	PNG  []byte
}

// qrColumns keeps small sheets compact and caps wide ones at four.
func qrColumns(n int) int {
	switch {
	case n <= 4:
		return max(n, 1)
	case n <= 8:
		return min(4, (n+1)/2)
	default:
		return 4
	}
}

// QRSheetPDF lays out printable participant QR codes in a grid.
func QRSheetPDF(ev attendance.EventDetails, cells []QRCell) ([]byte, error) {
	if len(cells) == 0 {
		return nil, attendance.ErrNoParticipants
	}
	d := newDocument(ev.EventName + " - QR Codes")
	loc := ev.Location
	if loc == "" {
		loc = "N/A"
	}
	d.heading(ev.EventName, 16)
	d.heading("Location: "+loc, 11)
	d.heading("Participants QR Codes", 12)
	d.Ln(4)

	cols := qrColumns(len(cells))
	left, _, right, _ := d.GetMargins()
	pageW, _ := d.GetPageSize()
	cellW := (pageW - left - right) / float64(cols)
	const imgSize, nameH, cellH = 40.0, 6.0, 52.0
	_, pageH := d.GetPageSize()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	for i, c := range cells {
		col := i % cols
		if col == 0 && i > 0 {
			d.SetY(d.GetY() + cellH)
		}
		if col == 0 && d.GetY()+cellH > pageH-18 {
			d.AddPage()
		}
		x := left + float64(col)*cellW
		y := d.GetY()
		name := fmt.Sprintf("qr-%d", i)
		d.RegisterImageOptionsReader(name, opts, bytes.NewReader(c.PNG))
		d.ImageOptions(name, x+(cellW-imgSize)/2, y, imgSize, imgSize, false, opts, 0, "")
		d.SetXY(x, y+imgSize+1)
		d.SetFont("Helvetica", "B", 10)
		d.SetTextColor(0, 122, 204)
		d.CellFormat(cellW, nameH, d.tr(c.Name), "", 0, "C", false, 0, "")
		d.SetXY(left, y)
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("qr sheet: %w", err)
	}
	return d.bytes()
}
