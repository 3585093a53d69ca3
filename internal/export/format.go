// Package export renders attendance reports and QR code sheets as PDF and
// XLSX documents.
package export

import (
	"fmt"
	"time"

	"evently/internal/attendance"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func clock(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.Format("3:04 PM")
}

func longDate(t time.Time) string {
	return t.Format("January 2, 2006")
}

func eventSubtitle(e attendance.EventDetails) string {
	loc := e.Location
	if loc == "" {
		loc = "N/A"
	}
	return fmt.Sprintf("%s - %s • %s", longDate(e.StartDate), longDate(e.EndDate), loc)
}

// statusLabel is the human text and RGB hex fill for one roster row.
func statusLabel(entry attendance.DayEntry, day attendance.DayStatus) (string, string) {
	switch day {
	case attendance.DayOngoing:
		return "Event is currently ongoing", "E6E6FA"
	case attendance.DayUpcoming:
		return "Event hasn't started yet", "F0F8FF"
	}
	switch entry.Status {
	case attendance.AttendanceAbsent:
		return "Absent", "FF6347"
	case attendance.AttendanceComplete:
		return "Complete Attendance", "90EE90"
	default:
		return "Incomplete Attendance", "FFD700"
	}
}

func checkpoints(r *attendance.Record) [4]string {
	if r == nil {
		return [4]string{"N/A", "N/A", "N/A", "N/A"}
	}
	return [4]string{clock(r.AMTimeIn), clock(r.AMTimeOut), clock(r.PMTimeIn), clock(r.PMTimeOut)}
}

// Filename builds a download name such as "Go_Workshop-full-report.pdf".
func Filename(eventName, kind, ext string) string {
	b := []rune(eventName)
	for i, r := range b {
		if !(r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			b[i] = '_'
		}
	}
	name := string(b)
	if name == "" {
		name = "event"
	}
	return name + "-" + kind + "." + ext
}
