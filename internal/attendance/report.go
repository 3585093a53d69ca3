package attendance

import (
	"math"
	"slices"
	"strconv"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// AttendanceStatus classifies a participant's attendance for one day.
type AttendanceStatus string

const (
	AttendanceComplete   AttendanceStatus = "complete"
	AttendanceIncomplete AttendanceStatus = "incomplete"
	AttendanceAbsent     AttendanceStatus = "absent"
)

// DayStatus is the lifecycle of a single event day.
type DayStatus string

const (
	DayUpcoming  DayStatus = "upcoming"
	DayOngoing   DayStatus = "ongoing"
	DayCompleted DayStatus = "completed"
)

const dayLength = 24 * time.Hour

// DayEntry is one participant's line in a day report.
type DayEntry struct {
	Participant Participant      `json:"participant"`
	Record      *Record          `json:"record,omitempty"`
	Status      AttendanceStatus `json:"attendance_status"`
}

// DaySummary carries present/absent counts for completed days and checked-in
// counts for days that have not concluded.
type DaySummary struct {
	Day               int       `json:"day"`
	Date              time.Time `json:"date"`
	Status            DayStatus `json:"status"`
	TotalParticipants int       `json:"total_participants"`
	Present           int       `json:"present"`
	Absent            int       `json:"absent"`
	CheckedIn         int       `json:"checked_in"`
}

// Attended is the count contributing to the event average: present for
// completed days, checked in otherwise.
func (s DaySummary) Attended() int {
	if s.Status == DayCompleted {
		return s.Present
	}
	return s.CheckedIn
}

// DayReport is the roster of one event day with its summary.
type DayReport struct {
	Summary DaySummary `json:"summary"`
	Entries []DayEntry `json:"entries"`
}

// EventReport aggregates every day of an event.
type EventReport struct {
	Event             EventDetails `json:"event"`
	TotalDays         int          `json:"total_days"`
	TotalParticipants int          `json:"total_participants"`
	AverageAttendance int          `json:"average_attendance"`
	AttendanceRate    float64      `json:"attendance_rate"`
	Days              []DayReport  `json:"days"`
	GeneratedAt       time.Time    `json:"generated_at"`
}

// RateText renders the attendance rate with one decimal place.
func (r EventReport) RateText() string {
	return strconv.FormatFloat(r.AttendanceRate, 'f', 1, 64) + "%"
}

// ReportDays is the number of days covered by a report: the span rounded up to
// whole days, never less than one. The span is measured in wall-clock time of
// start's location so DST transitions do not add or remove a day.
func ReportDays(start, end time.Time) int {
	span := wallClock(end.In(start.Location())).Sub(wallClock(start))
	n := int(math.Ceil(float64(span) / float64(dayLength)))
	if n < 1 {
		return 1
	}
	return n
}

func wallClock(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// DayDate returns the calendar date of the given 1-based event day.
func DayDate(start time.Time, n int) time.Time {
	return start.AddDate(0, 0, n-1)
}

// DayStatusAt classifies an event day relative to now.
func DayStatusAt(dayDate, now time.Time) DayStatus {
	switch {
	case now.Before(dayDate):
		return DayUpcoming
	case sameDay(now, dayDate.In(now.Location())):
		return DayOngoing
	default:
		return DayCompleted
	}
}

// ClassifyAttendance derives the attendance status of a possibly missing record.
// Only checkpoint presence matters, never the timestamp values.
func ClassifyAttendance(rec *Record, status DayStatus) AttendanceStatus {
	switch {
	case rec == nil:
		return AttendanceAbsent
	case rec.HasAll():
		return AttendanceComplete
	case status == DayCompleted && !rec.HasAny():
		return AttendanceAbsent
	default:
		return AttendanceIncomplete
	}
}

// AttendanceRate is average/total as a percentage rounded to one decimal.
// It is zero when there are no participants.
func AttendanceRate(average, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(average)/float64(total)*1000) / 10
}

// SortByLastName orders participants by last name, then first name, using
// locale-aware collation. The input slice is sorted in place.
func SortByLastName(ps []Participant) {
	c := collate.New(language.Und, collate.IgnoreCase)
	slices.SortStableFunc(ps, func(a, b Participant) int {
		if n := c.CompareString(a.LastName, b.LastName); n != 0 {
			return n
		}
		return c.CompareString(a.FirstName, b.FirstName)
	})
}

// BuildDayReport classifies every participant for one day. Records belonging to
// other days or events are ignored.
func BuildDayReport(event EventDetails, participants []Participant, records []Record, n int, now time.Time) DayReport {
	date := DayDate(event.StartDate, n)
	status := DayStatusAt(date, now)

	byParticipant := make(map[string]*Record)
	for i := range records {
		r := &records[i]
		if r.Day == n && (r.EventID == "" || r.EventID == event.ID) {
			byParticipant[r.ParticipantID] = r
		}
	}

	roster := slices.Clone(participants)
	SortByLastName(roster)

	rep := DayReport{
		Summary: DaySummary{
			Day:               n,
			Date:              date,
			Status:            status,
			TotalParticipants: len(roster),
		},
		Entries: make([]DayEntry, 0, len(roster)),
	}
	for _, p := range roster {
		rec := byParticipant[p.ID]
		entry := DayEntry{Participant: p, Status: ClassifyAttendance(rec, status)}
		if rec != nil {
			cp := *rec
			entry.Record = &cp
		}
		rep.Entries = append(rep.Entries, entry)

		if status == DayCompleted {
			if entry.Status != AttendanceAbsent {
				rep.Summary.Present++
			}
		} else if rec != nil && rec.CheckedIn() {
			rep.Summary.CheckedIn++
		}
	}
	if status == DayCompleted {
		rep.Summary.Absent = rep.Summary.TotalParticipants - rep.Summary.Present
	}
	return rep
}

// BuildEventReport aggregates all days of the event. It fails only when the
// roster is empty.
func BuildEventReport(event EventDetails, participants []Participant, records []Record, now time.Time) (EventReport, error) {
	if len(participants) == 0 {
		return EventReport{}, ErrNoParticipants
	}
	total := ReportDays(event.StartDate, event.EndDate)
	rep := EventReport{
		Event:             event,
		TotalDays:         total,
		TotalParticipants: len(participants),
		Days:              make([]DayReport, 0, total),
		GeneratedAt:       now,
	}
	sum := 0
	for n := 1; n <= total; n++ {
		d := BuildDayReport(event, participants, records, n, now)
		sum += d.Summary.Attended()
		rep.Days = append(rep.Days, d)
	}
	rep.AverageAttendance = int(math.Round(float64(sum) / float64(total)))
	rep.AttendanceRate = AttendanceRate(rep.AverageAttendance, rep.TotalParticipants)
	return rep, nil
}

// BuildDailyReport reports a single day, which must lie within the event.
func BuildDailyReport(event EventDetails, participants []Participant, records []Record, n int, now time.Time) (DayReport, error) {
	if len(participants) == 0 {
		return DayReport{}, ErrNoParticipants
	}
	if n < 1 || n > ReportDays(event.StartDate, event.EndDate) {
		return DayReport{}, ErrInvalidDay
	}
	return BuildDayReport(event, participants, records, n, now), nil
}
