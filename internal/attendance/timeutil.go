package attendance

import (
	"fmt"
	"strings"
	"time"
)

// EventStatus is the coarse lifecycle state of an event.
type EventStatus string

const (
	StatusUpcoming EventStatus = "upcoming"
	StatusOngoing  EventStatus = "ongoing"
	StatusFinished EventStatus = "finished"
)

// Period is the half of the day a scan belongs to.
type Period string

const (
	PeriodAM Period = "AM"
	PeriodPM Period = "PM"
)

// DayInfo describes where a moment falls relative to an event's dates.
type DayInfo struct {
	CurrentDay         int    `json:"current_day"`
	TotalDays          int    `json:"total_days"`
	Period             Period `json:"period"`
	IsWithinEventDates bool   `json:"is_within_event_dates"`
	IsBeforeEvent      bool   `json:"is_before_event"`
	IsAfterEvent       bool   `json:"is_after_event"`
}

// InRange reports whether CurrentDay indexes an existing event day.
func (d DayInfo) InRange() bool {
	return d.CurrentDay >= 1 && d.CurrentDay <= d.TotalDays
}

// TimeDifference returns the minute-precision magnitude between a and b as
// "2 hours 30 minutes". The second result is false when the difference is zero.
func TimeDifference(a, b time.Time) (string, bool) {
	diff := a.Truncate(time.Minute).Sub(b.Truncate(time.Minute))
	if diff < 0 {
		diff = -diff
	}
	total := int(diff / time.Minute)
	if total == 0 {
		return "", false
	}
	return formatMinutes(total), true
}

// LateDuration is TimeDifference restricted to actual arriving after scheduled.
// Early or on-time arrivals report nothing.
func LateDuration(actual, scheduled time.Time) (string, bool) {
	if !actual.Truncate(time.Minute).After(scheduled.Truncate(time.Minute)) {
		return "", false
	}
	return TimeDifference(actual, scheduled)
}

func formatMinutes(total int) string {
	hours, minutes := total/60, total%60
	var parts []string
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// startOfDay returns midnight of t's calendar day in t's location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// calendarDays counts whole calendar days from a's date to b's date.
// Dates are compared in UTC so DST shifts never produce fractional days.
func calendarDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// EventDayInfo locates now within the inclusive [start, end] calendar range.
// CurrentDay may fall outside 1..TotalDays; callers must check InRange before
// using it as a schedule index.
// Calendar days and the period are taken in start's location.
func EventDayInfo(start, end, now time.Time) DayInfo {
	loc := start.Location()
	end, now = end.In(loc), now.In(loc)
	normalizedEnd := endOfDay(end)

	info := DayInfo{
		TotalDays:  calendarDays(startOfDay(start), normalizedEnd) + 1,
		CurrentDay: calendarDays(startOfDay(start), now) + 1,
		Period:     PeriodPM,
	}
	if now.Hour() < 12 {
		info.Period = PeriodAM
	}
	info.IsBeforeEvent = now.Before(start)
	info.IsAfterEvent = now.After(normalizedEnd)
	info.IsWithinEventDates = !info.IsBeforeEvent && !info.IsAfterEvent
	return info
}

// EventStatusAt classifies an event relative to now. Missing dates mean the
// event is not yet determined and count as upcoming.
func EventStatusAt(start, end *time.Time, now time.Time) EventStatus {
	if start != nil && end != nil && !now.Before(*start) && !now.After(*end) {
		return StatusOngoing
	}
	if end != nil && now.After(*end) {
		return StatusFinished
	}
	return StatusUpcoming
}

// CheckEventStatus is EventStatusAt evaluated at the current wall-clock time.
func CheckEventStatus(start, end *time.Time) EventStatus {
	return EventStatusAt(start, end, time.Now())
}
