package attendance

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoParticipants      = errors.New("no participants found to generate attendance report")
	ErrEventNotFound       = errors.New("event not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrScheduleNotFound    = errors.New("schedule not found")
	ErrOutsideEvent        = errors.New("scan is outside the event dates")
	ErrAlreadyComplete     = errors.New("attendance for this period is already complete")
	ErrScanInProgress      = errors.New("scan already in progress")
	ErrInvalidDay          = errors.New("invalid event day")
	ErrValidation          = errors.New("validation failed")
)

// EventType enumerates the kinds of events organizers can create.
type EventType string

const (
	EventMeeting    EventType = "meeting"
	EventSeminar    EventType = "seminar"
	EventWorkshop   EventType = "workshop"
	EventConference EventType = "conference"
	EventWebinar    EventType = "webinar"
	EventOther      EventType = "other"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventMeeting, EventSeminar, EventWorkshop, EventConference, EventWebinar, EventOther:
		return true
	}
	return false
}

// EventDetails describes a single event.
type EventDetails struct {
	ID               string    `json:"id"`
	EventName        string    `json:"event_name"`
	Type             EventType `json:"type"`
	Location         string    `json:"location"`
	Description      *string   `json:"description,omitempty"`
	IsMultiDay       bool      `json:"is_multi_day"`
	DifferenceInDays int       `json:"difference_in_days"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	CreatedAt        time.Time `json:"created"`
	UpdatedAt        time.Time `json:"updated"`
}

// Participant is a registered attendee of an event.
type Participant struct {
	ID         string    `json:"id"`
	FirstName  string    `json:"first_name"`
	MiddleName *string   `json:"middle_name,omitempty"`
	LastName   string    `json:"last_name"`
	Email      *string   `json:"email,omitempty"`
	EventID    string    `json:"event_id"`
	CreatedAt  time.Time `json:"created"`
	UpdatedAt  time.Time `json:"updated"`
}

// FullName renders "First Middle Last" with empty parts skipped.
func (p Participant) FullName() string {
	parts := []string{strings.TrimSpace(p.FirstName)}
	if p.MiddleName != nil {
		parts = append(parts, strings.TrimSpace(*p.MiddleName))
	}
	parts = append(parts, strings.TrimSpace(p.LastName))
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// DisplayName renders "Last, First Middle" as used in report listings.
func (p Participant) DisplayName() string {
	name := p.LastName + ", " + p.FirstName
	if p.MiddleName != nil && *p.MiddleName != "" {
		name += " " + *p.MiddleName
	}
	return name
}

// EventSchedule holds the session boundaries for one day of an event.
type EventSchedule struct {
	ID        string     `json:"id"`
	EventID   string     `json:"event_id"`
	Day       int        `json:"day"`
	EventDate time.Time  `json:"event_date"`
	AMStart   *time.Time `json:"am_start,omitempty"`
	AMEnd     *time.Time `json:"am_end,omitempty"`
	PMStart   *time.Time `json:"pm_start,omitempty"`
	PMEnd     *time.Time `json:"pm_end,omitempty"`
	CreatedAt time.Time  `json:"created"`
	UpdatedAt time.Time  `json:"updated"`
}

// Checkpoint names one of the four scans of an event day.
type Checkpoint int

const (
	AMTimeIn Checkpoint = iota
	AMTimeOut
	PMTimeIn
	PMTimeOut
)

// Checkpoints lists every checkpoint in scan order.
var Checkpoints = [...]Checkpoint{AMTimeIn, AMTimeOut, PMTimeIn, PMTimeOut}

func (c Checkpoint) String() string {
	switch c {
	case AMTimeIn:
		return "am_time_in"
	case AMTimeOut:
		return "am_time_out"
	case PMTimeIn:
		return "pm_time_in"
	case PMTimeOut:
		return "pm_time_out"
	}
	return "unknown"
}

// Record is the per-participant, per-day attendance record.
type Record struct {
	ID                string     `json:"id"`
	ParticipantID     string     `json:"participant_id"`
	EventID           string     `json:"event_id"`
	Day               int        `json:"day"`
	AMTimeIn          *time.Time `json:"am_time_in,omitempty"`
	AMTimeOut         *time.Time `json:"am_time_out,omitempty"`
	PMTimeIn          *time.Time `json:"pm_time_in,omitempty"`
	PMTimeOut         *time.Time `json:"pm_time_out,omitempty"`
	LatestTimeScanned *time.Time `json:"latest_time_scanned,omitempty"`
	CreatedAt         time.Time  `json:"created"`
	UpdatedAt         time.Time  `json:"updated"`
}

// Checkpoint returns the timestamp stored for c, if any.
func (r *Record) Checkpoint(c Checkpoint) (time.Time, bool) {
	var v *time.Time
	switch c {
	case AMTimeIn:
		v = r.AMTimeIn
	case AMTimeOut:
		v = r.AMTimeOut
	case PMTimeIn:
		v = r.PMTimeIn
	case PMTimeOut:
		v = r.PMTimeOut
	}
	if v == nil {
		return time.Time{}, false
	}
	return *v, true
}

func (r *Record) setCheckpoint(c Checkpoint, at time.Time) {
	switch c {
	case AMTimeIn:
		r.AMTimeIn = &at
	case AMTimeOut:
		r.AMTimeOut = &at
	case PMTimeIn:
		r.PMTimeIn = &at
	case PMTimeOut:
		r.PMTimeOut = &at
	}
	r.LatestTimeScanned = &at
}

// HasAll reports whether all four checkpoints are present.
func (r *Record) HasAll() bool {
	for _, c := range Checkpoints {
		if _, ok := r.Checkpoint(c); !ok {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one checkpoint is present.
func (r *Record) HasAny() bool {
	for _, c := range Checkpoints {
		if _, ok := r.Checkpoint(c); ok {
			return true
		}
	}
	return false
}

// CheckedIn reports whether the participant checked in for either period.
func (r *Record) CheckedIn() bool {
	return r.AMTimeIn != nil || r.PMTimeIn != nil
}

// ParticipantAttendance is a record joined with its participant. It is never persisted.
type ParticipantAttendance struct {
	Record
	FirstName        string           `json:"first_name,omitempty"`
	MiddleName       *string          `json:"middle_name,omitempty"`
	LastName         string           `json:"last_name,omitempty"`
	Email            *string          `json:"email,omitempty"`
	Participant      *Participant     `json:"participant,omitempty"`
	AttendanceStatus AttendanceStatus `json:"attendance_status,omitempty"`
	LateAMTimeIn     *string          `json:"late_am_time_in_duration,omitempty"`
	LatePMTimeIn     *string          `json:"late_pm_time_in_duration,omitempty"`
}

// ParseDay normalizes a textual event day into its canonical integer form.
func ParseDay(s string) (int, error) {
	day, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || day < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDay, s)
	}
	return day, nil
}
