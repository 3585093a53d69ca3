package attendance

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Store is the persistence surface the service depends on. Both Repository and
// MemoryStore implement it.
type Store interface {
	ScheduleFinder
	RecordFinder
	ParticipantFinder

	CreateEvent(ctx context.Context, e EventDetails, schedules []EventSchedule) (EventDetails, []EventSchedule, error)
	GetEvent(ctx context.Context, id string) (*EventDetails, error)
	ListEvents(ctx context.Context) ([]EventDetails, error)
	DeleteEvent(ctx context.Context, id string) error
	UpdateSchedule(ctx context.Context, s EventSchedule) (EventSchedule, error)

	CreateParticipants(ctx context.Context, ps []Participant) ([]Participant, error)
	GetParticipant(ctx context.Context, id string) (*Participant, error)
	UpdateParticipant(ctx context.Context, p Participant) (Participant, error)
	DeleteParticipant(ctx context.Context, id string) error

	SaveRecord(ctx context.Context, r Record) (Record, error)
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*MemoryStore)(nil)
)

// Locker serializes scans of the same participant across API instances.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// SessionTimes are the default session boundaries, as clock offsets from midnight.
type SessionTimes struct {
	AMStart, AMEnd, PMStart, PMEnd time.Duration
}

// DefaultSessionTimes is 8:00 AM-12:00 PM and 1:00 PM-5:00 PM.
var DefaultSessionTimes = SessionTimes{
	AMStart: 8 * time.Hour,
	AMEnd:   12 * time.Hour,
	PMStart: 13 * time.Hour,
	PMEnd:   17 * time.Hour,
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLocker enables cross-instance scan locking.
func WithLocker(l Locker) Option { return func(s *Service) { s.locker = l } }

// WithSessionTimes changes the schedule defaults for new events.
func WithSessionTimes(t SessionTimes) Option { return func(s *Service) { s.sessions = t } }

// WithLocation sets the timezone event dates are interpreted in.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

// Service coordinates event setup, registration, scanning and reporting.
type Service struct {
	store       Store
	locker      Locker
	dedupWindow time.Duration
	sessions    SessionTimes
	loc         *time.Location
	now         func() time.Time
}

// NewService creates a service backed by a store.
func NewService(store Store, dedupWindow time.Duration, opts ...Option) *Service {
	if dedupWindow <= 0 {
		dedupWindow = time.Minute
	}
	s := &Service{
		store:       store,
		dedupWindow: dedupWindow,
		sessions:    DefaultSessionTimes,
		loc:         time.Local,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	s.store = zonedStore{Store: store, loc: s.loc}
	if s.locker == nil {
		s.locker = newLocalLocker(s.now)
	}
	return s
}

// Collections exposes the store's finders for the joiner.
func (s *Service) Collections() Collections {
	return Collections{Schedules: s.store, Records: s.store, Participants: s.store}
}

func invalid(field, msg string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, msg)
}

// EventInput carries the organizer-supplied event fields.
type EventInput struct {
	EventName   string    `json:"event_name" binding:"required"`
	Type        EventType `json:"type" binding:"required"`
	Location    string    `json:"location"`
	Description *string   `json:"description"`
	StartDate   time.Time `json:"start_date" binding:"required"`
	EndDate     time.Time `json:"end_date" binding:"required"`
}

// CreateEvent validates the input, spreads the dates over whole calendar days
// and creates one schedule row per day.
func (s *Service) CreateEvent(ctx context.Context, in EventInput) (EventDetails, []EventSchedule, error) {
	name := strings.TrimSpace(in.EventName)
	if name == "" {
		return EventDetails{}, nil, invalid("event_name", "is required")
	}
	if !in.Type.Valid() {
		return EventDetails{}, nil, invalid("type", fmt.Sprintf("%q is not a known event type", in.Type))
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return EventDetails{}, nil, invalid("start_date", "and end_date are required")
	}
	start := startOfDay(in.StartDate.In(s.loc))
	end := endOfDay(in.EndDate.In(s.loc))
	if end.Before(start) {
		return EventDetails{}, nil, invalid("end_date", "must not be before start_date")
	}

	info := EventDayInfo(start, end, start)
	event := EventDetails{
		EventName:        name,
		Type:             in.Type,
		Location:         strings.TrimSpace(in.Location),
		Description:      in.Description,
		IsMultiDay:       info.TotalDays > 1,
		DifferenceInDays: info.TotalDays - 1,
		StartDate:        start,
		EndDate:          end,
	}

	schedules := make([]EventSchedule, 0, info.TotalDays)
	for n := 1; n <= info.TotalDays; n++ {
		date := start.AddDate(0, 0, n-1)
		schedules = append(schedules, EventSchedule{
			Day:       n,
			EventDate: date,
			AMStart:   at(date, s.sessions.AMStart),
			AMEnd:     at(date, s.sessions.AMEnd),
			PMStart:   at(date, s.sessions.PMStart),
			PMEnd:     at(date, s.sessions.PMEnd),
		})
	}
	return s.store.CreateEvent(ctx, event, schedules)
}

func at(date time.Time, offset time.Duration) *time.Time {
	t := startOfDay(date).Add(offset)
	return &t
}

// GetEvent returns ErrEventNotFound for unknown ids.
func (s *Service) GetEvent(ctx context.Context, id string) (EventDetails, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return EventDetails{}, err
	}
	if e == nil {
		return EventDetails{}, ErrEventNotFound
	}
	return *e, nil
}

// ListEvents returns every event.
func (s *Service) ListEvents(ctx context.Context) ([]EventDetails, error) {
	return s.store.ListEvents(ctx)
}

// DeleteEvent removes an event along with its participants, schedules and records.
func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	return s.store.DeleteEvent(ctx, id)
}

// Schedules lists an event's day schedules.
func (s *Service) Schedules(ctx context.Context, eventID string) ([]EventSchedule, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.FindSchedules(ctx, eventID)
}

// ScheduleInput carries edited session boundaries for one day.
type ScheduleInput struct {
	AMStart *time.Time `json:"am_start"`
	AMEnd   *time.Time `json:"am_end"`
	PMStart *time.Time `json:"pm_start"`
	PMEnd   *time.Time `json:"pm_end"`
}

// UpdateSchedule edits one day's session times. Present boundaries must satisfy
// am_start < am_end <= pm_start < pm_end.
func (s *Service) UpdateSchedule(ctx context.Context, eventID string, day int, in ScheduleInput) (EventSchedule, error) {
	fields := [...]string{"am_start", "am_end", "pm_start", "pm_end"}
	prev := -1
	bounds := [...]*time.Time{in.AMStart, in.AMEnd, in.PMStart, in.PMEnd}
	for i, t := range bounds {
		if t == nil {
			continue
		}
		if prev >= 0 {
			p := *bounds[prev]
			// the lunch break may be empty, sessions may not
			touching := prev == 1 && i == 2
			if t.Before(p) || (t.Equal(p) && !touching) {
				return EventSchedule{}, invalid(fields[i], "is out of order")
			}
		}
		prev = i
	}
	return s.store.UpdateSchedule(ctx, EventSchedule{
		EventID: eventID,
		Day:     day,
		AMStart: in.AMStart,
		AMEnd:   in.AMEnd,
		PMStart: in.PMStart,
		PMEnd:   in.PMEnd,
	})
}

// ParticipantInput carries one registration.
type ParticipantInput struct {
	FirstName  string  `json:"first_name" binding:"required"`
	MiddleName *string `json:"middle_name"`
	LastName   string  `json:"last_name" binding:"required"`
	Email      *string `json:"email"`
}

var (
	namePattern  = regexp.MustCompile(`^[\p{L}\s'-]+$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

func (in ParticipantInput) normalize() (Participant, error) {
	p := Participant{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
	}
	for _, f := range []struct{ field, value string }{{"first_name", p.FirstName}, {"last_name", p.LastName}} {
		switch {
		case f.value == "":
			return Participant{}, invalid(f.field, "is required")
		case utf8.RuneCountInString(f.value) > 50:
			return Participant{}, invalid(f.field, "cannot exceed 50 characters")
		case !namePattern.MatchString(f.value):
			return Participant{}, invalid(f.field, "can only contain letters, spaces, hyphens, and apostrophes")
		}
	}
	if in.MiddleName != nil {
		if m := strings.TrimSpace(*in.MiddleName); m != "" {
			p.MiddleName = &m
		}
	}
	if in.Email != nil {
		if e := strings.ToLower(strings.TrimSpace(*in.Email)); e != "" {
			if utf8.RuneCountInString(e) > 254 || !emailPattern.MatchString(e) {
				return Participant{}, invalid("email", "is not a valid email address")
			}
			p.Email = &e
		}
	}
	return p, nil
}

// PossibleDuplicate flags a new registration whose name closely matches an
// existing participant.
type PossibleDuplicate struct {
	Participant Participant `json:"participant"`
	Existing    Participant `json:"existing"`
	Distance    int         `json:"distance"`
}

// RegisterResult is the outcome of a (bulk) registration.
type RegisterResult struct {
	Created    []Participant       `json:"created"`
	Duplicates []PossibleDuplicate `json:"possible_duplicates,omitempty"`
}

// duplicateDistance is the largest edit distance between normalized full names
// still reported as a possible duplicate.
const duplicateDistance = 2

// RegisterParticipants validates and creates participants for an event. All
// inputs must be valid or nothing is created.
func (s *Service) RegisterParticipants(ctx context.Context, eventID string, inputs []ParticipantInput) (RegisterResult, error) {
	if len(inputs) == 0 {
		return RegisterResult{}, invalid("participants", "must not be empty")
	}
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return RegisterResult{}, err
	}

	ps := make([]Participant, 0, len(inputs))
	for i, in := range inputs {
		p, err := in.normalize()
		if err != nil {
			return RegisterResult{}, fmt.Errorf("participant %d: %w", i+1, err)
		}
		p.EventID = eventID
		ps = append(ps, p)
	}

	roster, err := s.store.FindParticipants(ctx, ParticipantFilter{EventID: eventID})
	if err != nil {
		return RegisterResult{}, fmt.Errorf("load roster: %w", err)
	}

	created, err := s.store.CreateParticipants(ctx, ps)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("create participants: %w", err)
	}
	return RegisterResult{Created: created, Duplicates: findDuplicates(created, roster)}, nil
}

func matchKey(p Participant) string {
	return strings.ToLower(p.FullName())
}

func findDuplicates(created, roster []Participant) []PossibleDuplicate {
	var out []PossibleDuplicate
	for i, p := range created {
		// earlier rows of the same batch count as existing too
		candidates := append(roster[:len(roster):len(roster)], created[:i]...)
		for _, existing := range candidates {
			d := levenshtein.ComputeDistance(matchKey(p), matchKey(existing))
			if d <= duplicateDistance {
				out = append(out, PossibleDuplicate{Participant: p, Existing: existing, Distance: d})
				break
			}
		}
	}
	return out
}

// Participants returns the event roster sorted by last name.
func (s *Service) Participants(ctx context.Context, eventID string) ([]Participant, error) {
	ps, err := s.store.FindParticipants(ctx, ParticipantFilter{EventID: eventID})
	if err != nil {
		return nil, err
	}
	SortByLastName(ps)
	return ps, nil
}

// GetParticipant returns ErrParticipantNotFound for unknown ids.
func (s *Service) GetParticipant(ctx context.Context, id string) (Participant, error) {
	p, err := s.store.GetParticipant(ctx, id)
	if err != nil {
		return Participant{}, err
	}
	if p == nil {
		return Participant{}, ErrParticipantNotFound
	}
	return *p, nil
}

// UpdateParticipant corrects a participant's name and email.
func (s *Service) UpdateParticipant(ctx context.Context, id string, in ParticipantInput) (Participant, error) {
	p, err := in.normalize()
	if err != nil {
		return Participant{}, err
	}
	p.ID = id
	return s.store.UpdateParticipant(ctx, p)
}

// DeleteParticipant removes a participant and their attendance records.
func (s *Service) DeleteParticipant(ctx context.Context, id string) error {
	return s.store.DeleteParticipant(ctx, id)
}

// ScanResult reports what a scan changed.
type ScanResult struct {
	Record      Record      `json:"record"`
	Participant Participant `json:"participant"`
	Checkpoint  string      `json:"checkpoint,omitempty"`
	Day         int         `json:"day"`
	Period      Period      `json:"period"`
	Duplicate   bool        `json:"duplicate"`
	Late        *string     `json:"late_duration,omitempty"`
}

// Scan records a QR scan for the participant at the given moment. The first scan
// of a period checks in, the second checks out. Repeats within the dedup window
// leave the record unchanged.
func (s *Service) Scan(ctx context.Context, eventID, participantID string, when time.Time) (ScanResult, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return ScanResult{}, err
	}
	p, err := s.GetParticipant(ctx, participantID)
	if err != nil {
		return ScanResult{}, err
	}
	if p.EventID != eventID {
		return ScanResult{}, ErrParticipantNotFound
	}

	when = when.In(s.loc)
	info := EventDayInfo(event.StartDate, event.EndDate, when)
	if !info.IsWithinEventDates || !info.InRange() {
		return ScanResult{}, ErrOutsideEvent
	}

	if s.locker != nil {
		key := "scan:" + eventID + ":" + participantID
		ok, err := s.locker.Lock(ctx, key, 5*time.Second)
		if err != nil {
			return ScanResult{}, fmt.Errorf("scan lock: %w", err)
		}
		if !ok {
			return ScanResult{}, ErrScanInProgress
		}
		defer func() { _ = s.locker.Unlock(context.WithoutCancel(ctx), key) }()
	}

	n := info.CurrentDay
	existing, err := s.store.FindRecords(ctx, RecordFilter{EventID: eventID, ParticipantID: participantID, Day: &n})
	if err != nil {
		return ScanResult{}, fmt.Errorf("find record: %w", err)
	}
	rec := Record{ParticipantID: participantID, EventID: eventID, Day: n}
	if len(existing) > 0 {
		rec = existing[0]
	}
	res := ScanResult{Day: n, Period: info.Period, Participant: p}

	if rec.LatestTimeScanned != nil && when.Sub(*rec.LatestTimeScanned) < s.dedupWindow && when.Sub(*rec.LatestTimeScanned) >= 0 {
		res.Record, res.Duplicate = rec, true
		return res, nil
	}

	in, out := AMTimeIn, AMTimeOut
	if info.Period == PeriodPM {
		in, out = PMTimeIn, PMTimeOut
	}
	var cp Checkpoint
	switch {
	case !has(&rec, in):
		cp = in
	case !has(&rec, out):
		cp = out
	default:
		return ScanResult{}, ErrAlreadyComplete
	}
	rec.setCheckpoint(cp, when)

	saved, err := s.store.SaveRecord(ctx, rec)
	if err != nil {
		return ScanResult{}, fmt.Errorf("save record: %w", err)
	}
	res.Record, res.Checkpoint = saved, cp.String()

	if cp == AMTimeIn || cp == PMTimeIn {
		if late, err := s.lateness(ctx, eventID, n, cp, when); err == nil {
			res.Late = late
		}
	}
	return res, nil
}

func has(r *Record, c Checkpoint) bool {
	_, ok := r.Checkpoint(c)
	return ok
}

func (s *Service) lateness(ctx context.Context, eventID string, day int, cp Checkpoint, when time.Time) (*string, error) {
	schedules, err := s.store.FindSchedules(ctx, eventID)
	if err != nil {
		return nil, err
	}
	for _, sched := range schedules {
		if sched.Day != day {
			continue
		}
		if cp == AMTimeIn {
			return late(&when, sched.AMStart), nil
		}
		return late(&when, sched.PMStart), nil
	}
	return nil, nil
}

// Attendance returns the joined scan view for an event, optionally for one day.
func (s *Service) Attendance(ctx context.Context, eventID string, day *int) ([]ParticipantAttendance, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return PopulatedRecords(ctx, eventID, s.Collections(), day)
}

func (s *Service) reportInputs(ctx context.Context, eventID string) (EventDetails, []Participant, []Record, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return EventDetails{}, nil, nil, err
	}
	participants, err := s.store.FindParticipants(ctx, ParticipantFilter{EventID: eventID})
	if err != nil {
		return EventDetails{}, nil, nil, fmt.Errorf("find participants: %w", err)
	}
	records, err := s.store.FindRecords(ctx, RecordFilter{EventID: eventID})
	if err != nil {
		return EventDetails{}, nil, nil, fmt.Errorf("find records: %w", err)
	}
	return event, participants, records, nil
}

// EventReport aggregates attendance over every day of the event.
func (s *Service) EventReport(ctx context.Context, eventID string) (EventReport, error) {
	event, participants, records, err := s.reportInputs(ctx, eventID)
	if err != nil {
		return EventReport{}, err
	}
	return BuildEventReport(event, participants, records, s.now().In(s.loc))
}

// DailyReport reports one day. A nil day means the current event day, clamped
// to the event's range.
func (s *Service) DailyReport(ctx context.Context, eventID string, day *int) (DayReport, error) {
	event, participants, records, err := s.reportInputs(ctx, eventID)
	if err != nil {
		return DayReport{}, err
	}
	now := s.now().In(s.loc)
	n := 0
	if day != nil {
		n = *day
	} else {
		n = EventDayInfo(event.StartDate, event.EndDate, now).CurrentDay
		n = max(1, min(n, ReportDays(event.StartDate, event.EndDate)))
	}
	return BuildDailyReport(event, participants, records, n, now)
}

// Dashboard is a lightweight overview of an event's state.
type Dashboard struct {
	Event             EventDetails `json:"event"`
	Status            EventStatus  `json:"status"`
	DayInfo           DayInfo      `json:"day_info"`
	TotalParticipants int          `json:"total_participants"`
	ScannedToday      int          `json:"scanned_today"`
}

// Dashboard summarizes an event without materializing attendance records.
func (s *Service) Dashboard(ctx context.Context, eventID string) (Dashboard, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return Dashboard{}, err
	}
	now := s.now().In(s.loc)
	d := Dashboard{
		Event:   event,
		Status:  EventStatusAt(&event.StartDate, &event.EndDate, now),
		DayInfo: EventDayInfo(event.StartDate, event.EndDate, now),
	}
	ps, err := s.store.FindParticipants(ctx, ParticipantFilter{EventID: eventID})
	if err != nil {
		return Dashboard{}, err
	}
	d.TotalParticipants = len(ps)
	if d.DayInfo.InRange() {
		n := d.DayInfo.CurrentDay
		if d.ScannedToday, err = s.store.CountRecords(ctx, RecordFilter{EventID: eventID, Day: &n}); err != nil {
			return Dashboard{}, err
		}
	}
	return d, nil
}
