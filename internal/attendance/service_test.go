package attendance

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func newTestService(t *testing.T, clock *fixedClock, opts ...Option) (*Service, EventDetails, []Participant) {
	t.Helper()
	opts = append([]Option{WithLocation(time.UTC), WithClock(clock.now)}, opts...)
	svc := NewService(NewMemoryStore(), time.Minute, opts...)
	ctx := context.Background()

	ev, schedules, err := svc.CreateEvent(ctx, EventInput{
		EventName: "Go Workshop",
		Type:      EventWorkshop,
		StartDate: date(2024, 1, 1, 9, 0),
		EndDate:   date(2024, 1, 2, 9, 0),
	})
	require.NoError(t, err)
	require.Len(t, schedules, 2)

	res, err := svc.RegisterParticipants(ctx, ev.ID, []ParticipantInput{
		{FirstName: "Ann", LastName: "Zhao"},
		{FirstName: "Bob", LastName: "Smith"},
		{FirstName: "Cid", LastName: "Jones"},
	})
	require.NoError(t, err)
	return svc, ev, res.Created
}

func TestCreateEventNormalizesDates(t *testing.T) {
	clock := &fixedClock{t: date(2024, 1, 1, 0, 0)}
	svc, ev, _ := newTestService(t, clock)

	assert.Equal(t, date(2024, 1, 1, 0, 0), ev.StartDate)
	assert.Equal(t, time.Date(2024, 1, 2, 23, 59, 59, int(999*time.Millisecond), time.UTC), ev.EndDate)
	assert.True(t, ev.IsMultiDay)
	assert.Equal(t, 1, ev.DifferenceInDays)
	assert.Equal(t, 2, ReportDays(ev.StartDate, ev.EndDate))

	schedules, err := svc.Schedules(context.Background(), ev.ID)
	require.NoError(t, err)
	require.Len(t, schedules, 2)
	assert.Equal(t, 2, schedules[1].Day)
	assert.Equal(t, date(2024, 1, 2, 8, 0), *schedules[1].AMStart)
	assert.Equal(t, date(2024, 1, 2, 17, 0), *schedules[1].PMEnd)
}

func TestCreateEventValidation(t *testing.T) {
	svc := NewService(NewMemoryStore(), 0, WithLocation(time.UTC))
	ctx := context.Background()
	start := date(2024, 1, 2, 0, 0)

	tests := []struct {
		name string
		in   EventInput
	}{
		{"missing name", EventInput{Type: EventMeeting, StartDate: start, EndDate: start}},
		{"unknown type", EventInput{EventName: "x", Type: "party", StartDate: start, EndDate: start}},
		{"missing dates", EventInput{EventName: "x", Type: EventMeeting}},
		{"end before start", EventInput{EventName: "x", Type: EventMeeting, StartDate: start, EndDate: start.AddDate(0, 0, -1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.CreateEvent(ctx, tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestScanSequence(t *testing.T) {
	clock := &fixedClock{}
	svc, ev, ps := newTestService(t, clock)
	ctx := context.Background()
	pid := ps[0].ID

	res, err := svc.Scan(ctx, ev.ID, pid, date(2024, 1, 1, 8, 5))
	require.NoError(t, err)
	assert.Equal(t, "am_time_in", res.Checkpoint)
	assert.Equal(t, 1, res.Day)
	assert.Equal(t, PeriodAM, res.Period)
	require.NotNil(t, res.Late)
	assert.Equal(t, "5 minutes", *res.Late)

	dup, err := svc.Scan(ctx, ev.ID, pid, date(2024, 1, 1, 8, 5).Add(30*time.Second))
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)
	assert.Empty(t, dup.Checkpoint)
	assert.Nil(t, dup.Record.AMTimeOut)

	res, err = svc.Scan(ctx, ev.ID, pid, date(2024, 1, 1, 11, 58))
	require.NoError(t, err)
	assert.Equal(t, "am_time_out", res.Checkpoint)
	assert.Nil(t, res.Late)

	_, err = svc.Scan(ctx, ev.ID, pid, date(2024, 1, 1, 11, 59))
	assert.ErrorIs(t, err, ErrAlreadyComplete)

	res, err = svc.Scan(ctx, ev.ID, pid, date(2024, 1, 1, 12, 55))
	require.NoError(t, err)
	assert.Equal(t, "pm_time_in", res.Checkpoint)
	assert.Nil(t, res.Late, "early arrival is not late")

	res, err = svc.Scan(ctx, ev.ID, pid, date(2024, 1, 1, 17, 0))
	require.NoError(t, err)
	assert.Equal(t, "pm_time_out", res.Checkpoint)
	assert.True(t, res.Record.HasAll())

	_, err = svc.Scan(ctx, ev.ID, pid, date(2024, 1, 1, 18, 0))
	assert.ErrorIs(t, err, ErrAlreadyComplete)

	records, err := svc.Attendance(ctx, ev.ID, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, date(2024, 1, 1, 17, 0), *records[0].LatestTimeScanned)
}

func TestScanCreatesOneRecordPerDay(t *testing.T) {
	svc, ev, ps := newTestService(t, &fixedClock{})
	ctx := context.Background()
	pid := ps[1].ID

	_, err := svc.Scan(ctx, ev.ID, pid, date(2024, 1, 1, 9, 0))
	require.NoError(t, err)
	res, err := svc.Scan(ctx, ev.ID, pid, date(2024, 1, 2, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Day)
	assert.Equal(t, "am_time_in", res.Checkpoint)

	records, err := svc.Attendance(ctx, ev.ID, nil)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestScanRejections(t *testing.T) {
	svc, ev, ps := newTestService(t, &fixedClock{})
	ctx := context.Background()

	_, err := svc.Scan(ctx, ev.ID, ps[0].ID, date(2024, 1, 3, 9, 0))
	assert.ErrorIs(t, err, ErrOutsideEvent)

	_, err = svc.Scan(ctx, ev.ID, ps[0].ID, date(2023, 12, 31, 9, 0))
	assert.ErrorIs(t, err, ErrOutsideEvent)

	_, err = svc.Scan(ctx, "missing", ps[0].ID, date(2024, 1, 1, 9, 0))
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = svc.Scan(ctx, ev.ID, "missing", date(2024, 1, 1, 9, 0))
	assert.ErrorIs(t, err, ErrParticipantNotFound)

	other, _, err := svc.CreateEvent(ctx, EventInput{
		EventName: "Other", Type: EventMeeting,
		StartDate: date(2024, 1, 1, 0, 0), EndDate: date(2024, 1, 1, 0, 0),
	})
	require.NoError(t, err)
	_, err = svc.Scan(ctx, other.ID, ps[0].ID, date(2024, 1, 1, 9, 0))
	assert.ErrorIs(t, err, ErrParticipantNotFound, "participant belongs to another event")
}

type busyLocker struct{ held map[string]bool }

func (l *busyLocker) Lock(_ context.Context, key string, _ time.Duration) (bool, error) {
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *busyLocker) Unlock(_ context.Context, key string) error {
	delete(l.held, key)
	return nil
}

func TestScanLock(t *testing.T) {
	locker := &busyLocker{held: map[string]bool{}}
	svc, ev, ps := newTestService(t, &fixedClock{}, WithLocker(locker))
	ctx := context.Background()

	_, err := svc.Scan(ctx, ev.ID, ps[0].ID, date(2024, 1, 1, 9, 0))
	require.NoError(t, err)
	assert.Empty(t, locker.held, "lock released after scan")

	locker.held["scan:"+ev.ID+":"+ps[0].ID] = true
	_, err = svc.Scan(ctx, ev.ID, ps[0].ID, date(2024, 1, 1, 11, 0))
	assert.ErrorIs(t, err, ErrScanInProgress)
}

func TestRegisterParticipants(t *testing.T) {
	svc, ev, _ := newTestService(t, &fixedClock{})
	ctx := context.Background()
	email := "  Dana.Cruz@Example.COM "

	res, err := svc.RegisterParticipants(ctx, ev.ID, []ParticipantInput{
		{FirstName: " Dana ", LastName: "Cruz", Email: &email},
		{FirstName: "Bobb", LastName: "Smith"},
	})
	require.NoError(t, err)
	require.Len(t, res.Created, 2)
	assert.Equal(t, "Dana", res.Created[0].FirstName)
	require.NotNil(t, res.Created[0].Email)
	assert.Equal(t, "dana.cruz@example.com", *res.Created[0].Email)

	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, "Bobb Smith", res.Duplicates[0].Participant.FullName())
	assert.Equal(t, "Bob Smith", res.Duplicates[0].Existing.FullName())
	assert.Equal(t, 1, res.Duplicates[0].Distance)

	roster, err := svc.Participants(ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, roster, 5)
	assert.Equal(t, "Cruz", roster[0].LastName)
}

func TestRegisterParticipantsValidation(t *testing.T) {
	svc, ev, _ := newTestService(t, &fixedClock{})
	ctx := context.Background()
	bad := "not-an-email"

	tests := []struct {
		name string
		in   ParticipantInput
	}{
		{"empty first name", ParticipantInput{FirstName: " ", LastName: "Cruz"}},
		{"digits in name", ParticipantInput{FirstName: "R2D2", LastName: "Cruz"}},
		{"long last name", ParticipantInput{FirstName: "Dana", LastName: string(make([]byte, 51))}},
		{"bad email", ParticipantInput{FirstName: "Dana", LastName: "Cruz", Email: &bad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RegisterParticipants(ctx, ev.ID, []ParticipantInput{{FirstName: "Ok", LastName: "Fine"}, tt.in})
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	roster, err := svc.Participants(ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, roster, 3, "failed batches create nothing")

	_, err = svc.RegisterParticipants(ctx, "missing", []ParticipantInput{{FirstName: "A", LastName: "B"}})
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestUpdateSchedule(t *testing.T) {
	svc, ev, _ := newTestService(t, &fixedClock{})
	ctx := context.Background()
	amStart := date(2024, 1, 1, 9, 30)
	amEnd := date(2024, 1, 1, 9, 0)

	_, err := svc.UpdateSchedule(ctx, ev.ID, 1, ScheduleInput{AMStart: &amStart, AMEnd: &amEnd})
	assert.ErrorIs(t, err, ErrValidation)

	amEnd = date(2024, 1, 1, 11, 30)
	s, err := svc.UpdateSchedule(ctx, ev.ID, 1, ScheduleInput{AMStart: &amStart, AMEnd: &amEnd})
	require.NoError(t, err)
	assert.Equal(t, amStart, *s.AMStart)

	_, err = svc.UpdateSchedule(ctx, ev.ID, 9, ScheduleInput{AMStart: &amStart})
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestUpdateScheduleSessionsMustHaveLength(t *testing.T) {
	svc, ev, _ := newTestService(t, &fixedClock{})
	ctx := context.Background()
	noon := date(2024, 1, 1, 12, 0)
	eight, five := date(2024, 1, 1, 8, 0), date(2024, 1, 1, 17, 0)

	_, err := svc.UpdateSchedule(ctx, ev.ID, 1, ScheduleInput{AMStart: &eight, AMEnd: &eight})
	assert.ErrorIs(t, err, ErrValidation, "empty morning session")

	_, err = svc.UpdateSchedule(ctx, ev.ID, 1, ScheduleInput{PMStart: &five, PMEnd: &five})
	assert.ErrorIs(t, err, ErrValidation, "empty afternoon session")

	s, err := svc.UpdateSchedule(ctx, ev.ID, 1, ScheduleInput{AMStart: &eight, AMEnd: &noon, PMStart: &noon, PMEnd: &five})
	require.NoError(t, err, "no lunch break is allowed")
	assert.Equal(t, noon, *s.PMStart)
}

func TestRegisterParticipantsCountsCharacters(t *testing.T) {
	svc, ev, _ := newTestService(t, &fixedClock{})
	ctx := context.Background()

	polish := strings.Repeat("Żółć", 6) + "Żó"
	require.Equal(t, 26, utf8.RuneCountInString(polish))
	require.Greater(t, len(polish), 50)

	res, err := svc.RegisterParticipants(ctx, ev.ID, []ParticipantInput{{FirstName: polish, LastName: "Nowak"}})
	require.NoError(t, err)
	assert.Equal(t, polish, res.Created[0].FirstName)

	_, err = svc.RegisterParticipants(ctx, ev.ID, []ParticipantInput{{FirstName: strings.Repeat("ż", 51), LastName: "Nowak"}})
	assert.ErrorIs(t, err, ErrValidation)
}

// hostZoneStore hands timestamps back in UTC, as the Postgres driver does on a
// UTC host regardless of the zone they were written in.
type hostZoneStore struct {
	*MemoryStore
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func (h hostZoneStore) GetEvent(ctx context.Context, id string) (*EventDetails, error) {
	e, err := h.MemoryStore.GetEvent(ctx, id)
	if e != nil {
		e.StartDate, e.EndDate = e.StartDate.UTC(), e.EndDate.UTC()
	}
	return e, err
}

func (h hostZoneStore) FindSchedules(ctx context.Context, eventID string) ([]EventSchedule, error) {
	out, err := h.MemoryStore.FindSchedules(ctx, eventID)
	for i := range out {
		out[i].EventDate = out[i].EventDate.UTC()
		out[i].AMStart, out[i].PMStart = utcPtr(out[i].AMStart), utcPtr(out[i].PMStart)
	}
	return out, err
}

func (h hostZoneStore) FindRecords(ctx context.Context, f RecordFilter) ([]Record, error) {
	out, err := h.MemoryStore.FindRecords(ctx, f)
	for i := range out {
		out[i].AMTimeIn, out[i].PMTimeIn = utcPtr(out[i].AMTimeIn), utcPtr(out[i].PMTimeIn)
		out[i].LatestTimeScanned = utcPtr(out[i].LatestTimeScanned)
	}
	return out, err
}

func TestEventDaysFollowConfiguredZone(t *testing.T) {
	manila := time.FixedZone("PHT", 8*60*60)
	at := func(d, h int) time.Time { return time.Date(2024, 1, d, h, 0, 0, 0, manila) }
	clock := &fixedClock{t: at(5, 12)}
	svc := NewService(hostZoneStore{NewMemoryStore()}, time.Minute, WithLocation(manila), WithClock(clock.now))
	ctx := context.Background()

	ev, _, err := svc.CreateEvent(ctx, EventInput{EventName: "Summit", Type: EventConference, StartDate: at(1, 0), EndDate: at(2, 0)})
	require.NoError(t, err)
	res, err := svc.RegisterParticipants(ctx, ev.ID, []ParticipantInput{{FirstName: "Ana", LastName: "Reyes"}})
	require.NoError(t, err)
	pid := res.Created[0].ID

	got, err := svc.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, manila, got.StartDate.Location())

	scan, err := svc.Scan(ctx, ev.ID, pid, at(1, 9))
	require.NoError(t, err)
	assert.Equal(t, 1, scan.Day)
	require.NotNil(t, scan.Late)
	assert.Equal(t, "1 hour", *scan.Late)

	scan, err = svc.Scan(ctx, ev.ID, pid, at(2, 20))
	require.NoError(t, err)
	assert.Equal(t, 2, scan.Day)
	assert.Equal(t, PeriodPM, scan.Period)

	_, err = svc.Scan(ctx, ev.ID, pid, at(3, 1))
	assert.ErrorIs(t, err, ErrOutsideEvent)

	rep, err := svc.EventReport(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, 2, rep.TotalDays)
	assert.Equal(t, 1, rep.Days[0].Summary.Present)
	assert.Equal(t, 1, rep.Days[1].Summary.Present)

	rows, err := svc.Attendance(ctx, ev.ID, nil)
	require.NoError(t, err)
	for _, r := range rows {
		assert.LessOrEqual(t, r.Day, 2)
	}
}

func TestConcurrentFirstScansKeepOneRecord(t *testing.T) {
	svc, ev, ps := newTestService(t, &fixedClock{t: date(2024, 1, 1, 9, 0)})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Scan(ctx, ev.ID, ps[0].ID, date(2024, 1, 1, 9, 0))
			if err != nil {
				assert.ErrorIs(t, err, ErrScanInProgress)
			}
		}()
	}
	wg.Wait()

	day := 1
	n, err := svc.store.CountRecords(ctx, RecordFilter{ParticipantID: ps[0].ID, Day: &day})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStoreOneRecordPerDay(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	in := date(2024, 1, 1, 9, 0)

	first, err := m.SaveRecord(ctx, Record{ParticipantID: "p", EventID: "e", Day: 1, AMTimeIn: &in})
	require.NoError(t, err)
	second, err := m.SaveRecord(ctx, Record{ParticipantID: "p", EventID: "e", Day: 1, AMTimeIn: &in, AMTimeOut: &in})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	records, err := m.FindRecords(ctx, RecordFilter{ParticipantID: "p"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotNil(t, records[0].AMTimeOut)

	_, err = m.SaveRecord(ctx, Record{ParticipantID: "p", EventID: "e", Day: 2})
	require.NoError(t, err)
	n, err := m.CountRecords(ctx, RecordFilter{ParticipantID: "p"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLocalLockerExpires(t *testing.T) {
	clock := &fixedClock{t: date(2024, 1, 1, 9, 0)}
	l := newLocalLocker(clock.now)
	ctx := context.Background()

	ok, _ := l.Lock(ctx, "k", 5*time.Second)
	assert.True(t, ok)
	ok, _ = l.Lock(ctx, "k", 5*time.Second)
	assert.False(t, ok)

	clock.t = clock.t.Add(6 * time.Second)
	ok, _ = l.Lock(ctx, "k", 5*time.Second)
	assert.True(t, ok, "expired")

	require.NoError(t, l.Unlock(ctx, "k"))
	ok, _ = l.Lock(ctx, "k", 5*time.Second)
	assert.True(t, ok)
}

func TestEventReportScenario(t *testing.T) {
	clock := &fixedClock{}
	svc, ev, ps := newTestService(t, clock)
	ctx := context.Background()

	byName := map[string]string{}
	for _, p := range ps {
		byName[p.LastName] = p.ID
	}
	for _, h := range []int{8, 11, 13, 17} {
		_, err := svc.Scan(ctx, ev.ID, byName["Zhao"], date(2024, 1, 1, h, 0))
		require.NoError(t, err)
	}
	_, err := svc.Scan(ctx, ev.ID, byName["Smith"], date(2024, 1, 1, 8, 0))
	require.NoError(t, err)

	clock.t = date(2024, 1, 5, 0, 0)
	rep, err := svc.EventReport(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.TotalDays)
	assert.Equal(t, 2, rep.Days[0].Summary.Present)
	assert.Equal(t, 1, rep.Days[0].Summary.Absent)

	names := []string{}
	for _, e := range rep.Days[0].Entries {
		names = append(names, e.Participant.LastName)
	}
	assert.Equal(t, []string{"Jones", "Smith", "Zhao"}, names)

	day := 1
	daily, err := svc.DailyReport(ctx, ev.ID, &day)
	require.NoError(t, err)
	assert.Equal(t, rep.Days[0].Summary, daily.Summary)

	// defaults to the last day once the event is over
	daily, err = svc.DailyReport(ctx, ev.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, daily.Summary.Day)
}

func TestEventReportWithoutParticipants(t *testing.T) {
	svc := NewService(NewMemoryStore(), time.Minute, WithLocation(time.UTC))
	ctx := context.Background()
	ev, _, err := svc.CreateEvent(ctx, EventInput{
		EventName: "Empty", Type: EventSeminar,
		StartDate: date(2024, 1, 1, 0, 0), EndDate: date(2024, 1, 1, 0, 0),
	})
	require.NoError(t, err)

	_, err = svc.EventReport(ctx, ev.ID)
	assert.ErrorIs(t, err, ErrNoParticipants)
	_, err = svc.DailyReport(ctx, ev.ID, nil)
	assert.ErrorIs(t, err, ErrNoParticipants)
}

func TestDashboard(t *testing.T) {
	clock := &fixedClock{t: date(2024, 1, 2, 10, 0)}
	svc, ev, ps := newTestService(t, clock)
	ctx := context.Background()

	_, err := svc.Scan(ctx, ev.ID, ps[0].ID, date(2024, 1, 2, 9, 0))
	require.NoError(t, err)

	d, err := svc.Dashboard(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOngoing, d.Status)
	assert.Equal(t, 2, d.DayInfo.CurrentDay)
	assert.Equal(t, 3, d.TotalParticipants)
	assert.Equal(t, 1, d.ScannedToday)
}

func TestDeleteEventCascades(t *testing.T) {
	svc, ev, ps := newTestService(t, &fixedClock{})
	ctx := context.Background()
	_, err := svc.Scan(ctx, ev.ID, ps[0].ID, date(2024, 1, 1, 9, 0))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteEvent(ctx, ev.ID))
	_, err = svc.GetEvent(ctx, ev.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)
	_, err = svc.GetParticipant(ctx, ps[0].ID)
	assert.ErrorIs(t, err, ErrParticipantNotFound)
}
