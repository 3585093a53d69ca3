package attendance

import (
	"context"
	"time"
)

// zonedStore converts every timestamp read from the wrapped store into loc.
// Drivers hand TIMESTAMPTZ values back in the host zone, while day indexing
// depends on the calendar of the configured event timezone.
type zonedStore struct {
	Store
	loc *time.Location
}

func (z zonedStore) at(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.In(z.loc)
}

func (z zonedStore) atPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.In(z.loc)
	return &v
}

func (z zonedStore) event(e EventDetails) EventDetails {
	e.StartDate, e.EndDate = z.at(e.StartDate), z.at(e.EndDate)
	e.CreatedAt, e.UpdatedAt = z.at(e.CreatedAt), z.at(e.UpdatedAt)
	return e
}

func (z zonedStore) schedule(s EventSchedule) EventSchedule {
	s.EventDate = z.at(s.EventDate)
	s.AMStart, s.AMEnd = z.atPtr(s.AMStart), z.atPtr(s.AMEnd)
	s.PMStart, s.PMEnd = z.atPtr(s.PMStart), z.atPtr(s.PMEnd)
	s.CreatedAt, s.UpdatedAt = z.at(s.CreatedAt), z.at(s.UpdatedAt)
	return s
}

func (z zonedStore) record(r Record) Record {
	r.AMTimeIn, r.AMTimeOut = z.atPtr(r.AMTimeIn), z.atPtr(r.AMTimeOut)
	r.PMTimeIn, r.PMTimeOut = z.atPtr(r.PMTimeIn), z.atPtr(r.PMTimeOut)
	r.LatestTimeScanned = z.atPtr(r.LatestTimeScanned)
	r.CreatedAt, r.UpdatedAt = z.at(r.CreatedAt), z.at(r.UpdatedAt)
	return r
}

func (z zonedStore) CreateEvent(ctx context.Context, e EventDetails, schedules []EventSchedule) (EventDetails, []EventSchedule, error) {
	e, schedules, err := z.Store.CreateEvent(ctx, e, schedules)
	if err != nil {
		return e, schedules, err
	}
	for i := range schedules {
		schedules[i] = z.schedule(schedules[i])
	}
	return z.event(e), schedules, nil
}

func (z zonedStore) GetEvent(ctx context.Context, id string) (*EventDetails, error) {
	e, err := z.Store.GetEvent(ctx, id)
	if err != nil || e == nil {
		return e, err
	}
	local := z.event(*e)
	return &local, nil
}

func (z zonedStore) ListEvents(ctx context.Context) ([]EventDetails, error) {
	events, err := z.Store.ListEvents(ctx)
	for i := range events {
		events[i] = z.event(events[i])
	}
	return events, err
}

func (z zonedStore) FindSchedules(ctx context.Context, eventID string) ([]EventSchedule, error) {
	schedules, err := z.Store.FindSchedules(ctx, eventID)
	for i := range schedules {
		schedules[i] = z.schedule(schedules[i])
	}
	return schedules, err
}

func (z zonedStore) UpdateSchedule(ctx context.Context, s EventSchedule) (EventSchedule, error) {
	s, err := z.Store.UpdateSchedule(ctx, s)
	if err != nil {
		return s, err
	}
	return z.schedule(s), nil
}

func (z zonedStore) FindRecords(ctx context.Context, f RecordFilter) ([]Record, error) {
	records, err := z.Store.FindRecords(ctx, f)
	for i := range records {
		records[i] = z.record(records[i])
	}
	return records, err
}

func (z zonedStore) SaveRecord(ctx context.Context, r Record) (Record, error) {
	r, err := z.Store.SaveRecord(ctx, r)
	if err != nil {
		return r, err
	}
	return z.record(r), nil
}
