package attendance

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a map-backed Store for dev mode and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	events       map[string]EventDetails
	schedules    map[string]EventSchedule
	participants map[string]Participant
	records      map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:       make(map[string]EventDetails),
		schedules:    make(map[string]EventSchedule),
		participants: make(map[string]Participant),
		records:      make(map[string]Record),
	}
}

func stamp(id *string, created, updated *time.Time) {
	now := time.Now().UTC()
	if *id == "" {
		*id = uuid.NewString()
	}
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

func (m *MemoryStore) CreateEvent(_ context.Context, e EventDetails, schedules []EventSchedule) (EventDetails, []EventSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stamp(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	m.events[e.ID] = e
	out := make([]EventSchedule, 0, len(schedules))
	for _, s := range schedules {
		s.EventID = e.ID
		stamp(&s.ID, &s.CreatedAt, &s.UpdatedAt)
		m.schedules[s.ID] = s
		out = append(out, s)
	}
	return e, out, nil
}

func (m *MemoryStore) GetEvent(_ context.Context, id string) (*EventDetails, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *MemoryStore) ListEvents(_ context.Context) ([]EventDetails, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EventDetails, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b EventDetails) int { return b.StartDate.Compare(a.StartDate) })
	return out, nil
}

// DeleteEvent removes the event and everything that references it.
func (m *MemoryStore) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrEventNotFound
	}
	delete(m.events, id)
	for k, s := range m.schedules {
		if s.EventID == id {
			delete(m.schedules, k)
		}
	}
	for k, p := range m.participants {
		if p.EventID == id {
			delete(m.participants, k)
		}
	}
	for k, r := range m.records {
		if r.EventID == id {
			delete(m.records, k)
		}
	}
	return nil
}

func (m *MemoryStore) FindSchedules(_ context.Context, eventID string) ([]EventSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []EventSchedule
	for _, s := range m.schedules {
		if s.EventID == eventID {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b EventSchedule) int { return a.Day - b.Day })
	return out, nil
}

func (m *MemoryStore) UpdateSchedule(_ context.Context, s EventSchedule) (EventSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, cur := range m.schedules {
		if cur.EventID == s.EventID && cur.Day == s.Day {
			cur.AMStart, cur.AMEnd, cur.PMStart, cur.PMEnd = s.AMStart, s.AMEnd, s.PMStart, s.PMEnd
			cur.UpdatedAt = time.Now().UTC()
			m.schedules[k] = cur
			return cur, nil
		}
	}
	return EventSchedule{}, ErrScheduleNotFound
}

func (m *MemoryStore) CreateParticipants(_ context.Context, ps []Participant) ([]Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Participant, 0, len(ps))
	for _, p := range ps {
		stamp(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		m.participants[p.ID] = p
		out = append(out, p)
	}
	return out, nil
}

func (m *MemoryStore) GetParticipant(_ context.Context, id string) (*Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.participants[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryStore) UpdateParticipant(_ context.Context, p Participant) (Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.participants[p.ID]
	if !ok {
		return Participant{}, ErrParticipantNotFound
	}
	cur.FirstName, cur.MiddleName, cur.LastName, cur.Email = p.FirstName, p.MiddleName, p.LastName, p.Email
	cur.UpdatedAt = time.Now().UTC()
	m.participants[p.ID] = cur
	return cur, nil
}

// DeleteParticipant removes the participant and their attendance records.
func (m *MemoryStore) DeleteParticipant(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.participants[id]; !ok {
		return ErrParticipantNotFound
	}
	delete(m.participants, id)
	for k, r := range m.records {
		if r.ParticipantID == id {
			delete(m.records, k)
		}
	}
	return nil
}

func (m *MemoryStore) FindParticipants(_ context.Context, f ParticipantFilter) ([]Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Participant
	for _, p := range m.participants {
		if f.EventID != "" && p.EventID != f.EventID {
			continue
		}
		if f.IDs != nil && !slices.Contains(f.IDs, p.ID) {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Participant) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (m *MemoryStore) matchRecords(f RecordFilter) []Record {
	var out []Record
	for _, r := range m.records {
		if f.EventID != "" && r.EventID != f.EventID {
			continue
		}
		if f.ParticipantID != "" && r.ParticipantID != f.ParticipantID {
			continue
		}
		if f.Day != nil && r.Day != *f.Day {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Record) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (m *MemoryStore) FindRecords(_ context.Context, f RecordFilter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.matchRecords(f), nil
}

func (m *MemoryStore) CountRecords(_ context.Context, f RecordFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.matchRecords(f)), nil
}

// SaveRecord upserts r keyed by (participant, day), keeping at most one
// record per participant per day.
func (m *MemoryStore) SaveRecord(_ context.Context, r Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cur := range m.records {
		if cur.ParticipantID == r.ParticipantID && cur.Day == r.Day {
			r.ID, r.CreatedAt = id, cur.CreatedAt
			break
		}
	}
	stamp(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	m.records[r.ID] = r
	return r, nil
}
