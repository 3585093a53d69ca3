package attendance

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"
)

// RecordFilter constrains attendance record lookups. Zero fields are unconstrained.
type RecordFilter struct {
	EventID       string
	ParticipantID string
	Day           *int
}

// ParticipantFilter constrains participant lookups. A non-nil IDs restricts the
// result to that set, even when empty.
type ParticipantFilter struct {
	EventID string
	IDs     []string
}

// ScheduleFinder reads event schedules.
type ScheduleFinder interface {
	FindSchedules(ctx context.Context, eventID string) ([]EventSchedule, error)
}

// RecordFinder reads attendance records.
type RecordFinder interface {
	FindRecords(ctx context.Context, f RecordFilter) ([]Record, error)
	CountRecords(ctx context.Context, f RecordFilter) (int, error)
}

// ParticipantFinder reads participants.
type ParticipantFinder interface {
	FindParticipants(ctx context.Context, f ParticipantFilter) ([]Participant, error)
}

// Collections bundles the read capabilities the joiner needs.
type Collections struct {
	Schedules    ScheduleFinder
	Records      RecordFinder
	Participants ParticipantFinder
}

// PopulatedRecords joins the event's attendance records with their participants
// and matching day schedule, computing AM/PM lateness. When day is set only that
// day's records are returned. Participants without a record are not included.
// Results are ordered by most recent scan first; records never scanned go last.
func PopulatedRecords(ctx context.Context, eventID string, c Collections, day *int) ([]ParticipantAttendance, error) {
	schedules, err := c.Schedules.FindSchedules(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("find schedules: %w", err)
	}

	records, err := c.Records.FindRecords(ctx, RecordFilter{EventID: eventID, Day: day})
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}

	ids := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, ok := seen[r.ParticipantID]; ok {
			continue
		}
		seen[r.ParticipantID] = struct{}{}
		ids = append(ids, r.ParticipantID)
	}

	participants, err := c.Participants.FindParticipants(ctx, ParticipantFilter{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("find participants: %w", err)
	}
	byID := make(map[string]Participant, len(participants))
	for _, p := range participants {
		byID[p.ID] = p
	}
	byDay := make(map[int]EventSchedule, len(schedules))
	for _, s := range schedules {
		byDay[s.Day] = s
	}

	out := make([]ParticipantAttendance, 0, len(records))
	for _, r := range records {
		pa := ParticipantAttendance{Record: r}
		if p, ok := byID[r.ParticipantID]; ok {
			p := p
			pa.Participant = &p
			pa.FirstName = p.FirstName
			pa.MiddleName = p.MiddleName
			pa.LastName = p.LastName
			pa.Email = p.Email
		}
		if sched, ok := byDay[r.Day]; ok {
			pa.LateAMTimeIn = late(r.AMTimeIn, sched.AMStart)
			pa.LatePMTimeIn = late(r.PMTimeIn, sched.PMStart)
		}
		out = append(out, pa)
	}

	slices.SortStableFunc(out, func(a, b ParticipantAttendance) int {
		return cmp.Compare(scannedAt(b.LatestTimeScanned), scannedAt(a.LatestTimeScanned))
	})
	return out, nil
}

func late(actual, scheduled *time.Time) *string {
	if actual == nil || scheduled == nil {
		return nil
	}
	d, ok := LateDuration(*actual, *scheduled)
	if !ok {
		return nil
	}
	return &d
}

func scannedAt(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}
