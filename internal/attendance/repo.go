package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository persists events, schedules, participants and attendance in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const eventColumns = `id, event_name, type, location, description, is_multi_day, difference_in_days, start_date, end_date, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (EventDetails, error) {
	var e EventDetails
	err := row.Scan(&e.ID, &e.EventName, &e.Type, &e.Location, &e.Description, &e.IsMultiDay,
		&e.DifferenceInDays, &e.StartDate, &e.EndDate, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// CreateEvent inserts the event and its day schedules in one transaction.
func (r *Repository) CreateEvent(ctx context.Context, e EventDetails, schedules []EventSchedule) (EventDetails, []EventSchedule, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return EventDetails{}, nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	row := tx.QueryRowContext(ctx, `
		INSERT INTO events (id, event_name, type, location, description, is_multi_day, difference_in_days, start_date, end_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at
	`, e.ID, e.EventName, e.Type, e.Location, e.Description, e.IsMultiDay, e.DifferenceInDays, e.StartDate, e.EndDate)
	if err := row.Scan(&e.CreatedAt, &e.UpdatedAt); err != nil {
		return EventDetails{}, nil, fmt.Errorf("insert event: %w", err)
	}

	out := make([]EventSchedule, 0, len(schedules))
	for _, s := range schedules {
		s.EventID = e.ID
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		row := tx.QueryRowContext(ctx, `
			INSERT INTO event_schedules (id, event_id, day, event_date, am_start, am_end, pm_start, pm_end)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING created_at, updated_at
		`, s.ID, s.EventID, s.Day, s.EventDate, s.AMStart, s.AMEnd, s.PMStart, s.PMEnd)
		if err := row.Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
			return EventDetails{}, nil, fmt.Errorf("insert schedule day %d: %w", s.Day, err)
		}
		out = append(out, s)
	}
	if err := tx.Commit(); err != nil {
		return EventDetails{}, nil, fmt.Errorf("commit: %w", err)
	}
	return e, out, nil
}

// GetEvent returns nil when the event does not exist.
func (r *Repository) GetEvent(ctx context.Context, id string) (*EventDetails, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// ListEvents returns events, most recent start first.
func (r *Repository) ListEvents(ctx context.Context) ([]EventDetails, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY start_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []EventDetails
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// DeleteEvent removes an event; foreign keys cascade to its children.
func (r *Repository) DeleteEvent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return mustAffect(res, ErrEventNotFound)
}

func mustAffect(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// FindSchedules returns an event's schedules ordered by day.
func (r *Repository) FindSchedules(ctx context.Context, eventID string) ([]EventSchedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, day, event_date, am_start, am_end, pm_start, pm_end, created_at, updated_at
		FROM event_schedules WHERE event_id = $1 ORDER BY day
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []EventSchedule
	for rows.Next() {
		var s EventSchedule
		if err := rows.Scan(&s.ID, &s.EventID, &s.Day, &s.EventDate, &s.AMStart, &s.AMEnd, &s.PMStart, &s.PMEnd, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// UpdateSchedule rewrites the session boundaries of one event day.
func (r *Repository) UpdateSchedule(ctx context.Context, s EventSchedule) (EventSchedule, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE event_schedules
		SET am_start = $3, am_end = $4, pm_start = $5, pm_end = $6, updated_at = NOW()
		WHERE event_id = $1 AND day = $2
		RETURNING id, event_date, created_at, updated_at
	`, s.EventID, s.Day, s.AMStart, s.AMEnd, s.PMStart, s.PMEnd)
	if err := row.Scan(&s.ID, &s.EventDate, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EventSchedule{}, ErrScheduleNotFound
		}
		return EventSchedule{}, err
	}
	return s, nil
}

// CreateParticipants bulk-inserts participants in one transaction.
func (r *Repository) CreateParticipants(ctx context.Context, ps []Participant) ([]Participant, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]Participant, 0, len(ps))
	for _, p := range ps {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		row := tx.QueryRowContext(ctx, `
			INSERT INTO participants (id, first_name, middle_name, last_name, email, event_id)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING created_at, updated_at
		`, p.ID, p.FirstName, p.MiddleName, p.LastName, p.Email, p.EventID)
		if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("insert participant %s: %w", p.FullName(), err)
		}
		out = append(out, p)
	}
	return out, tx.Commit()
}

const participantColumns = `id, first_name, middle_name, last_name, email, event_id, created_at, updated_at`

func scanParticipant(row scanner) (Participant, error) {
	var p Participant
	err := row.Scan(&p.ID, &p.FirstName, &p.MiddleName, &p.LastName, &p.Email, &p.EventID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetParticipant returns nil when the participant does not exist.
func (r *Repository) GetParticipant(ctx context.Context, id string) (*Participant, error) {
	p, err := scanParticipant(r.db.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// UpdateParticipant corrects name and email fields.
func (r *Repository) UpdateParticipant(ctx context.Context, p Participant) (Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE participants
		SET first_name = $2, middle_name = $3, last_name = $4, email = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+participantColumns, p.ID, p.FirstName, p.MiddleName, p.LastName, p.Email)
	out, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Participant{}, ErrParticipantNotFound
		}
		return Participant{}, err
	}
	return out, nil
}

// DeleteParticipant removes a participant; their records cascade.
func (r *Repository) DeleteParticipant(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM participants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return mustAffect(res, ErrParticipantNotFound)
}

// FindParticipants applies the filter's equality and id-set constraints.
func (r *Repository) FindParticipants(ctx context.Context, f ParticipantFilter) ([]Participant, error) {
	if f.IDs != nil && len(f.IDs) == 0 {
		return nil, nil
	}
	var w where
	if f.EventID != "" {
		w.add("event_id = $%d", f.EventID)
	}
	if f.IDs != nil {
		w.add("id = ANY($%d)", f.IDs)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+participantColumns+` FROM participants`+w.sql()+` ORDER BY created_at`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

const recordColumns = `id, participant_id, event_id, day, am_time_in, am_time_out, pm_time_in, pm_time_out, latest_time_scanned, created_at, updated_at`

func recordWhere(f RecordFilter) where {
	var w where
	if f.EventID != "" {
		w.add("event_id = $%d", f.EventID)
	}
	if f.ParticipantID != "" {
		w.add("participant_id = $%d", f.ParticipantID)
	}
	if f.Day != nil {
		w.add("day = $%d", *f.Day)
	}
	return w
}

// FindRecords returns attendance records matching the filter.
func (r *Repository) FindRecords(ctx context.Context, f RecordFilter) ([]Record, error) {
	w := recordWhere(f)
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM attendance_records`+w.sql()+` ORDER BY created_at`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.ParticipantID, &rec.EventID, &rec.Day, &rec.AMTimeIn, &rec.AMTimeOut,
			&rec.PMTimeIn, &rec.PMTimeOut, &rec.LatestTimeScanned, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// CountRecords counts matching records without materializing them.
func (r *Repository) CountRecords(ctx context.Context, f RecordFilter) (int, error) {
	w := recordWhere(f)
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_records`+w.sql(), w.args...).Scan(&n)
	return n, err
}

// SaveRecord upserts an attendance record keyed by (participant_id, day).
func (r *Repository) SaveRecord(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, participant_id, event_id, day, am_time_in, am_time_out, pm_time_in, pm_time_out, latest_time_scanned)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (participant_id, day) DO UPDATE SET
			am_time_in = EXCLUDED.am_time_in,
			am_time_out = EXCLUDED.am_time_out,
			pm_time_in = EXCLUDED.pm_time_in,
			pm_time_out = EXCLUDED.pm_time_out,
			latest_time_scanned = EXCLUDED.latest_time_scanned,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, rec.ID, rec.ParticipantID, rec.EventID, rec.Day, rec.AMTimeIn, rec.AMTimeOut, rec.PMTimeIn, rec.PMTimeOut, rec.LatestTimeScanned)
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// where accumulates AND-ed clauses with positional arguments.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Ping verifies the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}
