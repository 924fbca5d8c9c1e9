package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	sqlStateExclusionViolation = "23P01"
	sqlStateUniqueViolation    = "23505"
)

type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresLedger stores appointments in Postgres. Double booking is refused
// by the appointments_no_overlap exclusion constraint, so the conflict check
// happens at commit time inside the database.
type PostgresLedger struct {
	db  pgxDB
	loc *time.Location
}

// NewPostgresLedger creates a ledger backed by a pgx pool. loc is the clinic
// timezone calendar dates are read back in.
func NewPostgresLedger(pool *pgxpool.Pool, loc *time.Location) *PostgresLedger {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return newPostgresLedgerWithDB(pool, loc)
}

func newPostgresLedgerWithDB(db pgxDB, loc *time.Location) *PostgresLedger {
	if loc == nil {
		loc = time.UTC
	}
	return &PostgresLedger{db: db, loc: loc}
}

const appointmentColumns = `id, patient_id, provider_id, date, start_time, end_time, status, title, description,
	symptoms_type, symptoms, symptoms_duration, symptoms_length, symptoms_severity,
	additional_images, created_at, updated_at`

func (l *PostgresLedger) Insert(ctx context.Context, a *Appointment) error {
	var typ, desc, dur, length, sev *string
	if a.Symptoms != nil {
		typ, desc, dur, length, sev = &a.Symptoms.Type, &a.Symptoms.Description, &a.Symptoms.Duration, &a.Symptoms.Length, &a.Symptoms.Severity
	}
	images := a.AdditionalImages
	if images == nil {
		images = []string{}
	}
	_, err := l.db.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		a.ID, a.PatientID, a.ProviderID, a.Date.Format(time.DateOnly), a.StartTime, a.EndTime, string(a.Status),
		a.Title, a.Description, typ, desc, dur, length, sev, images, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return mapWriteError("insert", err)
	}
	return nil
}

func (l *PostgresLedger) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := l.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	appt, err := l.scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: get: %w: %w", ErrStorage, err)
	}
	return appt, nil
}

func (l *PostgresLedger) Move(ctx context.Context, id uuid.UUID, date, start, end time.Time, description string) (*Appointment, error) {
	row := l.db.QueryRow(ctx, `
		UPDATE appointments
		SET date = $2, start_time = $3, end_time = $4, description = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, date.Format(time.DateOnly), start, end, description)
	appt, err := l.scan(row)
	if err != nil {
		return nil, mapWriteError("move", err)
	}
	return appt, nil
}

func (l *PostgresLedger) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	row := l.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, string(status))
	appt, err := l.scan(row)
	if err != nil {
		return nil, mapWriteError("set status", err)
	}
	return appt, nil
}

func (l *PostgresLedger) ListActiveForProviderOn(ctx context.Context, providerID uuid.UUID, day time.Time) ([]Appointment, error) {
	rows, err := l.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1 AND date = $2 AND status <> 'CANCELLED'
		ORDER BY start_time`,
		providerID, day.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("appointments: list for provider: %w: %w", ErrStorage, err)
	}
	return l.collect(rows)
}

func (l *PostgresLedger) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	where, args, err := partyClause(filter)
	if err != nil {
		return nil, err
	}
	order := "start_time DESC"
	switch filter.Scope {
	case ScopeUpcoming:
		args = append(args, filter.Today.Format(time.DateOnly))
		where += fmt.Sprintf(" AND date >= $%d AND status IN ('PENDING', 'UPCOMING')", len(args))
		order = "start_time ASC"
	case ScopePast:
		args = append(args, filter.Today.Format(time.DateOnly))
		where += fmt.Sprintf(" AND date < $%d", len(args))
	case ScopeCompleted:
		where += " AND status = 'COMPLETED'"
	}
	rows, err := l.db.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE `+where+` ORDER BY `+order, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w: %w", ErrStorage, err)
	}
	return l.collect(rows)
}

func (l *PostgresLedger) Count(ctx context.Context, filter ListFilter) (Counts, error) {
	where, args, err := partyClause(filter)
	if err != nil {
		return Counts{}, err
	}
	rows, err := l.db.Query(ctx, `SELECT status, count(*) FROM appointments WHERE `+where+` GROUP BY status`, args...)
	if err != nil {
		return Counts{}, fmt.Errorf("appointments: count: %w: %w", ErrStorage, err)
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, fmt.Errorf("appointments: scan count: %w: %w", ErrStorage, err)
		}
		c.add(Status(status), int(n))
	}
	if err := rows.Err(); err != nil {
		return Counts{}, fmt.Errorf("appointments: count: %w: %w", ErrStorage, err)
	}
	return c, nil
}

func (l *PostgresLedger) CompleteEndedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := l.db.Exec(ctx, `
		UPDATE appointments
		SET status = 'COMPLETED', updated_at = now()
		WHERE status IN ('PENDING', 'UPCOMING') AND end_time <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("appointments: complete ended: %w: %w", ErrStorage, err)
	}
	return int(tag.RowsAffected()), nil
}

func partyClause(filter ListFilter) (string, []any, error) {
	var (
		conds []string
		args  []any
	)
	if filter.PatientID != uuid.Nil {
		args = append(args, filter.PatientID)
		conds = append(conds, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if filter.ProviderID != uuid.Nil {
		args = append(args, filter.ProviderID)
		conds = append(conds, fmt.Sprintf("provider_id = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil, fmt.Errorf("%w: patient or provider id required", ErrInvalidInput)
	}
	return strings.Join(conds, " AND "), args, nil
}

func (l *PostgresLedger) collect(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()
	var out []Appointment
	for rows.Next() {
		appt, err := l.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w: %w", ErrStorage, err)
		}
		out = append(out, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: iterate: %w: %w", ErrStorage, err)
	}
	return out, nil
}

func (l *PostgresLedger) scan(row pgx.Row) (*Appointment, error) {
	var (
		a                           Appointment
		status                      string
		typ, desc, dur, length, sev *string
	)
	if err := row.Scan(&a.ID, &a.PatientID, &a.ProviderID, &a.Date, &a.StartTime, &a.EndTime, &status,
		&a.Title, &a.Description, &typ, &desc, &dur, &length, &sev,
		&a.AdditionalImages, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	y, m, d := a.Date.Date()
	a.Date = time.Date(y, m, d, 0, 0, 0, 0, l.loc)
	a.StartTime, a.EndTime = a.StartTime.In(l.loc), a.EndTime.In(l.loc)
	if typ != nil || desc != nil || dur != nil || length != nil || sev != nil {
		a.Symptoms = &Symptoms{Type: deref(typ), Description: deref(desc), Duration: deref(dur), Length: deref(length), Severity: deref(sev)}
	}
	return &a, nil
}

func mapWriteError(action string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == sqlStateExclusionViolation || pgErr.Code == sqlStateUniqueViolation) {
		return ErrSlotUnavailable
	}
	return fmt.Errorf("appointments: %s: %w: %w", action, ErrStorage, err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
