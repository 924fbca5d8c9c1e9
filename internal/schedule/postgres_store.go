package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store on the opening_hours and absences tables.
type PostgresStore struct {
	db pgxDB
}

// NewPostgresStore creates a store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("schedule: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithDB(db pgxDB) *PostgresStore {
	return &PostgresStore{db: db}
}

func ownerColumn(kind OwnerKind) (string, error) {
	switch kind {
	case OwnerProvider:
		return "provider_id", nil
	case OwnerCenter:
		return "center_id", nil
	}
	return "", fmt.Errorf("%w: unknown owner kind %q", ErrInvalidInput, kind)
}

func (s *PostgresStore) ListOpeningHours(ctx context.Context, owner Owner) ([]OpeningHours, error) {
	col, err := ownerColumn(owner.Kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT id, day_of_week, start_minute, end_minute
		FROM opening_hours
		WHERE %s = $1
		ORDER BY day_of_week`, col)
	rows, err := s.db.Query(ctx, query, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("schedule: list opening hours: %w", err)
	}
	defer rows.Close()

	var out []OpeningHours
	for rows.Next() {
		var (
			h          OpeningHours
			day        int16
			start, end int16
		)
		if err := rows.Scan(&h.ID, &day, &start, &end); err != nil {
			return nil, fmt.Errorf("schedule: scan opening hours: %w", err)
		}
		h.Owner = owner
		h.DayOfWeek = time.Weekday(day)
		h.Start, h.End = Clock(start), Clock(end)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: list opening hours: %w", err)
	}
	return out, nil
}

// ReplaceOpeningHours deletes and re-inserts the owner's set in one
// transaction, so readers never see a half-written week.
func (s *PostgresStore) ReplaceOpeningHours(ctx context.Context, owner Owner, hours []OpeningHours) error {
	col, err := ownerColumn(owner.Kind)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("schedule: begin replace: %w", err)
	}
	if err := replaceHours(ctx, tx, col, owner, hours); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("schedule: commit replace: %w", err)
	}
	return nil
}

func replaceHours(ctx context.Context, tx pgx.Tx, col string, owner Owner, hours []OpeningHours) error {
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM opening_hours WHERE %s = $1`, col), owner.ID); err != nil {
		return fmt.Errorf("schedule: clear opening hours: %w", err)
	}
	insert := fmt.Sprintf(`
		INSERT INTO opening_hours (id, %s, day_of_week, start_minute, end_minute)
		VALUES ($1, $2, $3, $4, $5)`, col)
	for _, h := range hours {
		if _, err := tx.Exec(ctx, insert, h.ID, owner.ID, int16(h.DayOfWeek), int16(h.Start), int16(h.End)); err != nil {
			return fmt.Errorf("schedule: insert opening hours: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListAbsences(ctx context.Context, providerID uuid.UUID) ([]Absence, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, provider_id, date, reason, created_at
		FROM absences
		WHERE provider_id = $1
		ORDER BY date`, providerID)
	if err != nil {
		return nil, fmt.Errorf("schedule: list absences: %w", err)
	}
	defer rows.Close()

	var out []Absence
	for rows.Next() {
		var a Absence
		if err := rows.Scan(&a.ID, &a.ProviderID, &a.Date, &a.Reason, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("schedule: scan absence: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: list absences: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateAbsence(ctx context.Context, a *Absence) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO absences (id, provider_id, date, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.ProviderID, a.Date.Format(time.DateOnly), a.Reason, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("schedule: insert absence: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAbsence(ctx context.Context, providerID, absenceID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM absences WHERE id = $1 AND provider_id = $2`, absenceID, providerID)
	if err != nil {
		return fmt.Errorf("schedule: delete absence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
