package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on the notifications table.
type PostgresStore struct {
	db pgxDB
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("notifications: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithDB(db pgxDB) *PostgresStore {
	return &PostgresStore{db: db}
}

const notificationColumns = `id, type, title, description, date, read, archived, user_id, health_care_center_id`

func (s *PostgresStore) Insert(ctx context.Context, n *Notification) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, string(n.Type), n.Title, n.Description, n.Date, n.Read, n.Archived, n.UserID, n.HealthCareCenterID)
	if err != nil {
		return fmt.Errorf("notifications: insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Notification, error) {
	n, err := scanNotification(s.db.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("notifications: get: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]Notification, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1
		ORDER BY date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("notifications: list: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("notifications: scan: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notifications: list: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, userID, id uuid.UUID) (*Notification, error) {
	return s.update(ctx, "mark read", `UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2 RETURNING `+notificationColumns, id, userID)
}

func (s *PostgresStore) Archive(ctx context.Context, userID, id uuid.UUID) (*Notification, error) {
	return s.update(ctx, "archive", `UPDATE notifications SET read = true, archived = true WHERE id = $1 AND user_id = $2 RETURNING `+notificationColumns, id, userID)
}

func (s *PostgresStore) update(ctx context.Context, action, query string, id, userID uuid.UUID) (*Notification, error) {
	n, err := scanNotification(s.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("notifications: %s: %w", action, err)
	}
	return n, nil
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var (
		n   Notification
		typ string
	)
	if err := row.Scan(&n.ID, &typ, &n.Title, &n.Description, &n.Date, &n.Read, &n.Archived, &n.UserID, &n.HealthCareCenterID); err != nil {
		return nil, err
	}
	n.Type = Type(typ)
	return &n, nil
}
