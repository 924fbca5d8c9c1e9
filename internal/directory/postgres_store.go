package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/careconnect-platform/internal/identity"
)

type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore reads profiles from the users, patients,
// health_care_providers, health_care_centers and reviews tables.
type PostgresStore struct {
	db pgxDB
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("directory: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithDB(db pgxDB) *PostgresStore {
	return &PostgresStore{db: db}
}

const providerSelect = `
	SELECT p.id, p.user_id, u.name, u.email, p.speciality, p.office_state, p.verified,
	       p.credential_url, p.health_care_center_id,
	       COALESCE(AVG(r.rating), 0)::float8, COUNT(r.id)
	FROM health_care_providers p
	JOIN users u ON u.id = p.user_id
	LEFT JOIN reviews r ON r.provider_id = p.id`

const providerGroup = ` GROUP BY p.id, u.id`

func (s *PostgresStore) User(ctx context.Context, userID uuid.UUID) (*User, error) {
	var (
		u    User
		role string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, name, email, role, receive_email_notifications
		FROM users WHERE id = $1`, userID).
		Scan(&u.ID, &u.Name, &u.Email, &role, &u.ReceiveEmailNotifications)
	if err != nil {
		return nil, notFound("user", err)
	}
	u.Role = identity.Role(role)
	return &u, nil
}

func (s *PostgresStore) Patient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patient(ctx, "pt.id = $1", id)
}

func (s *PostgresStore) PatientByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return s.patient(ctx, "pt.user_id = $1", userID)
}

func (s *PostgresStore) patient(ctx context.Context, where string, arg uuid.UUID) (*Patient, error) {
	var p Patient
	err := s.db.QueryRow(ctx, `
		SELECT pt.id, pt.user_id, u.name, u.email
		FROM patients pt
		JOIN users u ON u.id = pt.user_id
		WHERE `+where, arg).Scan(&p.ID, &p.UserID, &p.Name, &p.Email)
	if err != nil {
		return nil, notFound("patient", err)
	}
	return &p, nil
}

func (s *PostgresStore) Provider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return s.provider(ctx, " WHERE p.id = $1", id)
}

func (s *PostgresStore) ProviderByUserID(ctx context.Context, userID uuid.UUID) (*Provider, error) {
	return s.provider(ctx, " WHERE p.user_id = $1", userID)
}

func (s *PostgresStore) provider(ctx context.Context, where string, arg uuid.UUID) (*Provider, error) {
	p, err := scanProvider(s.db.QueryRow(ctx, providerSelect+where+providerGroup, arg))
	if err != nil {
		return nil, notFound("provider", err)
	}
	return p, nil
}

func (s *PostgresStore) Center(ctx context.Context, id uuid.UUID) (*Center, error) {
	return s.center(ctx, "c.id = $1", id)
}

func (s *PostgresStore) CenterByUserID(ctx context.Context, userID uuid.UUID) (*Center, error) {
	return s.center(ctx, "c.user_id = $1", userID)
}

func (s *PostgresStore) center(ctx context.Context, where string, arg uuid.UUID) (*Center, error) {
	var c Center
	err := s.db.QueryRow(ctx, `
		SELECT c.id, c.user_id, c.name, u.email, c.office_state
		FROM health_care_centers c
		JOIN users u ON u.id = c.user_id
		WHERE `+where, arg).Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.OfficeState)
	if err != nil {
		return nil, notFound("center", err)
	}
	return &c, nil
}

func (s *PostgresStore) SearchProviders(ctx context.Context, filter SearchFilter) ([]Provider, error) {
	return s.listProviders(ctx, "search providers",
		providerSelect+` WHERE ($1 = '' OR p.speciality = $1) AND ($2 = '' OR p.office_state = $2)`+providerGroup+` ORDER BY u.name`,
		filter.Speciality, filter.Location)
}

func (s *PostgresStore) CenterProviders(ctx context.Context, centerID uuid.UUID) ([]Provider, error) {
	return s.listProviders(ctx, "center providers",
		providerSelect+` WHERE p.health_care_center_id = $1`+providerGroup+` ORDER BY u.name`,
		centerID)
}

func (s *PostgresStore) listProviders(ctx context.Context, action, query string, args ...any) ([]Provider, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("directory: %s: %w", action, err)
	}
	defer rows.Close()

	out := []Provider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("directory: %s: scan: %w", action, err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: %s: %w", action, err)
	}
	return out, nil
}

func (s *PostgresStore) SetVerified(ctx context.Context, providerID uuid.UUID, verified bool) error {
	return s.updateProvider(ctx, "set verified", `UPDATE health_care_providers SET verified = $2 WHERE id = $1`, providerID, verified)
}

func (s *PostgresStore) SetCredentialURL(ctx context.Context, providerID uuid.UUID, url string) error {
	return s.updateProvider(ctx, "set credential", `UPDATE health_care_providers SET credential_url = $2 WHERE id = $1`, providerID, url)
}

func (s *PostgresStore) SetCenter(ctx context.Context, providerID, centerID uuid.UUID) error {
	return s.updateProvider(ctx, "set center", `UPDATE health_care_providers SET health_care_center_id = $2 WHERE id = $1`, providerID, centerID)
}

func (s *PostgresStore) updateProvider(ctx context.Context, action, query string, providerID uuid.UUID, value any) error {
	tag, err := s.db.Exec(ctx, query, providerID, value)
	if err != nil {
		return fmt.Errorf("directory: %s: %w", action, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) InsertReview(ctx context.Context, review *Review) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO reviews (id, patient_id, provider_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		review.ID, review.PatientID, review.ProviderID, review.Rating, review.Comment, review.CreatedAt)
	if err != nil {
		return fmt.Errorf("directory: insert review: %w", err)
	}
	return nil
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Email, &p.Speciality, &p.OfficeState, &p.Verified,
		&p.CredentialURL, &p.CenterID, &p.AverageRating, &p.ReviewCount); err != nil {
		return nil, err
	}
	return &p, nil
}

func notFound(what string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("directory: get %s: %w", what, err)
}
