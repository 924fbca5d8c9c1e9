package documents

import (
	"context"
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

// PostgresStore keeps document records in the documents table.
type PostgresStore struct {
	db pgxDB
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("documents: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithDB(db pgxDB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, doc *Document) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO documents (id, patient_id, name, description, url, content_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.PatientID, doc.Name, doc.Description, doc.URL, doc.ContentType, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("documents: insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]Document, error) {
	query := `
		SELECT id, patient_id, name, description, url, content_type, created_at
		FROM documents
		WHERE patient_id = $1
		ORDER BY created_at DESC, id`
	args := []any{patientID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("documents: list: %w", err)
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.PatientID, &d.Name, &d.Description, &d.URL, &d.ContentType, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("documents: list: scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("documents: list: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountForPatient(ctx context.Context, patientID uuid.UUID) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE patient_id = $1`, patientID).Scan(&n); err != nil {
		return 0, fmt.Errorf("documents: count: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Delete(ctx context.Context, patientID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM documents WHERE id = $1 AND patient_id = $2`, id, patientID)
	if err != nil {
		return fmt.Errorf("documents: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
