package documents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var documentColumns = []string{"id", "patient_id", "name", "description", "url", "content_type", "created_at"}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newPostgresStoreWithDB(mock), mock
}

func TestPostgresStoreInsert(t *testing.T) {
	store, mock := newMockStore(t)
	doc := &Document{
		ID:          uuid.New(),
		PatientID:   uuid.New(),
		Name:        "Blood panel",
		Description: "March results",
		URL:         "https://docs.example.com/patients/p/documents/d.pdf",
		ContentType: "application/pdf",
		CreatedAt:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	mock.ExpectExec("INSERT INTO documents").
		WithArgs(doc.ID, doc.PatientID, doc.Name, doc.Description, doc.URL, doc.ContentType, doc.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Insert(context.Background(), doc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreListForPatient(t *testing.T) {
	store, mock := newMockStore(t)
	patientID := uuid.New()
	newer, older := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(documentColumns).
		AddRow(uuid.New(), patientID, "MRI", "", "https://docs.example.com/a.png", "image/png", newer).
		AddRow(uuid.New(), patientID, "Blood panel", "March", "https://docs.example.com/b.pdf", "application/pdf", older)
	mock.ExpectQuery("ORDER BY created_at DESC").WithArgs(patientID).WillReturnRows(rows)

	docs, err := store.ListForPatient(context.Background(), patientID, 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "MRI", docs[0].Name)
	assert.Equal(t, older, docs[1].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreListForPatientWithLimit(t *testing.T) {
	store, mock := newMockStore(t)
	patientID := uuid.New()
	mock.ExpectQuery("LIMIT").WithArgs(patientID, RecentLimit).WillReturnRows(pgxmock.NewRows(documentColumns))

	docs, err := store.ListForPatient(context.Background(), patientID, RecentLimit)
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreCountForPatient(t *testing.T) {
	store, mock := newMockStore(t)
	patientID := uuid.New()
	mock.ExpectQuery("SELECT COUNT").WithArgs(patientID).WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, err := store.CountForPatient(context.Background(), patientID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	mock.ExpectQuery("SELECT COUNT").WithArgs(patientID).WillReturnError(errors.New("connection reset"))
	_, err = store.CountForPatient(context.Background(), patientID)
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreDeleteIsScopedToPatient(t *testing.T) {
	store, mock := newMockStore(t)
	patientID, docID := uuid.New(), uuid.New()
	mock.ExpectExec("DELETE FROM documents").WithArgs(docID, patientID).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM documents").WithArgs(docID, patientID).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, store.Delete(context.Background(), patientID, docID))
	assert.ErrorIs(t, store.Delete(context.Background(), patientID, docID), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
