package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingUploader struct {
	keys   []string
	bodies []string
	err    error
}

func (u *recordingUploader) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	b, _ := io.ReadAll(body)
	u.keys = append(u.keys, key)
	u.bodies = append(u.bodies, string(b))
	return "https://docs.example.com/" + key, nil
}

// newTestService advances the clock a minute per call so uploads order
// deterministically.
func newTestService(uploader Uploader) *Service {
	svc := NewService(NewInMemoryStore(), uploader, nil)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	return svc
}

func TestServiceUpload(t *testing.T) {
	uploader := &recordingUploader{}
	svc := newTestService(uploader)
	patientID := uuid.New()

	doc, err := svc.Upload(context.Background(), patientID, UploadRequest{
		Name:        "  Blood panel ",
		Description: "March results",
		Filename:    "labs.PDF",
		ContentType: "application/pdf",
		Body:        strings.NewReader("%PDF"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Blood panel", doc.Name)
	assert.Equal(t, patientID, doc.PatientID)
	wantKey := "patients/" + patientID.String() + "/documents/" + doc.ID.String() + ".pdf"
	assert.Equal(t, []string{wantKey}, uploader.keys)
	assert.Equal(t, "https://docs.example.com/"+wantKey, doc.URL)
	assert.Equal(t, []string{"%PDF"}, uploader.bodies)

	untitled, err := svc.Upload(context.Background(), patientID, UploadRequest{Filename: "chest x-ray.png", Body: strings.NewReader("png")})
	require.NoError(t, err)
	assert.Equal(t, "chest x-ray", untitled.Name)

	docs, err := svc.List(context.Background(), patientID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, untitled.ID, docs[0].ID)
}

func TestServiceUploadErrors(t *testing.T) {
	patientID := uuid.New()

	svc := newTestService(nil)
	_, err := svc.Upload(context.Background(), patientID, UploadRequest{Filename: "a.pdf", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrNotConfigured)

	svc = newTestService(&recordingUploader{})
	_, err = svc.Upload(context.Background(), patientID, UploadRequest{Filename: " ", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	svc = newTestService(&recordingUploader{err: errors.New("bucket gone")})
	_, err = svc.Upload(context.Background(), patientID, UploadRequest{Filename: "a.pdf", Body: strings.NewReader("x")})
	assert.ErrorContains(t, err, "bucket gone")
	docs, err := svc.List(context.Background(), patientID)
	require.NoError(t, err)
	assert.Empty(t, docs, "a failed upload leaves no record")
}

func TestServiceDeleteOnlyOwnDocuments(t *testing.T) {
	svc := newTestService(&recordingUploader{})
	owner, other := uuid.New(), uuid.New()
	doc, err := svc.Upload(context.Background(), owner, UploadRequest{Filename: "a.pdf", Body: strings.NewReader("x")})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(context.Background(), other, doc.ID), ErrNotFound)
	require.NoError(t, svc.Delete(context.Background(), owner, doc.ID))
	assert.ErrorIs(t, svc.Delete(context.Background(), owner, doc.ID), ErrNotFound)
}

func TestServiceSummary(t *testing.T) {
	svc := newTestService(&recordingUploader{})
	patientID := uuid.New()
	var last *Document
	for i := 0; i < RecentLimit+2; i++ {
		doc, err := svc.Upload(context.Background(), patientID, UploadRequest{Filename: "scan.png", Body: strings.NewReader("x")})
		require.NoError(t, err)
		last = doc
	}
	_, err := svc.Upload(context.Background(), uuid.New(), UploadRequest{Filename: "other.png", Body: strings.NewReader("x")})
	require.NoError(t, err)

	summary, err := svc.Summary(context.Background(), patientID)
	require.NoError(t, err)
	assert.Equal(t, RecentLimit+2, summary.Total)
	require.Len(t, summary.Recent, RecentLimit)
	assert.Equal(t, last.ID, summary.Recent[0].ID)

	empty, err := svc.Summary(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)
	assert.NotNil(t, empty.Recent)
}
