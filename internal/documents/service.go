package documents

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// UploadRequest describes one medical document. Name falls back to the
// file's base name without its extension.
type UploadRequest struct {
	Name        string
	Description string
	Filename    string
	ContentType string
	Body        io.Reader
}

// Service manages patients' medical documents.
type Service struct {
	store    Store
	uploader Uploader
	logger   *logging.Logger
	now      func() time.Time
}

// NewService accepts a nil uploader; uploads then fail with
// ErrNotConfigured while listing and deleting keep working.
func NewService(store Store, uploader Uploader, logger *logging.Logger) *Service {
	if store == nil {
		panic("documents: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, uploader: uploader, logger: logger, now: time.Now}
}

func (s *Service) List(ctx context.Context, patientID uuid.UUID) ([]Document, error) {
	return s.store.ListForPatient(ctx, patientID, 0)
}

func (s *Service) Upload(ctx context.Context, patientID uuid.UUID, req UploadRequest) (*Document, error) {
	if s.uploader == nil {
		return nil, ErrNotConfigured
	}
	filename := strings.TrimSpace(req.Filename)
	if filename == "" || req.Body == nil {
		return nil, fmt.Errorf("%w: file required", ErrInvalidInput)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		base := path.Base(filename)
		name = strings.TrimSuffix(base, path.Ext(base))
	}

	doc := &Document{
		ID:          uuid.New(),
		PatientID:   patientID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		ContentType: req.ContentType,
		CreatedAt:   s.now().UTC(),
	}
	url, err := s.uploader.Upload(ctx, PatientDocumentKey(patientID.String(), doc.ID.String(), filename), req.ContentType, req.Body)
	if err != nil {
		return nil, err
	}
	doc.URL = url
	if err := s.store.Insert(ctx, doc); err != nil {
		return nil, err
	}
	s.logger.Info("medical document uploaded", "patient_id", patientID, "document_id", doc.ID)
	return doc, nil
}

// Delete removes the record only; the stored object is left in place.
func (s *Service) Delete(ctx context.Context, patientID, id uuid.UUID) error {
	if err := s.store.Delete(ctx, patientID, id); err != nil {
		return err
	}
	s.logger.Info("medical document deleted", "patient_id", patientID, "document_id", id)
	return nil
}

// Summary returns the patient's document total and the RecentLimit newest.
func (s *Service) Summary(ctx context.Context, patientID uuid.UUID) (*Summary, error) {
	total, err := s.store.CountForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.ListForPatient(ctx, patientID, RecentLimit)
	if err != nil {
		return nil, err
	}
	return &Summary{Total: total, Recent: recent}, nil
}
