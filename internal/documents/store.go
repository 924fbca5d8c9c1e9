package documents

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store persists document records newest first. Delete is scoped to the
// owning patient and returns ErrNotFound for anyone else's document.
type Store interface {
	Insert(ctx context.Context, doc *Document) error
	ListForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]Document, error)
	CountForPatient(ctx context.Context, patientID uuid.UUID) (int, error)
	Delete(ctx context.Context, patientID, id uuid.UUID) error
}

type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]Document
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[uuid.UUID]Document)}
}

func (s *InMemoryStore) Insert(_ context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = *doc
	return nil
}

// ListForPatient returns every document when limit <= 0.
func (s *InMemoryStore) ListForPatient(_ context.Context, patientID uuid.UUID, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Document{}
	for _, d := range s.docs {
		if d.PatientID == patientID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) CountForPatient(_ context.Context, patientID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.docs {
		if d.PatientID == patientID {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) Delete(_ context.Context, patientID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok || d.PatientID != patientID {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

var _ Store = (*InMemoryStore)(nil)
