package schedule

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store persists opening hours and absences.
type Store interface {
	ListOpeningHours(ctx context.Context, owner Owner) ([]OpeningHours, error)
	// ReplaceOpeningHours swaps the owner's whole set atomically.
	ReplaceOpeningHours(ctx context.Context, owner Owner, hours []OpeningHours) error
	ListAbsences(ctx context.Context, providerID uuid.UUID) ([]Absence, error)
	CreateAbsence(ctx context.Context, absence *Absence) error
	DeleteAbsence(ctx context.Context, providerID, absenceID uuid.UUID) error
}

// InMemoryStore is a Store for tests and local development.
type InMemoryStore struct {
	mu       sync.RWMutex
	hours    map[Owner][]OpeningHours
	absences map[uuid.UUID][]Absence
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		hours:    make(map[Owner][]OpeningHours),
		absences: make(map[uuid.UUID][]Absence),
	}
}

func (s *InMemoryStore) ListOpeningHours(_ context.Context, owner Owner) ([]OpeningHours, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]OpeningHours(nil), s.hours[owner]...)
	sort.Slice(out, func(i, j int) bool { return out[i].DayOfWeek < out[j].DayOfWeek })
	return out, nil
}

func (s *InMemoryStore) ReplaceOpeningHours(_ context.Context, owner Owner, hours []OpeningHours) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(hours) == 0 {
		delete(s.hours, owner)
		return nil
	}
	s.hours[owner] = append([]OpeningHours(nil), hours...)
	return nil
}

func (s *InMemoryStore) ListAbsences(_ context.Context, providerID uuid.UUID) ([]Absence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]Absence(nil), s.absences[providerID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *InMemoryStore) CreateAbsence(_ context.Context, absence *Absence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.absences[absence.ProviderID] = append(s.absences[absence.ProviderID], *absence)
	return nil
}

func (s *InMemoryStore) DeleteAbsence(_ context.Context, providerID, absenceID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.absences[providerID]
	for i, a := range list {
		if a.ID == absenceID {
			s.absences[providerID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
