package notifications

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store persists notifications. Update methods are scoped to the recipient
// and return ErrNotFound for someone else's notification.
type Store interface {
	Insert(ctx context.Context, n *Notification) error
	Get(ctx context.Context, id uuid.UUID) (*Notification, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) (*Notification, error)
	Archive(ctx context.Context, userID, id uuid.UUID) (*Notification, error)
}

// InMemoryStore is a Store for tests and local development.
type InMemoryStore struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*Notification
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[uuid.UUID]*Notification)}
}

func (s *InMemoryStore) Insert(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *n
	s.byID[n.ID] = &stored
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *n
	return &out, nil
}

func (s *InMemoryStore) ListForUser(_ context.Context, userID uuid.UUID) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Notification
	for _, n := range s.byID {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *InMemoryStore) MarkRead(_ context.Context, userID, id uuid.UUID) (*Notification, error) {
	return s.update(userID, id, func(n *Notification) { n.Read = true })
}

func (s *InMemoryStore) Archive(_ context.Context, userID, id uuid.UUID) (*Notification, error) {
	return s.update(userID, id, func(n *Notification) { n.Read, n.Archived = true, true })
}

func (s *InMemoryStore) update(userID, id uuid.UUID, apply func(*Notification)) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok || n.UserID != userID {
		return nil, ErrNotFound
	}
	apply(n)
	out := *n
	return &out, nil
}
