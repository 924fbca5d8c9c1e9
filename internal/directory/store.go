package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store persists profiles. Lookups return ErrNotFound for unknown ids.
type Store interface {
	User(ctx context.Context, userID uuid.UUID) (*User, error)
	Patient(ctx context.Context, id uuid.UUID) (*Patient, error)
	PatientByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	Provider(ctx context.Context, id uuid.UUID) (*Provider, error)
	ProviderByUserID(ctx context.Context, userID uuid.UUID) (*Provider, error)
	Center(ctx context.Context, id uuid.UUID) (*Center, error)
	CenterByUserID(ctx context.Context, userID uuid.UUID) (*Center, error)
	SearchProviders(ctx context.Context, filter SearchFilter) ([]Provider, error)
	CenterProviders(ctx context.Context, centerID uuid.UUID) ([]Provider, error)
	SetVerified(ctx context.Context, providerID uuid.UUID, verified bool) error
	SetCredentialURL(ctx context.Context, providerID uuid.UUID, url string) error
	SetCenter(ctx context.Context, providerID, centerID uuid.UUID) error
	InsertReview(ctx context.Context, review *Review) error
}

// InMemoryStore is a Store for tests and local development. Seed it with
// the Add methods.
type InMemoryStore struct {
	mu        sync.RWMutex
	users     map[uuid.UUID]User
	patients  map[uuid.UUID]Patient
	providers map[uuid.UUID]Provider
	centers   map[uuid.UUID]Center
	reviews   []Review
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:     make(map[uuid.UUID]User),
		patients:  make(map[uuid.UUID]Patient),
		providers: make(map[uuid.UUID]Provider),
		centers:   make(map[uuid.UUID]Center),
	}
}

func (s *InMemoryStore) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AddPatient copies name and email from the owning user when present.
func (s *InMemoryStore) AddPatient(p Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[p.UserID]; ok {
		p.Name, p.Email = u.Name, u.Email
	}
	s.patients[p.ID] = p
}

func (s *InMemoryStore) AddProvider(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[p.UserID]; ok {
		p.Name, p.Email = u.Name, u.Email
	}
	s.providers[p.ID] = p
}

func (s *InMemoryStore) AddCenter(c Center) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[c.UserID]; ok {
		c.Email = u.Email
		if c.Name == "" {
			c.Name = u.Name
		}
	}
	s.centers[c.ID] = c
}

func (s *InMemoryStore) User(_ context.Context, userID uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *InMemoryStore) Patient(_ context.Context, id uuid.UUID) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *InMemoryStore) PatientByUserID(_ context.Context, userID uuid.UUID) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.patients {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) Provider(_ context.Context, id uuid.UUID) (*Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := s.withRatings(p)
	return &out, nil
}

func (s *InMemoryStore) ProviderByUserID(_ context.Context, userID uuid.UUID) (*Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.providers {
		if p.UserID == userID {
			out := s.withRatings(p)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) Center(_ context.Context, id uuid.UUID) (*Center, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.centers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *InMemoryStore) CenterByUserID(_ context.Context, userID uuid.UUID) (*Center, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.centers {
		if c.UserID == userID {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) SearchProviders(_ context.Context, filter SearchFilter) ([]Provider, error) {
	return s.selectProviders(filter.matches), nil
}

func (s *InMemoryStore) CenterProviders(_ context.Context, centerID uuid.UUID) ([]Provider, error) {
	return s.selectProviders(func(p Provider) bool {
		return p.CenterID != nil && *p.CenterID == centerID
	}), nil
}

func (s *InMemoryStore) selectProviders(keep func(Provider) bool) []Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Provider{}
	for _, p := range s.providers {
		if keep(p) {
			out = append(out, s.withRatings(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *InMemoryStore) withRatings(p Provider) Provider {
	total := 0
	p.ReviewCount = 0
	for _, r := range s.reviews {
		if r.ProviderID == p.ID {
			total += r.Rating
			p.ReviewCount++
		}
	}
	if p.ReviewCount > 0 {
		p.AverageRating = float64(total) / float64(p.ReviewCount)
	}
	return p
}

func (s *InMemoryStore) SetVerified(_ context.Context, providerID uuid.UUID, verified bool) error {
	return s.updateProvider(providerID, func(p *Provider) { p.Verified = verified })
}

func (s *InMemoryStore) SetCredentialURL(_ context.Context, providerID uuid.UUID, url string) error {
	return s.updateProvider(providerID, func(p *Provider) { p.CredentialURL = &url })
}

func (s *InMemoryStore) SetCenter(_ context.Context, providerID, centerID uuid.UUID) error {
	return s.updateProvider(providerID, func(p *Provider) { p.CenterID = &centerID })
}

func (s *InMemoryStore) updateProvider(id uuid.UUID, apply func(*Provider)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[id]
	if !ok {
		return ErrNotFound
	}
	apply(&p)
	s.providers[id] = p
	return nil
}

func (s *InMemoryStore) InsertReview(_ context.Context, review *Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = append(s.reviews, *review)
	return nil
}
