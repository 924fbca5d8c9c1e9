package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/careconnect-platform/internal/schedule"
)

// InMemoryLedger is a Ledger for tests and local development. The overlap
// check and the write happen under one lock.
type InMemoryLedger struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*Appointment
	clock func() time.Time
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{byID: make(map[uuid.UUID]*Appointment), clock: time.Now}
}

func (l *InMemoryLedger) Insert(_ context.Context, appt *Appointment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.byID[appt.ID]; exists {
		return ErrSlotUnavailable
	}
	if l.conflictLocked(appt.ProviderID, appt.Interval(), uuid.Nil) {
		return ErrSlotUnavailable
	}
	stored := *appt
	stored.AdditionalImages = append([]string(nil), appt.AdditionalImages...)
	l.byID[appt.ID] = &stored
	return nil
}

func (l *InMemoryLedger) Get(_ context.Context, id uuid.UUID) (*Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	appt, ok := l.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *appt
	return &out, nil
}

func (l *InMemoryLedger) Move(_ context.Context, id uuid.UUID, date, start, end time.Time, description string) (*Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	appt, ok := l.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if appt.Status.Active() && l.conflictLocked(appt.ProviderID, schedule.Interval{Start: start, End: end}, id) {
		return nil, ErrSlotUnavailable
	}
	appt.Date, appt.StartTime, appt.EndTime = date, start, end
	appt.Description = description
	appt.UpdatedAt = l.clock().UTC()
	out := *appt
	return &out, nil
}

func (l *InMemoryLedger) SetStatus(_ context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	appt, ok := l.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	// reviving a cancelled appointment must not land on a taken slot
	if !appt.Status.Active() && status.Active() && l.conflictLocked(appt.ProviderID, appt.Interval(), id) {
		return nil, ErrSlotUnavailable
	}
	appt.Status = status
	appt.UpdatedAt = l.clock().UTC()
	out := *appt
	return &out, nil
}

func (l *InMemoryLedger) ListActiveForProviderOn(_ context.Context, providerID uuid.UUID, day time.Time) ([]Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Appointment
	for _, appt := range l.byID {
		if appt.ProviderID == providerID && appt.Status.Active() && schedule.SameDate(appt.Date, day) {
			out = append(out, *appt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (l *InMemoryLedger) List(_ context.Context, filter ListFilter) ([]Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Appointment
	for _, appt := range l.byID {
		if matchesParty(appt, filter) && matchesScope(appt, filter) {
			out = append(out, *appt)
		}
	}
	ascending := filter.Scope == ScopeUpcoming
	sort.Slice(out, func(i, j int) bool {
		if ascending {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}

func (l *InMemoryLedger) Count(_ context.Context, filter ListFilter) (Counts, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var c Counts
	for _, appt := range l.byID {
		if matchesParty(appt, filter) {
			c.add(appt.Status, 1)
		}
	}
	return c, nil
}

func (l *InMemoryLedger) CompleteEndedBefore(_ context.Context, cutoff time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, appt := range l.byID {
		if (appt.Status == StatusPending || appt.Status == StatusUpcoming) && !appt.EndTime.After(cutoff) {
			appt.Status = StatusCompleted
			appt.UpdatedAt = l.clock().UTC()
			n++
		}
	}
	return n, nil
}

func (l *InMemoryLedger) conflictLocked(providerID uuid.UUID, slot schedule.Interval, exclude uuid.UUID) bool {
	for id, other := range l.byID {
		if id == exclude || other.ProviderID != providerID || !other.Status.Active() {
			continue
		}
		if other.Interval().Overlaps(slot) {
			return true
		}
	}
	return false
}

func matchesParty(appt *Appointment, filter ListFilter) bool {
	if filter.PatientID != uuid.Nil && appt.PatientID != filter.PatientID {
		return false
	}
	if filter.ProviderID != uuid.Nil && appt.ProviderID != filter.ProviderID {
		return false
	}
	return true
}

func matchesScope(appt *Appointment, filter ListFilter) bool {
	switch filter.Scope {
	case ScopeUpcoming:
		return !appt.Date.Before(filter.Today) && (appt.Status == StatusPending || appt.Status == StatusUpcoming)
	case ScopePast:
		return appt.Date.Before(filter.Today)
	case ScopeCompleted:
		return appt.Status == StatusCompleted
	}
	return true
}
