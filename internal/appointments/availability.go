package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/careconnect-platform/internal/observability/metrics"
	"github.com/wolfman30/careconnect-platform/internal/schedule"
)

// SlotSource yields the raw slots an owner offers on a day.
type SlotSource interface {
	Slots(ctx context.Context, owner schedule.Owner, day time.Time) ([]schedule.Interval, error)
}

// Resolver filters raw slots down to the ones a patient can still book.
type Resolver struct {
	slots   SlotSource
	ledger  Ledger
	loc     *time.Location
	now     func() time.Time
	metrics *metrics.BookingMetrics
}

// NewResolver wires a resolver; nil loc means UTC and nil now means
// time.Now.
func NewResolver(slots SlotSource, ledger Ledger, loc *time.Location, now func() time.Time, m *metrics.BookingMetrics) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{slots: slots, ledger: ledger, loc: loc, now: now, metrics: m}
}

// Resolve returns the provider's bookable slots on day in ascending order.
// An empty result is not an error.
func (r *Resolver) Resolve(ctx context.Context, providerID uuid.UUID, day time.Time) ([]schedule.Interval, error) {
	return r.resolve(ctx, providerID, day, uuid.Nil)
}

// ResolveExcluding ignores the appointment being moved, so its current slot
// does not block a reschedule.
func (r *Resolver) ResolveExcluding(ctx context.Context, providerID uuid.UUID, day time.Time, appointmentID uuid.UUID) ([]schedule.Interval, error) {
	return r.resolve(ctx, providerID, day, appointmentID)
}

func (r *Resolver) resolve(ctx context.Context, providerID uuid.UUID, day time.Time, exclude uuid.UUID) ([]schedule.Interval, error) {
	started := time.Now()
	defer func() { r.metrics.ObserveAvailabilityLatency(time.Since(started).Seconds()) }()

	if providerID == uuid.Nil {
		return nil, fmt.Errorf("%w: provider id required", ErrInvalidInput)
	}
	day = schedule.Day(day, r.loc)
	now := r.now().In(r.loc)
	today := schedule.Day(now, r.loc)
	if day.Before(today) {
		return []schedule.Interval{}, nil
	}

	candidates, err := r.slots.Slots(ctx, schedule.ProviderOwner(providerID), day)
	if err != nil {
		return nil, fmt.Errorf("appointments: load slots: %w: %w", ErrStorage, err)
	}
	if len(candidates) == 0 {
		return []schedule.Interval{}, nil
	}
	booked, err := r.ledger.ListActiveForProviderOn(ctx, providerID, day)
	if err != nil {
		return nil, err
	}

	isToday := day.Equal(today)
	free := make([]schedule.Interval, 0, len(candidates))
	for _, slot := range candidates {
		if isToday && slot.Start.Before(now) {
			continue
		}
		if overlapsBooking(slot, booked, exclude) {
			continue
		}
		free = append(free, slot)
	}
	return free, nil
}

func overlapsBooking(slot schedule.Interval, booked []Appointment, exclude uuid.UUID) bool {
	for i := range booked {
		if booked[i].ID == exclude || !booked[i].Status.Active() {
			continue
		}
		if booked[i].Interval().Overlaps(slot) {
			return true
		}
	}
	return false
}

func containsSlot(slots []schedule.Interval, start time.Time) (schedule.Interval, bool) {
	for _, s := range slots {
		if s.Start.Equal(start) {
			return s, true
		}
	}
	return schedule.Interval{}, false
}
