package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Ledger is the persisted set of appointments. Insert and Move are
// conflict-checked at write time: when another active appointment of the
// same provider overlaps, they fail with ErrSlotUnavailable.
type Ledger interface {
	Insert(ctx context.Context, appt *Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Move overwrites the slot and description in place. The appointment's
	// own current interval never conflicts with itself.
	Move(ctx context.Context, id uuid.UUID, date, start, end time.Time, description string) (*Appointment, error)
	SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error)
	ListActiveForProviderOn(ctx context.Context, providerID uuid.UUID, day time.Time) ([]Appointment, error)
	List(ctx context.Context, filter ListFilter) ([]Appointment, error)
	Count(ctx context.Context, filter ListFilter) (Counts, error)
	// CompleteEndedBefore marks PENDING and UPCOMING appointments ending at
	// or before cutoff as COMPLETED and returns how many changed.
	CompleteEndedBefore(ctx context.Context, cutoff time.Time) (int, error)
}
