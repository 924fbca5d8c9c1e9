package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// Service reads and writes schedules and generates slots from them.
type Service struct {
	store  Store
	loc    *time.Location
	now    func() time.Time
	logger *logging.Logger
}

// NewService wires a schedule service. loc anchors opening hours to wall
// clock time; nil means UTC.
func NewService(store Store, loc *time.Location, logger *logging.Logger) *Service {
	if store == nil {
		panic("schedule: store required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, loc: loc, now: time.Now, logger: logger}
}

// Location is the timezone slots are generated in.
func (s *Service) Location() *time.Location { return s.loc }

// Slots returns the raw slots owner offers on day. Nothing is cached; every
// call reads the current schedule.
func (s *Service) Slots(ctx context.Context, owner Owner, day time.Time) ([]Interval, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	hours, err := s.store.ListOpeningHours(ctx, owner)
	if err != nil {
		return nil, err
	}
	var absences []Absence
	if owner.Kind == OwnerProvider {
		absences, err = s.store.ListAbsences(ctx, owner.ID)
		if err != nil {
			return nil, err
		}
	}
	return GenerateSlots(day, hours, absences, s.loc), nil
}

func (s *Service) OpeningHours(ctx context.Context, owner Owner) ([]OpeningHours, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	return s.store.ListOpeningHours(ctx, owner)
}

// HoursInput is one weekday of a replacement set.
type HoursInput struct {
	DayOfWeek int   `json:"dayOfWeek"`
	Start     Clock `json:"startTime"`
	End       Clock `json:"endTime"`
}

// ReplaceOpeningHours validates the whole set before touching storage, so an
// invalid entry leaves the previous schedule in place. An empty set clears
// the schedule.
func (s *Service) ReplaceOpeningHours(ctx context.Context, owner Owner, input []HoursInput) ([]OpeningHours, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	hours := make([]OpeningHours, 0, len(input))
	for _, in := range input {
		hours = append(hours, OpeningHours{
			ID:        uuid.New(),
			Owner:     owner,
			DayOfWeek: time.Weekday(in.DayOfWeek),
			Start:     in.Start,
			End:       in.End,
		})
	}
	if err := ValidateSet(hours); err != nil {
		return nil, err
	}
	if err := s.store.ReplaceOpeningHours(ctx, owner, hours); err != nil {
		return nil, err
	}
	s.logger.Info("opening hours replaced", "owner_kind", string(owner.Kind), "owner_id", owner.ID.String(), "entries", len(hours))
	return hours, nil
}

func (s *Service) Absences(ctx context.Context, providerID uuid.UUID) ([]Absence, error) {
	if providerID == uuid.Nil {
		return nil, fmt.Errorf("%w: provider id required", ErrInvalidInput)
	}
	return s.store.ListAbsences(ctx, providerID)
}

// AddAbsence blocks day for the provider.
func (s *Service) AddAbsence(ctx context.Context, providerID uuid.UUID, day time.Time, reason *string) (*Absence, error) {
	if providerID == uuid.Nil {
		return nil, fmt.Errorf("%w: provider id required", ErrInvalidInput)
	}
	if day.IsZero() {
		return nil, fmt.Errorf("%w: date required", ErrInvalidInput)
	}
	if reason != nil {
		trimmed := strings.TrimSpace(*reason)
		if trimmed == "" {
			reason = nil
		} else {
			reason = &trimmed
		}
	}
	a := &Absence{
		ID:         uuid.New(),
		ProviderID: providerID,
		Date:       Day(day, s.loc),
		Reason:     reason,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateAbsence(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("absence recorded", "provider_id", providerID.String(), "date", a.Date.Format(time.DateOnly))
	return a, nil
}

// RemoveAbsence deletes an absence owned by providerID.
func (s *Service) RemoveAbsence(ctx context.Context, providerID, absenceID uuid.UUID) error {
	if providerID == uuid.Nil || absenceID == uuid.Nil {
		return fmt.Errorf("%w: provider and absence ids required", ErrInvalidInput)
	}
	return s.store.DeleteAbsence(ctx, providerID, absenceID)
}
