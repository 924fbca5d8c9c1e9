package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/careconnect-platform/internal/notifications"
	"github.com/wolfman30/careconnect-platform/internal/observability/metrics"
	"github.com/wolfman30/careconnect-platform/internal/schedule"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

var appointmentsTracer = otel.Tracer("careconnect.internal.appointments")

const humanDateLayout = "Monday, January 2 2006"

// Party is one side of an appointment as the directory knows them.
type Party struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Name   string
}

// Parties resolves patient and provider profiles. Unknown ids must yield an
// error wrapping ErrNotFound.
type Parties interface {
	Patient(ctx context.Context, patientID uuid.UUID) (Party, error)
	Provider(ctx context.Context, providerID uuid.UUID) (Party, error)
}

// Notifier persists and delivers notifications.
type Notifier interface {
	Emit(ctx context.Context, req notifications.EmitRequest) (*notifications.Notification, error)
}

// Coordinator validates booking requests against live availability and
// commits them to the ledger.
type Coordinator struct {
	ledger   Ledger
	resolver *Resolver
	parties  Parties
	notifier Notifier
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
}

func NewCoordinator(ledger Ledger, resolver *Resolver, parties Parties, notifier Notifier, logger *logging.Logger, m *metrics.BookingMetrics) *Coordinator {
	if ledger == nil || resolver == nil || parties == nil {
		panic("appointments: ledger, resolver and parties required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{
		ledger:   ledger,
		resolver: resolver,
		parties:  parties,
		notifier: notifier,
		logger:   logger,
		metrics:  m,
	}
}

// BookRequest carries a patient's booking. PatientID comes from the session,
// never from the request body.
type BookRequest struct {
	PatientID        uuid.UUID `json:"-"`
	ProviderID       uuid.UUID `json:"-"`
	Date             string    `json:"date"`
	Time             string    `json:"time"`
	Symptoms         *Symptoms `json:"symptoms,omitempty"`
	AdditionalImages []string  `json:"additionalImages"`
	// Specialist bookings skip the symptom intake.
	Specialist bool `json:"specialist"`
}

// Book creates a PENDING appointment on a currently free slot.
func (c *Coordinator) Book(ctx context.Context, req BookRequest) (appt *Appointment, err error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.book")
	defer func() { c.finish(span, "book", err) }()
	span.SetAttributes(
		attribute.String("careconnect.provider_id", req.ProviderID.String()),
		attribute.String("careconnect.patient_id", req.PatientID.String()),
	)

	if req.PatientID == uuid.Nil || req.ProviderID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient and provider ids required", ErrInvalidInput)
	}
	day, start, err := c.parseSlot(req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	if !req.Specialist && !req.Symptoms.complete() {
		return nil, fmt.Errorf("%w: symptom details required", ErrInvalidInput)
	}

	patient, err := c.parties.Patient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	provider, err := c.parties.Provider(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}

	free, err := c.resolver.Resolve(ctx, req.ProviderID, day)
	if err != nil {
		return nil, err
	}
	slot, ok := containsSlot(free, start)
	if !ok {
		return nil, ErrSlotUnavailable
	}

	now := c.resolver.now().UTC()
	appt = &Appointment{
		ID:               uuid.New(),
		PatientID:        patient.ID,
		ProviderID:       provider.ID,
		Date:             day,
		StartTime:        slot.Start,
		EndTime:          slot.End,
		Status:           StatusPending,
		Title:            "Appointment with " + patient.Name,
		Description:      fmt.Sprintf("Appointment with %s on %s at %s", patient.Name, day.Format(humanDateLayout), slot.Start.Format("15:04")),
		AdditionalImages: cleanImages(req.AdditionalImages),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if !req.Specialist {
		appt.Symptoms = req.Symptoms
	}
	if err := c.ledger.Insert(ctx, appt); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("careconnect.appointment_id", appt.ID.String()))
	c.logger.Info("appointment booked", "appointment_id", appt.ID.String(), "provider_id", provider.ID.String(), "start", appt.StartTime.Format(time.RFC3339))

	c.notify(ctx, provider.UserID, notifications.TypeNewAppointment, "New appointment", appt.Description)
	return appt, nil
}

// Cancel marks the appointment CANCELLED whatever its current state. actor
// is the user asking; uuid.Nil skips the party check for internal callers.
func (c *Coordinator) Cancel(ctx context.Context, id, actor uuid.UUID) (appt *Appointment, err error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.cancel")
	defer func() { c.finish(span, "cancel", err) }()
	span.SetAttributes(attribute.String("careconnect.appointment_id", id.String()))

	current, patient, provider, err := c.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	appt, err = c.ledger.SetStatus(ctx, current.ID, StatusCancelled)
	if err != nil {
		return nil, err
	}
	c.logger.Info("appointment cancelled", "appointment_id", id.String(), "previous_status", string(current.Status))

	recipient := counterpart(actor, patient, provider)
	c.notify(ctx, recipient, notifications.TypeAppointmentCancelled, "Appointment cancelled",
		fmt.Sprintf("%s on %s at %s was cancelled", appt.Title, appt.Date.Format(humanDateLayout), appt.StartTime.Format("15:04")))
	return appt, nil
}

// RescheduleRequest moves an appointment to another slot of the same
// provider.
type RescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// Reschedule overwrites the slot in place. Terminal appointments cannot be
// moved.
func (c *Coordinator) Reschedule(ctx context.Context, id, actor uuid.UUID, req RescheduleRequest) (appt *Appointment, err error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.reschedule")
	defer func() { c.finish(span, "reschedule", err) }()
	span.SetAttributes(attribute.String("careconnect.appointment_id", id.String()))

	day, start, err := c.parseSlot(req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	current, patient, provider, err := c.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s appointment cannot be rescheduled", ErrInvalidInput, strings.ToLower(string(current.Status)))
	}

	free, err := c.resolver.ResolveExcluding(ctx, current.ProviderID, day, current.ID)
	if err != nil {
		return nil, err
	}
	slot, ok := containsSlot(free, start)
	if !ok {
		return nil, ErrSlotUnavailable
	}

	description := fmt.Sprintf("Appointment rescheduled on %s at %s", day.Format(humanDateLayout), slot.Start.Format("15:04"))
	appt, err = c.ledger.Move(ctx, current.ID, day, slot.Start, slot.End, description)
	if err != nil {
		return nil, err
	}
	c.logger.Info("appointment rescheduled", "appointment_id", id.String(),
		"from", current.StartTime.Format(time.RFC3339), "to", appt.StartTime.Format(time.RFC3339))

	recipient := counterpart(actor, patient, provider)
	c.notify(ctx, recipient, notifications.TypeAppointmentRescheduled, "Appointment rescheduled", description)
	return appt, nil
}

// Confirm lets the provider accept a PENDING appointment.
func (c *Coordinator) Confirm(ctx context.Context, id, providerID uuid.UUID) (appt *Appointment, err error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.confirm")
	defer func() { c.finish(span, "confirm", err) }()
	span.SetAttributes(attribute.String("careconnect.appointment_id", id.String()))

	current, err := c.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if providerID != uuid.Nil && current.ProviderID != providerID {
		return nil, ErrForbidden
	}
	if current.Status != StatusPending {
		return nil, fmt.Errorf("%w: only pending appointments can be confirmed", ErrInvalidInput)
	}
	appt, err = c.ledger.SetStatus(ctx, id, StatusUpcoming)
	if err != nil {
		return nil, err
	}
	c.logger.Info("appointment confirmed", "appointment_id", id.String())
	return appt, nil
}

// List returns one party's appointments in the requested scope.
func (c *Coordinator) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	if filter.Today.IsZero() {
		filter.Today = schedule.Day(c.resolver.now(), c.resolver.loc)
	}
	return c.ledger.List(ctx, filter)
}

func (c *Coordinator) Counts(ctx context.Context, filter ListFilter) (Counts, error) {
	return c.ledger.Count(ctx, filter)
}

func (c *Coordinator) load(ctx context.Context, id, actor uuid.UUID) (*Appointment, Party, Party, error) {
	if id == uuid.Nil {
		return nil, Party{}, Party{}, fmt.Errorf("%w: appointment id required", ErrInvalidInput)
	}
	appt, err := c.ledger.Get(ctx, id)
	if err != nil {
		return nil, Party{}, Party{}, err
	}
	patient, err := c.parties.Patient(ctx, appt.PatientID)
	if err != nil {
		return nil, Party{}, Party{}, err
	}
	provider, err := c.parties.Provider(ctx, appt.ProviderID)
	if err != nil {
		return nil, Party{}, Party{}, err
	}
	if actor != uuid.Nil && actor != patient.UserID && actor != provider.UserID {
		return nil, Party{}, Party{}, ErrForbidden
	}
	return appt, patient, provider, nil
}

func (c *Coordinator) parseSlot(date, clock string) (time.Time, time.Time, error) {
	day, err := schedule.ParseDate(date, c.resolver.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	at, err := schedule.ParseClock(clock)
	if err != nil || at >= 24*60 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: time must be HH:MM", ErrInvalidInput)
	}
	start := at.On(day)
	// time.Date normalizes wall clocks skipped by a daylight-saving jump.
	if schedule.ClockOf(start) != at {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s does not exist on %s", ErrInvalidInput, at, day.Format(time.DateOnly))
	}
	return day, start, nil
}

// notify never fails the calling operation; the ledger write is the
// success criterion.
func (c *Coordinator) notify(ctx context.Context, userID uuid.UUID, typ notifications.Type, title, description string) {
	if c.notifier == nil || userID == uuid.Nil {
		return
	}
	if _, err := c.notifier.Emit(ctx, notifications.EmitRequest{
		UserID:      userID,
		Type:        typ,
		Title:       title,
		Description: description,
	}); err != nil {
		c.logger.Warn("appointment notification failed", "type", string(typ), "user_id", userID.String(), "error", err)
	}
}

func (c *Coordinator) finish(span trace.Span, operation string, err error) {
	c.metrics.ObserveOperation(operation, outcome(err))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	}
	return "error"
}

// counterpart picks who hears about a change: the provider unless the
// provider made it.
func counterpart(actor uuid.UUID, patient, provider Party) uuid.UUID {
	if actor != uuid.Nil && actor == provider.UserID {
		return patient.UserID
	}
	return provider.UserID
}

func cleanImages(in []string) []string {
	out := make([]string, 0, len(in))
	for _, url := range in {
		if url = strings.TrimSpace(url); url != "" {
			out = append(out, url)
		}
	}
	return out
}
