package appointments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/careconnect-platform/internal/notifications"
	"github.com/wolfman30/careconnect-platform/internal/observability/metrics"
	"github.com/wolfman30/careconnect-platform/internal/schedule"
)

type fakeParties struct {
	patients  map[uuid.UUID]Party
	providers map[uuid.UUID]Party
}

func (f *fakeParties) Patient(_ context.Context, id uuid.UUID) (Party, error) {
	if p, ok := f.patients[id]; ok {
		return p, nil
	}
	return Party{}, ErrNotFound
}

func (f *fakeParties) Provider(_ context.Context, id uuid.UUID) (Party, error) {
	if p, ok := f.providers[id]; ok {
		return p, nil
	}
	return Party{}, ErrNotFound
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notifications.EmitRequest
	err  error
}

func (f *fakeNotifier) Emit(_ context.Context, req notifications.EmitRequest) (*notifications.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	if f.err != nil {
		return nil, f.err
	}
	return &notifications.Notification{ID: uuid.New(), Type: req.Type, UserID: req.UserID}, nil
}

func (f *fakeNotifier) requests() []notifications.EmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifications.EmitRequest(nil), f.sent...)
}

type fixture struct {
	ledger   *InMemoryLedger
	schedule *schedule.Service
	resolver *Resolver
	coord    *Coordinator
	notifier *fakeNotifier
	metrics  *metrics.BookingMetrics
	patient  Party
	provider Party
	now      time.Time
}

var intake = &Symptoms{Type: "pain", Description: "back pain", Duration: "2 weeks", Length: "constant", Severity: "moderate"}

// newFixture gives a provider open Mondays 09:00-12:00 with "now" one week
// before Monday 2024-01-01.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ledger:   NewInMemoryLedger(),
		notifier: &fakeNotifier{},
		metrics:  metrics.NewBookingMetrics(prometheus.NewRegistry()),
		patient:  Party{ID: uuid.New(), UserID: uuid.New(), Name: "Ada Obi"},
		provider: Party{ID: uuid.New(), UserID: uuid.New(), Name: "Dr. Grace Eze"},
		now:      time.Date(2023, time.December, 25, 8, 0, 0, 0, time.UTC),
	}
	f.schedule = schedule.NewService(schedule.NewInMemoryStore(), time.UTC, nil)
	_, err := f.schedule.ReplaceOpeningHours(context.Background(), schedule.ProviderOwner(f.provider.ID), []schedule.HoursInput{
		{DayOfWeek: int(time.Monday), Start: 9 * 60, End: 12 * 60},
	})
	require.NoError(t, err)

	f.resolver = NewResolver(f.schedule, f.ledger, time.UTC, func() time.Time { return f.now }, f.metrics)
	parties := &fakeParties{
		patients:  map[uuid.UUID]Party{f.patient.ID: f.patient},
		providers: map[uuid.UUID]Party{f.provider.ID: f.provider},
	}
	f.coord = NewCoordinator(f.ledger, f.resolver, parties, f.notifier, nil, f.metrics)
	return f
}

func (f *fixture) book(t *testing.T, clock string) *Appointment {
	t.Helper()
	appt, err := f.coord.Book(context.Background(), BookRequest{
		PatientID:  f.patient.ID,
		ProviderID: f.provider.ID,
		Date:       "2024-01-01",
		Time:       clock,
		Symptoms:   intake,
	})
	require.NoError(t, err)
	return appt
}

func TestBookCreatesPendingAppointment(t *testing.T) {
	f := newFixture(t)

	appt := f.book(t, "10:00")

	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, 30*time.Minute, appt.EndTime.Sub(appt.StartTime))
	assert.Equal(t, "Appointment with Ada Obi", appt.Title)
	assert.Equal(t, "Appointment with Ada Obi on Monday, January 1 2024 at 10:00", appt.Description)
	assert.Equal(t, intake, appt.Symptoms)

	sent := f.notifier.requests()
	require.Len(t, sent, 1)
	assert.Equal(t, notifications.TypeNewAppointment, sent[0].Type)
	assert.Equal(t, f.provider.UserID, sent[0].UserID)
}

func TestBookValidation(t *testing.T) {
	f := newFixture(t)
	base := BookRequest{PatientID: f.patient.ID, ProviderID: f.provider.ID, Date: "2024-01-01", Time: "10:00", Symptoms: intake}

	tests := []struct {
		name   string
		mutate func(*BookRequest)
		want   error
	}{
		{"bad date", func(r *BookRequest) { r.Date = "01/01/2024" }, ErrInvalidInput},
		{"bad time", func(r *BookRequest) { r.Time = "10am" }, ErrInvalidInput},
		{"missing symptoms", func(r *BookRequest) { r.Symptoms = nil }, ErrInvalidInput},
		{"partial symptoms", func(r *BookRequest) { r.Symptoms = &Symptoms{Type: "pain"} }, ErrInvalidInput},
		{"missing patient id", func(r *BookRequest) { r.PatientID = uuid.Nil }, ErrInvalidInput},
		{"unknown patient", func(r *BookRequest) { r.PatientID = uuid.New() }, ErrNotFound},
		{"unknown provider", func(r *BookRequest) { r.ProviderID = uuid.New() }, ErrNotFound},
		{"outside opening hours", func(r *BookRequest) { r.Time = "13:00" }, ErrSlotUnavailable},
		{"off-grid start", func(r *BookRequest) { r.Time = "10:15" }, ErrSlotUnavailable},
		{"closed weekday", func(r *BookRequest) { r.Date = "2024-01-02" }, ErrSlotUnavailable},
		{"past day", func(r *BookRequest) { r.Date = "2023-12-18" }, ErrSlotUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := f.coord.Book(context.Background(), req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.notifier.requests())
}

func TestBookSpecialistSkipsIntake(t *testing.T) {
	f := newFixture(t)

	appt, err := f.coord.Book(context.Background(), BookRequest{
		PatientID:        f.patient.ID,
		ProviderID:       f.provider.ID,
		Date:             "2024-01-01",
		Time:             "09:00",
		Specialist:       true,
		AdditionalImages: []string{" https://cdn.example.com/a.png ", ""},
	})
	require.NoError(t, err)
	assert.Nil(t, appt.Symptoms)
	assert.Equal(t, []string{"https://cdn.example.com/a.png"}, appt.AdditionalImages)
}

func TestBookSameSlotTwiceFails(t *testing.T) {
	f := newFixture(t)
	f.book(t, "10:00")

	_, err := f.coord.Book(context.Background(), BookRequest{
		PatientID: f.patient.ID, ProviderID: f.provider.ID, Date: "2024-01-01", Time: "10:00", Symptoms: intake,
	})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestConcurrentBookExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	const attempts = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.coord.Book(context.Background(), BookRequest{
				PatientID: f.patient.ID, ProviderID: f.provider.ID, Date: "2024-01-01", Time: "10:00", Symptoms: intake,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSlotUnavailable):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)

	booked, err := f.ledger.ListActiveForProviderOn(context.Background(), f.provider.ID, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, booked, 1)
	assert.Equal(t, StatusPending, booked[0].Status)
}

func TestConcurrentBookAndRescheduleExactlyOneWins(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newFixture(t)
		existing := f.book(t, "09:00")

		var bookErr, moveErr error
		var wg sync.WaitGroup
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, bookErr = f.coord.Book(context.Background(), BookRequest{
				PatientID: f.patient.ID, ProviderID: f.provider.ID, Date: "2024-01-01", Time: "11:00", Symptoms: intake,
			})
		}()
		go func() {
			defer wg.Done()
			<-start
			_, moveErr = f.coord.Reschedule(context.Background(), existing.ID, f.patient.UserID, RescheduleRequest{Date: "2024-01-01", Time: "11:00"})
		}()
		close(start)
		wg.Wait()

		if (bookErr == nil) == (moveErr == nil) {
			t.Fatalf("round %d: want exactly one winner, book=%v reschedule=%v", round, bookErr, moveErr)
		}
		for _, err := range []error{bookErr, moveErr} {
			if err != nil {
				require.ErrorIs(t, err, ErrSlotUnavailable)
			}
		}

		booked, err := f.ledger.ListActiveForProviderOn(context.Background(), f.provider.ID, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		want := 1
		if bookErr == nil {
			want = 2
		}
		require.Len(t, booked, want, "round %d", round)
		atEleven := 0
		for i := range booked {
			if booked[i].StartTime.Format("15:04") == "11:00" {
				atEleven++
			}
		}
		assert.Equal(t, 1, atEleven, "round %d", round)
	}
}

func TestBookRejectsClockSkippedByDaylightSaving(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	sched := schedule.NewService(schedule.NewInMemoryStore(), loc, nil)
	patient := Party{ID: uuid.New(), UserID: uuid.New(), Name: "Ada Obi"}
	provider := Party{ID: uuid.New(), UserID: uuid.New(), Name: "Dr. Grace Eze"}
	_, err = sched.ReplaceOpeningHours(context.Background(), schedule.ProviderOwner(provider.ID), []schedule.HoursInput{
		{DayOfWeek: int(time.Sunday), Start: 1 * 60, End: 4 * 60},
	})
	require.NoError(t, err)

	m := metrics.NewBookingMetrics(prometheus.NewRegistry())
	now := time.Date(2024, time.March, 1, 8, 0, 0, 0, loc)
	ledger := NewInMemoryLedger()
	resolver := NewResolver(sched, ledger, loc, func() time.Time { return now }, m)
	parties := &fakeParties{
		patients:  map[uuid.UUID]Party{patient.ID: patient},
		providers: map[uuid.UUID]Party{provider.ID: provider},
	}
	coord := NewCoordinator(ledger, resolver, parties, &fakeNotifier{}, nil, m)
	book := func(clock string) (*Appointment, error) {
		return coord.Book(context.Background(), BookRequest{
			PatientID: patient.ID, ProviderID: provider.ID, Date: "2024-03-10", Time: clock, Symptoms: intake,
		})
	}

	// 02:00-02:59 never happens on 2024-03-10 in New York.
	_, err = book("02:30")
	assert.ErrorIs(t, err, ErrInvalidInput)

	early, err := book("01:30")
	require.NoError(t, err)
	assert.Equal(t, "01:30 EST", early.StartTime.In(loc).Format("15:04 MST"))

	late, err := book("03:00")
	require.NoError(t, err)
	assert.Equal(t, "03:00 EDT", late.StartTime.In(loc).Format("15:04 MST"))
}

func TestCancelCompletedAppointmentIsAllowed(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "10:00")
	_, err := f.ledger.SetStatus(context.Background(), appt.ID, StatusCompleted)
	require.NoError(t, err)

	cancelled, err := f.coord.Cancel(context.Background(), appt.ID, f.patient.UserID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	// cancelling again just re-stamps
	again, err := f.coord.Cancel(context.Background(), appt.ID, f.patient.UserID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, again.Status)

	sent := f.notifier.requests()
	require.Len(t, sent, 3)
	assert.Equal(t, notifications.TypeAppointmentCancelled, sent[1].Type)
	assert.Equal(t, f.provider.UserID, sent[1].UserID)
}

func TestCancelFreesSlot(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "10:00")

	_, err := f.coord.Cancel(context.Background(), appt.ID, f.provider.UserID)
	require.NoError(t, err)
	// provider cancelled, so the patient hears about it
	sent := f.notifier.requests()
	assert.Equal(t, f.patient.UserID, sent[len(sent)-1].UserID)

	f.book(t, "10:00")
}

func TestCancelErrors(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "10:00")

	_, err := f.coord.Cancel(context.Background(), uuid.New(), f.patient.UserID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.coord.Cancel(context.Background(), appt.ID, uuid.New())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRescheduleMovesWithinSameDay(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "10:00")

	moved, err := f.coord.Reschedule(context.Background(), appt.ID, f.patient.UserID, RescheduleRequest{Date: "2024-01-01", Time: "11:00"})
	require.NoError(t, err)
	assert.Equal(t, appt.ID, moved.ID)
	assert.Equal(t, "11:00", moved.StartTime.Format("15:04"))
	assert.Equal(t, "11:30", moved.EndTime.Format("15:04"))
	assert.Equal(t, "Appointment rescheduled on Monday, January 1 2024 at 11:00", moved.Description)

	free, err := f.resolver.Resolve(context.Background(), f.provider.ID, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, free, 5)
	for _, slot := range free {
		assert.NotEqual(t, "11:00", slot.Start.Format("15:04"))
	}

	sent := f.notifier.requests()
	assert.Equal(t, notifications.TypeAppointmentRescheduled, sent[len(sent)-1].Type)
}

func TestRescheduleOntoOwnSlotOverlapIsAllowed(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "10:00")

	moved, err := f.coord.Reschedule(context.Background(), appt.ID, f.patient.UserID, RescheduleRequest{Date: "2024-01-01", Time: "10:00"})
	require.NoError(t, err)
	assert.Equal(t, "10:00", moved.StartTime.Format("15:04"))
}

func TestRescheduleConflictsAndTerminalStates(t *testing.T) {
	f := newFixture(t)
	first := f.book(t, "10:00")
	f.book(t, "11:00")

	_, err := f.coord.Reschedule(context.Background(), first.ID, f.patient.UserID, RescheduleRequest{Date: "2024-01-01", Time: "11:00"})
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	_, err = f.coord.Reschedule(context.Background(), first.ID, f.patient.UserID, RescheduleRequest{Date: "2024-01-01", Time: "25:00"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.coord.Reschedule(context.Background(), uuid.New(), f.patient.UserID, RescheduleRequest{Date: "2024-01-01", Time: "09:00"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.coord.Cancel(context.Background(), first.ID, f.patient.UserID)
	require.NoError(t, err)
	_, err = f.coord.Reschedule(context.Background(), first.ID, f.patient.UserID, RescheduleRequest{Date: "2024-01-01", Time: "09:00"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "10:00")

	_, err := f.coord.Confirm(context.Background(), appt.ID, uuid.New())
	assert.ErrorIs(t, err, ErrForbidden)

	confirmed, err := f.coord.Confirm(context.Background(), appt.ID, f.provider.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusUpcoming, confirmed.Status)

	_, err = f.coord.Confirm(context.Background(), appt.ID, f.provider.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNotificationFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("redis down")

	appt := f.book(t, "09:30")
	assert.Equal(t, StatusPending, appt.Status)

	stored, err := f.ledger.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.StartTime, stored.StartTime)
}

func TestListAndCounts(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, "09:00")
	f.book(t, "10:00")
	_, err := f.ledger.SetStatus(context.Background(), a.ID, StatusCompleted)
	require.NoError(t, err)

	upcoming, err := f.coord.List(context.Background(), ListFilter{PatientID: f.patient.ID, Scope: ScopeUpcoming})
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "10:00", upcoming[0].StartTime.Format("15:04"))

	completed, err := f.coord.List(context.Background(), ListFilter{ProviderID: f.provider.ID, Scope: ScopeCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)

	past, err := f.coord.List(context.Background(), ListFilter{PatientID: f.patient.ID, Scope: ScopePast})
	require.NoError(t, err)
	assert.Empty(t, past)

	counts, err := f.coord.Counts(context.Background(), ListFilter{PatientID: f.patient.ID})
	require.NoError(t, err)
	assert.Equal(t, Counts{Total: 2, Pending: 1, Completed: 1}, counts)
}
