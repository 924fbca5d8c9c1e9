package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/careconnect-platform/internal/observability/metrics"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

var notificationsTracer = otel.Tracer("careconnect.internal.notifications")

// EmailTimeout bounds a single notification email, measured from Emit.
const EmailTimeout = 10 * time.Second

// Recipient is the contact view of a user used for email fan-out.
type Recipient struct {
	Email     string
	Name      string
	WantEmail bool
}

// RecipientLookup resolves a user's email address and preference.
type RecipientLookup interface {
	Recipient(ctx context.Context, userID uuid.UUID) (Recipient, error)
}

// Dispatcher creates notifications and delivers them. Persistence is the
// only step whose failure reaches the caller. Emails are sent in the
// background; Flush waits for them.
type Dispatcher struct {
	store      Store
	publisher  Publisher
	email      EmailSender
	recipients RecipientLookup
	logger     *logging.Logger
	metrics    *metrics.NotificationMetrics
	now        func() time.Time

	emails sync.WaitGroup
}

func NewDispatcher(store Store, publisher Publisher, logger *logging.Logger, m *metrics.NotificationMetrics) *Dispatcher {
	if store == nil {
		panic("notifications: store required")
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// WithEmail enables email fan-out for recipients who opted in.
func (d *Dispatcher) WithEmail(sender EmailSender, recipients RecipientLookup) *Dispatcher {
	d.email = sender
	d.recipients = recipients
	return d
}

func (d *Dispatcher) Emit(ctx context.Context, req EmitRequest) (*Notification, error) {
	ctx, span := notificationsTracer.Start(ctx, "notifications.emit", trace.WithAttributes(
		attribute.String("careconnect.notification_type", string(req.Type)),
		attribute.String("careconnect.user_id", req.UserID.String()),
	))
	defer span.End()

	if req.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: recipient required", ErrInvalidInput)
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidInput, req.Type)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	n := &Notification{
		ID:          uuid.New(),
		Type:        req.Type,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Date:        d.now().UTC(),
		UserID:      req.UserID,
	}
	if req.Type == TypeInvitation {
		if req.HealthCareCenterID == nil || *req.HealthCareCenterID == uuid.Nil {
			return nil, fmt.Errorf("%w: invitation requires a health care center", ErrInvalidInput)
		}
		center := *req.HealthCareCenterID
		n.HealthCareCenterID = &center
	}

	if err := d.store.Insert(ctx, n); err != nil {
		span.RecordError(err)
		d.logger.Error("failed to persist notification", "error", err, "user_id", req.UserID, "type", req.Type)
		return nil, err
	}
	d.metrics.ObserveEmitted(string(n.Type))

	if err := d.publisher.Publish(ctx, Channel(n.UserID), EventNew, n); err != nil {
		span.RecordError(err)
		d.metrics.ObservePublish("error")
		d.logger.Warn("failed to publish notification", "error", err, "notification_id", n.ID, "user_id", n.UserID)
	} else {
		d.metrics.ObservePublish("ok")
	}

	if d.email != nil && d.recipients != nil {
		sent := *n
		d.emails.Add(1)
		go func() {
			defer d.emails.Done()
			// the request may finish first; keep its values but not its deadline
			emailCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), EmailTimeout)
			defer cancel()
			d.sendEmail(emailCtx, &sent)
		}()
	}
	return n, nil
}

// Flush blocks until every email started by Emit has finished or ctx is done.
func (d *Dispatcher) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.emails.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, n *Notification) {
	rcpt, err := d.recipients.Recipient(ctx, n.UserID)
	if err != nil {
		d.metrics.ObserveEmail("lookup_error")
		d.logger.Warn("email recipient lookup failed", "error", err, "user_id", n.UserID)
		return
	}
	if !rcpt.WantEmail || rcpt.Email == "" {
		d.metrics.ObserveEmail("skipped")
		return
	}
	msg := EmailMessage{
		To:      rcpt.Email,
		ToName:  rcpt.Name,
		Subject: n.Title,
		Body:    n.Description,
	}
	if err := d.email.Send(ctx, msg); err != nil {
		d.metrics.ObserveEmail("error")
		d.logger.Warn("notification email failed", "error", err, "notification_id", n.ID)
		return
	}
	d.metrics.ObserveEmail("sent")
}

// MarkAsRead is idempotent.
func (d *Dispatcher) MarkAsRead(ctx context.Context, userID, id uuid.UUID) (*Notification, error) {
	n, err := d.store.MarkRead(ctx, userID, id)
	return n, d.storeError("mark read", err)
}

// Archive sets both read and archived. It is idempotent.
func (d *Dispatcher) Archive(ctx context.Context, userID, id uuid.UUID) (*Notification, error) {
	n, err := d.store.Archive(ctx, userID, id)
	return n, d.storeError("archive", err)
}

func (d *Dispatcher) List(ctx context.Context, userID uuid.UUID) ([]Notification, error) {
	list, err := d.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, d.storeError("list", err)
	}
	if list == nil {
		list = []Notification{}
	}
	return list, nil
}

func (d *Dispatcher) Get(ctx context.Context, id uuid.UUID) (*Notification, error) {
	n, err := d.store.Get(ctx, id)
	return n, d.storeError("get", err)
}

func (d *Dispatcher) storeError(action string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	d.logger.Error("notification store failure", "action", action, "error", err)
	return err
}
