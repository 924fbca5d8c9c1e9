package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/careconnect-platform/internal/appointments"
	"github.com/wolfman30/careconnect-platform/internal/documents"
	"github.com/wolfman30/careconnect-platform/internal/identity"
	"github.com/wolfman30/careconnect-platform/internal/notifications"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// Notifier is the part of the notification dispatcher the directory needs.
type Notifier interface {
	Emit(ctx context.Context, req notifications.EmitRequest) (*notifications.Notification, error)
	Get(ctx context.Context, id uuid.UUID) (*notifications.Notification, error)
	MarkAsRead(ctx context.Context, userID, id uuid.UUID) (*notifications.Notification, error)
}

type Service struct {
	store    Store
	notifier Notifier
	uploader documents.Uploader
	logger   *logging.Logger
	now      func() time.Time
}

func NewService(store Store, notifier Notifier, uploader documents.Uploader, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, notifier: notifier, uploader: uploader, logger: logger, now: time.Now}
}

func (s *Service) PatientIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	p, err := s.store.PatientByUserID(ctx, userID)
	if err != nil {
		return uuid.Nil, noProfile(err)
	}
	return p.ID, nil
}

func (s *Service) ProviderIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	p, err := s.store.ProviderByUserID(ctx, userID)
	if err != nil {
		return uuid.Nil, noProfile(err)
	}
	return p.ID, nil
}

func (s *Service) CenterIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	c, err := s.store.CenterByUserID(ctx, userID)
	if err != nil {
		return uuid.Nil, noProfile(err)
	}
	return c.ID, nil
}

func noProfile(err error) error {
	if errors.Is(err, ErrNotFound) {
		return identity.ErrNoProfile
	}
	return err
}

// Parties adapts the directory to the booking coordinator.
func (s *Service) Parties() appointments.Parties {
	return parties{store: s.store}
}

type parties struct {
	store Store
}

func (p parties) Patient(ctx context.Context, patientID uuid.UUID) (appointments.Party, error) {
	pt, err := p.store.Patient(ctx, patientID)
	if err != nil {
		return appointments.Party{}, partyError("patient", patientID, err)
	}
	return appointments.Party{ID: pt.ID, UserID: pt.UserID, Name: pt.Name}, nil
}

func (p parties) Provider(ctx context.Context, providerID uuid.UUID) (appointments.Party, error) {
	pr, err := p.store.Provider(ctx, providerID)
	if err != nil {
		return appointments.Party{}, partyError("provider", providerID, err)
	}
	return appointments.Party{ID: pr.ID, UserID: pr.UserID, Name: pr.Name}, nil
}

func partyError(kind string, id uuid.UUID, err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %s %s", appointments.ErrNotFound, kind, id)
	}
	return fmt.Errorf("%w: %w", appointments.ErrStorage, err)
}

// Recipient implements notifications.RecipientLookup.
func (s *Service) Recipient(ctx context.Context, userID uuid.UUID) (notifications.Recipient, error) {
	u, err := s.store.User(ctx, userID)
	if err != nil {
		return notifications.Recipient{}, err
	}
	return notifications.Recipient{Email: u.Email, Name: u.Name, WantEmail: u.ReceiveEmailNotifications}, nil
}

func (s *Service) Provider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return s.store.Provider(ctx, id)
}

func (s *Service) SearchProviders(ctx context.Context, filter SearchFilter) ([]Provider, error) {
	filter.Speciality = strings.TrimSpace(filter.Speciality)
	filter.Location = strings.TrimSpace(filter.Location)
	return s.store.SearchProviders(ctx, filter)
}

// SearchCenters returns each center employing at least one matching
// provider, once, in first-seen order.
func (s *Service) SearchCenters(ctx context.Context, filter SearchFilter) ([]Center, error) {
	providers, err := s.SearchProviders(ctx, filter)
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]struct{})
	out := []Center{}
	for _, p := range providers {
		if p.CenterID == nil {
			continue
		}
		if _, ok := seen[*p.CenterID]; ok {
			continue
		}
		seen[*p.CenterID] = struct{}{}
		c, err := s.store.Center(ctx, *p.CenterID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func (s *Service) CenterProviders(ctx context.Context, centerID uuid.UUID) ([]Provider, error) {
	return s.store.CenterProviders(ctx, centerID)
}

func (s *Service) VerifyProvider(ctx context.Context, providerID uuid.UUID, verified bool) (*Provider, error) {
	if err := s.store.SetVerified(ctx, providerID, verified); err != nil {
		return nil, err
	}
	s.logger.Info("provider verification updated", "provider_id", providerID, "verified", verified)
	return s.store.Provider(ctx, providerID)
}

// SubmitCredential uploads a credential document and records its URL on
// the provider. Verification stays with an admin.
func (s *Service) SubmitCredential(ctx context.Context, providerID uuid.UUID, filename, contentType string, body io.Reader) (*Provider, error) {
	if s.uploader == nil {
		return nil, documents.ErrNotConfigured
	}
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: file name required", ErrInvalidInput)
	}
	if _, err := s.store.Provider(ctx, providerID); err != nil {
		return nil, err
	}
	key := documents.CredentialKey(providerID.String(), uuid.NewString(), filename)
	url, err := s.uploader.Upload(ctx, key, contentType, body)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetCredentialURL(ctx, providerID, url); err != nil {
		return nil, err
	}
	return s.store.Provider(ctx, providerID)
}

// Invite asks a provider to join a center's team.
func (s *Service) Invite(ctx context.Context, centerID, providerID uuid.UUID) (*notifications.Notification, error) {
	center, err := s.store.Center(ctx, centerID)
	if err != nil {
		return nil, err
	}
	provider, err := s.store.Provider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if provider.CenterID != nil && *provider.CenterID == centerID {
		return nil, fmt.Errorf("%w: provider already belongs to this center", ErrInvalidInput)
	}
	return s.notifier.Emit(ctx, notifications.EmitRequest{
		UserID:             provider.UserID,
		Type:               notifications.TypeInvitation,
		Title:              "Invitation from " + center.Name,
		Description:        center.Name + " invited you to join their team",
		HealthCareCenterID: &center.ID,
	})
}

// AcceptInvitation joins the provider to the center named by one of their
// own INVITATION notifications and marks it read.
func (s *Service) AcceptInvitation(ctx context.Context, providerID, notificationID uuid.UUID) (*Provider, error) {
	provider, err := s.store.Provider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	n, err := s.notifier.Get(ctx, notificationID)
	if err != nil {
		if errors.Is(err, notifications.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if n.UserID != provider.UserID {
		return nil, ErrNotFound
	}
	if n.Type != notifications.TypeInvitation || n.HealthCareCenterID == nil {
		return nil, fmt.Errorf("%w: notification is not an invitation", ErrInvalidInput)
	}
	if err := s.store.SetCenter(ctx, providerID, *n.HealthCareCenterID); err != nil {
		return nil, err
	}
	if _, err := s.notifier.MarkAsRead(ctx, provider.UserID, n.ID); err != nil {
		s.logger.Warn("failed to mark invitation read", "error", err, "notification_id", n.ID)
	}
	s.logger.Info("provider joined center", "provider_id", providerID, "center_id", *n.HealthCareCenterID)
	return s.store.Provider(ctx, providerID)
}

// AddReview records a patient's rating and tells the provider about it.
func (s *Service) AddReview(ctx context.Context, patientID, providerID uuid.UUID, rating int, comment string) (*Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	patient, err := s.store.Patient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	provider, err := s.store.Provider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	review := &Review{
		ID:         uuid.New(),
		PatientID:  patientID,
		ProviderID: providerID,
		Rating:     rating,
		Comment:    strings.TrimSpace(comment),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.InsertReview(ctx, review); err != nil {
		return nil, err
	}
	if _, err := s.notifier.Emit(ctx, notifications.EmitRequest{
		UserID:      provider.UserID,
		Type:        notifications.TypeReview,
		Title:       "New review",
		Description: fmt.Sprintf("%s rated you %d/5", patient.Name, rating),
	}); err != nil {
		s.logger.Warn("failed to emit review notification", "error", err, "provider_id", providerID)
	}
	return review, nil
}

var (
	_ identity.ProfileResolver      = (*Service)(nil)
	_ notifications.RecipientLookup = (*Service)(nil)
)
