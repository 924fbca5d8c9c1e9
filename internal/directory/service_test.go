package directory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/careconnect-platform/internal/appointments"
	"github.com/wolfman30/careconnect-platform/internal/documents"
	"github.com/wolfman30/careconnect-platform/internal/identity"
	"github.com/wolfman30/careconnect-platform/internal/notifications"
)

type world struct {
	store      *InMemoryStore
	feed       *notifications.Dispatcher
	uploads    *recordingUploader
	svc        *Service
	patient    Patient
	provider   Provider
	other      Provider
	center     Center
	centerUser uuid.UUID
}

type recordingUploader struct {
	keys []string
	err  error
}

func (u *recordingUploader) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	_, _ = io.Copy(io.Discard, body)
	u.keys = append(u.keys, key)
	return "https://docs.example.com/" + key, nil
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{store: NewInMemoryStore(), uploads: &recordingUploader{}}
	w.feed = notifications.NewDispatcher(notifications.NewInMemoryStore(), nil, nil, nil)
	w.svc = NewService(w.store, w.feed, w.uploads, nil)

	patientUser, providerUser, otherUser := uuid.New(), uuid.New(), uuid.New()
	w.centerUser = uuid.New()
	w.store.AddUser(User{ID: patientUser, Name: "Pat Doe", Email: "pat@example.com", Role: identity.RolePatient, ReceiveEmailNotifications: true})
	w.store.AddUser(User{ID: providerUser, Name: "Dr Ada", Email: "ada@example.com", Role: identity.RoleProvider})
	w.store.AddUser(User{ID: otherUser, Name: "Dr Bo", Email: "bo@example.com", Role: identity.RoleProvider})
	w.store.AddUser(User{ID: w.centerUser, Name: "Lakeside", Email: "desk@lakeside.example.com", Role: identity.RoleCenter})

	w.patient = Patient{ID: uuid.New(), UserID: patientUser}
	w.provider = Provider{ID: uuid.New(), UserID: providerUser, Speciality: "cardiology", OfficeState: "CA"}
	w.other = Provider{ID: uuid.New(), UserID: otherUser, Speciality: "dermatology", OfficeState: "NY"}
	w.center = Center{ID: uuid.New(), UserID: w.centerUser, Name: "Lakeside Clinic", OfficeState: "CA"}
	w.store.AddPatient(w.patient)
	w.store.AddProvider(w.provider)
	w.store.AddProvider(w.other)
	w.store.AddCenter(w.center)
	return w
}

func TestProfileResolution(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	id, err := w.svc.PatientIDForUser(ctx, w.patient.UserID)
	require.NoError(t, err)
	assert.Equal(t, w.patient.ID, id)

	id, err = w.svc.CenterIDForUser(ctx, w.centerUser)
	require.NoError(t, err)
	assert.Equal(t, w.center.ID, id)

	_, err = w.svc.ProviderIDForUser(ctx, w.patient.UserID)
	assert.ErrorIs(t, err, identity.ErrNoProfile)
}

func TestPartiesAdapter(t *testing.T) {
	w := newWorld(t)
	parties := w.svc.Parties()

	p, err := parties.Provider(context.Background(), w.provider.ID)
	require.NoError(t, err)
	assert.Equal(t, appointments.Party{ID: w.provider.ID, UserID: w.provider.UserID, Name: "Dr Ada"}, p)

	_, err = parties.Patient(context.Background(), uuid.New())
	assert.ErrorIs(t, err, appointments.ErrNotFound)
}

func TestRecipient(t *testing.T) {
	w := newWorld(t)
	rcpt, err := w.svc.Recipient(context.Background(), w.patient.UserID)
	require.NoError(t, err)
	assert.Equal(t, notifications.Recipient{Email: "pat@example.com", Name: "Pat Doe", WantEmail: true}, rcpt)
}

func TestSearch(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	require.NoError(t, w.store.SetCenter(ctx, w.provider.ID, w.center.ID))

	all, err := w.svc.SearchProviders(ctx, SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	ca, err := w.svc.SearchProviders(ctx, SearchFilter{Location: " CA "})
	require.NoError(t, err)
	require.Len(t, ca, 1)
	assert.Equal(t, w.provider.ID, ca[0].ID)

	none, err := w.svc.SearchProviders(ctx, SearchFilter{Speciality: "cardiology", Location: "NY"})
	require.NoError(t, err)
	assert.Empty(t, none)

	centers, err := w.svc.SearchCenters(ctx, SearchFilter{})
	require.NoError(t, err)
	require.Len(t, centers, 1)
	assert.Equal(t, w.center.ID, centers[0].ID)
}

func TestInviteAndAccept(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	invite, err := w.svc.Invite(ctx, w.center.ID, w.provider.ID)
	require.NoError(t, err)
	assert.Equal(t, notifications.TypeInvitation, invite.Type)
	assert.Equal(t, w.provider.UserID, invite.UserID)
	require.NotNil(t, invite.HealthCareCenterID)
	assert.Equal(t, w.center.ID, *invite.HealthCareCenterID)

	_, err = w.svc.AcceptInvitation(ctx, w.other.ID, invite.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	joined, err := w.svc.AcceptInvitation(ctx, w.provider.ID, invite.ID)
	require.NoError(t, err)
	require.NotNil(t, joined.CenterID)
	assert.Equal(t, w.center.ID, *joined.CenterID)

	stored, err := w.feed.Get(ctx, invite.ID)
	require.NoError(t, err)
	assert.True(t, stored.Read)

	team, err := w.svc.CenterProviders(ctx, w.center.ID)
	require.NoError(t, err)
	require.Len(t, team, 1)
	assert.Equal(t, w.provider.ID, team[0].ID)

	_, err = w.svc.Invite(ctx, w.center.ID, w.provider.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = w.svc.Invite(ctx, uuid.New(), w.other.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAcceptRejectsNonInvitation(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	review, err := w.feed.Emit(ctx, notifications.EmitRequest{UserID: w.provider.UserID, Type: notifications.TypeReview, Title: "New review"})
	require.NoError(t, err)

	_, err = w.svc.AcceptInvitation(ctx, w.provider.ID, review.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = w.svc.AcceptInvitation(ctx, w.provider.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddReview(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	for _, rating := range []int{0, 6} {
		_, err := w.svc.AddReview(ctx, w.patient.ID, w.provider.ID, rating, "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	}

	review, err := w.svc.AddReview(ctx, w.patient.ID, w.provider.ID, 4, " great ")
	require.NoError(t, err)
	assert.Equal(t, "great", review.Comment)
	_, err = w.svc.AddReview(ctx, w.patient.ID, w.provider.ID, 5, "")
	require.NoError(t, err)

	p, err := w.svc.Provider(ctx, w.provider.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.ReviewCount)
	assert.InDelta(t, 4.5, p.AverageRating, 0.001)

	feed, err := w.feed.List(ctx, w.provider.UserID)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, notifications.TypeReview, feed[0].Type)
	assert.Contains(t, []string{feed[0].Description, feed[1].Description}, "Pat Doe rated you 4/5")

	_, err = w.svc.AddReview(ctx, uuid.New(), w.provider.ID, 3, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyAndSubmitCredential(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	p, err := w.svc.SubmitCredential(ctx, w.provider.ID, "license.pdf", "application/pdf", bytes.NewBufferString("%PDF"))
	require.NoError(t, err)
	require.NotNil(t, p.CredentialURL)
	require.Len(t, w.uploads.keys, 1)
	assert.Equal(t, "https://docs.example.com/"+w.uploads.keys[0], *p.CredentialURL)
	assert.False(t, p.Verified)

	p, err = w.svc.VerifyProvider(ctx, w.provider.ID, true)
	require.NoError(t, err)
	assert.True(t, p.Verified)

	_, err = w.svc.VerifyProvider(ctx, uuid.New(), true)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = w.svc.SubmitCredential(ctx, w.provider.ID, " ", "", bytes.NewBufferString(""))
	assert.ErrorIs(t, err, ErrInvalidInput)

	w.uploads.err = errors.New("bucket missing")
	_, err = w.svc.SubmitCredential(ctx, w.provider.ID, "license.pdf", "", bytes.NewBufferString(""))
	assert.Error(t, err)

	noStorage := NewService(w.store, w.feed, nil, nil)
	_, err = noStorage.SubmitCredential(ctx, w.provider.ID, "license.pdf", "", bytes.NewBufferString(""))
	assert.ErrorIs(t, err, documents.ErrNotConfigured)
}
