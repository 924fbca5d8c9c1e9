package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNoProfile means the session's user has no profile of the requested kind.
var ErrNoProfile = errors.New("identity: no profile for user")

// ProfileResolver maps a session user to the role-specific profile id the
// core services are keyed on.
type ProfileResolver interface {
	PatientIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	ProviderIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	CenterIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}
