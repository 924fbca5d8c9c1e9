// Package directory owns user profiles: patients, health care providers,
// centers and the relationships between them.
package directory

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/careconnect-platform/internal/identity"
)

var (
	ErrInvalidInput = errors.New("directory: invalid input")
	ErrNotFound     = errors.New("directory: not found")
)

// User is the account behind a profile.
type User struct {
	ID                        uuid.UUID     `json:"id"`
	Name                      string        `json:"name"`
	Email                     string        `json:"email"`
	Role                      identity.Role `json:"role"`
	ReceiveEmailNotifications bool          `json:"receiveEmailNotifications"`
}

type Patient struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
}

type Provider struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"userId"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Speciality    string     `json:"speciality"`
	OfficeState   string     `json:"officeState"`
	Verified      bool       `json:"verified"`
	CredentialURL *string    `json:"credentialUrl,omitempty"`
	CenterID      *uuid.UUID `json:"healthCareCenterId,omitempty"`
	AverageRating float64    `json:"averageRating"`
	ReviewCount   int        `json:"reviewCount"`
}

type Center struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	OfficeState string    `json:"officeState"`
}

type Review struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patientId"`
	ProviderID uuid.UUID `json:"providerId"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SearchFilter matches providers exactly on each non-empty field.
type SearchFilter struct {
	Speciality string
	Location   string
}

func (f SearchFilter) matches(p Provider) bool {
	if f.Speciality != "" && p.Speciality != f.Speciality {
		return false
	}
	if f.Location != "" && p.OfficeState != f.Location {
		return false
	}
	return true
}
