// Package notifications persists user notifications and pushes them to
// connected clients over a per-user real-time channel.
package notifications

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type classifies what a notification is about.
type Type string

const (
	TypeNewAppointment         Type = "NEW_APPOINTMENT"
	TypeAppointmentCancelled   Type = "APPOINTMENT_CANCELLED"
	TypeAppointmentRescheduled Type = "APPOINTMENT_RESCHEDULED"
	TypeReview                 Type = "REVIEW"
	TypeInvitation             Type = "INVITATION"
)

func (t Type) Valid() bool {
	switch t {
	case TypeNewAppointment, TypeAppointmentCancelled, TypeAppointmentRescheduled, TypeReview, TypeInvitation:
		return true
	}
	return false
}

// EventNew is the real-time event name for a freshly created notification.
const EventNew = "notifications:new"

// Channel is the per-recipient real-time channel name.
func Channel(userID uuid.UUID) string {
	return channelPrefix + userID.String()
}

const channelPrefix = "notifications-"

var (
	ErrInvalidInput = errors.New("notifications: invalid input")
	ErrNotFound     = errors.New("notifications: not found")
)

// Notification is one entry in a user's feed. Archived implies Read.
type Notification struct {
	ID                 uuid.UUID  `json:"id"`
	Type               Type       `json:"type"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Date               time.Time  `json:"date"`
	Read               bool       `json:"read"`
	Archived           bool       `json:"archived"`
	UserID             uuid.UUID  `json:"userId"`
	HealthCareCenterID *uuid.UUID `json:"healthCareCenterId,omitempty"`
}

// EmitRequest describes a notification to create.
type EmitRequest struct {
	UserID      uuid.UUID
	Type        Type
	Title       string
	Description string
	// HealthCareCenterID is required for INVITATION and ignored otherwise.
	HealthCareCenterID *uuid.UUID
}
