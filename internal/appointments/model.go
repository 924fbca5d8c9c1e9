// Package appointments holds the booking ledger, the availability resolver
// and the coordinator that books, cancels and reschedules appointments.
package appointments

import (
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/careconnect-platform/internal/schedule"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusUpcoming  Status = "UPCOMING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Active appointments hold their slot.
func (s Status) Active() bool { return s != StatusCancelled }

// Terminal appointments cannot be moved or confirmed.
func (s Status) Terminal() bool { return s == StatusCancelled || s == StatusCompleted }

// Symptoms is the intake a patient fills in when booking a consultation.
type Symptoms struct {
	Type        string `json:"symptomsType"`
	Description string `json:"symptoms"`
	Duration    string `json:"symptomsDuration"`
	Length      string `json:"symptomsLength"`
	Severity    string `json:"symptomsSeverity"`
}

func (s *Symptoms) complete() bool {
	return s != nil && s.Type != "" && s.Description != "" && s.Duration != "" && s.Length != "" && s.Severity != ""
}

// Appointment occupies a fixed SlotDuration interval of one provider.
type Appointment struct {
	ID               uuid.UUID `json:"id"`
	PatientID        uuid.UUID `json:"patientId"`
	ProviderID       uuid.UUID `json:"providerId"`
	Date             time.Time `json:"date"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	Status           Status    `json:"status"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Symptoms         *Symptoms `json:"symptoms,omitempty"`
	AdditionalImages []string  `json:"additionalImages"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (a *Appointment) Interval() schedule.Interval {
	return schedule.Interval{Start: a.StartTime, End: a.EndTime}
}

// Scope selects which of a party's appointments to list.
type Scope string

const (
	ScopeAll       Scope = "all"
	ScopeUpcoming  Scope = "upcoming"
	ScopePast      Scope = "past"
	ScopeCompleted Scope = "completed"
)

func ParseScope(s string) (Scope, bool) {
	switch Scope(s) {
	case "", ScopeAll:
		return ScopeAll, true
	case ScopeUpcoming, ScopePast, ScopeCompleted:
		return Scope(s), true
	}
	return "", false
}

// ListFilter selects appointments of exactly one patient or one provider.
type ListFilter struct {
	PatientID  uuid.UUID
	ProviderID uuid.UUID
	Scope      Scope
	// Today splits upcoming from past.
	Today time.Time
}

// Counts summarizes a party's appointments for dashboard cards.
type Counts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Upcoming  int `json:"upcoming"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

func (c *Counts) add(status Status, n int) {
	c.Total += n
	switch status {
	case StatusPending:
		c.Pending += n
	case StatusUpcoming:
		c.Upcoming += n
	case StatusCompleted:
		c.Completed += n
	case StatusCancelled:
		c.Cancelled += n
	}
}
