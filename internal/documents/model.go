package documents

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("documents: invalid input")
	ErrNotFound     = errors.New("documents: not found")
)

// RecentLimit is how many documents the patient dashboard lists.
const RecentLimit = 5

// Document is a medical record a patient keeps on file. The file itself
// lives wherever the Uploader put it.
type Document struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patientId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	ContentType string    `json:"contentType"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Summary backs the patient dashboard.
type Summary struct {
	Total  int        `json:"total"`
	Recent []Document `json:"recent"`
}
