// Package dashboard serves platform-wide statistics to administrators.
package dashboard

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lib/pq"

	"github.com/wolfman30/careconnect-platform/internal/appointments"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// NewPatientWindow is how far back a patient counts as new.
const NewPatientWindow = 3 * 24 * time.Hour

var trackedStatuses = []string{
	string(appointments.StatusPending),
	string(appointments.StatusUpcoming),
	string(appointments.StatusCompleted),
	string(appointments.StatusCancelled),
}

type Overview struct {
	TotalPatients        int            `json:"totalPatients"`
	NewPatients          int            `json:"newPatients"`
	TotalProviders       int            `json:"totalProviders"`
	AwaitingVerification int            `json:"awaitingVerification"`
	Appointments         map[string]int `json:"appointments"`
	GeneratedAt          time.Time      `json:"generatedAt"`
}

type PendingProvider struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Speciality    string  `json:"speciality"`
	CredentialURL *string `json:"credentialUrl,omitempty"`
}

type Handler struct {
	db     *sql.DB
	logger *logging.Logger
	now    func() time.Time
}

func NewHandler(db *sql.DB, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{db: db, logger: logger, now: time.Now}
}

// Overview handles GET /admin/dashboard.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	out, err := h.overview(r.Context())
	if err != nil {
		h.logger.Error("dashboard overview failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) overview(ctx context.Context) (*Overview, error) {
	now := h.now().UTC()
	out := &Overview{Appointments: make(map[string]int, len(trackedStatuses)), GeneratedAt: now}
	for _, s := range trackedStatuses {
		out.Appointments[s] = 0
	}

	counts := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&out.TotalPatients, `SELECT COUNT(*) FROM patients`, nil},
		{&out.NewPatients, `SELECT COUNT(*) FROM patients WHERE created_at >= $1`, []any{now.Add(-NewPatientWindow)}},
		{&out.TotalProviders, `SELECT COUNT(*) FROM health_care_providers`, nil},
		{&out.AwaitingVerification, `SELECT COUNT(*) FROM health_care_providers WHERE NOT verified`, nil},
	}
	for _, c := range counts {
		if err := h.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("dashboard: %s: %w", c.query, err)
		}
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM appointments WHERE status = ANY($1) GROUP BY status`,
		pq.Array(trackedStatuses))
	if err != nil {
		return nil, fmt.Errorf("dashboard: appointment counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("dashboard: scan appointment counts: %w", err)
		}
		out.Appointments[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dashboard: appointment counts: %w", err)
	}
	return out, nil
}

// PendingProviders handles GET /admin/providers/pending.
func (h *Handler) PendingProviders(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryContext(r.Context(), `
		SELECT p.id, u.name, u.email, p.speciality, p.credential_url
		FROM health_care_providers p
		JOIN users u ON u.id = p.user_id
		WHERE NOT p.verified
		ORDER BY p.created_at ASC`)
	if err != nil {
		h.logger.Error("failed to list pending providers", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	out := []PendingProvider{}
	for rows.Next() {
		var (
			p   PendingProvider
			url sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.Speciality, &url); err != nil {
			h.logger.Error("failed to scan pending provider", "error", err)
			jsonError(w, "internal error", http.StatusInternalServerError)
			return
		}
		if url.Valid {
			p.CredentialURL = &url.String
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("failed to list pending providers", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
