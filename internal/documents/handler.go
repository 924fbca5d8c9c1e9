package documents

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/careconnect-platform/internal/identity"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// PatientResolver maps the signed-in user to their patient profile.
type PatientResolver interface {
	PatientIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}

type Handler struct {
	service  *Service
	patients PatientResolver
	logger   *logging.Logger
}

func NewHandler(service *Service, patients PatientResolver, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, patients: patients, logger: logger}
}

// List handles GET /patient/documents.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.patientID(w, r)
	if !ok {
		return
	}
	docs, err := h.service.List(r.Context(), patientID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// Summary handles GET /patient/documents/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.patientID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summary(r.Context(), patientID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Upload handles POST /patient/documents with a multipart "file" plus
// optional "title" and "description" fields.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.patientID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		jsonError(w, "invalid upload", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	doc, err := h.service.Upload(r.Context(), patientID, UploadRequest{
		Name:        r.FormValue("title"),
		Description: r.FormValue("description"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// Delete handles DELETE /patient/documents/{documentID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		jsonError(w, "invalid documentID", http.StatusBadRequest)
		return
	}
	patientID, ok := h.patientID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), patientID, documentID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) patientID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	session, ok := identity.FromContext(r.Context())
	if !ok {
		jsonError(w, "not authenticated", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	patientID, err := h.patients.PatientIDForUser(r.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrNoProfile) {
			jsonError(w, "profile not found", http.StatusForbidden)
		} else {
			h.writeError(w, err)
		}
		return uuid.Nil, false
	}
	return patientID, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		jsonError(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrNotConfigured):
		jsonError(w, "document storage unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.Error("documents request failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
