package schedule

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

// Handler serves opening hours, absences and raw slots.
type Handler struct {
	service  *Service
	profiles identity.ProfileResolver
	logger   *logging.Logger
}

func NewHandler(service *Service, profiles identity.ProfileResolver, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, profiles: profiles, logger: logger}
}

// GetProviderHours handles GET /providers/{providerID}/opening-hours.
func (h *Handler) GetProviderHours(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "providerID")
	if !ok {
		return
	}
	h.listHours(w, r, ProviderOwner(id))
}

// GetCenterHours handles GET /centers/{centerID}/opening-hours.
func (h *Handler) GetCenterHours(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "centerID")
	if !ok {
		return
	}
	h.listHours(w, r, CenterOwner(id))
}

func (h *Handler) listHours(w http.ResponseWriter, r *http.Request, owner Owner) {
	hours, err := h.service.OpeningHours(r.Context(), owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if hours == nil {
		hours = []OpeningHours{}
	}
	writeJSON(w, http.StatusOK, hours)
}

// PutProviderHours handles PUT /hp/opening-hours.
func (h *Handler) PutProviderHours(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.sessionOwner(w, r, OwnerProvider)
	if !ok {
		return
	}
	h.replaceHours(w, r, owner)
}

// PutCenterHours handles PUT /hc/opening-hours.
func (h *Handler) PutCenterHours(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.sessionOwner(w, r, OwnerCenter)
	if !ok {
		return
	}
	h.replaceHours(w, r, owner)
}

type replaceHoursRequest struct {
	OpeningHours []HoursInput `json:"openingHours"`
}

func (h *Handler) replaceHours(w http.ResponseWriter, r *http.Request, owner Owner) {
	var req replaceHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	hours, err := h.service.ReplaceOpeningHours(r.Context(), owner, req.OpeningHours)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hours)
}

// ListAbsences handles GET /hp/absences.
func (h *Handler) ListAbsences(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.sessionOwner(w, r, OwnerProvider)
	if !ok {
		return
	}
	absences, err := h.service.Absences(r.Context(), owner.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if absences == nil {
		absences = []Absence{}
	}
	writeJSON(w, http.StatusOK, absences)
}

type absenceRequest struct {
	Date   string  `json:"date"`
	Reason *string `json:"reason"`
}

// CreateAbsence handles POST /hp/absences.
func (h *Handler) CreateAbsence(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.sessionOwner(w, r, OwnerProvider)
	if !ok {
		return
	}
	var req absenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	day, err := ParseDate(req.Date, h.service.Location())
	if err != nil {
		h.writeError(w, err)
		return
	}
	absence, err := h.service.AddAbsence(r.Context(), owner.ID, day, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, absence)
}

// DeleteAbsence handles DELETE /hp/absences/{absenceID}.
func (h *Handler) DeleteAbsence(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.sessionOwner(w, r, OwnerProvider)
	if !ok {
		return
	}
	absenceID, ok := urlUUID(w, r, "absenceID")
	if !ok {
		return
	}
	if err := h.service.RemoveAbsence(r.Context(), owner.ID, absenceID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CenterSlots handles GET /centers/{centerID}/slots?date=YYYY-MM-DD.
func (h *Handler) CenterSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "centerID")
	if !ok {
		return
	}
	day, err := ParseDate(r.URL.Query().Get("date"), h.service.Location())
	if err != nil {
		h.writeError(w, err)
		return
	}
	slots, err := h.service.Slots(r.Context(), CenterOwner(id), day)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *Handler) sessionOwner(w http.ResponseWriter, r *http.Request, kind OwnerKind) (Owner, bool) {
	session, ok := identity.FromContext(r.Context())
	if !ok {
		jsonError(w, "not authenticated", http.StatusUnauthorized)
		return Owner{}, false
	}
	var (
		resolve func(context.Context, uuid.UUID) (uuid.UUID, error)
		id      uuid.UUID
		err     error
	)
	if kind == OwnerCenter {
		resolve = h.profiles.CenterIDForUser
	} else {
		resolve = h.profiles.ProviderIDForUser
	}
	id, err = resolve(r.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrNoProfile) {
			jsonError(w, "profile not found", http.StatusForbidden)
			return Owner{}, false
		}
		h.logger.Error("failed to resolve profile", "user_id", session.UserID.String(), "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return Owner{}, false
	}
	return Owner{Kind: kind, ID: id}, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		jsonError(w, "not found", http.StatusNotFound)
	default:
		h.logger.Error("schedule request failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func urlUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		jsonError(w, "invalid "+param, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
