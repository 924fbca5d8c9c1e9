package appointments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/careconnect-platform/internal/identity"
	"github.com/wolfman30/careconnect-platform/internal/schedule"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// Handler exposes availability and booking over HTTP.
type Handler struct {
	coordinator *Coordinator
	resolver    *Resolver
	profiles    identity.ProfileResolver
	logger      *logging.Logger
}

func NewHandler(coordinator *Coordinator, resolver *Resolver, profiles identity.ProfileResolver, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{coordinator: coordinator, resolver: resolver, profiles: profiles, logger: logger}
}

// Availability handles GET /providers/{providerID}/availability?date=YYYY-MM-DD.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	providerID, ok := urlUUID(w, r, "providerID")
	if !ok {
		return
	}
	day, err := schedule.ParseDate(r.URL.Query().Get("date"), h.resolver.loc)
	if err != nil {
		jsonError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	slots, err := h.resolver.Resolve(r.Context(), providerID, day)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  day.Format("2006-01-02"),
		"slots": slots,
	})
}

// Book handles POST /providers/{providerID}/appointments.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	providerID, ok := urlUUID(w, r, "providerID")
	if !ok {
		return
	}
	session, ok := identity.FromContext(r.Context())
	if !ok {
		jsonError(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	patientID, err := h.profiles.PatientIDForUser(r.Context(), session.UserID)
	if err != nil {
		h.profileError(w, session, err)
		return
	}

	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.PatientID = patientID
	req.ProviderID = providerID

	appt, err := h.coordinator.Book(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// Cancel handles POST /appointments/{appointmentID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "appointmentID")
	if !ok {
		return
	}
	session, ok := identity.FromContext(r.Context())
	if !ok {
		jsonError(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	appt, err := h.coordinator.Cancel(r.Context(), id, actorFor(session))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Reschedule handles POST /appointments/{appointmentID}/reschedule.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "appointmentID")
	if !ok {
		return
	}
	session, ok := identity.FromContext(r.Context())
	if !ok {
		jsonError(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	appt, err := h.coordinator.Reschedule(r.Context(), id, actorFor(session), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Confirm handles POST /appointments/{appointmentID}/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "appointmentID")
	if !ok {
		return
	}
	session, ok := identity.FromContext(r.Context())
	if !ok {
		jsonError(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	providerID, err := h.profiles.ProviderIDForUser(r.Context(), session.UserID)
	if err != nil {
		h.profileError(w, session, err)
		return
	}
	appt, err := h.coordinator.Confirm(r.Context(), id, providerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// ListForPatient handles GET /patient/appointments?scope=.
func (h *Handler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	session, ok := identity.FromContext(r.Context())
	if !ok {
		jsonError(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	patientID, err := h.profiles.PatientIDForUser(r.Context(), session.UserID)
	if err != nil {
		h.profileError(w, session, err)
		return
	}
	h.list(w, r, ListFilter{PatientID: patientID})
}

// ListForProvider handles GET /hp/appointments?scope=.
func (h *Handler) ListForProvider(w http.ResponseWriter, r *http.Request) {
	session, ok := identity.FromContext(r.Context())
	if !ok {
		jsonError(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	providerID, err := h.profiles.ProviderIDForUser(r.Context(), session.UserID)
	if err != nil {
		h.profileError(w, session, err)
		return
	}
	h.list(w, r, ListFilter{ProviderID: providerID})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, filter ListFilter) {
	scope, ok := ParseScope(r.URL.Query().Get("scope"))
	if !ok {
		jsonError(w, "scope must be one of all, upcoming, past, completed", http.StatusBadRequest)
		return
	}
	filter.Scope = scope
	appts, err := h.coordinator.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	counts, err := h.coordinator.Counts(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if appts == nil {
		appts = []Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appointments": appts,
		"count":        len(appts),
		"totals":       counts,
	})
}

// actorFor lets admins act on any appointment.
func actorFor(session identity.Session) uuid.UUID {
	if session.Role == identity.RoleAdmin {
		return uuid.Nil
	}
	return session.UserID
}

func (h *Handler) profileError(w http.ResponseWriter, session identity.Session, err error) {
	if errors.Is(err, identity.ErrNoProfile) {
		jsonError(w, "profile not found", http.StatusForbidden)
		return
	}
	h.logger.Error("failed to resolve profile", "user_id", session.UserID.String(), "error", err)
	jsonError(w, "internal error", http.StatusInternalServerError)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrSlotUnavailable):
		jsonError(w, "slot unavailable", http.StatusConflict)
	case errors.Is(err, ErrNotFound):
		jsonError(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		jsonError(w, "forbidden", http.StatusForbidden)
	default:
		h.logger.Error("appointment request failed", "error", err)
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
