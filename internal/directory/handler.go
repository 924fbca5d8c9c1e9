package directory

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/careconnect-platform/internal/documents"
	"github.com/wolfman30/careconnect-platform/internal/identity"
	"github.com/wolfman30/careconnect-platform/internal/notifications"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

func searchFilter(r *http.Request) SearchFilter {
	q := r.URL.Query()
	return SearchFilter{Speciality: q.Get("speciality"), Location: q.Get("location")}
}

// SearchProviders handles GET /providers.
func (h *Handler) SearchProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.service.SearchProviders(r.Context(), searchFilter(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, providers)
}

// SearchCenters handles GET /centers.
func (h *Handler) SearchCenters(w http.ResponseWriter, r *http.Request) {
	centers, err := h.service.SearchCenters(r.Context(), searchFilter(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, centers)
}

// GetProvider handles GET /providers/{providerID}.
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "providerID")
	if !ok {
		return
	}
	p, err := h.service.Provider(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// AddReview handles POST /providers/{providerID}/reviews.
func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request) {
	providerID, ok := urlUUID(w, r, "providerID")
	if !ok {
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	patientID, err := h.service.PatientIDForUser(r.Context(), session.UserID)
	if err != nil {
		h.profileError(w, err)
		return
	}
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	review, err := h.service.AddReview(r.Context(), patientID, providerID, req.Rating, req.Comment)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

type inviteRequest struct {
	ProviderID uuid.UUID `json:"providerId"`
}

// Invite handles POST /hc/invitations.
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	centerID, err := h.service.CenterIDForUser(r.Context(), session.UserID)
	if err != nil {
		h.profileError(w, err)
		return
	}
	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProviderID == uuid.Nil {
		jsonError(w, "providerId required", http.StatusBadRequest)
		return
	}
	n, err := h.service.Invite(r.Context(), centerID, req.ProviderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// Team handles GET /hc/team.
func (h *Handler) Team(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	centerID, err := h.service.CenterIDForUser(r.Context(), session.UserID)
	if err != nil {
		h.profileError(w, err)
		return
	}
	providers, err := h.service.CenterProviders(r.Context(), centerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, providers)
}

// AcceptInvitation handles POST /hp/invitations/{notificationID}/accept.
func (h *Handler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	notificationID, ok := urlUUID(w, r, "notificationID")
	if !ok {
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	providerID, err := h.service.ProviderIDForUser(r.Context(), session.UserID)
	if err != nil {
		h.profileError(w, err)
		return
	}
	p, err := h.service.AcceptInvitation(r.Context(), providerID, notificationID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SubmitCredential handles POST /hp/credentials with a multipart "file".
func (h *Handler) SubmitCredential(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	providerID, err := h.service.ProviderIDForUser(r.Context(), session.UserID)
	if err != nil {
		h.profileError(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, documents.MaxUploadBytes)
	if err := r.ParseMultipartForm(documents.MaxUploadBytes); err != nil {
		jsonError(w, "invalid upload", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	p, err := h.service.SubmitCredential(r.Context(), providerID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type verificationRequest struct {
	Verified bool `json:"verified"`
}

// SetVerification handles POST /admin/providers/{providerID}/verification.
func (h *Handler) SetVerification(w http.ResponseWriter, r *http.Request) {
	providerID, ok := urlUUID(w, r, "providerID")
	if !ok {
		return
	}
	var req verificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	p, err := h.service.VerifyProvider(r.Context(), providerID, req.Verified)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func sessionFrom(w http.ResponseWriter, r *http.Request) (identity.Session, bool) {
	session, ok := identity.FromContext(r.Context())
	if !ok {
		jsonError(w, "not authenticated", http.StatusUnauthorized)
	}
	return session, ok
}

func (h *Handler) profileError(w http.ResponseWriter, err error) {
	if errors.Is(err, identity.ErrNoProfile) {
		jsonError(w, "profile not found", http.StatusForbidden)
		return
	}
	h.writeError(w, err)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, notifications.ErrInvalidInput):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		jsonError(w, "not found", http.StatusNotFound)
	case errors.Is(err, documents.ErrNotConfigured):
		jsonError(w, "document storage unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.Error("directory request failed", "error", err)
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
