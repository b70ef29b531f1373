package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/agora-platform/agora-api/internal/authz"
	"github.com/agora-platform/agora-api/internal/repository"
)

type UserHandler struct {
	users    *repository.UserRepository
	consents *repository.ConsentRepository
	logger   zerolog.Logger
}

func NewUserHandler(users *repository.UserRepository, consents *repository.ConsentRepository, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		users:    users,
		consents: consents,
		logger:   logger.With().Str("component", "user_handler").Logger(),
	}
}

func (h *UserHandler) GetSelf(w http.ResponseWriter, r *http.Request) {
	callerID, _ := authz.UserIDFromRequest(r)
	user, err := h.users.GetByID(r.Context(), callerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			notFound(w, "User not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to load user")
		internalError(w)
		return
	}
	respondData(w, http.StatusOK, user)
}

type updateProfileRequest struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

func (h *UserHandler) UpdateSelf(w http.ResponseWriter, r *http.Request) {
	callerID, _ := authz.UserIDFromRequest(r)

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondFieldErrors(w, map[string]string{"name": "Name is required"})
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), callerID, req.Name, req.Language)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			notFound(w, "User not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to update profile")
		internalError(w)
		return
	}
	respondData(w, http.StatusOK, user)
}

func (h *UserHandler) ListConsents(w http.ResponseWriter, r *http.Request) {
	callerID, _ := authz.UserIDFromRequest(r)
	consents, err := h.consents.ListForUser(r.Context(), callerID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list consents")
		internalError(w)
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"count": len(consents),
		"rows":  consents,
	})
}

type consentRequest struct {
	PartnerID string `json:"partnerId"`
}

func (h *UserHandler) CreateConsent(w http.ResponseWriter, r *http.Request) {
	callerID, _ := authz.UserIDFromRequest(r)

	var req consentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if req.PartnerID == "" {
		respondFieldErrors(w, map[string]string{"partnerId": "Partner id is required"})
		return
	}

	consent, err := h.consents.Create(r.Context(), callerID, req.PartnerID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to record consent")
		internalError(w)
		return
	}
	respondData(w, http.StatusCreated, consent)
}

func (h *UserHandler) RevokeConsent(w http.ResponseWriter, r *http.Request) {
	callerID, _ := authz.UserIDFromRequest(r)
	partnerID := mux.Vars(r)["partnerID"]

	if err := h.consents.Revoke(r.Context(), callerID, partnerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			notFound(w, "Consent not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to revoke consent")
		internalError(w)
		return
	}
	respondMessage(w, http.StatusOK, "Consent revoked")
}
