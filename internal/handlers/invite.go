package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/agora-platform/agora-api/internal/authz"
	"github.com/agora-platform/agora-api/internal/invitation"
	"github.com/agora-platform/agora-api/internal/models"
	"github.com/agora-platform/agora-api/internal/repository"
)

type InviteHandler struct {
	reconciler *invitation.Reconciler
	lifecycle  *invitation.Lifecycle
	invites    *repository.InviteRepository
	logger     zerolog.Logger
}

func NewInviteHandler(
	reconciler *invitation.Reconciler,
	lifecycle *invitation.Lifecycle,
	invites *repository.InviteRepository,
	logger zerolog.Logger,
) *InviteHandler {
	return &InviteHandler{
		reconciler: reconciler,
		lifecycle:  lifecycle,
		invites:    invites,
		logger:     logger.With().Str("component", "invite_handler").Logger(),
	}
}

type inviteEntry struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Level    string `json:"level"`
	Language string `json:"language"`
}

type createInvitesRequest struct {
	Invites       []inviteEntry `json:"invites"`
	InviteMessage string        `json:"inviteMessage"`
}

// Create reconciles an invite batch. Success needs at least one genuinely
// created invitation; a batch that only upgraded members or dropped every
// entry is a rejection.
func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupID"]
	callerID, _ := authz.UserIDFromRequest(r)

	var req createInvitesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if len(req.Invites) == 0 {
		badRequest(w, "At least one invite is required")
		return
	}

	requests := make([]invitation.InviteRequest, 0, len(req.Invites))
	for _, entry := range req.Invites {
		identity := entry.UserID
		if identity == "" {
			identity = entry.Email
		}
		requests = append(requests, invitation.InviteRequest{
			Identity: identity,
			Level:    models.MemberLevel(entry.Level),
			Language: entry.Language,
		})
	}

	var message *string
	if trimmed := strings.TrimSpace(req.InviteMessage); trimmed != "" {
		message = &trimmed
	}

	result, err := h.reconciler.Reconcile(r.Context(), groupID, callerID, requests, message, actorFromRequest(r))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			notFound(w, "Group not found")
			return
		}
		h.logger.Error().Err(err).Str("group_id", groupID).Msg("invite reconciliation failed")
		internalError(w)
		return
	}

	if len(result.Created) == 0 {
		badRequest(w, "No invites were created: all invitees are already members or had invalid identities")
		return
	}
	respondData(w, http.StatusCreated, map[string]interface{}{
		"count": len(result.Created),
		"rows":  result.Created,
	})
}

func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	invites, err := h.invites.ListPendingByGroup(r.Context(), mux.Vars(r)["groupID"])
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list invites")
		internalError(w)
		return
	}
	if invites == nil {
		invites = []models.GroupInvite{}
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"count": len(invites),
		"rows":  invites,
	})
}

type fetchInviteResponse struct {
	models.GroupInvite
	AgeDays         int  `json:"ageDays"`
	AlreadyResolved bool `json:"alreadyResolved,omitempty"`
}

// Fetch renders one invitation for the invite landing page. No
// authentication: the invite id arriving by email is the credential.
func (h *InviteHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	result, err := h.lifecycle.Fetch(r.Context(), vars["inviteID"], vars["groupID"])
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			notFound(w, "Invite not found")
		case errors.Is(err, invitation.ErrInviteExpired):
			gone(w, "The invite has expired")
		case errors.Is(err, invitation.ErrInviteGone):
			gone(w, "The invite has been deleted")
		default:
			h.logger.Error().Err(err).Msg("failed to fetch invite")
			internalError(w)
		}
		return
	}
	respondData(w, http.StatusOK, fetchInviteResponse{
		GroupInvite:     result.Invite,
		AgeDays:         result.AgeDays,
		AlreadyResolved: result.AlreadyResolved,
	})
}

func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	callerID, _ := authz.UserIDFromRequest(r)

	membership, err := h.lifecycle.Accept(r.Context(), vars["inviteID"], vars["groupID"], callerID, actorFromRequest(r))
	if err != nil {
		switch {
		case errors.Is(err, invitation.ErrNotInvitee):
			Forbidden(w)
		case errors.Is(err, invitation.ErrInviteExpired):
			gone(w, "The invite has expired")
		case errors.Is(err, invitation.ErrInviteGone):
			gone(w, "The invite has been deleted")
		case errors.Is(err, repository.ErrNotFound):
			notFound(w, "Invite not found")
		default:
			h.logger.Error().Err(err).Msg("failed to accept invite")
			internalError(w)
		}
		return
	}
	respondData(w, http.StatusCreated, membership)
}

func (h *InviteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := h.lifecycle.Delete(r.Context(), vars["inviteID"], vars["groupID"], actorFromRequest(r))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			notFound(w, "Invite not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to delete invite")
		internalError(w)
		return
	}
	respondMessage(w, http.StatusOK, "Invite deleted")
}
