package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/agora-platform/agora-api/internal/database"
	"github.com/agora-platform/agora-api/internal/models"
	"github.com/agora-platform/agora-api/internal/repository"
)

type MemberHandler struct {
	db          *database.DB
	memberships *repository.MembershipRepository
	activities  *repository.ActivityRepository
	logger      zerolog.Logger
}

func NewMemberHandler(
	db *database.DB,
	memberships *repository.MembershipRepository,
	activities *repository.ActivityRepository,
	logger zerolog.Logger,
) *MemberHandler {
	return &MemberHandler{
		db:          db,
		memberships: memberships,
		activities:  activities,
		logger:      logger.With().Str("component", "member_handler").Logger(),
	}
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.memberships.ListMembers(r.Context(), mux.Vars(r)["groupID"])
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list members")
		internalError(w)
		return
	}
	if members == nil {
		members = []models.Member{}
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"count": len(members),
		"rows":  members,
	})
}

// UpdateLevel changes a member's level. Demoting the last admin is a
// business-rule rejection, not a failure.
func (h *MemberHandler) UpdateLevel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	groupID, userID := vars["groupID"], vars["userID"]

	var req struct {
		Level string `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if !models.IsValidLevel(req.Level) {
		respondFieldErrors(w, map[string]string{"level": "Level must be read, write or admin"})
		return
	}

	var membership models.Membership
	err := h.db.InTx(r.Context(), func(tx *database.Tx) error {
		memberships := h.memberships.WithTx(tx)
		activities := h.activities.WithTx(tx)

		var err error
		membership, err = memberships.UpdateLevel(r.Context(), groupID, userID, models.MemberLevel(req.Level))
		if err != nil {
			return err
		}
		return activities.RecordUpdate(r.Context(), actorFromRequest(r), "membership", userID, "changed member level", map[string]string{
			"groupId": groupID,
			"level":   req.Level,
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLastAdmin):
			badRequest(w, "Group must have at least one admin member")
		case errors.Is(err, repository.ErrNotFound):
			notFound(w, "Membership not found")
		default:
			h.logger.Error().Err(err).Msg("failed to update member level")
			internalError(w)
		}
		return
	}
	respondData(w, http.StatusOK, membership)
}

// Remove deletes a single membership; members may remove themselves, admins
// anyone. The last admin can do neither.
func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	groupID, userID := vars["groupID"], vars["userID"]

	err := h.db.InTx(r.Context(), func(tx *database.Tx) error {
		memberships := h.memberships.WithTx(tx)
		activities := h.activities.WithTx(tx)

		if err := memberships.Remove(r.Context(), groupID, userID); err != nil {
			return err
		}
		return activities.RecordDelete(r.Context(), actorFromRequest(r), "membership", userID, "removed group member")
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLastAdmin):
			badRequest(w, "Group must have at least one admin member")
		case errors.Is(err, repository.ErrNotFound):
			notFound(w, "Membership not found")
		default:
			h.logger.Error().Err(err).Msg("failed to remove member")
			internalError(w)
		}
		return
	}
	respondMessage(w, http.StatusOK, "Member removed")
}
