package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/agora-platform/agora-api/internal/authz"
	"github.com/agora-platform/agora-api/internal/database"
	"github.com/agora-platform/agora-api/internal/models"
	"github.com/agora-platform/agora-api/internal/repository"
)

type GroupHandler struct {
	db          *database.DB
	groups      *repository.GroupRepository
	memberships *repository.MembershipRepository
	activities  *repository.ActivityRepository
	logger      zerolog.Logger
}

func NewGroupHandler(
	db *database.DB,
	groups *repository.GroupRepository,
	memberships *repository.MembershipRepository,
	activities *repository.ActivityRepository,
	logger zerolog.Logger,
) *GroupHandler {
	return &GroupHandler{
		db:          db,
		groups:      groups,
		memberships: memberships,
		activities:  activities,
		logger:      logger.With().Str("component", "group_handler").Logger(),
	}
}

type groupRequest struct {
	Name       string  `json:"name"`
	Visibility string  `json:"visibility"`
	ParentID   *string `json:"parentId"`
}

// Create makes a group and its first admin membership in one transaction.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	callerID, _ := authz.UserIDFromRequest(r)

	var req groupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	fieldErrors := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		fieldErrors["name"] = "Group name is required"
	}
	if req.Visibility != "" && !models.IsValidVisibility(req.Visibility) {
		fieldErrors["visibility"] = "Visibility must be public or private"
	}
	if len(fieldErrors) > 0 {
		respondFieldErrors(w, fieldErrors)
		return
	}

	var group models.Group
	err := h.db.InTx(r.Context(), func(tx *database.Tx) error {
		groups := h.groups.WithTx(tx)
		memberships := h.memberships.WithTx(tx)
		activities := h.activities.WithTx(tx)

		var err error
		group, err = groups.Create(r.Context(), repository.CreateGroupParams{
			Name:       req.Name,
			Visibility: models.GroupVisibility(req.Visibility),
			CreatorID:  callerID,
			ParentID:   req.ParentID,
		})
		if err != nil {
			return err
		}
		if _, err := memberships.Upsert(r.Context(), group.ID, callerID, models.LevelAdmin); err != nil {
			return err
		}
		return activities.RecordCreate(r.Context(), actorFromRequest(r), "group", group.ID, "created group", map[string]string{"name": group.Name})
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create group")
		internalError(w)
		return
	}
	respondData(w, http.StatusCreated, group)
}

// List returns the caller's groups with member and invite counts.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	callerID, _ := authz.UserIDFromRequest(r)
	overviews, err := h.groups.ListForUser(r.Context(), callerID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list groups")
		internalError(w)
		return
	}
	if overviews == nil {
		overviews = []models.GroupOverview{}
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"count": len(overviews),
		"rows":  overviews,
	})
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	group, err := h.groups.GetByID(r.Context(), mux.Vars(r)["groupID"])
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			notFound(w, "Group not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to load group")
		internalError(w)
		return
	}
	respondData(w, http.StatusOK, group)
}

// Update renames the group. Visibility is fixed at creation.
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupID"]

	var req groupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondFieldErrors(w, map[string]string{"name": "Group name is required"})
		return
	}

	var group models.Group
	err := h.db.InTx(r.Context(), func(tx *database.Tx) error {
		groups := h.groups.WithTx(tx)
		activities := h.activities.WithTx(tx)

		var err error
		group, err = groups.UpdateName(r.Context(), groupID, req.Name)
		if err != nil {
			return err
		}
		return activities.RecordUpdate(r.Context(), actorFromRequest(r), "group", groupID, "renamed group", map[string]string{"name": group.Name})
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			notFound(w, "Group not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to update group")
		internalError(w)
		return
	}
	respondData(w, http.StatusOK, group)
}

// Activity returns the group's audit trail, newest first.
func (h *GroupHandler) Activity(w http.ResponseWriter, r *http.Request) {
	entries, err := h.activities.ListForEntity(r.Context(), "group", mux.Vars(r)["groupID"], 100)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list group activity")
		internalError(w)
		return
	}
	if entries == nil {
		entries = []models.Activity{}
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"count": len(entries),
		"rows":  entries,
	})
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupID"]

	err := h.db.InTx(r.Context(), func(tx *database.Tx) error {
		groups := h.groups.WithTx(tx)
		activities := h.activities.WithTx(tx)

		if err := groups.SoftDelete(r.Context(), groupID); err != nil {
			return err
		}
		return activities.RecordDelete(r.Context(), actorFromRequest(r), "group", groupID, "deleted group")
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			notFound(w, "Group not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to delete group")
		internalError(w)
		return
	}
	respondMessage(w, http.StatusOK, "Group deleted")
}
