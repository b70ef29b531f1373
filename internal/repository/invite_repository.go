package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/agora-platform/agora-api/internal/database"
	"github.com/agora-platform/agora-api/internal/models"
)

const inviteColumns = "id, group_id, inviter_id, invitee_id, level, message, created_at, updated_at, deleted_at"

type InviteRepository struct {
	q database.Queryer
}

func NewInviteRepository(db *database.DB) *InviteRepository {
	return &InviteRepository{q: db}
}

func (r *InviteRepository) WithTx(tx *database.Tx) *InviteRepository {
	return &InviteRepository{q: tx}
}

type CreateInviteParams struct {
	GroupID   string
	InviterID string
	InviteeID string
	Level     models.MemberLevel
	Message   *string
}

func (r *InviteRepository) Create(ctx context.Context, params CreateInviteParams) (models.GroupInvite, error) {
	now := time.Now().UTC()
	invite := models.GroupInvite{
		ID:        uuid.NewString(),
		GroupID:   params.GroupID,
		InviterID: params.InviterID,
		InviteeID: params.InviteeID,
		Level:     params.Level,
		Message:   params.Message,
		CreatedAt: now,
		UpdatedAt: now,
	}
	const query = `
		INSERT INTO group_invites (id, group_id, inviter_id, invitee_id, level, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.q.ExecContext(ctx, query,
		invite.ID, invite.GroupID, invite.InviterID, invite.InviteeID,
		invite.Level, invite.Message, invite.CreatedAt, invite.UpdatedAt)
	if err != nil {
		return models.GroupInvite{}, errors.Wrap(err, "insert invite")
	}
	return invite, nil
}

// GetByID loads the invite scoped to its group, soft-deleted rows included:
// the lifecycle needs resolved invites to render "already used" responses.
func (r *InviteRepository) GetByID(ctx context.Context, inviteID, groupID string) (models.GroupInvite, error) {
	const query = `SELECT ` + inviteColumns + ` FROM group_invites WHERE id = ? AND group_id = ?`
	var invite models.GroupInvite
	err := r.q.QueryRowContext(ctx, query, inviteID, groupID).Scan(
		&invite.ID, &invite.GroupID, &invite.InviterID, &invite.InviteeID,
		&invite.Level, &invite.Message, &invite.CreatedAt, &invite.UpdatedAt, &invite.DeletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.GroupInvite{}, ErrNotFound
		}
		return models.GroupInvite{}, errors.Wrap(err, "scan invite")
	}
	return invite, nil
}

// ListPendingByGroup returns the live invites of a group, newest first.
func (r *InviteRepository) ListPendingByGroup(ctx context.Context, groupID string) ([]models.GroupInvite, error) {
	const query = `
		SELECT ` + inviteColumns + `
		FROM group_invites
		WHERE group_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC`
	rows, err := r.q.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "query invites")
	}
	defer rows.Close()

	var invites []models.GroupInvite
	for rows.Next() {
		var invite models.GroupInvite
		if err := rows.Scan(
			&invite.ID, &invite.GroupID, &invite.InviterID, &invite.InviteeID,
			&invite.Level, &invite.Message, &invite.CreatedAt, &invite.UpdatedAt, &invite.DeletedAt); err != nil {
			return nil, errors.Wrap(err, "scan invite")
		}
		invites = append(invites, invite)
	}
	return invites, rows.Err()
}

// SoftDelete marks the invite deleted; accept and admin delete both end here.
func (r *InviteRepository) SoftDelete(ctx context.Context, inviteID, groupID string) error {
	const query = `
		UPDATE group_invites
		SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND group_id = ? AND deleted_at IS NULL`
	now := time.Now().UTC()
	result, err := r.q.ExecContext(ctx, query, now, now, inviteID, groupID)
	if err != nil {
		return errors.Wrap(err, "delete invite")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}
