package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/agora-platform/agora-api/internal/database"
	"github.com/agora-platform/agora-api/internal/models"
)

const groupColumns = "id, name, visibility, creator_id, parent_id, created_at, updated_at, deleted_at"

type GroupRepository struct {
	q database.Queryer
}

func NewGroupRepository(db *database.DB) *GroupRepository {
	return &GroupRepository{q: db}
}

func (r *GroupRepository) WithTx(tx *database.Tx) *GroupRepository {
	return &GroupRepository{q: tx}
}

type CreateGroupParams struct {
	Name       string
	Visibility models.GroupVisibility
	CreatorID  string
	ParentID   *string
}

func (r *GroupRepository) Create(ctx context.Context, params CreateGroupParams) (models.Group, error) {
	now := time.Now().UTC()
	group := models.Group{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(params.Name),
		Visibility: params.Visibility,
		CreatorID:  params.CreatorID,
		ParentID:   params.ParentID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if group.Visibility == "" {
		group.Visibility = models.GroupVisibilityPrivate
	}

	const query = `
		INSERT INTO groups (id, name, visibility, creator_id, parent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.q.ExecContext(ctx, query,
		group.ID, group.Name, group.Visibility, group.CreatorID, group.ParentID,
		group.CreatedAt, group.UpdatedAt)
	if err != nil {
		return models.Group{}, errors.Wrap(err, "insert group")
	}
	return group, nil
}

// GetByID returns the group if it exists and is not deleted.
func (r *GroupRepository) GetByID(ctx context.Context, id string) (models.Group, error) {
	const query = `SELECT ` + groupColumns + ` FROM groups WHERE id = ? AND deleted_at IS NULL`
	var group models.Group
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&group.ID, &group.Name, &group.Visibility, &group.CreatorID, &group.ParentID,
		&group.CreatedAt, &group.UpdatedAt, &group.DeletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Group{}, ErrNotFound
		}
		return models.Group{}, errors.Wrap(err, "scan group")
	}
	return group, nil
}

func (r *GroupRepository) UpdateName(ctx context.Context, id, name string) (models.Group, error) {
	const query = `
		UPDATE groups
		SET name = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`
	result, err := r.q.ExecContext(ctx, query, strings.TrimSpace(name), time.Now().UTC(), id)
	if err != nil {
		return models.Group{}, errors.Wrap(err, "update group")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return models.Group{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// SoftDelete marks the group deleted; every default query excludes it from
// then on.
func (r *GroupRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `
		UPDATE groups
		SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`
	now := time.Now().UTC()
	result, err := r.q.ExecContext(ctx, query, now, now, id)
	if err != nil {
		return errors.Wrap(err, "delete group")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForUser returns the live groups the user belongs to, with member and
// pending-invite counts for the list view.
func (r *GroupRepository) ListForUser(ctx context.Context, userID string) ([]models.GroupOverview, error) {
	const query = `
		SELECT g.id, g.name, g.visibility, g.creator_id, g.parent_id, g.created_at, g.updated_at, g.deleted_at,
			(SELECT COUNT(*) FROM memberships mc WHERE mc.group_id = g.id AND mc.deleted_at IS NULL),
			(SELECT COUNT(*) FROM group_invites gi WHERE gi.group_id = g.id AND gi.deleted_at IS NULL)
		FROM groups g
		JOIN memberships m ON m.group_id = g.id AND m.user_id = ? AND m.deleted_at IS NULL
		WHERE g.deleted_at IS NULL
		ORDER BY g.name`

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query groups for user")
	}
	defer rows.Close()

	var overviews []models.GroupOverview
	for rows.Next() {
		var o models.GroupOverview
		if err := rows.Scan(
			&o.ID, &o.Name, &o.Visibility, &o.CreatorID, &o.ParentID,
			&o.CreatedAt, &o.UpdatedAt, &o.DeletedAt,
			&o.MemberCount, &o.InviteCount); err != nil {
			return nil, errors.Wrap(err, "scan group overview")
		}
		overviews = append(overviews, o)
	}
	return overviews, rows.Err()
}
