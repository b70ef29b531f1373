package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/agora-platform/agora-api/internal/database"
	"github.com/agora-platform/agora-api/internal/models"
)

type MembershipRepository struct {
	q database.Queryer
}

func NewMembershipRepository(db *database.DB) *MembershipRepository {
	return &MembershipRepository{q: db}
}

func (r *MembershipRepository) WithTx(tx *database.Tx) *MembershipRepository {
	return &MembershipRepository{q: tx}
}

// Get returns the live membership for (groupID, userID).
func (r *MembershipRepository) Get(ctx context.Context, groupID, userID string) (models.Membership, error) {
	const query = `
		SELECT group_id, user_id, level, created_at, updated_at, deleted_at
		FROM memberships
		WHERE group_id = ? AND user_id = ? AND deleted_at IS NULL`
	var m models.Membership
	err := r.q.QueryRowContext(ctx, query, groupID, userID).Scan(
		&m.GroupID, &m.UserID, &m.Level, &m.CreatedAt, &m.UpdatedAt, &m.DeletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Membership{}, ErrNotFound
		}
		return models.Membership{}, errors.Wrap(err, "scan membership")
	}
	return m, nil
}

// Upsert inserts the membership or, if a row for the pair already exists
// (live or soft-deleted), revives it at the given level.
func (r *MembershipRepository) Upsert(ctx context.Context, groupID, userID string, level models.MemberLevel) (models.Membership, error) {
	now := time.Now().UTC()
	const query = `
		INSERT INTO memberships (group_id, user_id, level, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (group_id, user_id)
		DO UPDATE SET level = excluded.level, updated_at = excluded.updated_at, deleted_at = NULL`
	if _, err := r.q.ExecContext(ctx, query, groupID, userID, level, now, now); err != nil {
		return models.Membership{}, errors.Wrap(err, "upsert membership")
	}
	return r.Get(ctx, groupID, userID)
}

// UpdateLevel changes a member's level. Demoting the last admin is rejected;
// the check and the write run on the same Queryer, so wrap both in one
// transaction for it to hold.
func (r *MembershipRepository) UpdateLevel(ctx context.Context, groupID, userID string, level models.MemberLevel) (models.Membership, error) {
	current, err := r.Get(ctx, groupID, userID)
	if err != nil {
		return models.Membership{}, err
	}
	if current.Level == models.LevelAdmin && level != models.LevelAdmin {
		if err := r.guardLastAdmin(ctx, groupID, userID); err != nil {
			return models.Membership{}, err
		}
	}

	const query = `
		UPDATE memberships
		SET level = ?, updated_at = ?
		WHERE group_id = ? AND user_id = ? AND deleted_at IS NULL`
	if _, err := r.q.ExecContext(ctx, query, level, time.Now().UTC(), groupID, userID); err != nil {
		return models.Membership{}, errors.Wrap(err, "update membership level")
	}
	current.Level = level
	return current, nil
}

// Remove soft-deletes a single membership. Removing the last admin is
// rejected. The delete is scoped to the exact (group, user) row.
func (r *MembershipRepository) Remove(ctx context.Context, groupID, userID string) error {
	current, err := r.Get(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if current.Level == models.LevelAdmin {
		if err := r.guardLastAdmin(ctx, groupID, userID); err != nil {
			return err
		}
	}

	const query = `
		UPDATE memberships
		SET deleted_at = ?, updated_at = ?
		WHERE group_id = ? AND user_id = ? AND deleted_at IS NULL`
	now := time.Now().UTC()
	result, err := r.q.ExecContext(ctx, query, now, now, groupID, userID)
	if err != nil {
		return errors.Wrap(err, "remove membership")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAdmins returns the live admin-level memberships of the group.
func (r *MembershipRepository) ListAdmins(ctx context.Context, groupID string) ([]models.Membership, error) {
	const query = `
		SELECT group_id, user_id, level, created_at, updated_at, deleted_at
		FROM memberships
		WHERE group_id = ? AND level = ? AND deleted_at IS NULL`
	rows, err := r.q.QueryContext(ctx, query, groupID, models.LevelAdmin)
	if err != nil {
		return nil, errors.Wrap(err, "query admins")
	}
	defer rows.Close()

	var admins []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.Level, &m.CreatedAt, &m.UpdatedAt, &m.DeletedAt); err != nil {
			return nil, errors.Wrap(err, "scan membership")
		}
		admins = append(admins, m)
	}
	return admins, rows.Err()
}

func (r *MembershipRepository) Count(ctx context.Context, groupID string) (int, error) {
	const query = `SELECT COUNT(*) FROM memberships WHERE group_id = ? AND deleted_at IS NULL`
	var count int
	if err := r.q.QueryRowContext(ctx, query, groupID).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "count members")
	}
	return count, nil
}

// ListMembers returns the member projections for the group, user data
// included.
func (r *MembershipRepository) ListMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	const query = `
		SELECT u.id, u.name, u.email, m.level, u.email_verified, m.created_at
		FROM memberships m
		JOIN users u ON u.id = m.user_id AND u.deleted_at IS NULL
		WHERE m.group_id = ? AND m.deleted_at IS NULL
		ORDER BY u.name`
	rows, err := r.q.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "query members")
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email, &m.Level, &m.EmailVerified, &m.JoinedAt); err != nil {
			return nil, errors.Wrap(err, "scan member")
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// guardLastAdmin rejects the operation when userID is the group's only admin.
func (r *MembershipRepository) guardLastAdmin(ctx context.Context, groupID, userID string) error {
	admins, err := r.ListAdmins(ctx, groupID)
	if err != nil {
		return err
	}
	if len(admins) == 1 && admins[0].UserID == userID {
		return ErrLastAdmin
	}
	return nil
}
