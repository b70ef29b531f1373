package invitation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-platform/agora-api/internal/models"
	"github.com/agora-platform/agora-api/internal/repository"
)

// invite creates a pending invitation directly through the repository.
func (h *harness) invite(t *testing.T, group models.Group, inviter, invitee models.User, level models.MemberLevel) models.GroupInvite {
	t.Helper()
	invite, err := h.invites.Create(context.Background(), repository.CreateInviteParams{
		GroupID:   group.ID,
		InviterID: inviter.ID,
		InviteeID: invitee.ID,
		Level:     level,
	})
	require.NoError(t, err)
	return invite
}

func TestFetchFreshInviteConfirmsEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin@example.com")
	invitee := h.user(t, "invitee@example.com")
	group := h.group(t, admin)
	invite := h.invite(t, group, admin, invitee, models.LevelWrite)

	result, err := h.lifecycle.Fetch(ctx, invite.ID, group.ID)
	require.NoError(t, err)
	assert.Equal(t, invite.ID, result.Invite.ID)
	assert.Equal(t, 0, result.AgeDays)
	assert.False(t, result.AlreadyResolved)

	user, err := h.users.GetByID(ctx, invitee.ID)
	require.NoError(t, err)
	assert.True(t, user.EmailVerified, "opening the invite proves email ownership")
}

func TestFetchExpiryBoundary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin@example.com")
	invitee := h.user(t, "invitee@example.com")
	group := h.group(t, admin)
	invite := h.invite(t, group, admin, invitee, models.LevelRead)

	// Exactly at the boundary: still valid.
	h.lifecycle.now = func() time.Time { return invite.CreatedAt.AddDate(0, 0, testWindowDays) }
	_, err := h.lifecycle.Fetch(ctx, invite.ID, group.ID)
	require.NoError(t, err)

	// One second past: gone.
	h.lifecycle.now = func() time.Time { return invite.CreatedAt.AddDate(0, 0, testWindowDays).Add(time.Second) }
	_, err = h.lifecycle.Fetch(ctx, invite.ID, group.ID)
	assert.ErrorIs(t, err, ErrInviteExpired)
}

func TestFetchDeletedInvite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin@example.com")
	invitee := h.user(t, "invitee@example.com")
	group := h.group(t, admin)
	invite := h.invite(t, group, admin, invitee, models.LevelRead)
	require.NoError(t, h.invites.SoftDelete(ctx, invite.ID, group.ID))

	// Invitee has no access: gone.
	_, err := h.lifecycle.Fetch(ctx, invite.ID, group.ID)
	assert.ErrorIs(t, err, ErrInviteGone)

	// Invitee holds membership: treated as already resolved.
	_, err = h.memberships.Upsert(ctx, group.ID, invitee.ID, models.LevelRead)
	require.NoError(t, err)
	result, err := h.lifecycle.Fetch(ctx, invite.ID, group.ID)
	require.NoError(t, err)
	assert.True(t, result.AlreadyResolved)
}

func TestFetchUnknownInvite(t *testing.T) {
	h := newHarness(t)
	admin := h.user(t, "admin@example.com")
	group := h.group(t, admin)

	_, err := h.lifecycle.Fetch(context.Background(), "ffffffff-ffff-ffff-ffff-ffffffffffff", group.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAcceptCreatesMembershipAndDestroysInvite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin@example.com")
	invitee := h.user(t, "invitee@example.com")
	group := h.group(t, admin)
	invite := h.invite(t, group, admin, invitee, models.LevelWrite)

	membership, err := h.lifecycle.Accept(ctx, invite.ID, group.ID, invitee.ID, actorFor(invitee))
	require.NoError(t, err)
	assert.Equal(t, models.LevelWrite, membership.Level)

	pending, err := h.invites.ListPendingByGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Empty(t, pending, "accepted invite must be destroyed")

	events, err := h.activities.ListForEntity(ctx, "group", group.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.ActivityKindAccept, events[0].Kind)
}

func TestAcceptByWrongUserForbidden(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin@example.com")
	invitee := h.user(t, "invitee@example.com")
	interloper := h.user(t, "interloper@example.com")
	group := h.group(t, admin)
	invite := h.invite(t, group, admin, invitee, models.LevelRead)

	_, err := h.lifecycle.Accept(ctx, invite.ID, group.ID, interloper.ID, actorFor(interloper))
	assert.ErrorIs(t, err, ErrNotInvitee)

	// Nothing changed for the invitee.
	_, err = h.memberships.Get(ctx, group.ID, invitee.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAcceptUpgradesButNeverDowngrades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin@example.com")
	member := h.user(t, "member@example.com")
	group := h.group(t, admin)
	_, err := h.memberships.Upsert(ctx, group.ID, member.ID, models.LevelWrite)
	require.NoError(t, err)

	// Lower-level invite: membership unchanged.
	low := h.invite(t, group, admin, member, models.LevelRead)
	membership, err := h.lifecycle.Accept(ctx, low.ID, group.ID, member.ID, actorFor(member))
	require.NoError(t, err)
	assert.Equal(t, models.LevelWrite, membership.Level)

	// Higher-level invite: raised in place.
	high := h.invite(t, group, admin, member, models.LevelAdmin)
	membership, err = h.lifecycle.Accept(ctx, high.ID, group.ID, member.ID, actorFor(member))
	require.NoError(t, err)
	assert.Equal(t, models.LevelAdmin, membership.Level)
}

func TestAcceptWithMembershipIgnoresExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin@example.com")
	member := h.user(t, "member@example.com")
	group := h.group(t, admin)
	_, err := h.memberships.Upsert(ctx, group.ID, member.ID, models.LevelRead)
	require.NoError(t, err)
	invite := h.invite(t, group, admin, member, models.LevelWrite)

	h.lifecycle.now = func() time.Time { return invite.CreatedAt.AddDate(0, 0, testWindowDays+10) }
	membership, err := h.lifecycle.Accept(ctx, invite.ID, group.ID, member.ID, actorFor(member))
	require.NoError(t, err, "existing membership takes precedence over expiry")
	assert.Equal(t, models.LevelWrite, membership.Level)
}

func TestAcceptExpiredWithoutMembership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin@example.com")
	invitee := h.user(t, "invitee@example.com")
	group := h.group(t, admin)
	invite := h.invite(t, group, admin, invitee, models.LevelRead)

	h.lifecycle.now = func() time.Time { return invite.CreatedAt.AddDate(0, 0, testWindowDays).Add(time.Second) }
	_, err := h.lifecycle.Accept(ctx, invite.ID, group.ID, invitee.ID, actorFor(invitee))
	assert.ErrorIs(t, err, ErrInviteExpired)
}

func TestAcceptMissingInviteWithMembershipIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin@example.com")
	member := h.user(t, "member@example.com")
	group := h.group(t, admin)
	_, err := h.memberships.Upsert(ctx, group.ID, member.ID, models.LevelWrite)
	require.NoError(t, err)

	membership, err := h.lifecycle.Accept(ctx, "ffffffff-ffff-ffff-ffff-ffffffffffff", group.ID, member.ID, actorFor(member))
	require.NoError(t, err)
	assert.Equal(t, models.LevelWrite, membership.Level)

	// Without membership the same call is a plain not-found.
	outsider := h.user(t, "outsider@example.com")
	_, err = h.lifecycle.Accept(ctx, "ffffffff-ffff-ffff-ffff-ffffffffffff", group.ID, outsider.ID, actorFor(outsider))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteInvite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin@example.com")
	invitee := h.user(t, "invitee@example.com")
	group := h.group(t, admin)
	invite := h.invite(t, group, admin, invitee, models.LevelRead)

	require.NoError(t, h.lifecycle.Delete(ctx, invite.ID, group.ID, actorFor(admin)))

	err := h.lifecycle.Delete(ctx, invite.ID, group.ID, actorFor(admin))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
