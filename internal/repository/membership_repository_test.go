package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-platform/agora-api/internal/database"
	"github.com/agora-platform/agora-api/internal/models"
)

type fixtures struct {
	db          *database.DB
	users       *UserRepository
	groups      *GroupRepository
	memberships *MembershipRepository
	invites     *InviteRepository
}

func newFixtures(t *testing.T) *fixtures {
	t.Helper()
	db := database.NewTestDB(t)
	return &fixtures{
		db:          db,
		users:       NewUserRepository(db),
		groups:      NewGroupRepository(db),
		memberships: NewMembershipRepository(db),
		invites:     NewInviteRepository(db),
	}
}

func (f *fixtures) user(t *testing.T, email string) models.User {
	t.Helper()
	user, err := f.users.CreateUser(context.Background(), CreateUserParams{
		Email:    &email,
		Name:     email,
		Password: "secret123",
	})
	require.NoError(t, err)
	return user
}

func (f *fixtures) group(t *testing.T, creator models.User, visibility models.GroupVisibility) models.Group {
	t.Helper()
	ctx := context.Background()
	group, err := f.groups.Create(ctx, CreateGroupParams{Name: "Assembly", Visibility: visibility, CreatorID: creator.ID})
	require.NoError(t, err)
	_, err = f.memberships.Upsert(ctx, group.ID, creator.ID, models.LevelAdmin)
	require.NoError(t, err)
	return group
}

func TestRemoveLastAdminRejected(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com")
	group := f.group(t, admin, models.GroupVisibilityPrivate)

	err := f.memberships.Remove(ctx, group.ID, admin.ID)
	require.ErrorIs(t, err, ErrLastAdmin)

	// The membership must be untouched.
	m, err := f.memberships.Get(ctx, group.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LevelAdmin, m.Level)
}

func TestDemoteLastAdminRejected(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com")
	group := f.group(t, admin, models.GroupVisibilityPrivate)

	_, err := f.memberships.UpdateLevel(ctx, group.ID, admin.ID, models.LevelRead)
	require.ErrorIs(t, err, ErrLastAdmin)

	m, err := f.memberships.Get(ctx, group.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LevelAdmin, m.Level)
}

func TestRemoveAdminWithAnotherAdminPresent(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com")
	second := f.user(t, "second@example.com")
	group := f.group(t, admin, models.GroupVisibilityPrivate)

	_, err := f.memberships.Upsert(ctx, group.ID, second.ID, models.LevelAdmin)
	require.NoError(t, err)

	require.NoError(t, f.memberships.Remove(ctx, group.ID, admin.ID))

	_, err = f.memberships.Get(ctx, group.ID, admin.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	admins, err := f.memberships.ListAdmins(ctx, group.ID)
	require.NoError(t, err)
	assert.Len(t, admins, 1)
}

func TestUpsertRevivesRemovedMembership(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com")
	member := f.user(t, "member@example.com")
	group := f.group(t, admin, models.GroupVisibilityPrivate)

	_, err := f.memberships.Upsert(ctx, group.ID, member.ID, models.LevelRead)
	require.NoError(t, err)
	require.NoError(t, f.memberships.Remove(ctx, group.ID, member.ID))

	m, err := f.memberships.Upsert(ctx, group.ID, member.ID, models.LevelWrite)
	require.NoError(t, err)
	assert.Equal(t, models.LevelWrite, m.Level)
	assert.Nil(t, m.DeletedAt)

	count, err := f.memberships.Count(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestListMembersProjectsUserData(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com")
	group := f.group(t, admin, models.GroupVisibilityPublic)

	members, err := f.memberships.ListMembers(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, admin.ID, members[0].UserID)
	assert.Equal(t, models.LevelAdmin, members[0].Level)
	require.NotNil(t, members[0].Email)
	assert.Equal(t, "admin@example.com", *members[0].Email)
}
