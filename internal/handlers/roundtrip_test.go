package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-platform/agora-api/internal/authz"
	"github.com/agora-platform/agora-api/internal/database"
	"github.com/agora-platform/agora-api/internal/handlers"
	"github.com/agora-platform/agora-api/internal/invitation"
	"github.com/agora-platform/agora-api/internal/models"
	"github.com/agora-platform/agora-api/internal/notification"
	"github.com/agora-platform/agora-api/internal/repository"
	"github.com/agora-platform/agora-api/internal/routes"
)

type captureMailer struct {
	sent []notification.GroupInviteMail
}

func (m *captureMailer) SendGroupInviteCreated(invites []notification.GroupInviteMail) error {
	m.sent = append(m.sent, invites...)
	return nil
}

type testApp struct {
	router      http.Handler
	auth        *handlers.AuthHandler
	mailer      *captureMailer
	users       *repository.UserRepository
	memberships *repository.MembershipRepository
	invites     *repository.InviteRepository
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db := database.NewTestDB(t)
	logger := zerolog.Nop()

	userRepo := repository.NewUserRepository(db)
	consentRepo := repository.NewConsentRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	inviteRepo := repository.NewInviteRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	mailer := &captureMailer{}
	reconciler := invitation.NewReconciler(db, userRepo, groupRepo, membershipRepo, inviteRepo, activityRepo, mailer, logger)
	lifecycle := invitation.NewLifecycle(db, userRepo, membershipRepo, inviteRepo, activityRepo, 14, logger)

	evaluator := authz.NewEvaluator(groupRepo, membershipRepo)
	guard := authz.NewGroupGuard(evaluator, logger, handlers.Forbidden)

	authHandler := handlers.NewAuthHandler(userRepo, "test-secret", logger)
	router := routes.NewRouter(routes.Handlers{
		Auth:   authHandler,
		User:   handlers.NewUserHandler(userRepo, consentRepo, logger),
		Group:  handlers.NewGroupHandler(db, groupRepo, membershipRepo, activityRepo, logger),
		Member: handlers.NewMemberHandler(db, membershipRepo, activityRepo, logger),
		Invite: handlers.NewInviteHandler(reconciler, lifecycle, inviteRepo, logger),
		Guard:  guard,
	})

	return &testApp{
		router:      router,
		auth:        authHandler,
		mailer:      mailer,
		users:       userRepo,
		memberships: membershipRepo,
		invites:     inviteRepo,
	}
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func (a *testApp) signUp(t *testing.T, email, name string) (models.User, string) {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    email,
		"password": "hunter2hunter2",
		"name":     name,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var user models.User
	decodeData(t, rec, &user)

	token, err := a.auth.IssueToken(user.ID)
	require.NoError(t, err)
	return user, token
}

// The full journey: an admin creates a group, invites an unknown email, the
// invitee opens the emailed link and accepts, and ends up a member while the
// invitation is destroyed.
func TestInviteRoundTrip(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	_, adminToken := app.signUp(t, "admin@example.com", "Ada Admin")

	rec := app.do(t, http.MethodPost, "/api/groups", adminToken, map[string]string{
		"name":       "City Budget",
		"visibility": "private",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var group models.Group
	decodeData(t, rec, &group)

	rec = app.do(t, http.MethodPost, "/api/groups/"+group.ID+"/invites/users", adminToken, map[string]interface{}{
		"invites":       []map[string]string{{"email": "newcomer@example.com", "level": "write"}},
		"inviteMessage": "Join our budget review",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Len(t, app.mailer.sent, 1)
	mail := app.mailer.sent[0]
	assert.Equal(t, "newcomer@example.com", mail.InviteeEmail)
	assert.Equal(t, group.ID, mail.GroupID)

	// The placeholder account exists but its email is not yet confirmed.
	invitee, err := app.users.GetByEmail(ctx, "newcomer@example.com")
	require.NoError(t, err)
	assert.False(t, invitee.HasPassword())
	assert.False(t, invitee.EmailVerified)

	// Opening the invite link needs no authentication and confirms the email.
	invitePath := fmt.Sprintf("/api/groups/%s/invites/users/%s", mail.GroupID, mail.InviteID)
	rec = app.do(t, http.MethodGet, invitePath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	invitee, err = app.users.GetByID(ctx, invitee.ID)
	require.NoError(t, err)
	assert.True(t, invitee.EmailVerified)

	inviteeToken, err := app.auth.IssueToken(invitee.ID)
	require.NoError(t, err)
	rec = app.do(t, http.MethodPost, invitePath+"/accept", inviteeToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	membership, err := app.memberships.Get(ctx, group.ID, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LevelWrite, membership.Level)

	invite, err := app.invites.GetByID(ctx, mail.InviteID, group.ID)
	require.NoError(t, err)
	assert.True(t, invite.IsDeleted())
}

// Accepting someone else's invitation is forbidden, and a non-admin member
// cannot manage the group's invitations.
func TestInviteAccessControl(t *testing.T) {
	app := newTestApp(t)

	_, adminToken := app.signUp(t, "admin@example.com", "Ada Admin")
	_, strangerToken := app.signUp(t, "stranger@example.com", "Sam Stranger")

	rec := app.do(t, http.MethodPost, "/api/groups", adminToken, map[string]string{
		"name":       "Housing Forum",
		"visibility": "private",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var group models.Group
	decodeData(t, rec, &group)

	rec = app.do(t, http.MethodPost, "/api/groups/"+group.ID+"/invites/users", adminToken, map[string]interface{}{
		"invites": []map[string]string{{"email": "invitee@example.com", "level": "read"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, app.mailer.sent, 1)
	mail := app.mailer.sent[0]

	invitePath := fmt.Sprintf("/api/groups/%s/invites/users/%s", mail.GroupID, mail.InviteID)

	// A different authenticated user cannot accept the invitation.
	rec = app.do(t, http.MethodPost, invitePath+"/accept", strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// A non-member cannot list or delete invitations.
	rec = app.do(t, http.MethodGet, "/api/groups/"+group.ID+"/invites/users", strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = app.do(t, http.MethodDelete, invitePath, strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The admin can delete it; a second delete reports not found.
	rec = app.do(t, http.MethodDelete, invitePath, adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, http.MethodDelete, invitePath, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// A batch where nothing could be created is a rejection even though the
// reconciler itself succeeds.
func TestInviteBatchRejectedWhenNothingCreated(t *testing.T) {
	app := newTestApp(t)

	admin, adminToken := app.signUp(t, "admin@example.com", "Ada Admin")

	rec := app.do(t, http.MethodPost, "/api/groups", adminToken, map[string]string{
		"name":       "Parks Board",
		"visibility": "private",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var group models.Group
	decodeData(t, rec, &group)

	// Self-invites and malformed identities are all dropped.
	rec = app.do(t, http.MethodPost, "/api/groups/"+group.ID+"/invites/users", adminToken, map[string]interface{}{
		"invites": []map[string]string{
			{"userId": admin.ID, "level": "read"},
			{"email": "not-an-email", "level": "write"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, app.mailer.sent)
}

// Public groups are readable without authentication, private ones are not.
func TestPublicGroupVisibility(t *testing.T) {
	app := newTestApp(t)

	_, token := app.signUp(t, "admin@example.com", "Ada Admin")

	rec := app.do(t, http.MethodPost, "/api/groups", token, map[string]string{
		"name":       "Open Assembly",
		"visibility": "public",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var public models.Group
	decodeData(t, rec, &public)

	rec = app.do(t, http.MethodPost, "/api/groups", token, map[string]string{
		"name":       "Closed Circle",
		"visibility": "private",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var private models.Group
	decodeData(t, rec, &private)

	rec = app.do(t, http.MethodGet, "/api/groups/"+public.ID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/groups/"+private.ID, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
