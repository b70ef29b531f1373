package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/agora-platform/agora-api/internal/authz"
	"github.com/agora-platform/agora-api/internal/handlers"
	"github.com/agora-platform/agora-api/internal/models"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth   *handlers.AuthHandler
	EID    *handlers.EIDHandler
	OpenID *handlers.OpenIDHandler
	User   *handlers.UserHandler
	Group  *handlers.GroupHandler
	Member *handlers.MemberHandler
	Invite *handlers.InviteHandler
	Guard  *authz.GroupGuard
}

// NewRouter sets up the API routes.
func NewRouter(h Handlers) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Public auth endpoints
	auth := router.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/signup", h.Auth.SignUp).Methods(http.MethodPost)
	auth.HandleFunc("/login", h.Auth.Login).Methods(http.MethodPost)
	auth.HandleFunc("/mobileid/init", h.EID.MobileIDInit).Methods(http.MethodPost)
	auth.HandleFunc("/mobileid/status", h.EID.MobileIDStatus).Methods(http.MethodGet)
	auth.HandleFunc("/smartid/init", h.EID.SmartIDInit).Methods(http.MethodPost)
	auth.HandleFunc("/smartid/status", h.EID.SmartIDStatus).Methods(http.MethodGet)
	auth.HandleFunc("/idcard", h.EID.IDCard).Methods(http.MethodPost)

	// Status and authorize resolve the caller themselves so they can answer
	// 401 instead of being cut off by the middleware.
	authed := router.PathPrefix("/api/auth").Subrouter()
	authed.Use(h.Auth.AuthenticateOptional)
	authed.HandleFunc("/status", h.Auth.Status).Methods(http.MethodGet)
	authed.HandleFunc("/openid/authorize", h.OpenID.Authorize).Methods(http.MethodGet)

	// Self-service profile and consents
	self := router.PathPrefix("/api/users/self").Subrouter()
	self.Use(h.Auth.Authenticate)
	self.HandleFunc("", h.User.GetSelf).Methods(http.MethodGet)
	self.HandleFunc("", h.User.UpdateSelf).Methods(http.MethodPut)
	self.HandleFunc("/consents", h.User.ListConsents).Methods(http.MethodGet)
	self.HandleFunc("/consents", h.User.CreateConsent).Methods(http.MethodPost)
	self.HandleFunc("/consents/{partnerID}", h.User.RevokeConsent).Methods(http.MethodDelete)

	// Group collection
	groups := router.PathPrefix("/api/groups").Subrouter()
	groups.Use(h.Auth.Authenticate)
	groups.HandleFunc("", h.Group.Create).Methods(http.MethodPost)
	groups.HandleFunc("", h.Group.List).Methods(http.MethodGet)

	// Single group, read level; public groups admit anonymous readers
	read := router.PathPrefix("/api/groups/{groupID}").Subrouter()
	read.Use(h.Auth.AuthenticateOptional, h.Guard.RequireOrPublic(models.LevelRead))
	read.HandleFunc("", h.Group.Get).Methods(http.MethodGet)
	read.HandleFunc("/members", h.Member.List).Methods(http.MethodGet)

	// Single group, admin level
	admin := router.PathPrefix("/api/groups/{groupID}").Subrouter()
	admin.Use(h.Auth.Authenticate, h.Guard.Require(models.LevelAdmin))
	admin.HandleFunc("", h.Group.Update).Methods(http.MethodPut)
	admin.HandleFunc("", h.Group.Delete).Methods(http.MethodDelete)
	admin.HandleFunc("/activity", h.Group.Activity).Methods(http.MethodGet)
	admin.HandleFunc("/members/{userID}", h.Member.UpdateLevel).Methods(http.MethodPut)
	admin.HandleFunc("/invites/users", h.Invite.Create).Methods(http.MethodPost)
	admin.HandleFunc("/invites/users", h.Invite.List).Methods(http.MethodGet)
	admin.HandleFunc("/invites/users/{inviteID}", h.Invite.Delete).Methods(http.MethodDelete)

	// Members may remove themselves; admins may remove anyone
	removal := router.PathPrefix("/api/groups/{groupID}").Subrouter()
	removal.Use(h.Auth.Authenticate, h.Guard.RequireOrSelf(models.LevelAdmin))
	removal.HandleFunc("/members/{userID}", h.Member.Remove).Methods(http.MethodDelete)

	// Invite landing and accept; the invite id is the credential for fetch
	invites := router.PathPrefix("/api/groups/{groupID}/invites/users").Subrouter()
	invites.HandleFunc("/{inviteID}", h.Invite.Fetch).Methods(http.MethodGet)

	accept := router.PathPrefix("/api/groups/{groupID}/invites/users").Subrouter()
	accept.Use(h.Auth.Authenticate)
	accept.HandleFunc("/{inviteID}/accept", h.Invite.Accept).Methods(http.MethodPost)

	return router
}
