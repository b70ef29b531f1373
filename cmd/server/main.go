package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/rs/zerolog"

	"github.com/agora-platform/agora-api/internal/authz"
	"github.com/agora-platform/agora-api/internal/config"
	"github.com/agora-platform/agora-api/internal/database"
	"github.com/agora-platform/agora-api/internal/eid"
	"github.com/agora-platform/agora-api/internal/handlers"
	"github.com/agora-platform/agora-api/internal/invitation"
	"github.com/agora-platform/agora-api/internal/middleware"
	"github.com/agora-platform/agora-api/internal/migration"
	"github.com/agora-platform/agora-api/internal/notification"
	"github.com/agora-platform/agora-api/internal/repository"
	"github.com/agora-platform/agora-api/internal/routes"
)

type application struct {
	config *config.Config
	db     *database.DB
	logger zerolog.Logger
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := database.Open(database.NewPostgresDialect(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Pool().Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	if err := migration.Run(db.Pool(), "postgres"); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	app := &application{
		config: cfg,
		db:     db,
		logger: logger,
	}

	router := app.initRouter(logger)
	loggedRouter := middleware.Logging(logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins(cfg.CORSOrigins),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	app.startServer(corsHandler, logger)

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(logger zerolog.Logger) http.Handler {
	// Repositories
	userRepo := repository.NewUserRepository(app.db)
	consentRepo := repository.NewConsentRepository(app.db)
	groupRepo := repository.NewGroupRepository(app.db)
	membershipRepo := repository.NewMembershipRepository(app.db)
	inviteRepo := repository.NewInviteRepository(app.db)
	activityRepo := repository.NewActivityRepository(app.db)

	// Mailer for invites
	inviteMailer, err := notification.NewSMTPInviteMailer(app.config.Email, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure invite mailer")
	}

	// Invitation flows
	reconciler := invitation.NewReconciler(app.db, userRepo, groupRepo, membershipRepo, inviteRepo, activityRepo, inviteMailer, logger)
	lifecycle := invitation.NewLifecycle(app.db, userRepo, membershipRepo, inviteRepo, activityRepo, app.config.Invite.ExpiryDays, logger)

	// Permission evaluation
	evaluator := authz.NewEvaluator(groupRepo, membershipRepo)
	guard := authz.NewGroupGuard(evaluator, logger, handlers.Forbidden)

	// eID providers
	mobileID := eid.NewClient(app.config.EID.MobileIDEndpoint, app.config.EID.RelyingPartyName, app.config.EID.RelyingPartyUUID)
	smartID := eid.NewClient(app.config.EID.SmartIDEndpoint, app.config.EID.RelyingPartyName, app.config.EID.RelyingPartyUUID)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, app.config.JWTSecret, logger)
	eidHandler := handlers.NewEIDHandler(mobileID, smartID, userRepo, authHandler, logger)
	openIDHandler := handlers.NewOpenIDHandler(app.config.Partners, userRepo, consentRepo, app.config.JWTSecret, app.config.Issuer, logger)
	userHandler := handlers.NewUserHandler(userRepo, consentRepo, logger)
	groupHandler := handlers.NewGroupHandler(app.db, groupRepo, membershipRepo, activityRepo, logger)
	memberHandler := handlers.NewMemberHandler(app.db, membershipRepo, activityRepo, logger)
	inviteHandler := handlers.NewInviteHandler(reconciler, lifecycle, inviteRepo, logger)

	return routes.NewRouter(routes.Handlers{
		Auth:   authHandler,
		EID:    eidHandler,
		OpenID: openIDHandler,
		User:   userHandler,
		Group:  groupHandler,
		Member: memberHandler,
		Invite: inviteHandler,
		Guard:  guard,
	})
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}
}
