package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/agora-platform/agora-api/internal/authz"
	"github.com/agora-platform/agora-api/internal/repository"
	"github.com/agora-platform/agora-api/internal/validate"
)

const tokenTTL = 24 * time.Hour

type AuthHandler struct {
	users     *repository.UserRepository
	jwtSecret string
	logger    zerolog.Logger
}

func NewAuthHandler(users *repository.UserRepository, jwtSecret string, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		users:     users,
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("component", "auth_handler").Logger(),
	}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}

	fieldErrors := map[string]string{}
	req.Email = strings.TrimSpace(req.Email)
	if !validate.IsValidEmail(req.Email) {
		fieldErrors["email"] = "Invalid email address"
	}
	if len(req.Password) < 8 {
		fieldErrors["password"] = "Password must be at least 8 characters"
	}
	if strings.TrimSpace(req.Name) == "" {
		fieldErrors["name"] = "Name is required"
	}
	if len(fieldErrors) > 0 {
		respondFieldErrors(w, fieldErrors)
		return
	}

	user, err := h.users.CreateUser(r.Context(), repository.CreateUserParams{
		Email:    &req.Email,
		Name:     req.Name,
		Password: req.Password,
		Language: req.Language,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			badRequest(w, "An account with this email already exists")
			return
		}
		h.logger.Error().Err(err).Msg("signup failed")
		internalError(w)
		return
	}

	respondData(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCredentials) {
			respondMessage(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.logger.Error().Err(err).Msg("login failed")
		internalError(w)
		return
	}

	token, err := h.IssueToken(user.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to sign token")
		internalError(w)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"token": token})
}

// Status returns the authenticated caller's profile.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		unauthorized(w)
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			unauthorized(w)
			return
		}
		h.logger.Error().Err(err).Msg("status lookup failed")
		internalError(w)
		return
	}
	respondData(w, http.StatusOK, user)
}

// IssueToken signs a bearer token for the user.
func (h *AuthHandler) IssueToken(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(tokenTTL).Unix(),
	})
	return token.SignedString([]byte(h.jwtSecret))
}

// Authenticate requires a valid bearer token and stores the caller id on the
// request context.
func (h *AuthHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.callerFromHeader(r)
		if !ok {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(authz.WithUserID(r.Context(), userID)))
	})
}

// AuthenticateOptional resolves the caller when a token is present but lets
// anonymous requests pass; routes admitting public-group reads use it.
func (h *AuthHandler) AuthenticateOptional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := h.callerFromHeader(r); ok {
			r = r.WithContext(authz.WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AuthHandler) callerFromHeader(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", false
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !claims.VerifyExpiresAt(time.Now().Unix(), true) {
		return "", false
	}
	sub, _ := claims["sub"].(string)
	return sub, sub != ""
}
