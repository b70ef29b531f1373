package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/agora-platform/agora-api/internal/eid"
	"github.com/agora-platform/agora-api/internal/models"
	"github.com/agora-platform/agora-api/internal/repository"
)

// EIDHandler exposes the mobile-ID and smart-ID authentication flows. Both
// are asynchronous: init starts a session at the provider and returns a
// verification code, then the client polls status until the provider reports
// an outcome. A completed authentication resolves to a local account keyed by
// personal code, creating it on first sign-in.
type EIDHandler struct {
	mobileID eid.Provider
	smartID  eid.Provider
	users    *repository.UserRepository
	auth     *AuthHandler
	logger   zerolog.Logger
}

func NewEIDHandler(mobileID, smartID eid.Provider, users *repository.UserRepository, auth *AuthHandler, logger zerolog.Logger) *EIDHandler {
	return &EIDHandler{
		mobileID: mobileID,
		smartID:  smartID,
		users:    users,
		auth:     auth,
		logger:   logger.With().Str("component", "eid_handler").Logger(),
	}
}

type eidInitRequest struct {
	PersonalCode string `json:"personalCode"`
	PhoneNumber  string `json:"phoneNumber"`
}

func (h *EIDHandler) MobileIDInit(w http.ResponseWriter, r *http.Request) {
	h.initAuth(w, r, h.mobileID, true)
}

func (h *EIDHandler) SmartIDInit(w http.ResponseWriter, r *http.Request) {
	h.initAuth(w, r, h.smartID, false)
}

func (h *EIDHandler) initAuth(w http.ResponseWriter, r *http.Request, provider eid.Provider, needsPhone bool) {
	var req eidInitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}

	fieldErrors := map[string]string{}
	if strings.TrimSpace(req.PersonalCode) == "" {
		fieldErrors["personalCode"] = "Personal code is required"
	}
	if needsPhone && strings.TrimSpace(req.PhoneNumber) == "" {
		fieldErrors["phoneNumber"] = "Phone number is required"
	}
	if len(fieldErrors) > 0 {
		respondFieldErrors(w, fieldErrors)
		return
	}

	session, err := provider.StartAuth(r.Context(), req.PersonalCode, req.PhoneNumber)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to start eid session")
		internalError(w)
		return
	}
	respondData(w, http.StatusOK, map[string]string{
		"sessionId":        session.ID,
		"verificationCode": session.VerificationCode,
	})
}

func (h *EIDHandler) MobileIDStatus(w http.ResponseWriter, r *http.Request) {
	h.pollStatus(w, r, h.mobileID)
}

func (h *EIDHandler) SmartIDStatus(w http.ResponseWriter, r *http.Request) {
	h.pollStatus(w, r, h.smartID)
}

func (h *EIDHandler) pollStatus(w http.ResponseWriter, r *http.Request, provider eid.Provider) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		respondFieldErrors(w, map[string]string{"sessionId": "Session id is required"})
		return
	}

	result, err := provider.AuthStatus(r.Context(), sessionID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to poll eid session")
		internalError(w)
		return
	}

	switch result.Status {
	case eid.StatusRunning:
		respondData(w, http.StatusOK, map[string]string{"status": string(eid.StatusRunning)})
	case eid.StatusFailed:
		respondMessage(w, http.StatusUnauthorized, "Authentication failed")
	case eid.StatusComplete:
		h.completeAuth(w, r, result.Identity)
	default:
		h.logger.Error().Str("status", string(result.Status)).Msg("unexpected eid status")
		internalError(w)
	}
}

func (h *EIDHandler) completeAuth(w http.ResponseWriter, r *http.Request, identity eid.Identity) {
	user, err := h.resolveIdentity(r, identity)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to resolve eid identity")
		internalError(w)
		return
	}

	token, err := h.auth.IssueToken(user.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to sign token")
		internalError(w)
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"status": string(eid.StatusComplete),
		"token":  token,
		"user":   user,
	})
}

// IDCard signs in with an ID-card certificate. TLS client authentication is
// terminated at the proxy, which forwards the verified certificate subject in
// the X-Client-Cert-Dn header (serialNumber=..., GN=..., SN=...).
func (h *EIDHandler) IDCard(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromSubjectDN(r.Header.Get("X-Client-Cert-Dn"))
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "No valid client certificate presented")
		return
	}
	h.completeAuth(w, r, identity)
}

func identityFromSubjectDN(dn string) (eid.Identity, bool) {
	var identity eid.Identity
	for _, part := range strings.Split(dn, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch strings.ToUpper(key) {
		case "SERIALNUMBER":
			// National schemes prefix the code with the document type,
			// e.g. PNOEE-38001085718.
			if _, code, found := strings.Cut(value, "-"); found {
				value = code
			}
			identity.PersonalCode = value
		case "GN", "GIVENNAME":
			identity.GivenName = value
		case "SN", "SURNAME":
			identity.Surname = value
		}
	}
	return identity, identity.PersonalCode != ""
}

// resolveIdentity finds the account for a verified personal code, creating
// one on first sign-in. eID accounts start without an email or password.
func (h *EIDHandler) resolveIdentity(r *http.Request, identity eid.Identity) (models.User, error) {
	user, err := h.users.GetByPersonalCode(r.Context(), identity.PersonalCode)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return models.User{}, err
	}

	code := identity.PersonalCode
	created, err := h.users.CreateUser(r.Context(), repository.CreateUserParams{
		Name:         displayName(identity),
		PersonalCode: &code,
	})
	if err != nil {
		return models.User{}, err
	}
	h.logger.Info().Str("user_id", created.ID).Msg("created account from eid identity")
	return created, nil
}

func displayName(identity eid.Identity) string {
	name := fmt.Sprintf("%s %s", identity.GivenName, identity.Surname)
	return strings.TrimSpace(name)
}
