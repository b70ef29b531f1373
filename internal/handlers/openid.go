package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"

	"github.com/agora-platform/agora-api/internal/authz"
	"github.com/agora-platform/agora-api/internal/config"
	"github.com/agora-platform/agora-api/internal/repository"
)

// OpenIDHandler implements the implicit-flow authorize endpoint for partner
// applications. Only registered partners may authorize, and only against the
// redirect URI they registered with.
type OpenIDHandler struct {
	partners  []config.Partner
	users     *repository.UserRepository
	consents  *repository.ConsentRepository
	jwtSecret string
	issuer    string
	logger    zerolog.Logger
}

func NewOpenIDHandler(
	partners []config.Partner,
	users *repository.UserRepository,
	consents *repository.ConsentRepository,
	jwtSecret, issuer string,
	logger zerolog.Logger,
) *OpenIDHandler {
	return &OpenIDHandler{
		partners:  partners,
		users:     users,
		consents:  consents,
		jwtSecret: jwtSecret,
		issuer:    issuer,
		logger:    logger.With().Str("component", "openid_handler").Logger(),
	}
}

// Authorize validates the authorization request, records the user's consent
// for the partner and redirects back with an id_token in the URL fragment.
func (h *OpenIDHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	clientID := query.Get("client_id")
	redirectURI := query.Get("redirect_uri")

	partner, ok := h.findPartner(clientID)
	if !ok {
		badRequest(w, "Unknown client_id")
		return
	}
	if redirectURI != partner.RedirectURI {
		badRequest(w, "redirect_uri does not match the registered value")
		return
	}
	if query.Get("response_type") != "id_token" {
		badRequest(w, "Only response_type=id_token is supported")
		return
	}

	callerID, ok := authz.UserIDFromRequest(r)
	if !ok {
		unauthorized(w)
		return
	}
	user, err := h.users.GetByID(r.Context(), callerID)
	if err != nil {
		unauthorized(w)
		return
	}

	if _, err := h.consents.Create(r.Context(), user.ID, partner.ID); err != nil {
		h.logger.Error().Err(err).Msg("failed to record consent")
		internalError(w)
		return
	}

	idToken, err := h.signIDToken(user.ID, user.Name, partner.ID, query.Get("nonce"))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to sign id token")
		internalError(w)
		return
	}

	fragment := url.Values{"id_token": {idToken}}
	if state := query.Get("state"); state != "" {
		fragment.Set("state", state)
	}
	http.Redirect(w, r, fmt.Sprintf("%s#%s", redirectURI, fragment.Encode()), http.StatusFound)
}

func (h *OpenIDHandler) findPartner(clientID string) (config.Partner, bool) {
	for _, partner := range h.partners {
		if partner.ID == clientID {
			return partner, true
		}
	}
	return config.Partner{}, false
}

func (h *OpenIDHandler) signIDToken(userID, name, audience, nonce string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":  h.issuer,
		"sub":  userID,
		"aud":  audience,
		"name": name,
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.jwtSecret))
}
