package handlers

import (
	"net"
	"net/http"

	"github.com/agora-platform/agora-api/internal/authz"
	"github.com/agora-platform/agora-api/internal/models"
)

// actorFromRequest builds the audit actor for the authenticated caller.
func actorFromRequest(r *http.Request) models.Actor {
	userID, _ := authz.UserIDFromRequest(r)
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}
	return models.Actor{Type: "user", ID: userID, IP: ip}
}
