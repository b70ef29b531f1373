// Package eid wraps the national eID authentication services. The providers
// are external collaborators reached over HTTP; this package only carries the
// narrow start/poll surface the auth handlers need.
package eid

import "context"

type Status string

const (
	StatusRunning  Status = "RUNNING"
	StatusComplete Status = "COMPLETE"
	StatusFailed   Status = "FAILED"
)

// Session identifies one in-flight authentication at the provider.
type Session struct {
	ID string
	// VerificationCode is shown to the user so they can match it against
	// the code on their device (mobile-ID and smart-ID flows).
	VerificationCode string
}

// Identity is what a completed authentication proves.
type Identity struct {
	PersonalCode string
	GivenName    string
	Surname      string
}

// StatusResult is one poll of a session.
type StatusResult struct {
	Status   Status
	Identity Identity
}

// Provider is a single eID scheme (mobile-ID, smart-ID).
type Provider interface {
	// StartAuth begins an authentication for the person. phoneNumber is
	// empty for schemes that do not use one.
	StartAuth(ctx context.Context, personalCode, phoneNumber string) (Session, error)
	// AuthStatus polls the session until it completes or fails.
	AuthStatus(ctx context.Context, sessionID string) (StatusResult, error)
}
