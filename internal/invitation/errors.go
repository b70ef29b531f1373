package invitation

import "github.com/pkg/errors"

var (
	// ErrNotInvitee is returned when someone other than the invited user
	// tries to accept an invitation.
	ErrNotInvitee = errors.New("invitation belongs to another user")

	// ErrInviteExpired marks an invitation past its validity window.
	ErrInviteExpired = errors.New("invitation has expired")

	// ErrInviteGone marks an invitation that was deleted or already used.
	ErrInviteGone = errors.New("invitation is no longer available")
)
