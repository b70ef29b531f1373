package models

import "time"

// GroupInvite is a pending invitation for a user to join a group at a level.
// Accepting destroys the invite; admins may delete it; past the validity
// window it can no longer be accepted but stays readable for audit.
type GroupInvite struct {
	ID        string      `json:"id"`
	GroupID   string      `json:"groupId"`
	InviterID string      `json:"creatorId"`
	InviteeID string      `json:"userId"`
	Level     MemberLevel `json:"level"`
	Message   *string     `json:"message,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
	DeletedAt *time.Time  `json:"-"`
}

// AgeDays returns the whole days elapsed since the invite was created.
func (i GroupInvite) AgeDays(now time.Time) int {
	if now.Before(i.CreatedAt) {
		return 0
	}
	return int(now.Sub(i.CreatedAt).Hours() / 24)
}

// IsExpired reports whether the invite is past its validity window. An invite
// checked at exactly createdAt+window days is still valid.
func (i GroupInvite) IsExpired(now time.Time, windowDays int) bool {
	return now.After(i.CreatedAt.AddDate(0, 0, windowDays))
}

// IsDeleted reports whether the invite was soft-deleted (accepted or removed).
func (i GroupInvite) IsDeleted() bool {
	return i.DeletedAt != nil
}
