package models

import "time"

// Membership links a user to a group at a level. A (group, user) pair is
// unique while the row is not soft-deleted.
type Membership struct {
	GroupID   string      `json:"groupId"`
	UserID    string      `json:"userId"`
	Level     MemberLevel `json:"level"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
	DeletedAt *time.Time  `json:"-"`
}

// Member is the member-list projection: the membership together with the user
// it belongs to, mapped explicitly instead of flattening raw query rows.
type Member struct {
	UserID        string      `json:"id"`
	Name          string      `json:"name"`
	Email         *string     `json:"email,omitempty"`
	Level         MemberLevel `json:"level"`
	EmailVerified bool        `json:"emailVerified"`
	JoinedAt      time.Time   `json:"joinedAt"`
}
