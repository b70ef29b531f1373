package models

import "time"

// User is an account on the platform. Accounts created as a side effect of
// inviting an unknown email address carry no password hash until the invitee
// signs up properly.
type User struct {
	ID            string     `json:"id"`
	Email         *string    `json:"email,omitempty"`
	Name          string     `json:"name"`
	PasswordHash  *string    `json:"-"`
	Language      string     `json:"language"`
	EmailVerified bool       `json:"emailVerified"`
	PersonalCode  *string    `json:"-"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	DeletedAt     *time.Time `json:"-"`
}

// HasPassword reports whether the account can authenticate with a password.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// EmailAddress returns the account email or the empty string.
func (u User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}
