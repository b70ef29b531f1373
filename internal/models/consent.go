package models

import "time"

// Consent records that a user allowed a partner application to authenticate
// them through the OpenID authorize endpoint.
type Consent struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	PartnerID string     `json:"partnerId"`
	CreatedAt time.Time  `json:"createdAt"`
	RevokedAt *time.Time `json:"-"`
}
