package models

import "time"

type GroupVisibility string

const (
	GroupVisibilityPublic  GroupVisibility = "public"
	GroupVisibilityPrivate GroupVisibility = "private"
)

// IsValidVisibility reports whether s names a known group visibility.
func IsValidVisibility(s string) bool {
	switch GroupVisibility(s) {
	case GroupVisibilityPublic, GroupVisibilityPrivate:
		return true
	}
	return false
}

// Group is a deliberation group. Deleted groups keep their row with DeletedAt
// set and are excluded from all default queries.
type Group struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Visibility GroupVisibility `json:"visibility"`
	CreatorID  string          `json:"creatorId"`
	ParentID   *string         `json:"parentId,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	DeletedAt  *time.Time      `json:"-"`
}

// GroupOverview is the list projection of a group together with its counters.
type GroupOverview struct {
	Group
	MemberCount int `json:"memberCount"`
	InviteCount int `json:"inviteCount"`
}
