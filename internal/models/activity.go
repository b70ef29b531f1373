package models

import (
	"encoding/json"
	"time"
)

type ActivityKind string

const (
	ActivityKindCreate ActivityKind = "create"
	ActivityKindUpdate ActivityKind = "update"
	ActivityKindDelete ActivityKind = "delete"
	ActivityKindInvite ActivityKind = "invite"
	ActivityKindAccept ActivityKind = "accept"
)

// Actor identifies who performed an audited action.
type Actor struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	IP   string `json:"ip,omitempty"`
}

// Activity is one audit-trail row. Rows are written inside the same
// transaction as the mutation they document and are never updated afterwards.
type Activity struct {
	ID                string          `json:"id"`
	Kind              ActivityKind    `json:"kind"`
	ActorType         string          `json:"actorType"`
	ActorID           string          `json:"actorId"`
	ActorIP           *string         `json:"actorIp,omitempty"`
	EntityType        string          `json:"entityType"`
	EntityID          string          `json:"entityId"`
	RelatedEntityType *string         `json:"relatedEntityType,omitempty"`
	RelatedEntityID   *string         `json:"relatedEntityId,omitempty"`
	Label             string          `json:"label"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}
