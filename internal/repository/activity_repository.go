package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/agora-platform/agora-api/internal/database"
	"github.com/agora-platform/agora-api/internal/models"
)

// ActivityRepository writes audit-trail rows. Every state-changing operation
// records one inside the transaction that performs the mutation, so a failed
// audit write aborts the mutation too.
type ActivityRepository struct {
	q database.Queryer
}

func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{q: db}
}

func (r *ActivityRepository) WithTx(tx *database.Tx) *ActivityRepository {
	return &ActivityRepository{q: tx}
}

type ActivityEntry struct {
	Kind        models.ActivityKind
	Actor       models.Actor
	EntityType  string
	EntityID    string
	RelatedType string
	RelatedID   string
	Label       string
	Payload     interface{}
}

func (r *ActivityRepository) Record(ctx context.Context, entry ActivityEntry) error {
	var payload []byte
	if entry.Payload != nil {
		raw, err := json.Marshal(entry.Payload)
		if err != nil {
			return errors.Wrap(err, "marshal activity payload")
		}
		payload = raw
	}

	var actorIP *string
	if entry.Actor.IP != "" {
		actorIP = &entry.Actor.IP
	}
	var relatedType, relatedID *string
	if entry.RelatedType != "" {
		relatedType = &entry.RelatedType
		relatedID = &entry.RelatedID
	}

	const query = `
		INSERT INTO activities (id, kind, actor_type, actor_id, actor_ip, entity_type, entity_id, related_entity_type, related_entity_id, label, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.q.ExecContext(ctx, query,
		uuid.NewString(), entry.Kind, entry.Actor.Type, entry.Actor.ID, actorIP,
		entry.EntityType, entry.EntityID, relatedType, relatedID,
		entry.Label, payload, time.Now().UTC())
	return errors.Wrap(err, "insert activity")
}

func (r *ActivityRepository) RecordCreate(ctx context.Context, actor models.Actor, entityType, entityID, label string, payload interface{}) error {
	return r.Record(ctx, ActivityEntry{Kind: models.ActivityKindCreate, Actor: actor, EntityType: entityType, EntityID: entityID, Label: label, Payload: payload})
}

func (r *ActivityRepository) RecordUpdate(ctx context.Context, actor models.Actor, entityType, entityID, label string, payload interface{}) error {
	return r.Record(ctx, ActivityEntry{Kind: models.ActivityKindUpdate, Actor: actor, EntityType: entityType, EntityID: entityID, Label: label, Payload: payload})
}

func (r *ActivityRepository) RecordDelete(ctx context.Context, actor models.Actor, entityType, entityID, label string) error {
	return r.Record(ctx, ActivityEntry{Kind: models.ActivityKindDelete, Actor: actor, EntityType: entityType, EntityID: entityID, Label: label})
}

func (r *ActivityRepository) RecordInvite(ctx context.Context, actor models.Actor, entityType, entityID, relatedType, relatedID, label string) error {
	return r.Record(ctx, ActivityEntry{Kind: models.ActivityKindInvite, Actor: actor, EntityType: entityType, EntityID: entityID, RelatedType: relatedType, RelatedID: relatedID, Label: label})
}

func (r *ActivityRepository) RecordAccept(ctx context.Context, actor models.Actor, entityType, entityID, relatedType, relatedID, label string) error {
	return r.Record(ctx, ActivityEntry{Kind: models.ActivityKindAccept, Actor: actor, EntityType: entityType, EntityID: entityID, RelatedType: relatedType, RelatedID: relatedID, Label: label})
}

// ListForEntity returns the audit rows of one entity, newest first.
func (r *ActivityRepository) ListForEntity(ctx context.Context, entityType, entityID string, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, kind, actor_type, actor_id, actor_ip, entity_type, entity_id, related_entity_type, related_entity_id, label, payload, created_at
		FROM activities
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at DESC
		LIMIT ?`
	rows, err := r.q.QueryContext(ctx, query, entityType, entityID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query activities")
	}
	defer rows.Close()

	var activities []models.Activity
	for rows.Next() {
		var a models.Activity
		var payload []byte
		if err := rows.Scan(
			&a.ID, &a.Kind, &a.ActorType, &a.ActorID, &a.ActorIP,
			&a.EntityType, &a.EntityID, &a.RelatedEntityType, &a.RelatedEntityID,
			&a.Label, &payload, &a.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan activity")
		}
		a.Payload = payload
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
