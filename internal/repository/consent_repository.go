package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/agora-platform/agora-api/internal/database"
	"github.com/agora-platform/agora-api/internal/models"
)

type ConsentRepository struct {
	q database.Queryer
}

func NewConsentRepository(db *database.DB) *ConsentRepository {
	return &ConsentRepository{q: db}
}

func (r *ConsentRepository) WithTx(tx *database.Tx) *ConsentRepository {
	return &ConsentRepository{q: tx}
}

// Create records consent for a partner. Re-consenting while an unrevoked
// record exists returns the existing record.
func (r *ConsentRepository) Create(ctx context.Context, userID, partnerID string) (models.Consent, error) {
	if existing, err := r.Get(ctx, userID, partnerID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return models.Consent{}, err
	}

	consent := models.Consent{
		ID:        uuid.NewString(),
		UserID:    userID,
		PartnerID: partnerID,
		CreatedAt: time.Now().UTC(),
	}
	const query = `
		INSERT INTO consents (id, user_id, partner_id, created_at)
		VALUES (?, ?, ?, ?)`
	if _, err := r.q.ExecContext(ctx, query, consent.ID, consent.UserID, consent.PartnerID, consent.CreatedAt); err != nil {
		return models.Consent{}, errors.Wrap(err, "insert consent")
	}
	return consent, nil
}

func (r *ConsentRepository) Get(ctx context.Context, userID, partnerID string) (models.Consent, error) {
	const query = `
		SELECT id, user_id, partner_id, created_at, revoked_at
		FROM consents
		WHERE user_id = ? AND partner_id = ? AND revoked_at IS NULL`
	var c models.Consent
	err := r.q.QueryRowContext(ctx, query, userID, partnerID).Scan(
		&c.ID, &c.UserID, &c.PartnerID, &c.CreatedAt, &c.RevokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Consent{}, ErrNotFound
		}
		return models.Consent{}, errors.Wrap(err, "scan consent")
	}
	return c, nil
}

func (r *ConsentRepository) ListForUser(ctx context.Context, userID string) ([]models.Consent, error) {
	const query = `
		SELECT id, user_id, partner_id, created_at, revoked_at
		FROM consents
		WHERE user_id = ? AND revoked_at IS NULL
		ORDER BY created_at DESC`
	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query consents")
	}
	defer rows.Close()

	var consents []models.Consent
	for rows.Next() {
		var c models.Consent
		if err := rows.Scan(&c.ID, &c.UserID, &c.PartnerID, &c.CreatedAt, &c.RevokedAt); err != nil {
			return nil, errors.Wrap(err, "scan consent")
		}
		consents = append(consents, c)
	}
	return consents, rows.Err()
}

func (r *ConsentRepository) Revoke(ctx context.Context, userID, partnerID string) error {
	const query = `
		UPDATE consents
		SET revoked_at = ?
		WHERE user_id = ? AND partner_id = ? AND revoked_at IS NULL`
	result, err := r.q.ExecContext(ctx, query, time.Now().UTC(), userID, partnerID)
	if err != nil {
		return errors.Wrap(err, "revoke consent")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}
