package persistence

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"draft_server/core/domain"
)

// SubscriptionAdapter implements domain.SubscriptionRepository using
// PostgreSQL.
type SubscriptionAdapter struct {
	db *sqlx.DB
}

// NewSubscriptionAdapter creates a new subscription adapter.
func NewSubscriptionAdapter(db *sqlx.DB) *SubscriptionAdapter {
	return &SubscriptionAdapter{db: db}
}

// subscriptionRow represents the database row.
type subscriptionRow struct {
	ID             int64     `db:"id"`
	ClientID       uuid.UUID `db:"client_id"`
	SubscriptionID string    `db:"subscription_id"`
	Resource       string    `db:"resource"`
	ExpiresAt      time.Time `db:"expires_at"`
	IsActive       bool      `db:"is_active"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r *subscriptionRow) toDomain() *domain.WebhookSubscription {
	return &domain.WebhookSubscription{
		ID:             r.ID,
		ClientID:       r.ClientID,
		SubscriptionID: r.SubscriptionID,
		Resource:       r.Resource,
		ExpiresAt:      r.ExpiresAt,
		IsActive:       r.IsActive,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// GetBySubscriptionID retrieves a subscription by the provider-side ID.
func (a *SubscriptionAdapter) GetBySubscriptionID(subscriptionID string) (*domain.WebhookSubscription, error) {
	var row subscriptionRow
	err := a.db.Get(&row, `SELECT * FROM webhook_subscriptions WHERE subscription_id = $1`, subscriptionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// GetByClientID retrieves the active subscription for a client.
func (a *SubscriptionAdapter) GetByClientID(clientID uuid.UUID) (*domain.WebhookSubscription, error) {
	var row subscriptionRow
	err := a.db.Get(&row, `
		SELECT * FROM webhook_subscriptions
		WHERE client_id = $1 AND is_active = true
		ORDER BY created_at DESC LIMIT 1
	`, clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// ListExpiring lists active subscriptions expiring before the given time.
func (a *SubscriptionAdapter) ListExpiring(before time.Time) ([]*domain.WebhookSubscription, error) {
	var rows []subscriptionRow
	err := a.db.Select(&rows, `
		SELECT * FROM webhook_subscriptions
		WHERE is_active = true AND expires_at < $1
		ORDER BY expires_at ASC
	`, before)
	if err != nil {
		return nil, err
	}

	subs := make([]*domain.WebhookSubscription, len(rows))
	for i, row := range rows {
		subs[i] = row.toDomain()
	}
	return subs, nil
}

// Create inserts a new subscription.
func (a *SubscriptionAdapter) Create(sub *domain.WebhookSubscription) error {
	query := `
		INSERT INTO webhook_subscriptions (
			client_id, subscription_id, resource, expires_at, is_active,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	return a.db.QueryRow(
		query,
		sub.ClientID,
		sub.SubscriptionID,
		sub.Resource,
		sub.ExpiresAt,
		sub.IsActive,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
}

// UpdateExpiration extends a renewed subscription.
func (a *SubscriptionAdapter) UpdateExpiration(id int64, expiresAt time.Time) error {
	_, err := a.db.Exec(`
		UPDATE webhook_subscriptions SET expires_at = $1, updated_at = NOW()
		WHERE id = $2
	`, expiresAt, id)
	return err
}

// Deactivate marks a subscription inactive.
func (a *SubscriptionAdapter) Deactivate(id int64) error {
	_, err := a.db.Exec(`
		UPDATE webhook_subscriptions SET is_active = false, updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

// DeactivateByClient marks all of a client's subscriptions inactive.
func (a *SubscriptionAdapter) DeactivateByClient(clientID uuid.UUID) error {
	_, err := a.db.Exec(`
		UPDATE webhook_subscriptions SET is_active = false, updated_at = NOW()
		WHERE client_id = $1
	`, clientID)
	return err
}

// Ensure interface compliance
var _ domain.SubscriptionRepository = (*SubscriptionAdapter)(nil)
