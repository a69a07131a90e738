package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookSubscription is one change-notification subscription on a
// client mailbox. Created by the OAuth connect flow; the renewal job
// extends it before the provider expires it.
type WebhookSubscription struct {
	ID             int64     `json:"id"`
	ClientID       uuid.UUID `json:"client_id"`
	SubscriptionID string    `json:"subscription_id"` // provider-side id
	Resource       string    `json:"resource"`
	ExpiresAt      time.Time `json:"expires_at"`
	IsActive       bool      `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NeedsRenewal reports whether the subscription expires within a day.
func (s *WebhookSubscription) NeedsRenewal() bool {
	return time.Now().Add(24 * time.Hour).After(s.ExpiresAt)
}

// SubscriptionRepository defines webhook subscription persistence.
type SubscriptionRepository interface {
	GetBySubscriptionID(subscriptionID string) (*WebhookSubscription, error)
	GetByClientID(clientID uuid.UUID) (*WebhookSubscription, error)
	ListExpiring(before time.Time) ([]*WebhookSubscription, error)
	Create(sub *WebhookSubscription) error
	UpdateExpiration(id int64, expiresAt time.Time) error
	Deactivate(id int64) error
	DeactivateByClient(clientID uuid.UUID) error
}
