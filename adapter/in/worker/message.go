package worker

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of a job.
type JobType = string

const (
	// JobDraftGenerate runs the drafting pipeline for one notification.
	JobDraftGenerate JobType = "draft.generate"

	// JobSubscriptionRenew renews expiring mailbox subscriptions.
	JobSubscriptionRenew JobType = "subscription.renew"
)

// Message is one unit of background work.
type Message struct {
	ID        string         `json:"id"`
	Type      JobType        `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	Retries   int            `json:"retries"`
}

func NewMessage(jobType JobType, payload map[string]any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// DraftGeneratePayload carries one validated notification.
type DraftGeneratePayload struct {
	ClientID       string `json:"client_id"`
	MessageID      string `json:"message_id"`
	SubscriptionID string `json:"subscription_id"`
}

// SubscriptionRenewPayload triggers a renewal pass.
type SubscriptionRenewPayload struct {
	RenewAll bool `json:"renew_all"`
}
