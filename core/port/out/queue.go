package out

import (
	"context"

	"github.com/google/uuid"
)

// DraftJob is one validated notification handed to the background
// pipeline. Processing runs detached from the webhook request.
type DraftJob struct {
	ClientID       uuid.UUID `json:"client_id"`
	MessageID      string    `json:"message_id"`
	SubscriptionID string    `json:"subscription_id"`
}

// DraftQueue hands work to the background worker pool. Enqueue must be
// fast and must not wait on processing.
type DraftQueue interface {
	EnqueueDraft(ctx context.Context, job *DraftJob) error
	EnqueueRenewal(ctx context.Context) error
}
