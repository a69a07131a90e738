package worker

import (
	"context"
	"fmt"

	"draft_server/core/port/out"
)

// Queue implements out.DraftQueue on the worker pool. Enqueue only
// hands the message to the pool; processing happens on pool workers.
type Queue struct {
	pool *Pool
}

func NewQueue(pool *Pool) *Queue {
	return &Queue{pool: pool}
}

func (q *Queue) EnqueueDraft(_ context.Context, job *out.DraftJob) error {
	msg := NewMessage(JobDraftGenerate, map[string]any{
		"client_id":       job.ClientID.String(),
		"message_id":      job.MessageID,
		"subscription_id": job.SubscriptionID,
	})
	if !q.pool.Submit(msg) {
		return fmt.Errorf("worker pool not accepting jobs")
	}
	return nil
}

func (q *Queue) EnqueueRenewal(_ context.Context) error {
	msg := NewMessage(JobSubscriptionRenew, map[string]any{"renew_all": true})
	if !q.pool.Submit(msg) {
		return fmt.Errorf("worker pool not accepting jobs")
	}
	return nil
}

// Ensure interface compliance
var _ out.DraftQueue = (*Queue)(nil)
