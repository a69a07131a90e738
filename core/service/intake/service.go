package intake

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"draft_server/core/domain"
	"draft_server/core/port/out"
	"draft_server/pkg/logger"
)

const (
	changeTypeCreated = "created"

	// idempotencyTTL covers the provider's redelivery window with room
	// to spare.
	idempotencyTTL = 24 * time.Hour
)

// Notification is one entry of a change-notification batch.
type Notification struct {
	SubscriptionID string       `json:"subscriptionId"`
	ChangeType     string       `json:"changeType"`
	ClientState    string       `json:"clientState"`
	Resource       string       `json:"resource"`
	ResourceData   ResourceData `json:"resourceData"`
}

// ResourceData carries the provider message id for the changed resource.
type ResourceData struct {
	ID string `json:"id"`
}

// NotificationBatch is the webhook POST body.
type NotificationBatch struct {
	Value []Notification `json:"value"`
}

// Metrics are intake counters, read lock-free for the metrics route.
type Metrics struct {
	Received   atomic.Int64
	Queued     atomic.Int64
	Duplicates atomic.Int64
	Dropped    atomic.Int64
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"received":   m.Received.Load(),
		"queued":     m.Queued.Load(),
		"duplicates": m.Duplicates.Load(),
		"dropped":    m.Dropped.Load(),
	}
}

// Service validates incoming notification batches and fans eligible
// notifications out to the draft queue. Invalid notifications are
// dropped and logged; they are never surfaced to the sender, so the
// provider never retries garbage.
type Service struct {
	subscriptions domain.SubscriptionRepository
	queue         out.DraftQueue
	redis         *redis.Client // nil disables the fast-path dedupe
	clientState   string

	metrics Metrics
	log     *logger.Logger
}

func NewService(subscriptions domain.SubscriptionRepository, queue out.DraftQueue, rdb *redis.Client, clientState string) *Service {
	return &Service{
		subscriptions: subscriptions,
		queue:         queue,
		redis:         rdb,
		clientState:   clientState,
		log:           logger.Default().WithField("component", "intake"),
	}
}

// Metrics exposes the intake counters.
func (s *Service) Metrics() *Metrics {
	return &s.metrics
}

// HandleBatch processes every notification in the batch independently.
// It never returns an error for bad notifications — the webhook
// response is 202 regardless — and only reports how many jobs were
// queued.
func (s *Service) HandleBatch(ctx context.Context, batch *NotificationBatch) int {
	queued := 0
	for i := range batch.Value {
		if s.handleOne(ctx, &batch.Value[i]) {
			queued++
		}
	}
	return queued
}

func (s *Service) handleOne(ctx context.Context, n *Notification) bool {
	s.metrics.Received.Add(1)

	if n.ClientState != s.clientState {
		s.metrics.Dropped.Add(1)
		s.log.WithField("subscription_id", n.SubscriptionID).
			Warn("dropping notification with mismatched client state")
		return false
	}
	if n.ChangeType != changeTypeCreated || n.ResourceData.ID == "" {
		s.metrics.Dropped.Add(1)
		s.log.Debug("ignoring notification: changeType=%s", n.ChangeType)
		return false
	}

	sub, err := s.subscriptions.GetBySubscriptionID(n.SubscriptionID)
	if err != nil {
		s.metrics.Dropped.Add(1)
		s.log.WithError(err).WithField("subscription_id", n.SubscriptionID).
			Error("failed to resolve subscription")
		return false
	}
	if sub == nil || !sub.IsActive {
		s.metrics.Dropped.Add(1)
		s.log.WithField("subscription_id", n.SubscriptionID).
			Info("dropping notification for unknown or inactive subscription")
		return false
	}

	if s.isDuplicate(ctx, n) {
		s.metrics.Duplicates.Add(1)
		s.log.WithField("message_id", n.ResourceData.ID).
			Debug("dropping duplicate notification")
		return false
	}

	job := &out.DraftJob{
		ClientID:       sub.ClientID,
		MessageID:      n.ResourceData.ID,
		SubscriptionID: n.SubscriptionID,
	}
	if err := s.queue.EnqueueDraft(ctx, job); err != nil {
		s.metrics.Dropped.Add(1)
		s.log.WithError(err).WithField("message_id", n.ResourceData.ID).
			Error("failed to enqueue draft job")
		return false
	}

	s.metrics.Queued.Add(1)
	return true
}

// isDuplicate claims an idempotency key in redis. First claim wins;
// redelivery within the TTL is dropped here before it reaches the pool.
// The email table's unique message id constraint remains the hard
// guarantee, so a missing or failing redis degrades to extra work, not
// duplicate drafts.
func (s *Service) isDuplicate(ctx context.Context, n *Notification) bool {
	if s.redis == nil {
		return false
	}

	key := fmt.Sprintf("intake:dedupe:%s:%s", n.SubscriptionID, n.ResourceData.ID)
	ok, err := s.redis.SetNX(ctx, key, 1, idempotencyTTL).Result()
	if err != nil {
		s.log.WithError(err).Warn("idempotency check failed, continuing without it")
		return false
	}
	return !ok
}
