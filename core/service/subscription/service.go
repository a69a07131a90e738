package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"draft_server/core/domain"
	"draft_server/core/port/out"
	"draft_server/pkg/apperr"
	"draft_server/pkg/logger"
)

// renewalWindow is how far ahead of expiry a subscription is renewed.
const renewalWindow = 24 * time.Hour

// Service keeps mailbox change-notification subscriptions alive. The
// provider expires them after a few days; the worker runs RenewExpiring
// on a ticker so notifications never stop flowing for an active client.
type Service struct {
	subscriptions domain.SubscriptionRepository
	credentials   out.CredentialProvider
	mailbox       out.MailboxGateway
	log           *logger.Logger
}

func NewService(subscriptions domain.SubscriptionRepository, credentials out.CredentialProvider, mailbox out.MailboxGateway) *Service {
	return &Service{
		subscriptions: subscriptions,
		credentials:   credentials,
		mailbox:       mailbox,
		log:           logger.Default().WithField("component", "subscription"),
	}
}

// RenewExpiring renews every active subscription expiring within the
// renewal window. Failures are per-subscription: one dead credential
// must not stop the rest of the fleet from renewing. Returns how many
// were renewed.
func (s *Service) RenewExpiring(ctx context.Context) (int, error) {
	expiring, err := s.subscriptions.ListExpiring(time.Now().Add(renewalWindow))
	if err != nil {
		return 0, err
	}
	if len(expiring) == 0 {
		return 0, nil
	}

	renewed := 0
	for _, sub := range expiring {
		if err := s.renewOne(ctx, sub); err != nil {
			var ae *apperr.AppError
			if errors.As(err, &ae) && ae.Code == apperr.CodeNotFound {
				// The provider no longer knows this subscription;
				// renewing it again next pass is pointless.
				if derr := s.subscriptions.Deactivate(sub.ID); derr != nil {
					s.log.WithError(derr).WithField("subscription_id", sub.SubscriptionID).
						Error("failed to deactivate gone subscription")
				} else {
					s.log.WithField("subscription_id", sub.SubscriptionID).
						Warn("subscription gone upstream, deactivated")
				}
				continue
			}
			s.log.WithError(err).WithFields(map[string]any{
				"subscription_id": sub.SubscriptionID,
				"client_id":       sub.ClientID.String(),
			}).Error("failed to renew subscription")
			continue
		}
		renewed++
	}

	s.log.Info("subscription renewal pass: %d/%d renewed", renewed, len(expiring))
	return renewed, nil
}

func (s *Service) renewOne(ctx context.Context, sub *domain.WebhookSubscription) error {
	cred, err := s.credentials.Get(ctx, sub.ClientID)
	if err != nil {
		return err
	}

	expiresAt, err := s.mailbox.RenewSubscription(ctx, cred, sub.SubscriptionID)
	if err != nil {
		return err
	}
	return s.subscriptions.UpdateExpiration(sub.ID, expiresAt)
}

// Disconnect tears down a client's mailbox subscription when the
// client is deactivated: best-effort delete at the provider, then mark
// the rows inactive so intake stops resolving them. Provider-side
// failures are logged, not returned; the local deactivation is what
// stops the pipeline.
func (s *Service) Disconnect(ctx context.Context, clientID uuid.UUID) error {
	sub, err := s.subscriptions.GetByClientID(clientID)
	if err != nil {
		return err
	}

	if sub != nil {
		cred, err := s.credentials.Get(ctx, clientID)
		if err != nil {
			s.log.WithError(err).WithField("client_id", clientID.String()).
				Warn("no credential for provider-side subscription delete")
		} else if err := s.mailbox.DeleteSubscription(ctx, cred, sub.SubscriptionID); err != nil {
			s.log.WithError(err).WithField("subscription_id", sub.SubscriptionID).
				Warn("failed to delete provider subscription")
		}
	}

	return s.subscriptions.DeactivateByClient(clientID)
}
