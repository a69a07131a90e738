package drafting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"draft_server/core/domain"
	"draft_server/core/port/out"
	"draft_server/pkg/logger"
)

// Orchestrator runs the full pipeline for one validated notification:
// resolve client, policy gates, fetch, generate, write the draft back
// and record the outcome. Every failure is scoped to the one
// notification being processed; there is no retry inside a run —
// redelivery from upstream is the only retry path.
type Orchestrator struct {
	clients       domain.ClientRepository
	emails        domain.EmailRepository
	responses     domain.ResponseRepository
	templates     domain.TemplateRepository
	subscriptions domain.SubscriptionRepository

	credentials out.CredentialProvider
	mailbox     out.MailboxGateway
	engine      out.GenerationEngine

	log *logger.Logger

	// now is swapped in tests to pin the business-hours gate.
	now func() time.Time
}

func NewOrchestrator(
	clients domain.ClientRepository,
	emails domain.EmailRepository,
	responses domain.ResponseRepository,
	templates domain.TemplateRepository,
	subscriptions domain.SubscriptionRepository,
	credentials out.CredentialProvider,
	mailbox out.MailboxGateway,
	engine out.GenerationEngine,
) *Orchestrator {
	return &Orchestrator{
		clients:       clients,
		emails:        emails,
		responses:     responses,
		templates:     templates,
		subscriptions: subscriptions,
		credentials:   credentials,
		mailbox:       mailbox,
		engine:        engine,
		log:           logger.Default().WithField("component", "drafting"),
		now:           time.Now,
	}
}

// ProcessNotification drafts a reply for the message named by the job.
// A nil return means the run ended cleanly, including the skip paths
// (unknown client, AI disabled, self-email, duplicate, outside business
// hours); an error means this notification failed and the email row, if
// one exists, was moved to error.
func (o *Orchestrator) ProcessNotification(ctx context.Context, job *out.DraftJob) error {
	log := o.log.WithFields(map[string]any{
		"client_id":  job.ClientID.String(),
		"message_id": job.MessageID,
	})

	client, err := o.resolveClient(job)
	if err != nil {
		return err
	}
	if client == nil {
		log.Info("skipping notification: no active client for subscription")
		return nil
	}
	if !client.HasCredential() {
		log.Info("skipping notification: client has no mailbox credential")
		return nil
	}
	if !client.AIEnabled {
		log.Debug("skipping notification: ai drafting disabled")
		return nil
	}

	cred, err := o.credentials.Get(ctx, client.ID)
	if err != nil {
		log.WithError(err).Error("failed to resolve credential")
		return fmt.Errorf("resolve credential: %w", err)
	}

	msg, err := o.mailbox.FetchMessage(ctx, cred, job.MessageID)
	if err != nil {
		log.WithError(err).Error("failed to fetch message")
		return fmt.Errorf("fetch message: %w", err)
	}

	// Self-reply loop guard: drafting replies to the client's own sent
	// mail would bounce notifications forever.
	if client.IsSelf(msg.FromEmail) {
		log.Debug("skipping notification: message sent by the client itself")
		return nil
	}

	email := &domain.Email{
		ClientID:       client.ID,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		Subject:        msg.Subject,
		BodyPreview:    msg.BodyPreview,
		FromName:       msg.FromName,
		FromEmail:      msg.FromEmail,
		ToEmails:       msg.To,
		Status:         domain.StatusReceived,
		ReceivedAt:     msg.ReceivedAt,
	}
	created, err := o.emails.Create(email)
	if err != nil {
		log.WithError(err).Error("failed to insert email")
		return fmt.Errorf("insert email: %w", err)
	}
	if !created {
		// Another delivery of the same message already claimed the row.
		log.Info("skipping notification: message already recorded")
		return nil
	}

	log = log.WithField("email_id", email.ID)

	if err := o.emails.UpdateStatus(email.ID, domain.StatusReceived, domain.StatusProcessing); err != nil {
		log.WithError(err).Error("failed to mark email processing")
		return fmt.Errorf("mark processing: %w", err)
	}

	// Outside business hours the email stays queued for a human. This is
	// a deferral, not an error.
	if client.BusinessHours.Enabled && !client.BusinessHours.Contains(o.now()) {
		if err := o.emails.UpdateStatus(email.ID, domain.StatusProcessing, domain.StatusReceived); err != nil {
			log.WithError(err).Error("failed to defer email outside business hours")
			return fmt.Errorf("defer email: %w", err)
		}
		log.Info("deferred to human: outside business hours")
		return nil
	}

	result, err := o.generate(ctx, client, msg)
	if err != nil {
		log.WithError(err).Error("draft generation failed")
		o.markError(email.ID, log)
		return fmt.Errorf("generate draft: %w", err)
	}

	draftID, err := o.mailbox.CreateDraftReply(ctx, cred, msg.ID, replySubject(msg.Subject), result.Content)
	if err != nil {
		log.WithError(err).Error("failed to create draft reply in mailbox")
		o.markError(email.ID, log)
		return fmt.Errorf("create draft reply: %w", err)
	}

	resp := &domain.AIResponse{
		EmailID:    email.ID,
		Content:    result.Content,
		Confidence: &result.Confidence,
		Status:     domain.ResponseDraftCreated,
		DraftID:    &draftID,
	}
	if result.TemplateUsed != "" {
		resp.TemplateUsed = &result.TemplateUsed
	}
	if err := o.responses.Create(resp); err != nil {
		// The mailbox draft already exists; keep it and surface the
		// inconsistency instead of deleting user-visible work.
		log.WithError(err).WithField("draft_id", draftID).
			Error("draft created in mailbox but response record failed")
		o.markError(email.ID, log)
		return fmt.Errorf("persist response: %w", err)
	}

	if err := o.emails.UpdateStatus(email.ID, domain.StatusProcessing, domain.StatusDraftCreated); err != nil {
		log.WithError(err).Error("failed to mark email draft_created")
		return fmt.Errorf("mark draft_created: %w", err)
	}
	if err := o.emails.MarkProcessed(email.ID, o.now()); err != nil {
		log.WithError(err).Warn("failed to stamp processed_at")
	}

	log.WithField("draft_id", draftID).Info("draft created")
	return nil
}

// resolveClient maps the job to its client, preferring the subscription
// lookup so revoked subscriptions stop routing. A nil client with nil
// error is the silent-skip signal.
func (o *Orchestrator) resolveClient(job *out.DraftJob) (*domain.Client, error) {
	if job.SubscriptionID != "" {
		sub, err := o.subscriptions.GetBySubscriptionID(job.SubscriptionID)
		if err != nil {
			return nil, fmt.Errorf("resolve subscription: %w", err)
		}
		if sub == nil || !sub.IsActive {
			return nil, nil
		}
		client, err := o.clients.GetByID(sub.ClientID)
		if err != nil {
			return nil, fmt.Errorf("resolve client: %w", err)
		}
		if client == nil || !client.IsActive {
			return nil, nil
		}
		return client, nil
	}

	client, err := o.clients.GetByID(job.ClientID)
	if err != nil {
		return nil, fmt.Errorf("resolve client: %w", err)
	}
	if client == nil || !client.IsActive {
		return nil, nil
	}
	return client, nil
}

func (o *Orchestrator) generate(ctx context.Context, client *domain.Client, msg *out.MailboxMessage) (*out.GenerationResult, error) {
	all, err := o.templates.ListActiveByClient(client.ID)
	if err != nil {
		// Templates enrich the prompt but are not required for it.
		o.log.WithError(err).Warn("failed to load templates, generating without them")
		all = nil
	}

	gc := &out.GenerationContext{
		BusinessContext: client.BusinessContext,
		Style:           client.Style,
		Length:          client.Length,
		Tone:            client.Tone,
		Templates:       MatchTemplates(all, msg.Subject, msg.Body),
		Subject:         msg.Subject,
		Body:            msg.Body,
		FromName:        msg.FromName,
		FromEmail:       msg.FromEmail,
	}
	return o.engine.Generate(ctx, gc)
}

// markError best-effort moves the email to the terminal error state.
func (o *Orchestrator) markError(emailID int64, log *logger.Logger) {
	if err := o.emails.UpdateStatus(emailID, domain.StatusProcessing, domain.StatusError); err != nil {
		log.WithError(err).Error("failed to mark email errored")
	}
}

func replySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(trimmed), "re:") {
		return trimmed
	}
	return "Re: " + trimmed
}
