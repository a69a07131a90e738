package out

import (
	"context"
	"time"
)

// MailboxMessage is a fetched provider message, flattened to the fields
// the pipeline needs.
type MailboxMessage struct {
	ID             string
	ConversationID string
	Subject        string
	Body           string // HTML or plain text, as the provider returns it
	BodyPreview    string
	FromName       string
	FromEmail      string
	To             []string
	ReceivedAt     time.Time
}

// MailboxGateway is the provider mailbox surface the pipeline uses:
// fetch one message, write one draft reply. Subscription management is
// carried for the renewal job.
type MailboxGateway interface {
	FetchMessage(ctx context.Context, cred *Credential, messageID string) (*MailboxMessage, error)

	// CreateDraftReply creates an unsent reply draft in the mailbox,
	// addressed back to the original sender, and returns the provider
	// draft id.
	CreateDraftReply(ctx context.Context, cred *Credential, originalMessageID, subject, htmlBody string) (string, error)

	// RenewSubscription extends a change-notification subscription and
	// returns the new expiration time.
	RenewSubscription(ctx context.Context, cred *Credential, subscriptionID string) (time.Time, error)

	DeleteSubscription(ctx context.Context, cred *Credential, subscriptionID string) error
}
