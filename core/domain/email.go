package domain

import (
	"time"

	"github.com/google/uuid"
)

// EmailStatus is the processing state of a received email.
//
// received -> processing -> {draft_created | received | error}
// draft_created -> sent (user action, outside the pipeline)
//
// The processing -> received edge is the business-hours deferral: the
// email is queued for a human instead of being drafted. error and sent
// are terminal; nothing moves an email out of error automatically.
type EmailStatus string

const (
	StatusReceived     EmailStatus = "received"
	StatusProcessing   EmailStatus = "processing"
	StatusDraftCreated EmailStatus = "draft_created"
	StatusError        EmailStatus = "error"
	StatusSent         EmailStatus = "sent"
)

var emailTransitions = map[EmailStatus][]EmailStatus{
	StatusReceived:     {StatusProcessing},
	StatusProcessing:   {StatusDraftCreated, StatusReceived, StatusError},
	StatusDraftCreated: {StatusSent},
}

// CanTransition reports whether from -> to is a legal status edge.
func CanTransition(from, to EmailStatus) bool {
	for _, next := range emailTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Email is one inbound message, keyed by the provider message id.
// Rows are created by the drafting pipeline and mutated only through
// status transitions.
type Email struct {
	ID       int64     `json:"id"`
	ClientID uuid.UUID `json:"client_id"`

	// MessageID is the upstream provider id, unique system-wide.
	// Reprocessing the same notification must not create a second row.
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id,omitempty"`

	Subject     string   `json:"subject"`
	BodyPreview string   `json:"body_preview"`
	FromName    string   `json:"from_name,omitempty"`
	FromEmail   string   `json:"from_email"`
	ToEmails    []string `json:"to_emails"`

	Status      EmailStatus `json:"status"`
	ReceivedAt  time.Time   `json:"received_at"`
	ProcessedAt *time.Time  `json:"processed_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// EmailFilter narrows email listing for the dashboard.
type EmailFilter struct {
	ClientID *uuid.UUID
	Status   *EmailStatus
	Limit    int
	Offset   int
}

// EmailRepository defines email persistence operations. Status updates
// are the only mutation path the pipeline uses after creation.
type EmailRepository interface {
	GetByID(id int64) (*Email, error)
	GetByMessageID(messageID string) (*Email, error)
	List(filter *EmailFilter) ([]*Email, int, error)

	// Create inserts the email with ON CONFLICT (message_id) DO NOTHING
	// semantics. It returns false when another row already claimed the
	// message id; the caller must stop processing in that case.
	Create(email *Email) (bool, error)

	// UpdateStatus moves the email from one status to another. The
	// update is guarded on the expected prior status so concurrent
	// writers cannot skip a transition; zero rows affected returns
	// ErrStatusConflict.
	UpdateStatus(id int64, from, to EmailStatus) error

	MarkProcessed(id int64, at time.Time) error
}
