package domain

import "time"

// ResponseStatus is the lifecycle of a generated draft reply.
type ResponseStatus string

const (
	ResponseDraftCreated ResponseStatus = "draft_created"
	ResponseUserModified ResponseStatus = "user_modified"
	ResponseSent         ResponseStatus = "sent"
	ResponseRejected     ResponseStatus = "rejected"
)

// AIResponse is one generated reply for an email. It is created once
// per successful generation; later status changes come from user
// actions in the dashboard.
type AIResponse struct {
	ID      int64 `json:"id"`
	EmailID int64 `json:"email_id"`

	Content      string   `json:"content"` // HTML body written into the draft
	Confidence   *float64 `json:"confidence,omitempty"`
	TemplateUsed *string  `json:"template_used,omitempty"`

	Status       ResponseStatus `json:"status"`
	DraftID      *string        `json:"draft_id,omitempty"` // provider draft id
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	UserModified bool           `json:"user_modified"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResponseRepository defines AI response persistence operations.
type ResponseRepository interface {
	GetByID(id int64) (*AIResponse, error)
	ListByEmailID(emailID int64) ([]*AIResponse, error)
	Create(resp *AIResponse) error
	UpdateStatus(id int64, status ResponseStatus) error
	MarkSent(id int64, at time.Time) error
}
