package domain

import (
	"time"

	"github.com/google/uuid"
)

// TemplateCategory groups reply templates in the dashboard.
type TemplateCategory string

const (
	TemplateCategoryReply    TemplateCategory = "reply"
	TemplateCategoryFollowUp TemplateCategory = "follow_up"
	TemplateCategoryMeeting  TemplateCategory = "meeting"
	TemplateCategoryPricing  TemplateCategory = "pricing"
	TemplateCategoryCustom   TemplateCategory = "custom"
)

// ReplyTemplate is a per-client canned answer the generation engine may
// draw on. Triggers is a comma-separated keyword list; a template is
// relevant to an email when any trigger appears as a case-insensitive
// substring of the subject or body.
type ReplyTemplate struct {
	ID       int64            `json:"id"`
	ClientID uuid.UUID        `json:"client_id"`
	Name     string           `json:"name"`
	Category TemplateCategory `json:"category"`
	Triggers string           `json:"triggers"`
	Body     string           `json:"body"`
	IsActive bool             `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TemplateRepository defines template persistence operations.
// ListActiveByClient returns most-recently-created first; the matcher
// preserves that order when capping results.
type TemplateRepository interface {
	GetByID(id int64) (*ReplyTemplate, error)
	ListByClient(clientID uuid.UUID) ([]*ReplyTemplate, error)
	ListActiveByClient(clientID uuid.UUID) ([]*ReplyTemplate, error)
	Create(tpl *ReplyTemplate) error
	Update(tpl *ReplyTemplate) error
	Delete(id int64) error
}
