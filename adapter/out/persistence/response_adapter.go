package persistence

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"draft_server/core/domain"
)

// ResponseAdapter implements domain.ResponseRepository using PostgreSQL.
type ResponseAdapter struct {
	db *sqlx.DB
}

// NewResponseAdapter creates a new response adapter.
func NewResponseAdapter(db *sqlx.DB) *ResponseAdapter {
	return &ResponseAdapter{db: db}
}

// responseRow represents the database row.
type responseRow struct {
	ID           int64           `db:"id"`
	EmailID      int64           `db:"email_id"`
	Content      string          `db:"content"`
	Confidence   sql.NullFloat64 `db:"confidence"`
	TemplateUsed sql.NullString  `db:"template_used"`
	Status       string          `db:"status"`
	DraftID      sql.NullString  `db:"draft_id"`
	SentAt       sql.NullTime    `db:"sent_at"`
	UserModified bool            `db:"user_modified"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (r *responseRow) toDomain() *domain.AIResponse {
	resp := &domain.AIResponse{
		ID:           r.ID,
		EmailID:      r.EmailID,
		Content:      r.Content,
		Status:       domain.ResponseStatus(r.Status),
		UserModified: r.UserModified,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}

	if r.Confidence.Valid {
		resp.Confidence = &r.Confidence.Float64
	}
	if r.TemplateUsed.Valid {
		resp.TemplateUsed = &r.TemplateUsed.String
	}
	if r.DraftID.Valid {
		resp.DraftID = &r.DraftID.String
	}
	if r.SentAt.Valid {
		resp.SentAt = &r.SentAt.Time
	}

	return resp
}

// GetByID retrieves a response by ID.
func (a *ResponseAdapter) GetByID(id int64) (*domain.AIResponse, error) {
	var row responseRow
	err := a.db.Get(&row, `SELECT * FROM ai_responses WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// ListByEmailID lists responses for an email, newest first.
func (a *ResponseAdapter) ListByEmailID(emailID int64) ([]*domain.AIResponse, error) {
	var rows []responseRow
	err := a.db.Select(&rows, `
		SELECT * FROM ai_responses WHERE email_id = $1 ORDER BY created_at DESC
	`, emailID)
	if err != nil {
		return nil, err
	}

	responses := make([]*domain.AIResponse, len(rows))
	for i, row := range rows {
		responses[i] = row.toDomain()
	}
	return responses, nil
}

// Create inserts a new response.
func (a *ResponseAdapter) Create(resp *domain.AIResponse) error {
	query := `
		INSERT INTO ai_responses (
			email_id, content, confidence, template_used, status, draft_id,
			user_modified, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	var confidence sql.NullFloat64
	var templateUsed, draftID sql.NullString
	if resp.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *resp.Confidence, Valid: true}
	}
	if resp.TemplateUsed != nil {
		templateUsed = sql.NullString{String: *resp.TemplateUsed, Valid: true}
	}
	if resp.DraftID != nil {
		draftID = sql.NullString{String: *resp.DraftID, Valid: true}
	}

	return a.db.QueryRow(
		query,
		resp.EmailID,
		resp.Content,
		confidence,
		templateUsed,
		string(resp.Status),
		draftID,
		resp.UserModified,
	).Scan(&resp.ID, &resp.CreatedAt, &resp.UpdatedAt)
}

// UpdateStatus updates the response status.
func (a *ResponseAdapter) UpdateStatus(id int64, status domain.ResponseStatus) error {
	_, err := a.db.Exec(`
		UPDATE ai_responses SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, string(status), id)
	return err
}

// MarkSent records that the draft left the mailbox.
func (a *ResponseAdapter) MarkSent(id int64, at time.Time) error {
	_, err := a.db.Exec(`
		UPDATE ai_responses SET status = $1, sent_at = $2, updated_at = NOW()
		WHERE id = $3
	`, string(domain.ResponseSent), at, id)
	return err
}

// Ensure interface compliance
var _ domain.ResponseRepository = (*ResponseAdapter)(nil)
