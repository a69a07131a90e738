package persistence

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"draft_server/core/domain"
)

// TemplateAdapter implements domain.TemplateRepository using PostgreSQL.
type TemplateAdapter struct {
	db *sqlx.DB
}

// NewTemplateAdapter creates a new template adapter.
func NewTemplateAdapter(db *sqlx.DB) *TemplateAdapter {
	return &TemplateAdapter{db: db}
}

// templateRow represents the database row.
type templateRow struct {
	ID        int64     `db:"id"`
	ClientID  uuid.UUID `db:"client_id"`
	Name      string    `db:"name"`
	Category  string    `db:"category"`
	Triggers  string    `db:"triggers"`
	Body      string    `db:"body"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *templateRow) toDomain() *domain.ReplyTemplate {
	return &domain.ReplyTemplate{
		ID:        r.ID,
		ClientID:  r.ClientID,
		Name:      r.Name,
		Category:  domain.TemplateCategory(r.Category),
		Triggers:  r.Triggers,
		Body:      r.Body,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// GetByID retrieves a template by ID.
func (a *TemplateAdapter) GetByID(id int64) (*domain.ReplyTemplate, error) {
	var row templateRow
	err := a.db.Get(&row, `SELECT * FROM reply_templates WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// ListByClient lists all templates for a client, newest first.
func (a *TemplateAdapter) ListByClient(clientID uuid.UUID) ([]*domain.ReplyTemplate, error) {
	return a.list(`SELECT * FROM reply_templates WHERE client_id = $1 ORDER BY created_at DESC`, clientID)
}

// ListActiveByClient lists active templates for a client, newest first.
// The matcher relies on this ordering when capping its results.
func (a *TemplateAdapter) ListActiveByClient(clientID uuid.UUID) ([]*domain.ReplyTemplate, error) {
	return a.list(`
		SELECT * FROM reply_templates
		WHERE client_id = $1 AND is_active = true
		ORDER BY created_at DESC
	`, clientID)
}

func (a *TemplateAdapter) list(query string, args ...any) ([]*domain.ReplyTemplate, error) {
	var rows []templateRow
	if err := a.db.Select(&rows, query, args...); err != nil {
		return nil, err
	}

	templates := make([]*domain.ReplyTemplate, len(rows))
	for i, row := range rows {
		templates[i] = row.toDomain()
	}
	return templates, nil
}

// Create inserts a new template.
func (a *TemplateAdapter) Create(tpl *domain.ReplyTemplate) error {
	query := `
		INSERT INTO reply_templates (
			client_id, name, category, triggers, body, is_active,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	return a.db.QueryRow(
		query,
		tpl.ClientID,
		tpl.Name,
		string(tpl.Category),
		tpl.Triggers,
		tpl.Body,
		tpl.IsActive,
	).Scan(&tpl.ID, &tpl.CreatedAt, &tpl.UpdatedAt)
}

// Update updates a template.
func (a *TemplateAdapter) Update(tpl *domain.ReplyTemplate) error {
	_, err := a.db.Exec(`
		UPDATE reply_templates SET
			name = $1, category = $2, triggers = $3, body = $4,
			is_active = $5, updated_at = NOW()
		WHERE id = $6
	`, tpl.Name, string(tpl.Category), tpl.Triggers, tpl.Body, tpl.IsActive, tpl.ID)
	return err
}

// Delete removes a template.
func (a *TemplateAdapter) Delete(id int64) error {
	_, err := a.db.Exec(`DELETE FROM reply_templates WHERE id = $1`, id)
	return err
}

// Ensure interface compliance
var _ domain.TemplateRepository = (*TemplateAdapter)(nil)
