package persistence

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"draft_server/core/domain"
)

// ClientAdapter implements domain.ClientRepository using PostgreSQL.
type ClientAdapter struct {
	db *sqlx.DB
}

// NewClientAdapter creates a new client adapter.
func NewClientAdapter(db *sqlx.DB) *ClientAdapter {
	return &ClientAdapter{db: db}
}

// clientRow represents the database row.
type clientRow struct {
	ID       uuid.UUID `db:"id"`
	Email    string    `db:"email"`
	Company  string    `db:"company"`
	TenantID string    `db:"tenant_id"`

	AIEnabled         bool   `db:"ai_enabled"`
	ResponseStyle     string `db:"response_style"`
	ResponseLength    string `db:"response_length"`
	ResponseTone      string `db:"response_tone"`
	AutoRespond       bool   `db:"auto_respond"`
	RequireApproval   bool   `db:"require_approval"`
	BizHoursEnabled   bool   `db:"business_hours_enabled"`
	BizHoursStart     string `db:"business_hours_start"`
	BizHoursEnd       string `db:"business_hours_end"`
	BizHoursTimezone  string `db:"business_hours_timezone"`
	BusinessContext   string `db:"business_context"`

	AccessTokenEnc  sql.NullString `db:"access_token_enc"`
	RefreshTokenEnc sql.NullString `db:"refresh_token_enc"`
	TokenExpiresAt  sql.NullTime   `db:"token_expires_at"`

	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *clientRow) toDomain() *domain.Client {
	c := &domain.Client{
		ID:              r.ID,
		Email:           r.Email,
		Company:         r.Company,
		TenantID:        r.TenantID,
		AIEnabled:       r.AIEnabled,
		Style:           domain.ParseStyle(r.ResponseStyle),
		Length:          domain.ParseLength(r.ResponseLength),
		Tone:            r.ResponseTone,
		AutoRespond:     r.AutoRespond,
		RequireApproval: r.RequireApproval,
		BusinessHours: domain.BusinessHours{
			Enabled:  r.BizHoursEnabled,
			Start:    r.BizHoursStart,
			End:      r.BizHoursEnd,
			Timezone: r.BizHoursTimezone,
		},
		BusinessContext: r.BusinessContext,
		IsActive:        r.IsActive,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}

	if r.AccessTokenEnc.Valid {
		c.AccessTokenEnc = &r.AccessTokenEnc.String
	}
	if r.RefreshTokenEnc.Valid {
		c.RefreshTokenEnc = &r.RefreshTokenEnc.String
	}
	if r.TokenExpiresAt.Valid {
		c.TokenExpiresAt = &r.TokenExpiresAt.Time
	}

	return c
}

// GetByID retrieves a client by ID.
func (a *ClientAdapter) GetByID(id uuid.UUID) (*domain.Client, error) {
	var row clientRow
	err := a.db.Get(&row, `SELECT * FROM clients WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// GetByEmail retrieves a client by mailbox address.
func (a *ClientAdapter) GetByEmail(email string) (*domain.Client, error) {
	var row clientRow
	err := a.db.Get(&row, `SELECT * FROM clients WHERE LOWER(email) = LOWER($1)`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// List lists clients, optionally restricted to active ones.
func (a *ClientAdapter) List(activeOnly bool) ([]*domain.Client, error) {
	query := `SELECT * FROM clients ORDER BY created_at DESC`
	if activeOnly {
		query = `SELECT * FROM clients WHERE is_active = true ORDER BY created_at DESC`
	}

	var rows []clientRow
	if err := a.db.Select(&rows, query); err != nil {
		return nil, err
	}

	clients := make([]*domain.Client, len(rows))
	for i, row := range rows {
		clients[i] = row.toDomain()
	}
	return clients, nil
}

// Create inserts a new client.
func (a *ClientAdapter) Create(client *domain.Client) error {
	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}

	query := `
		INSERT INTO clients (
			id, email, company, tenant_id, ai_enabled, response_style,
			response_length, response_tone, auto_respond, require_approval,
			business_hours_enabled, business_hours_start, business_hours_end,
			business_hours_timezone, business_context, is_active,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	return a.db.QueryRow(
		query,
		client.ID,
		client.Email,
		client.Company,
		client.TenantID,
		client.AIEnabled,
		string(client.Style),
		string(client.Length),
		client.Tone,
		client.AutoRespond,
		client.RequireApproval,
		client.BusinessHours.Enabled,
		client.BusinessHours.Start,
		client.BusinessHours.End,
		client.BusinessHours.Timezone,
		client.BusinessContext,
		client.IsActive,
	).Scan(&client.CreatedAt, &client.UpdatedAt)
}

// Update updates a client's profile and AI policy. Credentials move
// only through UpdateCredential.
func (a *ClientAdapter) Update(client *domain.Client) error {
	query := `
		UPDATE clients SET
			email = $1, company = $2, tenant_id = $3, ai_enabled = $4,
			response_style = $5, response_length = $6, response_tone = $7,
			auto_respond = $8, require_approval = $9,
			business_hours_enabled = $10, business_hours_start = $11,
			business_hours_end = $12, business_hours_timezone = $13,
			business_context = $14, is_active = $15, updated_at = NOW()
		WHERE id = $16
	`
	_, err := a.db.Exec(query,
		client.Email,
		client.Company,
		client.TenantID,
		client.AIEnabled,
		string(client.Style),
		string(client.Length),
		client.Tone,
		client.AutoRespond,
		client.RequireApproval,
		client.BusinessHours.Enabled,
		client.BusinessHours.Start,
		client.BusinessHours.End,
		client.BusinessHours.Timezone,
		client.BusinessContext,
		client.IsActive,
		client.ID,
	)
	return err
}

// UpdateCredential stores a rotated, encrypted token pair.
func (a *ClientAdapter) UpdateCredential(id uuid.UUID, accessTokenEnc, refreshTokenEnc string, expiresAt time.Time) error {
	_, err := a.db.Exec(`
		UPDATE clients SET
			access_token_enc = $1, refresh_token_enc = $2,
			token_expires_at = $3, updated_at = NOW()
		WHERE id = $4
	`, accessTokenEnc, refreshTokenEnc, expiresAt, id)
	return err
}

// Deactivate soft-deletes a client.
func (a *ClientAdapter) Deactivate(id uuid.UUID) error {
	_, err := a.db.Exec(`
		UPDATE clients SET is_active = false, updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

// Ensure interface compliance
var _ domain.ClientRepository = (*ClientAdapter)(nil)
