package persistence

import (
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"draft_server/core/domain"
)

// EmailAdapter implements domain.EmailRepository using PostgreSQL.
type EmailAdapter struct {
	db *sqlx.DB
}

// NewEmailAdapter creates a new email adapter.
func NewEmailAdapter(db *sqlx.DB) *EmailAdapter {
	return &EmailAdapter{db: db}
}

// emailRow represents the database row.
type emailRow struct {
	ID             int64          `db:"id"`
	ClientID       uuid.UUID      `db:"client_id"`
	MessageID      string         `db:"message_id"`
	ConversationID sql.NullString `db:"conversation_id"`
	Subject        string         `db:"subject"`
	BodyPreview    string         `db:"body_preview"`
	FromName       sql.NullString `db:"from_name"`
	FromEmail      string         `db:"from_email"`
	ToEmails       pq.StringArray `db:"to_emails"`
	Status         string         `db:"status"`
	ReceivedAt     time.Time      `db:"received_at"`
	ProcessedAt    sql.NullTime   `db:"processed_at"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r *emailRow) toDomain() *domain.Email {
	e := &domain.Email{
		ID:          r.ID,
		ClientID:    r.ClientID,
		MessageID:   r.MessageID,
		Subject:     r.Subject,
		BodyPreview: r.BodyPreview,
		FromEmail:   r.FromEmail,
		ToEmails:    []string(r.ToEmails),
		Status:      domain.EmailStatus(r.Status),
		ReceivedAt:  r.ReceivedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}

	if r.ConversationID.Valid {
		e.ConversationID = r.ConversationID.String
	}
	if r.FromName.Valid {
		e.FromName = r.FromName.String
	}
	if r.ProcessedAt.Valid {
		e.ProcessedAt = &r.ProcessedAt.Time
	}

	return e
}

// GetByID retrieves an email by ID.
func (a *EmailAdapter) GetByID(id int64) (*domain.Email, error) {
	var row emailRow
	err := a.db.Get(&row, `SELECT * FROM emails WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// GetByMessageID retrieves an email by the upstream message ID.
func (a *EmailAdapter) GetByMessageID(messageID string) (*domain.Email, error) {
	var row emailRow
	err := a.db.Get(&row, `SELECT * FROM emails WHERE message_id = $1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// List lists emails matching the filter, newest first, plus the total
// count for pagination.
func (a *EmailAdapter) List(filter *domain.EmailFilter) ([]*domain.Email, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	idx := 1

	if filter.ClientID != nil {
		where += ` AND client_id = $` + itoa(idx)
		args = append(args, *filter.ClientID)
		idx++
	}
	if filter.Status != nil {
		where += ` AND status = $` + itoa(idx)
		args = append(args, string(*filter.Status))
		idx++
	}

	var total int
	if err := a.db.Get(&total, `SELECT COUNT(*) FROM emails`+where, args...); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `SELECT * FROM emails` + where +
		` ORDER BY received_at DESC LIMIT $` + itoa(idx) + ` OFFSET $` + itoa(idx+1)
	args = append(args, limit, filter.Offset)

	var rows []emailRow
	if err := a.db.Select(&rows, query, args...); err != nil {
		return nil, 0, err
	}

	emails := make([]*domain.Email, len(rows))
	for i, row := range rows {
		emails[i] = row.toDomain()
	}
	return emails, total, nil
}

// Create inserts the email. The unique constraint on message_id plus
// ON CONFLICT DO NOTHING makes this the hard dedupe point: a second
// delivery of the same message returns false instead of a second row.
func (a *EmailAdapter) Create(email *domain.Email) (bool, error) {
	query := `
		INSERT INTO emails (
			client_id, message_id, conversation_id, subject, body_preview,
			from_name, from_email, to_emails, status, received_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (message_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`

	var conversationID, fromName sql.NullString
	if email.ConversationID != "" {
		conversationID = sql.NullString{String: email.ConversationID, Valid: true}
	}
	if email.FromName != "" {
		fromName = sql.NullString{String: email.FromName, Valid: true}
	}

	err := a.db.QueryRow(
		query,
		email.ClientID,
		email.MessageID,
		conversationID,
		email.Subject,
		email.BodyPreview,
		fromName,
		email.FromEmail,
		pq.Array(email.ToEmails),
		string(email.Status),
		email.ReceivedAt,
	).Scan(&email.ID, &email.CreatedAt, &email.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict path: DO NOTHING returns no row.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateStatus moves the email between statuses. The WHERE clause
// guards the expected prior status so two concurrent workers cannot
// both advance the same email.
func (a *EmailAdapter) UpdateStatus(id int64, from, to domain.EmailStatus) error {
	if !domain.CanTransition(from, to) {
		return ErrStatusConflict
	}

	res, err := a.db.Exec(`
		UPDATE emails SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, string(to), id, string(from))
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// MarkProcessed stamps the time the pipeline finished with the email.
func (a *EmailAdapter) MarkProcessed(id int64, at time.Time) error {
	_, err := a.db.Exec(`
		UPDATE emails SET processed_at = $1, updated_at = NOW()
		WHERE id = $2
	`, at, id)
	return err
}

func itoa(i int) string { return strconv.Itoa(i) }

// Ensure interface compliance
var _ domain.EmailRepository = (*EmailAdapter)(nil)
