package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ResponseStyle controls the overall register of generated replies.
type ResponseStyle string

const (
	StyleProfessional ResponseStyle = "professional"
	StyleCasual       ResponseStyle = "casual"
	StyleConcise      ResponseStyle = "concise"
)

// ResponseLength controls the target size of generated replies.
type ResponseLength string

const (
	LengthShort  ResponseLength = "short"
	LengthMedium ResponseLength = "medium"
	LengthLong   ResponseLength = "long"
)

// ParseStyle returns a valid style, defaulting unknown values.
func ParseStyle(s string) ResponseStyle {
	switch ResponseStyle(strings.ToLower(s)) {
	case StyleProfessional, StyleCasual, StyleConcise:
		return ResponseStyle(strings.ToLower(s))
	default:
		return StyleProfessional
	}
}

// ParseLength returns a valid length, defaulting unknown values.
func ParseLength(s string) ResponseLength {
	switch ResponseLength(strings.ToLower(s)) {
	case LengthShort, LengthMedium, LengthLong:
		return ResponseLength(strings.ToLower(s))
	default:
		return LengthMedium
	}
}

// BusinessHours is the per-client window outside which automated
// drafting is deferred to a human.
type BusinessHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start"` // "09:00"
	End      string `json:"end"`   // "17:00"
	Timezone string `json:"timezone"`
}

// Contains reports whether now falls inside [Start, End) in the
// configured timezone. A window that fails to parse is treated as
// always open so a bad config never silently disables drafting.
func (b BusinessHours) Contains(now time.Time) bool {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)

	start, err1 := parseClock(b.Start)
	end, err2 := parseClock(b.End)
	if err1 != nil || err2 != nil {
		return true
	}

	minutes := local.Hour()*60 + local.Minute()
	if start <= end {
		return minutes >= start && minutes < end
	}
	// Overnight window, e.g. 22:00-06:00
	return minutes >= start || minutes < end
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Client is one tenant mailbox connected to the drafting pipeline.
type Client struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Company  string    `json:"company"`
	TenantID string    `json:"tenant_id"`

	// AI policy
	AIEnabled       bool           `json:"ai_enabled"`
	Style           ResponseStyle  `json:"response_style"`
	Length          ResponseLength `json:"response_length"`
	Tone            string         `json:"response_tone"`
	AutoRespond     bool           `json:"auto_respond"`
	RequireApproval bool           `json:"require_approval"`
	BusinessHours   BusinessHours  `json:"business_hours"`
	BusinessContext string         `json:"business_context"`

	// OAuth credential at rest (AES-GCM ciphertext). Both tokens are
	// present or both absent; a present pair implies a non-nil expiry.
	AccessTokenEnc  *string    `json:"-"`
	RefreshTokenEnc *string    `json:"-"`
	TokenExpiresAt  *time.Time `json:"token_expires_at,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCredential reports whether the client has a usable token pair.
func (c *Client) HasCredential() bool {
	return c.AccessTokenEnc != nil && c.RefreshTokenEnc != nil && c.TokenExpiresAt != nil
}

// IsSelf reports whether addr is the client's own mailbox address.
func (c *Client) IsSelf(addr string) bool {
	return strings.EqualFold(strings.TrimSpace(addr), strings.TrimSpace(c.Email))
}

// ClientRepository defines client persistence operations.
type ClientRepository interface {
	GetByID(id uuid.UUID) (*Client, error)
	GetByEmail(email string) (*Client, error)
	List(activeOnly bool) ([]*Client, error)
	Create(client *Client) error
	Update(client *Client) error
	UpdateCredential(id uuid.UUID, accessTokenEnc, refreshTokenEnc string, expiresAt time.Time) error
	Deactivate(id uuid.UUID) error
}
