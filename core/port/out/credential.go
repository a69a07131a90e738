package out

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Credential is a decrypted, ready-to-use OAuth token pair.
type Credential struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Valid reports whether the access token is still usable, with a small
// skew so a token is refreshed before it actually expires mid-call.
func (c *Credential) Valid() bool {
	return c.AccessToken != "" && time.Now().Add(2*time.Minute).Before(c.Expiry)
}

// CredentialProvider resolves and refreshes per-client mailbox
// credentials. Get transparently refreshes an expired pair and persists
// the rotated tokens; Refresh forces a refresh regardless of expiry.
// Both fail with an auth error when re-authorization is required.
type CredentialProvider interface {
	Get(ctx context.Context, clientID uuid.UUID) (*Credential, error)
	Refresh(ctx context.Context, clientID uuid.UUID) (*Credential, error)
}
