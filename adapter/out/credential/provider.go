// Package credential resolves per-client OAuth tokens from the client
// store, decrypting at use and refreshing through the identity
// provider when needed.
package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"draft_server/core/domain"
	"draft_server/core/port/out"
	"draft_server/pkg/apperr"
	"draft_server/pkg/crypto"
	"draft_server/pkg/logger"
)

// refreshSkew refreshes tokens slightly before their recorded expiry so
// a token never dies mid-request.
const refreshSkew = 5 * time.Minute

// Provider implements out.CredentialProvider over the client store.
// Tokens rest encrypted (AES-GCM); refreshed pairs are re-encrypted and
// persisted so the next resolution skips the refresh round-trip.
type Provider struct {
	clients   domain.ClientRepository
	encryptor *crypto.Encryptor
	oauth     *oauth2.Config
	log       *logger.Logger
}

// Config carries the Azure app registration used for token refresh.
type Config struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURL  string
	Scopes       []string
}

func NewProvider(clients domain.ClientRepository, encryptor *crypto.Encryptor, cfg Config) *Provider {
	tenant := cfg.TenantID
	if tenant == "" {
		tenant = "common"
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"offline_access", "Mail.Read", "Mail.ReadWrite"}
	}

	return &Provider{
		clients:   clients,
		encryptor: encryptor,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     microsoft.AzureADEndpoint(tenant),
		},
		log: logger.Default().WithField("component", "credential"),
	}
}

// Get returns a usable credential for the client, refreshing first when
// the stored pair is at or past expiry.
func (p *Provider) Get(ctx context.Context, clientID uuid.UUID) (*out.Credential, error) {
	client, cred, err := p.load(clientID)
	if err != nil {
		return nil, err
	}

	if time.Now().Add(refreshSkew).Before(cred.Expiry) {
		return cred, nil
	}
	return p.refresh(ctx, client, cred)
}

// Refresh forces a token refresh regardless of the recorded expiry.
func (p *Provider) Refresh(ctx context.Context, clientID uuid.UUID) (*out.Credential, error) {
	client, cred, err := p.load(clientID)
	if err != nil {
		return nil, err
	}
	return p.refresh(ctx, client, cred)
}

func (p *Provider) load(clientID uuid.UUID) (*domain.Client, *out.Credential, error) {
	client, err := p.clients.GetByID(clientID)
	if err != nil {
		return nil, nil, fmt.Errorf("load client: %w", err)
	}
	if client == nil {
		return nil, nil, apperr.NotFound("client")
	}
	if !client.HasCredential() {
		return nil, nil, apperr.Unauthorized("client has no mailbox credential")
	}

	accessToken, err := p.encryptor.DecryptToken(*client.AccessTokenEnc)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypt access token: %w", err)
	}
	refreshToken, err := p.encryptor.DecryptToken(*client.RefreshTokenEnc)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypt refresh token: %w", err)
	}

	return client, &out.Credential{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Expiry:       *client.TokenExpiresAt,
	}, nil
}

func (p *Provider) refresh(ctx context.Context, client *domain.Client, cred *out.Credential) (*out.Credential, error) {
	src := p.oauth.TokenSource(ctx, &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute), // force refresh
	})

	token, err := src.Token()
	if err != nil {
		return nil, apperr.OAuthFailed("microsoft", err)
	}

	rotated := &out.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
	// Some refreshes return no new refresh token; keep the old one.
	if rotated.RefreshToken == "" {
		rotated.RefreshToken = cred.RefreshToken
	}

	if err := p.persist(client.ID, rotated); err != nil {
		// The refreshed token still works for this call; losing the
		// rotation only costs an extra refresh next time.
		p.log.WithError(err).WithField("client_id", client.ID.String()).
			Warn("failed to persist rotated tokens")
	}

	return rotated, nil
}

func (p *Provider) persist(clientID uuid.UUID, cred *out.Credential) error {
	accessEnc, err := p.encryptor.EncryptToken(cred.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	refreshEnc, err := p.encryptor.EncryptToken(cred.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}
	return p.clients.UpdateCredential(clientID, accessEnc, refreshEnc, cred.Expiry)
}

// Ensure interface compliance
var _ out.CredentialProvider = (*Provider)(nil)
