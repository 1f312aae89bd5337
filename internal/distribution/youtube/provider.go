package youtube

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"google.golang.org/api/option"

	"ytrunner/internal/account"
	"ytrunner/internal/engine"
)

// SecretReader reads client secrets from a path or secret reference.
type SecretReader interface {
	Read(ctx context.Context, ref string) ([]byte, error)
}

type ProviderOptions struct {
	// ClientID and ClientSecret are used by accounts without their own
	// client_secrets.
	ClientID     string
	ClientSecret string
	TokensDir    string
	RedirectPort int
	Secrets      SecretReader
	Client       ClientOptions

	// APIOptions are passed to every service, e.g. a test endpoint.
	APIOptions []option.ClientOption
}

// Provider hands out authorized publishers per account.
type Provider struct {
	opts ProviderOptions
}

func NewProvider(opts ProviderOptions) *Provider {
	return &Provider{opts: opts}
}

// TokenPath is where the account's OAuth token lives.
func (p *Provider) TokenPath(acct *account.Account) string {
	if acct.Credentials.TokenFile != "" {
		return acct.Credentials.TokenFile
	}
	return filepath.Join(p.opts.TokensDir, acct.ID+".json")
}

// Auth returns the OAuth helper for the account without requiring a token.
func (p *Provider) Auth(ctx context.Context, acct *account.Account) (*Auth, error) {
	tokenPath := p.TokenPath(acct)

	if ref := acct.Credentials.ClientSecrets; ref != "" {
		if p.opts.Secrets == nil {
			return nil, errors.New("no secret reader configured")
		}
		data, err := p.opts.Secrets.Read(ctx, ref)
		if err != nil {
			return nil, err
		}
		return NewAuthFromJSON(data, tokenPath, p.opts.RedirectPort)
	}

	if p.opts.ClientID == "" || p.opts.ClientSecret == "" {
		return nil, fmt.Errorf("account %s has no client_secrets and YOUTUBE_CLIENT_ID/YOUTUBE_CLIENT_SECRET are not set", acct.ID)
	}
	return NewAuth(p.opts.ClientID, p.opts.ClientSecret, tokenPath, p.opts.RedirectPort), nil
}

func (p *Provider) Client(ctx context.Context, acct *account.Account) (engine.Publisher, error) {
	return p.client(ctx, acct)
}

// YouTube is Client with the concrete type, for callers that need
// ChannelTitle.
func (p *Provider) YouTube(ctx context.Context, acct *account.Account) (*Client, error) {
	return p.client(ctx, acct)
}

func (p *Provider) client(ctx context.Context, acct *account.Account) (*Client, error) {
	auth, err := p.Auth(ctx, acct)
	if err != nil {
		return nil, err
	}
	if !auth.IsAuthenticated() {
		return nil, fmt.Errorf("%w: %s", engine.ErrAuthRequired, acct.ID)
	}

	httpClient, err := auth.Client(ctx)
	if Revoked(err) {
		return nil, fmt.Errorf("%w: %s: %v", engine.ErrAuthRequired, acct.ID, err)
	}
	if err != nil {
		return nil, err
	}

	return NewClient(ctx, httpClient, p.opts.Client, p.opts.APIOptions...)
}
