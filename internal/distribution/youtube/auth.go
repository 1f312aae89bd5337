package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"
)

var scopes = []string{
	youtube.YoutubeUploadScope,
	youtube.YoutubeScope,
}

// Auth holds the OAuth client of one account and its persisted token.
type Auth struct {
	config    *oauth2.Config
	token     *oauth2.Token
	tokenPath string
}

func redirectURL(port int) string {
	return fmt.Sprintf("http://localhost:%d/callback", port)
}

func NewAuth(clientID, clientSecret, tokenPath string, redirectPort int) *Auth {
	return &Auth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       scopes,
			RedirectURL:  redirectURL(redirectPort),
		},
		tokenPath: tokenPath,
	}
}

// NewAuthFromJSON builds an Auth from a client_secrets.json document as
// downloaded from the Google Cloud console.
func NewAuthFromJSON(secretJSON []byte, tokenPath string, redirectPort int) (*Auth, error) {
	config, err := google.ConfigFromJSON(secretJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secrets: %w", err)
	}
	config.RedirectURL = redirectURL(redirectPort)
	return &Auth{config: config, tokenPath: tokenPath}, nil
}

func (a *Auth) TokenPath() string {
	return a.tokenPath
}

func (a *Auth) RedirectURL() string {
	return a.config.RedirectURL
}

func (a *Auth) LoadToken() error {
	data, err := os.ReadFile(a.tokenPath)
	if err != nil {
		return fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}

	a.token = &token
	return nil
}

func (a *Auth) SaveToken() error {
	data, err := json.MarshalIndent(a.token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(a.tokenPath), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(a.tokenPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

func (a *Auth) GetAuthURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (a *Auth) Exchange(ctx context.Context, code string) error {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}

	a.token = token
	return a.SaveToken()
}

// Client returns an HTTP client that refreshes the token as needed and
// writes refreshed tokens back to disk. An expired token is refreshed
// before Client returns so a revoked grant surfaces here.
func (a *Auth) Client(ctx context.Context) (*http.Client, error) {
	if a.token == nil {
		if err := a.LoadToken(); err != nil {
			return nil, err
		}
	}

	// Refreshes must survive cancellation of the caller's context.
	ctx = context.WithoutCancel(ctx)
	src := &savingTokenSource{
		base: a.config.TokenSource(ctx, a.token),
		auth: a,
		last: a.token.AccessToken,
	}
	ts := oauth2.ReuseTokenSource(a.token, src)
	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return oauth2.NewClient(ctx, ts), nil
}

// Revoked reports whether err carries an OAuth error that only a new
// authorization can resolve.
func Revoked(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return false
	}
	switch retrieveErr.ErrorCode {
	case "invalid_grant", "unauthorized_client", "invalid_client":
		return true
	}
	return retrieveErr.Response != nil && retrieveErr.Response.StatusCode == http.StatusUnauthorized
}

// IsAuthenticated reports whether a token exists that is either still
// valid or can be refreshed.
func (a *Auth) IsAuthenticated() bool {
	if a.token == nil {
		if err := a.LoadToken(); err != nil {
			return false
		}
	}
	return a.token != nil && (a.token.Valid() || a.token.RefreshToken != "")
}

type savingTokenSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	auth *Auth
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if token.AccessToken != s.last {
		s.last = token.AccessToken
		s.auth.token = token
		if err := s.auth.SaveToken(); err != nil {
			slog.Warn("Failed to persist refreshed token", "path", s.auth.tokenPath, "error", err)
		}
	}
	return token, nil
}
