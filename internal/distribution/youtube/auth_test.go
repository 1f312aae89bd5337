package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func writeToken(t *testing.T, path string, token *oauth2.Token) {
	t.Helper()
	data, err := json.Marshal(token)
	if err != nil {
		t.Fatalf("marshal token: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write token: %v", err)
	}
}

func TestNewAuth(t *testing.T) {
	auth := NewAuth("client-id", "client-secret", "/tmp/token.json", 8085)

	if auth.config.ClientID != "client-id" {
		t.Errorf("ClientID = %q, want %q", auth.config.ClientID, "client-id")
	}
	if auth.config.ClientSecret != "client-secret" {
		t.Errorf("ClientSecret = %q, want %q", auth.config.ClientSecret, "client-secret")
	}
	if auth.RedirectURL() != "http://localhost:8085/callback" {
		t.Errorf("RedirectURL = %q", auth.RedirectURL())
	}
	if auth.TokenPath() != "/tmp/token.json" {
		t.Errorf("TokenPath = %q", auth.TokenPath())
	}
	if len(auth.config.Scopes) != 2 {
		t.Errorf("Scopes = %v, want upload and manage scopes", auth.config.Scopes)
	}
}

func TestNewAuthFromJSON(t *testing.T) {
	secrets := `{"installed":{
		"client_id":"json-id",
		"client_secret":"json-secret",
		"auth_uri":"https://accounts.google.com/o/oauth2/auth",
		"token_uri":"https://oauth2.googleapis.com/token",
		"redirect_uris":["http://localhost"]
	}}`

	auth, err := NewAuthFromJSON([]byte(secrets), "token.json", 9000)
	if err != nil {
		t.Fatalf("NewAuthFromJSON() error = %v", err)
	}
	if auth.config.ClientID != "json-id" {
		t.Errorf("ClientID = %q, want %q", auth.config.ClientID, "json-id")
	}
	if auth.RedirectURL() != "http://localhost:9000/callback" {
		t.Errorf("RedirectURL = %q", auth.RedirectURL())
	}

	if _, err := NewAuthFromJSON([]byte("not json"), "token.json", 9000); err == nil {
		t.Error("NewAuthFromJSON() expected error for invalid JSON")
	}
}

func TestAuthLoadToken(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name:    "validToken",
			content: `{"access_token":"test-token","token_type":"Bearer","refresh_token":"refresh"}`,
			wantErr: false,
		},
		{
			name:    "invalidJSON",
			content: `{not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "token.json")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatalf("write token: %v", err)
			}

			auth := NewAuth("id", "secret", path, 8085)
			err := auth.LoadToken()
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && auth.token.AccessToken != "test-token" {
				t.Errorf("AccessToken = %q, want %q", auth.token.AccessToken, "test-token")
			}
		})
	}

	t.Run("missingFile", func(t *testing.T) {
		auth := NewAuth("id", "secret", filepath.Join(t.TempDir(), "missing.json"), 8085)
		if err := auth.LoadToken(); err == nil {
			t.Error("LoadToken() expected error for missing file")
		}
	})
}

func TestAuthSaveToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	auth := NewAuth("id", "secret", path, 8085)
	auth.token = &oauth2.Token{AccessToken: "saved", RefreshToken: "refresh"}

	if err := auth.SaveToken(); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat token: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token permissions = %o, want 600", perm)
	}

	reloaded := NewAuth("id", "secret", path, 8085)
	if err := reloaded.LoadToken(); err != nil {
		t.Fatalf("LoadToken() error = %v", err)
	}
	if reloaded.token.AccessToken != "saved" || reloaded.token.RefreshToken != "refresh" {
		t.Errorf("reloaded token = %+v", reloaded.token)
	}
}

func TestAuthIsAuthenticated(t *testing.T) {
	tests := []struct {
		name  string
		token *oauth2.Token
		want  bool
	}{
		{
			name:  "noToken",
			token: nil,
			want:  false,
		},
		{
			name:  "validAccessToken",
			token: &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(time.Hour)},
			want:  true,
		},
		{
			name:  "expiredWithRefresh",
			token: &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(-time.Hour)},
			want:  true,
		},
		{
			name:  "expiredWithoutRefresh",
			token: &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(-time.Hour)},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "token.json")
			if tt.token != nil {
				writeToken(t, path, tt.token)
			}

			auth := NewAuth("id", "secret", path, 8085)
			if got := auth.IsAuthenticated(); got != tt.want {
				t.Errorf("IsAuthenticated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthGetAuthURL(t *testing.T) {
	auth := NewAuth("client-id", "secret", "token.json", 8085)
	url := auth.GetAuthURL("state-123")

	for _, want := range []string{"client_id=client-id", "state=state-123", "access_type=offline"} {
		if !strings.Contains(url, want) {
			t.Errorf("GetAuthURL() = %q, missing %q", url, want)
		}
	}
}

func TestAuthClient(t *testing.T) {
	t.Run("missingToken", func(t *testing.T) {
		auth := NewAuth("id", "secret", filepath.Join(t.TempDir(), "missing.json"), 8085)
		if _, err := auth.Client(context.Background()); err == nil {
			t.Error("Client() expected error without token")
		}
	})

	t.Run("sendsBearerToken", func(t *testing.T) {
		var gotHeader string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotHeader = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		path := filepath.Join(t.TempDir(), "token.json")
		writeToken(t, path, &oauth2.Token{
			AccessToken: "live-token",
			TokenType:   "Bearer",
			Expiry:      time.Now().Add(time.Hour),
		})

		auth := NewAuth("id", "secret", path, 8085)
		client, err := auth.Client(context.Background())
		if err != nil {
			t.Fatalf("Client() error = %v", err)
		}

		resp, err := client.Get(server.URL)
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		_ = resp.Body.Close()

		if gotHeader != "Bearer live-token" {
			t.Errorf("Authorization = %q, want %q", gotHeader, "Bearer live-token")
		}
	})
}

func TestRevoked(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errors.New("connection reset"), want: false},
		{name: "invalidGrant", err: &oauth2.RetrieveError{ErrorCode: "invalid_grant"}, want: true},
		{name: "wrapped", err: fmt.Errorf("refresh: %w", &oauth2.RetrieveError{ErrorCode: "invalid_client"}), want: true},
		{name: "unauthorizedStatus", err: &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusUnauthorized}}, want: true},
		{name: "serverError", err: &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadGateway}}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Revoked(tt.err); got != tt.want {
				t.Errorf("Revoked(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
