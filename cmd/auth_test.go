package cmd

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCode   string
		wantErr    bool
	}{
		{
			name:       "success",
			target:     "/callback?state=abc&code=the-code",
			wantStatus: http.StatusOK,
			wantCode:   "the-code",
		},
		{
			name:       "stateMismatch",
			target:     "/callback?state=other&code=the-code",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missingCode",
			target:     "/callback?state=abc&error=access_denied",
			wantStatus: http.StatusOK,
			wantErr:    true,
		},
		{
			name:       "wrongPath",
			target:     "/favicon.ico",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codeChan := make(chan string, 1)
			errChan := make(chan error, 1)
			handler := callbackHandler("abc", codeChan, errChan)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			select {
			case code := <-codeChan:
				if code != tt.wantCode {
					t.Errorf("code = %q, want %q", code, tt.wantCode)
				}
			default:
				if tt.wantCode != "" {
					t.Error("no code delivered")
				}
			}

			select {
			case <-errChan:
				if !tt.wantErr {
					t.Error("unexpected error delivered")
				}
			default:
				if tt.wantErr {
					t.Error("no error delivered")
				}
			}
		})
	}
}
