package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetryClientStatusHandling(t *testing.T) {
	tests := []struct {
		name         string
		failStatus   int
		failures     int32
		wantStatus   int
		wantAttempts int32
	}{
		{name: "retriesOn503", failStatus: http.StatusServiceUnavailable, failures: 2, wantStatus: http.StatusOK, wantAttempts: 3},
		{name: "retriesOn429", failStatus: http.StatusTooManyRequests, failures: 1, wantStatus: http.StatusOK, wantAttempts: 2},
		{name: "retriesOn500", failStatus: http.StatusInternalServerError, failures: 1, wantStatus: http.StatusOK, wantAttempts: 2},
		{name: "noRetryOn404", failStatus: http.StatusNotFound, failures: 10, wantStatus: http.StatusNotFound, wantAttempts: 1},
		{name: "noRetryOn401", failStatus: http.StatusUnauthorized, failures: 10, wantStatus: http.StatusUnauthorized, wantAttempts: 1},
		{name: "givesUpAfterMaxRetries", failStatus: http.StatusBadGateway, failures: 10, wantStatus: http.StatusBadGateway, wantAttempts: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&attempts, 1) <= tt.failures {
					w.WriteHeader(tt.failStatus)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			client := NewRetryClient(server.Client(), fastConfig())
			req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
			resp, err := client.Do(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got := atomic.LoadInt32(&attempts); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
		})
	}
}

func TestRetryClientReplaysBody(t *testing.T) {
	var attempts int32
	var bodies []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		if atomic.AddInt32(&attempts, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewRetryClient(server.Client(), fastConfig())

	const content = "line one\nline two"
	req, _ := http.NewRequest(http.MethodPost, server.URL, strings.NewReader(content))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(content)), nil
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if len(bodies) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(bodies))
	}
	for i, body := range bodies {
		if body != content {
			t.Errorf("attempt %d: body = %q, want %q", i+1, body, content)
		}
	}
}

func TestRetryClientStopsWhenContextDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewRetryClient(server.Client(), RetryConfig{
		MaxRetries:   5,
		InitialDelay: time.Second,
		MaxDelay:     time.Second,
		Multiplier:   1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	start := time.Now()
	_, err := client.Do(req)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Do() waited %v after context expired", elapsed)
	}
}

func TestRetryAfterHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   time.Duration
		wantOK bool
	}{
		{name: "seconds", header: "2", want: 2 * time.Second, wantOK: true},
		{name: "missing", header: "", wantOK: false},
		{name: "garbage", header: "soon", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}
			got, ok := retryAfter(resp)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("retryAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewRetryClientAppliesDefaults(t *testing.T) {
	client := NewRetryClient(nil, RetryConfig{})

	if client.client != http.DefaultClient {
		t.Error("expected http.DefaultClient when nil is passed")
	}
	if client.config != DefaultRetryConfig() {
		t.Errorf("config = %+v, want %+v", client.config, DefaultRetryConfig())
	}
}

func TestNewRetryClientNegativeDisablesRetries(t *testing.T) {
	client := NewRetryClient(nil, RetryConfig{MaxRetries: -1})
	if client.config.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", client.config.MaxRetries)
	}
}
