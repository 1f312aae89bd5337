package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"ytrunner/pkg/httputil"
)

const userAgent = "ytrunner/1.0"

// HTTPSource reads plain http(s) URLs through a retrying client.
type HTTPSource struct {
	client *httputil.RetryClient
}

func NewHTTPSource(client *httputil.RetryClient) *HTTPSource {
	return &HTTPSource{client: client}
}

// Exists probes with HEAD, falling back to a GET for hosts that reject it.
func (s *HTTPSource) Exists(ctx context.Context, ref string) (bool, error) {
	resp, err := s.do(ctx, http.MethodHead, ref)
	if err != nil {
		return false, err
	}
	_ = resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		resp, err = s.do(ctx, http.MethodGet, ref)
		if err != nil {
			return false, err
		}
		_ = resp.Body.Close()
	}

	return existsFromStatus(resp.StatusCode)
}

func (s *HTTPSource) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	resp, err := s.do(ctx, http.MethodGet, ref)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		_ = resp.Body.Close()
		if _, err := existsFromStatus(resp.StatusCode); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	return resp.Body, nil
}

func (s *HTTPSource) do(ctx context.Context, method, ref string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", ref, err)
	}
	return resp, nil
}

func existsFromStatus(status int) (bool, error) {
	switch {
	case status < http.StatusBadRequest:
		return true, nil
	case status == http.StatusNotFound || status == http.StatusGone:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected status %d", status)
	}
}
