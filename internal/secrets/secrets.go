// Package secrets reads credential material from local files or from
// Google Secret Manager (gcpsm:// references).
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

const scheme = "gcpsm://"

type accessFunc func(ctx context.Context, name string) ([]byte, error)

// Resolver reads secret references. The Secret Manager client is created
// on first use so file-only setups never need Google credentials.
type Resolver struct {
	mu     sync.Mutex
	client *secretmanager.Client
	access accessFunc
}

func NewResolver() *Resolver {
	r := &Resolver{}
	r.access = r.accessSecretManager
	return r
}

// Read returns the content behind ref: a gcpsm:// secret, a file:// URL or
// a plain path.
func (r *Resolver) Read(ctx context.Context, ref string) ([]byte, error) {
	if !IsSecretRef(ref) {
		data, err := os.ReadFile(strings.TrimPrefix(ref, "file://"))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", ref, err)
		}
		return data, nil
	}

	name, err := VersionName(ref)
	if err != nil {
		return nil, err
	}
	data, err := r.access(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to access secret %s: %w", name, err)
	}
	return data, nil
}

func IsSecretRef(ref string) bool {
	return strings.HasPrefix(ref, scheme)
}

// VersionName expands a gcpsm:// reference to a full secret version name.
// Accepted forms are gcpsm://projects/P/secrets/S[/versions/V] and the
// short gcpsm://P/S[/V]; the version defaults to latest.
func VersionName(ref string) (string, error) {
	rest := strings.Trim(strings.TrimPrefix(ref, scheme), "/")
	parts := strings.Split(rest, "/")

	if parts[0] == "projects" {
		switch {
		case len(parts) == 4 && parts[2] == "secrets":
			return rest + "/versions/latest", nil
		case len(parts) == 6 && parts[2] == "secrets" && parts[4] == "versions":
			return rest, nil
		}
		return "", fmt.Errorf("invalid secret reference %q", ref)
	}

	switch len(parts) {
	case 2:
		return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", parts[0], parts[1]), nil
	case 3:
		return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", parts[0], parts[1], parts[2]), nil
	}
	return "", fmt.Errorf("invalid secret reference %q", ref)
}

func (r *Resolver) accessSecretManager(ctx context.Context, name string) ([]byte, error) {
	client, err := r.secretClient(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return nil, err
	}
	return resp.GetPayload().GetData(), nil
}

func (r *Resolver) secretClient(ctx context.Context) (*secretmanager.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return r.client, nil
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	r.client = client
	return client, nil
}

func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}
