package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Source reads objects addressed by references of one scheme.
// Open returns ErrNotFound for missing objects.
type Source interface {
	Exists(ctx context.Context, ref string) (bool, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// fileDownloader is implemented by sources with a faster path than Open
// for copying an object to disk.
type fileDownloader interface {
	DownloadFile(ctx context.Context, ref string, f *os.File) error
}

// Router dispatches references to the source registered for their scheme.
// References without a scheme are local paths.
type Router struct {
	sources map[string]Source
}

func NewRouter() *Router {
	r := &Router{sources: make(map[string]Source)}
	r.Register("file", FileSource{})
	return r
}

func (r *Router) Register(scheme string, src Source) {
	r.sources[scheme] = src
}

func (r *Router) sourceFor(ref string) (Source, error) {
	scheme := Scheme(ref)
	src, ok := r.sources[scheme]
	if !ok {
		return nil, fmt.Errorf("no source configured for scheme %q", scheme)
	}
	return src, nil
}

// Scheme returns the lowercased scheme of ref, "file" for plain paths.
func Scheme(ref string) string {
	if i := strings.Index(ref, "://"); i > 0 {
		return strings.ToLower(ref[:i])
	}
	return "file"
}

// Join appends an object name to a base reference.
func Join(base, name string) string {
	switch Scheme(base) {
	case "http", "https":
		return strings.TrimRight(base, "/") + "/" + url.PathEscape(name)
	case "file":
		return filepath.Join(strings.TrimPrefix(base, "file://"), name)
	default:
		return strings.TrimRight(base, "/") + "/" + name
	}
}

// splitBucketRef parses "scheme://bucket/key" into bucket and key.
func splitBucketRef(ref string) (string, string, error) {
	i := strings.Index(ref, "://")
	if i < 0 {
		return "", "", fmt.Errorf("invalid object reference %q", ref)
	}
	rest := ref[i+3:]
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %q", ref)
	}
	return bucket, key, nil
}

type FileSource struct{}

func (FileSource) Exists(_ context.Context, ref string) (bool, error) {
	info, err := os.Stat(strings.TrimPrefix(ref, "file://"))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

func (FileSource) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	f, err := os.Open(strings.TrimPrefix(ref, "file://"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}
