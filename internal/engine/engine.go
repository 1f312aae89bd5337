// Package engine runs one upload cycle for one account: resolve the next
// items, compose the upload, publish it, run the secondary steps and commit
// progress.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"ytrunner/internal/account"
	"ytrunner/internal/compose"
	"ytrunner/internal/progress"
	"ytrunner/internal/stream"
)

// ErrAuthRequired means the account has no usable OAuth token and must be
// authorized interactively before it can upload.
var ErrAuthRequired = errors.New("authorization required")

// Publisher is an authorized upload client for one account.
type Publisher interface {
	Upload(ctx context.Context, job *compose.UploadJob) (videoID string, err error)
	SetThumbnail(ctx context.Context, videoID, path string) error
	AddToPlaylist(ctx context.Context, playlistID, videoID string) error
	// SetComments may return errors.ErrUnsupported.
	SetComments(ctx context.Context, videoID string, enabled bool) error
}

type CredentialProvider interface {
	Client(ctx context.Context, acct *account.Account) (Publisher, error)
}

type Resolver interface {
	Resolve(ctx context.Context, spec stream.Spec, index int) (*stream.Item, error)
	Download(ctx context.Context, item *stream.Item, dir string) error
}

type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed: %v", e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// StepError is the failure of a secondary step after a successful upload.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Options struct {
	Store       progress.Store
	Credentials CredentialProvider

	// Resolvers returns a fresh resolver for each run so remote lists are
	// fetched once per run and never reused across runs.
	Resolvers func() Resolver

	// TempDir is where downloads are staged; os.TempDir when empty.
	TempDir string
	Now     func() time.Time
}

type Engine struct {
	store     progress.Store
	creds     CredentialProvider
	resolvers func() Resolver
	tempDir   string
	now       func() time.Time
}

func New(opts Options) *Engine {
	e := &Engine{
		store:     opts.Store,
		creds:     opts.Credentials,
		resolvers: opts.Resolvers,
		tempDir:   opts.TempDir,
		now:       opts.Now,
	}
	if e.tempDir == "" {
		e.tempDir = os.TempDir()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}
