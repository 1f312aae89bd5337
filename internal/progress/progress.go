// Package progress persists, per account, how far each content stream has
// been consumed and which video items were already uploaded.
package progress

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/samber/lo"

	"ytrunner/internal/stream"
)

// Cursors hold the next unconsumed position of each stream.
type Cursors struct {
	Video       int `json:"video"`
	Title       int `json:"title"`
	Description int `json:"description"`
	Thumbnail   int `json:"thumbnail"`
	Tags        int `json:"tags"`
}

func (c Cursors) Get(t stream.Type) int {
	switch t {
	case stream.Video:
		return c.Video
	case stream.Title:
		return c.Title
	case stream.Description:
		return c.Description
	case stream.Thumbnail:
		return c.Thumbnail
	case stream.Tags:
		return c.Tags
	}
	return 0
}

func (c *Cursors) Set(t stream.Type, v int) {
	switch t {
	case stream.Video:
		c.Video = v
	case stream.Title:
		c.Title = v
	case stream.Description:
		c.Description = v
	case stream.Thumbnail:
		c.Thumbnail = v
	case stream.Tags:
		c.Tags = v
	}
}

// atLeast returns the field-wise maximum, so replaying an old commit never
// moves a cursor backwards.
func (c Cursors) atLeast(other Cursors) Cursors {
	return Cursors{
		Video:       max(c.Video, other.Video),
		Title:       max(c.Title, other.Title),
		Description: max(c.Description, other.Description),
		Thumbnail:   max(c.Thumbnail, other.Thumbnail),
		Tags:        max(c.Tags, other.Tags),
	}
}

// Run describes the last invocation for an account.
type Run struct {
	ID      string    `json:"id,omitempty"`
	At      time.Time `json:"at"`
	Outcome string    `json:"outcome"`
	Message string    `json:"message,omitempty"`
	VideoID string    `json:"video_id,omitempty"`
}

type Record struct {
	AccountID    string    `json:"account_id"`
	Cursors      Cursors   `json:"cursors"`
	Fingerprints []string  `json:"fingerprints"`
	LastRun      *Run      `json:"last_run,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitzero"`
}

func newRecord(accountID string) *Record {
	return &Record{AccountID: accountID, Fingerprints: []string{}}
}

func (r *Record) HasFingerprint(fp string) bool {
	return lo.Contains(r.Fingerprints, fp)
}

// Commit is the effect of one successful upload.
type Commit struct {
	Cursors     Cursors
	Fingerprint string
	Run         Run
}

func (r *Record) apply(c Commit) {
	r.Cursors = r.Cursors.atLeast(c.Cursors)
	if c.Fingerprint != "" && !r.HasFingerprint(c.Fingerprint) {
		r.Fingerprints = append(r.Fingerprints, c.Fingerprint)
	}
	r.recordRun(c.Run)
}

func (r *Record) recordRun(run Run) {
	r.LastRun = &run
	r.UpdatedAt = run.At
}

// Store is the durable home of progress records.
//
// Load never fails for an unknown account; it returns a zero record.
// Commit applies cursor advances, the fingerprint and the run entry
// atomically. RecordOutcome touches only the run entry.
type Store interface {
	Load(ctx context.Context, accountID string) (*Record, error)
	Commit(ctx context.Context, accountID string, c Commit) error
	RecordOutcome(ctx context.Context, accountID string, run Run) error
	Reset(ctx context.Context, accountID string) error
	Close() error
}

var ErrInvalidAccountID = errors.New("invalid account id")

var accountIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidAccountID reports whether id is safe to use as a storage key and
// file name.
func ValidAccountID(id string) bool {
	return accountIDPattern.MatchString(id)
}

func checkAccountID(id string) error {
	if !ValidAccountID(id) {
		return ErrInvalidAccountID
	}
	return nil
}
