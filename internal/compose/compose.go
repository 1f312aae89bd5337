// Package compose turns resolved stream items into a single upload request.
package compose

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ytrunner/internal/account"
	"ytrunner/internal/stream"
)

const (
	maxTitleRunes       = 100
	maxDescriptionBytes = 5000
	maxTagCharacters    = 500
	untitledLayout      = "2006-01-02 15:04:05"
)

// Resolved holds the items picked for one upload. Only Video is required.
type Resolved struct {
	Video       *stream.Item
	Title       *stream.Item
	Description *stream.Item
	Tags        *stream.Item
	Thumbnail   *stream.Item
}

// UploadJob is everything the publisher needs for one upload. It is never
// persisted.
type UploadJob struct {
	VideoPath string
	VideoName string

	Title       string
	Description string
	Tags        []string

	Privacy   string
	PublishAt time.Time

	CategoryID              string
	DefaultLanguage         string
	MadeForKids             bool
	SelfDeclaredMadeForKids bool
	Comments                string

	ThumbnailPath string
	PlaylistID    string
}

// Scheduled reports whether the job carries a publish time.
func (j *UploadJob) Scheduled() bool {
	return !j.PublishAt.IsZero()
}

type CompositionError struct {
	Field string
	Err   error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("compose %s: %v", e.Field, e.Err)
}

func (e *CompositionError) Unwrap() error {
	return e.Err
}

var (
	ErrMissingVideo   = errors.New("no video item")
	ErrUnknownPrivacy = errors.New("unknown privacy status")
)

func Compose(acct *account.Account, r Resolved, now time.Time) (*UploadJob, error) {
	if r.Video == nil || r.Video.Path == "" {
		return nil, &CompositionError{Field: "video", Err: ErrMissingVideo}
	}

	privacy := acct.PrivacyOrDefault()
	if !account.ValidPrivacy(privacy) {
		return nil, &CompositionError{Field: "privacy", Err: fmt.Errorf("%w: %q", ErrUnknownPrivacy, privacy)}
	}

	job := &UploadJob{
		VideoPath:               r.Video.Path,
		VideoName:               r.Video.Name,
		Privacy:                 privacy,
		CategoryID:              acct.CategoryID,
		DefaultLanguage:         acct.DefaultLanguage,
		MadeForKids:             acct.MadeForKids,
		SelfDeclaredMadeForKids: acct.SelfDeclaredMadeForKids,
		Comments:                acct.Comments,
		PlaylistID:              strings.TrimSpace(acct.PlaylistID),
	}

	publishAt, scheduled, err := acct.Schedule()
	if err != nil {
		return nil, &CompositionError{Field: "publish_at", Err: err}
	}
	// A past publish time would be rejected upstream, so it is dropped and
	// the configured privacy applies.
	if scheduled && publishAt.After(now) {
		job.PublishAt = publishAt.UTC()
		job.Privacy = account.PrivacyPrivate
	}

	if r.Title != nil {
		job.Title = Title(r.Title.Text)
	}
	if job.Title == "" {
		job.Title = "Untitled " + now.UTC().Format(untitledLayout)
	}
	if r.Description != nil {
		job.Description = Description(r.Description.Text)
	}
	if r.Tags != nil {
		job.Tags = LimitTags(r.Tags.Tags)
	}
	if r.Thumbnail != nil {
		job.ThumbnailPath = r.Thumbnail.Path
	}

	return job, nil
}

// Title strips angle brackets and truncates to the YouTube title limit.
func Title(s string) string {
	s = strings.TrimSpace(stripBrackets(s))
	if utf8.RuneCountInString(s) <= maxTitleRunes {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:maxTitleRunes]))
}

// Description strips angle brackets and truncates to the YouTube byte
// limit without splitting a rune.
func Description(s string) string {
	s = strings.TrimSpace(stripBrackets(s))
	if len(s) <= maxDescriptionBytes {
		return s
	}
	cut := maxDescriptionBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// LimitTags keeps tags in order while their combined length, counting a
// separator between tags, stays within the YouTube limit.
func LimitTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	total := 0
	for _, tag := range tags {
		tag = stripBrackets(tag)
		if tag == "" {
			continue
		}
		n := utf8.RuneCountInString(tag)
		if len(out) > 0 {
			n++
		}
		if total+n > maxTagCharacters {
			break
		}
		total += n
		out = append(out, tag)
	}
	return out
}

func stripBrackets(s string) string {
	return strings.NewReplacer("<", "", ">", "").Replace(s)
}
