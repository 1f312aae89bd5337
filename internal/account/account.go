// Package account loads the per-account configuration from accounts.yaml.
package account

import (
	"fmt"
	"strings"
	"time"

	"ytrunner/internal/progress"
	"ytrunner/internal/stream"
)

const (
	PrivacyPublic   = "public"
	PrivacyUnlisted = "unlisted"
	PrivacyPrivate  = "private"
)

const (
	CommentsKeep     = ""
	CommentsEnabled  = "enabled"
	CommentsDisabled = "disabled"
)

// Plain modes control the unnumbered "<name><ext>" video at index 0.
const (
	// PlainAuto probes index 0 but a missing file there is not a gap.
	PlainAuto = "auto"
	// PlainAlways treats index 0 like any other index.
	PlainAlways = "always"
	// PlainNever starts probing at index 1.
	PlainNever = "never"
)

const (
	defaultVideoName      = "vid"
	defaultThumbnailName  = "thumb"
	defaultThumbnailStart = 1
	defaultPrivacy        = PrivacyPrivate
)

type Account struct {
	ID                      string      `yaml:"id"`
	Name                    string      `yaml:"name,omitempty"`
	Streams                 Streams     `yaml:"streams"`
	PlaylistID              string      `yaml:"playlist_id,omitempty"`
	PublishAt               string      `yaml:"publish_at,omitempty"`
	Privacy                 string      `yaml:"privacy,omitempty"`
	CategoryID              string      `yaml:"category_id,omitempty"`
	DefaultLanguage         string      `yaml:"default_language,omitempty"`
	MadeForKids             bool        `yaml:"made_for_kids,omitempty"`
	SelfDeclaredMadeForKids bool        `yaml:"self_declared_made_for_kids,omitempty"`
	Comments                string      `yaml:"comments,omitempty"`
	Credentials             Credentials `yaml:"credentials,omitempty"`
}

type Streams struct {
	Video       FileStream `yaml:"video"`
	Thumbnail   FileStream `yaml:"thumbnail,omitempty"`
	Title       TextStream `yaml:"title,omitempty"`
	Description TextStream `yaml:"description,omitempty"`
	Tags        TagStream  `yaml:"tags,omitempty"`
}

type FileStream struct {
	Base       string   `yaml:"base,omitempty"`
	Name       string   `yaml:"name,omitempty"`
	Extensions []string `yaml:"extensions,omitempty"`
	StartIndex *int     `yaml:"start_index,omitempty"`
	Manifest   string   `yaml:"manifest,omitempty"`
	MaxGap     int      `yaml:"max_gap,omitempty"`
	Plain      string   `yaml:"plain,omitempty"`
}

// PlainMode returns the configured plain mode, PlainAuto when unset.
func (fs FileStream) PlainMode() string {
	if fs.Plain == "" {
		return PlainAuto
	}
	return fs.Plain
}

type TextStream struct {
	URL   string `yaml:"url,omitempty"`
	Cycle bool   `yaml:"cycle,omitempty"`
}

type TagStream struct {
	URL     string `yaml:"url,omitempty"`
	Indexed bool   `yaml:"indexed,omitempty"`
	Cycle   bool   `yaml:"cycle,omitempty"`
}

// Credentials point at the OAuth client secrets and the stored token.
// ClientSecrets may be a file path or a gcpsm:// secret reference; when
// empty the process-wide client id and secret are used.
type Credentials struct {
	ClientSecrets string `yaml:"client_secrets,omitempty"`
	TokenFile     string `yaml:"token_file,omitempty"`
}

func (a *Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// Spec returns the resolver spec for stream t, or false when the account
// does not configure that stream.
func (a *Account) Spec(t stream.Type) (stream.Spec, bool) {
	s := a.Streams
	switch t {
	case stream.Video:
		return fileSpec(t, s.Video, defaultVideoName, stream.VideoExtensions, 0), true
	case stream.Thumbnail:
		if s.Thumbnail.Base == "" {
			return stream.Spec{}, false
		}
		return fileSpec(t, s.Thumbnail, defaultThumbnailName, stream.ImageExtensions, defaultThumbnailStart), true
	case stream.Title:
		return textSpec(t, s.Title)
	case stream.Description:
		return textSpec(t, s.Description)
	case stream.Tags:
		if s.Tags.URL == "" {
			return stream.Spec{}, false
		}
		return stream.Spec{Type: t, Base: s.Tags.URL, Indexed: s.Tags.Indexed, Cycle: s.Tags.Cycle}, true
	}
	return stream.Spec{}, false
}

func fileSpec(t stream.Type, fs FileStream, name string, exts []string, start int) stream.Spec {
	spec := stream.Spec{
		Type:       t,
		Base:       fs.Base,
		Name:       name,
		Extensions: exts,
		StartIndex: start,
		Manifest:   fs.Manifest,
	}
	if fs.Name != "" {
		spec.Name = fs.Name
	}
	if len(fs.Extensions) > 0 {
		spec.Extensions = normalizeExtensions(fs.Extensions)
	}
	if fs.StartIndex != nil {
		spec.StartIndex = *fs.StartIndex
	}
	return spec
}

func textSpec(t stream.Type, ts TextStream) (stream.Spec, bool) {
	if ts.URL == "" {
		return stream.Spec{}, false
	}
	return stream.Spec{Type: t, Base: ts.URL, Cycle: ts.Cycle}, true
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// PrivacyOrDefault returns the configured privacy, private when unset.
func (a *Account) PrivacyOrDefault() string {
	if a.Privacy == "" {
		return defaultPrivacy
	}
	return a.Privacy
}

// Schedule parses publish_at; ok is false when no schedule is configured.
func (a *Account) Schedule() (t time.Time, ok bool, err error) {
	raw := strings.TrimSpace(a.PublishAt)
	if raw == "" {
		return time.Time{}, false, nil
	}
	t, err = time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid publish_at %q: %w", raw, err)
	}
	return t, true, nil
}

func ValidPrivacy(p string) bool {
	switch p {
	case PrivacyPublic, PrivacyUnlisted, PrivacyPrivate:
		return true
	}
	return false
}

func (a *Account) Validate() error {
	if !progress.ValidAccountID(a.ID) {
		return fmt.Errorf("account id %q must be 1-128 letters, digits, '.', '_' or '-'", a.ID)
	}
	if strings.TrimSpace(a.Streams.Video.Base) == "" {
		return fmt.Errorf("account %s: streams.video.base is required", a.ID)
	}
	if a.Streams.Video.MaxGap < 0 {
		return fmt.Errorf("account %s: streams.video.max_gap must not be negative", a.ID)
	}
	switch a.Streams.Video.PlainMode() {
	case PlainAuto, PlainAlways, PlainNever:
	default:
		return fmt.Errorf("account %s: unknown streams.video.plain %q (valid: auto, always, never)", a.ID, a.Streams.Video.Plain)
	}
	for _, fs := range []FileStream{a.Streams.Video, a.Streams.Thumbnail} {
		if fs.StartIndex != nil && *fs.StartIndex < 0 {
			return fmt.Errorf("account %s: start_index must not be negative", a.ID)
		}
	}
	if !ValidPrivacy(a.PrivacyOrDefault()) {
		return fmt.Errorf("account %s: unknown privacy %q (valid: public, unlisted, private)", a.ID, a.Privacy)
	}
	switch a.Comments {
	case CommentsKeep, CommentsEnabled, CommentsDisabled:
	default:
		return fmt.Errorf("account %s: unknown comments policy %q (valid: enabled, disabled)", a.ID, a.Comments)
	}
	if _, _, err := a.Schedule(); err != nil {
		return fmt.Errorf("account %s: %w", a.ID, err)
	}
	return nil
}
