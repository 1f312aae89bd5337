package compose

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"ytrunner/internal/account"
	"ytrunner/internal/stream"
)

var now = time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

func videoItem() *stream.Item {
	return &stream.Item{Stream: stream.Video, Name: "vid (2).mp4", Path: "/tmp/video-1.mp4"}
}

func TestCompose(t *testing.T) {
	tests := []struct {
		name        string
		acct        account.Account
		resolved    Resolved
		wantTitle   string
		wantPrivacy string
		wantPublish time.Time
	}{
		{
			name:        "allStreams",
			acct:        account.Account{ID: "a", Privacy: account.PrivacyPublic, PlaylistID: " PL1 "},
			resolved:    Resolved{Video: videoItem(), Title: &stream.Item{Text: "C"}},
			wantTitle:   "C",
			wantPrivacy: account.PrivacyPublic,
		},
		{
			name:        "missingTitleFallsBack",
			acct:        account.Account{ID: "a"},
			resolved:    Resolved{Video: videoItem()},
			wantTitle:   "Untitled 2025-06-01 10:30:00",
			wantPrivacy: account.PrivacyPrivate,
		},
		{
			name:        "futureScheduleForcesPrivate",
			acct:        account.Account{ID: "a", Privacy: account.PrivacyPublic, PublishAt: "2025-06-02T08:00:00Z"},
			resolved:    Resolved{Video: videoItem(), Title: &stream.Item{Text: "T"}},
			wantTitle:   "T",
			wantPrivacy: account.PrivacyPrivate,
			wantPublish: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
		},
		{
			name:        "pastScheduleDropped",
			acct:        account.Account{ID: "a", Privacy: account.PrivacyUnlisted, PublishAt: "2024-01-01T00:00:00Z"},
			resolved:    Resolved{Video: videoItem(), Title: &stream.Item{Text: "T"}},
			wantTitle:   "T",
			wantPrivacy: account.PrivacyUnlisted,
		},
		{
			name:        "bracketsOnlyTitleFallsBack",
			acct:        account.Account{ID: "a"},
			resolved:    Resolved{Video: videoItem(), Title: &stream.Item{Text: "<>"}},
			wantTitle:   "Untitled 2025-06-01 10:30:00",
			wantPrivacy: account.PrivacyPrivate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := Compose(&tt.acct, tt.resolved, now)
			if err != nil {
				t.Fatalf("Compose() error = %v", err)
			}
			if job.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", job.Title, tt.wantTitle)
			}
			if job.Privacy != tt.wantPrivacy {
				t.Errorf("Privacy = %q, want %q", job.Privacy, tt.wantPrivacy)
			}
			if !job.PublishAt.Equal(tt.wantPublish) {
				t.Errorf("PublishAt = %v, want %v", job.PublishAt, tt.wantPublish)
			}
			if job.VideoPath != "/tmp/video-1.mp4" {
				t.Errorf("VideoPath = %q", job.VideoPath)
			}
		})
	}
}

func TestComposeCarriesAccountFields(t *testing.T) {
	acct := account.Account{
		ID:                      "a",
		PlaylistID:              " PL1 ",
		CategoryID:              "27",
		DefaultLanguage:         "en",
		MadeForKids:             true,
		SelfDeclaredMadeForKids: true,
		Comments:                account.CommentsDisabled,
	}
	resolved := Resolved{
		Video:       videoItem(),
		Description: &stream.Item{Text: "About <this>"},
		Tags:        &stream.Item{Tags: []string{"go", "shorts"}},
		Thumbnail:   &stream.Item{Path: "/tmp/thumb.jpg"},
	}

	job, err := Compose(&acct, resolved, now)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	if job.PlaylistID != "PL1" {
		t.Errorf("PlaylistID = %q, want PL1", job.PlaylistID)
	}
	if job.Description != "About this" {
		t.Errorf("Description = %q", job.Description)
	}
	if !reflect.DeepEqual(job.Tags, []string{"go", "shorts"}) {
		t.Errorf("Tags = %v", job.Tags)
	}
	if job.ThumbnailPath != "/tmp/thumb.jpg" {
		t.Errorf("ThumbnailPath = %q", job.ThumbnailPath)
	}
	if job.CategoryID != "27" || job.DefaultLanguage != "en" || !job.MadeForKids || !job.SelfDeclaredMadeForKids {
		t.Errorf("account fields not carried: %+v", job)
	}
	if job.Comments != account.CommentsDisabled {
		t.Errorf("Comments = %q", job.Comments)
	}
	if job.Scheduled() {
		t.Error("Scheduled() = true without publish_at")
	}
}

func TestComposeErrors(t *testing.T) {
	tests := []struct {
		name    string
		acct    account.Account
		r       Resolved
		field   string
		wantErr error
	}{
		{name: "noVideo", acct: account.Account{ID: "a"}, field: "video", wantErr: ErrMissingVideo},
		{name: "videoNotDownloaded", acct: account.Account{ID: "a"}, r: Resolved{Video: &stream.Item{Name: "vid.mp4"}}, field: "video", wantErr: ErrMissingVideo},
		{name: "unknownPrivacy", acct: account.Account{ID: "a", Privacy: "friends"}, r: Resolved{Video: videoItem()}, field: "privacy", wantErr: ErrUnknownPrivacy},
		{name: "badSchedule", acct: account.Account{ID: "a", PublishAt: "soon"}, r: Resolved{Video: videoItem()}, field: "publish_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compose(&tt.acct, tt.r, now)

			var compErr *CompositionError
			if !errors.As(err, &compErr) {
				t.Fatalf("error = %v, want *CompositionError", err)
			}
			if compErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", compErr.Field, tt.field)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTitleTruncatesRunes(t *testing.T) {
	long := strings.Repeat("é", 150)
	got := Title(long)
	if n := len([]rune(got)); n != maxTitleRunes {
		t.Errorf("len(Title()) = %d runes, want %d", n, maxTitleRunes)
	}
}

func TestDescriptionTruncatesBytes(t *testing.T) {
	long := strings.Repeat("ü", 3000) // 6000 bytes
	got := Description(long)
	if len(got) > maxDescriptionBytes {
		t.Errorf("len(Description()) = %d bytes, want <= %d", len(got), maxDescriptionBytes)
	}
	if !strings.HasPrefix(long, got) || len(got)%2 != 0 {
		t.Errorf("Description() split a rune")
	}
}

func TestLimitTags(t *testing.T) {
	tags := make([]string, 0, 60)
	for range 60 {
		tags = append(tags, "abcdefghi") // 9 chars + separator
	}
	got := LimitTags(tags)
	if len(got) != 50 {
		t.Errorf("len(LimitTags()) = %d, want 50", len(got))
	}
}
