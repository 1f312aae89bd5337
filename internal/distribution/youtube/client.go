package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"ytrunner/internal/compose"
	"ytrunner/internal/engine"
)

const defaultChunkSize = 8 * 1024 * 1024

type ClientOptions struct {
	// CategoryID is used when a job carries none.
	CategoryID string
	// ChunkSize is the resumable upload chunk size in bytes.
	ChunkSize int
}

// Client publishes videos through the YouTube Data API v3.
type Client struct {
	service    *youtube.Service
	categoryID string
	chunkSize  int
}

func NewClient(ctx context.Context, httpClient *http.Client, opts ClientOptions, extra ...option.ClientOption) (*Client, error) {
	clientOpts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, extra...)
	service, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	return &Client{
		service:    service,
		categoryID: opts.CategoryID,
		chunkSize:  chunkSize,
	}, nil
}

func (c *Client) Upload(ctx context.Context, job *compose.UploadJob) (string, error) {
	file, err := os.Open(job.VideoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open video: %w", err)
	}
	defer func() { _ = file.Close() }()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:           job.Title,
			Description:     job.Description,
			Tags:            job.Tags,
			CategoryId:      c.category(job),
			DefaultLanguage: job.DefaultLanguage,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           job.Privacy,
			SelfDeclaredMadeForKids: job.SelfDeclaredMadeForKids || job.MadeForKids,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}
	if job.Scheduled() {
		video.Status.PublishAt = job.PublishAt.UTC().Format(time.RFC3339)
	}

	call := c.service.Videos.Insert([]string{"snippet", "status"}, video)
	response, err := call.
		Media(file, googleapi.ChunkSize(c.chunkSize)).
		ProgressUpdater(func(current, total int64) {
			slog.Debug("Upload progress", "video", job.VideoName, "sent", current, "total", total)
		}).
		Context(ctx).
		Do()
	if Revoked(err) {
		return "", fmt.Errorf("%w: %v", engine.ErrAuthRequired, err)
	}
	if err != nil {
		return "", fmt.Errorf("failed to upload video: %w", err)
	}
	if response.Id == "" {
		return "", errors.New("upload response carried no video id")
	}

	return response.Id, nil
}

func (c *Client) category(job *compose.UploadJob) string {
	if job.CategoryID != "" {
		return job.CategoryID
	}
	return c.categoryID
}

func (c *Client) SetThumbnail(ctx context.Context, videoID, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open thumbnail: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := c.service.Thumbnails.Set(videoID).Media(file).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to set thumbnail: %w", err)
	}
	return nil
}

func (c *Client) AddToPlaylist(ctx context.Context, playlistID, videoID string) error {
	item := &youtube.PlaylistItem{
		Snippet: &youtube.PlaylistItemSnippet{
			PlaylistId: playlistID,
			ResourceId: &youtube.ResourceId{
				Kind:    "youtube#video",
				VideoId: videoID,
			},
		},
	}

	if _, err := c.service.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to add video to playlist %s: %w", playlistID, err)
	}
	return nil
}

// SetComments always fails with errors.ErrUnsupported: the Data API has
// no field for a video's comment setting.
func (c *Client) SetComments(_ context.Context, videoID string, enabled bool) error {
	return fmt.Errorf("set comments on %s (enabled=%t): %w", videoID, enabled, errors.ErrUnsupported)
}

// ChannelTitle returns the title of the channel the token belongs to.
func (c *Client) ChannelTitle(ctx context.Context) (string, error) {
	response, err := c.service.Channels.List([]string{"snippet"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to list channels: %w", err)
	}
	if len(response.Items) == 0 || response.Items[0].Snippet == nil {
		return "", errors.New("token has no channel")
	}
	return response.Items[0].Snippet.Title, nil
}
