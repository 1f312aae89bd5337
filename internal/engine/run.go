package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"ytrunner/internal/account"
	"ytrunner/internal/compose"
	"ytrunner/internal/progress"
	"ytrunner/internal/stream"
)

// run carries the state of one invocation for one account.
type run struct {
	engine   *Engine
	acct     *account.Account
	summary  *Summary
	resolver Resolver
	record   *progress.Record

	resolved compose.Resolved
	// consumed holds the cursor value each used stream advances to.
	consumed map[stream.Type]int
}

// Run performs one upload cycle. It never returns an error: every outcome,
// including failures after the upload, is described by the Summary.
func (e *Engine) Run(ctx context.Context, acct *account.Account) *Summary {
	r := &run{
		engine:   e,
		acct:     acct,
		summary:  newSummary(acct.ID, e.now()),
		resolver: e.resolvers(),
		consumed: make(map[stream.Type]int),
	}

	r.execute(ctx)

	r.summary.FinishedAt = e.now()
	logSummary(r.summary)
	return r.summary
}

func (r *run) execute(ctx context.Context) {
	log := slog.With("account", r.acct.ID, "run_id", r.summary.RunID)

	r.summary.State = Resolving
	rec, err := r.engine.store.Load(ctx, r.acct.ID)
	if err != nil {
		r.finish(ctx, Aborted, fmt.Errorf("failed to load progress: %w", err))
		return
	}
	r.record = rec

	video, err := r.resolveVideo(ctx)
	if errors.Is(err, stream.ErrNotFound) {
		r.summary.Message = "nothing to upload"
		r.finish(ctx, Done, nil)
		return
	}
	if err != nil {
		r.finish(ctx, Aborted, err)
		return
	}
	r.resolved.Video = video
	r.summary.VideoName = video.Name
	log.Info("Resolved video", "name", video.Name, "index", video.Index)

	if err := r.resolveSecondary(ctx); err != nil {
		r.finish(ctx, Aborted, err)
		return
	}

	r.summary.State = Composing
	publisher, err := r.engine.creds.Client(ctx, r.acct)
	if errors.Is(err, ErrAuthRequired) {
		r.needsAuth(ctx, err)
		return
	}
	if err != nil {
		r.finish(ctx, Aborted, fmt.Errorf("failed to get upload client: %w", err))
		return
	}

	dir, err := os.MkdirTemp(r.engine.tempDir, "ytrunner-"+r.acct.ID+"-")
	if err != nil {
		r.finish(ctx, Aborted, fmt.Errorf("failed to create download directory: %w", err))
		return
	}
	defer func() { _ = os.RemoveAll(dir) }()

	if err := r.download(ctx, dir); err != nil {
		r.finish(ctx, Aborted, err)
		return
	}

	job, err := compose.Compose(r.acct, r.resolved, r.engine.now())
	if err != nil {
		r.finish(ctx, Aborted, err)
		return
	}
	r.summary.Title = job.Title

	if err := ctx.Err(); err != nil {
		r.finish(ctx, Aborted, err)
		return
	}

	r.summary.State = Uploading
	log.Info("Uploading video", "title", job.Title, "privacy", job.Privacy)
	videoID, err := publisher.Upload(ctx, job)
	if errors.Is(err, ErrAuthRequired) {
		r.needsAuth(ctx, err)
		return
	}
	if err != nil {
		r.finish(ctx, Aborted, &UploadError{Err: err})
		return
	}
	r.summary.VideoID = videoID
	log.Info("Upload complete", "video_id", videoID)

	// The video exists remotely from here on; cancelling must not skip
	// the bookkeeping that prevents a duplicate upload.
	ctx = context.WithoutCancel(ctx)

	r.summary.State = PostProcessing
	r.postProcess(ctx, publisher, job, videoID)

	outcome := Done
	if failed := r.summary.failedSteps(); len(failed) > 0 {
		outcome = PartialSuccess
		r.summary.Message = "failed steps: " + strings.Join(failed, ", ")
	}

	r.summary.State = Committing
	if err := r.commit(ctx, outcome); err != nil {
		log.Error("Failed to commit progress", "error", err)
		r.summary.addStep(StepCommit, StepFailed, err)
		r.summary.Message = "uploaded but progress was not saved; the next run may upload this video again"
		r.finish(ctx, PartialSuccess, err)
		return
	}
	r.summary.addStep(StepCommit, StepOK, nil)
	r.summary.State = outcome
}

// resolveVideo walks the video stream from the cursor, skipping items that
// were already uploaded and up to max_gap missing indices.
func (r *run) resolveVideo(ctx context.Context) (*stream.Item, error) {
	spec, _ := r.acct.Spec(stream.Video)
	maxGap := r.acct.Streams.Video.MaxGap
	plain := r.acct.Streams.Video.PlainMode()

	cursor := r.record.Cursors.Video
	gaps := 0
	for {
		index := spec.StartIndex + cursor
		isPlain := index == 0 && spec.Manifest == ""
		if isPlain && plain == account.PlainNever {
			cursor++
			continue
		}

		item, err := r.resolver.Resolve(ctx, spec, index)
		if errors.Is(err, stream.ErrNotFound) {
			if isPlain && plain == account.PlainAuto {
				slog.Debug("No plain video, continuing at index 1", "account", r.acct.ID)
				cursor++
				continue
			}
			if gaps >= maxGap {
				return nil, err
			}
			gaps++
			cursor++
			continue
		}
		if err != nil {
			return nil, err
		}

		if r.record.HasFingerprint(item.Fingerprint()) {
			slog.Info("Skipping already uploaded video", "account", r.acct.ID, "name", item.Name)
			cursor++
			gaps = 0
			continue
		}

		r.consumed[stream.Video] = cursor + 1
		return item, nil
	}
}

func (r *run) resolveSecondary(ctx context.Context) error {
	for _, t := range []stream.Type{stream.Title, stream.Description, stream.Tags, stream.Thumbnail} {
		spec, ok := r.acct.Spec(t)
		if !ok {
			continue
		}

		cursor := r.record.Cursors.Get(t)
		item, err := r.resolver.Resolve(ctx, spec, spec.StartIndex+cursor)
		if errors.Is(err, stream.ErrNotFound) {
			slog.Debug("Stream has no item", "account", r.acct.ID, "stream", t, "index", spec.StartIndex+cursor)
			continue
		}
		if err != nil {
			return err
		}

		switch t {
		case stream.Title:
			r.resolved.Title = item
		case stream.Description:
			r.resolved.Description = item
		case stream.Tags:
			r.resolved.Tags = item
		case stream.Thumbnail:
			r.resolved.Thumbnail = item
		}

		if t != stream.Tags || spec.Indexed {
			r.consumed[t] = cursor + 1
		}
	}
	return nil
}

func (r *run) download(ctx context.Context, dir string) error {
	for _, item := range []*stream.Item{r.resolved.Video, r.resolved.Thumbnail} {
		if item == nil {
			continue
		}
		if err := r.resolver.Download(ctx, item, dir); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) postProcess(ctx context.Context, publisher Publisher, job *compose.UploadJob, videoID string) {
	if _, ok := r.acct.Spec(stream.Thumbnail); ok {
		if job.ThumbnailPath == "" {
			r.summary.addStep(StepThumbnail, StepSkipped, nil)
		} else {
			r.step(StepThumbnail, publisher.SetThumbnail(ctx, videoID, job.ThumbnailPath))
		}
	}

	if job.PlaylistID != "" {
		r.step(StepPlaylist, publisher.AddToPlaylist(ctx, job.PlaylistID, videoID))
	}

	if job.Comments != account.CommentsKeep {
		err := publisher.SetComments(ctx, videoID, job.Comments == account.CommentsEnabled)
		if errors.Is(err, errors.ErrUnsupported) {
			r.summary.addStep(StepComments, StepSkipped, nil)
		} else {
			r.step(StepComments, err)
		}
	}
}

func (r *run) step(name string, err error) {
	if err != nil {
		slog.Warn("Secondary step failed", "account", r.acct.ID, "step", name, "error", err)
		r.summary.addStep(name, StepFailed, &StepError{Step: name, Err: err})
		return
	}
	r.summary.addStep(name, StepOK, nil)
}

func (r *run) commit(ctx context.Context, outcome State) error {
	cursors := r.record.Cursors
	for t, next := range r.consumed {
		cursors.Set(t, next)
	}

	return r.engine.store.Commit(ctx, r.acct.ID, progress.Commit{
		Cursors:     cursors,
		Fingerprint: r.resolved.Video.Fingerprint(),
		Run:         r.lastRun(outcome),
	})
}

func (r *run) needsAuth(ctx context.Context, err error) {
	r.summary.Message = "run `ytrunner auth " + r.acct.ID + "` to authorize"
	r.finish(ctx, NeedsAuth, err)
}

// finish ends the run in state and records only the last-run
// entry, leaving cursors and fingerprints untouched.
func (r *run) finish(ctx context.Context, state State, err error) {
	r.summary.State = state
	r.summary.Err = err
	if r.summary.Message == "" && err != nil {
		r.summary.Message = err.Error()
	}

	if rerr := r.engine.store.RecordOutcome(context.WithoutCancel(ctx), r.acct.ID, r.lastRun(state)); rerr != nil {
		slog.Error("Failed to record run outcome", "account", r.acct.ID, "error", rerr)
	}
}

func (r *run) lastRun(outcome State) progress.Run {
	return progress.Run{
		ID:      r.summary.RunID,
		At:      r.engine.now().UTC(),
		Outcome: string(outcome),
		Message: r.summary.Message,
		VideoID: r.summary.VideoID,
	}
}

func logSummary(s *Summary) {
	attrs := []any{"account", s.AccountID, "outcome", s.State}
	if s.VideoID != "" {
		attrs = append(attrs, "video_url", s.VideoURL())
	}
	if s.Message != "" {
		attrs = append(attrs, "message", s.Message)
	}

	switch s.State {
	case Done:
		slog.Info("Run finished", attrs...)
	case PartialSuccess, NeedsAuth:
		slog.Warn("Run finished", attrs...)
	default:
		slog.Error("Run finished", append(attrs, "error", s.Err)...)
	}
}
