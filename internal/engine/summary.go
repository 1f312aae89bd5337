package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	Idle           State = "idle"
	Resolving      State = "resolving"
	Composing      State = "composing"
	Uploading      State = "uploading"
	PostProcessing State = "post_processing"
	Committing     State = "committing"
	Done           State = "done"
	Aborted        State = "aborted"
	PartialSuccess State = "partial_success"
	NeedsAuth      State = "needs_auth"
)

type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

const (
	StepThumbnail = "thumbnail"
	StepPlaylist  = "playlist"
	StepComments  = "comments"
	StepCommit    = "commit"
)

type StepResult struct {
	Name   string
	Status StepStatus
	Err    error
}

// Summary is the outcome of one run.
type Summary struct {
	AccountID string
	RunID     string
	State     State
	Message   string
	VideoID   string
	VideoName string
	Title     string
	Steps     []StepResult
	Err       error

	StartedAt  time.Time
	FinishedAt time.Time
}

func newSummary(accountID string, now time.Time) *Summary {
	return &Summary{
		AccountID: accountID,
		RunID:     uuid.NewString(),
		State:     Idle,
		StartedAt: now,
	}
}

func (s *Summary) VideoURL() string {
	return VideoURL(s.VideoID)
}

// VideoURL returns the watch page of a video, empty for an empty id.
func VideoURL(videoID string) string {
	if videoID == "" {
		return ""
	}
	return "https://www.youtube.com/watch?v=" + videoID
}

func (s *Summary) Step(name string) (StepResult, bool) {
	for _, st := range s.Steps {
		if st.Name == name {
			return st, true
		}
	}
	return StepResult{}, false
}

func (s *Summary) addStep(name string, status StepStatus, err error) {
	s.Steps = append(s.Steps, StepResult{Name: name, Status: status, Err: err})
}

func (s *Summary) failedSteps() []string {
	var names []string
	for _, st := range s.Steps {
		if st.Status == StepFailed {
			names = append(names, st.Name)
		}
	}
	return names
}

// Fields flattens the summary for logging and status output.
func (s *Summary) Fields() map[string]string {
	f := map[string]string{
		"account":    s.AccountID,
		"run_id":     s.RunID,
		"outcome":    string(s.State),
		"started_at": s.StartedAt.UTC().Format(time.RFC3339),
	}
	if !s.FinishedAt.IsZero() {
		f["finished_at"] = s.FinishedAt.UTC().Format(time.RFC3339)
	}
	if s.Message != "" {
		f["message"] = s.Message
	}
	if s.VideoID != "" {
		f["video_id"] = s.VideoID
		f["video_url"] = s.VideoURL()
	}
	if s.VideoName != "" {
		f["video_name"] = s.VideoName
	}
	if s.Title != "" {
		f["title"] = s.Title
	}
	if s.Err != nil {
		f["error"] = s.Err.Error()
	}
	for _, st := range s.Steps {
		f["step."+st.Name] = string(st.Status)
		if st.Err != nil {
			f["step."+st.Name+".error"] = st.Err.Error()
		}
	}
	return f
}

func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", s.AccountID, s.State)
	if s.VideoID != "" {
		fmt.Fprintf(&b, " %s", s.VideoURL())
	}
	if s.Message != "" {
		fmt.Fprintf(&b, " (%s)", s.Message)
	}
	return b.String()
}
