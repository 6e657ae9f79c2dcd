// Package task defines the persisted transcription task and its status
// vocabulary.
package task

import (
	"time"

	"github.com/google/uuid"
)

// Task is the durable unit of work driven through the pipeline.
type Task struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	RecordingID string    `json:"recording_id"`
	Title       string    `json:"title"`
	Mode        Mode      `json:"mode"`

	LocalFilePath string `json:"local_file_path"`
	// RawOSSURL is the uploaded untranscoded original, when enabled.
	RawOSSURL string `json:"raw_oss_url,omitempty"`
	OSSURL    string `json:"oss_url,omitempty"`

	// Remote provider bookkeeping.
	TaskID        string `json:"task_id,omitempty"`
	TaskKey       string `json:"task_key,omitempty"`
	APIStatus     string `json:"api_status,omitempty"`
	StatusText    string `json:"status_text,omitempty"`
	BizDuration   int    `json:"biz_duration,omitempty"`
	OutputMP3Path string `json:"output_mp3_path,omitempty"`

	Status Status `json:"status"`

	RawResponse string `json:"raw_response,omitempty"`
	Transcript  string `json:"transcript,omitempty"`
	Summary     string `json:"summary,omitempty"`
	KeyPoints   string `json:"key_points,omitempty"`
	ActionItems string `json:"action_items,omitempty"`

	LastError            string  `json:"last_error,omitempty"`
	LastSuccessfulStatus Status  `json:"last_successful_status,omitempty"`
	FailedStep           *Status `json:"failed_step,omitempty"`
	RetryCount           int     `json:"retry_count"`
}

// New creates a task in the recorded state.
func New(recordingID, localFilePath, title string) *Task {
	return &Task{
		ID:            uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		RecordingID:   recordingID,
		Title:         title,
		Mode:          ModeMixed,
		LocalFilePath: localFilePath,
		Status:        StatusRecorded,
	}
}

// Consistent reports whether the failed-step invariant holds: FailedStep
// is set exactly when Status is failed.
func (t *Task) Consistent() bool {
	return (t.Status == StatusFailed) == (t.FailedStep != nil)
}

// Fail moves the task to failed at step with a human-readable message.
func (t *Task) Fail(step Status, message string) {
	s := step
	t.Status = StatusFailed
	t.FailedStep = &s
	t.LastError = message
}

// Advance records a successful step. It clears any previous failure so the
// invariant keeps holding.
func (t *Task) Advance(step Status) {
	t.Status = step
	t.LastSuccessfulStatus = step
	t.FailedStep = nil
	t.LastError = ""
}

// MarkRunning records that step is executing without touching
// LastSuccessfulStatus.
func (t *Task) MarkRunning(step Status) {
	t.Status = step
	t.FailedStep = nil
}

// ResumePoint is the status a retry starts from: the failed step, or
// recorded when none is set.
func (t *Task) ResumePoint() Status {
	if t.FailedStep != nil {
		return *t.FailedStep
	}
	if t.Status == StatusFailed {
		return StatusRecorded
	}
	return t.Status
}

// ResetDerived clears everything produced by the pipeline so the task can
// run again from the beginning.
func (t *Task) ResetDerived() {
	t.RawOSSURL = ""
	t.OSSURL = ""
	t.TaskID = ""
	t.TaskKey = ""
	t.APIStatus = ""
	t.StatusText = ""
	t.BizDuration = 0
	t.OutputMP3Path = ""
	t.RawResponse = ""
	t.Transcript = ""
	t.Summary = ""
	t.KeyPoints = ""
	t.ActionItems = ""
	t.LastError = ""
	t.LastSuccessfulStatus = ""
	t.FailedStep = nil
	t.Status = StatusRecorded
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	c := *t
	if t.FailedStep != nil {
		s := *t.FailedStep
		c.FailedStep = &s
	}
	return &c
}
