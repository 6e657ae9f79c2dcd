package taskstore

import (
	"time"

	"github.com/kbukum/voicememo/task"
)

// record is the flat row behind a task.
type record struct {
	ID          string    `gorm:"primaryKey;size:36"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
	RecordingID string `gorm:"index"`
	Title       string
	Mode        string

	LocalFilePath string
	RawOSSURL     string
	OSSURL        string

	TaskID        string
	TaskKey       string
	APIStatus     string
	StatusText    string
	BizDuration   int
	OutputMP3Path string

	Status string `gorm:"index"`

	RawResponse string `gorm:"type:text"`
	Transcript  string `gorm:"type:text"`
	Summary     string `gorm:"type:text"`
	KeyPoints   string `gorm:"type:text"`
	ActionItems string `gorm:"type:text"`

	LastError            string `gorm:"type:text"`
	LastSuccessfulStatus string
	FailedStep           *string
	RetryCount           int
}

func (record) TableName() string { return "tasks" }

func toRecord(t *task.Task) *record {
	r := &record{
		ID:                   t.ID,
		CreatedAt:            t.CreatedAt,
		RecordingID:          t.RecordingID,
		Title:                t.Title,
		Mode:                 string(t.Mode),
		LocalFilePath:        t.LocalFilePath,
		RawOSSURL:            t.RawOSSURL,
		OSSURL:               t.OSSURL,
		TaskID:               t.TaskID,
		TaskKey:              t.TaskKey,
		APIStatus:            t.APIStatus,
		StatusText:           t.StatusText,
		BizDuration:          t.BizDuration,
		OutputMP3Path:        t.OutputMP3Path,
		Status:               string(t.Status),
		RawResponse:          t.RawResponse,
		Transcript:           t.Transcript,
		Summary:              t.Summary,
		KeyPoints:            t.KeyPoints,
		ActionItems:          t.ActionItems,
		LastError:            t.LastError,
		LastSuccessfulStatus: string(t.LastSuccessfulStatus),
		RetryCount:           t.RetryCount,
	}
	if t.FailedStep != nil {
		s := string(*t.FailedStep)
		r.FailedStep = &s
	}
	return r
}

// toTask maps a row back. Unknown stored statuses fall back to failed at
// recorded so the invariant still holds and a retry restarts the chain.
func (r *record) toTask() *task.Task {
	t := &task.Task{
		ID:                   r.ID,
		CreatedAt:            r.CreatedAt.UTC(),
		RecordingID:          r.RecordingID,
		Title:                r.Title,
		Mode:                 task.Mode(r.Mode),
		LocalFilePath:        r.LocalFilePath,
		RawOSSURL:            r.RawOSSURL,
		OSSURL:               r.OSSURL,
		TaskID:               r.TaskID,
		TaskKey:              r.TaskKey,
		APIStatus:            r.APIStatus,
		StatusText:           r.StatusText,
		BizDuration:          r.BizDuration,
		OutputMP3Path:        r.OutputMP3Path,
		RawResponse:          r.RawResponse,
		Transcript:           r.Transcript,
		Summary:              r.Summary,
		KeyPoints:            r.KeyPoints,
		ActionItems:          r.ActionItems,
		LastError:            r.LastError,
		LastSuccessfulStatus: task.Status(r.LastSuccessfulStatus),
		RetryCount:           r.RetryCount,
	}
	if t.Mode == "" {
		t.Mode = task.ModeMixed
	}

	status, err := task.ParseStatus(r.Status)
	if err != nil {
		t.Fail(task.StatusRecorded, "unknown stored status "+r.Status)
		return t
	}
	t.Status = status
	if r.FailedStep != nil {
		if step, err := task.ParseStatus(*r.FailedStep); err == nil {
			t.FailedStep = &step
		} else {
			rec := task.StatusRecorded
			t.FailedStep = &rec
		}
	}
	if !t.Consistent() {
		if t.Status == task.StatusFailed {
			rec := task.StatusRecorded
			t.FailedStep = &rec
		} else {
			t.FailedStep = nil
		}
	}
	return t
}
