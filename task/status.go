package task

import "fmt"

// Status is the workflow position of a task.
type Status string

const (
	StatusRecorded     Status = "recorded"
	StatusUploadingRaw Status = "uploading_raw"
	StatusUploadedRaw  Status = "uploaded_raw"
	StatusTranscoding  Status = "transcoding"
	StatusTranscoded   Status = "transcoded"
	StatusUploading    Status = "uploading"
	StatusUploaded     Status = "uploaded"
	StatusCreated      Status = "created"
	StatusPolling      Status = "polling"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Statuses lists every status in progress order. Failed sorts last.
var Statuses = []Status{
	StatusRecorded,
	StatusUploadingRaw,
	StatusUploadedRaw,
	StatusTranscoding,
	StatusTranscoded,
	StatusUploading,
	StatusUploaded,
	StatusCreated,
	StatusPolling,
	StatusCompleted,
	StatusFailed,
}

var ordinals = func() map[Status]int {
	m := make(map[Status]int, len(Statuses))
	for i, s := range Statuses {
		m[s] = i
	}
	return m
}()

// ParseStatus converts a stored string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := ordinals[st]; !ok {
		return "", fmt.Errorf("unknown task status %q", s)
	}
	return st, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := ordinals[s]
	return ok
}

// Ordinal is the position of s in the progress order, -1 if unknown.
func (s Status) Ordinal() int {
	if o, ok := ordinals[s]; ok {
		return o
	}
	return -1
}

// IsTerminal reports whether no further step runs from s without a retry.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Reached reports whether a task at s has already passed step. Failed
// never counts as having reached anything.
func (s Status) Reached(step Status) bool {
	if s == StatusFailed {
		return false
	}
	return s.Ordinal() >= step.Ordinal()
}

// Label is the short human-readable name shown for a step.
func (s Status) Label() string {
	switch s {
	case StatusRecorded:
		return "Recorded"
	case StatusUploadingRaw:
		return "Uploading original"
	case StatusUploadedRaw:
		return "Original uploaded"
	case StatusTranscoding:
		return "Transcoding"
	case StatusTranscoded:
		return "Transcoded"
	case StatusUploading:
		return "Uploading"
	case StatusUploaded:
		return "Uploaded"
	case StatusCreated:
		return "Creating task"
	case StatusPolling:
		return "Transcribing"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	default:
		return string(s)
	}
}

// Mode selects how a recording's audio is split into channels.
type Mode string

const (
	// ModeMixed transcribes one mixed channel (channel 0).
	ModeMixed Mode = "mixed"
	// ModeSeparated keeps one channel per speaker (channels 1 and 2).
	ModeSeparated Mode = "separated"
)
