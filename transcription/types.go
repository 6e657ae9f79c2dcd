package transcription

// NormalizedStatus is the three-value status every backend maps onto.
type NormalizedStatus string

const (
	StatusRunning NormalizedStatus = "RUNNING"
	StatusSuccess NormalizedStatus = "SUCCESS"
	StatusFailed  NormalizedStatus = "FAILED"
)

// TaskInfo is one poll result.
type TaskInfo struct {
	Status NormalizedStatus
	// RawStatus is the backend's own status string, when it has one.
	RawStatus string
	// Data is the backend payload. It may be nil while running.
	Data map[string]any
}

// Features are the per-task analysis options sent with CreateTask.
type Features struct {
	Language     string `mapstructure:"language"`
	Summary      bool   `mapstructure:"summary"`
	KeyPoints    bool   `mapstructure:"key_points"`
	ActionItems  bool   `mapstructure:"action_items"`
	RoleSplit    bool   `mapstructure:"role_split"`
	SpeakerCount int    `mapstructure:"speaker_count"`
}

// Segment is a time-aligned portion of a transcript.
type Segment struct {
	// Start is the segment start time in seconds.
	Start float64 `json:"start"`
	// End is the segment end time in seconds.
	End  float64 `json:"end"`
	Text string  `json:"text"`
	// Speaker is empty when diarization did not run.
	Speaker string `json:"speaker,omitempty"`
}

// Overlap is the length of the time range shared by s and [start, end].
func (s Segment) Overlap(start, end float64) float64 {
	lo, hi := max(s.Start, start), min(s.End, end)
	if hi <= lo {
		return 0
	}
	return hi - lo
}
