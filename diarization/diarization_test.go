package diarization

import "testing"

func TestResult_SpeakerAt(t *testing.T) {
	r := &Result{Turns: []Turn{
		{Speaker: "SPEAKER_00", Start: 0, End: 2.5},
		{Speaker: "SPEAKER_01", Start: 2.5, End: 6},
	}}

	tests := []struct {
		start, end float64
		expected   string
	}{
		{0, 2, "SPEAKER_00"},
		{2, 5, "SPEAKER_01"},
		{1, 3, "SPEAKER_00"},
		{7, 8, ""},
	}
	for _, tt := range tests {
		if got := r.SpeakerAt(tt.start, tt.end); got != tt.expected {
			t.Errorf("SpeakerAt(%v, %v): expected %q, got %q", tt.start, tt.end, tt.expected, got)
		}
	}
}
