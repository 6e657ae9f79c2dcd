// Package diarization defines the speaker diarization backend contract used
// by the on-device transcription provider.
//
// # Backends
//
//   - diarization/pyannote: pyannote HTTP sidecar
package diarization

import (
	"context"

	"github.com/kbukum/voicememo/provider"
)

// Provider is implemented by diarization backends.
type Provider interface {
	provider.Provider // embeds Name() and IsAvailable()

	// Diarize returns who spoke when in the audio file.
	Diarize(ctx context.Context, req Request) (*Result, error)
}

// Request holds parameters for a diarization call.
type Request struct {
	AudioPath string
	// NumSpeakers is the exact number of speakers (0 = auto-detect).
	NumSpeakers int
	MinSpeakers int
	MaxSpeakers int
}

// Result holds speaker turns in time order.
type Result struct {
	Turns       []Turn `json:"turns"`
	NumSpeakers int    `json:"num_speakers"`
}

// Turn is a time range attributed to one speaker.
type Turn struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// SpeakerAt returns the speaker whose turns overlap [start, end] the most,
// or "" when none overlaps.
func (r *Result) SpeakerAt(start, end float64) string {
	best, bestOverlap := "", 0.0
	for _, t := range r.Turns {
		lo, hi := max(t.Start, start), min(t.End, end)
		if overlap := hi - lo; overlap > bestOverlap {
			best, bestOverlap = t.Speaker, overlap
		}
	}
	return best
}
