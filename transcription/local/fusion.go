package local

import (
	"github.com/kbukum/voicememo/diarization"
	"github.com/kbukum/voicememo/transcription"
)

const (
	// ProviderTag marks local results so the pipeline can recognize them.
	ProviderTag    = "localWhisper"
	unknownSpeaker = "Unknown"
)

// Fuse assigns each recognized segment the speaker with the largest time
// overlap. Segments without an overlapping turn get "Unknown". A nil
// diarization leaves speakers empty.
func Fuse(segments []transcription.Segment, diar *diarization.Result) []transcription.Segment {
	out := make([]transcription.Segment, len(segments))
	for i, s := range segments {
		out[i] = s
		if diar == nil {
			out[i].Speaker = ""
			continue
		}
		out[i].Speaker = diar.SpeakerAt(s.Start, s.End)
		if out[i].Speaker == "" {
			out[i].Speaker = unknownSpeaker
		}
	}
	return out
}

// Output renders a result in the decoded-JSON shape the transcript parser
// reads.
func Output(text string, segments []transcription.Segment, partial bool) map[string]any {
	items := make([]any, len(segments))
	for i, s := range segments {
		item := map[string]any{"start": s.Start, "end": s.End, "text": s.Text}
		if s.Speaker != "" {
			item["speaker"] = s.Speaker
		}
		items[i] = item
	}
	out := map[string]any{
		"text":     text,
		"segments": items,
		"provider": ProviderTag,
	}
	if partial {
		out["partial"] = true
	}
	return out
}
