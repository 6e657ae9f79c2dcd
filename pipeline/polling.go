package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kbukum/voicememo/task"
	"github.com/kbukum/voicememo/transcript"
	"github.com/kbukum/voicememo/transcription"
	"github.com/kbukum/voicememo/transcription/local"
)

// PollingNode queries the remote task once. It returns TaskRunning while the
// task is in progress; the orchestrator decides whether to poll again.
type PollingNode struct{ Channel int }

func (n PollingNode) Name() string    { return fmt.Sprintf("polling[%d]", n.Channel) }
func (PollingNode) Step() task.Status { return task.StatusPolling }

func (n PollingNode) Run(ctx context.Context, b *Board, s *Services) error {
	ch, err := b.Channel(n.Channel)
	if err != nil {
		return err
	}
	if ch.TaskID == "" {
		return InputMissing("Task ID missing")
	}

	info, err := s.Transcription.GetTaskInfo(ctx, ch.TaskID)
	if err != nil {
		return providerError(err)
	}
	data := info.Data

	b.UpdateChannel(n.Channel, func(c *ChannelData) {
		c.TaskStatus = info.Status
		c.APIStatus = apiStatus(info)
		applyMetadata(c, data)
	})

	switch info.Status {
	case transcription.StatusSuccess:
		return n.complete(ctx, b, s, data)
	case transcription.StatusFailed:
		return TaskFailed(failureReason(data))
	default:
		if partial, ok := partialTranscript(data); ok {
			b.UpdateChannel(n.Channel, func(c *ChannelData) { c.Transcript = partial })
		}
		return TaskRunning()
	}
}

// complete parses the final result. Tingwu answers with a Result object of
// document URLs, Volcengine with an inline result, the local provider and
// simple shapes with the transcript document itself.
func (n PollingNode) complete(ctx context.Context, b *Board, s *Services, data map[string]any) error {
	out := ChannelData{RawData: toJSON(data)}

	switch {
	case asMap(data["Result"]) != nil:
		result := asMap(data["Result"])
		doc, err := document(ctx, s, result["Transcription"])
		if err != nil {
			return providerError(err)
		}
		if doc == nil {
			doc = result
		}
		out.Transcript = normalize(doc, data)
		out.TranscriptData = toJSON(doc)

		overview := make(map[string]any)
		for _, key := range []string{"Summarization", "MeetingAssistance"} {
			mergeOverview(ctx, s, overview, key, result[key])
		}
		if len(overview) > 0 {
			insights := transcript.ExtractInsights(overview)
			out.Summary, out.KeyPoints, out.ActionItems = insights.Summary, insights.KeyPoints, insights.ActionItems
			out.OverviewData = toJSON(overview)
		}
		// The conversation document is kept for audit only.
		if conv, err := document(ctx, s, result["Conversation"]); err == nil && conv != nil {
			out.ConversationData = toJSON(conv)
		}

	case asMap(data["result"]) != nil:
		result := asMap(data["result"])
		out.Transcript, _ = transcript.Normalize(result)
		out.TranscriptData = toJSON(result)

	default:
		out.Transcript, _ = transcript.Normalize(data)
		out.TranscriptData = toJSON(data)
	}

	b.UpdateChannel(n.Channel, func(c *ChannelData) {
		c.Transcript = out.Transcript
		c.Summary = out.Summary
		c.KeyPoints = out.KeyPoints
		c.ActionItems = out.ActionItems
		c.OverviewData = out.OverviewData
		c.TranscriptData = out.TranscriptData
		c.ConversationData = out.ConversationData
		c.RawData = out.RawData
	})
	return nil
}

// document resolves a result field that is either an inline object or a
// URL to fetch. It returns nil for anything else.
func document(ctx context.Context, s *Services, v any) (map[string]any, error) {
	switch d := v.(type) {
	case map[string]any:
		return d, nil
	case string:
		if d == "" {
			return nil, nil
		}
		return s.Transcription.FetchJSON(ctx, d)
	}
	return nil, nil
}

// mergeOverview adds one analysis document to overview. Fetched documents
// already carry their top-level key; inline objects are nested under it.
// Fetch failures leave the overview without that part.
func mergeOverview(ctx context.Context, s *Services, overview map[string]any, key string, v any) {
	switch d := v.(type) {
	case map[string]any:
		overview[key] = d
	case string:
		if d == "" {
			return
		}
		fetched, err := s.Transcription.FetchJSON(ctx, d)
		if err != nil {
			return
		}
		for k, val := range fetched {
			overview[k] = val
		}
	}
}

func normalize(docs ...map[string]any) string {
	for _, d := range docs {
		if text, ok := transcript.Normalize(d); ok {
			return text
		}
	}
	return ""
}

func partialTranscript(data map[string]any) (string, bool) {
	if data == nil {
		return "", false
	}
	_, hasSegments := data["segments"]
	if data["provider"] != local.ProviderTag && !hasSegments {
		return "", false
	}
	text, ok := transcript.Normalize(data)
	return text, ok && text != ""
}

func apiStatus(info transcription.TaskInfo) string {
	if info.RawStatus != "" {
		return info.RawStatus
	}
	if s, ok := info.Data["TaskStatus"].(string); ok && s != "" {
		return s
	}
	return string(info.Status)
}

func applyMetadata(c *ChannelData, data map[string]any) {
	if data == nil {
		return
	}
	if d, ok := number(asMap(data["audio_info"])["duration"]); ok {
		c.BizDuration = d
	} else if d, ok := number(data["BizDuration"]); ok {
		c.BizDuration = d
	}

	if key, ok := data["TaskKey"].(string); ok && key != "" {
		c.TaskKey = key
	} else if c.TaskKey == "" {
		c.TaskKey = c.TaskID
	}
	if text, ok := data["StatusText"].(string); ok {
		c.StatusText = text
	}
	if p, ok := asMap(data["Result"])["OutputMp3Path"].(string); ok && p != "" {
		c.OutputMP3Path = p
	} else if p, ok := data["OutputMp3Path"].(string); ok && p != "" {
		c.OutputMP3Path = p
	}
}

// failureReason picks the most specific message a failed task carries.
func failureReason(data map[string]any) string {
	for _, key := range []string{"StatusText", "_OuterMessage", "Message", "Code", "error"} {
		if v, ok := data[key]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	return "Unknown cloud error"
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func number(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func toJSON(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
