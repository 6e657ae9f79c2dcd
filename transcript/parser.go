// Package transcript turns provider result documents into speaker-tagged
// transcript text and meeting insights.
package transcript

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// extractor recognizes one document shape. ok is false when the shape is
// absent, so the next extractor gets a chance.
type extractor func(doc map[string]any) (text string, ok bool)

// extractors is the fallback chain, tried in order. It is filled in init
// because nested extractors recurse into Normalize.
var extractors []extractor

func init() {
	extractors = []extractor{
		nested("Result", "Transcription"),
		nested("Transcription"),
		lines("Paragraphs"),
		lines("Sentences"),
		lines("utterances"),
		lines("segments"),
		plain("Transcript"),
		plain("text"),
	}
}

// Normalize renders doc as newline-joined "speaker: text" lines. It never
// panics; ok is false only for empty or unrecognized documents. A
// recognized but empty line list yields ("", true).
func Normalize(doc map[string]any) (string, bool) {
	for _, ex := range extractors {
		if text, ok := ex(doc); ok {
			return text, true
		}
	}
	return "", false
}

// NormalizeJSON is Normalize over a raw JSON object.
func NormalizeJSON(raw []byte) (string, bool) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", false
	}
	return Normalize(doc)
}

func nested(path ...string) extractor {
	return func(doc map[string]any) (string, bool) {
		cur := doc
		for _, key := range path {
			next, ok := cur[key].(map[string]any)
			if !ok {
				return "", false
			}
			cur = next
		}
		return Normalize(cur)
	}
}

func lines(key string) extractor {
	return func(doc map[string]any) (string, bool) {
		items, ok := doc[key].([]any)
		if !ok {
			return "", false
		}
		out := make([]string, 0, len(items))
		for _, raw := range items {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if line := renderLine(item); line != "" {
				out = append(out, line)
			}
		}
		return strings.Join(out, "\n"), true
	}
}

func plain(key string) extractor {
	return func(doc map[string]any) (string, bool) {
		s, ok := doc[key].(string)
		return s, ok
	}
}

func renderLine(item map[string]any) string {
	text := itemText(item)
	if text == "" {
		return ""
	}
	if speaker := itemSpeaker(item); speaker != "" {
		return speaker + ": " + text
	}
	return text
}

func itemText(item map[string]any) string {
	for _, key := range []string{"Text", "text"} {
		if s, ok := item[key].(string); ok && s != "" {
			return s
		}
	}
	words, ok := item["Words"].([]any)
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, raw := range words {
		w, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if s, ok := w["Text"].(string); ok {
			b.WriteString(s)
		} else if s, ok := w["text"].(string); ok {
			b.WriteString(s)
		}
	}
	return b.String()
}

func itemSpeaker(item map[string]any) string {
	for _, key := range []string{"SpeakerName", "Speaker"} {
		if s := scalar(item[key]); s != "" {
			return s
		}
	}
	if s := scalar(item["speaker"]); s != "" {
		return speakerLabel(s)
	}
	if additions, ok := item["additions"].(map[string]any); ok {
		if s := scalar(additions["speaker"]); s != "" {
			return speakerLabel(s)
		}
	}
	for _, key := range []string{"SpeakerId", "SpeakerID"} {
		if s := scalar(item[key]); s != "" {
			return speakerLabel(s)
		}
	}
	return ""
}

// speakerLabel prefixes bare ids with "Speaker ".
func speakerLabel(id string) string {
	if strings.HasPrefix(strings.ToLower(id), "speaker") {
		return id
	}
	return "Speaker " + id
}

// scalar renders strings and numbers; whole numbers print without a
// fractional part.
func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}
