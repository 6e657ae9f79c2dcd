package transcript

import "strings"

// Insights are the meeting artifacts derived from summarization and
// meeting-assistance documents.
type Insights struct {
	Summary     string
	KeyPoints   string
	ActionItems string
}

// ExtractInsights reads an overview document: the merge of the
// summarization and meeting-assistance documents a provider returns, or a
// result carrying an inline Summarization object.
func ExtractInsights(overview map[string]any) Insights {
	var in Insights

	if s, ok := overview["Summarization"].(map[string]any); ok {
		in.Summary = summaryText(s)
		in.KeyPoints = bullets(s["KeyPoints"])
		in.ActionItems = bullets(s["ActionItems"])
	} else {
		in.Summary = joinNonEmpty("\n\n", str(overview["Headline"]), str(overview["Summary"]))
	}

	if a, ok := overview["MeetingAssistance"].(map[string]any); ok {
		var sections []string
		if kw := strList(a["Keywords"]); len(kw) > 0 {
			sections = append(sections, "### Keywords\n"+strings.Join(kw, ", "))
		}
		if ks := bullets(a["KeySentences"]); ks != "" {
			sections = append(sections, "### Key sentences\n"+ks)
		}
		if len(sections) > 0 {
			in.KeyPoints = joinNonEmpty("\n\n", in.KeyPoints, strings.Join(sections, "\n\n"))
		}
		if ai := bullets(a["ActionItems"]); ai != "" {
			in.ActionItems = ai
		}
	}

	if in.KeyPoints == "" {
		in.KeyPoints = bullets(overview["KeyPoints"])
	}
	if in.ActionItems == "" {
		in.ActionItems = bullets(overview["ActionItems"])
	}
	return in
}

func summaryText(s map[string]any) string {
	parts := []string{
		str(s["ParagraphTitle"]),
		str(s["ParagraphSummary"]),
		str(s["Headline"]),
		str(s["Summary"]),
	}

	var conv []string
	for _, item := range objects(s["ConversationalSummary"]) {
		speaker, summary := str(item["SpeakerName"]), str(item["Summary"])
		if speaker != "" && summary != "" {
			conv = append(conv, speaker+": "+summary)
		}
	}
	if len(conv) > 0 {
		parts = append(parts, "### Conversation summary\n"+strings.Join(conv, "\n\n"))
	}

	var qa []string
	for _, item := range objects(s["QuestionsAnsweringSummary"]) {
		q, a := str(item["Question"]), str(item["Answer"])
		if q != "" && a != "" {
			qa = append(qa, "Q: "+q+"\nA: "+a)
		}
	}
	if len(qa) > 0 {
		parts = append(parts, "### Q&A\n"+strings.Join(qa, "\n\n"))
	}

	var topics []string
	for _, item := range objects(s["MindMapSummary"]) {
		if title := str(item["Title"]); title != "" {
			topics = append(topics, title)
		}
	}
	if len(topics) > 0 {
		parts = append(parts, "### Mind map topics\n"+strings.Join(topics, ", "))
	}

	return joinNonEmpty("\n\n", parts...)
}

// bullets renders a list of {"Text": ...} objects as "- a\n- b".
func bullets(v any) string {
	var out []string
	for _, item := range objects(v) {
		if text := str(item["Text"]); text != "" {
			out = append(out, "- "+text)
		}
	}
	return strings.Join(out, "\n")
}

func objects(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, raw := range list {
		if m, ok := raw.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func strList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, raw := range list {
		if s, ok := raw.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
