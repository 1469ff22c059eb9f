package evaluator

import (
	"encoding/json"
	"strings"

	"github.com/timvw/vibecheck/internal/model"
)

// ParseReply turns raw model text into a normalized result. It is
// deliberately forgiving: vision models wrap JSON in markdown fences, or
// surround it with prose, or occasionally return something else entirely.
// A reply that cannot be parsed, or that lacks a confidence field, is
// downgraded to a zero-confidence "no" result instead of an error, so one
// flaky reply does not crash the calling test. Only the caller's threshold
// check turns the downgrade into a reported failure.
func ParseReply(raw string) *model.EvaluationResult {
	text := extractJSONObject(stripMarkdownFences(raw))
	if text == "" {
		return &model.EvaluationResult{
			Verdict:    model.VerdictNo,
			Confidence: 0,
			Reasoning:  "invalid response format (no JSON object found): " + strings.TrimSpace(raw),
		}
	}

	var reply model.LLMReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return &model.EvaluationResult{
			Verdict:    model.VerdictNo,
			Confidence: 0,
			Reasoning:  "invalid response format (JSON parse failed): " + strings.TrimSpace(raw),
		}
	}

	if reply.Confidence == nil {
		return &model.EvaluationResult{
			Verdict:    model.VerdictNo,
			Confidence: 0,
			Reasoning:  "invalid response format (missing confidence field): " + strings.TrimSpace(raw),
		}
	}

	verdict := model.VerdictNo
	if strings.EqualFold(strings.TrimSpace(reply.Verdict), "yes") {
		verdict = model.VerdictYes
	}

	return &model.EvaluationResult{
		Verdict:     verdict,
		Confidence:  *reply.Confidence,
		Reasoning:   reply.Reasoning,
		FailReason:  reply.FailReason,
		Suggestions: reply.Suggestions,
	}
}

// stripMarkdownFences removes a surrounding ```json ... ``` (or bare ```)
// fence, if present. Text without fences is returned trimmed.
func stripMarkdownFences(s string) string {
	text := strings.TrimSpace(s)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		text = text[nl+1:]
	} else {
		// Single-line fence like "```json```".
		text = strings.TrimPrefix(text, "json")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// extractJSONObject returns the first balanced {...} substring of s,
// tolerating prose before and after it. Braces inside JSON strings are
// ignored. Returns "" when no balanced object exists.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
