// Package extract locates a human-readable answer inside a JSON response
// body of unknown shape. Rules are tried in a fixed order and the first
// match wins; the order is tuned to the response dialects of LlamaStack,
// Ollama and OpenAI-compatible servers and must not be reordered.
package extract

import (
	"strings"

	"github.com/quailyquaily/llmask/llm"
)

// Rule names reported by Explain.
const (
	RuleCompletionMessage = "completion_message.content"
	RuleString            = "string"
	RuleResponse          = "response"
	RuleOutput            = "output"
	RuleText              = "text"
	RuleChoiceMessage     = "choices[0].message.content"
	RuleChoiceDelta       = "choices[0].delta.content"
	RuleChoiceText        = "choices[0].text"
	RuleResultOutput      = "results[0].output"
	RuleResultText        = "results[0].text"
	RuleResultContent     = "results[0].content"
)

// Text returns the first recognized answer in doc. ok is false when no
// rule matched; an empty string with ok == true is a valid answer.
func Text(doc any, dialect llm.Dialect) (string, bool) {
	text, rule := Explain(doc, dialect)
	return text, rule != ""
}

// Explain is Text but reports the name of the matching rule, or "" on a miss.
func Explain(doc any, dialect llm.Dialect) (string, string) {
	if dialect == llm.DialectChat {
		if s, ok := stringAt(doc, "completion_message", "content"); ok {
			return s, RuleCompletionMessage
		}
	}

	if s, ok := doc.(string); ok {
		return s, RuleString
	}

	for _, key := range []string{RuleResponse, RuleOutput, RuleText} {
		if s, ok := stringAt(doc, key); ok {
			return s, key
		}
	}

	if first, ok := firstElement(doc, "choices"); ok {
		if s, ok := stringAt(first, "message", "content"); ok {
			return s, RuleChoiceMessage
		}
		if s, ok := stringAt(first, "delta", "content"); ok {
			return s, RuleChoiceDelta
		}
		if s, ok := stringAt(first, "text"); ok {
			return s, RuleChoiceText
		}
	}

	if first, ok := firstElement(doc, "results"); ok {
		if s, ok := stringAt(first, "output"); ok {
			return s, RuleResultOutput
		}
		if s, ok := stringAt(first, "text"); ok {
			return s, RuleResultText
		}
		if s, ok := joinStrings(first, "content"); ok {
			return s, RuleResultContent
		}
	}

	return "", ""
}

// stringAt walks nested objects by key and reports the string at the end of
// the path. Any non-object along the way, or a non-string leaf, is a miss.
func stringAt(v any, path ...string) (string, bool) {
	cur := v
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = obj[key]
		if !ok {
			return "", false
		}
	}
	s, ok := cur.(string)
	return s, ok
}

// firstElement returns element 0 of the array field key. Later elements are
// never inspected.
func firstElement(v any, key string) (any, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	arr, ok := obj[key].([]any)
	if !ok || len(arr) == 0 {
		return nil, false
	}
	return arr[0], true
}

// joinStrings concatenates the string elements of the array field key,
// skipping everything else. An empty result is a miss.
func joinStrings(v any, key string) (string, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	arr, ok := obj[key].([]any)
	if !ok {
		return "", false
	}
	var b strings.Builder
	for _, item := range arr {
		if s, ok := item.(string); ok {
			b.WriteString(s)
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}
