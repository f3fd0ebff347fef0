package aixplain

import (
	"encoding/json"
	"strings"
)

// Reply text extraction order. Some payload shapes populate several of these
// redundantly, so the order is load-bearing: first non-empty candidate wins.
var candidateKeys = []string{"output", "response", "message", "content", "text"}

// Wrappers the provider sometimes nests the payload under, and the keys
// checked inside them.
var (
	wrapperKeys = []string{"data", "result"}
	wrappedKeys = []string{"output", "response"}
)

// extractText locates the reply text in a completed payload. Returns false
// when no candidate field holds usable text.
func extractText(payload map[string]any) (string, bool) {
	if s, ok := firstCandidate(payload, candidateKeys); ok {
		return s, true
	}
	for _, w := range wrapperKeys {
		nested, ok := payload[w].(map[string]any)
		if !ok {
			continue
		}
		if s, ok := firstCandidate(nested, wrappedKeys); ok {
			return s, true
		}
	}
	return "", false
}

// firstCandidate returns the rendering of the first non-empty key in order.
func firstCandidate(m map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := render(v); ok {
			return s, true
		}
	}
	return "", false
}

// render turns a candidate value into reply text. Plain strings are trimmed;
// structured values get one more pass of the same candidate order, then fall
// back to a JSON rendering of the whole object.
func render(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case map[string]any:
		for _, k := range candidateKeys {
			inner, ok := t[k].(string)
			if !ok {
				continue
			}
			if s := strings.TrimSpace(inner); s != "" {
				return s, true
			}
		}
		b, err := json.Marshal(t)
		if err != nil || len(b) == 0 || string(b) == "{}" {
			return "", false
		}
		return string(b), true
	default:
		return "", false
	}
}

// sessionIDFrom digs the continuity token out of a result payload, checking
// the same wrappers the reply text can hide under.
func sessionIDFrom(payload map[string]any) string {
	if s := sessionKey(payload); s != "" {
		return s
	}
	for _, w := range wrapperKeys {
		if nested, ok := payload[w].(map[string]any); ok {
			if s := sessionKey(nested); s != "" {
				return s
			}
		}
	}
	return ""
}

func sessionKey(m map[string]any) string {
	for _, k := range []string{"sessionId", "session_id"} {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
