package aixplain

import "testing"

func TestExtractTextOrder(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
		ok      bool
	}{
		{
			name:    "output wins over response",
			payload: map[string]any{"output": "first", "response": "second"},
			want:    "first",
			ok:      true,
		},
		{
			name:    "response when output absent",
			payload: map[string]any{"response": "second", "message": "third"},
			want:    "second",
			ok:      true,
		},
		{
			name:    "empty output falls through to response",
			payload: map[string]any{"output": "   ", "response": "kept"},
			want:    "kept",
			ok:      true,
		},
		{
			name:    "message then content then text",
			payload: map[string]any{"text": "last", "content": "mid"},
			want:    "mid",
			ok:      true,
		},
		{
			name:    "nested under data",
			payload: map[string]any{"data": map[string]any{"output": "nested"}},
			want:    "nested",
			ok:      true,
		},
		{
			name:    "nested under result",
			payload: map[string]any{"result": map[string]any{"response": "wrapped"}},
			want:    "wrapped",
			ok:      true,
		},
		{
			name:    "top-level beats wrapper",
			payload: map[string]any{"text": "top", "data": map[string]any{"output": "nested"}},
			want:    "top",
			ok:      true,
		},
		{
			name:    "structured candidate digs one level",
			payload: map[string]any{"output": map[string]any{"text": "inner"}},
			want:    "inner",
			ok:      true,
		},
		{
			name:    "structured candidate falls back to JSON rendering",
			payload: map[string]any{"output": map[string]any{"intermediate_steps": []any{}}},
			want:    `{"intermediate_steps":[]}`,
			ok:      true,
		},
		{
			name:    "whitespace trimmed",
			payload: map[string]any{"output": "  hello \n"},
			want:    "hello",
			ok:      true,
		},
		{
			name:    "no candidates",
			payload: map[string]any{"completed": true, "status": "SUCCESS"},
			ok:      false,
		},
		{
			name:    "non-string non-object candidate ignored",
			payload: map[string]any{"output": 42.0, "response": "kept"},
			want:    "kept",
			ok:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractText(tt.payload)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v (got %q)", ok, tt.ok, got)
			}
			if ok && got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionIDFrom(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{"top-level camel", map[string]any{"sessionId": "s1"}, "s1"},
		{"top-level snake", map[string]any{"session_id": "s2"}, "s2"},
		{"under data", map[string]any{"data": map[string]any{"session_id": "s3"}}, "s3"},
		{"under result", map[string]any{"result": map[string]any{"sessionId": "s4"}}, "s4"},
		{"camel wins over snake", map[string]any{"sessionId": "a", "session_id": "b"}, "a"},
		{"absent", map[string]any{"completed": true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sessionIDFrom(tt.payload); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
