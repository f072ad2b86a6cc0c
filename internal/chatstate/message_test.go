package chatstate

import "testing"

func TestMessageText(t *testing.T) {
	tests := []struct {
		name    string
		message map[string]any
		want    string
	}{
		{
			name:    "string content",
			message: map[string]any{"content": "plain"},
			want:    "plain",
		},
		{
			name: "text blocks joined",
			message: map[string]any{"content": []any{
				map[string]any{"type": "text", "text": "Hello, "},
				map[string]any{"type": "text", "text": "world"},
			}},
			want: "Hello, world",
		},
		{
			name: "non-text blocks skipped",
			message: map[string]any{"content": []any{
				map[string]any{"type": "tool_use", "id": "tu-1"},
				map[string]any{"type": "text", "text": "answer"},
				map[string]any{"type": "image", "url": "x"},
			}},
			want: "answer",
		},
		{
			name:    "bare string block",
			message: map[string]any{"content": []any{"raw piece"}},
			want:    "raw piece",
		},
		{
			name:    "fallback to text field",
			message: map[string]any{"text": "fallback"},
			want:    "fallback",
		},
		{
			name:    "fallback to delta field",
			message: map[string]any{"delta": "partial"},
			want:    "partial",
		},
		{
			name:    "nil message",
			message: nil,
			want:    "",
		},
		{
			name:    "malformed blocks degrade to empty",
			message: map[string]any{"content": []any{42, true}},
			want:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MessageText(tt.message); got != tt.want {
				t.Errorf("MessageText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessageHasAttachments(t *testing.T) {
	tests := []struct {
		name    string
		message map[string]any
		want    bool
	}{
		{
			name:    "attachments array",
			message: map[string]any{"attachments": []any{map[string]any{"url": "x"}}},
			want:    true,
		},
		{
			name:    "empty attachments array",
			message: map[string]any{"attachments": []any{}},
			want:    false,
		},
		{
			name: "image block",
			message: map[string]any{"content": []any{
				map[string]any{"type": "image", "url": "x"},
			}},
			want: true,
		},
		{
			name: "text only",
			message: map[string]any{"content": []any{
				map[string]any{"type": "text", "text": "hi"},
			}},
			want: false,
		},
		{
			name:    "nil message",
			message: nil,
			want:    false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MessageHasAttachments(tt.message); got != tt.want {
				t.Errorf("MessageHasAttachments = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractUsage(t *testing.T) {
	usage, ok := extractUsage(map[string]any{
		"usage": map[string]any{"input_tokens": 120.0, "output_tokens": 45.0},
	})
	if !ok {
		t.Fatal("extractUsage = !ok")
	}
	if usage.InputTokens != 120 || usage.OutputTokens != 45 || usage.TotalTokens != 165 {
		t.Errorf("usage = %+v", usage)
	}

	// 字符串形式的计数 (千分位) 也接受。
	usage, ok = extractUsage(map[string]any{
		"tokens": map[string]any{"total": "12,345"},
	})
	if !ok || usage.TotalTokens != 12345 {
		t.Errorf("usage = %+v, ok = %v", usage, ok)
	}

	// 第一个来源为空时继续查后续来源。
	usage, ok = extractUsage(nil, map[string]any{
		"usage": map[string]any{"input": 1.0},
	})
	if !ok || usage.InputTokens != 1 {
		t.Errorf("usage = %+v, ok = %v", usage, ok)
	}

	if _, ok := extractUsage(map[string]any{"usage": map[string]any{}}); ok {
		t.Error("empty usage object reported ok")
	}
}
