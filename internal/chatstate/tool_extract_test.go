package chatstate

import "testing"

func TestExtractToolUpdates(t *testing.T) {
	tests := []struct {
		name       string
		payload    any
		toolStream bool
		wantLen    int
		check      func(t *testing.T, updates []ToolCallUpdate)
	}{
		{
			name: "explicit call id",
			payload: map[string]any{
				"toolCallId": "call-1",
				"toolName":   "search",
				"phase":      "start",
			},
			wantLen: 1,
			check: func(t *testing.T, updates []ToolCallUpdate) {
				if updates[0].ID != "call-1" || updates[0].Name != "search" {
					t.Errorf("update = %+v", updates[0])
				}
				if updates[0].Status != ToolStart {
					t.Errorf("Status = %q, want %q", updates[0].Status, ToolStart)
				}
			},
		},
		{
			name: "nested inside data and array",
			payload: map[string]any{
				"data": map[string]any{
					"items": []any{
						map[string]any{"tool_call_id": "call-2", "tool_name": "read_file"},
					},
				},
			},
			wantLen: 1,
		},
		{
			name:    "tool fragment hidden in json string",
			payload: map[string]any{"data": `{"toolCallId":"call-3","toolName":"bash","output":"done"}`},
			wantLen: 1,
			check: func(t *testing.T, updates []ToolCallUpdate) {
				if updates[0].ID != "call-3" {
					t.Errorf("ID = %q, want call-3", updates[0].ID)
				}
				if !updates[0].HasOutput || updates[0].Output != "done" {
					t.Errorf("Output = %q (has=%v)", updates[0].Output, updates[0].HasOutput)
				}
			},
		},
		{
			name:    "plain object is not a tool call",
			payload: map[string]any{"id": "x", "text": "hello"},
			wantLen: 0,
		},
		{
			name:       "tool stream loosens rules",
			payload:    map[string]any{"name": "grep", "args": map[string]any{"pattern": "x"}},
			toolStream: true,
			wantLen:    1,
			check: func(t *testing.T, updates []ToolCallUpdate) {
				if updates[0].ID == "" {
					t.Error("expected synthesized id")
				}
				if updates[0].Name != "grep" {
					t.Errorf("Name = %q", updates[0].Name)
				}
			},
		},
		{
			name:       "no name and no payload synthesizes nothing",
			payload:    map[string]any{"args": map[string]any{"a": 1.0}},
			toolStream: true,
			wantLen:    0,
		},
		{
			name: "output downgrades announced start",
			payload: map[string]any{
				"toolCallId": "call-4",
				"phase":      "call",
				"output":     "result text",
			},
			wantLen: 1,
			check: func(t *testing.T, updates []ToolCallUpdate) {
				if updates[0].Status != ToolUpdate {
					t.Errorf("Status = %q, want %q", updates[0].Status, ToolUpdate)
				}
			},
		},
		{
			name: "string args parsed as json",
			payload: map[string]any{
				"tool_call_id": "call-5",
				"arguments":    `{"path":"/tmp/x"}`,
			},
			wantLen: 1,
			check: func(t *testing.T, updates []ToolCallUpdate) {
				if updates[0].Args == nil || updates[0].Args["path"] != "/tmp/x" {
					t.Errorf("Args = %v", updates[0].Args)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updates := ExtractToolUpdates(tt.payload, tt.toolStream)
			if len(updates) != tt.wantLen {
				t.Fatalf("got %d updates, want %d: %+v", len(updates), tt.wantLen, updates)
			}
			if tt.check != nil && len(updates) > 0 {
				tt.check(t, updates)
			}
		})
	}
}

func TestExtractToolUpdatesBounded(t *testing.T) {
	// 自引用图: 走访必须终止。
	cyclic := map[string]any{}
	cyclic["self"] = cyclic
	updates := ExtractToolUpdates(cyclic, true)
	if len(updates) != 0 {
		t.Errorf("got %d updates from cyclic payload", len(updates))
	}

	// 超深嵌套中的片段在深度上限外被忽略。
	deep := map[string]any{"toolCallId": "deep", "toolName": "x"}
	for i := 0; i < 10; i++ {
		deep = map[string]any{"level": deep}
	}
	if got := ExtractToolUpdates(deep, false); len(got) != 0 {
		t.Errorf("depth cap breached: %+v", got)
	}
}

func TestToolStatusFromText(t *testing.T) {
	tests := []struct {
		text string
		want ToolStatus
	}{
		{"start", ToolStart},
		{"tool_call", ToolStart},
		{"invoke", ToolStart},
		{"running", ToolUpdate},
		{"done", ToolResult},
		{"error", ToolResult},
		// result 优先: "tool_call_end" 同时含 call 和 end。
		{"tool_call_end", ToolResult},
		{"call_complete", ToolResult},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := toolStatusFromText(tt.text); got != tt.want {
				t.Errorf("toolStatusFromText(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractMessageToolUpdates(t *testing.T) {
	message := map[string]any{
		"role": "assistant",
		"content": []any{
			map[string]any{"type": "text", "text": "let me check"},
			map[string]any{
				"type": "tool_use", "id": "tu-1", "name": "web_search",
				"input": map[string]any{"query": "weather"},
			},
			map[string]any{
				"type": "tool_result", "tool_use_id": "tu-1", "content": "sunny",
			},
		},
	}
	updates := ExtractMessageToolUpdates(message)
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1 (folded): %+v", len(updates), updates)
	}
	u := updates[0]
	if u.ID != "tu-1" || u.Name != "web_search" {
		t.Errorf("update = %+v", u)
	}
	if u.Status != ToolResult {
		t.Errorf("Status = %q, want %q (result overrides start)", u.Status, ToolResult)
	}
	if !u.HasOutput || u.Output != "sunny" {
		t.Errorf("Output = %q (has=%v)", u.Output, u.HasOutput)
	}
	if u.Args == nil || u.Args["query"] != "weather" {
		t.Errorf("Args = %v", u.Args)
	}
}

func TestExtractMessageToolUpdatesLegacy(t *testing.T) {
	message := map[string]any{
		"role": "assistant",
		"tool_calls": []any{
			map[string]any{
				"id": "oc-1",
				"function": map[string]any{
					"name":      "get_time",
					"arguments": `{"tz":"UTC"}`,
				},
			},
			map[string]any{"id": "oc-2"}, // 无 name → 跳过
		},
	}
	updates := ExtractMessageToolUpdates(message)
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1: %+v", len(updates), updates)
	}
	if updates[0].ID != "oc-1" || updates[0].Name != "get_time" {
		t.Errorf("update = %+v", updates[0])
	}
	if updates[0].Args == nil || updates[0].Args["tz"] != "UTC" {
		t.Errorf("Args = %v", updates[0].Args)
	}
}

func TestExtractMessageToolUpdatesToolRole(t *testing.T) {
	message := map[string]any{
		"role":         "tool",
		"tool_call_id": "oc-1",
		"content":      "42",
	}
	updates := ExtractMessageToolUpdates(message)
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	if updates[0].Status != ToolResult || updates[0].Output != "42" {
		t.Errorf("update = %+v", updates[0])
	}
}
