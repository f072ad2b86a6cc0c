// tool_extract.go — 从任意嵌套结构中提取 tool-call 片段。
//
// Two independent extraction paths feed the same ToolCallUpdate shape:
// a bounded graph walk over streaming/agent payloads, and a structured
// scan over finalized chat messages (content blocks, legacy tool-call
// arrays, tool-role messages).
package chatstate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// 墙上限: 恶意/环状输入也必须终止。
	maxToolWalkDepth = 6
	maxToolWalkNodes = 512
)

var (
	callIDKeys = []string{
		"toolCallId", "tool_call_id", "callId", "call_id",
		"toolUseId", "tool_use_id", "invocationId", "invocation_id",
	}
	toolNameKeys  = []string{"toolName", "tool_name", "tool", "name"}
	toolPhaseKeys = []string{"phase", "status", "state", "type", "event"}
	toolArgKeys   = []string{"args", "arguments", "input", "params", "parameters"}
	toolOutKeys   = []string{"output", "result", "resultText", "stdout"}
)

// ExtractToolUpdates walks a streaming payload's data graph collecting
// tool-call-shaped fragments. toolStream marks payloads whose enclosing
// stream is itself tagged as a tool stream, which loosens the candidate
// rules (argument/output fields alongside a name or id suffice).
func ExtractToolUpdates(payload any, toolStream bool) []ToolCallUpdate {
	w := toolWalker{toolStream: toolStream, base: time.Now()}
	w.walk(payload, 0)
	return foldToolUpdates(w.updates)
}

type toolWalker struct {
	toolStream bool
	base       time.Time
	nodes      int
	updates    []ToolCallUpdate
}

func (w *toolWalker) walk(value any, depth int) {
	if depth > maxToolWalkDepth || w.nodes >= maxToolWalkNodes {
		return
	}
	w.nodes++

	switch v := value.(type) {
	case map[string]any:
		if update, ok := w.candidate(v); ok {
			w.updates = append(w.updates, update)
		}
		for _, child := range v {
			w.walk(child, depth+1)
		}
	case []any:
		for _, child := range v {
			w.walk(child, depth+1)
		}
	case string:
		// JSON-encoded 字符串也可能藏着 tool 片段。
		trimmed := strings.TrimSpace(v)
		if len(trimmed) < 2 {
			return
		}
		if trimmed[0] != '{' && trimmed[0] != '[' {
			return
		}
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
			return
		}
		w.walk(parsed, depth+1)
	}
}

// candidate decides whether one object is tool-call-shaped and, if so,
// normalizes it. An id is synthesized only for objects that also carry a
// name and some payload field — bare unannotated objects never produce
// an update, to avoid false positives.
func (w *toolWalker) candidate(obj map[string]any) (ToolCallUpdate, bool) {
	callID, _ := getString(obj, callIDKeys...)
	callID = strings.TrimSpace(callID)

	name := strings.TrimSpace(toolNameOf(obj))
	args := toolArgsOf(obj)
	output, hasOutput := toolOutputOf(obj)

	hinted := hintsTool(obj)
	if callID == "" && hinted {
		// tool 语境下裸 "id" 也视为 call-id。
		if id, ok := getString(obj, "id"); ok {
			callID = strings.TrimSpace(id)
		}
	}

	interesting := callID != "" || hinted
	if !interesting && w.toolStream {
		interesting = (args != nil || hasOutput) && (name != "" || callID != "")
	}
	if !interesting {
		return ToolCallUpdate{}, false
	}

	id := callID
	if id == "" {
		if name == "" || (args == nil && !hasOutput) {
			return ToolCallUpdate{}, false
		}
		id = fmt.Sprintf("%s-%d-%d", name, w.base.UnixMilli(), len(w.updates))
	}

	update := ToolCallUpdate{
		ID:        id,
		Name:      name,
		Args:      args,
		Output:    output,
		HasOutput: hasOutput,
		StartedAt: toolTimeOf(obj, "startedAt", "started_at", "startTime", "start_time"),
		UpdatedAt: toolTimeOf(obj, "updatedAt", "updated_at", "timestamp", "ts"),
	}
	if phase, ok := getString(obj, toolPhaseKeys...); ok {
		update.Status = toolStatusFromText(phase)
	}
	// 有 output 就不可能只是 call 公告。
	if update.HasOutput && update.Status == ToolStart {
		update.Status = ToolUpdate
	}
	return update, true
}

// hintsTool reports a field name or marker value textually hinting at a
// tool/function concept.
func hintsTool(obj map[string]any) bool {
	for key := range obj {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "tool") || strings.Contains(lower, "function") {
			return true
		}
	}
	for _, key := range []string{"type", "kind"} {
		if text, ok := getString(obj, key); ok {
			lower := strings.ToLower(text)
			if strings.Contains(lower, "tool") || strings.Contains(lower, "function") {
				return true
			}
		}
	}
	return false
}

func toolNameOf(obj map[string]any) string {
	if name, ok := getString(obj, toolNameKeys...); ok && strings.TrimSpace(name) != "" {
		return name
	}
	// legacy: {"function": {"name": ...}}
	if nested, ok := getNested(obj, "function", "name"); ok {
		if name, ok := nested.(string); ok {
			return name
		}
	}
	return ""
}

func toolArgsOf(obj map[string]any) map[string]any {
	sources := []map[string]any{obj}
	if fn := asMap(obj["function"]); fn != nil {
		sources = append(sources, fn)
	}
	for _, src := range sources {
		for _, key := range toolArgKeys {
			value, ok := src[key]
			if !ok || value == nil {
				continue
			}
			switch v := value.(type) {
			case map[string]any:
				return v
			case string:
				var parsed map[string]any
				if err := json.Unmarshal([]byte(v), &parsed); err == nil && parsed != nil {
					return parsed
				}
			}
		}
	}
	return nil
}

func toolOutputOf(obj map[string]any) (string, bool) {
	for _, key := range toolOutKeys {
		value, ok := obj[key]
		if !ok || value == nil {
			continue
		}
		return formatToolOutput(value), true
	}
	return "", false
}

// formatToolOutput 统一成预格式化文本。
func formatToolOutput(value any) string {
	switch v := value.(type) {
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

func toolTimeOf(obj map[string]any, keys ...string) time.Time {
	if n, ok := getNumberLike(obj, keys...); ok && n > 0 {
		return time.UnixMilli(int64(n))
	}
	return time.Time{}
}

// toolStatusFromText 子串分类: result 类优先于 start 类
// (如 "tool_call_end" 同时含 "call" 与 "end", 应判 result)。
func toolStatusFromText(text string) ToolStatus {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return ""
	}
	for _, marker := range []string{"done", "end", "error", "fail", "ok", "success", "finish", "complete", "result"} {
		if strings.Contains(s, marker) {
			return ToolResult
		}
	}
	for _, marker := range []string{"begin", "call", "invoke", "start"} {
		if strings.Contains(s, marker) {
			return ToolStart
		}
	}
	return ToolUpdate
}

// ExtractMessageToolUpdates scans a structured chat-history message:
// explicit tool-use/tool-result content blocks, legacy tool-call arrays,
// and role-based tool/function messages.
func ExtractMessageToolUpdates(message map[string]any) []ToolCallUpdate {
	if message == nil {
		return nil
	}
	var updates []ToolCallUpdate

	if blocks, ok := message["content"].([]any); ok {
		for _, raw := range blocks {
			block := asMap(raw)
			if block == nil {
				continue
			}
			blockType := ""
			if t, ok := getString(block, "type"); ok {
				blockType = strings.ToLower(strings.TrimSpace(t))
			}
			switch blockType {
			case "tool_use", "tooluse", "server_tool_use":
				id, _ := getString(block, "id", "toolUseId", "tool_use_id")
				if strings.TrimSpace(id) == "" {
					continue
				}
				name, _ := getString(block, "name")
				updates = append(updates, ToolCallUpdate{
					ID:     id,
					Name:   name,
					Status: ToolStart,
					Args:   toolArgsOf(block),
				})
			case "tool_result", "toolresult":
				id, _ := getString(block, "tool_use_id", "toolUseId", "id")
				if strings.TrimSpace(id) == "" {
					continue
				}
				update := ToolCallUpdate{ID: id, Status: ToolResult}
				if value, ok := block["content"]; ok && value != nil {
					update.Output = formatToolOutput(value)
					update.HasOutput = true
				}
				updates = append(updates, update)
			}
		}
	}

	// legacy tool-call 数组 (OpenAI 风格)。
	if calls, ok := message["tool_calls"].([]any); ok {
		for _, raw := range calls {
			call := asMap(raw)
			if call == nil {
				continue
			}
			id, _ := getString(call, "id", "call_id", "callId")
			name := toolNameOf(call)
			if strings.TrimSpace(id) == "" || strings.TrimSpace(name) == "" {
				continue
			}
			updates = append(updates, ToolCallUpdate{
				ID:     id,
				Name:   name,
				Status: ToolStart,
				Args:   toolArgsOf(call),
			})
		}
	}

	if role, ok := getString(message, "role"); ok {
		switch strings.ToLower(strings.TrimSpace(role)) {
		case "tool", "function":
			id, _ := getString(message, callIDKeys...)
			if strings.TrimSpace(id) != "" {
				update := ToolCallUpdate{ID: id, Status: ToolResult}
				if value, ok := message["content"]; ok && value != nil {
					update.Output = formatToolOutput(value)
					update.HasOutput = true
				}
				updates = append(updates, update)
			}
		}
	}

	return foldToolUpdates(updates)
}

// foldToolUpdates 按 id 去重合并: 后到字段覆盖先到, 但 Args/Output 仅在
// 有值时覆盖; Status 从未设置时默认 update。
func foldToolUpdates(updates []ToolCallUpdate) []ToolCallUpdate {
	if len(updates) == 0 {
		return nil
	}
	order := make([]string, 0, len(updates))
	byID := map[string]ToolCallUpdate{}
	for _, update := range updates {
		existing, ok := byID[update.ID]
		if !ok {
			order = append(order, update.ID)
			byID[update.ID] = update
			continue
		}
		if update.Name != "" {
			existing.Name = update.Name
		}
		if update.Status != "" {
			existing.Status = update.Status
		}
		if update.Args != nil {
			existing.Args = update.Args
		}
		if update.HasOutput {
			existing.Output = update.Output
			existing.HasOutput = true
		}
		if !update.StartedAt.IsZero() {
			existing.StartedAt = update.StartedAt
		}
		if !update.UpdatedAt.IsZero() {
			existing.UpdatedAt = update.UpdatedAt
		}
		byID[update.ID] = existing
	}

	out := make([]ToolCallUpdate, 0, len(order))
	for _, id := range order {
		update := byID[id]
		if update.Status == "" {
			update.Status = ToolUpdate
		}
		out = append(out, update)
	}
	return out
}
