// classify.go — 原始 payload → ChatEvent 归一化。
package chatstate

import "strings"

// runIDKeys / sessionKeyKeys 覆盖历史上出现过的字段拼写。
var (
	runIDKeys      = []string{"runId", "run_id", "runID", "turnId", "turn_id"}
	sessionKeyKeys = []string{"sessionKey", "session_key", "sessionId", "session_id", "session"}
	stateKeys      = []string{"state", "phase", "event", "status", "type"}
	errorKeys      = []string{"errorMessage", "error_message", "error", "err"}
)

// ClassifyEvent normalizes one raw gateway payload into a ChatEvent.
// hint is the envelope's event name, if any. Returns nil when no state
// can be inferred — callers must drop such payloads silently.
func ClassifyEvent(raw any, hint string) *ChatEvent {
	top := asMap(raw)
	if top == nil {
		return nil
	}
	// payload 可能把真正的字段包在一层 data 里。
	data := asMap(top["data"])

	state, ok := inferState(top, data, hint)
	if !ok {
		return nil
	}

	ev := &ChatEvent{
		State:      state,
		RunID:      strings.TrimSpace(getStringAt(top, data, runIDKeys...)),
		SessionKey: strings.TrimSpace(getStringAt(top, data, sessionKeyKeys...)),
		ErrorMsg:   extractErrorMessage(top, data),
	}
	ev.Message = resolveMessage(top, data)
	return ev
}

// inferState applies the classification priority chain:
// explicit state field → event-name hint → completion/abort flags →
// error field → delta field → message field.
func inferState(top, data map[string]any, hint string) (EventState, bool) {
	for _, obj := range []map[string]any{top, data} {
		if obj == nil {
			continue
		}
		if s, ok := getString(obj, stateKeys...); ok {
			if state, ok := stateFromText(s); ok {
				return state, true
			}
		}
	}
	if state, ok := stateFromText(hint); ok {
		return state, true
	}
	for _, obj := range []map[string]any{top, data} {
		if obj == nil {
			continue
		}
		if aborted, ok := getBool(obj, "aborted", "abort", "cancelled", "canceled"); ok && aborted {
			return StateAborted, true
		}
		if done, ok := getBool(obj, "done", "complete", "completed", "finished", "final"); ok && done {
			return StateFinal, true
		}
	}
	if extractErrorMessage(top, data) != "" {
		return StateError, true
	}
	for _, obj := range []map[string]any{top, data} {
		if obj == nil {
			continue
		}
		if _, ok := obj["delta"]; ok {
			return StateDelta, true
		}
	}
	for _, obj := range []map[string]any{top, data} {
		if obj == nil {
			continue
		}
		if _, ok := obj["message"]; ok {
			return StateFinal, true
		}
	}
	return "", false
}

// stateFromText 按子串匹配把自由文本映射到规范状态。
func stateFromText(text string) (EventState, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return "", false
	}
	switch {
	case strings.Contains(s, "delta"), strings.Contains(s, "stream"):
		return StateDelta, true
	case strings.Contains(s, "final"), strings.Contains(s, "done"), strings.Contains(s, "complete"):
		return StateFinal, true
	case strings.Contains(s, "abort"):
		return StateAborted, true
	case strings.Contains(s, "error"), strings.Contains(s, "fail"):
		return StateError, true
	default:
		return "", false
	}
}

func extractErrorMessage(top, data map[string]any) string {
	for _, obj := range []map[string]any{top, data} {
		if obj == nil {
			continue
		}
		for _, key := range errorKeys {
			value, ok := obj[key]
			if !ok {
				continue
			}
			switch v := value.(type) {
			case string:
				if strings.TrimSpace(v) != "" {
					return v
				}
			case map[string]any:
				if text, ok := getString(v, "message", "text", "detail"); ok && strings.TrimSpace(text) != "" {
					return text
				}
			}
		}
	}
	return ""
}

// resolveMessage 解析 message ?? delta ?? content (同时查 data 层)。
// 裸字符串被包装成最小的 assistant 消息记录。
func resolveMessage(top, data map[string]any) map[string]any {
	for _, obj := range []map[string]any{top, data} {
		if obj == nil {
			continue
		}
		for _, key := range []string{"message", "delta", "content"} {
			value, ok := obj[key]
			if !ok || value == nil {
				continue
			}
			switch v := value.(type) {
			case map[string]any:
				return v
			case string:
				return wrapAssistantText(v)
			}
		}
	}
	return nil
}

func wrapAssistantText(text string) map[string]any {
	return map[string]any{
		"role": "assistant",
		"content": []any{
			map[string]any{"type": "text", "text": text},
		},
	}
}
