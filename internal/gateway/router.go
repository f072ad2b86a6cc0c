// router.go — 入站事件按名字/形状分流到对账器。
package gateway

import (
	"encoding/json"
	"strings"

	"github.com/multi-agent/go-chat-client/internal/chatstate"
	"github.com/multi-agent/go-chat-client/pkg/logger"
)

// Router dispatches pushed gateway envelopes. Chat-named events take
// the classifier path, tool/agent-flavored streams take the extractor
// path, lifecycle phases arm the fallback finalizer; anything else is
// dropped at debug level.
type Router struct {
	rec *chatstate.Reconciler
}

func NewRouter(rec *chatstate.Reconciler) *Router {
	return &Router{rec: rec}
}

// Handle implements EventHandler.
func (r *Router) Handle(event string, payload json.RawMessage) {
	name := strings.ToLower(strings.TrimSpace(event))
	if name == "" {
		return
	}

	var value any
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &value); err != nil {
			logger.Warn("gateway: undecodable payload",
				logger.FieldEventType, event, logger.FieldError, err)
			return
		}
	}
	obj, _ := value.(map[string]any)

	switch {
	case isLifecycleEvent(name):
		runID, phase, errMsg := lifecycleFields(name, obj)
		if runID == "" {
			logger.Debug("gateway: lifecycle event without run id", logger.FieldEventType, event)
			return
		}
		r.rec.HandleLifecycle(runID, phase, errMsg)
	case isChatEvent(name):
		r.rec.HandleRaw(value, name)
	case isToolEvent(name, obj):
		r.rec.HandleToolPayload(value, true, firstString(obj,
			"sessionKey", "session_key", "sessionId", "session_id", "session"))
	default:
		logger.Debug("gateway: unrouted event dropped", logger.FieldEventType, event)
	}
}

// isChatEvent 精确匹配 chat 族: "chat", "chat.xxx", "chat:xxx", "chat/xxx"。
// 不做子串匹配, 避免 "toolchat" 之类误入。
func isChatEvent(name string) bool {
	if name == "chat" {
		return true
	}
	for _, sep := range []string{".", ":", "/"} {
		if strings.HasPrefix(name, "chat"+sep) {
			return true
		}
	}
	return false
}

func isLifecycleEvent(name string) bool {
	return strings.Contains(name, "lifecycle") || strings.HasSuffix(name, ".run")
}

// isToolEvent 判断事件是否属于工具/agent 流: 名字带 tool/function/agent,
// 或 payload 的流标识字段 (stream/channel/topic) 指向工具流。
func isToolEvent(name string, obj map[string]any) bool {
	for _, marker := range []string{"tool", "function", "agent"} {
		if strings.Contains(name, marker) {
			return true
		}
	}
	hint := firstString(obj, "stream", "channel", "topic")
	if hint == "" {
		return false
	}
	hint = strings.ToLower(hint)
	for _, marker := range []string{"tool", "function", "agent"} {
		if strings.Contains(hint, marker) {
			return true
		}
	}
	return false
}

func lifecycleFields(name string, obj map[string]any) (runID, phase, errMsg string) {
	runID = firstString(obj, "runId", "run_id", "runID", "turnId", "turn_id")
	phase = firstString(obj, "phase", "status", "state", "event")
	if phase == "" {
		// "run.lifecycle.end" 这类把阶段编进名字的网关。
		if i := strings.LastIndexAny(name, "./:"); i >= 0 {
			phase = name[i+1:]
		}
	}
	errMsg = firstString(obj, "errorMessage", "error_message", "error", "message")
	return runID, phase, errMsg
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if text, ok := obj[key].(string); ok && strings.TrimSpace(text) != "" {
			return text
		}
	}
	return ""
}
