// Package chatstate reconciles the gateway's loosely-typed event stream
// into consistent per-session chat state: streamed assistant text, tool
// call lifecycles, and a finalize-exactly-once reply guarantee.
package chatstate

import "time"

// EventState 事件归一化后的状态。
type EventState string

const (
	StateDelta   EventState = "delta"
	StateFinal   EventState = "final"
	StateAborted EventState = "aborted"
	StateError   EventState = "error"
)

// ChatEvent is the classified form of one raw gateway payload.
// Produced fresh per payload, never persisted.
type ChatEvent struct {
	RunID      string
	SessionKey string
	State      EventState
	Message    map[string]any // opaque, resolved message record (assistant role)
	ErrorMsg   string
}

// ToolStatus 工具调用阶段。
type ToolStatus string

const (
	ToolStart  ToolStatus = "start"
	ToolUpdate ToolStatus = "update"
	ToolResult ToolStatus = "result"
)

// ToolCallUpdate is a transient normalized fragment extracted from a
// payload; it is merged into a ToolCallItem immediately.
type ToolCallUpdate struct {
	ID        string
	Name      string
	Status    ToolStatus
	Args      map[string]any
	Output    string // pre-formatted text
	HasOutput bool
	StartedAt time.Time
	UpdatedAt time.Time
}

// ToolCallItem is the session-scoped, mutable tool call record.
// Created on first update for an id, updated in place, never deleted
// within a session (only cleared on history reload).
type ToolCallItem struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    ToolStatus     `json:"status"`
	Args      map[string]any `json:"args,omitempty"`
	Output    string         `json:"output,omitempty"`
	StartedAt time.Time      `json:"startedAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// UsageSnapshot 单 session 的 token 用量 (best-effort)。
type UsageSnapshot struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// AlertEntry is a single high-priority notice kept for diagnostics.
type AlertEntry struct {
	Time    string `json:"time"`
	Level   string `json:"level"` // "error" | "warning"
	Message string `json:"message"`
}

// Sink receives the reconciler's UI-visible effects. Rendering itself is
// an external concern; implementations must not call back into the
// reconciler.
type Sink interface {
	// StreamingText delivers the coalesced in-progress assistant text.
	StreamingText(sessionKey, text string)
	// AppendFinal appends the finalized assistant reply exactly once per run.
	AppendFinal(sessionKey, text string)
	// SystemNotice surfaces an upstream-reported error as a system line.
	SystemNotice(sessionKey, text string)
}

// Requester issues fire-and-forget corrective requests back to the
// gateway. The reconciler never blocks on the results.
type Requester interface {
	RequestHistory(sessionKey string, limit int)
	RequestSessionRefresh()
}
