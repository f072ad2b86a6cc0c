// reconcile.go — run/session 对账状态机。
//
// 每个被显示的 session 持有一个 Reconciler。所有事件经 ClassifyEvent
// 归一化后在这里决定: 属于当前 run、切换 run、还是直接丢弃。
package chatstate

import (
	"strings"
	"sync"
	"time"

	"github.com/multi-agent/go-chat-client/pkg/logger"
)

// defaultHistoryLimit 自愈 history reload 的分页大小。
const defaultHistoryLimit = 50

// Options tunes reconciler behavior; zero values pick defaults.
type Options struct {
	HistoryLimit  int
	FallbackDelay time.Duration
}

// Reconciler tracks at most one active run for the displayed session and
// guarantees its finalized reply is appended exactly once.
//
// 状态集合 {activeRunID, streamingText, thinking} 对应:
//   - idle:      activeRunID == ""
//   - awaiting:  activeRunID != "" && thinking && streamingText == ""
//   - streaming: activeRunID != "" && streamingText != ""
type Reconciler struct {
	mu sync.Mutex

	sessionKey    string
	activeRunID   string
	streamingText string
	thinking      bool

	tools  []ToolCallItem
	usage  UsageSnapshot
	alerts []AlertEntry

	guard     *FinalizeGuard
	fallback  *FallbackScheduler
	coalescer textCoalescer

	sink      Sink
	requester Requester

	historyLimit  int
	fallbackDelay time.Duration
}

// NewReconciler wires a reconciler for one displayed session.
func NewReconciler(sessionKey string, sink Sink, requester Requester, opts Options) *Reconciler {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.FallbackDelay <= 0 {
		opts.FallbackDelay = DefaultFallbackDelay
	}
	return &Reconciler{
		sessionKey:    NormalizeSessionKey(sessionKey),
		guard:         NewFinalizeGuard(),
		fallback:      NewFallbackScheduler(),
		sink:          sink,
		requester:     requester,
		historyLimit:  opts.HistoryLimit,
		fallbackDelay: opts.FallbackDelay,
	}
}

// SessionKey returns the currently displayed session key.
func (r *Reconciler) SessionKey() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionKey
}

// SetSession switches the displayed session: every pending fallback
// timer is cancelled and all per-session state is dropped.
func (r *Reconciler) SetSession(sessionKey string) {
	r.fallback.CancelAll()
	r.guard.Reset()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionKey = NormalizeSessionKey(sessionKey)
	r.clearRunLocked()
	r.tools = nil
	r.usage = UsageSnapshot{}
	r.alerts = nil
}

// BeginRun marks a locally issued run id: the client enters "awaiting"
// and shows the thinking indicator until the first delta lands.
func (r *Reconciler) BeginRun(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeRunID = strings.TrimSpace(runID)
	r.streamingText = ""
	r.thinking = true
	r.coalescer.Clear()
}

// HandleRaw classifies one raw chat payload and applies it.
// Unclassifiable payloads are dropped without any state change.
func (r *Reconciler) HandleRaw(payload any, hint string) {
	ev := ClassifyEvent(payload, hint)
	if ev == nil {
		logger.Debug("chatstate: unclassifiable payload dropped", logger.FieldEventType, hint)
		return
	}
	r.HandleEvent(ev)
}

// HandleEvent applies a classified event to the state machine.
func (r *Reconciler) HandleEvent(ev *ChatEvent) {
	if ev == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.matchesSessionLocked(ev.SessionKey) {
		return
	}

	switch ev.State {
	case StateDelta:
		r.handleDeltaLocked(ev)
	case StateFinal:
		r.handleFinalLocked(ev)
	case StateAborted:
		r.handleAbortedLocked(ev)
	case StateError:
		r.handleErrorLocked(ev)
	}
}

// matchesSessionLocked 判断事件是否属于当前显示的 session。
// 事件不带 session key 时视为属于当前 session。
func (r *Reconciler) matchesSessionLocked(eventKey string) bool {
	if eventKey == "" || r.sessionKey == "" {
		return true
	}
	return SessionKeysMatch(eventKey, r.sessionKey)
}

// liveLocked reports the "thinking" window (awaiting or streaming) in
// which an event carrying a foreign run id may still claim the turn —
// the gateway is allowed to replace the client's provisional run id.
func (r *Reconciler) liveLocked() bool {
	return r.activeRunID != "" && (r.thinking || r.streamingText != "")
}

func (r *Reconciler) handleDeltaLocked(ev *ChatEvent) {
	if ev.RunID != "" && ev.RunID != r.activeRunID {
		if !r.liveLocked() {
			logger.Debug("chatstate: stale delta dropped",
				logger.FieldRunID, ev.RunID, "active", r.activeRunID)
			return
		}
		r.activeRunID = ev.RunID
	}

	// delta 可能捎带 tool update 而非文本。
	if updates := ExtractToolUpdates(ev.Message, false); len(updates) > 0 {
		r.tools = MergeToolItems(r.tools, updates)
	}

	text := MessageText(ev.Message)
	if text == "" {
		return
	}
	r.streamingText = MergeStreamText(r.streamingText, text)
	r.thinking = false
	r.coalescer.Set(r.streamingText)
}

func (r *Reconciler) handleFinalLocked(ev *ChatEvent) {
	// 真正的 final 到达 → 该 run 的 fallback 定时器立刻作废。
	if ev.RunID != "" {
		r.fallback.Cancel(ev.RunID)
	} else if r.activeRunID != "" {
		r.fallback.Cancel(r.activeRunID)
	}

	if ev.RunID != "" && ev.RunID != r.activeRunID {
		if !r.liveLocked() {
			// Stale/foreign final: the client may have missed the true
			// final for its own run — resynchronize from history.
			r.requestHistoryRepairLocked()
			return
		}
		r.activeRunID = ev.RunID
	}

	if updates := ExtractMessageToolUpdates(ev.Message); len(updates) > 0 {
		r.tools = MergeToolItems(r.tools, updates)
	}
	if usage, ok := extractUsage(ev.Message); ok {
		r.usage = usage
	}

	text := MessageText(ev.Message)
	if strings.TrimSpace(text) == "" && r.streamingText != "" {
		// 有些 gateway 流完增量后只发一个空的 "done" 信号。
		text = r.streamingText
	}

	if strings.TrimSpace(text) != "" || MessageHasAttachments(ev.Message) {
		if !r.guard.ShouldSkip(ev.RunID, text) {
			r.sink.AppendFinal(r.sessionKey, text)
		}
	}

	r.clearRunLocked()
	if r.requester != nil {
		r.requester.RequestSessionRefresh()
	}
}

func (r *Reconciler) handleAbortedLocked(ev *ChatEvent) {
	r.cancelRunTimersLocked(ev.RunID)
	r.clearRunLocked()
}

func (r *Reconciler) handleErrorLocked(ev *ChatEvent) {
	r.cancelRunTimersLocked(ev.RunID)
	r.clearRunLocked()

	message := strings.TrimSpace(ev.ErrorMsg)
	if message == "" {
		message = "发生错误"
	}
	r.pushAlertLocked("error", message)
	r.sink.SystemNotice(r.sessionKey, message)
}

func (r *Reconciler) cancelRunTimersLocked(runID string) {
	if runID != "" {
		r.fallback.Cancel(runID)
		return
	}
	if r.activeRunID != "" {
		r.fallback.Cancel(r.activeRunID)
	}
}

func (r *Reconciler) clearRunLocked() {
	r.activeRunID = ""
	r.streamingText = ""
	r.thinking = false
	r.coalescer.Clear()
}

func (r *Reconciler) requestHistoryRepairLocked() {
	if r.requester == nil {
		return
	}
	r.requester.RequestHistory(r.sessionKey, r.historyLimit)
}

// ========================================
// Tool 流与生命周期信号
// ========================================

// HandleToolPayload merges tool updates extracted from an agent/tool
// stream payload into the session's tool collection.
func (r *Reconciler) HandleToolPayload(payload any, toolStream bool, sessionKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.matchesSessionLocked(NormalizeSessionKey(sessionKey)) {
		return
	}
	if updates := ExtractToolUpdates(payload, toolStream); len(updates) > 0 {
		r.tools = MergeToolItems(r.tools, updates)
	}
}

// HandleLifecycle reacts to the secondary lifecycle channel. An end or
// error phase schedules a short delayed fallback finalize, in case the
// proper final chat event never arrives; a definitive classified event
// for the run cancels the timer first (see handleFinalLocked).
func (r *Reconciler) HandleLifecycle(runID, phase, errMsg string) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return
	}
	p := strings.ToLower(strings.TrimSpace(phase))
	switch {
	case strings.Contains(p, "error"), strings.Contains(p, "fail"):
		r.fallback.Schedule(runID, r.fallbackDelay, func() {
			r.finalizeFallbackError(runID, errMsg)
		})
	case strings.Contains(p, "end"), strings.Contains(p, "done"),
		strings.Contains(p, "stop"), strings.Contains(p, "complete"):
		r.fallback.Schedule(runID, r.fallbackDelay, func() {
			r.finalizeFallbackEnd(runID)
		})
	}
}

func (r *Reconciler) finalizeFallbackEnd(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeRunID != runID {
		return
	}
	if r.streamingText == "" {
		// 没有任何已流入的文本 — 无内容可展示, 只能回源拉历史。
		r.clearRunLocked()
		r.requestHistoryRepairLocked()
		return
	}
	text := r.streamingText
	if !r.guard.ShouldSkip(runID, text) {
		r.sink.AppendFinal(r.sessionKey, text)
	}
	r.clearRunLocked()
	if r.requester != nil {
		r.requester.RequestSessionRefresh()
	}
}

func (r *Reconciler) finalizeFallbackError(runID, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeRunID != runID {
		return
	}
	r.clearRunLocked()
	message := strings.TrimSpace(errMsg)
	if message == "" {
		message = "发生错误"
	}
	r.pushAlertLocked("error", message)
	r.sink.SystemNotice(r.sessionKey, message)
}

// ========================================
// 渲染侧
// ========================================

// Flush commits the coalesced streaming text to the sink. Called once
// per rendered frame by the client; tests call it directly.
func (r *Reconciler) Flush() {
	text, ok := r.coalescer.Take()
	if !ok {
		return
	}
	r.mu.Lock()
	key := r.sessionKey
	r.mu.Unlock()
	r.sink.StreamingText(key, text)
}

// pushAlertLocked 追加高优先级告警, 保留最近 20 条。
func (r *Reconciler) pushAlertLocked(level, message string) {
	r.alerts = append(r.alerts, AlertEntry{
		Time:    time.Now().Format("15:04"),
		Level:   level,
		Message: message,
	})
	if len(r.alerts) > 20 {
		r.alerts = r.alerts[len(r.alerts)-20:]
	}
}

// ========================================
// 快照与历史水合
// ========================================

// Snapshot is a deep-enough copy of reconciler state for diagnostics.
type Snapshot struct {
	SessionKey    string         `json:"sessionKey"`
	ActiveRunID   string         `json:"activeRunId"`
	StreamingText string         `json:"streamingText"`
	Thinking      bool           `json:"thinking"`
	Tools         []ToolCallItem `json:"tools"`
	Usage         UsageSnapshot  `json:"usage"`
	Alerts        []AlertEntry   `json:"alerts"`
}

// Snapshot returns a copy of the current state.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		SessionKey:    r.sessionKey,
		ActiveRunID:   r.activeRunID,
		StreamingText: r.streamingText,
		Thinking:      r.thinking,
		Tools:         append([]ToolCallItem{}, r.tools...),
		Usage:         r.usage,
		Alerts:        append([]AlertEntry{}, r.alerts...),
	}
}

// HydrateHistory rebuilds the session's tool collection from stored
// history messages. Skipped (returns false) while a run is actively
// streaming, so accumulated deltas are not wiped mid-turn.
func (r *Reconciler) HydrateHistory(messages []map[string]any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.liveLocked() && r.streamingText != "" {
		return false
	}

	r.tools = nil
	for _, message := range messages {
		if updates := ExtractMessageToolUpdates(message); len(updates) > 0 {
			r.tools = MergeToolItems(r.tools, updates)
		}
		if usage, ok := extractUsage(message); ok {
			r.usage = usage
		}
	}
	return true
}

// Close tears the engine down; all pending fallback timers are dropped.
func (r *Reconciler) Close() {
	r.fallback.CancelAll()
}
