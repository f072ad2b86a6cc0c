// finalize.go — finalize-once 守卫。
package chatstate

import (
	"strings"
	"sync"
	"time"
)

const (
	// finalizeHistoryCap 记录最近 N 个 run 的 finalize 文本。
	finalizeHistoryCap = 8
	// finalizeDedupWindow 无 runId 时全局去重的时间窗口。
	finalizeDedupWindow = 1500 * time.Millisecond
)

type finalizedRun struct {
	runID string
	text  string
}

// FinalizeGuard enforces the finalize-exactly-once guarantee: a given
// run's completed text is appended at most once regardless of redelivery
// or duplicate completion signals.
type FinalizeGuard struct {
	mu      sync.Mutex
	history []finalizedRun // oldest first, bounded by finalizeHistoryCap

	lastText string
	lastAt   time.Time

	now func() time.Time // test hook
}

func NewFinalizeGuard() *FinalizeGuard {
	return &FinalizeGuard{now: time.Now}
}

// ShouldSkip reports whether finalizing text for runID would duplicate a
// previous finalize. When it does not skip, the text is recorded as seen.
// Blank text always skips — whitespace is never finalized as content.
func (g *FinalizeGuard) ShouldSkip(runID, text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now()
	if runID != "" {
		for i := range g.history {
			if g.history[i].runID != runID {
				continue
			}
			if g.history[i].text == text {
				return true
			}
			// 同 run 新文本: 更新记录并放行。
			g.history[i].text = text
			g.recordGlobalLocked(text, ts)
			return false
		}
		g.history = append(g.history, finalizedRun{runID: runID, text: text})
		if len(g.history) > finalizeHistoryCap {
			g.history = g.history[len(g.history)-finalizeHistoryCap:]
		}
		g.recordGlobalLocked(text, ts)
		return false
	}

	// 无 runId: 仅与最近一次 finalize 在短窗口内比较。
	if g.lastText == text && ts.Sub(g.lastAt) <= finalizeDedupWindow {
		return true
	}
	g.recordGlobalLocked(text, ts)
	return false
}

func (g *FinalizeGuard) recordGlobalLocked(text string, ts time.Time) {
	g.lastText = text
	g.lastAt = ts
}

// Reset 清空守卫历史 (session 切换时调用)。
func (g *FinalizeGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.history = nil
	g.lastText = ""
	g.lastAt = time.Time{}
}
