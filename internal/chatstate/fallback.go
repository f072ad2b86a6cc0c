// fallback.go — 按 runId 键控的可取消延迟任务。
package chatstate

import (
	"sync"
	"time"
)

// DefaultFallbackDelay is the pause between a lifecycle end signal and
// the fallback finalize check, long enough for a proper final event to
// win the race when the gateway does send one.
const DefaultFallbackDelay = 200 * time.Millisecond

// FallbackScheduler owns at most one pending delayed task per run id.
// Scheduling for an id cancels any earlier task for the same id; the
// contract is enforced here rather than by callers juggling raw timers.
type FallbackScheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewFallbackScheduler() *FallbackScheduler {
	return &FallbackScheduler{timers: map[string]*time.Timer{}}
}

// Schedule runs fn after delay unless cancelled first. An existing task
// for runID is cancelled and replaced.
func (s *FallbackScheduler) Schedule(runID string, delay time.Duration, fn func()) {
	if runID == "" || fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.timers[runID]; ok {
		prev.Stop()
	}
	s.timers[runID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, runID)
		s.mu.Unlock()
		fn()
	})
}

// Cancel stops and removes the pending task for runID, if any.
func (s *FallbackScheduler) Cancel(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[runID]; ok {
		t.Stop()
		delete(s.timers, runID)
	}
}

// CancelAll stops every pending task. Callers must invoke this when the
// active session changes or the engine is torn down — a stale fallback
// must never fire against a no-longer-displayed session.
func (s *FallbackScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// Pending reports whether a task is scheduled for runID (test helper).
func (s *FallbackScheduler) Pending(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[runID]
	return ok
}
