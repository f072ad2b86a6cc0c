// coalesce.go — 每帧最多提交一次的流式文本缓冲。
package chatstate

import "sync"

// textCoalescer absorbs a burst of rapid delta commits into a single
// pending value, flushed at most once per rendered frame. Purely a
// throughput optimization: merge correctness never depends on how many
// deltas a flush covers.
type textCoalescer struct {
	mu      sync.Mutex
	pending string
	dirty   bool
}

// Set records the latest full streamed text for the next flush.
func (c *textCoalescer) Set(text string) {
	c.mu.Lock()
	c.pending = text
	c.dirty = true
	c.mu.Unlock()
}

// Take returns the pending value and clears the dirty flag. The second
// return is false when nothing changed since the last flush.
func (c *textCoalescer) Take() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return "", false
	}
	c.dirty = false
	return c.pending, true
}

// Clear drops any pending value without flushing it.
func (c *textCoalescer) Clear() {
	c.mu.Lock()
	c.pending = ""
	c.dirty = false
	c.mu.Unlock()
}
