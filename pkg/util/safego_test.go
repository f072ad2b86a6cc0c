package util

import (
	"testing"
	"time"
)

// TestSafeGoRecovers 验证 panic 被捕获，进程不崩溃。
func TestSafeGoRecovers(t *testing.T) {
	done := make(chan struct{})
	SafeGo(func() {
		defer close(done)
		panic("boom")
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SafeGo goroutine never ran")
	}
	// 再跑一个正常任务确认 SafeGo 仍可用。
	ok := make(chan struct{})
	SafeGo(func() { close(ok) })
	select {
	case <-ok:
	case <-time.After(time.Second):
		t.Fatal("follow-up goroutine never ran")
	}
}
