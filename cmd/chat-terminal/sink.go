// sink.go — 时间线输出: 对账器副作用 → 终端行。
package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/multi-agent/go-chat-client/pkg/util"
)

// streamPreviewWidth 流式预览行的最大宽度 (rune)。
const streamPreviewWidth = 120

// terminalSink renders reconciler effects onto one terminal timeline.
// Streaming text lives on a single rewritten status line; finalized
// replies and system notices become permanent lines.
type terminalSink struct {
	mu        sync.Mutex
	out       io.Writer
	lineOpen  bool // 当前是否有未收尾的流式预览行
	lastWidth int
}

func newTerminalSink(out io.Writer) *terminalSink {
	return &terminalSink{out: out}
}

func (s *terminalSink) StreamingText(_, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	preview := util.CompactOneLine(text, streamPreviewWidth)
	// 覆写上一帧: 回到行首, 多余部分用空格抹掉。
	pad := ""
	if w := len([]rune(preview)); w < s.lastWidth {
		pad = strings.Repeat(" ", s.lastWidth-w)
	}
	fmt.Fprintf(s.out, "\r%s%s", preview, pad)
	s.lineOpen = true
	s.lastWidth = len([]rune(preview))
}

func (s *terminalSink) AppendFinal(_, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeStreamLineLocked()
	fmt.Fprintf(s.out, "assistant> %s\n", strings.TrimRight(text, "\n"))
}

func (s *terminalSink) SystemNotice(_, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeStreamLineLocked()
	fmt.Fprintf(s.out, "[system] %s\n", text)
}

func (s *terminalSink) closeStreamLineLocked() {
	if !s.lineOpen {
		return
	}
	if s.lastWidth > 0 {
		fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", s.lastWidth))
	}
	s.lineOpen = false
	s.lastWidth = 0
}
