// errors_test.go — 验证 AppError / Wrap / Wrapf 的行为契约。
package errors

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// TestWrapUnwrap 验证 Wrap 保留原始错误链，errors.Is 和 errors.As 正常工作。
func TestWrapUnwrap(t *testing.T) {
	wrapped := Wrap(ErrNotConnected, "Gateway.Call", "no connection")

	if !errors.Is(wrapped, ErrNotConnected) {
		t.Errorf("errors.Is(wrapped, ErrNotConnected) = false, want true")
	}
	if errors.Is(wrapped, ErrTimeout) {
		t.Errorf("errors.Is(wrapped, ErrTimeout) = true, want false")
	}

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatalf("errors.As failed to extract *AppError")
	}
	if appErr.Op != "Gateway.Call" {
		t.Errorf("Op = %q, want %q", appErr.Op, "Gateway.Call")
	}
	if appErr.Message != "no connection" {
		t.Errorf("Message = %q, want %q", appErr.Message, "no connection")
	}
}

// TestWrapErrorString 验证 Error() 输出包含 op、message 和 cause。
func TestWrapErrorString(t *testing.T) {
	wrapped := Wrap(io.ErrUnexpectedEOF, "Gateway.readLoop", "read message")

	s := wrapped.Error()
	for _, want := range []string{"Gateway.readLoop", "read message", "unexpected EOF"} {
		if !strings.Contains(s, want) {
			t.Errorf("Error() = %q, missing %q", s, want)
		}
	}
}

// TestWrapfFormat 验证 Wrapf 格式化消息。
func TestWrapfFormat(t *testing.T) {
	wrapped := Wrapf(ErrInvalidInput, "Gateway.SendChat", "session %s rejected: %d", "chat-1", 400)

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As failed")
	}
	if !strings.Contains(appErr.Message, "session chat-1 rejected: 400") {
		t.Errorf("Message = %q, want formatted text", appErr.Message)
	}
}

// TestNewWithoutCause 验证 New 创建无 cause 的错误。
func TestNewWithoutCause(t *testing.T) {
	err := New("Init", "failed to start")
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As failed")
	}
	if appErr.Err != nil {
		t.Errorf("Err = %v, want nil", appErr.Err)
	}
	if errors.Unwrap(err) != nil {
		t.Errorf("Unwrap = %v, want nil", errors.Unwrap(err))
	}
}

// TestDoubleWrap 验证二次包装时 errors.Is 仍能找到最深层哨兵。
func TestDoubleWrap(t *testing.T) {
	inner := Wrap(ErrConnClosed, "Gateway.readLoop", "connection closed")
	outer := Wrap(inner, "Gateway.FetchHistory", "chat.history")

	if !errors.Is(outer, ErrConnClosed) {
		t.Error("errors.Is(outer, ErrConnClosed) = false after double wrap")
	}

	var appErr *AppError
	if !errors.As(outer, &appErr) {
		t.Fatal("errors.As failed on outer")
	}
	if appErr.Op != "Gateway.FetchHistory" {
		t.Errorf("Op = %q, want Gateway.FetchHistory", appErr.Op)
	}
}
