package chatstate

import "testing"

func TestClassifyEventState(t *testing.T) {
	tests := []struct {
		name      string
		payload   any
		hint      string
		wantState EventState
		wantNil   bool
	}{
		{
			name:      "explicit state field",
			payload:   map[string]any{"state": "delta", "delta": "hi"},
			wantState: StateDelta,
		},
		{
			name:      "state inside data layer",
			payload:   map[string]any{"data": map[string]any{"phase": "final", "message": map[string]any{}}},
			wantState: StateFinal,
		},
		{
			name:      "hint when no state field",
			payload:   map[string]any{"delta": "x"},
			hint:      "chat.stream",
			wantState: StateDelta,
		},
		{
			// 显式 state 优先于 done 标志和 delta 字段。
			name:      "explicit state beats flags",
			payload:   map[string]any{"state": "streaming", "done": true},
			wantState: StateDelta,
		},
		{
			// done 标志优先于 delta 字段。
			name:      "done flag beats delta field",
			payload:   map[string]any{"done": true, "delta": "tail"},
			wantState: StateFinal,
		},
		{
			name:      "string done flag",
			payload:   map[string]any{"done": "true", "message": "ok"},
			wantState: StateFinal,
		},
		{
			name:      "false done flag falls through to delta",
			payload:   map[string]any{"done": false, "delta": "x"},
			wantState: StateDelta,
		},
		{
			name:      "aborted flag",
			payload:   map[string]any{"aborted": true},
			wantState: StateAborted,
		},
		{
			name:      "error field implies error state",
			payload:   map[string]any{"error": "boom"},
			wantState: StateError,
		},
		{
			name:      "bare message implies final",
			payload:   map[string]any{"message": map[string]any{"role": "assistant"}},
			wantState: StateFinal,
		},
		{
			name:    "unclassifiable payload",
			payload: map[string]any{"foo": "bar"},
			wantNil: true,
		},
		{
			name:    "non-object payload",
			payload: "plain string",
			wantNil: true,
		},
		{
			name:    "unknown state text with nothing else",
			payload: map[string]any{"state": "mystery"},
			wantNil: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := ClassifyEvent(tt.payload, tt.hint)
			if tt.wantNil {
				if ev != nil {
					t.Fatalf("ClassifyEvent() = %+v, want nil", ev)
				}
				return
			}
			if ev == nil {
				t.Fatal("ClassifyEvent() = nil, want event")
			}
			if ev.State != tt.wantState {
				t.Errorf("State = %q, want %q", ev.State, tt.wantState)
			}
		})
	}
}

func TestClassifyEventIdentity(t *testing.T) {
	payload := map[string]any{
		"state": "delta",
		"data": map[string]any{
			"run_id":      "r-42",
			"session_key": "agent:main:chat-7",
			"delta":       "partial",
		},
	}
	ev := ClassifyEvent(payload, "")
	if ev == nil {
		t.Fatal("ClassifyEvent() = nil")
	}
	if ev.RunID != "r-42" {
		t.Errorf("RunID = %q, want %q", ev.RunID, "r-42")
	}
	if ev.SessionKey != "agent:main:chat-7" {
		t.Errorf("SessionKey = %q, want %q", ev.SessionKey, "agent:main:chat-7")
	}
	if got := MessageText(ev.Message); got != "partial" {
		t.Errorf("MessageText = %q, want %q", got, "partial")
	}
}

func TestClassifyEventErrorMessage(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{
			name:    "string error",
			payload: map[string]any{"error": "model overloaded"},
			want:    "model overloaded",
		},
		{
			name:    "nested error object",
			payload: map[string]any{"error": map[string]any{"message": "rate limited"}},
			want:    "rate limited",
		},
		{
			name:    "errorMessage spelling",
			payload: map[string]any{"state": "error", "errorMessage": "timeout"},
			want:    "timeout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := ClassifyEvent(tt.payload, "")
			if ev == nil {
				t.Fatal("ClassifyEvent() = nil")
			}
			if ev.State != StateError {
				t.Errorf("State = %q, want %q", ev.State, StateError)
			}
			if ev.ErrorMsg != tt.want {
				t.Errorf("ErrorMsg = %q, want %q", ev.ErrorMsg, tt.want)
			}
		})
	}
}

func TestResolveMessageWrapsBareString(t *testing.T) {
	ev := ClassifyEvent(map[string]any{"state": "final", "message": "plain reply"}, "")
	if ev == nil {
		t.Fatal("ClassifyEvent() = nil")
	}
	if ev.Message == nil {
		t.Fatal("Message = nil, want wrapped record")
	}
	if role, _ := getString(ev.Message, "role"); role != "assistant" {
		t.Errorf("role = %q, want assistant", role)
	}
	if got := MessageText(ev.Message); got != "plain reply" {
		t.Errorf("MessageText = %q, want %q", got, "plain reply")
	}
}
