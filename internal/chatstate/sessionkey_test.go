package chatstate

import "testing"

func TestSessionKeysMatch(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{"exact match", "chat-1", "chat-1", true},
		{"scoped equals bare", "agent:main:chat-1", "chat-1", true},
		{"bare equals scoped", "chat-1", "agent:main:chat-1", true},
		{"case insensitive", "Agent:Main:Chat-1", "chat-1", true},
		{"different agents same rest", "agent:main:chat-1", "agent:other:chat-1", false},
		{"different rest", "agent:main:chat-1", "agent:main:chat-2", false},
		{"empty left", "", "chat-1", false},
		{"empty right", "chat-1", "", false},
		{"both empty", "", "", false},
		{"missing agent id is not scoped", "agent::chat-1", "chat-1", false},
		{"surrounding whitespace", "  chat-1 ", "chat-1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SessionKeysMatch(tt.a, tt.b); got != tt.want {
				t.Errorf("SessionKeysMatch(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestNormalizeSessionKey(t *testing.T) {
	if got := NormalizeSessionKey("  Agent:Main:Chat-1 "); got != "agent:main:chat-1" {
		t.Errorf("NormalizeSessionKey = %q", got)
	}
}
