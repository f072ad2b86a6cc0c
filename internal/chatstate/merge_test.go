package chatstate

import "testing"

func TestMergeStreamText(t *testing.T) {
	tests := []struct {
		name     string
		previous string
		incoming string
		want     string
	}{
		{"empty previous", "", "hello", "hello"},
		{"empty incoming keeps previous", "abc", "", "abc"},
		{"identical is idempotent", "abc", "abc", "abc"},
		{"snapshot replaces prefix", "hel", "hello world", "hello world"},
		{"retransmitted prefix ignored", "hello world", "hello", "hello world"},
		{"retransmitted suffix ignored", "hello world", "world", "hello world"},
		{"overlap stitched", "hello wor", "world", "hello world"},
		{"single char overlap", "abcd", "dx", "abcdx"},
		{"no overlap appends", "abc", "xyz", "abcxyz"},
		{"unicode fragments", "你好世", "世界", "你好世界"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeStreamText(tt.previous, tt.incoming)
			if got != tt.want {
				t.Errorf("MergeStreamText(%q, %q) = %q, want %q",
					tt.previous, tt.incoming, got, tt.want)
			}
		})
	}
}

func TestMergeStreamTextIdempotent(t *testing.T) {
	// 同一增量重复投递不得改变结果。
	merged := MergeStreamText("", "Hel")
	merged = MergeStreamText(merged, "Hello")
	once := merged
	merged = MergeStreamText(merged, "Hello")
	if merged != once {
		t.Fatalf("redelivery changed text: %q -> %q", once, merged)
	}
	if merged != "Hello" {
		t.Fatalf("merged = %q, want %q", merged, "Hello")
	}
}
