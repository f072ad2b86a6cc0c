// message.go — 消息记录的文本/附件/用量提取。
package chatstate

import "strings"

// MessageText pulls the renderable text out of a message record:
// string content, text content blocks, or top-level text fields.
// Every branch degrades to "" — malformed substructures never raise.
func MessageText(message map[string]any) string {
	if message == nil {
		return ""
	}
	switch content := message["content"].(type) {
	case string:
		return content
	case []any:
		var parts []string
		for _, raw := range content {
			block := asMap(raw)
			if block == nil {
				if text, ok := raw.(string); ok && text != "" {
					parts = append(parts, text)
				}
				continue
			}
			blockType := ""
			if t, ok := getString(block, "type"); ok {
				blockType = strings.ToLower(strings.TrimSpace(t))
			}
			if blockType != "" && blockType != "text" {
				continue
			}
			if text, ok := getString(block, "text", "content"); ok && text != "" {
				parts = append(parts, text)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "")
		}
	}
	if text, ok := getString(message, "text", "delta"); ok {
		return text
	}
	return ""
}

// MessageHasAttachments reports whether a message carries non-text
// renderable blocks (images, files) that justify appending it even
// without text.
func MessageHasAttachments(message map[string]any) bool {
	if message == nil {
		return false
	}
	if atts, ok := message["attachments"].([]any); ok && len(atts) > 0 {
		return true
	}
	blocks, ok := message["content"].([]any)
	if !ok {
		return false
	}
	for _, raw := range blocks {
		block := asMap(raw)
		if block == nil {
			continue
		}
		if t, ok := getString(block, "type"); ok {
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "image", "file", "attachment", "document":
				return true
			}
		}
	}
	return false
}

// extractUsage 从 payload/message 上挖 token 用量 (best-effort)。
func extractUsage(sources ...map[string]any) (UsageSnapshot, bool) {
	for _, src := range sources {
		if src == nil {
			continue
		}
		for _, key := range []string{"usage", "tokens", "tokenUsage", "token_usage"} {
			usage := asMap(src[key])
			if usage == nil {
				continue
			}
			snap := UsageSnapshot{}
			if n, ok := getNumberLike(usage, "inputTokens", "input_tokens", "prompt_tokens", "input"); ok {
				snap.InputTokens = int(n)
			}
			if n, ok := getNumberLike(usage, "outputTokens", "output_tokens", "completion_tokens", "output"); ok {
				snap.OutputTokens = int(n)
			}
			if n, ok := getNumberLike(usage, "totalTokens", "total_tokens", "total"); ok {
				snap.TotalTokens = int(n)
			}
			if snap.TotalTokens == 0 {
				snap.TotalTokens = snap.InputTokens + snap.OutputTokens
			}
			if snap.TotalTokens > 0 || snap.InputTokens > 0 || snap.OutputTokens > 0 {
				return snap, true
			}
		}
	}
	return UsageSnapshot{}, false
}
