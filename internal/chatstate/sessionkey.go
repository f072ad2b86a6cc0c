// sessionkey.go — session key 归一化与等价比较。
package chatstate

import "strings"

// NormalizeSessionKey trims and lowercases a key; empty input yields "".
func NormalizeSessionKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// SessionKeysMatch reports whether two session key spellings address the
// same session. Exact case-insensitive match always succeeds, and the
// qualified form "agent:<agentId>:<rest>" is equivalent to the bare
// "<rest>". Partial prefix/substring matches are deliberately rejected —
// fuzzy affinity would misroute events between similarly-named sessions.
func SessionKeysMatch(a, b string) bool {
	na := NormalizeSessionKey(a)
	nb := NormalizeSessionKey(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return bareSessionKey(na) == nb || na == bareSessionKey(nb)
}

// bareSessionKey 剥离 "agent:<agentId>:" 前缀；非该形式原样返回。
func bareSessionKey(key string) string {
	if !strings.HasPrefix(key, "agent:") {
		return key
	}
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return key
	}
	return parts[2]
}
