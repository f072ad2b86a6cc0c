// merge.go — 流式文本合并 (overlap 检测)。
package chatstate

import "strings"

// MergeStreamText combines accumulated text with an incoming fragment.
//
// Gateways may deliver cumulative snapshots or incremental fragments,
// and may redeliver a chunk after a reconnect. The merge is correct
// under both models without a mode flag:
//   - no previous text → incoming verbatim
//   - incoming empty or identical → previous unchanged (idempotent)
//   - incoming contains previous as prefix → incoming is the newer snapshot
//   - previous contains incoming as prefix/suffix → stale duplicate, keep previous
//   - otherwise stitch at the longest suffix(previous)==prefix(incoming)
//     overlap; no overlap → plain concatenation
func MergeStreamText(previous, incoming string) string {
	if previous == "" {
		return incoming
	}
	if incoming == "" || incoming == previous {
		return previous
	}
	if strings.HasPrefix(incoming, previous) {
		return incoming
	}
	if strings.HasPrefix(previous, incoming) || strings.HasSuffix(previous, incoming) {
		return previous
	}

	max := len(incoming)
	if len(previous) < max {
		max = len(previous)
	}
	for overlap := max; overlap > 0; overlap-- {
		if strings.HasSuffix(previous, incoming[:overlap]) {
			return previous + incoming[overlap:]
		}
	}
	return previous + incoming
}
