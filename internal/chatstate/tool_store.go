// tool_store.go — ToolCallUpdate → ToolCallItem 合并与排序。
package chatstate

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// placeholderToolName 名字缺失时的占位。
const placeholderToolName = "tool"

// MergeToolItems folds updates into the session's tool collection.
// Lookup is by id: absent ids create a new item whose startedAt is fixed
// at first observation; present ids are patched in place — status/args/
// output overwritten only where the update supplies a defined value,
// updatedAt always refreshed. The result is re-sorted by (startedAt,
// updatedAt, id); callers must not assume arrival order.
func MergeToolItems(existing []ToolCallItem, updates []ToolCallUpdate) []ToolCallItem {
	if len(updates) == 0 {
		return existing
	}
	now := time.Now()

	items := append([]ToolCallItem{}, existing...)
	index := make(map[string]int, len(items))
	for i := range items {
		index[items[i].ID] = i
	}

	for _, update := range updates {
		if strings.TrimSpace(update.ID) == "" {
			continue
		}
		updatedAt := update.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}

		i, ok := index[update.ID]
		if !ok {
			startedAt := update.StartedAt
			if startedAt.IsZero() {
				startedAt = now
			}
			item := ToolCallItem{
				ID:        update.ID,
				Name:      sanitizeToolName(update.Name),
				Status:    update.Status,
				Args:      update.Args,
				Output:    update.Output,
				StartedAt: startedAt,
				UpdatedAt: updatedAt,
			}
			if item.Status == "" {
				item.Status = ToolUpdate
			}
			index[update.ID] = len(items)
			items = append(items, item)
			continue
		}

		item := items[i]
		if strings.TrimSpace(update.Name) != "" {
			item.Name = sanitizeToolName(update.Name)
		}
		if item.Name == "" {
			item.Name = placeholderToolName
		}
		if update.Status != "" {
			item.Status = update.Status
		}
		if update.Args != nil {
			item.Args = update.Args
		}
		if update.HasOutput {
			item.Output = update.Output
		}
		item.UpdatedAt = updatedAt
		items[i] = item
	}

	sort.SliceStable(items, func(a, b int) bool {
		if !items[a].StartedAt.Equal(items[b].StartedAt) {
			return items[a].StartedAt.Before(items[b].StartedAt)
		}
		if !items[a].UpdatedAt.Equal(items[b].UpdatedAt) {
			return items[a].UpdatedAt.Before(items[b].UpdatedAt)
		}
		return items[a].ID < items[b].ID
	})
	return items
}

var ansiSequence = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]|\x1b\][^\x07]*(\x07|\x1b\\)`)

// sanitizeToolName strips control sequences (terminal escapes included)
// and falls back to a placeholder when nothing printable remains.
func sanitizeToolName(name string) string {
	cleaned := ansiSequence.ReplaceAllString(name, "")
	cleaned = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, cleaned)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return placeholderToolName
	}
	return cleaned
}
