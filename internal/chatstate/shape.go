// shape.go — 宽容的 payload 字段读取 (多候选键名 + 嵌套路径)。
//
// Gateway payloads are not versioned: the same field arrives under
// several historical spellings, sometimes one level deeper. Every
// lookup returns an explicit ok flag instead of panicking or guessing.
package chatstate

import (
	"encoding/json"
	"strconv"
	"strings"
)

// asMap 将任意值转为 map[string]any，非 map 返回 nil。
func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// getString returns the first candidate key holding a string value.
func getString(obj map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		value, ok := obj[key]
		if !ok {
			continue
		}
		if text, ok := value.(string); ok {
			return text, true
		}
	}
	return "", false
}

// getNumber returns the first candidate key holding a numeric value.
func getNumber(obj map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		value, ok := obj[key]
		if !ok {
			continue
		}
		if n, ok := toNumber(value); ok {
			return n, true
		}
	}
	return 0, false
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// getNumberLike additionally accepts numeric strings, with thousands
// separators stripped ("12,345" → 12345).
func getNumberLike(obj map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		value, ok := obj[key]
		if !ok {
			continue
		}
		if n, ok := toNumber(value); ok {
			return n, true
		}
		if text, ok := value.(string); ok {
			cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
			if cleaned == "" {
				continue
			}
			if n, err := strconv.ParseFloat(cleaned, 64); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// getBool accepts bool, non-zero number, or a fixed truthy/falsy string
// vocabulary.
func getBool(obj map[string]any, keys ...string) (bool, bool) {
	for _, key := range keys {
		value, ok := obj[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case bool:
			return v, true
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "1", "true", "yes", "on":
				return true, true
			case "0", "false", "no", "off":
				return false, true
			}
		default:
			if n, ok := toNumber(value); ok {
				return n != 0, true
			}
		}
	}
	return false, false
}

// getNested walks a key path through nested maps.
func getNested(obj map[string]any, path ...string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	current := any(obj)
	for _, key := range path {
		m := asMap(current)
		if m == nil {
			return nil, false
		}
		next, ok := m[key]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// getStringAt 先查顶层再查 data 子对象，返回第一个命中的字符串。
func getStringAt(top, data map[string]any, keys ...string) string {
	if s, ok := getString(top, keys...); ok && strings.TrimSpace(s) != "" {
		return s
	}
	if data != nil {
		if s, ok := getString(data, keys...); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
