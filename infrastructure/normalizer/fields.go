package normalizer

import (
	"strconv"
	"strings"
	"time"
)

// Helpers over decoded JSON. Bridge payloads vary too much between versions
// for a fixed struct, so they are walked as generic maps.

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

// path walks nested objects and returns nil when any hop is missing.
func path(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		obj := asMap(cur)
		if obj == nil {
			return nil
		}
		cur = obj[k]
	}
	return cur
}

func str(m map[string]any, keys ...string) string {
	s, _ := path(m, keys...).(string)
	return strings.TrimSpace(s)
}

// firstStr returns the first non-empty string among the given top-level keys.
func firstStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(m, k); s != "" {
			return s
		}
	}
	return ""
}

func boolean(m map[string]any, keys ...string) bool {
	switch v := path(m, keys...).(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// unixTime accepts seconds as a number, a numeric string or a protobuf Long
// object ({"low": ..., "high": ...}).
func unixTime(v any) time.Time {
	var secs int64
	switch t := v.(type) {
	case float64:
		secs = int64(t)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return time.Time{}
		}
		secs = n
	case map[string]any:
		low, _ := t["low"].(float64)
		high, _ := t["high"].(float64)
		secs = int64(high)<<32 | int64(uint32(int64(low)))
	}
	if secs <= 0 {
		return time.Time{}
	}
	// some bridges report milliseconds
	if secs > 1e12 {
		return time.UnixMilli(secs).UTC()
	}
	return time.Unix(secs, 0).UTC()
}
