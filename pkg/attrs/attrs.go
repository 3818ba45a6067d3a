// Package attrs reads values back out of slog-style key/value lists, so one
// attribute list can feed both a log line and an audit event.
package attrs

// String returns the string stored under key in a [k1, v1, k2, v2, ...] list.
// A missing key or a non-string value reads as "". A trailing key without a
// value is ignored.
func String(list []any, key string) string {
	for i := 0; i+1 < len(list); i += 2 {
		if k, ok := list[i].(string); !ok || k != key {
			continue
		}
		v, _ := list[i+1].(string)
		return v
	}
	return ""
}

// First returns the first non-empty value among keys, in key order.
func First(list []any, keys ...string) string {
	for _, key := range keys {
		if v := String(list, key); v != "" {
			return v
		}
	}
	return ""
}
