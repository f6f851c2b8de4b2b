// Package attrs reads slog-style key/value lists ([key1, value1, key2, value2, ...])
// so the same attributes can be logged and attached to trace spans.
package attrs

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// ExtractString returns the string value stored under key, or "" when the key is
// missing or its value is not a string.
func ExtractString(kv []any, key string) string {
	for i := 0; i < len(kv)-1; i += 2 {
		if k, ok := kv[i].(string); ok && k == key {
			if v, ok := kv[i+1].(string); ok {
				return v
			}
		}
	}
	return ""
}

// ToAttributes converts the list into span attributes. Non-string keys are skipped;
// values without a native attribute type are formatted with %v.
func ToAttributes(kv []any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i < len(kv)-1; i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case string:
			out = append(out, attribute.String(k, v))
		case int:
			out = append(out, attribute.Int(k, v))
		case int64:
			out = append(out, attribute.Int64(k, v))
		case bool:
			out = append(out, attribute.Bool(k, v))
		case fmt.Stringer:
			out = append(out, attribute.String(k, v.String()))
		default:
			out = append(out, attribute.String(k, fmt.Sprintf("%v", v)))
		}
	}
	return out
}
