// Package sanitize strips query-operator keys from untrusted input before it
// reaches a database filter or update document.
package sanitize

import (
	"net/url"
	"strings"
)

// OperatorPrefix marks a document key as a query operator rather than a field name.
const OperatorPrefix = "$"

// Value returns a copy of v with every operator-prefixed key removed at any depth.
// Maps and slices are rebuilt; scalars are returned as-is. The input is never modified.
func Value(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return Map(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = Value(item)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(typed))
		for i, item := range typed {
			out[i] = Map(item)
		}
		return out
	default:
		return v
	}
}

// Map sanitizes a decoded JSON object. A nil map stays nil.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for key, value := range m {
		if IsOperator(key) {
			continue
		}
		out[key] = Value(value)
	}
	return out
}

// Values drops operator-prefixed query parameter names.
func Values(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for key, vals := range values {
		if IsOperator(key) {
			continue
		}
		out[key] = append([]string(nil), vals...)
	}
	return out
}

// IsOperator reports whether key would be interpreted as a query operator.
func IsOperator(key string) bool {
	return strings.HasPrefix(key, OperatorPrefix)
}
