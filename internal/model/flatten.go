package model

import (
	"fmt"
	"sort"
	"strings"
)

// FlattenText concatenates every string value in the bundle, depth-first,
// into one searchable corpus. Nested maps and lists inside Attributes are
// walked recursively; map keys are visited in sorted order so the output is
// deterministic.
func (b EvidenceBundle) FlattenText() string {
	var parts []string
	if b.Subject != "" {
		parts = append(parts, b.Subject)
	}
	for _, s := range []string{b.Summary, b.Metrics, b.Timeline} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	parts = appendValue(parts, b.Attributes)
	parts = append(parts, b.Citations...)
	return strings.Join(parts, " ")
}

func appendValue(parts []string, v any) []string {
	switch val := v.(type) {
	case nil:
		return parts
	case string:
		if val != "" {
			parts = append(parts, val)
		}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = appendValue(parts, val[k])
		}
	case []any:
		for _, item := range val {
			parts = appendValue(parts, item)
		}
	case []string:
		for _, item := range val {
			if item != "" {
				parts = append(parts, item)
			}
		}
	default:
		parts = append(parts, fmt.Sprintf("%v", val))
	}
	return parts
}
