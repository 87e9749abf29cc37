// Package reconcile compares the same property across providers field by field.
// Everything here is pure: it works on a snapshot of raw records and never does I/O.
package reconcile

import (
	"strconv"
	"strings"
)

// Resolve walks a dotted path through a provider payload.
// Missing segments yield (nil, false); absence is never an error.
func Resolve(tree map[string]any, path string) (any, bool) {
	if tree == nil || strings.TrimSpace(path) == "" {
		return nil, false
	}

	var cur any = tree
	for _, part := range strings.Split(path, ".") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, false
		}

		switch node := cur.(type) {
		case map[string]any:
			v, ok := ResolveKey(node, part)
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// ResolveKey looks a key up in one level of the payload: exact match first,
// then a case-insensitive scan (providers disagree on casing, e.g. Images/images).
// When several keys fold to the same name the lexically smallest wins.
func ResolveKey(node map[string]any, key string) (any, bool) {
	if v, ok := node[key]; ok {
		return v, true
	}

	found := ""
	matched := false
	for k := range node {
		if !strings.EqualFold(k, key) {
			continue
		}
		if !matched || k < found {
			found = k
			matched = true
		}
	}
	if !matched {
		return nil, false
	}
	return node[found], true
}

// IsPresent reports whether a resolved value counts as data: not nil and not "".
func IsPresent(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok && s == "" {
		return false
	}
	return true
}
