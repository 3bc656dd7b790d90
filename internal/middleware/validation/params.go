package validation

import (
	"net/url"
	"strings"
)

// ParseNested converts flat form values with bracket notation into a
// nested mapping: "user[address][city]=x" nests two maps deep and
// "tags[]=a&tags[]=b" accumulates a slice.
func ParseNested(values url.Values) map[string]interface{} {
	out := make(map[string]interface{})
	for key, vals := range values {
		for _, val := range vals {
			assign(out, splitKey(key), val)
		}
	}
	return out
}

// splitKey breaks "a[b][c][]" into ["a", "b", "c", ""].
func splitKey(key string) []string {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return []string{key}
	}
	segments := []string{key[:open]}
	rest := key[open:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			// Trailing garbage after a bracket group. Treat the whole
			// remainder as one literal segment.
			segments = append(segments, rest)
			break
		}
		close := strings.IndexByte(rest, ']')
		if close < 0 {
			segments = append(segments, rest[1:])
			break
		}
		segments = append(segments, rest[1:close])
		rest = rest[close+1:]
	}
	return segments
}

func assign(m map[string]interface{}, segments []string, val string) {
	head := segments[0]
	if len(segments) == 1 {
		m[head] = val
		return
	}

	next := segments[1]
	if next == "" && len(segments) == 2 {
		// Array leaf: "tags[]".
		slice, _ := m[head].([]interface{})
		m[head] = append(slice, val)
		return
	}

	child, ok := m[head].(map[string]interface{})
	if !ok {
		child = make(map[string]interface{})
		m[head] = child
	}
	assign(child, segments[1:], val)
}
