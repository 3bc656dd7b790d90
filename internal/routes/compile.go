package routes

import (
	"fmt"
	"regexp"
	"strings"
)

// matcher is a compiled path pattern: an anchored regexp plus the capture
// names in declaration order. Paths with no captures skip the regexp and
// match by string equality.
type matcher struct {
	raw        string
	pattern    string
	re         *regexp.Regexp
	paramNames []string
	literal    bool
}

// compilePath compiles a manifest path into a matcher. Literal segments
// are escaped, ":name" segments capture a single path segment, and "*"
// captures greedily as "splat". At most one splat is allowed.
func compilePath(path string) (*matcher, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("path must start with /: %q", path)
	}

	var (
		b      strings.Builder
		params []string
		splats int
	)
	b.WriteString("^")

	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if path == "/" {
		segments = nil
	}
	for _, seg := range segments {
		b.WriteString("/")
		switch {
		case strings.HasPrefix(seg, ":"):
			name := seg[1:]
			if name == "" || !paramNameRe.MatchString(name) {
				return nil, fmt.Errorf("invalid parameter segment %q in %q", seg, path)
			}
			params = append(params, name)
			b.WriteString("([^/]+)")
		case seg == "*":
			splats++
			if splats > 1 {
				return nil, fmt.Errorf("multiple splat segments in %q", path)
			}
			params = append(params, "splat")
			b.WriteString("(.*)")
		default:
			b.WriteString(regexp.QuoteMeta(seg))
		}
	}
	if path == "/" {
		b.WriteString("/")
	}
	b.WriteString("$")

	m := &matcher{
		raw:        path,
		pattern:    b.String(),
		paramNames: params,
		literal:    len(params) == 0,
	}

	re, err := regexp.Compile(m.pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", path, err)
	}
	m.re = re
	return m, nil
}

var paramNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// match matches a normalized path, extracting parameters by declaration
// order. The regexp is fully anchored; partial matches never succeed.
func (m *matcher) match(path string) (map[string]string, bool) {
	if m.literal {
		return nil, path == m.raw
	}
	groups := m.re.FindStringSubmatch(path)
	if groups == nil {
		return nil, false
	}
	params := make(map[string]string, len(m.paramNames))
	for i, name := range m.paramNames {
		params[name] = groups[i+1]
	}
	return params, true
}
