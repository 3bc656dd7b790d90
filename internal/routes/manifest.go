package routes

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// LoadError describes one skipped manifest line. Load errors are not fatal
// to startup; the line is logged and skipped.
type LoadError struct {
	Line    int
	Text    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("manifest line %d: %s", e.Line, e.Message)
}

// TargetError is a fatal target-resolution failure: the target name failed
// the safety contract. Unlike LoadError it aborts startup.
type TargetError struct {
	Line   int
	Target string
	Reason string
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("manifest line %d: unsafe target %q: %s", e.Line, e.Target, e.Reason)
}

// verbs are the accepted manifest verbs.
var verbs = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true,
	"DELETE": true, "PATCH": true, "OPTIONS": true,
}

// wordStart matches lines that begin a route definition; anything else
// (comments, blank lines, prose) is ignored.
var wordStart = regexp.MustCompile(`^\w`)

// targetNameRe is the safety contract for resolved target names.
var targetNameRe = regexp.MustCompile(`^[A-Z][A-Za-z0-9_]*(::[A-Z][A-Za-z0-9_]*)*$`)

// deniedTargets are system and reflection-capable names that must never be
// resolvable from an untrusted route file.
var deniedTargets = map[string]bool{
	"Process": true, "File": true, "Dir": true, "IO": true,
	"Kernel": true, "Object": true, "Class": true, "Module": true,
	"Thread": true, "Fiber": true, "Signal": true, "Marshal": true,
	"ObjectSpace": true, "GC": true, "Binding": true, "Method": true,
	"Proc": true, "Exec": true, "System": true, "Eval": true,
	"Syscall": true,
}

// LoadFile parses a manifest file from disk.
func LoadFile(path string) ([]*Route, []*LoadError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()
	return ParseManifest(f)
}

// ParseManifest compiles a route manifest. Malformed lines are collected
// as LoadErrors and skipped; an unsafe target name returns a TargetError
// and aborts the load.
func ParseManifest(r io.Reader) ([]*Route, []*LoadError, error) {
	var (
		out      []*Route
		loadErrs []*LoadError
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !wordStart.MatchString(line) {
			continue
		}

		route, err := parseLine(line, lineNo)
		if err != nil {
			if te, ok := err.(*TargetError); ok {
				return nil, loadErrs, te
			}
			loadErrs = append(loadErrs, err.(*LoadError))
			continue
		}
		out = append(out, route)
	}
	if err := scanner.Err(); err != nil {
		return nil, loadErrs, fmt.Errorf("reading manifest: %w", err)
	}

	return out, loadErrs, nil
}

// parseLine compiles one manifest line.
func parseLine(line string, lineNo int) (*Route, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, &LoadError{Line: lineNo, Text: line, Message: "expected VERB PATH TARGET"}
	}

	verb := strings.ToUpper(fields[0])
	if !verbs[verb] {
		return nil, &LoadError{Line: lineNo, Text: line, Message: fmt.Sprintf("unknown verb %q", fields[0])}
	}

	path := fields[1]
	matcher, err := compilePath(path)
	if err != nil {
		return nil, &LoadError{Line: lineNo, Text: line, Message: err.Error()}
	}

	target, err := parseTarget(fields[2], lineNo)
	if err != nil {
		return nil, err
	}

	options := make(map[string]string)
	for _, opt := range fields[3:] {
		key, value, ok := strings.Cut(opt, "=")
		if !ok || key == "" {
			return nil, &LoadError{Line: lineNo, Text: line, Message: fmt.Sprintf("malformed option %q", opt)}
		}
		options[key] = value
	}

	return &Route{
		Verb:    verb,
		Path:    path,
		Target:  target,
		options: options,
		matcher: matcher,
	}, nil
}

// parseTarget splits the definition token and enforces the target safety
// contract. "." marks a class-level callable, "#" an instance-level
// callable, and a bare capitalized name a logic unit.
func parseTarget(def string, lineNo int) (Target, error) {
	var t Target
	switch {
	case strings.Contains(def, "."):
		name, method, _ := strings.Cut(def, ".")
		t = Target{Kind: ClassMethod, Name: name, Method: method}
	case strings.Contains(def, "#"):
		name, method, _ := strings.Cut(def, "#")
		t = Target{Kind: InstanceMethod, Name: name, Method: method}
	default:
		t = Target{Kind: LogicUnit, Name: def}
	}

	if t.Kind != LogicUnit && t.Method == "" {
		return t, &LoadError{Line: lineNo, Text: def, Message: "missing method name"}
	}

	if !targetNameRe.MatchString(t.Name) {
		return t, &TargetError{Line: lineNo, Target: t.Name, Reason: "name does not match the allowed pattern"}
	}
	for _, part := range strings.Split(t.Name, "::") {
		if deniedTargets[part] {
			return t, &TargetError{Line: lineNo, Target: t.Name, Reason: "denylisted system name"}
		}
	}

	return t, nil
}
