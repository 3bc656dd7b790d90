package validation

import "regexp"

// Injection heuristics are a curated reject-list. A match always
// rejects the request; matched values are never sanitized into
// acceptability.

var xssPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script\b`),
	regexp.MustCompile(`(?i)<\s*/?\s*(iframe|object|embed|applet)\b`),
	regexp.MustCompile(`(?i)\bon(error|load|click|mouseover|mouseout|focus|blur|submit|change|keydown|keyup)\s*=`),
	regexp.MustCompile(`(?i)(javascript|vbscript)\s*:`),
	regexp.MustCompile(`(?i)data\s*:\s*text/html`),
	regexp.MustCompile(`(?i)expression\s*\(`),
	regexp.MustCompile(`(?i)<\s*(img|svg|body|input|form|link|meta)\b[^>]*\bon\w+\s*=`),
}

var sqliPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunion\b[\s\S]{0,40}\bselect\b`),
	regexp.MustCompile(`(?i)\b(select|insert|update|delete|drop|truncate|alter)\b[\s\S]{0,60}\b(from|into|table|set|where)\b`),
	regexp.MustCompile(`(?i)['"]\s*(or|and)\s+['"]?[\w]+['"]?\s*=\s*['"]?[\w]+`),
	regexp.MustCompile(`(?i)\b(or|and)\b\s+\d+\s*=\s*\d+`),
	regexp.MustCompile(`(?i)(;|\s)--(\s|$)`),
	regexp.MustCompile(`(?i)/\*[\s\S]*?\*/`),
	regexp.MustCompile(`(?i)\b(sleep|benchmark|load_file|updatexml|extractvalue)\s*\(`),
	regexp.MustCompile(`(?i)\bwaitfor\s+delay\b`),
	regexp.MustCompile(`(?i)\bexec(\s|\()+(s|x)p\w+`),
}

// injectionReason classifies a scalar value, returning "" when clean.
func injectionReason(value string) string {
	for _, re := range xssPatterns {
		if re.MatchString(value) {
			return "xss"
		}
	}
	for _, re := range sqliPatterns {
		if re.MatchString(value) {
			return "sqli"
		}
	}
	return ""
}
