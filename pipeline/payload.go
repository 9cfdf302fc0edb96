package pipeline

import (
	"regexp"
	"strings"
)

var (
	htmlTagPattern  = regexp.MustCompile(`(?i)<html[\s>]`)
	htmlBodyPattern = regexp.MustCompile(`(?is)<body[^>]*>(.*)</body>`)
)

// LooksLikeHTML reports whether a rendered payload is an HTML document.
// Sinks use it to pick content types and file extensions.
func LooksLikeHTML(payload string) bool {
	return htmlTagPattern.MatchString(payload)
}

// HTMLBody returns the markup between <body> and </body>, or payload
// unchanged when there is no body element.
func HTMLBody(payload string) string {
	m := htmlBodyPattern.FindStringSubmatch(payload)
	if m == nil {
		return payload
	}
	return strings.TrimSpace(m[1])
}
