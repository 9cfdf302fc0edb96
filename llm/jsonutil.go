package llm

import (
	"regexp"
	"strings"
)

var (
	// jsonArrayBlockPattern matches a JSON array inside a markdown code fence.
	jsonArrayBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\[.*\\])\\s*```")
	// jsonArrayPattern is the greedy fallback for a bare array.
	jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSONArray pulls a JSON array out of a model reply that may wrap it in
// prose or a code fence. Line comments and trailing commas are removed.
// Returns "" when no array is present.
func ExtractJSONArray(content string) string {
	if m := jsonArrayBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		return cleanJSON(m[1])
	}
	if m := jsonArrayPattern.FindString(content); m != "" {
		return cleanJSON(m)
	}
	return ""
}

func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return trailingCommaPattern.ReplaceAllString(strings.Join(lines, "\n"), "$1")
}

// stripLineComment removes a trailing // comment that is outside any string literal.
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	inString, escaped := false, false
	for i := 0; i < len(line); i++ {
		switch ch := line[i]; {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
