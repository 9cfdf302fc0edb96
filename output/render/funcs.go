package render

import (
	"fmt"
	"net/url"
	"strings"
)

// funcs is shared by both renderers. html/template escapes their results.
var funcs = map[string]any{
	"add":   func(a, b int) int { return a + b },
	"join":  strings.Join,
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"score": func(f float64) string { return fmt.Sprintf("%.2f", f) },
	"truncate": func(n int, s string) string {
		runes := []rune(s)
		if len(runes) <= n {
			return s
		}
		return string(runes[:n]) + "..."
	},
	"hostname": func(raw string) string {
		u, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		return strings.TrimPrefix(u.Hostname(), "www.")
	},
}
