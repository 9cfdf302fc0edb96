package contentfetcher

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

// parse builds the DOM. x/net/html recovers from malformed markup, so an
// error here means the reader itself failed.
func parse(body []byte) (*html.Node, error) {
	return html.Parse(bytes.NewReader(body))
}

// extractLinks returns every anchor href resolved against base, de-duplicated
// in document order. javascript: pseudo-links are dropped.
func extractLinks(doc *html.Node, base *url.URL) []string {
	seen := make(map[string]bool)
	links := []string{}

	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "a" {
			return true
		}
		href := strings.TrimSpace(attr(n, "href"))
		if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref).String()
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
		return true
	})
	return links
}

// extractText returns the document's visible text with script and style
// removed. Each line is trimmed, split on runs of two spaces, and the
// non-empty pieces are joined with single spaces.
func extractText(doc *html.Node) string {
	var raw strings.Builder
	walk(doc, func(n *html.Node) bool {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return false
			}
		case html.TextNode:
			raw.WriteString(n.Data)
		}
		return true
	})

	var chunks []string
	for _, line := range strings.Split(raw.String(), "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if p := strings.TrimSpace(phrase); p != "" {
				chunks = append(chunks, p)
			}
		}
	}
	return strings.Join(chunks, " ")
}

// extractMarkdown converts the main content area (main, article or
// [role=main], else the body without navigation chrome) to markdown.
func extractMarkdown(doc *html.Node) (string, error) {
	removeAll(doc, func(n *html.Node) bool {
		return n.Data == "script" || n.Data == "style" || n.Data == "noscript"
	})

	root := findFirst(doc, func(n *html.Node) bool {
		return n.Data == "main" || n.Data == "article" || attr(n, "role") == "main"
	})
	if root == nil {
		removeAll(doc, func(n *html.Node) bool {
			switch n.Data {
			case "nav", "header", "footer", "aside", "iframe", "object", "embed", "form", "button":
				return true
			}
			return hasClass(n, "nav", "navbar", "sidebar", "menu", "footer", "advertisement", "share", "comments")
		})
		root = findFirst(doc, func(n *html.Node) bool { return n.Data == "body" })
	}
	if root == nil {
		root = doc
	}

	var buf strings.Builder
	if err := html.Render(&buf, root); err != nil {
		return "", err
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	markdown, err := converter.ConvertString(buf.String())
	if err != nil {
		return "", err
	}

	lines := strings.Split(markdown, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(excessiveLinesRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")), nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// walk visits nodes depth-first; returning false skips a node's children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func findFirst(doc *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(doc, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func removeAll(doc *html.Node, match func(*html.Node) bool) {
	var doomed []*html.Node
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && match(n) {
			doomed = append(doomed, n)
			return false
		}
		return true
	})
	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, classes ...string) bool {
	for _, c := range strings.Fields(strings.ToLower(attr(n, "class"))) {
		for _, want := range classes {
			if c == want {
				return true
			}
		}
	}
	return false
}
