package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	// StrictPolicy for user-generated content
	StrictPolicy *bluemonday.Policy
	// UGCPolicy for rich text content
	UGCPolicy *bluemonday.Policy
)

func init() {
	// Initialize strict policy
	StrictPolicy = bluemonday.StrictPolicy()

	// Initialize UGC (User Generated Content) policy
	UGCPolicy = bluemonday.UGCPolicy()

	// Allow additional safe elements for message bodies
	UGCPolicy.AllowElements("p", "br", "div", "span", "h1", "h2", "h3", "h4", "h5", "h6")
	UGCPolicy.AllowElements("strong", "em", "u", "s", "code", "pre")
	UGCPolicy.AllowElements("ul", "ol", "li")
	UGCPolicy.AllowElements("blockquote")
	UGCPolicy.AllowElements("a", "img")
	UGCPolicy.AllowElements("table", "thead", "tbody", "tr", "th", "td")

	// Allow safe attributes
	UGCPolicy.AllowAttrs("href").OnElements("a")
	UGCPolicy.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	UGCPolicy.AllowAttrs("class", "id").Globally()
	UGCPolicy.AllowAttrs("style").OnElements("span", "div", "p")

	// Require URLs to be safe
	UGCPolicy.RequireParseableURLs(true)
	UGCPolicy.AllowURLSchemes("http", "https", "mailto")
}

// SanitizeHTML sanitizes HTML content using the UGC policy
func SanitizeHTML(content string) string {
	return UGCPolicy.Sanitize(content)
}

// SanitizeHTMLStrict sanitizes HTML content using the strict policy (removes all HTML)
func SanitizeHTMLStrict(content string) string {
	return StrictPolicy.Sanitize(content)
}

// HTMLToText extracts a readable plain-text rendition of an HTML body for
// the multipart/alternative text part. Block-level elements become line
// breaks. Content that does not parse is returned stripped of tags.
func HTMLToText(content string) string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return StrictPolicy.Sanitize(content)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "head":
				return
			case "br":
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "li", "tr", "blockquote", "h1", "h2", "h3", "h4", "h5", "h6":
				b.WriteString("\n")
			}
		}
	}
	walk(doc)

	// Collapse runs of blank lines left by nested block elements
	lines := strings.Split(b.String(), "\n")
	var out []string
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, trimmed)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
