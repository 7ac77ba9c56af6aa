package retrieval

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// TruncationMarker is appended to page text cut at the length limit.
const TruncationMarker = "\n\n[...truncated...]"

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t\r\f\v]+`)
	newlineReplacer     = strings.NewReplacer("\n", " ", "\r", " ")
)

// skipped elements never contribute text.
var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"iframe": true, "svg": true, "head": true,
}

// chromeElements are dropped only when falling back to the whole document.
var chromeElements = map[string]bool{
	"nav": true, "footer": true, "header": true, "aside": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "tr": true, "table": true, "pre": true,
	"blockquote": true, "br": true, "hr": true, "dd": true, "dt": true,
}

// ExtractContent returns the readable text of page, preferring the main
// content region (main, article or role=main) and otherwise the whole body.
// An empty region falls back to the body. The text is capped at maxChars runes; ErrEmptyResult is returned when no
// text remains.
func ExtractContent(page string, maxChars int) (string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	root, isRegion := contentRoot(doc)
	text := textOf(root, !isRegion)
	if text == "" && isRegion {
		text = textOf(bodyOf(doc), true)
	}
	if text == "" {
		return "", ErrEmptyResult
	}
	return Truncate(text, maxChars), nil
}

// contentRoot picks the node to extract text from.
func contentRoot(doc *html.Node) (*html.Node, bool) {
	for _, pred := range []func(*html.Node) bool{
		func(n *html.Node) bool { return n.Data == "main" },
		func(n *html.Node) bool { return n.Data == "article" },
		func(n *html.Node) bool { return getAttr(n, "role") == "main" },
	} {
		if n := findFirst(doc, pred); n != nil {
			return n, true
		}
	}
	return bodyOf(doc), false
}

func bodyOf(doc *html.Node) *html.Node {
	if body := findFirst(doc, func(n *html.Node) bool { return n.Data == "body" }); body != nil {
		return body
	}
	return doc
}

func textOf(root *html.Node, dropChrome bool) string {
	var sb strings.Builder
	writeText(root, &sb, dropChrome, 0)
	return collapseWhitespace(sb.String())
}

func writeText(n *html.Node, sb *strings.Builder, dropChrome bool, depth int) {
	if depth > 200 {
		return
	}
	switch n.Type {
	case html.TextNode:
		sb.WriteString(newlineReplacer.Replace(n.Data))
		return
	case html.ElementNode:
		if skippedElements[n.Data] || (dropChrome && chromeElements[n.Data]) {
			return
		}
		if blockElements[n.Data] {
			sb.WriteString("\n")
		} else {
			sb.WriteString(" ")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, sb, dropChrome, depth+1)
	}
	if n.Type == html.ElementNode && blockElements[n.Data] {
		sb.WriteString("\n")
	}
}

// collapseWhitespace squeezes runs of spaces, trims every line and keeps at
// most one blank line between paragraphs.
func collapseWhitespace(s string) string {
	s = multiSpacePattern.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Truncate cuts s to maxChars runes and appends TruncationMarker when it cuts.
// maxChars <= 0 disables truncation.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:maxChars])) + TruncationMarker
}
