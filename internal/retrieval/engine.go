package retrieval

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Engine knows how to query one search engine and read its result page.
type Engine interface {
	Name() string
	SearchURL(query string, numResults int) string
	// WaitSelector is the element a rendering browser waits for before reading the page.
	WaitSelector() string
	Parse(page string, numResults int) ([]SearchResult, error)
}

// NewEngine returns the engine registered under name.
func NewEngine(name string) (Engine, error) {
	switch strings.ToLower(name) {
	case "", "google":
		return GoogleEngine{}, nil
	case "duckduckgo", "ddg":
		return DuckDuckGoEngine{}, nil
	default:
		return nil, fmt.Errorf("unknown search engine %q", name)
	}
}

// GoogleEngine parses Google result pages: each organic hit is a div.g holding
// an h3 title, a link and a div.VwiC3b snippet.
type GoogleEngine struct{}

// Name implements Engine.
func (GoogleEngine) Name() string { return "google" }

// SearchURL implements Engine.
func (GoogleEngine) SearchURL(query string, numResults int) string {
	return fmt.Sprintf("https://www.google.com/search?q=%s&num=%d", url.QueryEscape(query), numResults)
}

// WaitSelector implements Engine.
func (GoogleEngine) WaitSelector() string { return "div.g" }

// Parse implements Engine. Hits missing a title, link or snippet are skipped.
func (GoogleEngine) Parse(page string, numResults int) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var results []SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= numResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "g") {
			title := findFirst(n, func(c *html.Node) bool { return c.Data == "h3" })
			link := findFirst(n, func(c *html.Node) bool { return c.Data == "a" && getAttr(c, "href") != "" })
			desc := findFirst(n, func(c *html.Node) bool { return c.Data == "div" && hasClass(c, "VwiC3b") })
			if title != nil && link != nil && desc != nil {
				results = append(results, SearchResult{
					Title:       textContent(title),
					Link:        cleanGoogleLink(getAttr(link, "href")),
					Description: textContent(desc),
				})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

// cleanGoogleLink unwraps the /url?q= redirect used by the script-free page.
func cleanGoogleLink(href string) string {
	if !strings.HasPrefix(href, "/url?") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if q := u.Query().Get("q"); q != "" {
		return q
	}
	return href
}

// DuckDuckGoEngine parses the script-free DuckDuckGo HTML endpoint.
type DuckDuckGoEngine struct{}

// Name implements Engine.
func (DuckDuckGoEngine) Name() string { return "duckduckgo" }

// SearchURL implements Engine.
func (DuckDuckGoEngine) SearchURL(query string, _ int) string {
	return fmt.Sprintf("https://html.duckduckgo.com/html/?q=%s", url.QueryEscape(query))
}

// WaitSelector implements Engine.
func (DuckDuckGoEngine) WaitSelector() string { return "div.result" }

// Parse implements Engine.
func (DuckDuckGoEngine) Parse(page string, numResults int) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var results []SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= numResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") && hasClass(n, "results_links") {
			if r := extractDuckDuckGoResult(n); r.Link != "" && r.Title != "" {
				results = append(results, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func extractDuckDuckGoResult(n *html.Node) SearchResult {
	var result SearchResult
	if a := findFirst(n, func(c *html.Node) bool { return c.Data == "a" && hasClass(c, "result__a") }); a != nil {
		result.Link = getAttr(a, "href")
		result.Title = textContent(a)
	}
	if s := findFirst(n, func(c *html.Node) bool { return hasClass(c, "result__snippet") }); s != nil {
		result.Description = textContent(s)
	}

	// Unwrap the DuckDuckGo redirect
	if strings.HasPrefix(result.Link, "//duckduckgo.com/l/?uddg=") {
		if decoded, err := url.QueryUnescape(strings.TrimPrefix(result.Link, "//duckduckgo.com/l/?uddg=")); err == nil {
			if idx := strings.Index(decoded, "&"); idx > 0 {
				decoded = decoded[:idx]
			}
			result.Link = decoded
		}
	}
	return result
}

// hasClass reports whether n's class attribute contains the token class.
func hasClass(n *html.Node, class string) bool {
	for _, tok := range strings.Fields(getAttr(n, "class")) {
		if tok == class {
			return true
		}
	}
	return false
}

// findFirst returns the first element below n (depth-first) matching pred.
func findFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && pred(c) {
			return c
		}
		if found := findFirst(c, pred); found != nil {
			return found
		}
	}
	return nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// textContent returns the whitespace-normalized text below n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
