package chat

import (
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"'()\[\]{}]+`)

// ExtractURLs returns the distinct http(s) URLs in text in order of first
// appearance. Trailing sentence punctuation is not part of a URL.
func ExtractURLs(text string) []string {
	var urls []string
	seen := make(map[string]bool)
	for _, m := range urlPattern.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".,;:!?")
		if strings.HasSuffix(m, "://") || seen[m] {
			continue
		}
		seen[m] = true
		urls = append(urls, m)
	}
	return urls
}
