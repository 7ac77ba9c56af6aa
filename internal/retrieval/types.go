// Package retrieval fetches search results and page text for the model.
// A rendered-browser strategy is tried first with bounded retries and
// exponential backoff; a direct HTTP strategy is the single fallback.
// Successful results are cached, empty ones never are.
package retrieval

import (
	"context"
	"fmt"
	"time"
)

// Kind distinguishes the two retrieval operations.
type Kind string

const (
	KindSearch Kind = "search"
	KindScrape Kind = "scrape"
)

// Options tune one retrieval.
type Options struct {
	NumResults  int
	MaxRetries  int
	BackoffBase time.Duration
}

// Request is one retrieval, built per call.
type Request struct {
	Kind    Kind
	Target  string // query for search, URL for scrape
	Options Options
}

// CacheKey derives the cache key for the request.
func (r Request) CacheKey() string {
	if r.Kind == KindSearch {
		return SearchKey(r.Target, r.Options.NumResults)
	}
	return ScrapeKey(r.Target)
}

// SearchKey is the cache key of a search.
func SearchKey(query string, numResults int) string {
	return fmt.Sprintf("search_%s_%d", query, numResults)
}

// ScrapeKey is the cache key of a scrape.
func ScrapeKey(url string) string {
	return "scrape_" + url
}

// SearchResult is one organic search hit.
type SearchResult struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
}

// Cache is the storage the retriever reads through.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration) error
}

// Clock abstracts time so backoff and rate-limit waits can be simulated.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }
