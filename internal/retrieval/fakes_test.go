package retrieval

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeClock advances only when something sleeps on it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	frozen bool // record sleeps without advancing
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if !c.frozen {
		c.now = c.now.Add(d)
	}
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// scriptedStrategy replays one response per call, repeating the last one.
type scriptedStrategy struct {
	name  string
	clock Clock

	mu      sync.Mutex
	replies []reply
	calls   []call
}

type reply struct {
	page string
	err  error
}

type call struct {
	url      string
	selector string
	at       time.Time
}

func (s *scriptedStrategy) Name() string { return s.name }

func (s *scriptedStrategy) Fetch(_ context.Context, url, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := call{url: url, selector: selector}
	if s.clock != nil {
		c.at = s.clock.Now()
	}
	s.calls = append(s.calls, c)
	if len(s.replies) == 0 {
		return "", fmt.Errorf("%s: no scripted reply", s.name)
	}
	r := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return r.page, r.err
}

func (s *scriptedStrategy) Calls() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

type memCache struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memCache) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *memCache) Set(key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func googleHit(title, link, desc string) string {
	return fmt.Sprintf(`<div class="g"><div><a href="%s"><h3>%s</h3></a></div><div class="VwiC3b">%s</div></div>`, link, title, desc)
}

func googlePage(hits ...string) string {
	page := "<html><body><div id=\"search\">"
	for _, h := range hits {
		page += h
	}
	return page + "</div></body></html>"
}
