package retrieval

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a minimum interval between requests to the same
// domain. Reservations are taken under one lock, so concurrent callers for a
// domain are spaced out rather than released together.
type RateLimiter struct {
	mu       sync.Mutex
	cooldown time.Duration
	clock    Clock
	limiters map[string]*rate.Limiter
}

// NewRateLimiter creates a limiter allowing one request per cooldown per domain.
func NewRateLimiter(cooldown time.Duration, clock Clock) *RateLimiter {
	if clock == nil {
		clock = RealClock()
	}
	return &RateLimiter{
		cooldown: cooldown,
		clock:    clock,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to domain may be issued.
func (l *RateLimiter) Wait(ctx context.Context, domain string) error {
	if l == nil || l.cooldown <= 0 || domain == "" {
		return nil
	}

	l.mu.Lock()
	lim, ok := l.limiters[domain]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.cooldown), 1)
		l.limiters[domain] = lim
	}
	now := l.clock.Now()
	res := lim.ReserveN(now, 1)
	delay := res.DelayFrom(now)
	l.mu.Unlock()

	if delay <= 0 {
		return nil
	}
	logging.RetrievalDebug("rate limit: waiting %s before next request to %s", delay, domain)
	if err := l.clock.Sleep(ctx, delay); err != nil {
		// An abandoned slot must not push back later requests.
		l.mu.Lock()
		res.CancelAt(l.clock.Now())
		l.mu.Unlock()
		return err
	}
	return nil
}

// Domain extracts the lower-cased host of rawURL.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
