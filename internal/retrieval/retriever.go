package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"

	"github.com/cenkalti/backoff/v4"
)

// Config holds retriever defaults.
type Config struct {
	MaxRetries      int
	BackoffBase     time.Duration
	ScrapeCooldown  time.Duration
	MaxContentChars int
	NumResults      int
	CacheTTL        time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BackoffBase:     time.Second,
		ScrapeCooldown:  5 * time.Second,
		MaxContentChars: 5000,
		NumResults:      5,
		CacheTTL:        24 * time.Hour,
	}
}

// Retriever runs searches and scrapes through the cache, the primary
// strategy and the fallback strategy. It owns its rate-limit state; one
// Retriever may serve many concurrent conversations.
type Retriever struct {
	cfg      Config
	cache    Cache
	primary  Strategy
	fallback Strategy
	engine   Engine
	limiter  *RateLimiter
	clock    Clock
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithClock injects the clock used for backoff and rate limiting.
func WithClock(c Clock) Option {
	return func(r *Retriever) { r.clock = c }
}

// WithEngine selects the search engine.
func WithEngine(e Engine) Option {
	return func(r *Retriever) { r.engine = e }
}

// New creates a Retriever. primary may be nil, in which case every request
// goes straight to the fallback.
func New(cfg Config, cache Cache, primary, fallback Strategy, opts ...Option) *Retriever {
	def := DefaultConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.NumResults <= 0 {
		cfg.NumResults = def.NumResults
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	r := &Retriever{
		cfg:      cfg,
		cache:    cache,
		primary:  primary,
		fallback: fallback,
		engine:   GoogleEngine{},
		clock:    RealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.limiter = NewRateLimiter(cfg.ScrapeCooldown, r.clock)
	return r
}

// Search returns up to numResults hits for query. numResults <= 0 uses the
// configured default.
func (r *Retriever) Search(ctx context.Context, query string, numResults int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidTarget)
	}
	if numResults <= 0 {
		numResults = r.cfg.NumResults
	}
	req := Request{
		Kind:    KindSearch,
		Target:  query,
		Options: Options{NumResults: numResults, MaxRetries: r.cfg.MaxRetries, BackoffBase: r.cfg.BackoffBase},
	}

	key := req.CacheKey()
	if cached, ok := r.cacheGet(key); ok {
		var results []SearchResult
		if err := json.Unmarshal([]byte(cached), &results); err == nil && len(results) > 0 {
			logging.Retrieval("returning cached result for query: %s", query)
			return results, nil
		}
		logging.Get(logging.CategoryRetrieval).Warn("ignoring undecodable cached search for %q", query)
	}

	var results []SearchResult
	parse := func(page string) error {
		parsed, err := r.engine.Parse(page, numResults)
		if err != nil {
			return err
		}
		if len(parsed) == 0 {
			return ErrEmptyResult
		}
		results = parsed
		return nil
	}

	target := r.engine.SearchURL(query, numResults)
	if err := r.retrieve(ctx, req, target, r.engine.WaitSelector(), parse); err != nil {
		return nil, err
	}

	if data, err := json.Marshal(results); err == nil {
		r.cacheSet(key, string(data))
	}
	return results, nil
}

// Scrape returns the readable text of the page at rawURL, truncated to the
// configured maximum.
func (r *Retriever) Scrape(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTarget, rawURL)
	}
	req := Request{
		Kind:    KindScrape,
		Target:  rawURL,
		Options: Options{MaxRetries: r.cfg.MaxRetries, BackoffBase: r.cfg.BackoffBase},
	}

	key := req.CacheKey()
	if cached, ok := r.cacheGet(key); ok && cached != "" {
		logging.Retrieval("returning cached result for URL: %s", rawURL)
		return cached, nil
	}

	var text string
	parse := func(page string) error {
		extracted, err := ExtractContent(page, r.cfg.MaxContentChars)
		if err != nil {
			return err
		}
		text = extracted
		return nil
	}

	if err := r.retrieve(ctx, req, rawURL, "body", parse); err != nil {
		return "", err
	}
	r.cacheSet(key, text)
	return text, nil
}

// retrieve runs the primary strategy with retries and then, if it never
// produced a parseable result, the fallback strategy once.
func (r *Retriever) retrieve(ctx context.Context, req Request, target, waitSelector string, parse func(string) error) error {
	if r.primary != nil {
		err := r.runPrimary(ctx, req, target, waitSelector, parse)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logging.Get(logging.CategoryRetrieval).Warn("%s: all %s attempts failed for %q, falling back to %s: %v",
			req.Kind, r.primary.Name(), req.Target, r.fallbackName(), err)
		logging.Audit().Event(logging.AuditRetrievalFallback, req.Target, false, 0, err)
	}

	if r.fallback == nil {
		return fmt.Errorf("%s %q: no fallback strategy", req.Kind, req.Target)
	}
	if err := r.rateLimit(ctx, req, target); err != nil {
		return err
	}
	page, err := r.fallback.Fetch(ctx, target, waitSelector)
	if err != nil {
		return &TransientError{Strategy: r.fallback.Name(), Attempt: 1, Err: err}
	}
	if err := parse(page); err != nil {
		logging.Get(logging.CategoryRetrieval).Warn("%s: %s returned nothing usable for %q: %v", req.Kind, r.fallback.Name(), req.Target, err)
		if errors.Is(err, ErrEmptyResult) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrEmptyResult, err)
	}
	logging.Retrieval("%s successful via %s for %q", req.Kind, r.fallback.Name(), req.Target)
	return nil
}

// runPrimary makes up to MaxRetries attempts, sleeping base*2^attempt between
// failed ones. Parse failures and empty results end the loop immediately.
func (r *Retriever) runPrimary(ctx context.Context, req Request, target, waitSelector string, parse func(string) error) error {
	attempt := 0
	op := func() error {
		attempt++
		if err := r.rateLimit(ctx, req, target); err != nil {
			return backoff.Permanent(err)
		}
		page, err := r.primary.Fetch(ctx, target, waitSelector)
		if err != nil {
			return &TransientError{Strategy: r.primary.Name(), Attempt: attempt, Err: err}
		}
		if err := parse(page); err != nil {
			logging.Get(logging.CategoryRetrieval).Warn("%s: %s returned no results for %q", req.Kind, r.primary.Name(), req.Target)
			return backoff.Permanent(err)
		}
		logging.Retrieval("%s successful via %s for %q (attempt %d)", req.Kind, r.primary.Name(), req.Target, attempt)
		return nil
	}
	notify := func(err error, next time.Duration) {
		logging.Get(logging.CategoryRetrieval).Warn("%s failed (attempt %d/%d): %v. Retrying in %s",
			r.primary.Name(), attempt, req.Options.MaxRetries, err, next)
	}

	return backoff.RetryNotifyWithTimer(op, r.newBackOff(ctx, req.Options), notify, &clockTimer{ctx: ctx, clock: r.clock})
}

// newBackOff returns a deterministic schedule of base, 2*base, 4*base, ...
// allowing MaxRetries attempts in total.
func (r *Retriever) newBackOff(ctx context.Context, opts Options) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = opts.BackoffBase
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = opts.BackoffBase << 16
	exp.MaxElapsedTime = 0
	retries := opts.MaxRetries - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

func (r *Retriever) rateLimit(ctx context.Context, req Request, target string) error {
	if req.Kind != KindScrape {
		return nil
	}
	return r.limiter.Wait(ctx, Domain(target))
}

func (r *Retriever) fallbackName() string {
	if r.fallback == nil {
		return "nothing"
	}
	return r.fallback.Name()
}

func (r *Retriever) cacheGet(key string) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	v, ok := r.cache.Get(key)
	if ok {
		logging.Audit().Event(logging.AuditRetrievalHit, key, true, 0, nil)
	}
	return v, ok
}

func (r *Retriever) cacheSet(key, value string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(key, value, r.cfg.CacheTTL); err != nil {
		logging.Get(logging.CategoryRetrieval).Warn("failed to cache %q: %v", key, err)
	}
}

// clockTimer adapts Clock to backoff.Timer. Start sleeps synchronously on the
// clock and then makes the channel ready, so backoff waits go through the
// injected clock.
type clockTimer struct {
	ctx   context.Context
	clock Clock
	c     chan time.Time
}

func (t *clockTimer) Start(d time.Duration) {
	t.c = make(chan time.Time, 1)
	if err := t.clock.Sleep(t.ctx, d); err != nil {
		return
	}
	t.c <- t.clock.Now()
}

func (t *clockTimer) Stop() {}

func (t *clockTimer) C() <-chan time.Time { return t.c }
