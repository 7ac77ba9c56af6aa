package retrieval

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 2 << 20

// Strategy fetches the raw HTML of a page.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, url, waitSelector string) (string, error)
}

// Renderer renders a URL in a real browser; *browser.Manager implements it.
type Renderer interface {
	Render(ctx context.Context, url, waitSelector string) (string, error)
}

// BrowserStrategy fetches pages through a rendering browser so that
// script-built content is present.
type BrowserStrategy struct {
	Renderer Renderer
}

// Name implements Strategy.
func (s *BrowserStrategy) Name() string { return "browser" }

// Fetch implements Strategy.
func (s *BrowserStrategy) Fetch(ctx context.Context, url, waitSelector string) (string, error) {
	if s.Renderer == nil {
		return "", fmt.Errorf("browser strategy has no renderer")
	}
	return s.Renderer.Render(ctx, url, waitSelector)
}

// HTTPStrategy fetches pages with a single unauthenticated GET, presenting a
// desktop browser user agent.
type HTTPStrategy struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPStrategy creates an HTTPStrategy with its own client and timeout.
func NewHTTPStrategy(userAgent string, timeout time.Duration) *HTTPStrategy {
	return &HTTPStrategy{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: userAgent,
	}
}

// Name implements Strategy.
func (s *HTTPStrategy) Name() string { return "http" }

// Fetch implements Strategy. waitSelector is ignored: nothing executes.
func (s *HTTPStrategy) Fetch(ctx context.Context, url, _ string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	logging.RetrievalDebug("http fetched %s (%d bytes)", url, len(body))
	return string(body), nil
}
