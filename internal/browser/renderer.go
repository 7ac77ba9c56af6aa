// Package browser renders pages in a headless Chrome driven over the
// DevTools protocol (rod). One browser process is shared; every render gets
// its own incognito context and page which are torn down before returning.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// ErrClosed is returned by Render after Close.
var ErrClosed = errors.New("browser manager closed")

// Config holds browser configuration.
type Config struct {
	DebuggerURL       string
	Bin               string
	Flags             []string // extra chrome flags, e.g. "--disable-gpu" or "lang=en-US"
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	WaitTimeout       time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		NavigationTimeout: 30 * time.Second,
		WaitTimeout:       10 * time.Second,
	}
}

func (c Config) navigationTimeout() time.Duration {
	if c.NavigationTimeout <= 0 {
		return 30 * time.Second
	}
	return c.NavigationTimeout
}

func (c Config) waitTimeout() time.Duration {
	if c.WaitTimeout <= 0 {
		return 10 * time.Second
	}
	return c.WaitTimeout
}

// Manager owns a lazily started browser connection.
type Manager struct {
	mu         sync.RWMutex
	cfg        Config
	driver     driver
	browser    *rod.Browser
	launcher   *launcher.Launcher
	controlURL string
	closed     bool
}

// NewManager creates a manager. Chrome is not started until the first Render.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, driver: rodDriver{}}
}

// driver is the process-level Chrome plumbing behind a Manager.
type driver interface {
	connect(ctx context.Context, cfg Config) (*rod.Browser, *launcher.Launcher, string, error)
	alive(b *rod.Browser) bool
	close(b *rod.Browser, l *launcher.Launcher) error
}

type rodDriver struct{}

func (rodDriver) connect(ctx context.Context, cfg Config) (*rod.Browser, *launcher.Launcher, string, error) {
	var l *launcher.Launcher
	controlURL := cfg.DebuggerURL
	if controlURL == "" {
		l = launcher.New().Headless(cfg.Headless).Set(flags.Flag("no-sandbox"))
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		for _, rawFlag := range cfg.Flags {
			name, val, hasVal := strings.Cut(strings.TrimLeft(rawFlag, "-"), "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
		url, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, nil, "", fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, nil, "", fmt.Errorf("connect to chrome: %w", err)
	}
	return b, l, controlURL, nil
}

// alive is a cheap round trip that fails once Chrome has exited or the
// DevTools socket has dropped.
func (rodDriver) alive(b *rod.Browser) bool {
	_, err := b.Version()
	return err == nil
}

func (rodDriver) close(b *rod.Browser, l *launcher.Launcher) error {
	var err error
	if b != nil {
		err = b.Close()
	}
	if l != nil {
		l.Kill()
		l.Cleanup()
	}
	return err
}

// Start connects to an existing Chrome or launches a new one. Calling it on
// a healthy connection is a no-op; a stale connection is replaced.
func (m *Manager) Start(ctx context.Context) error {
	_, err := m.ensureStarted(ctx)
	return err
}

// ensureStarted returns a live browser, reconnecting when the current one
// has crashed or lost its connection.
func (m *Manager) ensureStarted(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if m.browser != nil {
		if m.driver.alive(m.browser) {
			return m.browser, nil
		}
		logging.Get(logging.CategoryBrowser).Warn("stale browser connection detected, reconnecting")
		if err := m.teardownLocked(); err != nil {
			logging.BrowserDebug("closing stale browser: %v", err)
		}
	}

	b, l, controlURL, err := m.driver.connect(ctx, m.cfg)
	if err != nil {
		return nil, err
	}
	m.browser, m.launcher, m.controlURL = b, l, controlURL
	logging.Browser("browser connected: %s", controlURL)
	return b, nil
}

// Render navigates to url, waits for the load event and, when waitSelector is
// set, for a matching element, then returns the rendered document HTML.
func (m *Manager) Render(ctx context.Context, url, waitSelector string) (html string, err error) {
	b, err := m.ensureStarted(ctx)
	if err != nil {
		return "", err
	}

	start := time.Now()
	incognito, err := b.Incognito()
	if err != nil {
		return "", fmt.Errorf("incognito context: %w", err)
	}
	defer func() {
		if cerr := incognito.Close(); cerr != nil {
			logging.BrowserDebug("closing incognito context: %v", cerr)
		}
	}()

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			logging.BrowserDebug("closing page: %v", cerr)
		}
	}()

	if m.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: m.cfg.UserAgent}); err != nil {
			logging.BrowserDebug("set user agent: %v", err)
		}
	}

	nav := page.Context(ctx).Timeout(m.cfg.navigationTimeout())
	defer nav.CancelTimeout()
	if err := nav.Navigate(url); err != nil {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := nav.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load %s: %w", url, err)
	}

	if waitSelector != "" {
		wait := page.Context(ctx).Timeout(m.cfg.waitTimeout())
		_, werr := wait.Element(waitSelector)
		wait.CancelTimeout()
		if werr != nil {
			return "", fmt.Errorf("wait for %q on %s: %w", waitSelector, url, werr)
		}
	}

	html, err = page.HTML()
	if err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	logging.BrowserDebug("rendered %s (%d bytes) in %s", url, len(html), time.Since(start))
	return html, nil
}

// ControlURL returns the WebSocket debugger URL.
func (m *Manager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected returns whether the browser is connected.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Close shuts the browser down. Further Render calls fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.teardownLocked()
}

func (m *Manager) teardownLocked() error {
	if m.browser == nil && m.launcher == nil {
		return nil
	}
	err := m.driver.close(m.browser, m.launcher)
	m.browser, m.launcher, m.controlURL = nil, nil, ""
	return err
}
