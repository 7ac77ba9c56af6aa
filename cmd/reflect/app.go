package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/browser"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/cache"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/chat"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/codeassist"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/config"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/retrieval"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/tools"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/vision"
)

// app holds the long-lived components shared by every flow in a process.
type app struct {
	cfg       *config.Config
	cache     *cache.FileCache
	browser   *browser.Manager
	retriever *retrieval.Retriever
	client    llm.Client
	vision    *vision.Describer
	registry  *tools.Registry
	toolDefs  []llm.ToolDefinition
}

// newRetrievalApp builds only the cache and retriever, for commands that do
// not talk to a model.
func newRetrievalApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	c, err := cache.New(cfg.Cache.Dir)
	if err != nil {
		return nil, err
	}
	a.cache = c

	engine, err := retrieval.NewEngine(cfg.Retrieval.SearchEngine)
	if err != nil {
		return nil, err
	}

	var primary retrieval.Strategy
	if cfg.Browser.Enabled {
		a.browser = browser.NewManager(browser.Config{
			DebuggerURL:       cfg.Browser.DebuggerURL,
			Bin:               cfg.Browser.Bin,
			Headless:          cfg.Browser.Headless,
			UserAgent:         cfg.Retrieval.UserAgent,
			NavigationTimeout: cfg.GetNavigationTimeout(),
			WaitTimeout:       cfg.GetWaitTimeout(),
		})
		primary = &retrieval.BrowserStrategy{Renderer: a.browser}
	}
	fallback := retrieval.NewHTTPStrategy(cfg.Retrieval.UserAgent, cfg.GetHTTPTimeout())

	a.retriever = retrieval.New(retrieval.Config{
		MaxRetries:      cfg.Retrieval.MaxRetries,
		BackoffBase:     cfg.GetBackoffBase(),
		ScrapeCooldown:  cfg.GetScrapeCooldown(),
		MaxContentChars: cfg.Retrieval.MaxContentChars,
		NumResults:      cfg.Retrieval.NumResults,
		CacheTTL:        cfg.GetCacheTTL(),
	}, a.cache, primary, fallback, retrieval.WithEngine(engine))
	return a, nil
}

// newApp builds every component: retrieval, the model client and the tool
// registry.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a, err := newRetrievalApp(cfg)
	if err != nil {
		return nil, err
	}

	a.client, err = llm.NewClient(ctx, cfg.LLM, cfg.GetLLMTimeout())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.vision = vision.New(a.client, cfg.ModelFor("vision"))

	assistant := codeassist.New(a.client, cfg.ModelFor("code"), codeassist.WithRunner(codeassist.NewRunner(0)))
	a.registry = tools.NewRegistry()
	if err := tools.RegisterBuiltins(a.registry, tools.Deps{
		Searcher:   a.retriever,
		Vision:     a.vision,
		Code:       assistant,
		NumResults: cfg.Retrieval.NumResults,
	}); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Chat.ToolsFile != "" {
		a.toolDefs, err = tools.LoadDefinitions(cfg.Chat.ToolsFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		logging.Boot("loaded %d tool definitions from %s", len(a.toolDefs), cfg.Chat.ToolsFile)
	}
	logging.Boot("provider=%s model=%s tools=%d", a.client.Provider(), cfg.LLM.Model, a.registry.Count())
	return a, nil
}

// newFlow returns a self-grading flow for one conversation.
func (a *app) newFlow(sessionID string, grade bool) *chat.Flow {
	var opts []tools.DispatcherOption
	if a.toolDefs != nil {
		opts = append(opts, tools.WithDefinitions(a.toolDefs))
	}
	if sessionID != "" {
		opts = append(opts, tools.WithSession(sessionID))
	}
	dispatcher := tools.NewDispatcher(a.registry, opts...)

	loop := chat.NewLoop(a.client, dispatcher, a.vision, chat.Config{
		Model:       a.cfg.LLM.Model,
		MaxTurns:    a.cfg.Chat.MaxTurns,
		Temperature: a.cfg.LLM.Temperature,
		SessionID:   sessionID,
	})

	flowOpts := []chat.FlowOption{chat.WithGradingSession(sessionID)}
	if !grade || !a.cfg.Chat.SelfGrade {
		flowOpts = append(flowOpts, chat.WithoutGrading())
	}
	return chat.NewFlow(loop, a.client, a.cfg.ModelFor("grading"), flowOpts...)
}

// Close releases the browser.
func (a *app) Close() {
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			logging.Get(logging.CategoryBrowser).Warn("failed to close browser: %v", err)
		}
	}
}

// commandContext returns a context cancelled by SIGINT/SIGTERM and, when d
// is positive, after d.
func commandContext(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if d <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}

// watchConfig re-applies the log level whenever the config file changes.
// The returned func stops the watcher.
func watchConfig(ctx context.Context, path string) func() {
	w, err := config.NewWatcher(path, func(c *config.Config) {
		if err := logging.SetLevel(c.Logging.Level); err != nil {
			logging.Get(logging.CategoryConfig).Warn("ignoring invalid log level %q: %v", c.Logging.Level, err)
			return
		}
		logging.Get(logging.CategoryConfig).Info("log level set to %s", c.Logging.Level)
	})
	if err != nil {
		logging.Get(logging.CategoryConfig).Warn("config watcher unavailable: %v", err)
		return func() {}
	}
	if err := w.Start(ctx); err != nil {
		logging.Get(logging.CategoryConfig).Warn("config watcher unavailable: %v", err)
		w.Stop()
		return func() {}
	}
	return w.Stop
}

func printErr(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
