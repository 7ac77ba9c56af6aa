// Package logging provides config-driven categorized logging for reflect.
// All categories share one zap core writing to a rotated log file (lumberjack)
// and optionally to stderr. Until Initialize is called every logger is a no-op.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Category represents a log category/system
type Category string

const (
	// Core system categories
	CategoryBoot   Category = "boot"   // Boot/initialization
	CategoryConfig Category = "config" // Config load and reload
	CategoryAPI    Category = "api"    // LLM API calls

	// Retrieval categories
	CategoryCache     Category = "cache"     // Content cache reads/writes
	CategoryRetrieval Category = "retrieval" // Search/scrape strategies, retries, fallback
	CategoryBrowser   Category = "browser"   // Browser automation

	// Orchestration categories
	CategoryTools   Category = "tools"   // Tool dispatch
	CategoryChat    Category = "chat"    // Conversation loop
	CategoryGrading Category = "grading" // Self-grading feedback

	// Collaborators
	CategoryVision     Category = "vision"     // Image description
	CategoryCodeAssist Category = "codeassist" // Code analysis/test/debug
	CategoryIdeas      Category = "ideas"      // Idea generation and processing
	CategoryBench      Category = "bench"      // Benchmark suites
	CategoryServer     Category = "server"     // HTTP API
)

// Config mirrors config.LoggingConfig to avoid an import cycle.
type Config struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json or console
	File       string          `yaml:"file"`   // empty disables file output
	MaxSizeMB  int             `yaml:"max_size_mb"`
	MaxBackups int             `yaml:"max_backups"`
	MaxAgeDays int             `yaml:"max_age_days"`
	Compress   bool            `yaml:"compress"`
	Console    bool            `yaml:"console"`
	Categories map[string]bool `yaml:"categories"`
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	base       *zap.Logger
	level      = zap.NewAtomicLevelAt(zap.InfoLevel)
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
	closers    []func() error
)

// Initialize builds the shared zap core from cfg. It may be called again to
// reconfigure; previously returned loggers keep writing to the old core.
func Initialize(cfg Config) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(orDefault(cfg.Level, "info"))))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if cfg.Format == "console" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	var cores []zapcore.Core
	var newClosers []func() error
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefaultInt(cfg.MaxSizeMB, 15),
			MaxBackups: orDefaultInt(cfg.MaxBackups, 3),
			MaxAge:     orDefaultInt(cfg.MaxAgeDays, 28),
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(rotator), level))
		newClosers = append(newClosers, rotator.Close)
	}
	if cfg.Console {
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.Lock(os.Stderr), level))
	}

	level.SetLevel(lvl)
	logger := zap.New(zapcore.NewTee(cores...))
	Replace(logger)

	mu.Lock()
	categories = cfg.Categories
	closers = append(closers, newClosers...)
	mu.Unlock()

	Boot("logging initialized level=%s format=%s file=%q", lvl, orDefault(cfg.Format, "json"), cfg.File)
	return nil
}

// Replace swaps the shared zap logger and returns a func restoring the
// previous one. Tests use it with zaptest/observer.
func Replace(l *zap.Logger) (restore func()) {
	mu.Lock()
	prev := base
	base = l
	loggers = make(map[Category]*Logger)
	mu.Unlock()
	return func() { Replace(prev) }
}

// Base returns the shared zap logger, or a nop logger before Initialize.
func Base() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if base == nil {
		return zap.NewNop()
	}
	return base
}

// SetLevel changes the level of every category at runtime.
func SetLevel(name string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// Level returns the current level name.
func Level() string {
	return level.Level().String()
}

// IsCategoryEnabled returns whether a specific category is enabled.
// Categories not listed in the config are enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if base == nil {
		return false
	}
	enabled, ok := categories[string(category)]
	return !ok || enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if logging is not initialized or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	if base == nil {
		return &Logger{category: category}
	}
	l := &Logger{
		category: category,
		sugar:    base.With(zap.String("cat", string(category))).Sugar(),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// With returns a logger carrying structured key/value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l.sugar == nil {
		return l
	}
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Sync flushes buffered entries.
func Sync() {
	Base().Sync() //nolint:errcheck // stderr sync fails on some terminals
}

// CloseAll flushes and closes log files (call at shutdown).
func CloseAll() {
	Sync()
	mu.Lock()
	defer mu.Unlock()
	for _, c := range closers {
		_ = c()
	}
	closers = nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orDefaultInt(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }

// API logs to the api category
func API(format string, args ...interface{}) { Get(CategoryAPI).Info(format, args...) }

// APIDebug logs debug to the api category
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }

// Cache logs to the cache category
func Cache(format string, args ...interface{}) { Get(CategoryCache).Info(format, args...) }

// CacheDebug logs debug to the cache category
func CacheDebug(format string, args ...interface{}) { Get(CategoryCache).Debug(format, args...) }

// Retrieval logs to the retrieval category
func Retrieval(format string, args ...interface{}) { Get(CategoryRetrieval).Info(format, args...) }

// RetrievalDebug logs debug to the retrieval category
func RetrievalDebug(format string, args ...interface{}) {
	Get(CategoryRetrieval).Debug(format, args...)
}

// Browser logs to the browser category
func Browser(format string, args ...interface{}) { Get(CategoryBrowser).Info(format, args...) }

// BrowserDebug logs debug to the browser category
func BrowserDebug(format string, args ...interface{}) { Get(CategoryBrowser).Debug(format, args...) }

// Tools logs to the tools category
func Tools(format string, args ...interface{}) { Get(CategoryTools).Info(format, args...) }

// ToolsDebug logs debug to the tools category
func ToolsDebug(format string, args ...interface{}) { Get(CategoryTools).Debug(format, args...) }

// Chat logs to the chat category
func Chat(format string, args ...interface{}) { Get(CategoryChat).Info(format, args...) }

// ChatDebug logs debug to the chat category
func ChatDebug(format string, args ...interface{}) { Get(CategoryChat).Debug(format, args...) }

// Grading logs to the grading category
func Grading(format string, args ...interface{}) { Get(CategoryGrading).Info(format, args...) }

// Vision logs to the vision category
func Vision(format string, args ...interface{}) { Get(CategoryVision).Info(format, args...) }

// CodeAssist logs to the codeassist category
func CodeAssist(format string, args ...interface{}) { Get(CategoryCodeAssist).Info(format, args...) }

// CodeAssistDebug logs debug to the codeassist category
func CodeAssistDebug(format string, args ...interface{}) {
	Get(CategoryCodeAssist).Debug(format, args...)
}

// Ideas logs to the ideas category
func Ideas(format string, args ...interface{}) { Get(CategoryIdeas).Info(format, args...) }

// Bench logs to the bench category
func Bench(format string, args ...interface{}) { Get(CategoryBench).Info(format, args...) }

// Server logs to the server category
func Server(format string, args ...interface{}) { Get(CategoryServer).Info(format, args...) }
