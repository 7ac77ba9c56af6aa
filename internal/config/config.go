package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"

	"gopkg.in/yaml.v3"
)

// Config holds all reflect configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Chat      ChatConfig      `yaml:"chat"`
	Cache     CacheConfig     `yaml:"cache"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Browser   BrowserConfig   `yaml:"browser"`
	Ideas     IdeasConfig     `yaml:"ideas"`
	Bench     BenchConfig     `yaml:"bench"`
	Server    ServerConfig    `yaml:"server"`
	Logging   logging.Config  `yaml:"logging"`
}

// LLMConfig configures the model provider.
type LLMConfig struct {
	Provider     string  `yaml:"provider"` // groq, openai, gemini, ollama
	APIKey       string  `yaml:"api_key"`
	BaseURL      string  `yaml:"base_url"`
	Model        string  `yaml:"model"`
	VisionModel  string  `yaml:"vision_model"`
	GradingModel string  `yaml:"grading_model"` // empty uses Model
	CodeModel    string  `yaml:"code_model"`    // empty uses Model
	Temperature  float64 `yaml:"temperature"`
	Timeout      string  `yaml:"timeout"`
	MaxRetries   int     `yaml:"max_retries"`
}

// ChatConfig configures the conversation loop and self-grading.
type ChatConfig struct {
	MaxTurns   int    `yaml:"max_turns"`
	SelfGrade  bool   `yaml:"self_grade"`
	ToolsFile  string `yaml:"tools_file"` // empty uses built-in definitions
	HistoryDir string `yaml:"history_dir"`
}

// CacheConfig configures the content cache.
type CacheConfig struct {
	Dir string `yaml:"dir"`
	TTL string `yaml:"ttl"`
}

// RetrievalConfig configures search and scrape.
type RetrievalConfig struct {
	MaxRetries      int    `yaml:"max_retries"`
	BackoffBase     string `yaml:"backoff_base"`
	ScrapeCooldown  string `yaml:"scrape_cooldown"`
	MaxContentChars int    `yaml:"max_content_chars"`
	NumResults      int    `yaml:"num_results"`
	SearchEngine    string `yaml:"search_engine"` // google or duckduckgo
	UserAgent       string `yaml:"user_agent"`
	HTTPTimeout     string `yaml:"http_timeout"`
}

// BrowserConfig configures the rendered-browser strategy.
type BrowserConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Headless          bool   `yaml:"headless"`
	DebuggerURL       string `yaml:"debugger_url"` // attach to a running Chrome instead of launching
	Bin               string `yaml:"bin"`
	NavigationTimeout string `yaml:"navigation_timeout"`
	WaitTimeout       string `yaml:"wait_timeout"`
}

// IdeasConfig configures idea generation and processing.
type IdeasConfig struct {
	Dir         string   `yaml:"dir"`
	DB          string   `yaml:"db"`
	OutputDir   string   `yaml:"output_dir"`
	Topic       string   `yaml:"topic"`
	Constraints []string `yaml:"constraints"`
	MaxRounds   int      `yaml:"max_rounds"`
	TopN        int      `yaml:"top_n"`
}

// BenchConfig configures benchmark suites.
type BenchConfig struct {
	DataDir  string `yaml:"data_dir"`
	Parallel int    `yaml:"parallel"`
	Limit    int    `yaml:"limit"`
	Report   string `yaml:"report"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	RequestTimeout string `yaml:"request_timeout"`
}

// DefaultUserAgent is a desktop Chrome user agent used for direct HTTP fetches.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultConstraints are the fixed constraints every generated idea is judged against.
var DefaultConstraints = []string{
	"Must be buildable by a single developer.",
	"Must run on commodity hardware without paid infrastructure.",
	"Must solve a concrete problem for an identifiable group of users.",
	"Must be explainable in one paragraph.",
	"Must have a plausible path to revenue.",
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "groq",
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.1-70b-versatile",
			VisionModel: "llava-v1.5-7b-4096-preview",
			Temperature: 0.7,
			Timeout:     "120s",
			MaxRetries:  3,
		},
		Chat: ChatConfig{
			MaxTurns:   8,
			SelfGrade:  true,
			HistoryDir: "history",
		},
		Cache: CacheConfig{
			Dir: "cache",
			TTL: "24h",
		},
		Retrieval: RetrievalConfig{
			MaxRetries:      3,
			BackoffBase:     "1s",
			ScrapeCooldown:  "5s",
			MaxContentChars: 5000,
			NumResults:      5,
			SearchEngine:    "google",
			UserAgent:       DefaultUserAgent,
			HTTPTimeout:     "30s",
		},
		Browser: BrowserConfig{
			Enabled:           true,
			Headless:          true,
			NavigationTimeout: "30s",
			WaitTimeout:       "10s",
		},
		Ideas: IdeasConfig{
			Dir:         "ideas",
			DB:          "ideas/ideas.db",
			OutputDir:   "generated_ideas",
			Topic:       "a software product idea",
			Constraints: DefaultConstraints,
			MaxRounds:   10,
			TopN:        3,
		},
		Bench: BenchConfig{
			DataDir:  "bench",
			Parallel: 4,
			Report:   "bench/report.md",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: "5m",
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
			File:   "logs/reflect.log",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides. Provider keys only
// apply to the selected provider; GROQ_API_KEY also selects groq when unset.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GROQ_API_KEY"); key != "" && (c.LLM.Provider == "" || c.LLM.Provider == "groq") {
		c.LLM.APIKey = key
		c.LLM.Provider = "groq"
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.Provider == "openai" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.LLM.Provider == "gemini" {
		c.LLM.APIKey = key
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" && c.LLM.Provider == "ollama" {
		c.LLM.BaseURL = host
	}
	if model := os.Getenv("REFLECT_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if dir := os.Getenv("REFLECT_CACHE_DIR"); dir != "" {
		c.Cache.Dir = dir
	}
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"groq", "openai", "gemini", "ollama"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}
	if c.LLM.APIKey == "" && c.LLM.Provider != "ollama" {
		return fmt.Errorf("LLM API key not configured for %s (set GROQ_API_KEY, OPENAI_API_KEY or GEMINI_API_KEY)", c.LLM.Provider)
	}
	if c.Chat.MaxTurns <= 0 {
		return fmt.Errorf("chat.max_turns must be positive, got %d", c.Chat.MaxTurns)
	}
	if c.Retrieval.MaxRetries <= 0 {
		return fmt.Errorf("retrieval.max_retries must be positive, got %d", c.Retrieval.MaxRetries)
	}
	return nil
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// GetCacheTTL returns the cache TTL as a duration.
func (c *Config) GetCacheTTL() time.Duration {
	return parseDuration(c.Cache.TTL, 24*time.Hour)
}

// GetBackoffBase returns the retrieval backoff base as a duration.
func (c *Config) GetBackoffBase() time.Duration {
	return parseDuration(c.Retrieval.BackoffBase, time.Second)
}

// GetScrapeCooldown returns the per-domain scrape cooldown as a duration.
func (c *Config) GetScrapeCooldown() time.Duration {
	return parseDuration(c.Retrieval.ScrapeCooldown, 5*time.Second)
}

// GetHTTPTimeout returns the direct-HTTP strategy timeout as a duration.
func (c *Config) GetHTTPTimeout() time.Duration {
	return parseDuration(c.Retrieval.HTTPTimeout, 30*time.Second)
}

// GetNavigationTimeout returns the browser navigation timeout as a duration.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Browser.NavigationTimeout, 30*time.Second)
}

// GetWaitTimeout returns how long the browser waits for a result selector.
func (c *Config) GetWaitTimeout() time.Duration {
	return parseDuration(c.Browser.WaitTimeout, 10*time.Second)
}

// GetRequestTimeout returns the HTTP API per-request timeout as a duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return parseDuration(c.Server.RequestTimeout, 5*time.Minute)
}

// ModelFor returns the model for a role, falling back to the main model.
func (c *Config) ModelFor(role string) string {
	switch role {
	case "grading":
		if c.LLM.GradingModel != "" {
			return c.LLM.GradingModel
		}
	case "code":
		if c.LLM.CodeModel != "" {
			return c.LLM.CodeModel
		}
	case "vision":
		if c.LLM.VisionModel != "" {
			return c.LLM.VisionModel
		}
	}
	return c.LLM.Model
}
