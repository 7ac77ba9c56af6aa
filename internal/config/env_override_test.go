package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_LLM(t *testing.T) {
	t.Run("GROQ_API_KEY sets provider if empty", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "groq-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "groq-key", cfg.LLM.APIKey)
		assert.Equal(t, "groq", cfg.LLM.Provider)
	})

	t.Run("GROQ_API_KEY does not override existing provider", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "groq-key")

		t.Setenv("OPENAI_API_KEY", "")

		cfg := &Config{LLM: LLMConfig{Provider: "openai", APIKey: "oa"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "openai", cfg.LLM.Provider)
		assert.Equal(t, "oa", cfg.LLM.APIKey)
	})

	t.Run("OPENAI_API_KEY applies only to openai", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "")
		t.Setenv("OPENAI_API_KEY", "oa-key")

		cfg := &Config{LLM: LLMConfig{Provider: "gemini", APIKey: "gem"}}
		cfg.applyEnvOverrides()
		assert.Equal(t, "gem", cfg.LLM.APIKey)

		cfg = &Config{LLM: LLMConfig{Provider: "openai"}}
		cfg.applyEnvOverrides()
		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
	})

	t.Run("GEMINI_API_KEY applies to gemini", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "")
		t.Setenv("GEMINI_API_KEY", "gem-key")

		cfg := &Config{LLM: LLMConfig{Provider: "gemini"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gem-key", cfg.LLM.APIKey)
	})

	t.Run("OLLAMA_HOST sets base url for ollama", func(t *testing.T) {
		t.Setenv("OLLAMA_HOST", "http://gpu-box:11434")

		cfg := &Config{LLM: LLMConfig{Provider: "ollama"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "http://gpu-box:11434", cfg.LLM.BaseURL)
	})
}

func TestEnvOverrides_Paths(t *testing.T) {
	t.Setenv("REFLECT_CACHE_DIR", "/tmp/reflect-cache")
	t.Setenv("REFLECT_MODEL", "llama-3.3-70b")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/tmp/reflect-cache", cfg.Cache.Dir)
	assert.Equal(t, "llama-3.3-70b", cfg.LLM.Model)
}
