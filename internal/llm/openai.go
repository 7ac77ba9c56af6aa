package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// Default endpoints for OpenAI-compatible providers.
const (
	DefaultGroqBaseURL   = "https://api.groq.com/openai/v1"
	DefaultGroqModel     = "llama-3.1-70b-versatile"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAIConfig holds configuration for an OpenAI-compatible client.
type OpenAIConfig struct {
	Provider   string // name used in logs and errors, e.g. groq or openai
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int           // retries after the first attempt for 429/5xx/network errors
	RetryBase  time.Duration // first backoff interval, doubled each retry
}

// DefaultGroqConfig returns defaults for the Groq endpoint.
func DefaultGroqConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		Provider:   "groq",
		APIKey:     apiKey,
		BaseURL:    DefaultGroqBaseURL,
		Model:      DefaultGroqModel,
		Timeout:    120 * time.Second,
		MaxRetries: 3,
		RetryBase:  time.Second,
	}
}

// DefaultOpenAIConfig returns defaults for the OpenAI endpoint.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	cfg := DefaultGroqConfig(apiKey)
	cfg.Provider = "openai"
	cfg.BaseURL = DefaultOpenAIBaseURL
	cfg.Model = DefaultOpenAIModel
	return cfg
}

// OpenAIClient talks to any /chat/completions endpoint with function calling.
type OpenAIClient struct {
	cfg        OpenAIConfig
	httpClient *http.Client
}

// NewOpenAIClient creates a client. Zero fields in cfg keep Groq defaults.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", orDefault(cfg.Provider, "openai"), ErrMissingAPIKey)
	}
	def := DefaultGroqConfig(cfg.APIKey)
	if cfg.Provider == "" {
		cfg.Provider = def.Provider
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = def.RetryBase
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenAIClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Provider returns the configured provider name.
func (c *OpenAIClient) Provider() string { return c.cfg.Provider }

// Model returns the default model.
func (c *OpenAIClient) Model() string { return c.cfg.Model }

// Wire types for the OpenAI chat-completions API.
type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role      string           `json:"role"`
			Content   string           `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Chat performs a non-streaming chat completion. 429, 5xx and network
// failures are retried with exponential backoff; every other failure is
// returned as a *TransportError on the first attempt.
func (c *OpenAIClient) Chat(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	var out *openAIResponse
	op := func() error {
		resp, err := c.do(ctx, body)
		if err != nil {
			var te *TransportError
			if ctx.Err() != nil || (errors.As(err, &te) && !te.Retryable()) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = resp
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.RetryBase
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.cfg.MaxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		logging.Get(logging.CategoryAPI).Warn("[%s] request failed, retrying in %s: %v", c.cfg.Provider, wait, err)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		logging.Get(logging.CategoryAPI).Error("[%s] chat failed after %s: %v", c.cfg.Provider, time.Since(start), err)
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{Provider: c.cfg.Provider, Err: err}
		}
		return nil, err
	}

	return c.convertResponse(out)
}

func (c *OpenAIClient) do(ctx context.Context, body []byte) (*openAIResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Provider: c.cfg.Provider, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Provider: c.cfg.Provider, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Provider: c.cfg.Provider, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{
			Provider:   c.cfg.Provider,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(data))),
		}
	}

	var parsed openAIResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &TransportError{Provider: c.cfg.Provider, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}
	if parsed.Error != nil {
		return nil, &TransportError{Provider: c.cfg.Provider, StatusCode: resp.StatusCode, Err: fmt.Errorf("API error: %s", parsed.Error.Message)}
	}
	return &parsed, nil
}

func (c *OpenAIClient) buildRequest(req *Request) openAIRequest {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	out := openAIRequest{
		Model:       model,
		Messages:    make([]openAIMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
	}
	for _, m := range req.Messages {
		om := openAIMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if m.Role == RoleTool {
			om.Name = m.Name
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, encodeToolCall(tc))
		}
		out.Messages = append(out.Messages, om)
	}
	if len(req.Tools) > 0 {
		out.Tools = mapToolDefinitions(req.Tools)
		out.ToolChoice = orDefault(req.ToolChoice, ToolChoiceAuto)
	}
	return out
}

func (c *OpenAIClient) convertResponse(resp *openAIResponse) (*Response, error) {
	if len(resp.Choices) == 0 {
		return nil, &TransportError{Provider: c.cfg.Provider, StatusCode: http.StatusOK, Err: ErrNoChoices}
	}
	choice := resp.Choices[0]
	out := &Response{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		ToolCalls:    decodeToolCalls(choice.Message.ToolCalls),
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}
	logging.APIDebug("[%s] response: finish=%s tool_calls=%d content_len=%d", c.cfg.Provider, out.FinishReason, len(out.ToolCalls), len(out.Content))
	return out, nil
}

// mapToolDefinitions converts generic tool definitions to OpenAI format.
func mapToolDefinitions(tools []ToolDefinition) []openAITool {
	result := make([]openAITool, len(tools))
	for i, t := range tools {
		result[i] = openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		}
	}
	return result
}

// decodeToolCalls converts OpenAI tool calls to generic tool calls. Calls
// whose arguments are not a JSON object are kept with ArgumentsError set.
// A call without an ID gets a generated one so its result can be matched.
func decodeToolCalls(calls []openAIToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	result := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		if c.Type != "" && c.Type != "function" {
			logging.Get(logging.CategoryAPI).Warn("ignoring tool call %q of unsupported type %q", c.Function.Name, c.Type)
			continue
		}
		tc := ToolCall{ID: c.ID, Name: c.Function.Name}
		if tc.ID == "" {
			tc.ID = "call_" + uuid.NewString()
		}
		args := strings.TrimSpace(c.Function.Arguments)
		if args == "" {
			tc.Input = map[string]any{}
		} else if err := json.Unmarshal([]byte(args), &tc.Input); err != nil || tc.Input == nil {
			if err == nil {
				err = errors.New("arguments are not a JSON object")
			}
			tc.Input = nil
			tc.ArgumentsError = fmt.Errorf("failed to unmarshal arguments for tool %s: %w", c.Function.Name, err)
		}
		result = append(result, tc)
	}
	return result
}

func encodeToolCall(tc ToolCall) openAIToolCall {
	var out openAIToolCall
	out.ID = tc.ID
	out.Type = "function"
	out.Function.Name = tc.Name
	args := "{}"
	if tc.Input != nil {
		if data, err := json.Marshal(tc.Input); err == nil {
			args = string(data)
		}
	}
	out.Function.Arguments = args
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
