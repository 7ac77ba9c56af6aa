package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"

	"github.com/google/uuid"
	ollama "github.com/ollama/ollama/api"
)

// DefaultOllamaModel is used when no model is configured.
const DefaultOllamaModel = "llama3.1"

// OllamaConfig holds configuration for a local Ollama server.
type OllamaConfig struct {
	BaseURL string // empty reads OLLAMA_HOST
	Model   string
	Timeout time.Duration
}

// OllamaClient implements Client against the Ollama chat API.
type OllamaClient struct {
	client *ollama.Client
	model  string
}

// NewOllamaClient creates a client for a local model server.
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	var client *ollama.Client
	if cfg.BaseURL == "" {
		c, err := ollama.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
		client = c
	} else {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama base URL %q: %w", cfg.BaseURL, err)
		}
		client = ollama.NewClient(base, &http.Client{Timeout: cfg.Timeout})
	}
	return &OllamaClient{client: client, model: cfg.Model}, nil
}

// Provider returns "ollama".
func (c *OllamaClient) Provider() string { return "ollama" }

// Chat runs one non-streaming chat call.
func (c *OllamaClient) Chat(ctx context.Context, req *Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]ollama.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		om := ollama.Message{Role: string(m.Role), Content: m.Content}
		for _, tc := range m.ToolCalls {
			var call ollama.ToolCall
			call.Function.Name = tc.Name
			call.Function.Arguments = ollama.ToolCallFunctionArguments(tc.Input)
			om.ToolCalls = append(om.ToolCalls, call)
		}
		messages = append(messages, om)
	}

	stream := false
	chatReq := &ollama.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
		},
	}
	// tool_choice none is expressed by withholding the tools
	if len(req.Tools) > 0 && req.ToolChoice != ToolChoiceNone {
		tools, err := ollamaTools(req.Tools)
		if err != nil {
			return nil, err
		}
		chatReq.Tools = tools
	}

	var final ollama.ChatResponse
	respFunc := func(res ollama.ChatResponse) error {
		final.Message.Content += res.Message.Content
		final.Message.ToolCalls = append(final.Message.ToolCalls, res.Message.ToolCalls...)
		if res.Done {
			final.DoneReason = res.DoneReason
			final.Metrics = res.Metrics
		}
		return nil
	}
	if err := c.client.Chat(ctx, chatReq, respFunc); err != nil {
		return nil, &TransportError{Provider: "ollama", Err: fmt.Errorf("ollama chat failed: %w", err)}
	}

	out := &Response{
		Content:      final.Message.Content,
		FinishReason: final.DoneReason,
		Usage: Usage{
			InputTokens:  final.PromptEvalCount,
			OutputTokens: final.EvalCount,
			TotalTokens:  final.PromptEvalCount + final.EvalCount,
		},
	}
	for _, tc := range final.Message.ToolCalls {
		args := map[string]any(tc.Function.Arguments)
		if args == nil {
			args = map[string]any{}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:    "call_" + uuid.NewString(),
			Name:  tc.Function.Name,
			Input: args,
		})
	}
	logging.APIDebug("[ollama] response: done=%s tool_calls=%d content_len=%d", out.FinishReason, len(out.ToolCalls), len(out.Content))
	return out, nil
}

// ollamaTools converts definitions through their OpenAI JSON form, which
// Ollama's tool schema mirrors.
func ollamaTools(defs []ToolDefinition) (ollama.Tools, error) {
	data, err := json.Marshal(mapToolDefinitions(defs))
	if err != nil {
		return nil, fmt.Errorf("failed to encode tools: %w", err)
	}
	var tools ollama.Tools
	if err := json.Unmarshal(data, &tools); err != nil {
		return nil, fmt.Errorf("failed to convert tools for ollama: %w", err)
	}
	return tools, nil
}
