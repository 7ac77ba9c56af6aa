// Package llm is the model client layer: a provider-neutral chat request and
// response, and clients for OpenAI-compatible endpoints (Groq, OpenAI),
// Gemini and Ollama.
package llm

import (
	"context"
	"strings"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Tool choice values understood by every provider.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceNone = "none"
)

// Message is one conversation turn.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on tool turns
	Name       string     `json:"name,omitempty"`         // tool name on tool turns
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // set on assistant turns that requested tools
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`

	// ArgumentsError is set when the provider returned arguments that could not
	// be decoded. Input is nil in that case.
	ArgumentsError error `json:"-"`
}

// ToolDefinition describes a tool that the model can invoke.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"` // JSON Schema for parameters
}

// Request is a single chat-completion call.
type Request struct {
	Model       string
	Messages    []Message
	Tools       []ToolDefinition
	ToolChoice  string // auto, none; empty means auto when tools are present
	Temperature float64
}

// Usage captures token counts reported by the provider.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is the model's reply: plain text, tool calls, or both.
type Response struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls"`
	FinishReason string     `json:"finish_reason"`
	Usage        Usage      `json:"usage"`
}

// Client is a chat-completion endpoint.
type Client interface {
	Chat(ctx context.Context, req *Request) (*Response, error)
	// Provider returns the provider name used in logs and errors.
	Provider() string
}

// SystemMessage builds a system turn.
func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }

// UserMessage builds a user turn.
func UserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }

// AssistantMessage builds an assistant turn, optionally carrying tool calls.
func AssistantMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolMessage builds a tool-result turn correlated with callID.
func ToolMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, Name: name}
}

// Complete issues a single tool-free call with one user prompt and returns
// the trimmed text reply.
func Complete(ctx context.Context, c Client, model, prompt string) (string, error) {
	resp, err := c.Chat(ctx, &Request{
		Model:    model,
		Messages: []Message{UserMessage(prompt)},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// CompleteWithSystem is Complete with a leading system turn.
func CompleteWithSystem(ctx context.Context, c Client, model, system, prompt string) (string, error) {
	resp, err := c.Chat(ctx, &Request{
		Model:    model,
		Messages: []Message{SystemMessage(system), UserMessage(prompt)},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}
