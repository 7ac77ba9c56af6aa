// Package tools resolves model tool invocations to concrete operations.
//
// Each tool is registered once at start in a Registry. The Dispatcher turns a
// model ToolCall into a tool-role Message, converting every failure (unknown
// name, bad arguments, tool error or panic) into text the model can read.
//
//	llm.ToolCall → Dispatcher.Dispatch → Registry.Get() → Tool.Execute() → llm.Message
package tools

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"
)

// ToolCategory classifies tools for listing.
type ToolCategory string

const (
	// CategoryRetrieval covers web search and page scraping.
	CategoryRetrieval ToolCategory = "/retrieval"

	// CategoryVision covers image description.
	CategoryVision ToolCategory = "/vision"

	// CategoryCode covers code analysis, testing and debugging.
	CategoryCode ToolCategory = "/code"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
}

// ToolSchema defines the JSON schema for tool arguments.
type ToolSchema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc is the signature for tool execution.
// Returns the result string and any error.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool defines an operation the model can invoke.
type Tool struct {
	// Name is the unique identifier the model uses to call the tool.
	Name string

	// Description explains what the tool does to the model.
	Description string

	// Category groups the tool for listing.
	Category ToolCategory

	// Execute runs the tool with the given arguments.
	Execute ExecuteFunc

	// Schema defines the expected arguments.
	Schema ToolSchema
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// Definition returns the model-facing definition with a JSON Schema object.
func (t *Tool) Definition() llm.ToolDefinition {
	props := make(map[string]any, len(t.Schema.Properties))
	for name, p := range t.Schema.Properties {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[name] = prop
	}
	required := make([]any, len(t.Schema.Required))
	for i, r := range t.Schema.Required {
		required[i] = r
	}
	return llm.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
}

// ToolResult wraps the result of tool execution with metadata.
type ToolResult struct {
	// ToolName identifies which tool was executed.
	ToolName string

	// Result is the string output from the tool.
	Result string

	// Error is set if the tool failed.
	Error error

	// DurationMs is how long execution took.
	DurationMs int64
}

// IsSuccess returns true if the tool executed without error.
func (r *ToolResult) IsSuccess() bool {
	return r.Error == nil
}

// stringArg returns a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingRequiredArg, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidArgType, key, v)
	}
	return s, nil
}

// intArg returns an optional integer argument. JSON numbers decode as float64.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
