package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"
)

// Dispatcher executes model tool calls against a Registry. It never returns
// an error: every failure becomes the content of the tool turn.
type Dispatcher struct {
	registry    *Registry
	definitions []llm.ToolDefinition
	audit       *logging.AuditLogger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDefinitions overrides the definitions advertised to the model, e.g.
// from a tool-definition document. By default the registry's own are used.
func WithDefinitions(defs []llm.ToolDefinition) DispatcherOption {
	return func(d *Dispatcher) { d.definitions = defs }
}

// WithSession scopes audit events to a session.
func WithSession(sessionID string) DispatcherOption {
	return func(d *Dispatcher) { d.audit = logging.AuditWithSession(sessionID) }
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{registry: registry, audit: logging.Audit()}
	for _, opt := range opts {
		opt(d)
	}
	if d.definitions == nil {
		d.definitions = registry.Definitions()
	}
	return d
}

// Definitions returns the tool schema sent with every model call.
func (d *Dispatcher) Definitions() []llm.ToolDefinition {
	return d.definitions
}

// Dispatch runs one tool call and returns the tool turn tagged with its call ID.
func (d *Dispatcher) Dispatch(ctx context.Context, call llm.ToolCall) llm.Message {
	start := time.Now()
	d.audit.ToolInvoke(call.Name, call.ID)
	logging.Tools("Function called: %s", call.Name)
	logging.ToolsDebug("Function arguments: %v", call.Input)

	result, err := d.execute(ctx, call)
	d.audit.ToolComplete(call.Name, call.ID, time.Since(start), err)

	if err != nil {
		logging.Get(logging.CategoryTools).Warn("tool %s failed: %v", call.Name, err)
		if errors.Is(err, ErrToolNotFound) {
			result = fmt.Sprintf("Unrecognized tool: %s", call.Name)
		} else {
			result = fmt.Sprintf("An error occurred: %s", err)
		}
	}
	return llm.ToolMessage(call.ID, call.Name, result)
}

// DispatchAll runs calls one at a time in the order given.
func (d *Dispatcher) DispatchAll(ctx context.Context, calls []llm.ToolCall) []llm.Message {
	out := make([]llm.Message, 0, len(calls))
	for _, call := range calls {
		out = append(out, d.Dispatch(ctx, call))
	}
	return out
}

func (d *Dispatcher) execute(ctx context.Context, call llm.ToolCall) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryTools).Error("tool %s panicked: %v", call.Name, r)
			err = fmt.Errorf("tool %s panicked: %v", call.Name, r)
		}
	}()

	tool := d.registry.Get(call.Name)
	if tool == nil {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, call.Name)
	}
	if call.ArgumentsError != nil {
		return "", call.ArgumentsError
	}
	args := call.Input
	if args == nil {
		args = map[string]any{}
	}

	res, err := d.registry.ExecuteTool(ctx, tool, args)
	if err != nil {
		return "", err
	}
	return res.Result, nil
}
