package tools

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"
)

// Registry maps tool names to tools. Tools are registered once at start and
// then looked up concurrently by every conversation sharing the registry.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Tool
	sorted []string // names in lexical order, rebuilt on Register
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Tool)}
}

// Register adds tool. Names are unique.
func (r *Registry) Register(tool *Tool) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[tool.Name]; dup {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, tool.Name)
	}
	r.byName[tool.Name] = tool
	i := sort.SearchStrings(r.sorted, tool.Name)
	r.sorted = append(r.sorted, "")
	copy(r.sorted[i+1:], r.sorted[i:])
	r.sorted[i] = tool.Name

	logging.ToolsDebug("registered tool %s (%s)", tool.Name, tool.Category)
	return nil
}

// MustRegister is Register for static tool sets; it panics on error.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get returns the named tool, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	return r.Get(name) != nil
}

// GetByCategory returns the tools in category in name order.
func (r *Registry) GetByCategory(category ToolCategory) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Tool
	for _, name := range r.sorted {
		if t := r.byName[name]; t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.sorted...)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sorted)
}

// Definitions returns the model-facing definition of every tool in name
// order. This is what the model sees when no definition document is loaded.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(r.sorted))
	for _, name := range r.sorted {
		defs = append(defs, r.byName[name].Definition())
	}
	return defs
}

// Execute looks up name and runs it.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	tool := r.Get(name)
	if tool == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return r.ExecuteTool(ctx, tool, args)
}

// ExecuteTool checks args against the tool's schema and runs it. The result
// is returned even on failure so callers can log its duration.
func (r *Registry) ExecuteTool(ctx context.Context, tool *Tool, args map[string]any) (*ToolResult, error) {
	start := time.Now()
	res := &ToolResult{ToolName: tool.Name}

	if err := checkArgs(tool.Schema, args); err != nil {
		res.Error = err
		res.DurationMs = time.Since(start).Milliseconds()
		return res, err
	}

	out, err := tool.Execute(ctx, args)
	res.Result, res.Error = out, err
	res.DurationMs = time.Since(start).Milliseconds()
	logging.ToolsDebug("%s finished in %dms ok=%v result_len=%d", tool.Name, res.DurationMs, err == nil, len(out))
	return res, err
}

// checkArgs requires every schema-required argument and rejects a present
// argument whose JSON type contradicts its declared type.
func checkArgs(schema ToolSchema, args map[string]any) error {
	for _, name := range schema.Required {
		if _, ok := args[name]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingRequiredArg, name)
		}
	}
	for name, prop := range schema.Properties {
		v, ok := args[name]
		if !ok || v == nil {
			continue
		}
		if !matchesType(prop.Type, v) {
			article := "a"
			if strings.HasPrefix(prop.Type, "i") {
				article = "an"
			}
			return fmt.Errorf("%w: %s must be %s %s, got %T", ErrInvalidArgType, name, article, prop.Type, v)
		}
	}
	return nil
}

func matchesType(want string, v any) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "integer", "number":
		switch n := v.(type) {
		case float64, float32, int, int64:
			return true
		case string:
			// Some models quote numbers.
			_, err := strconv.ParseFloat(n, 64)
			return err == nil
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	}
	return true
}
