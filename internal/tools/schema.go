package tools

import (
	"fmt"
	"os"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"

	"gopkg.in/yaml.v3"
)

// definitionDoc is one entry of a tool-definition document in the
// chat-completions "tools" format. JSON documents parse as YAML.
type definitionDoc struct {
	Type     string `yaml:"type"`
	Function struct {
		Name        string         `yaml:"name"`
		Description string         `yaml:"description"`
		Parameters  map[string]any `yaml:"parameters"`
	} `yaml:"function"`
}

// LoadDefinitions reads a tool-definition document (JSON or YAML list of
// {"type": "function", "function": {name, description, parameters}}).
func LoadDefinitions(path string) ([]llm.ToolDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool definitions: %w", err)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions parses a tool-definition document.
func ParseDefinitions(data []byte) ([]llm.ToolDefinition, error) {
	var docs []definitionDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse tool definitions: %w", err)
	}

	seen := make(map[string]bool, len(docs))
	defs := make([]llm.ToolDefinition, 0, len(docs))
	for i, d := range docs {
		if d.Type != "" && d.Type != "function" {
			return nil, fmt.Errorf("tool definition %d: unsupported type %q", i, d.Type)
		}
		if d.Function.Name == "" {
			return nil, fmt.Errorf("tool definition %d: %w", i, ErrToolNameEmpty)
		}
		if seen[d.Function.Name] {
			return nil, fmt.Errorf("tool definition %d: %w: %s", i, ErrToolAlreadyRegistered, d.Function.Name)
		}
		seen[d.Function.Name] = true

		schema := d.Function.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        d.Function.Name,
			Description: d.Function.Description,
			InputSchema: schema,
		})
	}
	return defs, nil
}
