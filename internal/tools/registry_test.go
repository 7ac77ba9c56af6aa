package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func noop(ctx context.Context, args map[string]any) (string, error) { return "", nil }

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("NewRegistry returned nil")
	}
	if reg.Count() != 0 {
		t.Errorf("new registry should be empty, got %d tools", reg.Count())
	}
}

func TestRegisterAndGet(t *testing.T) {
	reg := NewRegistry()

	tool := &Tool{
		Name:        "test_tool",
		Description: "A test tool",
		Category:    CategoryRetrieval,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return "success", nil
		},
	}

	if err := reg.Register(tool); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got := reg.Get("test_tool")
	if got == nil {
		t.Fatal("Get returned nil for registered tool")
	}
	if got.Name != "test_tool" {
		t.Errorf("got name %q, want %q", got.Name, "test_tool")
	}
	if !reg.Has("test_tool") || reg.Has("other") {
		t.Error("Has reported wrong membership")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()
	tool := &Tool{Name: "dupe", Category: CategoryCode, Execute: noop}

	if err := reg.Register(tool); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := reg.Register(tool); !errors.Is(err, ErrToolAlreadyRegistered) {
		t.Fatalf("expected ErrToolAlreadyRegistered, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name    string
		tool    *Tool
		wantErr error
	}{
		{name: "empty name", tool: &Tool{Name: "", Execute: noop}, wantErr: ErrToolNameEmpty},
		{name: "nil execute", tool: &Tool{Name: "test", Execute: nil}, wantErr: ErrToolExecuteNil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.tool)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetByCategoryAndNames(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Tool{Name: "scrape_website", Category: CategoryRetrieval, Execute: noop})
	reg.MustRegister(&Tool{Name: "google_search", Category: CategoryRetrieval, Execute: noop})
	reg.MustRegister(&Tool{Name: "test_code", Category: CategoryCode, Execute: noop})

	retrieval := reg.GetByCategory(CategoryRetrieval)
	if len(retrieval) != 2 {
		t.Fatalf("expected 2 retrieval tools, got %d", len(retrieval))
	}
	if retrieval[0].Name != "google_search" {
		t.Errorf("expected google_search first, got %s", retrieval[0].Name)
	}

	if diff := cmp.Diff([]string{"google_search", "scrape_website", "test_code"}, reg.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteMissingRequiredArg(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Tool{
		Name:    "needs_url",
		Execute: noop,
		Schema:  ToolSchema{Required: []string{"url"}},
	})

	res, err := reg.Execute(context.Background(), "needs_url", map[string]any{})
	if !errors.Is(err, ErrMissingRequiredArg) {
		t.Fatalf("expected ErrMissingRequiredArg, got %v", err)
	}
	if res == nil || res.IsSuccess() {
		t.Fatal("expected failed ToolResult")
	}

	if _, err := reg.Execute(context.Background(), "missing", nil); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestDefinitionSchema(t *testing.T) {
	tool := &Tool{
		Name:        "debug_code",
		Description: "Debug code",
		Execute:     noop,
		Schema: ToolSchema{
			Required: []string{"code", "error_message"},
			Properties: map[string]Property{
				"code":          {Type: "string", Description: "The code"},
				"error_message": {Type: "string"},
			},
		},
	}

	want := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code":          map[string]any{"type": "string", "description": "The code"},
			"error_message": map[string]any{"type": "string"},
		},
		"required": []any{"code", "error_message"},
	}
	def := tool.Definition()
	if def.Name != "debug_code" || def.Description != "Debug code" {
		t.Errorf("unexpected definition header: %+v", def)
	}
	if diff := cmp.Diff(want, def.InputSchema); diff != "" {
		t.Errorf("schema mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteArgumentTypes(t *testing.T) {
	reg := NewRegistry()
	var gotN int
	reg.MustRegister(&Tool{
		Name: "search",
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			gotN = intArg(args, "num_results", 5)
			return "ok", nil
		},
		Schema: ToolSchema{
			Required: []string{"query"},
			Properties: map[string]Property{
				"query":       {Type: "string"},
				"num_results": {Type: "integer"},
			},
		},
	})

	tests := []struct {
		name    string
		args    map[string]any
		wantErr error
		wantN   int
	}{
		{name: "json number", args: map[string]any{"query": "go", "num_results": float64(3)}, wantN: 3},
		{name: "quoted number", args: map[string]any{"query": "go", "num_results": "2"}, wantN: 2},
		{name: "omitted optional", args: map[string]any{"query": "go"}, wantN: 5},
		{name: "query not a string", args: map[string]any{"query": 7}, wantErr: ErrInvalidArgType},
		{name: "non-numeric count", args: map[string]any{"query": "go", "num_results": "many"}, wantErr: ErrInvalidArgType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotN = 0
			res, err := reg.Execute(context.Background(), "search", tt.args)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || !res.IsSuccess() {
				t.Fatalf("unexpected failure: %v", err)
			}
			if gotN != tt.wantN {
				t.Errorf("num_results = %d, want %d", gotN, tt.wantN)
			}
		})
	}
}
