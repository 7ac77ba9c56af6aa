package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/retrieval"
)

// Built-in tool names.
const (
	ToolGoogleSearch  = "google_search"
	ToolScrapeWebsite = "scrape_website"
	ToolDescribeImage = "describe_image"
	ToolAnalyzeCode   = "analyze_and_improve_code"
	ToolTestCode      = "test_code"
	ToolDebugCode     = "debug_code"
)

// Searcher is the retrieval surface the search and scrape tools need.
type Searcher interface {
	Search(ctx context.Context, query string, numResults int) ([]retrieval.SearchResult, error)
	Scrape(ctx context.Context, url string) (string, error)
}

// ImageDescriber turns an image URL into text.
type ImageDescriber interface {
	Describe(ctx context.Context, imageURL string) (string, error)
}

// CodeAssistant analyzes, tests and debugs code snippets.
type CodeAssistant interface {
	Analyze(ctx context.Context, code string) (string, error)
	Test(ctx context.Context, code string) (string, error)
	Debug(ctx context.Context, code, errorMessage string) (string, error)
}

// Deps are the collaborators behind the built-in tools. Nil collaborators
// leave their tools unregistered.
type Deps struct {
	Searcher   Searcher
	Vision     ImageDescriber
	Code       CodeAssistant
	NumResults int // default result count for google_search
}

// RegisterBuiltins registers every built-in tool whose collaborator is set.
func RegisterBuiltins(registry *Registry, deps Deps) error {
	var all []*Tool
	if deps.Searcher != nil {
		all = append(all, GoogleSearchTool(deps.Searcher, deps.NumResults), ScrapeWebsiteTool(deps.Searcher))
	}
	if deps.Vision != nil {
		all = append(all, DescribeImageTool(deps.Vision))
	}
	if deps.Code != nil {
		all = append(all, AnalyzeCodeTool(deps.Code), TestCodeTool(deps.Code), DebugCodeTool(deps.Code))
	}

	for _, tool := range all {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}
	logging.Tools("registered %d built-in tools", len(all))
	return nil
}

// GoogleSearchTool searches the web and returns title/link/description records.
func GoogleSearchTool(s Searcher, numResults int) *Tool {
	if numResults <= 0 {
		numResults = 5
	}
	return &Tool{
		Name:        ToolGoogleSearch,
		Description: "Search the web and return the top results with title, link and description",
		Category:    CategoryRetrieval,
		Schema: ToolSchema{
			Required: []string{"query"},
			Properties: map[string]Property{
				"query": {Type: "string", Description: "The search query"},
				"num_results": {
					Type:        "integer",
					Description: fmt.Sprintf("Maximum number of results (default: %d)", numResults),
					Default:     numResults,
				},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			query, err := stringArg(args, "query")
			if err != nil {
				return "", err
			}
			n := intArg(args, "num_results", numResults)

			results, err := s.Search(ctx, query, n)
			if err != nil && !errors.Is(err, retrieval.ErrEmptyResult) {
				return "", err
			}
			if results == nil {
				results = []retrieval.SearchResult{}
			}
			data, err := json.Marshal(results)
			if err != nil {
				return "", fmt.Errorf("failed to encode search results: %w", err)
			}
			return fmt.Sprintf("Search results for '%s': %s", query, data), nil
		},
	}
}

// ScrapeWebsiteTool fetches the main text content of a page.
func ScrapeWebsiteTool(s Searcher) *Tool {
	return &Tool{
		Name:        ToolScrapeWebsite,
		Description: "Fetch a web page and return its main text content",
		Category:    CategoryRetrieval,
		Schema: ToolSchema{
			Required: []string{"url"},
			Properties: map[string]Property{
				"url": {Type: "string", Description: "The URL to scrape"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			url, err := stringArg(args, "url")
			if err != nil {
				return "", err
			}
			content, err := s.Scrape(ctx, url)
			if err != nil || content == "" {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				logging.Get(logging.CategoryTools).Warn("scrape of %s failed: %v", url, err)
				return fmt.Sprintf("Failed to scrape content from %s", url), nil
			}
			return fmt.Sprintf("Content from %s: %s", url, content), nil
		},
	}
}

// DescribeImageTool describes the image at a URL.
func DescribeImageTool(v ImageDescriber) *Tool {
	return &Tool{
		Name:        ToolDescribeImage,
		Description: "Generate a text description of the image at a URL",
		Category:    CategoryVision,
		Schema: ToolSchema{
			Required: []string{"image_url"},
			Properties: map[string]Property{
				"image_url": {Type: "string", Description: "The URL of the image"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			url, err := stringArg(args, "image_url")
			if err != nil {
				return "", err
			}
			return v.Describe(ctx, url)
		},
	}
}

// AnalyzeCodeTool reviews code and suggests improvements.
func AnalyzeCodeTool(c CodeAssistant) *Tool {
	return &Tool{
		Name:        ToolAnalyzeCode,
		Description: "Analyze code and suggest improvements",
		Category:    CategoryCode,
		Schema: ToolSchema{
			Required: []string{"code"},
			Properties: map[string]Property{
				"code": {Type: "string", Description: "The code to analyze"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			code, err := stringArg(args, "code")
			if err != nil {
				return "", err
			}
			analysis, err := c.Analyze(ctx, code)
			if err != nil {
				return "", err
			}
			return "Code analysis and improvement suggestions:\n" + analysis, nil
		},
	}
}

// TestCodeTool writes and runs tests for code.
func TestCodeTool(c CodeAssistant) *Tool {
	return &Tool{
		Name:        ToolTestCode,
		Description: "Test code and report the results",
		Category:    CategoryCode,
		Schema: ToolSchema{
			Required: []string{"code"},
			Properties: map[string]Property{
				"code": {Type: "string", Description: "The code to test"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			code, err := stringArg(args, "code")
			if err != nil {
				return "", err
			}
			results, err := c.Test(ctx, code)
			if err != nil {
				return "", err
			}
			return "Code test results:\n" + results, nil
		},
	}
}

// DebugCodeTool diagnoses an error raised by code.
func DebugCodeTool(c CodeAssistant) *Tool {
	return &Tool{
		Name:        ToolDebugCode,
		Description: "Debug code given the error message it produced",
		Category:    CategoryCode,
		Schema: ToolSchema{
			Required: []string{"code", "error_message"},
			Properties: map[string]Property{
				"code":          {Type: "string", Description: "The code to debug"},
				"error_message": {Type: "string", Description: "The error message the code produced"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			code, err := stringArg(args, "code")
			if err != nil {
				return "", err
			}
			msg, err := stringArg(args, "error_message")
			if err != nil {
				return "", err
			}
			result, err := c.Debug(ctx, code, msg)
			if err != nil {
				return "", err
			}
			return "Code debugging results:\n" + result, nil
		},
	}
}
