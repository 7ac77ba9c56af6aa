package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSearcher struct {
	results   []retrieval.SearchResult
	searchErr error
	content   string
	scrapeErr error
	queries   []string
	numbers   []int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, n int) ([]retrieval.SearchResult, error) {
	f.queries = append(f.queries, query)
	f.numbers = append(f.numbers, n)
	return f.results, f.searchErr
}

func (f *fakeSearcher) Scrape(ctx context.Context, url string) (string, error) {
	return f.content, f.scrapeErr
}

type fakeVision struct{}

func (fakeVision) Describe(ctx context.Context, url string) (string, error) {
	return "a cat on a sofa", nil
}

type fakeCode struct {
	debugArgs [2]string
}

func (f *fakeCode) Analyze(ctx context.Context, code string) (string, error) { return "use a loop", nil }
func (f *fakeCode) Test(ctx context.Context, code string) (string, error)    { return "PASS", nil }
func (f *fakeCode) Debug(ctx context.Context, code, msg string) (string, error) {
	f.debugArgs = [2]string{code, msg}
	return "index out of range fixed", nil
}

func newTestDispatcher(t *testing.T, deps Deps) *Dispatcher {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg, deps))
	return NewDispatcher(reg)
}

func TestDispatchUnknownTool(t *testing.T) {
	d := newTestDispatcher(t, Deps{Searcher: &fakeSearcher{}})

	msg := d.Dispatch(context.Background(), llm.ToolCall{ID: "call_9", Name: "frobnicate", Input: map[string]any{}})

	assert.Equal(t, llm.RoleTool, msg.Role)
	assert.Equal(t, "call_9", msg.ToolCallID)
	assert.Contains(t, strings.ToLower(msg.Content), "unrecognized")
	assert.Contains(t, msg.Content, "frobnicate")
}

func TestDispatchSearchFormatsResults(t *testing.T) {
	s := &fakeSearcher{results: []retrieval.SearchResult{{Title: "France", Link: "https://x", Description: "Paris is..."}}}
	d := newTestDispatcher(t, Deps{Searcher: s, NumResults: 3})

	msg := d.Dispatch(context.Background(), llm.ToolCall{
		ID:    "call_1",
		Name:  ToolGoogleSearch,
		Input: map[string]any{"query": "capital of France"},
	})

	assert.Equal(t, `Search results for 'capital of France': [{"title":"France","link":"https://x","description":"Paris is..."}]`, msg.Content)
	assert.Equal(t, "call_1", msg.ToolCallID)
	assert.Equal(t, ToolGoogleSearch, msg.Name)
	assert.Equal(t, []int{3}, s.numbers)

	d.Dispatch(context.Background(), llm.ToolCall{
		ID:    "call_2",
		Name:  ToolGoogleSearch,
		Input: map[string]any{"query": "q", "num_results": float64(1)},
	})
	assert.Equal(t, []int{3, 1}, s.numbers)
}

func TestDispatchSearchEmptyResult(t *testing.T) {
	s := &fakeSearcher{searchErr: retrieval.ErrEmptyResult}
	d := newTestDispatcher(t, Deps{Searcher: s})

	msg := d.Dispatch(context.Background(), llm.ToolCall{ID: "c", Name: ToolGoogleSearch, Input: map[string]any{"query": "nothing"}})
	assert.Equal(t, "Search results for 'nothing': []", msg.Content)
}

func TestDispatchScrape(t *testing.T) {
	tests := []struct {
		name string
		s    *fakeSearcher
		want string
	}{
		{name: "content", s: &fakeSearcher{content: "Hello world"}, want: "Content from https://example.com: Hello world"},
		{name: "failure", s: &fakeSearcher{scrapeErr: errors.New("HTTP 503")}, want: "Failed to scrape content from https://example.com"},
		{name: "empty", s: &fakeSearcher{}, want: "Failed to scrape content from https://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(t, Deps{Searcher: tt.s})
			msg := d.Dispatch(context.Background(), llm.ToolCall{ID: "c", Name: ToolScrapeWebsite, Input: map[string]any{"url": "https://example.com"}})
			assert.Equal(t, tt.want, msg.Content)
		})
	}
}

func TestDispatchCodeTools(t *testing.T) {
	code := &fakeCode{}
	d := newTestDispatcher(t, Deps{Vision: fakeVision{}, Code: code})

	tests := []struct {
		call llm.ToolCall
		want string
	}{
		{llm.ToolCall{Name: ToolAnalyzeCode, Input: map[string]any{"code": "x = 1"}}, "Code analysis and improvement suggestions:\nuse a loop"},
		{llm.ToolCall{Name: ToolTestCode, Input: map[string]any{"code": "x = 1"}}, "Code test results:\nPASS"},
		{llm.ToolCall{Name: ToolDebugCode, Input: map[string]any{"code": "a[3]", "error_message": "IndexError"}}, "Code debugging results:\nindex out of range fixed"},
		{llm.ToolCall{Name: ToolDescribeImage, Input: map[string]any{"image_url": "https://i.imgur.com/cat.jpg"}}, "a cat on a sofa"},
	}
	for _, tt := range tests {
		t.Run(tt.call.Name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Dispatch(context.Background(), tt.call).Content)
		})
	}
	assert.Equal(t, [2]string{"a[3]", "IndexError"}, code.debugArgs)
}

func TestDispatchConvertsFailuresToText(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Tool{
		Name: "explode",
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			panic("boom")
		},
	})
	reg.MustRegister(&Tool{
		Name: "fail",
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return "", errors.New("upstream unavailable")
		},
	})
	reg.MustRegister(ScrapeWebsiteTool(&fakeSearcher{}))
	d := NewDispatcher(reg)

	tests := []struct {
		name string
		call llm.ToolCall
		want string
	}{
		{name: "panic", call: llm.ToolCall{ID: "1", Name: "explode"}, want: "An error occurred: tool explode panicked: boom"},
		{name: "error", call: llm.ToolCall{ID: "2", Name: "fail"}, want: "An error occurred: upstream unavailable"},
		{name: "missing arg", call: llm.ToolCall{ID: "3", Name: ToolScrapeWebsite, Input: map[string]any{}}, want: "An error occurred: missing required argument: url"},
		{name: "wrong type", call: llm.ToolCall{ID: "4", Name: ToolScrapeWebsite, Input: map[string]any{"url": 7.0}}, want: "An error occurred: invalid argument type: url must be a string, got float64"},
		{
			name: "malformed arguments",
			call: llm.ToolCall{ID: "5", Name: ToolScrapeWebsite, ArgumentsError: errors.New("failed to unmarshal arguments for tool scrape_website")},
			want: "An error occurred: failed to unmarshal arguments for tool scrape_website",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := d.Dispatch(context.Background(), tt.call)
			assert.Equal(t, tt.want, msg.Content)
			assert.Equal(t, tt.call.ID, msg.ToolCallID)
		})
	}
}

func TestDispatchAllPreservesOrder(t *testing.T) {
	var order []string
	reg := NewRegistry()
	for _, name := range []string{"a", "b", "c"} {
		name := name
		reg.MustRegister(&Tool{Name: name, Execute: func(ctx context.Context, args map[string]any) (string, error) {
			order = append(order, name)
			return name, nil
		}})
	}
	d := NewDispatcher(reg)

	msgs := d.DispatchAll(context.Background(), []llm.ToolCall{{ID: "3", Name: "c"}, {ID: "1", Name: "a"}, {ID: "2", Name: "b"}})

	assert.Equal(t, []string{"c", "a", "b"}, order)
	require.Len(t, msgs, 3)
	assert.Equal(t, "3", msgs[0].ToolCallID)
	assert.Equal(t, "b", msgs[2].Content)
}

func TestDispatchWritesAuditEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := logging.Replace(zap.New(core))
	defer restore()

	d := NewDispatcher(NewRegistry(), WithSession("sess-1"))
	d.Dispatch(context.Background(), llm.ToolCall{ID: "c1", Name: "frobnicate"})

	var events []string
	for _, e := range logs.FilterMessage("audit").All() {
		events = append(events, e.ContextMap()["event"].(string))
		assert.Equal(t, "sess-1", e.ContextMap()["session"])
	}
	assert.Equal(t, []string{string(logging.AuditToolInvoke), string(logging.AuditToolError)}, events)
}

func TestDispatcherDefinitions(t *testing.T) {
	d := newTestDispatcher(t, Deps{Searcher: &fakeSearcher{}})
	var names []string
	for _, def := range d.Definitions() {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{ToolGoogleSearch, ToolScrapeWebsite}, names)

	custom := []llm.ToolDefinition{{Name: "google_search"}}
	d = NewDispatcher(NewRegistry(), WithDefinitions(custom))
	assert.Equal(t, custom, d.Definitions())
}
