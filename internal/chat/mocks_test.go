package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// fakeClient answers each request with respond and records a copy of it.
type fakeClient struct {
	mu       sync.Mutex
	respond  func(n int, req *llm.Request) (*llm.Response, error)
	requests []llm.Request
}

func (f *fakeClient) Provider() string { return "fake" }

func (f *fakeClient) Chat(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	cp := *req
	cp.Messages = append([]llm.Message(nil), req.Messages...)
	f.requests = append(f.requests, cp)
	n := len(f.requests)
	f.mu.Unlock()
	return f.respond(n, &cp)
}

func (f *fakeClient) Requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.requests...)
}

// scripted returns the responses in order, repeating the last one.
func scripted(responses ...*llm.Response) *fakeClient {
	return &fakeClient{respond: func(n int, _ *llm.Request) (*llm.Response, error) {
		if n > len(responses) {
			n = len(responses)
		}
		return responses[n-1], nil
	}}
}

func text(s string) *llm.Response { return &llm.Response{Content: s} }

func calls(cs ...llm.ToolCall) *llm.Response { return &llm.Response{ToolCalls: cs} }

// fakeDispatcher echoes calls back as tool turns.
type fakeDispatcher struct {
	defs  []llm.ToolDefinition
	calls []llm.ToolCall
}

func (d *fakeDispatcher) Definitions() []llm.ToolDefinition { return d.defs }

func (d *fakeDispatcher) Dispatch(_ context.Context, call llm.ToolCall) llm.Message {
	d.calls = append(d.calls, call)
	return llm.ToolMessage(call.ID, call.Name, "result of "+call.Name)
}

type fakeVision struct {
	descriptions map[string]string
	seen         []string
}

func (v *fakeVision) Describe(_ context.Context, url string) (string, error) {
	v.seen = append(v.seen, url)
	if d, ok := v.descriptions[url]; ok {
		return d, nil
	}
	return "", errors.New("not an image")
}

var searchDefs = []llm.ToolDefinition{
	{Name: "google_search", Description: "Search the web."},
	{Name: "scrape_website", Description: "Fetch a page."},
}
