package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/tools"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)
}

func TestRunWithoutToolCallsEndsOnFirstCall(t *testing.T) {
	client := scripted(text("Paris."))
	disp := &fakeDispatcher{defs: searchDefs}
	loop := NewLoop(client, disp, nil, Config{Model: "m", MaxTurns: 5}, WithClock(fixedClock))

	ex := loop.Run(context.Background(), "What is the capital of France?")

	require.NoError(t, ex.Err)
	assert.Equal(t, "Paris.", ex.Answer)
	assert.Equal(t, 1, ex.Turns)
	assert.Zero(t, ex.ToolCalls)
	assert.Empty(t, disp.calls)

	reqs := client.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "m", reqs[0].Model)
	assert.Equal(t, llm.ToolChoiceAuto, reqs[0].ToolChoice)
	assert.Equal(t, searchDefs, reqs[0].Tools)

	msgs := reqs[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Current date and time: 2024-07-01 09:30:00 UTC")
	assert.Contains(t, msgs[0].Content, "- google_search: Search the web.")
	assert.Equal(t, llm.UserMessage("What is the capital of France?"), msgs[1])
}

func TestRunDispatchesToolCallsInOrder(t *testing.T) {
	search := llm.ToolCall{ID: "call_1", Name: "google_search", Input: map[string]any{"query": "go"}}
	scrape := llm.ToolCall{ID: "call_2", Name: "scrape_website", Input: map[string]any{"url": "https://go.dev"}}
	client := scripted(calls(search, scrape), text("Go is a language."))
	disp := &fakeDispatcher{defs: searchDefs}

	ex := NewLoop(client, disp, nil, DefaultConfig()).Run(context.Background(), "What is Go?")

	require.NoError(t, ex.Err)
	assert.Equal(t, "Go is a language.", ex.Answer)
	assert.Equal(t, 2, ex.Turns)
	assert.Equal(t, 2, ex.ToolCalls)
	if diff := cmp.Diff([]llm.ToolCall{search, scrape}, disp.calls); diff != "" {
		t.Errorf("dispatch order mismatch (-want +got):\n%s", diff)
	}

	second := client.Requests()[1].Messages
	require.Len(t, second, 5)
	assert.Equal(t, llm.AssistantMessage("", []llm.ToolCall{search, scrape}), second[2])
	assert.Equal(t, llm.ToolMessage("call_1", "google_search", "result of google_search"), second[3])
	assert.Equal(t, llm.ToolMessage("call_2", "scrape_website", "result of scrape_website"), second[4])

	last := ex.Transcript[len(ex.Transcript)-1]
	assert.Equal(t, llm.AssistantMessage("Go is a language.", nil), last)
}

func TestRunReportsUnknownToolInline(t *testing.T) {
	client := scripted(calls(llm.ToolCall{ID: "call_x", Name: "frobnicate", Input: map[string]any{}}), text("Sorry."))
	disp := tools.NewDispatcher(tools.NewRegistry())

	ex := NewLoop(client, disp, nil, DefaultConfig()).Run(context.Background(), "frobnicate something")

	require.NoError(t, ex.Err)
	assert.Equal(t, "Sorry.", ex.Answer)
	toolTurn := client.Requests()[1].Messages[3]
	assert.Equal(t, llm.RoleTool, toolTurn.Role)
	assert.Equal(t, "call_x", toolTurn.ToolCallID)
	assert.Contains(t, toolTurn.Content, "Unrecognized tool: frobnicate")
}

func TestRunStopsAtTurnCap(t *testing.T) {
	loopCall := llm.ToolCall{ID: "call", Name: "google_search", Input: map[string]any{"query": "again"}}
	client := &fakeClient{respond: func(n int, req *llm.Request) (*llm.Response, error) {
		if req.ToolChoice == llm.ToolChoiceNone {
			return text("Best effort answer."), nil
		}
		return calls(loopCall), nil
	}}
	disp := &fakeDispatcher{defs: searchDefs}

	ex := NewLoop(client, disp, nil, Config{MaxTurns: 3}).Run(context.Background(), "loop forever")

	require.NoError(t, ex.Err)
	assert.True(t, ex.CapReached)
	assert.Equal(t, "Best effort answer.", ex.Answer)
	assert.Equal(t, 4, ex.Turns)
	assert.Len(t, disp.calls, 3)

	reqs := client.Requests()
	require.Len(t, reqs, 4)
	final := reqs[3]
	assert.Equal(t, llm.ToolChoiceNone, final.ToolChoice)
	assert.Equal(t, llm.UserMessage(turnCapNotice), final.Messages[len(final.Messages)-1])
}

func TestRunTurnCapWithToolCallsOnly(t *testing.T) {
	loopCall := llm.ToolCall{ID: "call", Name: "google_search", Input: map[string]any{"query": "again"}}

	t.Run("falls back to notice", func(t *testing.T) {
		client := &fakeClient{respond: func(n int, req *llm.Request) (*llm.Response, error) {
			return calls(loopCall), nil
		}}
		ex := NewLoop(client, &fakeDispatcher{defs: searchDefs}, nil, Config{MaxTurns: 2}).Run(context.Background(), "loop forever")

		require.NoError(t, ex.Err)
		assert.True(t, ex.CapReached)
		assert.Equal(t, turnCapFallback, ex.Answer)
		assert.Equal(t, llm.AssistantMessage(turnCapFallback, nil), ex.Transcript[len(ex.Transcript)-1])
	})

	t.Run("keeps earlier assistant text", func(t *testing.T) {
		client := &fakeClient{respond: func(n int, req *llm.Request) (*llm.Response, error) {
			resp := calls(loopCall)
			if n == 1 {
				resp.Content = "Searching for that now."
			}
			return resp, nil
		}}
		ex := NewLoop(client, &fakeDispatcher{defs: searchDefs}, nil, Config{MaxTurns: 2}).Run(context.Background(), "loop forever")

		require.NoError(t, ex.Err)
		assert.Equal(t, "Searching for that now.", ex.Answer)
	})
}

func TestRunConvertsTransportErrorToAnswer(t *testing.T) {
	transportErr := &llm.TransportError{Provider: "fake", StatusCode: 503, Err: errors.New("unavailable")}
	client := &fakeClient{respond: func(int, *llm.Request) (*llm.Response, error) { return nil, transportErr }}

	ex := NewLoop(client, &fakeDispatcher{}, nil, DefaultConfig()).Run(context.Background(), "hello")

	assert.ErrorIs(t, ex.Err, transportErr)
	assert.Equal(t, "An error occurred: fake: HTTP 503: unavailable", ex.Answer)
	assert.Equal(t, 1, ex.Turns)
}

func TestRunErrorAfterToolCalls(t *testing.T) {
	client := &fakeClient{respond: func(n int, _ *llm.Request) (*llm.Response, error) {
		if n == 1 {
			return calls(llm.ToolCall{ID: "c", Name: "google_search"}), nil
		}
		return nil, context.DeadlineExceeded
	}}
	disp := &fakeDispatcher{defs: searchDefs}

	ex := NewLoop(client, disp, nil, DefaultConfig()).Run(context.Background(), "q")

	assert.ErrorIs(t, ex.Err, context.DeadlineExceeded)
	assert.Equal(t, "An error occurred: context deadline exceeded", ex.Answer)
	assert.Equal(t, 1, ex.ToolCalls)
}

func TestRunDescribesImagesInPrompt(t *testing.T) {
	client := scripted(text("A cat on a mat."))
	vision := &fakeVision{descriptions: map[string]string{
		"https://example.com/cat.png": "a cat sitting on a mat",
	}}

	prompt := "What is in https://example.com/cat.png? Compare with https://example.com/page."
	ex := NewLoop(client, &fakeDispatcher{}, vision, DefaultConfig()).Run(context.Background(), prompt)

	require.NoError(t, ex.Err)
	assert.Equal(t, []string{"https://example.com/cat.png", "https://example.com/page"}, vision.seen)

	msgs := client.Requests()[0].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, llm.SystemMessage("Description of the image at https://example.com/cat.png:\na cat sitting on a mat"), msgs[2])
}

func TestRunPlacesHistoryBeforePrompt(t *testing.T) {
	client := scripted(text("ok"))
	history := []llm.Message{llm.UserMessage("earlier"), llm.AssistantMessage("reply", nil)}

	NewLoop(client, &fakeDispatcher{}, nil, DefaultConfig()).Run(context.Background(), "now", history...)

	msgs := client.Requests()[0].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, history, msgs[1:3])
	assert.Equal(t, llm.UserMessage("now"), msgs[3])
}

func TestExtractURLs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "none", in: "no links here"},
		{name: "trailing punctuation", in: "see https://a.io/x.png.", want: []string{"https://a.io/x.png"}},
		{name: "parenthesised", in: "(http://b.org/img.jpg)", want: []string{"http://b.org/img.jpg"}},
		{name: "duplicates", in: "https://c.dev https://c.dev, http://d.dev", want: []string{"https://c.dev", "http://d.dev"}},
		{name: "bare scheme", in: "https:// nothing", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractURLs(tt.in))
		})
	}
}
