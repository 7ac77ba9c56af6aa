package codeassist

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient replies with the next canned answer and records requests.
type scriptedClient struct {
	replies  []string
	requests []*llm.Request
	err      error
}

func (s *scriptedClient) Provider() string { return "scripted" }

func (s *scriptedClient) Chat(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	cp := *req
	cp.Messages = append([]llm.Message(nil), req.Messages...)
	s.requests = append(s.requests, &cp)
	if s.err != nil {
		return nil, s.err
	}
	i := len(s.requests) - 1
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	return &llm.Response{Content: s.replies[i]}, nil
}

func TestAnalyzeStopsOnTerminate(t *testing.T) {
	c := &scriptedClient{replies: []string{"Use memoization for fibonacci.\nTERMINATE"}}
	a := New(c, "code-model")

	out, err := a.Analyze(context.Background(), pythonSample)
	require.NoError(t, err)
	assert.Equal(t, "Use memoization for fibonacci.", out)
	require.Len(t, c.requests, 1)

	req := c.requests[0]
	assert.Equal(t, "code-model", req.Model)
	assert.Empty(t, req.Tools)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "Python expert")
	prompt := req.Messages[1].Content
	assert.True(t, strings.HasPrefix(prompt, "Analyze and improve the following Python code:"))
	assert.Contains(t, prompt, "- function fibonacci (line 2)")
	assert.Contains(t, prompt, "Provide suggestions for improvements, bug fixes, and optimizations.")
}

func TestExchangeIsBoundedByMaxTurns(t *testing.T) {
	c := &scriptedClient{replies: []string{"first", "second", "third", "fourth"}}
	out, err := New(c, "").Test(context.Background(), "print(1)")
	require.NoError(t, err)

	assert.Equal(t, "third", out)
	assert.Len(t, c.requests, 3)
	last := c.requests[2].Messages
	assert.Equal(t, llm.RoleUser, last[len(last)-1].Role)
	assert.Contains(t, last[len(last)-1].Content, "TERMINATE")
}

func TestAutoReplyRunsProposedGoCode(t *testing.T) {
	proposal := "Try this:\n```go\npackage main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println(10 / 2) }\n```\n"
	c := &scriptedClient{replies: []string{proposal, "The fix works. TERMINATE"}}
	a := New(c, "", WithRunner(NewRunner(5*time.Second)))

	out, err := a.Debug(context.Background(), "package main\n\nfunc main() { a, b := 10, 0; _ = a / b }\n", "panic: runtime error: integer divide by zero")
	require.NoError(t, err)
	assert.Equal(t, "The fix works.", out)

	require.Len(t, c.requests, 2)
	first := c.requests[0].Messages[1].Content
	assert.Contains(t, first, "Error:\npanic: runtime error: integer divide by zero")
	assert.Contains(t, first, "Execution report:\nExecution failed")
	assert.True(t, strings.HasSuffix(first, "Provide a fix for the error."))

	reply := c.requests[1].Messages[3].Content
	assert.Contains(t, reply, "I ran the Go code you proposed")
	assert.Contains(t, reply, "Output:\n5")
}

func TestExchangeEmptyReply(t *testing.T) {
	c := &scriptedClient{replies: []string{"TERMINATE"}}
	out, err := New(c, "").Analyze(context.Background(), "x = 1")
	require.NoError(t, err)
	assert.Equal(t, "No response received from the assistant.", out)
}

func TestExchangeTransportError(t *testing.T) {
	c := &scriptedClient{err: &llm.TransportError{Provider: "scripted", Err: errors.New("down")}}
	_, err := New(c, "").Test(context.Background(), "x = 1")
	require.Error(t, err)
	assert.True(t, llm.IsTransportError(err))
}
