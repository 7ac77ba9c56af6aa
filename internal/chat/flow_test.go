package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradingAwareClient answers grading prompts with grade and everything else
// with the next answer.
func gradingAwareClient(grade string, answers ...string) *fakeClient {
	next := 0
	return &fakeClient{respond: func(_ int, req *llm.Request) (*llm.Response, error) {
		last := req.Messages[len(req.Messages)-1].Content
		if strings.Contains(last, "### assistant response:") {
			return text(grade), nil
		}
		a := answers[next]
		if next < len(answers)-1 {
			next++
		}
		return text(a), nil
	}}
}

func TestChatRunsTwoExchangesAroundGrading(t *testing.T) {
	client := gradingAwareClient("grade: 6/10\nToo short.", "Paris.", "Paris is the capital of France.")
	loop := NewLoop(client, &fakeDispatcher{defs: searchDefs}, nil, DefaultConfig())
	flow := NewFlow(loop, client, "grader")

	reply := flow.Chat(context.Background(), "Capital of France?")

	require.NoError(t, reply.Err)
	assert.Equal(t, "Paris.", reply.FirstAnswer)
	assert.Equal(t, "Paris is the capital of France.", reply.Answer)
	assert.Equal(t, "grade: 6/10\nToo short.", reply.Grade)
	require.NotNil(t, reply.First)
	require.NotNil(t, reply.Second)

	reqs := client.Requests()
	require.Len(t, reqs, 3)

	grading := reqs[1]
	assert.Equal(t, "grader", grading.Model)
	assert.Empty(t, grading.Tools)
	require.Len(t, grading.Messages, 1)
	assert.Contains(t, grading.Messages[0].Content, "### user prompt: Capital of France?")
	assert.Contains(t, grading.Messages[0].Content, "### assistant response: Paris.")

	second := reqs[2].Messages
	require.Len(t, second, 5)
	assert.Equal(t, llm.UserMessage("Capital of France?"), second[1])
	assert.Equal(t, llm.AssistantMessage("Paris.", nil), second[2])
	assert.Equal(t, llm.AssistantMessage(
		"Grade: grade: 6/10\nToo short. \n\n this is the response: Paris. that got this grade. adjust the response to improve the grade.", nil),
		second[3])
	assert.Equal(t, llm.UserMessage("Capital of France?"), second[4])

	record := flow.Messages()
	require.Len(t, record, 5)
	assert.Equal(t, llm.RoleUser, record[0].Role)
	assert.Equal(t, "Paris is the capital of France.", record[4].Content)
}

func TestChatRevisesAfterFirstExchangeFails(t *testing.T) {
	client := &fakeClient{respond: func(n int, _ *llm.Request) (*llm.Response, error) {
		if n == 1 {
			return nil, &llm.TransportError{Provider: "fake", Err: errors.New("blip")}
		}
		return text("recovered"), nil
	}}
	flow := NewFlow(NewLoop(client, &fakeDispatcher{}, nil, DefaultConfig()), client, "")

	reply := flow.Chat(context.Background(), "hi")

	require.NoError(t, reply.Err)
	require.NotNil(t, reply.First)
	require.NotNil(t, reply.Second)
	assert.True(t, llm.IsTransportError(reply.First.Err))
	assert.Equal(t, "An error occurred: fake: blip", reply.FirstAnswer)
	assert.Equal(t, "recovered", reply.Grade)
	assert.Equal(t, "recovered", reply.Answer)

	reqs := client.Requests()
	require.Len(t, reqs, 3)
	assert.Contains(t, reqs[1].Messages[0].Content, "### assistant response: An error occurred: fake: blip")
	second := reqs[2].Messages
	assert.Equal(t, llm.AssistantMessage("An error occurred: fake: blip", nil), second[2])
}

func TestChatReportsSecondExchangeError(t *testing.T) {
	client := &fakeClient{respond: func(int, *llm.Request) (*llm.Response, error) {
		return nil, &llm.TransportError{Provider: "fake", Err: errors.New("connection refused")}
	}}
	flow := NewFlow(NewLoop(client, &fakeDispatcher{}, nil, DefaultConfig()), client, "")

	reply := flow.Chat(context.Background(), "hi")

	require.Error(t, reply.Err)
	assert.True(t, llm.IsTransportError(reply.Err))
	require.NotNil(t, reply.Second)
	assert.Equal(t, "An error occurred: fake: connection refused", reply.Answer)
	assert.Len(t, client.Requests(), 3)
}

func TestChatGradingFailureStillRevises(t *testing.T) {
	client := &fakeClient{respond: func(n int, req *llm.Request) (*llm.Response, error) {
		if n == 2 {
			return nil, errors.New("rate limited")
		}
		return text("answer"), nil
	}}
	flow := NewFlow(NewLoop(client, &fakeDispatcher{}, nil, DefaultConfig()), client, "")

	reply := flow.Chat(context.Background(), "q")

	require.NoError(t, reply.Err)
	assert.Equal(t, "An error occurred: rate limited", reply.Grade)
	assert.Len(t, client.Requests(), 3)
}

func TestChatWithoutGrading(t *testing.T) {
	client := scripted(text("only once"))
	flow := NewFlow(NewLoop(client, &fakeDispatcher{}, nil, DefaultConfig()), client, "", WithoutGrading())

	reply := flow.Chat(context.Background(), "q")

	require.NoError(t, reply.Err)
	assert.Equal(t, "only once", reply.Answer)
	assert.Nil(t, reply.Second)
	assert.Len(t, client.Requests(), 1)
}
