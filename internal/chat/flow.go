package chat

import (
	"context"
	"sync"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"
)

// Flow answers a prompt, grades the answer and answers again with the grade
// as feedback. A Flow keeps a record of its messages and is meant for one
// conversation; create one per session.
type Flow struct {
	loop         *Loop
	client       llm.Client
	gradingModel string
	grading      bool
	audit        *logging.AuditLogger

	mu       sync.Mutex
	messages []llm.Message
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithoutGrading makes Chat run a single exchange.
func WithoutGrading() FlowOption {
	return func(f *Flow) { f.grading = false }
}

// WithGradingSession scopes the flow's audit events.
func WithGradingSession(sessionID string) FlowOption {
	return func(f *Flow) { f.audit = logging.AuditWithSession(sessionID) }
}

// NewFlow creates a Flow. Grading uses client with gradingModel; an empty
// gradingModel uses the client's default.
func NewFlow(loop *Loop, client llm.Client, gradingModel string, opts ...FlowOption) *Flow {
	f := &Flow{
		loop:         loop,
		client:       client,
		gradingModel: gradingModel,
		grading:      true,
		audit:        logging.Audit(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Reply is the result of one Chat call.
type Reply struct {
	Prompt      string
	Answer      string // final answer
	FirstAnswer string // answer before feedback
	Grade       string // empty when grading was skipped
	First       *Exchange
	Second      *Exchange
	Duration    time.Duration
	Err         error
}

// Chat runs the exchange, grades its answer, and runs the exchange again with
// the grade injected. A failed first exchange still counts: its error text is
// graded and revised like any other answer, and Err reflects only the second
// exchange.
func (f *Flow) Chat(ctx context.Context, prompt string) *Reply {
	start := time.Now()
	reply := &Reply{Prompt: prompt}
	defer func() { reply.Duration = time.Since(start) }()

	f.record(llm.UserMessage(prompt))
	first := f.loop.Run(ctx, prompt)
	reply.First = first
	reply.FirstAnswer = first.Answer
	reply.Answer = first.Answer
	f.record(llm.AssistantMessage(first.Answer, nil))

	if !f.grading {
		reply.Err = first.Err
		return reply
	}
	if first.Err != nil {
		logging.Get(logging.CategoryChat).Warn("first exchange failed, revising its error text: %v", first.Err)
	}

	grade := f.grade(ctx, prompt, first.Answer)
	reply.Grade = grade
	feedback := feedbackMessage(grade, first.Answer)
	f.record(llm.AssistantMessage(grade, nil), llm.AssistantMessage(feedback, nil))

	second := f.loop.Run(ctx, prompt,
		llm.UserMessage(prompt),
		llm.AssistantMessage(first.Answer, nil),
		llm.AssistantMessage(feedback, nil),
	)
	reply.Second = second
	reply.Answer = second.Answer
	reply.Err = second.Err
	f.record(llm.AssistantMessage(second.Answer, nil))
	return reply
}

// grade makes one tool-free model call. A failed call yields the error text
// as the grade so the revision still runs.
func (f *Flow) grade(ctx context.Context, prompt, answer string) string {
	start := time.Now()
	grade, err := llm.Complete(ctx, f.client, f.gradingModel, gradingPrompt(prompt, answer))
	f.audit.Event(logging.AuditGraded, f.gradingModel, err == nil, time.Since(start), err)
	if err != nil {
		logging.Get(logging.CategoryGrading).Error("grading failed: %v", err)
		return errorAnswer(err)
	}
	logging.Grading("graded answer (%d chars): %d chars of feedback", len(answer), len(grade))
	return grade
}

// Messages returns the conversation record: prompts, answers, grades and
// feedback in the order they occurred.
func (f *Flow) Messages() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Message(nil), f.messages...)
}

func (f *Flow) record(msgs ...llm.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msgs...)
}
