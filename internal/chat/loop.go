// Package chat runs tool-augmented conversations and the self-grading flow
// built on top of them.
//
// A Loop drives one exchange: the model is called with the transcript and the
// tool schema, requested tools are dispatched in order and their results
// appended, and the exchange ends when the model answers without calling a
// tool. A Flow runs the Loop, grades the answer and runs it again with the
// grade as feedback.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"

	"go.uber.org/zap"
)

// Dispatcher resolves tool calls to tool-role messages.
type Dispatcher interface {
	Definitions() []llm.ToolDefinition
	Dispatch(ctx context.Context, call llm.ToolCall) llm.Message
}

// ImageDescriber turns an image URL into text.
type ImageDescriber interface {
	Describe(ctx context.Context, imageURL string) (string, error)
}

// Config holds loop settings.
type Config struct {
	// Model overrides the client's default model.
	Model string

	// MaxTurns bounds the tool-calling model calls per exchange. When it is
	// reached one more call is made with tools disabled.
	MaxTurns int

	Temperature float64

	// SessionID scopes audit events.
	SessionID string
}

// DefaultConfig returns the default loop settings.
func DefaultConfig() Config {
	return Config{MaxTurns: 8, Temperature: 0.7}
}

// Loop runs conversation exchanges. It holds no per-exchange state, so one
// Loop may run many exchanges, concurrently if its collaborators allow it.
type Loop struct {
	client     llm.Client
	dispatcher Dispatcher
	vision     ImageDescriber
	cfg        Config
	now        func() time.Time
	audit      *logging.AuditLogger
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock sets the clock used for the timestamp in the system turn.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// NewLoop creates a Loop. vision may be nil, in which case URLs in prompts
// are left to the model.
func NewLoop(client llm.Client, dispatcher Dispatcher, vision ImageDescriber, cfg Config, opts ...Option) *Loop {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultConfig().MaxTurns
	}
	l := &Loop{
		client:     client,
		dispatcher: dispatcher,
		vision:     vision,
		cfg:        cfg,
		now:        time.Now,
		audit:      logging.AuditWithSession(cfg.SessionID),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Exchange is the outcome of one Loop run.
type Exchange struct {
	// Answer is the final text. On failure it is the error rendered for the
	// user and Err is set.
	Answer string

	// Transcript holds every turn sent to or received from the model.
	Transcript []llm.Message

	// Turns counts model calls.
	Turns int

	// ToolCalls counts dispatched tool invocations.
	ToolCalls int

	// CapReached is set when the turn cap forced a tool-free answer.
	CapReached bool

	Usage    llm.Usage
	Duration time.Duration
	Err      error
}

// Run executes one exchange for prompt. history is inserted between the
// system turn and the prompt. Run never returns an error: model failures end
// the exchange with a textual answer.
func (l *Loop) Run(ctx context.Context, prompt string, history ...llm.Message) *Exchange {
	start := time.Now()
	logging.Chat("exchange started: %d chars, %d history turns", len(prompt), len(history))

	var defs []llm.ToolDefinition
	if l.dispatcher != nil {
		defs = l.dispatcher.Definitions()
	}

	ex := &Exchange{}
	ex.Transcript = append(ex.Transcript, llm.SystemMessage(systemPrompt(l.now(), defs)))
	ex.Transcript = append(ex.Transcript, history...)
	ex.Transcript = append(ex.Transcript, llm.UserMessage(prompt))
	ex.Transcript = append(ex.Transcript, l.describeImages(ctx, prompt)...)

	for {
		if ex.Turns >= l.cfg.MaxTurns {
			l.finishAtCap(ctx, ex, defs)
			break
		}

		resp, err := l.call(ctx, ex, defs, llm.ToolChoiceAuto)
		if err != nil {
			l.fail(ex, err)
			break
		}

		if len(resp.ToolCalls) == 0 || l.dispatcher == nil {
			ex.Answer = resp.Content
			ex.Transcript = append(ex.Transcript, llm.AssistantMessage(resp.Content, nil))
			break
		}

		ex.Transcript = append(ex.Transcript, llm.AssistantMessage(resp.Content, resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			logging.ChatDebug("turn %d: dispatching %s (%s)", ex.Turns, call.Name, call.ID)
			ex.Transcript = append(ex.Transcript, l.dispatcher.Dispatch(ctx, call))
			ex.ToolCalls++
		}
	}

	ex.Duration = time.Since(start)
	l.audit.Event(logging.AuditTurnEnd, l.modelName(), ex.Err == nil, ex.Duration, ex.Err,
		zap.Int("turns", ex.Turns), zap.Int("tool_calls", ex.ToolCalls), zap.Bool("cap_reached", ex.CapReached))
	logging.Chat("exchange finished: %d turns, %d tool calls, %v", ex.Turns, ex.ToolCalls, ex.Duration)
	return ex
}

// finishAtCap asks for a final answer with tools disabled.
func (l *Loop) finishAtCap(ctx context.Context, ex *Exchange, defs []llm.ToolDefinition) {
	ex.CapReached = true
	logging.Get(logging.CategoryChat).Warn("turn cap of %d reached, requesting final answer without tools", l.cfg.MaxTurns)
	l.audit.Event(logging.AuditTurnsCap, l.modelName(), true, 0, nil, zap.Int("max_turns", l.cfg.MaxTurns))

	ex.Transcript = append(ex.Transcript, llm.UserMessage(turnCapNotice))
	resp, err := l.call(ctx, ex, defs, llm.ToolChoiceNone)
	if err != nil {
		l.fail(ex, err)
		return
	}
	if len(resp.ToolCalls) > 0 {
		logging.Get(logging.CategoryChat).Warn("ignoring %d tool calls requested after the turn cap", len(resp.ToolCalls))
	}
	answer := resp.Content
	if strings.TrimSpace(answer) == "" {
		answer = lastAssistantText(ex.Transcript)
	}
	ex.Answer = answer
	ex.Transcript = append(ex.Transcript, llm.AssistantMessage(answer, nil))
}

// lastAssistantText returns the latest non-blank assistant content, or
// turnCapFallback.
func lastAssistantText(transcript []llm.Message) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		m := transcript[i]
		if m.Role == llm.RoleAssistant && strings.TrimSpace(m.Content) != "" {
			return m.Content
		}
	}
	return turnCapFallback
}

func (l *Loop) call(ctx context.Context, ex *Exchange, defs []llm.ToolDefinition, choice string) (*llm.Response, error) {
	req := &llm.Request{
		Model:       l.cfg.Model,
		Messages:    append([]llm.Message(nil), ex.Transcript...),
		Tools:       defs,
		ToolChoice:  choice,
		Temperature: l.cfg.Temperature,
	}

	start := time.Now()
	resp, err := l.client.Chat(ctx, req)
	ex.Turns++
	if err != nil {
		l.audit.ModelCall(l.modelName(), ex.Turns, 0, time.Since(start), err)
		return nil, err
	}
	l.audit.ModelCall(l.modelName(), ex.Turns, len(resp.ToolCalls), time.Since(start), nil)

	ex.Usage.InputTokens += resp.Usage.InputTokens
	ex.Usage.OutputTokens += resp.Usage.OutputTokens
	ex.Usage.TotalTokens += resp.Usage.TotalTokens
	return resp, nil
}

func (l *Loop) fail(ex *Exchange, err error) {
	logging.Get(logging.CategoryChat).Error("model call failed on turn %d: %v", ex.Turns, err)
	ex.Err = err
	ex.Answer = errorAnswer(err)
}

// describeImages resolves every URL in prompt through the vision describer
// and returns one system turn per description.
func (l *Loop) describeImages(ctx context.Context, prompt string) []llm.Message {
	if l.vision == nil {
		return nil
	}
	var turns []llm.Message
	for _, u := range ExtractURLs(prompt) {
		desc, err := l.vision.Describe(ctx, u)
		if err != nil {
			logging.Get(logging.CategoryChat).Warn("could not describe %s: %v", u, err)
			continue
		}
		turns = append(turns, llm.SystemMessage(imageContext(u, desc)))
	}
	return turns
}

func (l *Loop) modelName() string {
	if l.cfg.Model != "" {
		return l.cfg.Model
	}
	return l.client.Provider()
}
