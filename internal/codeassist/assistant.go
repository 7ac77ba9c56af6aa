// Package codeassist analyzes, tests and debugs code snippets for the
// analyze_and_improve_code, test_code and debug_code tools.
//
// Each request is a short exchange between a proxy and an expert model: the
// expert replies, the proxy runs any Go code it can and reports back, and the
// exchange ends after MaxTurns replies or when the expert says TERMINATE.
package codeassist

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"
)

// TerminationMarker ends an exchange early when the expert includes it.
const TerminationMarker = "TERMINATE"

const expertSystemPrompt = "You are a Python expert. Analyze, debug, and improve Python code. " +
	"You review Go code with the same care. When the task is complete, end your reply with " + TerminationMarker + "."

const noResponse = "No response received from the assistant."

var codeBlockPattern = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\\n(.*?)```")

// Assistant runs expert exchanges against a model.
type Assistant struct {
	client   llm.Client
	model    string
	runner   *Runner
	maxTurns int
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithRunner enables sandboxed execution of Go code.
func WithRunner(r *Runner) Option {
	return func(a *Assistant) { a.runner = r }
}

// WithMaxTurns bounds the expert replies per request.
func WithMaxTurns(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.maxTurns = n
		}
	}
}

// New creates an Assistant. An empty model uses the client's default.
func New(client llm.Client, model string, opts ...Option) *Assistant {
	a := &Assistant{client: client, model: model, maxTurns: 3}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze reviews code and suggests improvements, bug fixes and optimizations.
func (a *Assistant) Analyze(ctx context.Context, code string) (string, error) {
	lang, symbols := Outline(ctx, code)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze and improve the following %scode:\n\n%s\n", languageLabel(lang), code)
	if outline := FormatOutline(lang, symbols); outline != "" {
		fmt.Fprintf(&sb, "\nStructure:\n%s\n", outline)
	}
	sb.WriteString("\nProvide suggestions for improvements, bug fixes, and optimizations.")
	return a.exchange(ctx, "analyze", sb.String())
}

// Test exercises code and summarizes the results. Go code is executed first
// and its output included.
func (a *Assistant) Test(ctx context.Context, code string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Test the following code and provide a summary of the results:\n\n%s", code)
	if report := a.execute(ctx, code); report != "" {
		fmt.Fprintf(&sb, "\n\nExecution report:\n%s", report)
	}
	return a.exchange(ctx, "test", sb.String())
}

// Debug diagnoses the error code produced and proposes a fix.
func (a *Assistant) Debug(ctx context.Context, code, errorMessage string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Debug the following code that produced this error:\n\nCode:\n%s\n\nError:\n%s", code, errorMessage)
	if report := a.execute(ctx, code); report != "" {
		fmt.Fprintf(&sb, "\n\nExecution report:\n%s", report)
	}
	sb.WriteString("\n\nProvide a fix for the error.")
	return a.exchange(ctx, "debug", sb.String())
}

// exchange runs the proxy/expert conversation and returns the expert's last
// reply without the termination marker.
func (a *Assistant) exchange(ctx context.Context, task, message string) (string, error) {
	start := time.Now()
	messages := []llm.Message{
		llm.SystemMessage(expertSystemPrompt),
		llm.UserMessage(message),
	}

	var last string
	turns := 0
	for turns < a.maxTurns {
		resp, err := a.client.Chat(ctx, &llm.Request{Model: a.model, Messages: messages})
		if err != nil {
			return "", fmt.Errorf("code assistant %s: %w", task, err)
		}
		turns++
		last = resp.Content
		if strings.Contains(last, TerminationMarker) || turns == a.maxTurns {
			break
		}
		messages = append(messages, llm.AssistantMessage(last, nil), llm.UserMessage(a.autoReply(ctx, last)))
	}

	logging.CodeAssist("%s exchange finished in %d turns (%v)", task, turns, time.Since(start))
	reply := strings.TrimSpace(strings.ReplaceAll(last, TerminationMarker, ""))
	if reply == "" {
		return noResponse, nil
	}
	return reply, nil
}

// autoReply is the proxy's answer to an expert reply: the result of running
// any Go blocks it proposed, or a prompt to finish.
func (a *Assistant) autoReply(ctx context.Context, reply string) string {
	var reports []string
	for _, m := range codeBlockPattern.FindAllStringSubmatch(reply, -1) {
		lang, body := strings.ToLower(m[1]), m[2]
		if lang != "go" && lang != "golang" {
			continue
		}
		if report := a.execute(ctx, body); report != "" {
			reports = append(reports, report)
		}
	}
	if len(reports) == 0 {
		return "Continue. Reply " + TerminationMarker + " when the task is complete."
	}
	return "I ran the Go code you proposed:\n\n" + strings.Join(reports, "\n\n") +
		"\n\nContinue, or reply " + TerminationMarker + " if the task is complete."
}

// execute runs Go code in the sandbox and returns a report, or "" when the
// code is not Go or no runner is configured.
func (a *Assistant) execute(ctx context.Context, code string) string {
	if a.runner == nil || DetectLanguage(ctx, code) != LangGo {
		return ""
	}
	res, err := a.runner.Run(ctx, code)
	if err != nil {
		return fmt.Sprintf("Not executed: %v", err)
	}
	return res.String()
}

func languageLabel(lang string) string {
	switch lang {
	case LangGo:
		return "Go "
	case LangPython:
		return "Python "
	default:
		return ""
	}
}
