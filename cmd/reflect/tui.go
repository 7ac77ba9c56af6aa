package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/chat"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

var (
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	gradeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	inputStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63"))
)

// chatter is the part of chat.Flow the TUI needs.
type chatter interface {
	Chat(ctx context.Context, prompt string) *chat.Reply
}

// entry is one rendered item in the conversation view.
type entry struct {
	role    string // user, assistant, error
	content string
	grade   string
	elapsed time.Duration
}

type replyMsg struct{ reply *chat.Reply }

type tuiModel struct {
	ctx      context.Context
	flow     chatter
	history  []entry
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	loading  bool
	ready    bool
	width    int
}

func newTUIModel(ctx context.Context, flow chatter) tuiModel {
	ta := textarea.New()
	ta.Placeholder = "Ask anything. Enter sends, Ctrl+C quits."
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return tuiModel{
		ctx:      ctx,
		flow:     flow,
		textarea: ta,
		spinner:  sp,
		viewport: viewport.New(80, 20),
		width:    80,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		taCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			prompt := strings.TrimSpace(m.textarea.Value())
			if prompt == "" {
				return m, nil
			}
			m.textarea.Reset()
			m.history = append(m.history, entry{role: "user", content: prompt})
			m.loading = true
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.ask(prompt))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.textarea.SetWidth(msg.Width - 4)
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-m.textarea.Height()-5, 3)
		m.renderer = nil
		m.ready = true
		m.refresh()

	case spinner.TickMsg:
		if m.loading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}
		return m, nil

	case replyMsg:
		m.loading = false
		e := entry{role: "assistant", content: msg.reply.Answer, grade: msg.reply.Grade, elapsed: msg.reply.Duration}
		if msg.reply.Err != nil {
			e.role = "error"
		}
		m.history = append(m.history, e)
		m.refresh()
		return m, nil
	}

	if !m.loading {
		m.textarea, taCmd = m.textarea.Update(msg)
	}
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(taCmd, vpCmd, spCmd)
}

func (m tuiModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("reflect"))
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	if m.loading {
		sb.WriteString(m.spinner.View())
		sb.WriteString(statusStyle.Render(" thinking, grading and revising..."))
	} else {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("%d messages", len(m.history))))
	}
	sb.WriteString("\n")
	sb.WriteString(inputStyle.Render(m.textarea.View()))
	return sb.String()
}

// ask runs one self-graded chat off the UI goroutine.
func (m tuiModel) ask(prompt string) tea.Cmd {
	flow, ctx := m.flow, m.ctx
	return func() tea.Msg {
		return replyMsg{reply: flow.Chat(ctx, prompt)}
	}
}

func (m *tuiModel) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m *tuiModel) renderHistory() string {
	var sb strings.Builder
	for _, e := range m.history {
		switch e.role {
		case "user":
			sb.WriteString(userStyle.Render("> " + e.content))
			sb.WriteString("\n\n")
		case "error":
			sb.WriteString(errorStyle.Render(e.content))
			sb.WriteString("\n\n")
		default:
			if e.grade != "" {
				sb.WriteString(gradeStyle.Render(fmt.Sprintf("grade (%s): %s", e.elapsed.Round(time.Millisecond), firstLine(e.grade))))
				sb.WriteString("\n")
			}
			sb.WriteString(m.renderMarkdown(e.content))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (m *tuiModel) renderMarkdown(md string) string {
	if m.renderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(max(m.width-4, 20)),
		)
		if err != nil {
			return md
		}
		m.renderer = r
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// runInteractiveChat starts the TUI with one flow for the whole session, so
// earlier exchanges stay in the conversation record.
func runInteractiveChat(parent context.Context) error {
	ctx, cancel := commandContext(parent, 0)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID := uuid.NewString()
	flow := a.newFlow(sessionID, true)

	p := tea.NewProgram(newTUIModel(ctx, flow), tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := p.Run()
	if err := saveHistory(cfg.Chat.HistoryDir, sessionID, flow.Messages()); err != nil {
		printErr("warning: %v", err)
	}
	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("chat UI failed: %w", runErr)
	}
	return nil
}
