package main

import (
	"fmt"
	"strings"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/chat"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var noGrade bool

// chatCmd answers one prompt
var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Answer one prompt with self-grading",
	Long: `Runs the tool-augmented conversation loop for a single prompt, grades the
answer and prints the revised answer. Use --no-grade to skip grading.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd.Context(), timeout)
		defer cancel()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		sessionID := uuid.NewString()
		flow := a.newFlow(sessionID, !noGrade)
		reply := flow.Chat(ctx, strings.Join(args, " "))
		if err := saveHistory(cfg.Chat.HistoryDir, sessionID, flow.Messages()); err != nil {
			printErr("warning: %v", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderReply(reply, 100))
		return reply.Err
	},
}

func init() {
	chatCmd.Flags().BoolVar(&noGrade, "no-grade", false, "Skip self-grading and run a single loop")
}

// renderReply formats a reply as markdown and renders it for the terminal.
// Rendering failures fall back to the raw markdown.
func renderReply(reply *chat.Reply, width int) string {
	var sb strings.Builder
	if reply.Grade != "" {
		sb.WriteString("## Grade\n\n")
		sb.WriteString(reply.Grade)
		sb.WriteString("\n\n## Answer\n\n")
	}
	sb.WriteString(reply.Answer)
	md := sb.String()

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}
