// Package ideas generates, grades, stores and refines product ideas using the
// self-grading chat flow.
package ideas

import (
	"context"
	"fmt"
	"strings"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/chat"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"
)

// Chatter is the self-grading flow ideas are generated with.
type Chatter interface {
	Chat(ctx context.Context, prompt string) *chat.Reply
}

// stopMarker ends generation when the feasibility check contains it.
const stopMarker = "STOP"

// GeneratorConfig holds generation settings.
type GeneratorConfig struct {
	Topic       string
	Constraints []string
	MaxRounds   int
}

// Generator asks for ideas until one is judged feasible or the round limit
// is reached.
type Generator struct {
	flow  Chatter
	store *Store
	cfg   GeneratorConfig
}

// NewGenerator creates a Generator.
func NewGenerator(flow Chatter, store *Store, cfg GeneratorConfig) *Generator {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 10
	}
	return &Generator{flow: flow, store: store, cfg: cfg}
}

// GenerateResult summarizes a Run.
type GenerateResult struct {
	Ideas   []Idea
	Rounds  int
	Stopped bool // the model judged the last idea feasible
}

// Run generates ideas. A failed model exchange ends the run with an error;
// ideas saved before it are kept.
func (g *Generator) Run(ctx context.Context) (*GenerateResult, error) {
	res := &GenerateResult{}
	prompt := ideaPrompt(g.cfg.Topic, g.cfg.Constraints)

	for round := 1; round <= g.cfg.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Rounds = round
		logging.Ideas("round %d/%d: generating idea", round, g.cfg.MaxRounds)

		reply := g.flow.Chat(ctx, prompt)
		if reply.Err != nil {
			return res, fmt.Errorf("round %d: generate idea: %w", round, reply.Err)
		}

		grade := ParseGrade(reply.Grade)
		if !grade.Found {
			logging.Get(logging.CategoryIdeas).Warn("round %d: no numeric grade in feedback", round)
		}
		idea := Idea{
			Topic: g.cfg.Topic,
			Text:  reply.Answer,
			Grade: reply.Grade,
			Score: grade.Score,
			Round: round,
		}
		if err := g.store.Save(ctx, &idea); err != nil {
			return res, err
		}
		res.Ideas = append(res.Ideas, idea)

		check := g.flow.Chat(ctx, feasibilityPrompt(idea.Text))
		if check.Err != nil {
			return res, fmt.Errorf("round %d: feasibility check: %w", round, check.Err)
		}
		if strings.Contains(strings.ToUpper(check.Answer), stopMarker) {
			logging.Ideas("round %d: idea judged feasible, stopping", round)
			res.Stopped = true
			return res, nil
		}
	}
	logging.Ideas("round limit of %d reached", g.cfg.MaxRounds)
	return res, nil
}

func ideaPrompt(topic string, constraints []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate an idea for %s.", topic)
	if len(constraints) > 0 {
		sb.WriteString("\n\nThe idea must satisfy these constraints:\n")
		for _, c := range constraints {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}
	sb.WriteString("\nDescribe the idea, who it is for and how it would be built.")
	return sb.String()
}

func feasibilityPrompt(idea string) string {
	return fmt.Sprintf("Check if the following idea is feasible and if it is reply with '%s':\n\n%s", stopMarker, idea)
}
