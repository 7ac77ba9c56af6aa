package ideas

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/chat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFlow answers prompts with respond and records them.
type fakeFlow struct {
	prompts []string
	respond func(prompt string) *chat.Reply
}

func (f *fakeFlow) Chat(_ context.Context, prompt string) *chat.Reply {
	f.prompts = append(f.prompts, prompt)
	return f.respond(prompt)
}

func TestGeneratorStopsWhenFeasible(t *testing.T) {
	s, exportDir := newTestStore(t)
	checks := 0
	flow := &fakeFlow{respond: func(prompt string) *chat.Reply {
		if strings.HasPrefix(prompt, "Check if") {
			checks++
			if checks == 2 {
				return &chat.Reply{Answer: "This is feasible. stop"}
			}
			return &chat.Reply{Answer: "Not yet."}
		}
		return &chat.Reply{Answer: "idea text", Grade: "Overall: 6/10"}
	}}

	gen := NewGenerator(flow, s, GeneratorConfig{
		Topic:       "people who are too busy to cook",
		Constraints: []string{"Must be buildable by a single developer."},
		MaxRounds:   5,
	})
	res, err := gen.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Stopped)
	assert.Equal(t, 2, res.Rounds)
	require.Len(t, res.Ideas, 2)
	assert.InDelta(t, 6.0, res.Ideas[0].Score, 1e-9)
	assert.Len(t, flow.prompts, 4)
	assert.Contains(t, flow.prompts[0], "Generate an idea for people who are too busy to cook.")
	assert.Contains(t, flow.prompts[0], "- Must be buildable by a single developer.")

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, exportDir+"/idea_2_score_6.0.txt")
}

func TestGeneratorRoundLimit(t *testing.T) {
	s, _ := newTestStore(t)
	flow := &fakeFlow{respond: func(string) *chat.Reply { return &chat.Reply{Answer: "keep going"} }}

	res, err := NewGenerator(flow, s, GeneratorConfig{Topic: "t", MaxRounds: 3}).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Stopped)
	assert.Equal(t, 3, res.Rounds)
	assert.Len(t, res.Ideas, 3)
}

func TestGeneratorModelFailure(t *testing.T) {
	s, _ := newTestStore(t)
	boom := errors.New("transport down")
	flow := &fakeFlow{respond: func(string) *chat.Reply {
		return &chat.Reply{Answer: "An error occurred: transport down", Err: boom}
	}}

	res, err := NewGenerator(flow, s, GeneratorConfig{Topic: "t"}).Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, res.Ideas)
}

func TestGeneratorCancelled(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	flow := &fakeFlow{respond: func(string) *chat.Reply { return &chat.Reply{} }}

	_, err := NewGenerator(flow, s, GeneratorConfig{Topic: "t"}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, flow.prompts)
}
