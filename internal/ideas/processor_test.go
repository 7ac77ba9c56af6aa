package ideas

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/chat"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prototypeReply = "Here is the prototype.\n\n" +
	"main.py:\n```python\nfrom utils import greet\n\nprint(greet('world'))\n```\n\n" +
	"**utils.py**:\n```python\ndef greet(name):\n    return f'hello {name}'\n```\n"

func TestSplitModules(t *testing.T) {
	got := SplitModules(prototypeReply)
	want := []Module{
		{Name: "main.py", Content: "from utils import greet\n\nprint(greet('world'))\n"},
		{Name: "utils.py", Content: "def greet(name):\n    return f'hello {name}'\n"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("modules mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitModulesRejectsEscapes(t *testing.T) {
	assert.Empty(t, SplitModules("../evil.sh:\nrm -rf /\n"))
	assert.Empty(t, SplitModules("no headers at all"))
}

func TestProcessorWritesCombinedIdeaAndModules(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for _, idea := range []*Idea{
		{Topic: "t", Text: "idea A", Score: 9},
		{Topic: "t", Text: "idea B", Score: 4},
		{Topic: "t", Text: "idea C", Score: 7},
	} {
		require.NoError(t, s.Save(ctx, idea))
	}

	flow := &fakeFlow{respond: func(prompt string) *chat.Reply {
		if strings.HasPrefix(prompt, "Combine") {
			return &chat.Reply{Answer: "combined idea"}
		}
		return &chat.Reply{Answer: prototypeReply}
	}}
	out := t.TempDir()
	res, err := NewProcessor(flow, s, out, "busy cooks", 2).Process(ctx)
	require.NoError(t, err)

	require.Len(t, flow.prompts, 2)
	assert.Contains(t, flow.prompts[0], "superior solution for busy cooks")
	assert.Contains(t, flow.prompts[0], "Idea 1:\nidea A")
	assert.Contains(t, flow.prompts[0], "Idea 2:\nidea C")
	assert.NotContains(t, flow.prompts[0], "idea B")
	assert.Contains(t, flow.prompts[1], "combined idea")

	assert.Equal(t, "combined idea", res.Combined)
	assert.Equal(t, []string{
		filepath.Join(out, CombinedIdeaFile),
		filepath.Join(out, "main.py"),
		filepath.Join(out, "utils.py"),
	}, res.Files)

	data, err := os.ReadFile(filepath.Join(out, "utils.py"))
	require.NoError(t, err)
	assert.Equal(t, "def greet(name):\n    return f'hello {name}'\n", string(data))
}

func TestProcessorEmptyStore(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := NewProcessor(&fakeFlow{}, s, t.TempDir(), "t", 3).Process(context.Background())
	assert.ErrorIs(t, err, ErrNoIdeas)
}
