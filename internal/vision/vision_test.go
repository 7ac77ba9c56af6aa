package vision

import (
	"context"
	"errors"
	"testing"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	reply string
	err   error
	got   *llm.Request
}

func (s *stubClient) Provider() string { return "stub" }

func (s *stubClient) Chat(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.reply}, nil
}

func TestDescribe(t *testing.T) {
	c := &stubClient{reply: " A beach resort at sunset. "}
	d := New(c, "llava")

	text, err := d.Describe(context.Background(), "https://i.imgur.com/ygrwfdW.jpeg")
	require.NoError(t, err)
	assert.Equal(t, "A beach resort at sunset.", text)

	require.NotNil(t, c.got)
	assert.Equal(t, "llava", c.got.Model)
	assert.Empty(t, c.got.Tools)
	require.Len(t, c.got.Messages, 1)
	assert.Equal(t, "Generate a text description of the image at https://i.imgur.com/ygrwfdW.jpeg", c.got.Messages[0].Content)
}

func TestDescribeErrors(t *testing.T) {
	_, err := New(&stubClient{}, "m").Describe(context.Background(), "  ")
	assert.Error(t, err)

	_, err = New(&stubClient{reply: ""}, "m").Describe(context.Background(), "https://x/y.png")
	assert.ErrorIs(t, err, ErrEmptyDescription)

	transport := &llm.TransportError{Provider: "stub", Err: errors.New("down")}
	_, err = New(&stubClient{err: transport}, "m").Describe(context.Background(), "https://x/y.png")
	assert.True(t, llm.IsTransportError(err))
}
