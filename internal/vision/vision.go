// Package vision describes images for the conversation loop.
package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"
)

// ErrEmptyDescription is returned when the model answers with no text.
var ErrEmptyDescription = errors.New("vision model returned an empty description")

// Describer turns image URLs into text with a vision-capable model.
type Describer struct {
	client llm.Client
	model  string
}

// New creates a Describer. An empty model uses the client's default.
func New(client llm.Client, model string) *Describer {
	return &Describer{client: client, model: model}
}

// Describe returns a text description of the image at imageURL.
func (d *Describer) Describe(ctx context.Context, imageURL string) (string, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return "", errors.New("image URL is required")
	}

	start := time.Now()
	prompt := fmt.Sprintf("Generate a text description of the image at %s", imageURL)
	text, err := llm.Complete(ctx, d.client, d.model, prompt)
	if err != nil {
		return "", fmt.Errorf("describe %s: %w", imageURL, err)
	}
	if text == "" {
		return "", ErrEmptyDescription
	}
	logging.Vision("described %s in %v (%d chars)", imageURL, time.Since(start), len(text))
	return text, nil
}
