package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"
)

type historyFile struct {
	SessionID string        `json:"session_id"`
	SavedAt   time.Time     `json:"saved_at"`
	Messages  []llm.Message `json:"messages"`
}

// saveHistory writes a conversation record to dir/<sessionID>.json. An empty
// dir disables history.
func saveHistory(dir, sessionID string, msgs []llm.Message) error {
	if dir == "" || len(msgs) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	data, err := json.MarshalIndent(historyFile{
		SessionID: sessionID,
		SavedAt:   time.Now(),
		Messages:  msgs,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	path := filepath.Join(dir, sessionID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}
