package ideas

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"
)

// ErrNoIdeas is returned by Process when the store is empty.
var ErrNoIdeas = errors.New("no stored ideas")

// CombinedIdeaFile is the name the combined idea is written under.
const CombinedIdeaFile = "combined_improved_idea.txt"

// Processor combines the best stored ideas and turns the result into a
// prototype written to disk.
type Processor struct {
	flow      Chatter
	store     *Store
	outputDir string
	topN      int
	topic     string
}

// NewProcessor creates a Processor.
func NewProcessor(flow Chatter, store *Store, outputDir, topic string, topN int) *Processor {
	if topN <= 0 {
		topN = 3
	}
	return &Processor{flow: flow, store: store, outputDir: outputDir, topN: topN, topic: topic}
}

// ProcessResult lists what Process produced.
type ProcessResult struct {
	Combined string
	Files    []string // paths written, combined idea first
}

// Process combines the top ideas, refines the combination into a prototype,
// and writes both to the output directory.
func (p *Processor) Process(ctx context.Context) (*ProcessResult, error) {
	best, err := p.store.Top(ctx, p.topN)
	if err != nil {
		return nil, err
	}
	if len(best) == 0 {
		return nil, ErrNoIdeas
	}
	logging.Ideas("combining %d ideas", len(best))

	combined := p.flow.Chat(ctx, combinePrompt(p.topic, best))
	if combined.Err != nil {
		return nil, fmt.Errorf("combine ideas: %w", combined.Err)
	}

	logging.Ideas("refining prototype")
	prototype := p.flow.Chat(ctx, refinePrompt(combined.Answer))
	if prototype.Err != nil {
		return nil, fmt.Errorf("refine prototype: %w", prototype.Err)
	}

	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	res := &ProcessResult{Combined: combined.Answer}
	path := filepath.Join(p.outputDir, CombinedIdeaFile)
	if err := os.WriteFile(path, []byte(combined.Answer), 0644); err != nil {
		return nil, fmt.Errorf("write combined idea: %w", err)
	}
	res.Files = append(res.Files, path)

	for _, m := range SplitModules(prototype.Answer) {
		path := filepath.Join(p.outputDir, m.Name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create module directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(m.Content), 0644); err != nil {
			return nil, fmt.Errorf("write module %s: %w", m.Name, err)
		}
		res.Files = append(res.Files, path)
	}
	logging.Ideas("processing complete: %d files written to %s", len(res.Files), p.outputDir)
	return res, nil
}

// Module is one file of a generated prototype.
type Module struct {
	Name    string
	Content string
}

var moduleHeader = regexp.MustCompile("(?m)^[ \\t#*]*`?([A-Za-z0-9_\\-]+(?:/[A-Za-z0-9_\\-]+)*\\.[A-Za-z0-9]+)`?\\**:[ \\t]*")

var fenceLine = regexp.MustCompile("(?m)^[ \\t]*```[A-Za-z0-9_+\\-]*[ \\t]*$\\n?")

// SplitModules splits a prototype on "name.ext:" headers and strips
// markdown fences from each module. Text before the first header is dropped.
func SplitModules(text string) []Module {
	locs := moduleHeader.FindAllStringSubmatchIndex(text, -1)
	var modules []Module
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		name := filepath.Clean(text[loc[2]:loc[3]])
		if strings.HasPrefix(name, "..") {
			continue
		}
		content := cleanCode(text[loc[1]:end])
		if content == "" {
			continue
		}
		modules = append(modules, Module{Name: name, Content: content + "\n"})
	}
	return modules
}

func cleanCode(code string) string {
	return strings.TrimSpace(fenceLine.ReplaceAllString(code, ""))
}

func combinePrompt(topic string, best []Idea) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Combine and improve upon the following ideas to create a superior solution for %s:\n\n", topic)
	for i, idea := range best {
		fmt.Fprintf(&sb, "Idea %d:\n%s\n\n", i+1, idea.Text)
	}
	sb.WriteString("Provide a detailed description of the combined and improved idea.")
	return sb.String()
}

func refinePrompt(idea string) string {
	return "Based on the following idea, create a more detailed and robust prototype:\n\n" + idea + "\n\n" +
		"The prototype should:\n" +
		"1. Include proper error handling and logging\n" +
		"2. Follow best practices for code organization and modularity\n" +
		"3. Implement key functionalities described in the idea\n" +
		"4. Include comments explaining the code and its relation to the idea\n" +
		"5. Be runnable on any PC with the standard library of its language\n\n" +
		"Provide the prototype as separate modules, each introduced by a line with its file name " +
		"followed by a colon (e.g. main.py:, utils.py:), with clear explanations for each module."
}
