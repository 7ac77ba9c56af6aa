package bench

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Sample is one benchmark item. Which fields are used depends on the suite.
type Sample struct {
	ID        string `json:"id"`
	Context   string `json:"context,omitempty"`
	Question  string `json:"question,omitempty"`
	Article   string `json:"article,omitempty"`
	Text      string `json:"text,omitempty"`
	Reference string `json:"reference,omitempty"` // expected answer or summary
	Label     int    `json:"label,omitempty"`     // sentiment: 1 positive, 0 negative
}

// Suite turns samples into prompts and scores answers.
type Suite interface {
	Name() string
	Prompt(s Sample) string
	Score(s Sample, answer string) map[string]float64
}

// Metric names.
const (
	MetricBLEU     = "bleu"
	MetricRouge1   = "rouge1"
	MetricRouge2   = "rouge2"
	MetricRougeL   = "rougeL"
	MetricAccuracy = "accuracy"
)

// QA asks a question about a context passage.
type QA struct{}

func (QA) Name() string { return "qa" }

func (QA) Prompt(s Sample) string {
	return fmt.Sprintf("Context: %s\n\nQuestion: %s\n\nAnswer:", s.Context, s.Question)
}

func (QA) Score(s Sample, answer string) map[string]float64 {
	m := rouge(s.Reference, answer)
	m[MetricBLEU] = BLEU(s.Reference, answer)
	return m
}

// Summarization asks for an article summary.
type Summarization struct{}

func (Summarization) Name() string { return "summarization" }

func (Summarization) Prompt(s Sample) string {
	return fmt.Sprintf("Summarize the following article:\n\n%s\n\nSummary:", s.Article)
}

func (Summarization) Score(s Sample, answer string) map[string]float64 {
	return rouge(s.Reference, answer)
}

// Sentiment asks for a positive/negative classification of a review.
type Sentiment struct{}

func (Sentiment) Name() string { return "sentiment" }

func (Sentiment) Prompt(s Sample) string {
	return fmt.Sprintf("Classify the sentiment of the following movie review as positive or negative:\n\n%s\n\nSentiment:", s.Text)
}

func (Sentiment) Score(s Sample, answer string) map[string]float64 {
	correct := 0.0
	if PredictSentiment(answer) == s.Label {
		correct = 1
	}
	return map[string]float64{MetricAccuracy: correct}
}

// PredictSentiment reads a model answer as 1 (positive) or 0 (negative).
// An answer mentioning both, or neither, counts as negative.
func PredictSentiment(answer string) int {
	a := strings.ToLower(answer)
	if strings.Contains(a, "positive") && !strings.Contains(a, "negative") {
		return 1
	}
	return 0
}

func rouge(reference, answer string) map[string]float64 {
	return map[string]float64{
		MetricRouge1: RougeN(reference, answer, 1),
		MetricRouge2: RougeN(reference, answer, 2),
		MetricRougeL: RougeL(reference, answer),
	}
}

// SuiteByName returns the suite with the given name.
func SuiteByName(name string) (Suite, error) {
	for _, s := range AllSuites() {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown benchmark suite %q", name)
}

// AllSuites returns every suite in run order.
func AllSuites() []Suite {
	return []Suite{QA{}, Summarization{}, Sentiment{}}
}

// LoadSamples reads a JSONL dataset, one Sample per line. limit <= 0 reads
// everything. Blank lines are skipped.
func LoadSamples(path string, limit int) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var samples []Sample
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var s Sample
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if s.ID == "" {
			s.ID = fmt.Sprintf("%d", line)
		}
		samples = append(samples, s)
		if limit > 0 && len(samples) >= limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return samples, nil
}
