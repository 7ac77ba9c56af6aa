// Package bench scores the self-grading flow on question answering,
// summarization and sentiment datasets.
package bench

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/chat"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"

	"golang.org/x/sync/errgroup"
)

// Chatter answers one prompt.
type Chatter interface {
	Chat(ctx context.Context, prompt string) *chat.Reply
}

// Runner runs suites with a bounded number of concurrent samples. Each
// sample gets its own Chatter from the factory.
type Runner struct {
	newChatter func() Chatter
	parallel   int
}

// NewRunner creates a Runner. parallel <= 0 runs one sample at a time.
func NewRunner(newChatter func() Chatter, parallel int) *Runner {
	if parallel <= 0 {
		parallel = 1
	}
	return &Runner{newChatter: newChatter, parallel: parallel}
}

// Result is the aggregate of one suite run.
type Result struct {
	Suite    string
	Metrics  map[string]float64 // mean over scored samples
	Scored   int
	Failed   int
	Duration time.Duration
}

// Run scores every sample. Samples whose chat fails are logged and skipped.
// The returned error is only the context's.
func (r *Runner) Run(ctx context.Context, suite Suite, samples []Sample) (*Result, error) {
	start := time.Now()
	logging.Bench("starting %s benchmark: %d samples, parallel=%d", suite.Name(), len(samples), r.parallel)

	var mu sync.Mutex
	sums := make(map[string]float64)
	res := &Result{Suite: suite.Name(), Metrics: make(map[string]float64)}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.parallel)
	for i, s := range samples {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			reply := r.newChatter().Chat(egCtx, suite.Prompt(s))

			mu.Lock()
			defer mu.Unlock()
			if reply.Err != nil {
				res.Failed++
				logging.Get(logging.CategoryBench).Error("error processing %s sample %d (%s): %v", suite.Name(), i+1, s.ID, reply.Err)
				return nil
			}
			for k, v := range suite.Score(s, reply.Answer) {
				sums[k] += v
			}
			res.Scored++
			logging.Bench("processed %s sample %d/%d", suite.Name(), i+1, len(samples))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if res.Scored == 0 {
		logging.Get(logging.CategoryBench).Warn("no valid scores were calculated for %s benchmark", suite.Name())
	} else {
		for k, v := range sums {
			res.Metrics[k] = v / float64(res.Scored)
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

// Report renders results as a markdown document.
func Report(results []*Result, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Benchmark Results\n\nGenerated %s\n", now.Format(time.RFC3339))
	for _, r := range results {
		fmt.Fprintf(&sb, "\n## %s\n\n", r.Suite)
		fmt.Fprintf(&sb, "Scored %d samples, %d failed, in %s.\n\n", r.Scored, r.Failed, r.Duration.Round(time.Millisecond))
		if len(r.Metrics) == 0 {
			sb.WriteString("No scores.\n")
			continue
		}
		sb.WriteString("| Metric | Score |\n|---|---|\n")
		names := make([]string, 0, len(r.Metrics))
		for k := range r.Metrics {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fmt.Fprintf(&sb, "| %s | %.4f |\n", k, r.Metrics[k])
		}
	}
	return sb.String()
}
