package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/bench"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	benchLimit    int
	benchParallel int
	benchNoGrade  bool
)

// benchCmd scores the chat flow on benchmark suites
var benchCmd = &cobra.Command{
	Use:   "bench [suite...]",
	Short: "Run benchmark suites against the chat flow",
	Long: `Runs question answering, summarization and sentiment suites. Samples are read
from <bench.data_dir>/<suite>.jsonl. With no arguments every suite is run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		suites, err := selectSuites(args)
		if err != nil {
			return err
		}

		ctx, cancel := commandContext(cmd.Context(), timeout)
		defer cancel()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		runner := bench.NewRunner(func() bench.Chatter {
			return a.newFlow(uuid.NewString(), !benchNoGrade)
		}, orInt(benchParallel, cfg.Bench.Parallel))

		var results []*bench.Result
		for _, suite := range suites {
			path := filepath.Join(cfg.Bench.DataDir, suite.Name()+".jsonl")
			samples, err := bench.LoadSamples(path, orInt(benchLimit, cfg.Bench.Limit))
			if err != nil {
				logging.Get(logging.CategoryBench).Warn("skipping suite %s: %v", suite.Name(), err)
				continue
			}
			res, err := runner.Run(ctx, suite, samples)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		if len(results) == 0 {
			return fmt.Errorf("no suite data found in %s", cfg.Bench.DataDir)
		}

		report := bench.Report(results, time.Now())
		fmt.Fprint(cmd.OutOrStdout(), report)
		if cfg.Bench.Report != "" {
			if err := os.MkdirAll(filepath.Dir(cfg.Bench.Report), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(cfg.Bench.Report, []byte(report), 0644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
		}
		return nil
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchLimit, "limit", 0, "Samples per suite (default bench.limit, 0 for all)")
	benchCmd.Flags().IntVar(&benchParallel, "parallel", 0, "Concurrent samples (default bench.parallel)")
	benchCmd.Flags().BoolVar(&benchNoGrade, "no-grade", false, "Score the ungraded single-loop answer")
}

func selectSuites(names []string) ([]bench.Suite, error) {
	if len(names) == 0 {
		return bench.AllSuites(), nil
	}
	suites := make([]bench.Suite, 0, len(names))
	for _, name := range names {
		s, err := bench.SuiteByName(name)
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}
