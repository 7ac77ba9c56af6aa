package main

import (
	"fmt"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/ideas"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	ideasTopic  string
	ideasRounds int
	ideasTopN   int
)

// ideasCmd groups the idea generation commands
var ideasCmd = &cobra.Command{
	Use:   "ideas",
	Short: "Generate, grade and refine product ideas",
}

// ideasGenerateCmd generates graded ideas until one is judged feasible
var ideasGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate graded ideas into the idea store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd.Context(), timeout)
		defer cancel()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		store, err := ideas.OpenStore(cfg.Ideas.DB, cfg.Ideas.Dir)
		if err != nil {
			return err
		}
		defer store.Close()

		gen := ideas.NewGenerator(a.newFlow(uuid.NewString(), true), store, ideas.GeneratorConfig{
			Topic:       orString(ideasTopic, cfg.Ideas.Topic),
			Constraints: cfg.Ideas.Constraints,
			MaxRounds:   orInt(ideasRounds, cfg.Ideas.MaxRounds),
		})
		res, err := gen.Run(ctx)
		out := cmd.OutOrStdout()
		if res != nil {
			for _, idea := range res.Ideas {
				fmt.Fprintf(out, "round %d: score %.1f -> %s\n", idea.Round, idea.Score, idea.ExportName())
			}
			fmt.Fprintf(out, "%d ideas in %d rounds (feasible: %v)\n", len(res.Ideas), res.Rounds, res.Stopped)
		}
		return err
	},
}

// ideasProcessCmd combines the best stored ideas into a prototype
var ideasProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Combine the top ideas and write a refined prototype",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd.Context(), timeout)
		defer cancel()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		store, err := ideas.OpenStore(cfg.Ideas.DB, cfg.Ideas.Dir)
		if err != nil {
			return err
		}
		defer store.Close()

		proc := ideas.NewProcessor(a.newFlow(uuid.NewString(), true), store,
			cfg.Ideas.OutputDir, orString(ideasTopic, cfg.Ideas.Topic), orInt(ideasTopN, cfg.Ideas.TopN))
		res, err := proc.Process(ctx)
		if err != nil {
			return err
		}
		for _, f := range res.Files {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return nil
	},
}

func init() {
	ideasCmd.PersistentFlags().StringVar(&ideasTopic, "topic", "", "Idea topic (default ideas.topic)")
	ideasGenerateCmd.Flags().IntVar(&ideasRounds, "rounds", 0, "Maximum rounds (default ideas.max_rounds)")
	ideasProcessCmd.Flags().IntVar(&ideasTopN, "top", 0, "Number of ideas to combine (default ideas.top_n)")

	ideasCmd.AddCommand(ideasGenerateCmd)
	ideasCmd.AddCommand(ideasProcessCmd)
}

func orString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orInt(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
