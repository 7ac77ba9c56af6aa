package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var numResults int

// searchCmd runs a web search
var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the web through the retriever",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd.Context(), timeout)
		defer cancel()

		a, err := newRetrievalApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.retriever.Search(ctx, strings.Join(args, " "), numResults)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, r := range results {
			fmt.Fprintf(out, "%d. %s\n   %s\n", i+1, r.Title, r.Link)
			if r.Description != "" {
				fmt.Fprintf(out, "   %s\n", r.Description)
			}
		}
		return nil
	},
}

// scrapeCmd prints the readable text of a page
var scrapeCmd = &cobra.Command{
	Use:   "scrape [url]",
	Short: "Scrape the readable text of a web page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd.Context(), timeout)
		defer cancel()

		a, err := newRetrievalApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		text, err := a.retriever.Scrape(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&numResults, "num", "n", 0, "Number of results (0 uses retrieval.num_results)")
}
