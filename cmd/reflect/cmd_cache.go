package main

import (
	"fmt"
	"sort"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/cache"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/llm"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/tools"

	"github.com/spf13/cobra"
)

// cacheCmd groups cache maintenance commands
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the content cache",
}

// cacheStatsCmd counts cache files by state
var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show live, expired and corrupt cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cache.New(cfg.Cache.Dir)
		if err != nil {
			return err
		}
		st, err := c.Stats()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "dir:     %s\n", c.Dir())
		fmt.Fprintf(out, "live:    %d\n", st.Live)
		fmt.Fprintf(out, "expired: %d\n", st.Expired)
		fmt.Fprintf(out, "corrupt: %d\n", st.Corrupt)
		fmt.Fprintf(out, "bytes:   %d\n", st.Bytes)
		return nil
	},
}

// toolsCmd lists the tools offered to the model
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tool definitions offered to the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, err := toolDefinitions()
		if err != nil {
			return err
		}
		sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
		for _, d := range defs {
			fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", d.Name, d.Description)
		}
		return nil
	},
}

// toolDefinitions returns the configured definition document, or the
// built-in definitions when none is configured. Built-ins are built without
// backends since only their schemas are read.
func toolDefinitions() ([]llm.ToolDefinition, error) {
	if cfg.Chat.ToolsFile != "" {
		return tools.LoadDefinitions(cfg.Chat.ToolsFile)
	}
	reg := tools.NewRegistry()
	for _, tool := range []*tools.Tool{
		tools.GoogleSearchTool(nil, cfg.Retrieval.NumResults),
		tools.ScrapeWebsiteTool(nil),
		tools.DescribeImageTool(nil),
		tools.AnalyzeCodeTool(nil),
		tools.TestCodeTool(nil),
		tools.DebugCodeTool(nil),
	} {
		if err := reg.Register(tool); err != nil {
			return nil, err
		}
	}
	return reg.Definitions(), nil
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
}
