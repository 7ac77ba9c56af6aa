package main

import (
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/server"

	"github.com/spf13/cobra"
)

var serveAddr string

// serveCmd starts the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat, search and scrape HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		// The server runs until interrupted; --timeout does not apply.
		ctx, cancel := commandContext(cmd.Context(), 0)
		defer cancel()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		stop := watchConfig(ctx, configPath)
		defer stop()

		srv := server.NewServer(func(sessionID string, grade bool) server.Chatter {
			return a.newFlow(sessionID, grade)
		}, a.retriever, cfg.GetRequestTimeout())
		return srv.ListenAndServe(ctx, orString(serveAddr, cfg.Server.Addr))
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default server.addr)")
}
