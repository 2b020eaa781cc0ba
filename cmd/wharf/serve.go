package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wharfside/wharf/pkg/site"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve personal sites over HTTP",
	Long: `Serve resolves and renders tenant sites from the record store. When a
tenant session is configured and the namespace rollout is enabled, visiting
that tenant's site also triggers a best-effort namespace migration in the
background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := buildLogger()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app := site.New(siteConfig(), log)
		return app.Run(ctx)
	},
}
