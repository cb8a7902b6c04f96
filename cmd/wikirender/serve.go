package main

import (
	"github.com/spf13/cobra"

	"github.com/lueurxax/wikirender/internal/app"
	"github.com/lueurxax/wikirender/internal/platform/config"
)

func newServeCmd(getApp func() *app.App, cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the render API with health and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return getApp().Serve(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&cfg.HTTPPort, "port", cfg.HTTPPort, "HTTP listen port")

	return cmd
}
