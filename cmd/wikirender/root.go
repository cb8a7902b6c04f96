package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lueurxax/wikirender/internal/app"
	"github.com/lueurxax/wikirender/internal/locale"
	"github.com/lueurxax/wikirender/internal/platform/config"
)

const stdinName = "-"

func newRootCmd(cfg *config.Config, logger *zerolog.Logger) *cobra.Command {
	var application *app.App

	getApp := func() *app.App { return application }

	cmd := &cobra.Command{
		Use:           "wikirender",
		Short:         "Render MediaWiki HTML into chat markup",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !requiresApp(cmd) || application != nil {
				return nil
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := app.New(cfg, cmd.OutOrStdout(), logger)
			if err != nil {
				return err
			}

			application = a

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfg.RenderLocale, "locale", cfg.RenderLocale,
		fmt.Sprintf("Marker language as a BCP 47 tag (%s)", strings.Join(locale.Supported(), ", ")))
	cmd.PersistentFlags().StringVar(&cfg.WikiPageLinkBase, "base", cfg.WikiPageLinkBase, "Page URL relative links resolve against")

	cmd.AddCommand(newPlainCmd(getApp))
	cmd.AddCommand(newMarkupCmd(getApp))
	cmd.AddCommand(newDiffCmd(getApp))
	cmd.AddCommand(newInfoboxCmd(getApp))
	cmd.AddCommand(newFetchCmd(getApp))
	cmd.AddCommand(newServeCmd(getApp, cfg))

	return cmd
}

func requiresApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		name := c.Name()
		if name == "help" || name == "completion" {
			return false
		}
	}

	return true
}

// openInput returns the named file, or stdin for "" and "-".
func openInput(cmd *cobra.Command, file string) (io.ReadCloser, error) {
	if file == "" || file == stdinName {
		return io.NopCloser(cmd.InOrStdin()), nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	return f, nil
}
