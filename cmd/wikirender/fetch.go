package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lueurxax/wikirender/internal/app"
	"github.com/lueurxax/wikirender/internal/core/errors"
)

func newFetchCmd(getApp func() *app.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and render content from the configured wiki",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "extract <title>",
		Short: "Render the intro of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getApp().FetchExtract(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "diff <from-rev> <to-rev>",
		Short: "Render the diff between two revisions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseRevision(args[0])
			if err != nil {
				return err
			}

			to, err := parseRevision(args[1])
			if err != nil {
				return err
			}

			return getApp().FetchDiff(cmd.Context(), from, to)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "infobox <title>",
		Short: "Render the infoboxes of a page as embed JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getApp().FetchInfobox(cmd.Context(), args[0])
		},
	})

	return cmd
}

func parseRevision(raw string) (int64, error) {
	rev, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || rev <= 0 {
		return 0, fmt.Errorf("revision %q: %w", raw, errors.ErrInvalidInput)
	}

	return rev, nil
}
