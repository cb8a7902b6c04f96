package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/lueurxax/wikirender/internal/app"
	"github.com/lueurxax/wikirender/internal/render"
)

// withInput runs fn over the --file input, closing it afterwards.
func withInput(cmd *cobra.Command, file string, fn func(io.Reader) error) error {
	in, err := openInput(cmd, file)
	if err != nil {
		return err
	}
	defer in.Close()

	return fn(in)
}

func newPlainCmd(getApp func() *app.App) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "plain",
		Short: "Render HTML as plain text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withInput(cmd, file, getApp().RenderPlain)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", stdinName, "HTML input file")

	return cmd
}

func newMarkupCmd(getApp func() *app.App) *cobra.Command {
	var (
		file  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "markup",
		Short: "Render HTML as chat markup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withInput(cmd, file, func(r io.Reader) error {
				return getApp().RenderMarkup(r, limit)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", stdinName, "HTML input file")
	cmd.Flags().IntVar(&limit, "limit", 0, "Output limit in UTF-16 units (0 = unbounded)")

	return cmd
}

func newDiffCmd(getApp func() *app.App) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Render a MediaWiki diff table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withInput(cmd, file, getApp().RenderDiff)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", stdinName, "Diff table HTML input file")

	return cmd
}

func newInfoboxCmd(getApp func() *app.App) *cobra.Command {
	var (
		file string
		meta render.InfoboxMeta
	)

	cmd := &cobra.Command{
		Use:   "infobox",
		Short: "Flatten infobox JSON into embed fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withInput(cmd, file, func(r io.Reader) error {
				return getApp().RenderInfobox(r, meta)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", stdinName, "Infoboxes JSON input file")
	cmd.Flags().StringVar(&meta.Title, "title", "", "Embed title")
	cmd.Flags().StringVar(&meta.Description, "description", "", "Embed description HTML")

	return cmd
}
