// Package app wires configuration into the renderers and exposes the run
// modes of the CLI:
//
//   - Render modes: plain, markup, diff and infobox over a local input
//   - Fetch modes: the same renderers over live wiki API responses
//   - Serve mode: the HTTP render API next to health and metrics endpoints
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lueurxax/wikirender/internal/core/errors"
	"github.com/lueurxax/wikirender/internal/locale"
	"github.com/lueurxax/wikirender/internal/platform/config"
	"github.com/lueurxax/wikirender/internal/platform/observability"
	"github.com/lueurxax/wikirender/internal/render"
	"github.com/lueurxax/wikirender/internal/render/diff"
	"github.com/lueurxax/wikirender/internal/render/infobox"
	"github.com/lueurxax/wikirender/internal/render/markup"
	"github.com/lueurxax/wikirender/internal/renderapi"
	"github.com/lueurxax/wikirender/internal/wikiapi"
)

const (
	chunkSeparator = "\n-----\n"
	logFieldMode   = "mode"
	logFieldTitle  = "title"

	ModePlain   = "plain"
	ModeMarkup  = "markup"
	ModeDiff    = "diff"
	ModeInfobox = "infobox"
	ModeExtract = "extract"
)

// App holds the application dependencies and provides methods to run different modes.
type App struct {
	cfg     *config.Config
	service *render.Service
	markers locale.Markers
	out     io.Writer
	logger  *zerolog.Logger
}

// New creates an App writing rendered output to out.
func New(cfg *config.Config, out io.Writer, logger *zerolog.Logger) (*App, error) {
	rules, err := ignoreRules(cfg)
	if err != nil {
		return nil, err
	}

	service := render.NewService(
		rules,
		cfg.WikiPageLinkBase,
		cfg.RenderDefaultThumbnail,
		cfg.RenderExtractLimit,
		cfg.RenderMessageLimit,
	)

	return &App{
		cfg:     cfg,
		service: service,
		markers: locale.For(cfg.RenderLocale),
		out:     out,
		logger:  logger,
	}, nil
}

// ignoreRules layers the optional TOML file and the configured classes over
// the defaults.
func ignoreRules(cfg *config.Config) (markup.IgnoreRules, error) {
	rules := markup.DefaultIgnoreRules()

	if cfg.RenderIgnoreRulesFile != "" {
		var err error

		rules, err = markup.LoadIgnoreRules(cfg.RenderIgnoreRulesFile)
		if err != nil {
			return markup.IgnoreRules{}, err
		}
	}

	return rules.WithClasses(cfg.RenderIgnoredClasses...), nil
}

// RenderPlain renders the HTML read from r as plain text.
func (a *App) RenderPlain(r io.Reader) error {
	text, err := a.service.Transcoder.Render(r, markup.ModePlain, markup.Options{})
	if err != nil {
		return fmt.Errorf("render plain: %w", err)
	}

	return a.writeChunks(ModePlain, text)
}

// RenderMarkup renders the HTML read from r as markup, bounded by limit when positive.
func (a *App) RenderMarkup(r io.Reader, limit int) error {
	text, err := a.service.MarkupReader(r, "", limit)
	if err != nil {
		return fmt.Errorf("render markup: %w", err)
	}

	return a.writeChunks(ModeMarkup, text)
}

// RenderDiff renders the diff table read from r.
func (a *App) RenderDiff(r io.Reader) error {
	pair, err := diff.NewRenderer(a.markers).RenderReader(r)
	if err != nil {
		return fmt.Errorf("render diff: %w", err)
	}

	return a.writeDiff(pair)
}

// RenderInfobox flattens the infoboxes JSON read from r and writes the embed as JSON.
func (a *App) RenderInfobox(r io.Reader, meta render.InfoboxMeta) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read infoboxes: %w", err)
	}

	docs, err := infobox.DecodeDocuments(data)
	if err != nil {
		return err
	}

	return a.writeEmbed(meta.Title, a.service.Infobox(docs, meta, a.markers))
}

// FetchExtract renders the intro of title from the configured wiki.
func (a *App) FetchExtract(ctx context.Context, title string) error {
	client, err := a.newWikiClient()
	if err != nil {
		return err
	}

	extract, err := client.Extract(ctx, title)
	if err != nil {
		return err
	}

	a.logger.Info().Str(logFieldTitle, extract.Title).Msg("Fetched extract")

	return a.writeChunks(ModeExtract, a.service.Markup(extract.HTML, "", a.cfg.RenderExtractLimit))
}

// FetchDiff renders the diff between two revisions from the configured wiki.
func (a *App) FetchDiff(ctx context.Context, fromRev, toRev int64) error {
	client, err := a.newWikiClient()
	if err != nil {
		return err
	}

	cmp, err := client.Compare(ctx, fromRev, toRev)
	if err != nil {
		return err
	}

	return a.writeDiff(a.service.Diff(cmp.HTML, a.markers))
}

// FetchInfobox renders the infoboxes of title, with its extract as
// description when the wiki provides one.
func (a *App) FetchInfobox(ctx context.Context, title string) error {
	client, err := a.newWikiClient()
	if err != nil {
		return err
	}

	docs, err := client.Infoboxes(ctx, title)
	if err != nil {
		return err
	}

	meta := render.InfoboxMeta{Title: title}

	extract, err := client.Extract(ctx, title)

	switch {
	case err == nil:
		meta.Title = extract.Title
		meta.Description = extract.HTML
	case errors.Is(err, errors.ErrNotFound), errors.Is(err, errors.ErrEmptyResponse):
		a.logger.Debug().Err(err).Str(logFieldTitle, title).Msg("No extract for infobox description")
	default:
		return err
	}

	return a.writeEmbed(meta.Title, a.service.Infobox(docs, meta, a.markers))
}

// Serve runs the HTTP render API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	a.logger.Info().Str("locale", a.cfg.RenderLocale).Msg("Starting serve mode")

	handler := renderapi.NewHandler(a.service, a.cfg.RenderLocale, renderapi.RateLimit{
		RPS:        a.cfg.HTTPRateLimitRPS,
		TrustProxy: a.cfg.HTTPTrustProxy,
	}, a.logger)
	srv := observability.NewServerWithRender(a.cfg.HTTPPort, handler, a.logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("http server start: %w", err)
	}

	return nil
}

func (a *App) newWikiClient() (*wikiapi.Client, error) {
	if a.cfg.WikiAPIURL == "" {
		return nil, fmt.Errorf("WIKI_API_URL is required for fetch: %w", errors.ErrInvalidConfig)
	}

	fetcher := wikiapi.NewFetcher(a.cfg.WikiFetchRPS, a.cfg.WikiFetchTimeout)

	client, err := wikiapi.NewClient(a.cfg.WikiAPIURL, fetcher, a.logger)
	if err != nil {
		return nil, fmt.Errorf("wiki client init: %w", err)
	}

	return client, nil
}

func (a *App) writeDiff(pair diff.Pair) error {
	var sections []string

	if pair.Removed != "" {
		sections = append(sections, pair.Removed)
	}

	if pair.Added != "" {
		sections = append(sections, pair.Added)
	}

	return a.writeChunks(ModeDiff, strings.Join(sections, "\n\n"))
}

func (a *App) writeEmbed(title string, e *infobox.Embed) error {
	if e.BrokenInfobox {
		observability.BrokenInfoboxes.Inc()
		a.logger.Warn().Str(logFieldTitle, title).Msg("Infobox has unresolved links")
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")

	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("write embed: %w", err)
	}

	return nil
}

// writeChunks writes text split at the message limit, one separator line
// between chunks.
func (a *App) writeChunks(mode, text string) error {
	chunks := a.service.Split(text)
	observability.RenderedChunks.WithLabelValues(mode).Add(float64(len(chunks)))

	a.logger.Debug().Str(logFieldMode, mode).Int("chunks", len(chunks)).Msg("Rendered")

	if _, err := io.WriteString(a.out, strings.Join(chunks, chunkSeparator)+"\n"); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return nil
}
