// Package render combines the transcoder, diff renderer and infobox
// flattener into the operations the CLI and HTTP surfaces expose.
package render

import (
	"io"

	"github.com/lueurxax/wikirender/internal/locale"
	"github.com/lueurxax/wikirender/internal/render/diff"
	"github.com/lueurxax/wikirender/internal/render/infobox"
	"github.com/lueurxax/wikirender/internal/render/markup"
)

// Service holds the immutable render settings shared by every request.
type Service struct {
	Transcoder       *markup.Transcoder
	PageLinkBase     string
	DefaultThumbnail string
	ExtractLimit     int
	MessageLimit     int
}

// InfoboxMeta is the page context placed around flattened infobox fields.
type InfoboxMeta struct {
	Title string
	// Description is HTML, usually the page extract.
	Description string
}

// NewService creates a service with the given ignore rules.
func NewService(rules markup.IgnoreRules, pageLinkBase, defaultThumbnail string, extractLimit, messageLimit int) *Service {
	return &Service{
		Transcoder:       markup.NewTranscoder(rules),
		PageLinkBase:     pageLinkBase,
		DefaultThumbnail: defaultThumbnail,
		ExtractLimit:     extractLimit,
		MessageLimit:     messageLimit,
	}
}

// Plain renders html as plain text, truncated to limit with the localized
// ellipsis when limit is positive.
func (s *Service) Plain(html string, limit int, markers locale.Markers) string {
	text := s.Transcoder.Plain(html)
	if limit > 0 {
		text = markup.Truncate(text, limit, markup.DefaultMaxExtra, markers.Ellipsis)
	}

	return text
}

// Markup renders html as markup. An empty base falls back to the
// configured page link base.
func (s *Service) Markup(html, base string, limit int) string {
	return s.Transcoder.Markup(html, s.options(base, limit))
}

// MarkupReader streams r through the transcoder.
func (s *Service) MarkupReader(r io.Reader, base string, limit int) (string, error) {
	return s.Transcoder.Render(r, markup.ModeMarkup, s.options(base, limit))
}

func (s *Service) options(base string, limit int) markup.Options {
	if base == "" {
		base = s.PageLinkBase
	}

	return markup.Options{PageLinkBase: base, Limit: limit}
}

// Diff renders a revision diff table with the given markers.
func (s *Service) Diff(html string, markers locale.Markers) diff.Pair {
	return diff.NewRenderer(markers).Render(html)
}

// Infobox flattens docs into an embed. A broken infobox gets the localized
// notice as footer.
func (s *Service) Infobox(docs []infobox.Document, meta InfoboxMeta, markers locale.Markers) *infobox.Embed {
	e := &infobox.Embed{
		Title:     markup.LimitLength(markup.EscapeText(meta.Title), infobox.TitleLimit, markup.DefaultMaxExtra),
		Thumbnail: s.DefaultThumbnail,
		Fields:    []infobox.Field{},
	}

	if meta.Description != "" {
		limit := s.ExtractLimit
		if limit <= 0 {
			limit = infobox.DescriptionLimit
		}

		e.Description = s.Markup(meta.Description, "", limit)
	}

	f := &infobox.Flattener{
		PageLinkBase:     s.PageLinkBase,
		DefaultThumbnail: s.DefaultThumbnail,
		Transcoder:       s.Transcoder,
	}

	for _, doc := range docs {
		f.FlattenDocument(doc, e)
	}

	if e.BrokenInfobox {
		e.Footer = markers.BrokenInfobox
	}

	return e
}

// Split chunks text at the configured message limit.
func (s *Service) Split(text string) []string {
	return markup.SplitMessage(text, markup.SplitOptions{MaxLength: s.MessageLimit})
}
