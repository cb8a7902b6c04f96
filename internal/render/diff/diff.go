// Package diff renders a MediaWiki two-column diff table into a bounded pair
// of removed and added text.
package diff

import (
	"io"
	"strings"

	"github.com/lueurxax/wikirender/internal/locale"
	"github.com/lueurxax/wikirender/internal/render/htmlstream"
	"github.com/lueurxax/wikirender/internal/render/markup"
)

// SectionLength bounds each side of the rendered pair.
const SectionLength = 1000

// Pair is the rendered diff. An untouched side is empty.
type Pair struct {
	Removed string `json:"removed"`
	Added   string `json:"added"`
}

// Renderer turns diff tables into Pairs using localized markers.
type Renderer struct {
	Markers locale.Markers
}

// NewRenderer creates a renderer for the given markers.
func NewRenderer(markers locale.Markers) *Renderer {
	return &Renderer{Markers: markers}
}

// Render renders a diff table held in memory.
func (r *Renderer) Render(html string) Pair {
	s := r.newState()
	htmlstream.WalkString(html, s)

	return s.finish()
}

// RenderReader renders a diff table from r, stopping as soon as both sides
// are over budget. Only read errors are returned.
func (r *Renderer) RenderReader(rd io.Reader) (Pair, error) {
	s := r.newState()
	if err := htmlstream.Walk(rd, s); err != nil {
		return Pair{}, err
	}

	return s.finish(), nil
}

func (r *Renderer) newState() *state {
	seed := markup.Length(r.Markers.More)

	return &state{
		markers: r.Markers,
		added:   column{units: seed, wrap: "**"},
		removed: column{units: seed, wrap: "~~"},
	}
}

type side int

const (
	sideNone side = iota
	sideAdded
	sideRemoved
)

// column accumulates one side of the pair.
type column struct {
	out      strings.Builder
	units    int
	overflow bool
	wrap     string

	// per row
	changed rowText
	line    rowText
	touched bool
}

// rowText is a row buffer that stops growing once it cannot fit anyway.
type rowText struct {
	sb    strings.Builder
	units int
}

func (t *rowText) add(s string) {
	if t.units > SectionLength {
		return
	}

	t.sb.WriteString(s)
	t.units += markup.Length(s)
}

func (t *rowText) reset() {
	t.sb.Reset()
	t.units = 0
}

// state is the per-call renderer state. It implements htmlstream.Handler.
type state struct {
	markers locale.Markers

	added   column
	removed column

	cell      side
	inChange  int
	wholeLine bool
	marker    bool
}

func (s *state) Stopped() bool {
	return s.added.units > SectionLength && s.removed.units > SectionLength
}

func (s *state) OpenTag(tag htmlstream.Tag) {
	switch tag.Name {
	case "tr":
		s.commitRow()
	case "td":
		s.cell = sideNone

		switch {
		case tag.HasClass("diff-addedline"):
			s.cell = sideAdded
			s.added.touched = true
		case tag.HasClass("diff-deletedline"):
			s.cell = sideRemoved
			s.removed.touched = true
		case tag.HasClass("diff-empty"):
			s.wholeLine = true
		case tag.HasClass("diff-marker"):
			s.marker = true
		}
	case "ins", "del":
		if s.cell != sideNone {
			s.inChange++
		}
	}
}

func (s *state) CloseTag(name string) {
	switch name {
	case "td":
		s.cell = sideNone
		s.inChange = 0
	case "ins", "del":
		if s.inChange > 0 {
			s.inChange--
		}
	case "tr":
		s.commitRow()
	}
}

func (s *state) Text(text string) {
	col := s.column(s.cell)
	if col == nil {
		return
	}

	escaped := markup.EscapeText(text)
	col.line.add(escaped)

	if s.inChange > 0 {
		col.changed.add(emphasize(escaped, col.wrap))
	}
}

func (s *state) Comment(string) {}

func (s *state) column(sd side) *column {
	switch sd {
	case sideAdded:
		return &s.added
	case sideRemoved:
		return &s.removed
	default:
		return nil
	}
}

func (s *state) startRow() {
	for _, col := range []*column{&s.added, &s.removed} {
		col.changed.reset()
		col.line.reset()
		col.touched = false
	}

	s.cell = sideNone
	s.inChange = 0
	s.wholeLine = false
	s.marker = false
}

func (s *state) commitRow() {
	// A marked row with only one side has no counterpart line.
	whole := s.wholeLine || (s.marker && s.added.touched != s.removed.touched)

	for _, col := range []*column{&s.added, &s.removed} {
		if !col.touched {
			continue
		}

		var piece string
		if whole {
			piece = wrapLine(col.line.sb.String(), col.wrap)
		} else {
			piece = col.changed.sb.String()
		}

		col.append(piece)
	}

	s.startRow()
}

func (c *column) append(piece string) {
	if piece == "" || c.overflow {
		return
	}

	if c.out.Len() > 0 {
		piece = "\n" + piece
	}

	n := markup.Length(piece)
	if c.units+n > SectionLength {
		c.overflow = true
		c.units = SectionLength + 1

		return
	}

	c.out.WriteString(piece)
	c.units += n
}

func (s *state) finish() Pair {
	s.commitRow()

	return Pair{
		Removed: s.removed.result(s.markers),
		Added:   s.added.result(s.markers),
	}
}

func (c *column) result(m locale.Markers) string {
	text := c.out.String()
	if text == "" && !c.overflow {
		return ""
	}

	if text != "" && strings.TrimSpace(markup.StripDelimiters(text)) == "" {
		return m.WhitespaceOnly
	}

	if c.overflow {
		text += m.More
	}

	return text
}

// emphasize wraps the visible part of text, leaving surrounding spaces
// outside the toggles. Whitespace-only text is returned unchanged.
func emphasize(text, wrap string) string {
	core := strings.TrimSpace(text)
	if core == "" {
		return text
	}

	start := strings.Index(text, core)
	lead, trail := text[:start], text[start+len(core):]

	return lead + wrap + core + wrap + trail
}

// wrapLine marks a whole added or removed line. Blank lines keep a single
// space inside the toggles so the change stays visible.
func wrapLine(text, wrap string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return wrap + " " + wrap
	}

	return wrap + text + wrap
}
