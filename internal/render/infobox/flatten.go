package infobox

import (
	"net/url"
	"path"
	"strings"

	"github.com/lueurxax/wikirender/internal/render/markup"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// Flattener renders infobox trees into embed fields.
type Flattener struct {
	// PageLinkBase resolves links in values.
	PageLinkBase string
	// DefaultThumbnail is the placeholder an image node may replace.
	DefaultThumbnail string
	// Transcoder renders labels and values; nil uses the default rules.
	Transcoder *markup.Transcoder
}

// FlattenDocument appends every node of doc to e.
func (f *Flattener) FlattenDocument(doc Document, e *Embed) {
	start := len(e.Fields)

	for _, n := range doc.Nodes {
		f.flatten(n, e)
	}

	mergeHeaders(e, start)
}

// Flatten appends node and its children to e. Nodes are either rendered
// completely or not started once the embed is full.
func (f *Flattener) Flatten(node Node, e *Embed) {
	start := len(e.Fields)
	f.flatten(node, e)
	mergeHeaders(e, start)
}

func (f *Flattener) flatten(node Node, e *Embed) {
	if e.full() {
		return
	}

	switch n := node.(type) {
	case DataNode:
		f.data(n, e)
	case PanelNode:
		f.children(n.Children, e)
	case GroupNode:
		f.children(n.Children, e)
	case SectionNode:
		if label := f.label(n.Label); label != "" {
			e.addField(Field{Name: HeaderName, Value: "**" + label + "**"})
		}

		f.children(n.Children, e)
	case HeaderNode:
		if value := f.label(n.Value); value != "" {
			e.addField(Field{Name: HeaderName, Value: "__**" + value + "**__"})
		}
	case ImageNode:
		f.image(n, e)
	}
}

func (f *Flattener) children(nodes []Node, e *Embed) {
	for _, n := range nodes {
		f.flatten(n, e)
	}
}

func (f *Flattener) data(n DataNode, e *Embed) {
	id := fallbackID(n)

	label := f.plain(n.Label)
	if strings.Contains(label, markup.UnknownLink) {
		label = id
		e.BrokenInfobox = true
	}

	value := strings.TrimSpace(f.transcoder().Markup(n.Value, markup.Options{
		PageLinkBase: f.PageLinkBase,
		Limit:        ValueLimit * 4,
	}))
	if strings.Contains(value, markup.UnknownLink) {
		value = strings.ReplaceAll(value, markup.UnknownLink, id)
		e.BrokenInfobox = true
	}

	label = markup.LimitLength(label, LabelLimit, LimitMaxExtra)
	value = markup.LimitLength(value, ValueLimit, LimitMaxExtra)

	if label == "" || value == "" {
		return
	}

	e.addField(Field{Name: label, Value: value, Inline: true})
}

// fallbackID names a field whose content referenced an unresolved link.
func fallbackID(n DataNode) string {
	id := n.Source
	if id == "" {
		id = n.ItemName
	}

	if id == "" {
		id = "?"
	}

	return "`" + strings.ReplaceAll(id, "`", "ˋ") + "`"
}

// label renders a section or header title bounded like a field label.
func (f *Flattener) label(html string) string {
	return markup.LimitLength(f.plain(html), LabelLimit, LimitMaxExtra)
}

func (f *Flattener) plain(html string) string {
	return strings.TrimSpace(f.transcoder().Plain(html))
}

func (f *Flattener) transcoder() *markup.Transcoder {
	if f.Transcoder != nil {
		return f.Transcoder
	}

	return defaultTranscoder
}

var defaultTranscoder = markup.NewTranscoder(markup.DefaultIgnoreRules())

// image sets the first usable image as thumbnail unless the caller already
// picked one.
func (f *Flattener) image(n ImageNode, e *Embed) {
	if e.Thumbnail != f.DefaultThumbnail {
		return
	}

	for _, img := range n.Images {
		if thumb, ok := thumbnailURL(img); ok {
			e.Thumbnail = thumb

			return
		}
	}
}

func thumbnailURL(img Image) (string, bool) {
	raw := strings.TrimSpace(img.URL)

	switch {
	case strings.HasPrefix(raw, "//"):
		raw = "https:" + raw
	case strings.HasPrefix(strings.ToLower(raw), "http://"):
		raw = "https://" + raw[len("http://"):]
	case strings.HasPrefix(strings.ToLower(raw), "https://"):
	default:
		return "", false
	}

	name := img.Name
	if name == "" {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false
		}

		name = u.Path
	}

	if !imageExtensions[strings.ToLower(path.Ext(name))] {
		return "", false
	}

	return raw, true
}

// mergeHeaders folds each header field added since start into the field
// that follows it. Headers followed by another header or by nothing are
// dropped, as is a header that would push the name past NameLimit.
func mergeHeaders(e *Embed, start int) {
	if start > len(e.Fields) {
		return
	}

	fields := e.Fields[start:]
	merged := make([]Field, 0, len(fields))

	for i := 0; i < len(fields); i++ {
		field := fields[i]
		if !field.IsHeader() {
			merged = append(merged, field)
			continue
		}

		if i+1 >= len(fields) || fields[i+1].IsHeader() {
			continue
		}

		next := fields[i+1]

		name := field.Value + "\n" + next.Name
		if markup.Length(name) > NameLimit {
			name = next.Name
		}

		merged = append(merged, Field{
			Name:   name,
			Value:  next.Value,
			Inline: next.Inline,
		})
		i++
	}

	e.Fields = append(e.Fields[:start], merged...)
}
