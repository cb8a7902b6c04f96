// Package htmlstream turns an HTML byte stream into tag events.
//
// It is the only place that touches the tokenizer: consumers implement Handler
// and receive open/text/close/comment callbacks in document order. Nothing is
// buffered beyond the current token and the names of the open elements.
package htmlstream

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Tag is an opened element with its attributes.
type Tag struct {
	Name  string
	Attrs map[string]string
}

// Attr returns the attribute value and whether it was present.
func (t Tag) Attr(key string) (string, bool) {
	v, ok := t.Attrs[key]
	return v, ok
}

// Classes returns the whitespace separated entries of the class attribute.
func (t Tag) Classes() []string {
	return strings.Fields(t.Attrs["class"])
}

// HasClass reports whether the class attribute contains name.
func (t Tag) HasClass(name string) bool {
	for _, c := range t.Classes() {
		if c == name {
			return true
		}
	}

	return false
}

// Handler receives events from Walk.
type Handler interface {
	OpenTag(tag Tag)
	Text(text string)
	CloseTag(name string)
	Comment(text string)
}

// Stopper is implemented by handlers that may end the walk early.
// Walk checks Stopped after every event.
type Stopper interface {
	Stopped() bool
}

// voidElements never have a closing tag; Walk synthesises one.
var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"param":  true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// Walk tokenizes r and feeds h until EOF, a read error, or h reports Stopped.
// Read errors other than io.EOF are returned; malformed markup never is.
//
// End tags the markup leaves implied are synthesised the way a browser would
// infer them: a new li closes the open one, a block closes an open p, rows and
// cells close their siblings, and an end tag closes every element opened
// inside it. End tags without a matching open element are dropped.
func Walk(r io.Reader, h Handler) error {
	z := html.NewTokenizer(r)
	stopper, canStop := h.(Stopper)
	s := &stream{h: h, counts: map[string]int{}}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return err
			}

			return nil
		}

		s.dispatch(z, tt)

		if canStop && stopper.Stopped() {
			return nil
		}
	}
}

// WalkString is Walk over an in-memory string.
func WalkString(s string, h Handler) {
	_ = Walk(strings.NewReader(s), h) //nolint:errcheck // strings.Reader never fails
}

func (s *stream) dispatch(z *html.Tokenizer, tt html.TokenType) {
	switch tt {
	case html.StartTagToken, html.SelfClosingTagToken:
		tag := readTag(z)
		s.closeImplied(tag.Name)
		s.h.OpenTag(tag)

		if tt == html.SelfClosingTagToken || voidElements[tag.Name] {
			s.h.CloseTag(tag.Name)
			return
		}

		s.push(tag.Name)
	case html.EndTagToken:
		name, _ := z.TagName()
		s.closeTo(strings.ToLower(string(name)))
	case html.TextToken:
		s.h.Text(string(z.Text()))
	case html.CommentToken:
		s.h.Comment(string(z.Text()))
	case html.DoctypeToken, html.ErrorToken:
	}
}

func readTag(z *html.Tokenizer) Tag {
	name, hasAttr := z.TagName()
	tag := Tag{Name: strings.ToLower(string(name)), Attrs: map[string]string{}}

	for hasAttr {
		var key, val []byte

		key, val, hasAttr = z.TagAttr()
		k := strings.ToLower(string(key))

		if _, dup := tag.Attrs[k]; !dup {
			tag.Attrs[k] = string(val)
		}
	}

	return tag
}
