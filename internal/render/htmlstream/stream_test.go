package htmlstream

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []string
	limit  int
}

func (r *recorder) OpenTag(tag Tag) {
	ev := "open:" + tag.Name
	if cls := tag.Attrs["class"]; cls != "" {
		ev += "." + strings.Join(tag.Classes(), ".")
	}

	r.events = append(r.events, ev)
}

func (r *recorder) Text(text string)     { r.events = append(r.events, "text:"+text) }
func (r *recorder) CloseTag(name string) { r.events = append(r.events, "close:"+name) }
func (r *recorder) Comment(text string)  { r.events = append(r.events, "comment:"+text) }

func (r *recorder) Stopped() bool {
	return r.limit > 0 && len(r.events) >= r.limit
}

func TestWalkString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "nested inline",
			input: `<p>a<b>b</b></p>`,
			want:  []string{"open:p", "text:a", "open:b", "text:b", "close:b", "close:p"},
		},
		{
			name:  "void element gets a close",
			input: `a<br>b`,
			want:  []string{"text:a", "open:br", "close:br", "text:b"},
		},
		{
			name:  "self closing",
			input: `<img alt="x"/>`,
			want:  []string{"open:img", "close:img"},
		},
		{
			name:  "stray void end tag is dropped",
			input: `a</br>b`,
			want:  []string{"text:a", "text:b"},
		},
		{
			name:  "entities decoded",
			input: `&lt;tag&gt; &amp;`,
			want:  []string{"text:<tag> &"},
		},
		{
			name:  "comment",
			input: `<!--LINK'" 0:1-->`,
			want:  []string{`comment:LINK'" 0:1`},
		},
		{
			name:  "unmatched end tag dropped",
			input: `a</b>b`,
			want:  []string{"text:a", "text:b"},
		},
		{
			name:  "end tag closes descendants",
			input: `<div><b>a</div>b`,
			want:  []string{"open:div", "open:b", "text:a", "close:b", "close:div", "text:b"},
		},
		{
			name:  "item closes open item",
			input: `<ul><li class="noprint">a<li>b</ul>`,
			want: []string{
				"open:ul", "open:li.noprint", "text:a", "close:li",
				"open:li", "text:b", "close:li", "close:ul",
			},
		},
		{
			name:  "nested list keeps outer item",
			input: `<ul><li>a<ul><li>b<li>c</ul><li>d</ul>`,
			want: []string{
				"open:ul", "open:li", "text:a",
				"open:ul", "open:li", "text:b", "close:li", "open:li", "text:c", "close:li", "close:ul",
				"close:li", "open:li", "text:d", "close:li", "close:ul",
			},
		},
		{
			name:  "block closes paragraph",
			input: `<p>a<div>b</div>`,
			want:  []string{"open:p", "text:a", "close:p", "open:div", "text:b", "close:div"},
		},
		{
			name:  "table closes paragraph",
			input: `<p>a<table><tr><td>b<div>c</div></td></tr></table>`,
			want: []string{
				"open:p", "text:a", "close:p", "open:table", "open:tr", "open:td", "text:b",
				"open:div", "text:c", "close:div", "close:td", "close:tr", "close:table",
			},
		},
		{
			name:  "definition terms",
			input: `<dl><dt>a<dd>b<dt>c</dl>`,
			want: []string{
				"open:dl", "open:dt", "text:a", "close:dt", "open:dd", "text:b", "close:dd",
				"open:dt", "text:c", "close:dt", "close:dl",
			},
		},
		{
			name:  "rows and cells",
			input: `<table><tr><td>a<td>b<tr><th>c</table>`,
			want: []string{
				"open:table", "open:tr", "open:td", "text:a", "close:td", "open:td", "text:b", "close:td",
				"close:tr", "open:tr", "open:th", "text:c", "close:th", "close:tr", "close:table",
			},
		},
		{
			name:  "classes and uppercase tags",
			input: `<SPAN CLASS="a  b">x</SPAN>`,
			want:  []string{"open:span.a.b", "text:x", "close:span"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			WalkString(tt.input, rec)
			require.Equal(t, tt.want, rec.events)
		})
	}
}

func TestWalkStops(t *testing.T) {
	rec := &recorder{limit: 2}
	WalkString(`<p>one</p><p>two</p>`, rec)

	require.Len(t, rec.events, 2)
}

type failingReader struct{}

var errBroken = errors.New("broken")

func (failingReader) Read([]byte) (int, error) { return 0, errBroken }

func TestWalkReturnsReadError(t *testing.T) {
	err := Walk(failingReader{}, &recorder{})
	require.ErrorIs(t, err, errBroken)
}

func TestTagHelpers(t *testing.T) {
	tag := Tag{Name: "div", Attrs: map[string]string{"class": "hlist  navbox", "style": "x"}}

	require.True(t, tag.HasClass("hlist"))
	require.False(t, tag.HasClass("hl"))

	v, ok := tag.Attr("style")
	require.True(t, ok)
	require.Equal(t, "x", v)

	_, ok = tag.Attr("href")
	require.False(t, ok)
}
