package infobox

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/wikirender/internal/core/errors"
	"github.com/lueurxax/wikirender/internal/render/markup"
)

const placeholder = "https://placeholder.example/default.png"

const flatInfobox = `[{"parser_tag_version":2,"data":[
 {"type":"title","data":{"value":"Sword"}},
 {"type":"image","data":[{"url":"https://img.example/images/a/ab/Sword.png/revision/latest","name":"Sword.png"}]},
 {"type":"data","data":{"label":"Damage","value":"<b>10</b>","source":"damage"}},
 {"type":"group","data":{"value":[
   {"type":"header","data":{"value":"Stats"}},
   {"type":"data","data":{"label":"Weight","value":"2 kg","source":"weight"}}
 ],"layout":"default"}},
 {"type":"panel","data":{"value":[
   {"type":"section","data":{"label":"Tab A","value":[
     {"type":"data","data":{"label":"Material","value":"<a href=\"/wiki/Iron\">Iron</a>","source":"material"}}
   ]}}
 ]}},
 {"type":"navigation","data":{"value":"nav"}}
]}]`

func newFlattener() *Flattener {
	return &Flattener{PageLinkBase: "https://wiki.example/wiki/Sword", DefaultThumbnail: placeholder}
}

func TestDecodeFlatDocument(t *testing.T) {
	docs, err := DecodeDocuments([]byte(flatInfobox))
	require.NoError(t, err)
	require.Len(t, docs, 1)

	nodes := docs[0].Nodes
	require.Len(t, nodes, 6)

	assert.Equal(t, UnknownNode{Kind: "title"}, nodes[0])
	assert.Equal(t, ImageNode{Images: []Image{{
		URL:  "https://img.example/images/a/ab/Sword.png/revision/latest",
		Name: "Sword.png",
	}}}, nodes[1])
	assert.Equal(t, DataNode{Label: "Damage", Value: "<b>10</b>", Source: "damage"}, nodes[2])

	group, ok := nodes[3].(GroupNode)
	require.True(t, ok)
	assert.Equal(t, []Node{
		HeaderNode{Value: "Stats"},
		DataNode{Label: "Weight", Value: "2 kg", Source: "weight"},
	}, group.Children)

	panel, ok := nodes[4].(PanelNode)
	require.True(t, ok)
	require.Len(t, panel.Children, 1)

	section, ok := panel.Children[0].(SectionNode)
	require.True(t, ok)
	assert.Equal(t, "Tab A", section.Label)
	assert.Len(t, section.Children, 1)

	assert.Equal(t, UnknownNode{Kind: "navigation"}, nodes[5])
}

func TestDecodeLegacyDocument(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"parser_tag_version":1,"type":"group","data":[
		{"type":"data","data":{"label":"A","value":"B","item-name":"a"}}
	]}`))
	require.NoError(t, err)

	assert.Equal(t, []Node{GroupNode{Children: []Node{
		DataNode{Label: "A", Value: "B", ItemName: "a"},
	}}}, doc.Nodes)
}

func TestDecodeErrors(t *testing.T) {
	_, err := DecodeDocuments([]byte(`{`))
	require.Error(t, err)

	_, err = DecodeDocument([]byte(`{"parser_tag_version":2,"data":{"label":"x"}}`))
	require.ErrorIs(t, err, errors.ErrUnexpectedType)
}

func TestFlattenDocument(t *testing.T) {
	docs, err := DecodeDocuments([]byte(flatInfobox))
	require.NoError(t, err)

	e := &Embed{Title: "Sword", Thumbnail: placeholder}
	newFlattener().FlattenDocument(docs[0], e)

	assert.Equal(t, "https://img.example/images/a/ab/Sword.png/revision/latest", e.Thumbnail)
	assert.Equal(t, []Field{
		{Name: "Damage", Value: "**10**", Inline: true},
		{Name: "__**Stats**__\nWeight", Value: "2 kg", Inline: true},
		{Name: "**Tab A**\nMaterial", Value: "[Iron](<https://wiki.example/wiki/Iron>)", Inline: true},
	}, e.Fields)
	assert.False(t, e.BrokenInfobox)
}

func TestFlattenUnknownLink(t *testing.T) {
	e := &Embed{}
	newFlattener().Flatten(DataNode{
		Label:  `<!--LINK'" 0:1-->`,
		Value:  `x <!--IWLINK'" 2-->`,
		Source: "species",
	}, e)

	require.Len(t, e.Fields, 1)
	assert.Equal(t, Field{Name: "`species`", Value: "x `species`", Inline: true}, e.Fields[0])
	assert.True(t, e.BrokenInfobox)
}

func TestFlattenUnknownLinkItemNameFallback(t *testing.T) {
	e := &Embed{}
	newFlattener().Flatten(DataNode{Label: "Kind", Value: `<!--LINK'" 1-->`, ItemName: "kind"}, e)

	require.Len(t, e.Fields, 1)
	assert.Equal(t, "`kind`", e.Fields[0].Value)
}

func TestFlattenSkipsEmpty(t *testing.T) {
	e := &Embed{}
	f := newFlattener()

	f.Flatten(DataNode{Label: "Empty", Value: "  "}, e)
	f.Flatten(DataNode{Label: "", Value: "orphan"}, e)
	f.Flatten(UnknownNode{Kind: "navigation"}, e)

	assert.Empty(t, e.Fields)
}

func TestFlattenFieldCap(t *testing.T) {
	children := make([]Node, 0, 30)
	for i := 0; i < 30; i++ {
		children = append(children, DataNode{Label: fmt.Sprintf("Label %d", i), Value: "value"})
	}

	e := &Embed{}
	newFlattener().Flatten(GroupNode{Children: children}, e)

	require.Len(t, e.Fields, MaxFields)
	assert.Equal(t, "Label 24", e.Fields[MaxFields-1].Name)
}

func TestFlattenLengthBudget(t *testing.T) {
	children := make([]Node, 0, 20)
	for i := 0; i < 20; i++ {
		children = append(children, DataNode{Label: fmt.Sprintf("Label %d", i), Value: strings.Repeat("v", 600)})
	}

	e := &Embed{Description: "intro"}
	newFlattener().Flatten(GroupNode{Children: children}, e)

	assert.Less(t, len(e.Fields), 20)
	assert.LessOrEqual(t, e.Length(), EmbedCeiling)

	for _, field := range e.Fields {
		assert.LessOrEqual(t, markup.Length(field.Value), ValueLimit+LimitMaxExtra+markup.Length(markup.Ellipsis))
	}
}

func TestFlattenLabelLimit(t *testing.T) {
	e := &Embed{}
	newFlattener().Flatten(DataNode{Label: strings.Repeat("l", 300), Value: "v"}, e)

	require.Len(t, e.Fields, 1)
	assert.Equal(t, strings.Repeat("l", LabelLimit)+markup.Ellipsis, e.Fields[0].Name)
}

func TestFlattenLongTitlesBounded(t *testing.T) {
	long := strings.Repeat("H", 3000)
	row := DataNode{Label: "Weight", Value: "2 kg", Source: "weight"}

	tests := []struct {
		name   string
		node   Node
		prefix string
	}{
		{name: "header", node: GroupNode{Children: []Node{HeaderNode{Value: long}, row}}, prefix: "__**HHH"},
		{name: "section", node: SectionNode{Label: long, Children: []Node{row}}, prefix: "**HHH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Embed{}
			newFlattener().Flatten(tt.node, e)

			require.Len(t, e.Fields, 1)

			name := e.Fields[0].Name
			assert.True(t, strings.HasPrefix(name, tt.prefix), name)
			assert.True(t, strings.HasSuffix(name, "\nWeight"), name)
			assert.Contains(t, name, markup.Ellipsis)
			assert.LessOrEqual(t, markup.Length(name), NameLimit)
		})
	}
}

func TestMergeHeadersNameLimit(t *testing.T) {
	e := &Embed{Fields: []Field{
		{Name: HeaderName, Value: strings.Repeat("h", NameLimit)},
		{Name: "x", Value: "v", Inline: true},
	}}

	mergeHeaders(e, 0)

	assert.Equal(t, []Field{{Name: "x", Value: "v", Inline: true}}, e.Fields)
}

func TestMergeHeaders(t *testing.T) {
	header := func(v string) Field { return Field{Name: HeaderName, Value: v} }
	data := func(n string) Field { return Field{Name: n, Value: "v", Inline: true} }

	e := &Embed{Fields: []Field{
		header("kept before call"),
		header("a"), header("b"), data("x"), data("y"), header("trailing"),
	}}

	mergeHeaders(e, 1)

	assert.Equal(t, []Field{
		header("kept before call"),
		{Name: "b\nx", Value: "v", Inline: true},
		data("y"),
	}, e.Fields)
}

func TestFlattenImage(t *testing.T) {
	tests := []struct {
		name      string
		thumbnail string
		images    []Image
		want      string
	}{
		{
			name:      "protocol relative normalized",
			thumbnail: placeholder,
			images:    []Image{{URL: "//img.example/a.jpg"}},
			want:      "https://img.example/a.jpg",
		},
		{
			name:      "http upgraded",
			thumbnail: placeholder,
			images:    []Image{{URL: "http://img.example/a.webp"}},
			want:      "https://img.example/a.webp",
		},
		{
			name:      "first usable image wins",
			thumbnail: placeholder,
			images: []Image{
				{URL: "https://img.example/doc.pdf"},
				{URL: "data:image/png;base64,xx", Name: "x.png"},
				{URL: "https://img.example/b/revision/latest", Name: "B.GIF"},
			},
			want: "https://img.example/b/revision/latest",
		},
		{
			name:      "custom thumbnail kept",
			thumbnail: "https://custom.example/c.png",
			images:    []Image{{URL: "https://img.example/a.png"}},
			want:      "https://custom.example/c.png",
		},
		{
			name:      "nothing usable",
			thumbnail: placeholder,
			images:    []Image{{URL: "https://img.example/a.svg"}},
			want:      placeholder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Embed{Thumbnail: tt.thumbnail}
			newFlattener().Flatten(ImageNode{Images: tt.images}, e)
			assert.Equal(t, tt.want, e.Thumbnail)
		})
	}
}
