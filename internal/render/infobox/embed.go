package infobox

import "github.com/lueurxax/wikirender/internal/render/markup"

// Embed limits of the chat platform and the tighter budgets the flattener
// keeps to.
const (
	MaxFields     = 25
	EmbedBudget   = 5400
	EmbedCeiling  = 6000
	LabelLimit    = 100
	ValueLimit    = 500
	LimitMaxExtra = 20

	NameLimit        = 256
	TitleLimit       = 256
	DescriptionLimit = 1000
)

// HeaderName is the zero-width field name of header fields.
const HeaderName = "\u200b"

// Field is one embed field.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// IsHeader reports whether f is a standalone header field.
func (f Field) IsHeader() bool {
	return f.Name == HeaderName
}

// Length is the field's contribution to the embed total.
func (f Field) Length() int {
	return markup.Length(f.Name) + markup.Length(f.Value)
}

// Embed is the rich message the flattener fills.
type Embed struct {
	Title         string  `json:"title,omitempty"`
	Description   string  `json:"description,omitempty"`
	Footer        string  `json:"footer,omitempty"`
	AuthorName    string  `json:"author_name,omitempty"`
	Thumbnail     string  `json:"thumbnail,omitempty"`
	Fields        []Field `json:"fields"`
	BrokenInfobox bool    `json:"broken_infobox,omitempty"`
}

// Length is the platform's cumulative embed length: title, description,
// footer, author name and every field name and value.
func (e *Embed) Length() int {
	n := markup.Length(e.Title) + markup.Length(e.Description) +
		markup.Length(e.Footer) + markup.Length(e.AuthorName)

	for _, f := range e.Fields {
		n += f.Length()
	}

	return n
}

// full reports whether no further node may be started.
func (e *Embed) full() bool {
	return len(e.Fields) >= MaxFields || e.Length() > EmbedBudget
}

// addField appends f unless that would break the field count or the
// platform ceiling.
func (e *Embed) addField(f Field) bool {
	if len(e.Fields) >= MaxFields || e.Length()+f.Length() > EmbedCeiling {
		return false
	}

	e.Fields = append(e.Fields, f)

	return true
}
