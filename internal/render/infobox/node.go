// Package infobox flattens portable infobox content trees into a bounded
// list of embed fields.
package infobox

import (
	"encoding/json"
	"fmt"

	"github.com/lueurxax/wikirender/internal/core/errors"
)

// Node is one element of an infobox content tree. The concrete types are
// DataNode, PanelNode, SectionNode, GroupNode, HeaderNode, ImageNode and
// UnknownNode.
type Node interface {
	node()
}

// DataNode is a label/value row. Both carry HTML.
type DataNode struct {
	Label    string
	Value    string
	Source   string
	ItemName string
}

// PanelNode holds tabbed sections.
type PanelNode struct {
	Children []Node
}

// SectionNode is a named tab of a panel.
type SectionNode struct {
	Label    string
	Children []Node
}

// GroupNode groups rows, usually under a header.
type GroupNode struct {
	Children []Node
}

// HeaderNode is a standalone heading; Value carries HTML.
type HeaderNode struct {
	Value string
}

// ImageNode lists the images of a gallery or single image row.
type ImageNode struct {
	Images []Image
}

// Image is one candidate thumbnail.
type Image struct {
	URL  string
	Name string
}

// UnknownNode is any node kind the flattener does not render.
type UnknownNode struct {
	Kind string
}

func (DataNode) node()    {}
func (PanelNode) node()   {}
func (SectionNode) node() {}
func (GroupNode) node()   {}
func (HeaderNode) node()  {}
func (ImageNode) node()   {}
func (UnknownNode) node() {}

// FlatListVersion is the first parser_tag_version that stores the infobox
// as a flat node list under data.
const FlatListVersion = 2

// Document is one decoded infobox.
type Document struct {
	Version int
	Nodes   []Node
}

type rawDocument struct {
	Version int             `json:"parser_tag_version"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
}

type rawNode struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type rawData struct {
	Label    string          `json:"label"`
	Value    json.RawMessage `json:"value"`
	Source   string          `json:"source"`
	ItemName string          `json:"item-name"`
}

type rawImage struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// DecodeDocuments decodes the JSON array stored in a page's infoboxes
// property.
func DecodeDocuments(data []byte) ([]Document, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode infoboxes: %w", err)
	}

	docs := make([]Document, 0, len(raws))

	for i, raw := range raws {
		doc, err := DecodeDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("infobox %d: %w", i, err)
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

// DecodeDocument decodes one infobox. Version 2 and later keep a flat node
// list under data; older documents are a single nested node.
func DecodeDocument(data []byte) (Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("decode infobox: %w", err)
	}

	doc := Document{Version: raw.Version}

	if raw.Version >= FlatListVersion || raw.Type == "" {
		doc.Nodes = decodeList(raw.Data)
		if doc.Nodes == nil && len(raw.Data) > 0 && string(raw.Data) != "null" {
			return Document{}, fmt.Errorf("infobox data: %w", errors.ErrUnexpectedType)
		}

		return doc, nil
	}

	doc.Nodes = []Node{decodeNode(rawNode{Type: raw.Type, Data: raw.Data})}

	return doc, nil
}

// decodeList returns nil when data is not a JSON array.
func decodeList(data json.RawMessage) []Node {
	var raws []rawNode
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil
	}

	nodes := make([]Node, 0, len(raws))
	for _, r := range raws {
		nodes = append(nodes, decodeNode(r))
	}

	return nodes
}

// decodeNode never fails: malformed nodes decode as UnknownNode.
func decodeNode(r rawNode) Node {
	switch r.Type {
	case "data":
		var d rawData
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return UnknownNode{Kind: r.Type}
		}

		return DataNode{Label: d.Label, Value: decodeString(d.Value), Source: d.Source, ItemName: d.ItemName}
	case "header":
		var d rawData
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return UnknownNode{Kind: r.Type}
		}

		return HeaderNode{Value: decodeString(d.Value)}
	case "image":
		return ImageNode{Images: decodeImages(r.Data)}
	case "panel":
		return PanelNode{Children: decodeChildren(r.Data)}
	case "group":
		return GroupNode{Children: decodeChildren(r.Data)}
	case "section":
		var d rawData
		_ = json.Unmarshal(r.Data, &d) //nolint:errcheck // a bare array has no label

		return SectionNode{Label: d.Label, Children: decodeChildren(r.Data)}
	default:
		return UnknownNode{Kind: r.Type}
	}
}

// decodeChildren accepts both data.value arrays and bare data arrays.
func decodeChildren(data json.RawMessage) []Node {
	if nodes := decodeList(data); nodes != nil {
		return nodes
	}

	var d rawData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil
	}

	return decodeList(d.Value)
}

func decodeImages(data json.RawMessage) []Image {
	var raws []rawImage
	if err := json.Unmarshal(data, &raws); err != nil {
		var single rawImage
		if err := json.Unmarshal(data, &single); err != nil {
			return nil
		}

		raws = []rawImage{single}
	}

	images := make([]Image, 0, len(raws))
	for _, r := range raws {
		images = append(images, Image(r))
	}

	return images
}

func decodeString(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ""
	}

	return s
}
