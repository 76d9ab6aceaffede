package template

import (
	"encoding/json"
	"fmt"
)

// PlaceholderType is the semantic type of a fill-in slot.
type PlaceholderType string

const (
	TypeText     PlaceholderType = "text"
	TypeVideo    PlaceholderType = "video"
	TypeImage    PlaceholderType = "img"
	TypeAudio    PlaceholderType = "audio"
	TypeUpload   PlaceholderType = "upload"
	TypeCarousel PlaceholderType = "carousel"
)

// Token is the literal left in filled content when no value is available.
func (t PlaceholderType) Token() string {
	return "{{" + string(t) + "}}"
}

type Placeholder struct {
	Type  PlaceholderType `json:"type"`
	Index int             `json:"index"`
	Name  string          `json:"name"`
}

// Template is a parsed, immutable template document together with its
// placeholder list.
type Template struct {
	ID           string        `json:"id,omitempty"`
	Name         string        `json:"name,omitempty"`
	Nodes        []Node        `json:"nodes"`
	Placeholders []Placeholder `json:"placeholders"`
}

// PlaceholderNames returns placeholder names in index order.
func (t *Template) PlaceholderNames() []string {
	names := make([]string, len(t.Placeholders))
	for i, p := range t.Placeholders {
		names[i] = p.Name
	}
	return names
}

// ParseError reports a malformed or ambiguous template document.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return "template parse: " + e.Reason
	}
	return fmt.Sprintf("template parse: %s: %s", e.Path, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse validates and decodes a JSON template document. It either returns
// the complete placeholder list or an error, never a partial result.
func Parse(data []byte) (*Template, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Reason: "document must be an array of nodes", Err: err}
	}
	nodes, err := decodeNodes(raw, "$")
	if err != nil {
		return nil, err
	}
	placeholders, err := ExtractPlaceholders(nodes)
	if err != nil {
		return nil, err
	}
	return &Template{Nodes: nodes, Placeholders: placeholders}, nil
}

// ExtractPlaceholders walks nodes in pre-order and assigns indexes in
// discovery order. Dynamic nodes are not descended into.
func ExtractPlaceholders(nodes []Node) ([]Placeholder, error) {
	placeholders := []Placeholder{}
	seen := make(map[string]int)
	if err := collect(nodes, "$", &placeholders, seen); err != nil {
		return nil, err
	}
	return placeholders, nil
}

func collect(nodes []Node, path string, out *[]Placeholder, seen map[string]int) error {
	for i, n := range nodes {
		at := fmt.Sprintf("%s[%d]", path, i)
		switch n := n.(type) {
		case *Dynamic:
			if n.Name == "" {
				return &ParseError{Path: at, Reason: fmt.Sprintf("%s node has no name", n.Type)}
			}
			if prev, dup := seen[n.Name]; dup {
				return &ParseError{Path: at, Reason: fmt.Sprintf("placeholder name %q already used by placeholder %d", n.Name, prev)}
			}
			idx := len(*out)
			seen[n.Name] = idx
			*out = append(*out, Placeholder{Type: n.Slot.PlaceholderType(), Index: idx, Name: n.Name})
		case *Container:
			if err := collect(n.Children, at+".content", out, seen); err != nil {
				return err
			}
		case *Leaf:
		default:
			panic(fmt.Sprintf("template: unhandled node %T", n))
		}
	}
	return nil
}
