package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Slot is the kind of fill-in slot carried by a dynamic node.
type Slot int

const (
	SlotText Slot = iota + 1
	SlotVideo
	SlotImage
	SlotImageAnnotation
	SlotAudio
	SlotUpload
	SlotCarousel
)

const dynamicPrefix = "dynamic"

var slotByTag = map[string]Slot{
	"dynamicText":            SlotText,
	"dynamicVideo":           SlotVideo,
	"dynamicImage":           SlotImage,
	"dynamicImageAnnotation": SlotImageAnnotation,
	"dynamicAudio":           SlotAudio,
	"dynamicUpload":          SlotUpload,
	"dynamicCarousel":        SlotCarousel,
}

// Tag returns the node type tag used in template documents.
func (s Slot) Tag() string {
	switch s {
	case SlotText:
		return "dynamicText"
	case SlotVideo:
		return "dynamicVideo"
	case SlotImage:
		return "dynamicImage"
	case SlotImageAnnotation:
		return "dynamicImageAnnotation"
	case SlotAudio:
		return "dynamicAudio"
	case SlotUpload:
		return "dynamicUpload"
	case SlotCarousel:
		return "dynamicCarousel"
	default:
		panic(fmt.Sprintf("template: unknown slot %d", int(s)))
	}
}

// PlaceholderType maps a slot to its semantic placeholder type.
func (s Slot) PlaceholderType() PlaceholderType {
	switch s {
	case SlotText:
		return TypeText
	case SlotVideo:
		return TypeVideo
	case SlotImage, SlotImageAnnotation:
		return TypeImage
	case SlotAudio:
		return TypeAudio
	case SlotUpload:
		return TypeUpload
	case SlotCarousel:
		return TypeCarousel
	default:
		panic(fmt.Sprintf("template: unknown slot %d", int(s)))
	}
}

// Node is one element of a template document. The set of implementations is
// closed: *Container, *Leaf and *Dynamic.
type Node interface {
	Tag() string
	NodeName() string
	clone() Node
}

// Container is a non-dynamic node whose content is an ordered list of children.
type Container struct {
	Type     string
	Name     string
	Children []Node
	Extra    map[string]json.RawMessage
}

// Leaf is a non-dynamic node with non-array content. It never carries a slot.
type Leaf struct {
	Type    string
	Name    string
	Content json.RawMessage
	Extra   map[string]json.RawMessage
}

// Dynamic is a placeholder-bearing leaf.
type Dynamic struct {
	Slot    Slot
	Type    string
	Name    string
	Content map[string]any
	Extra   map[string]json.RawMessage
}

func (c *Container) Tag() string      { return c.Type }
func (c *Container) NodeName() string { return c.Name }
func (l *Leaf) Tag() string           { return l.Type }
func (l *Leaf) NodeName() string      { return l.Name }
func (d *Dynamic) Tag() string        { return d.Type }
func (d *Dynamic) NodeName() string   { return d.Name }

func (c *Container) clone() Node {
	out := &Container{Type: c.Type, Name: c.Name, Extra: cloneExtra(c.Extra)}
	out.Children = cloneNodes(c.Children)
	return out
}

func (l *Leaf) clone() Node {
	out := &Leaf{Type: l.Type, Name: l.Name, Extra: cloneExtra(l.Extra)}
	if l.Content != nil {
		out.Content = append(json.RawMessage(nil), l.Content...)
	}
	return out
}

func (d *Dynamic) clone() Node {
	return &Dynamic{
		Slot:    d.Slot,
		Type:    d.Type,
		Name:    d.Name,
		Content: deepCopyMap(d.Content),
		Extra:   cloneExtra(d.Extra),
	}
}

func cloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.clone()
	}
	return out
}

func cloneExtra(extra map[string]json.RawMessage) map[string]json.RawMessage {
	if extra == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return t
	}
}

func (c *Container) MarshalJSON() ([]byte, error) {
	children := c.Children
	if children == nil {
		children = []Node{}
	}
	content, err := json.Marshal(children)
	if err != nil {
		return nil, err
	}
	return encodeNode(c.Type, c.Name, content, c.Extra)
}

func (l *Leaf) MarshalJSON() ([]byte, error) {
	return encodeNode(l.Type, l.Name, l.Content, l.Extra)
}

func (d *Dynamic) MarshalJSON() ([]byte, error) {
	content, err := json.Marshal(d.Content)
	if err != nil {
		return nil, err
	}
	return encodeNode(d.Type, d.Name, content, d.Extra)
}

func encodeNode(tag, name string, content json.RawMessage, extra map[string]json.RawMessage) ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(extra)+3)
	for k, v := range extra {
		fields[k] = v
	}
	typeJSON, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}
	fields["type"] = typeJSON
	if name != "" {
		nameJSON, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		fields["name"] = nameJSON
	}
	if content != nil {
		fields["content"] = content
	}
	return json.Marshal(fields)
}

// Marshal serializes a node list back to a JSON template document.
func Marshal(nodes []Node) ([]byte, error) {
	if nodes == nil {
		nodes = []Node{}
	}
	return json.Marshal(nodes)
}

func decodeNodes(raw []json.RawMessage, path string) ([]Node, error) {
	nodes := make([]Node, 0, len(raw))
	for i, r := range raw {
		n, err := decodeNode(r, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func decodeNode(raw json.RawMessage, path string) (Node, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &ParseError{Path: path, Reason: "node must be an object", Err: err}
	}

	var tag string
	if err := json.Unmarshal(fields["type"], &tag); err != nil || tag == "" {
		return nil, &ParseError{Path: path, Reason: "node type must be a non-empty string"}
	}
	var name string
	if rawName, ok := fields["name"]; ok {
		if err := json.Unmarshal(rawName, &name); err != nil {
			return nil, &ParseError{Path: path, Reason: "node name must be a string", Err: err}
		}
	}
	content := fields["content"]
	delete(fields, "type")
	delete(fields, "name")
	delete(fields, "content")
	if len(fields) == 0 {
		fields = nil
	}

	if strings.HasPrefix(tag, dynamicPrefix) {
		slot, ok := slotByTag[tag]
		if !ok {
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("unknown dynamic node type %q", tag)}
		}
		body := map[string]any{}
		if len(content) > 0 && !isNull(content) {
			if err := json.Unmarshal(content, &body); err != nil {
				return nil, &ParseError{Path: path, Reason: fmt.Sprintf("%s content must be an object", tag), Err: err}
			}
		}
		return &Dynamic{Slot: slot, Type: tag, Name: name, Content: body, Extra: fields}, nil
	}

	if isArray(content) {
		var children []json.RawMessage
		if err := json.Unmarshal(content, &children); err != nil {
			return nil, &ParseError{Path: path, Reason: "invalid content array", Err: err}
		}
		decoded, err := decodeNodes(children, path+".content")
		if err != nil {
			return nil, err
		}
		return &Container{Type: tag, Name: name, Children: decoded, Extra: fields}, nil
	}

	return &Leaf{Type: tag, Name: name, Content: content, Extra: fields}, nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
