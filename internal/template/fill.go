package template

import (
	"fmt"
)

var audioDefaults = []struct {
	key   string
	value any
}{
	{"transcribeEnabled", false},
	{"transcriptionModel", "default"},
	{"apiKey", ""},
	{"language", "en"},
	{"transcription", ""},
}

// Fill returns a new tree with every dynamic node resolved against values.
// The input tree is never mutated.
func Fill(nodes []Node, values Values, placeholders []Placeholder) []Node {
	byName := make(map[string]Placeholder, len(placeholders))
	for _, p := range placeholders {
		byName[p.Name] = p
	}
	return fillNodes(nodes, values, byName)
}

func fillNodes(nodes []Node, values Values, byName map[string]Placeholder) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = fillNode(n, values, byName)
	}
	return out
}

func fillNode(n Node, values Values, byName map[string]Placeholder) Node {
	switch n := n.(type) {
	case *Container:
		return &Container{
			Type:     n.Type,
			Name:     n.Name,
			Children: fillNodes(n.Children, values, byName),
			Extra:    cloneExtra(n.Extra),
		}
	case *Leaf:
		return n.clone()
	case *Dynamic:
		return fillDynamic(n, values, byName)
	default:
		panic(fmt.Sprintf("template: unhandled node %T", n))
	}
}

func fillDynamic(n *Dynamic, values Values, byName map[string]Placeholder) *Dynamic {
	out := n.clone().(*Dynamic)

	p, ok := byName[n.Name]
	if !ok {
		out.Content[substitutedField(n.Slot)] = n.Slot.PlaceholderType().Token()
		return out
	}
	v := values.At(p.Index)
	token := p.Type.Token()

	switch n.Slot {
	case SlotCarousel:
		if v == nil || v.Carousel == nil {
			out.Content["src"] = token
			return out
		}
		for k, field := range v.Carousel.fields() {
			out.Content[k] = field
		}
	case SlotAudio:
		out.Content["src"] = v.text(token)
		applyAudioDefaults(out.Content)
	case SlotUpload:
		ft := v.FileTypeOrDefault()
		s := v.text(token)
		out.Slot = ft.slot()
		out.Type = out.Slot.Tag()
		if ft == FileDocument {
			out.Content = map[string]any{
				"type":      "any",
				"limit":     1,
				"src":       s,
				"innerText": s,
			}
			return out
		}
		out.Content["src"] = s
		if out.Slot == SlotAudio {
			applyAudioDefaults(out.Content)
		}
	case SlotText:
		out.Content["innerText"] = v.text(token)
	case SlotVideo, SlotImage, SlotImageAnnotation:
		out.Content["src"] = v.text(token)
	default:
		panic(fmt.Sprintf("template: unhandled slot %d", int(n.Slot)))
	}
	return out
}

func applyAudioDefaults(content map[string]any) {
	for _, d := range audioDefaults {
		if _, ok := content[d.key]; !ok {
			content[d.key] = d.value
		}
	}
}

func substitutedField(s Slot) string {
	if s == SlotText {
		return "innerText"
	}
	return "src"
}
