package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownFileType = errors.New("unknown file type")
	ErrEmptyCarousel   = errors.New("carousel value needs at least one slide")
)

// FileType selects how an upload slot is rendered.
type FileType string

const (
	FileImage    FileType = "image"
	FileVideo    FileType = "video"
	FileDocument FileType = "document"
	FileAudio    FileType = "audio"
)

// ParseFileType accepts the four known file types case-insensitively.
func ParseFileType(s string) (FileType, error) {
	switch ft := FileType(strings.ToLower(strings.TrimSpace(s))); ft {
	case FileImage, FileVideo, FileDocument, FileAudio:
		return ft, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownFileType, s)
	}
}

func (f FileType) slot() Slot {
	switch f {
	case FileImage:
		return SlotImage
	case FileVideo:
		return SlotVideo
	case FileAudio:
		return SlotAudio
	default:
		return SlotText
	}
}

type Slide struct {
	Type      string `json:"type"`
	Src       string `json:"src,omitempty"`
	InnerText string `json:"innerText,omitempty"`
}

// CarouselContent replaces the content of a whole carousel node.
type CarouselContent struct {
	Slides        []Slide `json:"slides,omitempty"`
	KeyboardNav   *bool   `json:"keyboardNav,omitempty"`
	AutoSlide     *bool   `json:"autoSlide,omitempty"`
	SlideInterval *int    `json:"slideInterval,omitempty"`
}

func (c *CarouselContent) fields() map[string]any {
	out := map[string]any{}
	b, err := json.Marshal(c)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(b, &out)
	return out
}

func (c *CarouselContent) clone() *CarouselContent {
	if c == nil {
		return nil
	}
	out := &CarouselContent{Slides: append([]Slide(nil), c.Slides...)}
	if c.KeyboardNav != nil {
		v := *c.KeyboardNav
		out.KeyboardNav = &v
	}
	if c.AutoSlide != nil {
		v := *c.AutoSlide
		out.AutoSlide = &v
	}
	if c.SlideInterval != nil {
		v := *c.SlideInterval
		out.SlideInterval = &v
	}
	return out
}

// Value is what an operator supplied for one placeholder. Scalar slots use
// Content; carousel slots use Carousel.
type Value struct {
	Content  string           `json:"content"`
	FileType FileType         `json:"fileType,omitempty"`
	Carousel *CarouselContent `json:"carousel,omitempty"`
}

// FileTypeOrDefault returns the value's file type, document when unset or
// unrecognised.
func (v *Value) FileTypeOrDefault() FileType {
	if v == nil {
		return FileDocument
	}
	ft, err := ParseFileType(string(v.FileType))
	if err != nil {
		return FileDocument
	}
	return ft
}

// Normalize canonicalizes the file type and rejects values Fill cannot
// render: unknown file types and carousels without slides.
func (v *Value) Normalize() error {
	if v.FileType != "" {
		ft, err := ParseFileType(string(v.FileType))
		if err != nil {
			return err
		}
		v.FileType = ft
	}
	if v.Carousel != nil && len(v.Carousel.Slides) == 0 {
		return ErrEmptyCarousel
	}
	return nil
}

func (v *Value) text(token string) string {
	if v == nil || v.Content == "" {
		return token
	}
	return v.Content
}

func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	return &Value{Content: v.Content, FileType: v.FileType, Carousel: v.Carousel.clone()}
}

// Values is indexed by placeholder index. A nil entry means the slot was
// never touched.
type Values []*Value

// NewValues returns an empty arena sized for n placeholders.
func NewValues(n int) Values {
	return make(Values, n)
}

// At returns the value at index i, or nil when i is out of range or unset.
func (vs Values) At(i int) *Value {
	if i < 0 || i >= len(vs) {
		return nil
	}
	return vs[i]
}

func (vs Values) Clone() Values {
	if vs == nil {
		return nil
	}
	out := make(Values, len(vs))
	for i, v := range vs {
		out[i] = v.Clone()
	}
	return out
}
