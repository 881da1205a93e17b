package canvas

import "github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"

// Geometry positions an inserted element on the page.
type Geometry struct {
	Top          float64  `json:"top"`
	Left         float64  `json:"left"`
	Width        float64  `json:"width"`
	Height       *float64 `json:"height,omitempty"`
	Rotation     *float64 `json:"rotation,omitempty"`
	Transparency *float64 `json:"transparency,omitempty"`
}

// Insertion is the closed set of element descriptors a Host accepts.
type Insertion interface {
	Kind() string
	Geom() Geometry
}

// TextInsertion is a text element with one formatting for the whole string.
// FontWeight is always "normal" or "bold".
type TextInsertion struct {
	Geometry
	Text       string                `json:"text"`
	Formatting domain.TextFormatting `json:"formatting"`
}

func (TextInsertion) Kind() string     { return "text" }
func (t TextInsertion) Geom() Geometry { return t.Geometry }

// FormattingRange applies inline formatting to Text[Start:End] (byte offsets).
type FormattingRange struct {
	Start      int                   `json:"start"`
	End        int                   `json:"end"`
	Formatting domain.TextFormatting `json:"formatting"`
}

// ParagraphFormatting applies to the whole rich-text paragraph span.
type ParagraphFormatting struct {
	FontSize  float64 `json:"fontSize,omitempty"`
	TextAlign string  `json:"textAlign,omitempty"`
	FontRef   string  `json:"fontRef,omitempty"`
}

// RichTextInsertion is flat text annotated with formatting ranges, in
// original region order.
type RichTextInsertion struct {
	Geometry
	Text      string              `json:"text"`
	Ranges    []FormattingRange   `json:"ranges"`
	Paragraph ParagraphFormatting `json:"paragraph"`
}

func (RichTextInsertion) Kind() string     { return "richtext" }
func (r RichTextInsertion) Geom() Geometry { return r.Geometry }

// ShapeInsertion fills are guaranteed to be #RRGGBB.
type ShapeInsertion struct {
	Geometry
	Paths   []domain.ShapePath `json:"paths"`
	ViewBox domain.ViewBox     `json:"viewBox"`
}

func (ShapeInsertion) Kind() string     { return "shape" }
func (s ShapeInsertion) Geom() Geometry { return s.Geometry }

type MediaInsertion struct {
	Geometry
	MediaType string `json:"mediaType"` // "image" | "video"
	Ref       string `json:"ref"`
	AltText   string `json:"altText,omitempty"`
}

func (MediaInsertion) Kind() string     { return "media" }
func (m MediaInsertion) Geom() Geometry { return m.Geometry }

type EmbedInsertion struct {
	Geometry
	URL string `json:"url"`
}

func (EmbedInsertion) Kind() string     { return "embed" }
func (e EmbedInsertion) Geom() Geometry { return e.Geometry }
