package domain

import (
	"encoding/json"
	"fmt"
)

type ElementType string

const (
	ElementText     ElementType = "text"
	ElementRichText ElementType = "richtext"
	ElementShape    ElementType = "shape"
	ElementImage    ElementType = "image"
	ElementVideo    ElementType = "video"
	ElementEmbed    ElementType = "embed"
	ElementRect     ElementType = "rect"
)

type ElementMode string

const (
	ElementModeStatic  ElementMode = "static"
	ElementModeDynamic ElementMode = "dynamic"
)

// TemplateElement is one canvas element of a PageConfig. The type-specific
// fields live in Payload, which is flattened into the same JSON object.
type TemplateElement struct {
	ID           string      `json:"id"`
	Type         ElementType `json:"type"`
	ElementMode  ElementMode `json:"elementMode"`
	Top          float64     `json:"top"`
	Left         float64     `json:"left"`
	Width        float64     `json:"width"`
	Height       *float64    `json:"height,omitempty"`
	Rotation     *float64    `json:"rotation,omitempty"`
	Transparency *float64    `json:"transparency,omitempty"`
	Tokens       []string    `json:"tokens,omitempty"`

	Payload Payload `json:"-"`
}

// IsDynamic reports whether the element takes part in substitution.
func (e *TemplateElement) IsDynamic() bool { return e.ElementMode == ElementModeDynamic }

// Payload is the closed set of type-specific element bodies.
type Payload interface {
	payloadType() ElementType
}

// TextFormatting is the formatting of a text run. FontWeight keeps whatever
// the host reported ("bold", "700"); it is normalized on insertion.
type TextFormatting struct {
	FontSize      float64 `json:"fontSize,omitempty"`
	FontWeight    string  `json:"fontWeight,omitempty"`
	FontStyle     string  `json:"fontStyle,omitempty"`
	Color         string  `json:"color,omitempty"`
	TextAlign     string  `json:"textAlign,omitempty"`
	Decoration    string  `json:"decoration,omitempty"`
	Strikethrough string  `json:"strikethrough,omitempty"`
	FontRef       string  `json:"fontRef,omitempty"`
	Link          string  `json:"link,omitempty"`
}

type TextRegion struct {
	Text       string         `json:"text"`
	Formatting TextFormatting `json:"formatting"`
}

// TextPayload carries either uniform formatting (embedded fields) or
// Regions, never both in a meaningful way: when Regions is set the
// embedded formatting is ignored.
type TextPayload struct {
	Plaintext string `json:"plaintext"`
	TextFormatting
	Regions []TextRegion `json:"regions,omitempty"`
}

func (TextPayload) payloadType() ElementType { return ElementText }

type ShapePath struct {
	D      string `json:"d"`
	Fill   string `json:"fill,omitempty"`
	Stroke string `json:"stroke,omitempty"`
}

type ViewBox struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type ShapePayload struct {
	Paths   []ShapePath `json:"paths"`
	ViewBox *ViewBox    `json:"viewBox,omitempty"`
}

func (ShapePayload) payloadType() ElementType { return ElementShape }

type MediaFill struct {
	MediaRef string `json:"mediaRef"`
}

// MediaPayload serves image and video elements. Static media keep
// Fill.MediaRef; dynamic media keep URL (possibly tokenized) and the Ref it
// resolved to when scanned.
type MediaPayload struct {
	Fill    *MediaFill `json:"fill,omitempty"`
	URL     string     `json:"url,omitempty"`
	Ref     string     `json:"ref,omitempty"`
	AltText string     `json:"altText,omitempty"`
}

func (MediaPayload) payloadType() ElementType { return ElementImage }

type EmbedPayload struct {
	URL string `json:"url"`
}

func (EmbedPayload) payloadType() ElementType { return ElementEmbed }

// RectPayload is a rectangle without media fill.
type RectPayload struct {
	FillColor    string  `json:"fillColor,omitempty"`
	StrokeColor  string  `json:"strokeColor,omitempty"`
	StrokeWeight float64 `json:"strokeWeight,omitempty"`
}

func (RectPayload) payloadType() ElementType { return ElementRect }

type templateElementBase TemplateElement

// MarshalJSON writes the common fields and the payload fields as one object.
func (e TemplateElement) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(templateElementBase(e))
	if err != nil {
		return nil, err
	}
	if e.Payload == nil {
		return base, nil
	}
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &merged); err != nil {
		return nil, err
	}
	// Common fields win over any same-named payload field.
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads the common fields and decodes the payload by type.
func (e *TemplateElement) UnmarshalJSON(data []byte) error {
	var base templateElementBase
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}
	*e = TemplateElement(base)

	var p Payload
	switch e.Type {
	case ElementText, ElementRichText:
		var t TextPayload
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("text payload: %w", err)
		}
		p = t
	case ElementShape:
		var s ShapePayload
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("shape payload: %w", err)
		}
		p = s
	case ElementImage, ElementVideo:
		var m MediaPayload
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("media payload: %w", err)
		}
		p = m
	case ElementEmbed:
		var em EmbedPayload
		if err := json.Unmarshal(data, &em); err != nil {
			return fmt.Errorf("embed payload: %w", err)
		}
		p = em
	case ElementRect:
		var r RectPayload
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("rect payload: %w", err)
		}
		p = r
	default:
		return fmt.Errorf("unknown element type %q", e.Type)
	}
	e.Payload = p
	return nil
}
