// Package element converts between live host canvas elements and stored
// template elements, in both directions.
package element

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/canvas"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/token"
)

// ID returns the template element id for scan position i.
func ID(i int) string { return fmt.Sprintf("elem_%03d", i) }

// ToTemplate captures a host element as a template element with the id for
// scan position index. It returns false when the element cannot be captured:
// an unsupported type, a shape without paths, viewBox or height, or media
// without any reference.
func ToTemplate(el canvas.Element, index int) (*domain.TemplateElement, bool) {
	te := &domain.TemplateElement{
		ID:           ID(index),
		ElementMode:  domain.ElementModeStatic,
		Top:          number(read(el, "top")),
		Left:         number(read(el, "left")),
		Width:        number(read(el, "width")),
		Height:       optNumber(read(el, "height")),
		Rotation:     optNumber(read(el, "rotation")),
		Transparency: optNumber(read(el, "transparency")),
	}

	var ok bool
	switch el.Type() {
	case "text", "richtext":
		ok = scanText(el, te)
	case "shape":
		ok = scanShape(el, te)
	case "rect":
		ok = scanRect(el, te)
	case "image", "video":
		ok = scanMedia(el, te)
	case "embed":
		ok = scanEmbed(el, te)
	}
	if !ok {
		return nil, false
	}
	return te, true
}

// TokenType is the definition type inferred for tokens found in te.
func TokenType(te *domain.TemplateElement) domain.TokenType {
	switch te.Type {
	case domain.ElementImage:
		return domain.TokenTypeImageURL
	case domain.ElementVideo:
		return domain.TokenTypeVideoURL
	default:
		return domain.TokenTypeString
	}
}

// classify marks te dynamic iff content carries at least one token.
func classify(te *domain.TemplateElement, content string) {
	names := token.Unique(token.Find(content))
	if len(names) == 0 {
		return
	}
	te.ElementMode = domain.ElementModeDynamic
	te.Tokens = names
}

func scanText(el canvas.Element, te *domain.TemplateElement) bool {
	te.Type = domain.ElementType(el.Type())
	p := domain.TextPayload{Plaintext: str(read(el, "plaintext"))}

	regions := regionsOf(read(el, "regions"))
	switch {
	case len(regions) == 0:
		p.TextFormatting = formatting(mapOf(read(el, "formatting")))
	case uniform(regions):
		p.TextFormatting = formatting(regions[0].format)
		if p.Plaintext == "" {
			p.Plaintext = joinRegions(regions)
		}
	default:
		full := joinRegions(regions)
		if p.Plaintext == "" {
			p.Plaintext = full
		}
		p.Regions = make([]domain.TextRegion, len(regions))
		for i, r := range regions {
			p.Regions[i] = domain.TextRegion{Text: r.text, Formatting: formatting(r.format)}
		}
	}
	te.Payload = p
	classify(te, p.Plaintext)
	return true
}

type region struct {
	text   string
	format map[string]any
	raw    []byte
}

func regionsOf(v any) []region {
	list, _ := v.([]any)
	out := make([]region, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		f := mapOf(m["formatting"])
		raw, err := json.Marshal(f)
		if err != nil {
			continue
		}
		out = append(out, region{text: str(m["text"]), format: f, raw: raw})
	}
	return out
}

// uniform reports whether every region carries byte-identical serialized
// formatting.
func uniform(regions []region) bool {
	for _, r := range regions[1:] {
		if !bytes.Equal(r.raw, regions[0].raw) {
			return false
		}
	}
	return true
}

func joinRegions(regions []region) string {
	var b []byte
	for _, r := range regions {
		b = append(b, r.text...)
	}
	return string(b)
}

func formatting(m map[string]any) domain.TextFormatting {
	return domain.TextFormatting{
		FontSize:      number(m["fontSize"]),
		FontWeight:    weightString(m["fontWeight"]),
		FontStyle:     str(m["fontStyle"]),
		Color:         str(m["color"]),
		TextAlign:     str(m["textAlign"]),
		Decoration:    str(m["decoration"]),
		Strikethrough: str(m["strikethrough"]),
		FontRef:       str(m["fontRef"]),
		Link:          str(m["link"]),
	}
}

func weightString(v any) string {
	if f, ok := asNumber(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return str(v)
}

func scanShape(el canvas.Element, te *domain.TemplateElement) bool {
	te.Type = domain.ElementShape
	list, _ := read(el, "paths").([]any)
	paths := make([]domain.ShapePath, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		d := str(m["d"])
		if d == "" {
			continue
		}
		paths = append(paths, domain.ShapePath{D: d, Fill: colorOf(m["fill"]), Stroke: colorOf(m["stroke"])})
	}
	vb := viewBox(mapOf(read(el, "viewBox")))
	if len(paths) == 0 || vb == nil || te.Height == nil {
		return false
	}
	te.Payload = domain.ShapePayload{Paths: paths, ViewBox: vb}
	return true
}

func viewBox(m map[string]any) *domain.ViewBox {
	if m == nil {
		return nil
	}
	vb := &domain.ViewBox{
		Top:    number(m["top"]),
		Left:   number(m["left"]),
		Width:  number(m["width"]),
		Height: number(m["height"]),
	}
	if vb.Width <= 0 || vb.Height <= 0 {
		return nil
	}
	return vb
}

// scanRect captures a rectangle. A rectangle filled with an image or video
// becomes that media element.
func scanRect(el canvas.Element, te *domain.TemplateElement) bool {
	fill := mapOf(read(el, "fill"))
	if media := mapOf(fill["media"]); media != nil {
		ref := str(media["ref"])
		kind := str(media["type"])
		if ref == "" || (kind != "image" && kind != "video") {
			return false
		}
		te.Type = domain.ElementType(kind)
		te.Payload = domain.MediaPayload{Fill: &domain.MediaFill{MediaRef: ref}}
		return true
	}
	te.Type = domain.ElementRect
	stroke := mapOf(read(el, "stroke"))
	te.Payload = domain.RectPayload{
		FillColor:    colorOf(fill),
		StrokeColor:  colorOf(stroke),
		StrokeWeight: number(stroke["weight"]),
	}
	return true
}

func scanMedia(el canvas.Element, te *domain.TemplateElement) bool {
	te.Type = domain.ElementType(el.Type())
	ref := str(read(el, "ref"))
	url := str(read(el, "url"))
	alt := str(read(el, "altText"))
	if token.Has(url) {
		te.Payload = domain.MediaPayload{URL: url, Ref: ref, AltText: alt}
		classify(te, url)
		return true
	}
	if ref == "" && url == "" {
		return false
	}
	p := domain.MediaPayload{URL: url, AltText: alt}
	if ref != "" {
		p.Fill = &domain.MediaFill{MediaRef: ref}
	}
	te.Payload = p
	return true
}

func scanEmbed(el canvas.Element, te *domain.TemplateElement) bool {
	te.Type = domain.ElementEmbed
	url := str(read(el, "url"))
	if url == "" {
		return false
	}
	te.Payload = domain.EmbedPayload{URL: url}
	classify(te, url)
	return true
}

// ── value helpers ────────────────────────────────────────────

func str(v any) string {
	s, _ := v.(string)
	return s
}

func mapOf(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// colorOf accepts either a bare color string or a {color: ...} object.
func colorOf(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return str(mapOf(v)["color"])
}

func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

func number(v any) float64 {
	f, _ := asNumber(v)
	return f
}

func optNumber(v any) *float64 {
	f, ok := asNumber(v)
	if !ok {
		return nil
	}
	return &f
}
