package element

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/canvas"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/token"
)

var (
	// ErrIncomplete means a stored element lacks what its type needs to be
	// inserted (paths, viewBox, height, a media reference).
	ErrIncomplete = errors.New("element is incomplete")

	// ErrUnresolvedURL means a media URL still holds tokens after
	// substitution and there is no scanned reference to fall back to.
	ErrUnresolvedURL = errors.New("media url has unresolved tokens")
)

// DefaultFill replaces any shape fill that is not a #RRGGBB color.
const DefaultFill = "#000000"

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// MediaResolver turns a fully resolved remote URL into a host media
// reference, uploading when needed.
type MediaResolver interface {
	Resolve(ctx context.Context, mediaType, url string) (string, error)
}

// ResolverFunc adapts a function to MediaResolver.
type ResolverFunc func(ctx context.Context, mediaType, url string) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, mediaType, url string) (string, error) {
	return f(ctx, mediaType, url)
}

// ToInsertion builds the host descriptor for te. values is applied to text
// and URLs; pass nil for static elements. resolver is only consulted for
// media that must be uploaded.
func ToInsertion(ctx context.Context, te *domain.TemplateElement, values map[string]any, resolver MediaResolver) (canvas.Insertion, error) {
	geom := canvas.Geometry{
		Top:          te.Top,
		Left:         te.Left,
		Width:        te.Width,
		Height:       te.Height,
		Rotation:     te.Rotation,
		Transparency: te.Transparency,
	}

	switch p := te.Payload.(type) {
	case domain.TextPayload:
		if len(p.Regions) > 0 {
			return richText(geom, p, values), nil
		}
		f := p.TextFormatting
		f.FontWeight = NormalizeWeight(f.FontWeight)
		return canvas.TextInsertion{
			Geometry:   geom,
			Text:       token.Substitute(p.Plaintext, values),
			Formatting: f,
		}, nil

	case domain.ShapePayload:
		if len(p.Paths) == 0 || p.ViewBox == nil || te.Height == nil {
			return nil, fmt.Errorf("shape %s: %w", te.ID, ErrIncomplete)
		}
		paths := make([]domain.ShapePath, len(p.Paths))
		for i, path := range p.Paths {
			paths[i] = domain.ShapePath{D: path.D, Fill: NormalizeFill(path.Fill), Stroke: path.Stroke}
		}
		return canvas.ShapeInsertion{Geometry: geom, Paths: paths, ViewBox: *p.ViewBox}, nil

	case domain.RectPayload:
		if te.Height == nil {
			return nil, fmt.Errorf("rect %s: %w", te.ID, ErrIncomplete)
		}
		w, h := te.Width, *te.Height
		return canvas.ShapeInsertion{
			Geometry: geom,
			Paths: []domain.ShapePath{{
				D:      fmt.Sprintf("M 0 0 H %s V %s H 0 Z", fnum(w), fnum(h)),
				Fill:   NormalizeFill(p.FillColor),
				Stroke: p.StrokeColor,
			}},
			ViewBox: domain.ViewBox{Width: w, Height: h},
		}, nil

	case domain.MediaPayload:
		ref, err := mediaRef(ctx, te, p, values, resolver)
		if err != nil {
			return nil, err
		}
		return canvas.MediaInsertion{Geometry: geom, MediaType: string(te.Type), Ref: ref, AltText: p.AltText}, nil

	case domain.EmbedPayload:
		return canvas.EmbedInsertion{Geometry: geom, URL: token.Substitute(p.URL, values)}, nil
	}
	return nil, fmt.Errorf("element %s: unsupported payload for type %q", te.ID, te.Type)
}

// mediaRef picks the reference to insert. Static media reuse the stored
// reference; dynamic media upload the substituted URL.
func mediaRef(ctx context.Context, te *domain.TemplateElement, p domain.MediaPayload, values map[string]any, resolver MediaResolver) (string, error) {
	if !te.IsDynamic() && p.Fill != nil && p.Fill.MediaRef != "" {
		return p.Fill.MediaRef, nil
	}
	url := token.Substitute(p.URL, values)
	if token.Has(url) {
		if p.Ref != "" {
			return p.Ref, nil
		}
		return "", fmt.Errorf("%s %s: %w", te.Type, te.ID, ErrUnresolvedURL)
	}
	if url == "" {
		return "", fmt.Errorf("%s %s: %w", te.Type, te.ID, ErrIncomplete)
	}
	if resolver == nil {
		return "", fmt.Errorf("%s %s: no media resolver", te.Type, te.ID)
	}
	ref, err := resolver.Resolve(ctx, string(te.Type), url)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", url, err)
	}
	return ref, nil
}

func richText(geom canvas.Geometry, p domain.TextPayload, values map[string]any) canvas.RichTextInsertion {
	var b strings.Builder
	ranges := make([]canvas.FormattingRange, 0, len(p.Regions))
	for _, r := range p.Regions {
		text := token.Substitute(r.Text, values)
		start := b.Len()
		b.WriteString(text)
		f := r.Formatting
		f.FontWeight = NormalizeWeight(f.FontWeight)
		ranges = append(ranges, canvas.FormattingRange{Start: start, End: b.Len(), Formatting: f})
	}
	first := p.Regions[0].Formatting
	return canvas.RichTextInsertion{
		Geometry: geom,
		Text:     b.String(),
		Ranges:   ranges,
		Paragraph: canvas.ParagraphFormatting{
			FontSize:  first.FontSize,
			TextAlign: first.TextAlign,
			FontRef:   first.FontRef,
		},
	}
}

// NormalizeWeight maps a stored font weight onto the host's normal/bold
// choice. Numeric weights of 600 and above are bold.
func NormalizeWeight(w string) string {
	w = strings.TrimSpace(strings.ToLower(w))
	if n, err := strconv.ParseFloat(w, 64); err == nil {
		if n >= 600 {
			return "bold"
		}
		return "normal"
	}
	if w == "bold" || w == "bolder" {
		return "bold"
	}
	return "normal"
}

// NormalizeFill returns c when it is a #RRGGBB color and DefaultFill
// otherwise.
func NormalizeFill(c string) string {
	if hexColor.MatchString(c) {
		return c
	}
	return DefaultFill
}

func fnum(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
