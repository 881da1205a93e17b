package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/canvas"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// LocalCanvas: canvas.Host over the local design
// ─────────────────────────────────────────────────────────────

// LocalCanvas lets the scanner and generator work against the pages kept
// by a CanvasService. Inserted elements are stored in the same shape the
// scanner reads, so a generated page can be scanned again.
type LocalCanvas struct {
	pages *CanvasService
}

func NewLocalCanvas(pages *CanvasService) *LocalCanvas {
	return &LocalCanvas{pages: pages}
}

var _ canvas.Host = (*LocalCanvas)(nil)

type localSession struct {
	elements []canvas.Element
	bg       *domain.Background
}

func (s *localSession) Elements() ([]canvas.Element, error) { return s.elements, nil }
func (s *localSession) Background() *domain.Background   { return s.bg }
func (s *localSession) Close() error                     { return nil }

// OpenCurrentPage snapshots the active page.
func (c *LocalCanvas) OpenCurrentPage(ctx context.Context) (canvas.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := c.pages.ActivePage()
	if err != nil {
		return nil, err
	}
	els, err := c.pages.ListElements(page.ID)
	if err != nil {
		return nil, fmt.Errorf("list elements: %w", err)
	}
	s := &localSession{elements: make([]canvas.Element, 0, len(els))}
	for _, e := range els {
		m := make(canvas.MapElement, len(e.Data)+1)
		for k, v := range e.Data {
			m[k] = v
		}
		m["type"] = e.Type
		s.elements = append(s.elements, m)
	}
	if page.BackgroundColor != "" || page.BackgroundImageRef != "" {
		s.bg = &domain.Background{Color: page.BackgroundColor, ImageRef: page.BackgroundImageRef}
	}
	return s, nil
}

// CreatePage adds a page and brings it to the front.
func (c *LocalCanvas) CreatePage(ctx context.Context, bg *domain.Background) (canvas.PageHandle, error) {
	p, err := c.pages.CreatePage(ctx, "", bg)
	if err != nil {
		return canvas.PageHandle{}, err
	}
	return canvas.PageHandle{ID: p.ID}, nil
}

// Insert stores ins on top of page. Media references must be known to the
// media store; unknown ones fail with canvas.ErrInvalidMediaRef.
func (c *LocalCanvas) Insert(ctx context.Context, page canvas.PageHandle, ins canvas.Insertion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	typ, data, err := c.elementData(ins)
	if err != nil {
		return err
	}
	_, err = c.pages.AddElement(page.ID, typ, data)
	return err
}

// elementData converts an insertion into the stored element shape.
func (c *LocalCanvas) elementData(ins canvas.Insertion) (string, map[string]any, error) {
	data, err := toMap(ins.Geom())
	if err != nil {
		return "", nil, err
	}

	switch v := ins.(type) {
	case canvas.TextInsertion:
		f, err := toMap(v.Formatting)
		if err != nil {
			return "", nil, err
		}
		data["plaintext"] = v.Text
		data["formatting"] = f
		return "text", data, nil

	case canvas.RichTextInsertion:
		regions := make([]any, 0, len(v.Ranges))
		for _, r := range v.Ranges {
			f := r.Formatting
			if f.FontSize == 0 {
				f.FontSize = v.Paragraph.FontSize
			}
			if f.TextAlign == "" {
				f.TextAlign = v.Paragraph.TextAlign
			}
			if f.FontRef == "" {
				f.FontRef = v.Paragraph.FontRef
			}
			fm, err := toMap(f)
			if err != nil {
				return "", nil, err
			}
			regions = append(regions, map[string]any{"text": v.Text[r.Start:r.End], "formatting": fm})
		}
		data["plaintext"] = v.Text
		data["regions"] = regions
		return "richtext", data, nil

	case canvas.ShapeInsertion:
		paths, err := toAny(v.Paths)
		if err != nil {
			return "", nil, err
		}
		vb, err := toMap(v.ViewBox)
		if err != nil {
			return "", nil, err
		}
		data["paths"] = paths
		data["viewBox"] = vb
		return "shape", data, nil

	case canvas.MediaInsertion:
		m, err := c.pages.GetMedia(v.Ref)
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, fmt.Errorf("media %s: %w", v.Ref, canvas.ErrInvalidMediaRef)
		}
		if err != nil {
			return "", nil, err
		}
		if m.Type != v.MediaType {
			return "", nil, fmt.Errorf("media %s is %s, not %s: %w", v.Ref, m.Type, v.MediaType, canvas.ErrInvalidMediaRef)
		}
		data["ref"] = v.Ref
		data["url"] = m.URL
		if v.AltText != "" {
			data["altText"] = v.AltText
		}
		return v.MediaType, data, nil

	case canvas.EmbedInsertion:
		data["url"] = v.URL
		return "embed", data, nil
	}
	return "", nil, fmt.Errorf("unsupported insertion %q", ins.Kind())
}

func toAny(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toMap(v any) (map[string]any, error) {
	out, err := toAny(v)
	if err != nil {
		return nil, err
	}
	m, _ := out.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
