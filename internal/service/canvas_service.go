package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/canvas"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/scanner"
)

// ─────────────────────────────────────────────────────────────
// Canvas Service: the local design: pages and their elements
// ─────────────────────────────────────────────────────────────

// DefaultDesignID is the design used when none is named.
const DefaultDesignID = "default"

// ErrNoActivePage is returned when the design has no page in front.
var ErrNoActivePage = errors.New("no active page")

// elementTypes are the element types a local page accepts.
var elementTypes = map[string]bool{
	"text": true, "richtext": true, "shape": true, "rect": true,
	"image": true, "video": true, "embed": true,
}

// CanvasService manages the pages of one design and the elements on them.
type CanvasService struct {
	store    domain.CanvasStore
	media    domain.MediaStore
	designID string
	emitter  EventEmitter
}

// NewCanvasService creates a CanvasService for designID (DefaultDesignID
// when empty).
func NewCanvasService(store domain.CanvasStore, media domain.MediaStore, designID string, emitter EventEmitter) *CanvasService {
	if designID == "" {
		designID = DefaultDesignID
	}
	return &CanvasService{store: store, media: media, designID: designID, emitter: emitter}
}

func (s *CanvasService) DesignID() string { return s.designID }

// EnsureDesign returns the service's design, creating it on first use.
func (s *CanvasService) EnsureDesign() (*domain.Design, error) {
	d, err := s.store.GetDesign(s.designID)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	d = &domain.Design{ID: s.designID, Name: s.designID}
	if err := s.store.CreateDesign(d); err != nil {
		return nil, fmt.Errorf("create design: %w", err)
	}
	return d, nil
}

// ── Pages ──────────────────────────────────────────────────

func (s *CanvasService) ListPages() ([]domain.Page, error) {
	if _, err := s.EnsureDesign(); err != nil {
		return nil, err
	}
	return s.store.ListPages(s.designID)
}

// CreatePage appends a page to the design and brings it to the front.
func (s *CanvasService) CreatePage(ctx context.Context, name string, bg *domain.Background) (*domain.Page, error) {
	d, err := s.EnsureDesign()
	if err != nil {
		return nil, err
	}
	if name == "" {
		pages, err := s.store.ListPages(d.ID)
		if err != nil {
			return nil, err
		}
		name = fmt.Sprintf("Page %d", len(pages)+1)
	}
	p := &domain.Page{
		ID:       uuid.New().String(),
		DesignID: d.ID,
		Name:     name,
		Width:    scanner.DefaultWidth,
		Height:   scanner.DefaultHeight,
	}
	if bg != nil {
		p.BackgroundColor = bg.Color
		p.BackgroundImageRef = bg.ImageRef
	}
	if err := s.store.CreatePage(p); err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	d.ActivePageID = p.ID
	if err := s.store.UpdateDesign(d); err != nil {
		return nil, fmt.Errorf("activate page: %w", err)
	}
	s.emitter.Emit(ctx, EventPageCreated, p)
	return p, nil
}

// SetActivePage brings an existing page of the design to the front.
func (s *CanvasService) SetActivePage(ctx context.Context, pageID string) error {
	d, err := s.EnsureDesign()
	if err != nil {
		return err
	}
	p, err := s.store.GetPage(pageID)
	if err != nil {
		return err
	}
	if p.DesignID != d.ID {
		return fmt.Errorf("page %s belongs to design %s", pageID, p.DesignID)
	}
	d.ActivePageID = pageID
	if err := s.store.UpdateDesign(d); err != nil {
		return err
	}
	s.emitter.Emit(ctx, EventActivePage, pageID)
	return nil
}

// ActivePage returns the page currently in front.
func (s *CanvasService) ActivePage() (*domain.Page, error) {
	d, err := s.EnsureDesign()
	if err != nil {
		return nil, err
	}
	if d.ActivePageID == "" {
		return nil, ErrNoActivePage
	}
	p, err := s.store.GetPage(d.ActivePageID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrNoActivePage
	}
	return p, err
}

func (s *CanvasService) GetPageState(pageID string) (*domain.PageState, error) {
	p, err := s.store.GetPage(pageID)
	if err != nil {
		return nil, err
	}
	els, err := s.store.ListElements(pageID)
	if err != nil {
		return nil, err
	}
	if els == nil {
		els = []domain.CanvasElement{}
	}
	return &domain.PageState{Page: *p, Elements: els}, nil
}

// DeletePage removes a page, its elements and, when it was in front, the
// active pointer.
func (s *CanvasService) DeletePage(pageID string) error {
	d, err := s.EnsureDesign()
	if err != nil {
		return err
	}
	if err := s.store.DeletePage(pageID); err != nil {
		return err
	}
	if d.ActivePageID == pageID {
		d.ActivePageID = ""
		return s.store.UpdateDesign(d)
	}
	return nil
}

// ── Elements ───────────────────────────────────────────────

// AddElement places an element on top of pageID. data holds the element's
// properties in the host shape (top, left, width, plaintext, paths, ...).
func (s *CanvasService) AddElement(pageID, elementType string, data map[string]any) (*domain.CanvasElement, error) {
	if !elementTypes[elementType] {
		return nil, fmt.Errorf("unsupported element type %q", elementType)
	}
	if _, err := s.store.GetPage(pageID); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	delete(data, "type")
	e := &domain.CanvasElement{
		ID:     uuid.New().String(),
		PageID: pageID,
		Type:   elementType,
		Data:   data,
	}
	if err := s.store.AppendElement(e); err != nil {
		return nil, fmt.Errorf("add element: %w", err)
	}
	return e, nil
}

// AttachMedia gives an image or video element without a ref one, by
// uploading its url.
func (s *CanvasService) AttachMedia(ctx context.Context, up canvas.Uploader, elementType string, data map[string]any) error {
	if elementType != "image" && elementType != "video" {
		return nil
	}
	if ref, _ := data["ref"].(string); ref != "" {
		return nil
	}
	url, _ := data["url"].(string)
	if url == "" {
		return fmt.Errorf("%s element needs a ref or a url", elementType)
	}
	res, err := up.Upload(ctx, canvas.UploadRequest{Type: elementType, URL: url})
	if err != nil {
		return fmt.Errorf("upload %s: %w", url, err)
	}
	data["ref"] = res.Ref
	return nil
}

func (s *CanvasService) ListElements(pageID string) ([]domain.CanvasElement, error) {
	return s.store.ListElements(pageID)
}

func (s *CanvasService) DeleteElement(id string) error {
	return s.store.DeleteElement(id)
}

// GetMedia returns an uploaded media record.
func (s *CanvasService) GetMedia(ref string) (*domain.Media, error) {
	return s.media.GetMedia(ref)
}
