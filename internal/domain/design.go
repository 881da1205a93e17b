package domain

import "time"

// Design is one design document. It owns an ordered list of pages and
// remembers which page the user is looking at.
type Design struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ActivePageID string    `json:"activePageId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Page struct {
	ID                 string    `json:"id"`
	DesignID           string    `json:"designId"`
	Name               string    `json:"name"`
	Order              int       `json:"order"`
	Width              float64   `json:"width"`
	Height             float64   `json:"height"`
	BackgroundColor    string    `json:"backgroundColor"`
	BackgroundImageRef string    `json:"backgroundImageRef"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// CanvasElement is an element placed on a page. Data holds the element's
// host-shaped properties (geometry, text regions, paths, fills) as loose
// JSON, the same way drawing elements are kept.
type CanvasElement struct {
	ID        string         `json:"id"`
	PageID    string         `json:"pageId"`
	Seq       int            `json:"seq"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Media is an uploaded asset. Ref is the opaque reference elements use.
type Media struct {
	Ref       string    `json:"ref"`
	Type      string    `json:"type"` // "image" | "video"
	URL       string    `json:"url"`
	MimeType  string    `json:"mimeType"`
	FilePath  string    `json:"filePath,omitempty"` // local copy, when downloaded
	CreatedAt time.Time `json:"createdAt"`
}

// PageState is a page together with its elements in stacking order.
type PageState struct {
	Page     Page            `json:"page"`
	Elements []CanvasElement `json:"elements"`
}

type CanvasStore interface {
	CreateDesign(d *Design) error
	GetDesign(id string) (*Design, error)
	ListDesigns() ([]Design, error)
	UpdateDesign(d *Design) error
	DeleteDesign(id string) error

	CreatePage(p *Page) error
	GetPage(id string) (*Page, error)
	ListPages(designID string) ([]Page, error)
	DeletePage(id string) error

	AppendElement(e *CanvasElement) error
	ListElements(pageID string) ([]CanvasElement, error)
	DeleteElement(id string) error
}

type MediaStore interface {
	CreateMedia(m *Media) error
	GetMedia(ref string) (*Media, error)
}
