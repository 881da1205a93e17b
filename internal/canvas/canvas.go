// Package canvas is the contract between the templating core and the host
// design surface: reading the open page, creating pages, inserting elements
// and uploading media.
package canvas

import (
	"context"
	"errors"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
)

var (
	// ErrNoElementList is returned by Session.Elements when the open page
	// cannot enumerate its elements.
	ErrNoElementList = errors.New("page does not expose an element list")

	// ErrInvalidMediaRef is returned by Host.Insert when a media reference
	// is stale or unknown to the host.
	ErrInvalidMediaRef = errors.New("invalid media reference")
)

// Element is a live host element seen through a read-only accessor. Get
// returns (nil, nil) for an absent property and an error when reading the
// property fails on the host side.
type Element interface {
	Type() string
	Get(key string) (any, error)
}

// Session is a read-only view of the page the user currently has open.
type Session interface {
	Elements() ([]Element, error)
	Background() *domain.Background
	Close() error
}

// PageHandle identifies a page created through Host.CreatePage.
type PageHandle struct {
	ID string `json:"id"`
}

// Host is the design surface. Implementations are not safe for concurrent
// mutation; callers serialize CreatePage and Insert calls.
type Host interface {
	OpenCurrentPage(ctx context.Context) (Session, error)
	CreatePage(ctx context.Context, bg *domain.Background) (PageHandle, error)
	Insert(ctx context.Context, page PageHandle, ins Insertion) error
}

type UploadRequest struct {
	Type     string `json:"type"` // "image" | "video"
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
}

type UploadResult struct {
	Ref string `json:"ref"`
}

// Uploader turns a remote URL into a host media reference.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (UploadResult, error)
}
