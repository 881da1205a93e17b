package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is matched by every store's not-found failure.
var ErrNotFound = errors.New("not found")

// Template is a saved page configuration plus its metadata.
type Template struct {
	ID              string     `json:"id" bson:"_id"`
	Name            string     `json:"name" bson:"name"`
	Description     string     `json:"description" bson:"description"`
	PageConfig      PageConfig `json:"page_config" bson:"-"`
	PreviewImageURL string     `json:"preview_image_url" bson:"preview_image_url"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" bson:"updated_at"`
}

// TemplateStore persists templates. Implementations return *StoreError for
// backend failures and an error matching ErrNotFound for unknown ids.
type TemplateStore interface {
	List(ctx context.Context) ([]Template, error)
	Get(ctx context.Context, id string) (*Template, error)
	Create(ctx context.Context, t *Template) error
	Update(ctx context.Context, t *Template) error
	Delete(ctx context.Context, id string) error
}

// StoreError is a structured persistence failure.
type StoreError struct {
	Code    string `json:"errorCode"`
	Message string `json:"message"`
}

const (
	StoreCodeNotFound = "not_found"
	StoreCodeInvalid  = "invalid_request"
	StoreCodeBackend  = "backend_error"
)

func (e *StoreError) Error() string {
	return fmt.Sprintf("template store: %s: %s", e.Code, e.Message)
}

func (e *StoreError) Is(target error) bool {
	return target == ErrNotFound && e.Code == StoreCodeNotFound
}

// NotFound builds the store error for a missing template.
func NotFound(id string) *StoreError {
	return &StoreError{Code: StoreCodeNotFound, Message: fmt.Sprintf("template %s not found", id)}
}
