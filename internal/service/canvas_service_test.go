package service_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/canvas"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/scanner"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/service"
)

func TestCanvasService_Pages(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.canvas.ActivePage(); !errors.Is(err, service.ErrNoActivePage) {
		t.Fatalf("fresh design active page err = %v", err)
	}

	p1, err := e.canvas.CreatePage(ctx, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if p1.Name != "Page 1" || p1.Width != scanner.DefaultWidth {
		t.Errorf("page = %+v", p1)
	}
	p2, err := e.canvas.CreatePage(ctx, "second", nil)
	if err != nil {
		t.Fatal(err)
	}
	if active, _ := e.canvas.ActivePage(); active.ID != p2.ID {
		t.Errorf("new page not in front")
	}

	if err := e.canvas.SetActivePage(ctx, p1.ID); err != nil {
		t.Fatal(err)
	}
	if active, _ := e.canvas.ActivePage(); active.ID != p1.ID {
		t.Errorf("active = %s, want %s", active.ID, p1.ID)
	}
	if err := e.canvas.SetActivePage(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("set missing page err = %v", err)
	}

	pages, err := e.canvas.ListPages()
	if err != nil || len(pages) != 2 || pages[1].Name != "second" {
		t.Fatalf("pages = %+v, %v", pages, err)
	}

	if err := e.canvas.DeletePage(p1.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.canvas.ActivePage(); !errors.Is(err, service.ErrNoActivePage) {
		t.Errorf("deleting the active page should clear it, got %v", err)
	}
	if n := len(e.emitter.Named(service.EventPageCreated)); n != 2 {
		t.Errorf("page:created emitted %d times", n)
	}
}

func TestCanvasService_Elements(t *testing.T) {
	e := newEnv(t)
	page, err := e.canvas.CreatePage(context.Background(), "", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.canvas.AddElement(page.ID, "sticker", nil); err == nil {
		t.Error("unknown element type accepted")
	}
	if _, err := e.canvas.AddElement("missing", "text", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing page err = %v", err)
	}

	el, err := e.canvas.AddElement(page.ID, "embed", map[string]any{"type": "text", "url": "https://v.test/1"})
	if err != nil {
		t.Fatal(err)
	}
	if el.Type != "embed" {
		t.Errorf("type = %s, data type key must not override", el.Type)
	}
	if _, ok := el.Data["type"]; ok {
		t.Error("type key kept in data")
	}

	if err := e.canvas.DeleteElement(el.ID); err != nil {
		t.Fatal(err)
	}
	els, _ := e.canvas.ListElements(page.ID)
	if len(els) != 0 {
		t.Errorf("elements = %d after delete", len(els))
	}
}

func TestCanvasService_AttachMediaNeedsSource(t *testing.T) {
	e := newEnv(t)
	err := e.canvas.AttachMedia(context.Background(), e.uploader, "image", map[string]any{})
	if err == nil {
		t.Fatal("expected error for image without ref or url")
	}
	if err := e.canvas.AttachMedia(context.Background(), e.uploader, "text", map[string]any{}); err != nil {
		t.Errorf("non-media element: %v", err)
	}
}

func TestMediaUploader(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res, err := e.uploader.Upload(ctx, canvas.UploadRequest{Type: "image", URL: e.media.URL + "/img/logo.png"})
	if err != nil {
		t.Fatal(err)
	}
	m, err := e.canvas.GetMedia(res.Ref)
	if err != nil {
		t.Fatal(err)
	}
	if m.MimeType != "image/png" || m.Type != "image" {
		t.Errorf("media = %+v", m)
	}
	if _, err := os.Stat(m.FilePath); err != nil {
		t.Errorf("downloaded file: %v", err)
	}

	if _, err := e.uploader.Upload(ctx, canvas.UploadRequest{Type: "image", URL: e.media.URL + "/missing.png"}); err == nil {
		t.Error("404 accepted")
	}
	if _, err := e.uploader.Upload(ctx, canvas.UploadRequest{Type: "image", URL: "file:///etc/passwd"}); err == nil {
		t.Error("file url accepted")
	}
	if _, err := e.uploader.Upload(ctx, canvas.UploadRequest{Type: "audio", URL: e.media.URL + "/img/a.mp3"}); err == nil {
		t.Error("audio accepted")
	}
}
