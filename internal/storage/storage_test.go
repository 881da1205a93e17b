package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/storage"
)

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "test.db"), filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNew_MigrationsAreRepeatable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	for i := 0; i < 2; i++ {
		db, err := storage.New(path, dir)
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		db.Close()
	}
}

func TestCanvasStore_PagesAndElements(t *testing.T) {
	s := storage.NewCanvasStore(openDB(t))

	d := &domain.Design{ID: "d1", Name: "Deck"}
	if err := s.CreateDesign(d); err != nil {
		t.Fatal(err)
	}
	p1 := &domain.Page{ID: "p1", DesignID: "d1", Name: "one", Width: 1920, Height: 1080}
	p2 := &domain.Page{ID: "p2", DesignID: "d1", Name: "two", Width: 1920, Height: 1080, BackgroundColor: "#fff"}
	for _, p := range []*domain.Page{p1, p2} {
		if err := s.CreatePage(p); err != nil {
			t.Fatal(err)
		}
	}
	if p2.Order != 1 {
		t.Errorf("second page order = %d, want 1", p2.Order)
	}

	for i, typ := range []string{"text", "shape", "image"} {
		e := &domain.CanvasElement{ID: typ, PageID: "p1", Type: typ, Data: map[string]any{"top": float64(i)}}
		if err := s.AppendElement(e); err != nil {
			t.Fatal(err)
		}
		if e.Seq != i {
			t.Errorf("seq = %d, want %d", e.Seq, i)
		}
	}
	els, err := s.ListElements("p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(els) != 3 || els[0].ID != "text" || els[2].ID != "image" {
		t.Fatalf("elements = %+v", els)
	}
	if els[1].Data["top"] != float64(1) {
		t.Errorf("data = %v", els[1].Data)
	}

	d.ActivePageID = "p2"
	if err := s.UpdateDesign(d); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetDesign("d1")
	if err != nil || got.ActivePageID != "p2" {
		t.Fatalf("design = %+v, %v", got, err)
	}

	if err := s.DeletePage("p1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetPage("p1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("deleted page err = %v", err)
	}
	if els, _ := s.ListElements("p1"); len(els) != 0 {
		t.Errorf("elements survived page delete: %d", len(els))
	}
	pages, _ := s.ListPages("d1")
	if len(pages) != 1 || pages[0].BackgroundColor != "#fff" {
		t.Errorf("pages = %+v", pages)
	}
}

func TestMediaStore(t *testing.T) {
	s := storage.NewMediaStore(openDB(t))
	m := &domain.Media{Ref: "M1", Type: "image", URL: "https://x.test/a.png", MimeType: "image/png"}
	if err := s.CreateMedia(m); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetMedia("M1")
	if err != nil || got.URL != m.URL {
		t.Fatalf("media = %+v, %v", got, err)
	}
	if _, err := s.GetMedia("nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func sampleTemplate() *domain.Template {
	h := 40.0
	return &domain.Template{
		Name:        "Pricing card",
		Description: "one company",
		PageConfig: domain.PageConfig{
			Dimensions: domain.Dimensions{Width: 1920, Height: 1080},
			Background: &domain.Background{Color: "#ffffff"},
			Elements: []domain.TemplateElement{
				{
					ID: "elem_000", Type: domain.ElementText, ElementMode: domain.ElementModeDynamic,
					Width: 300, Tokens: []string{"company_name"},
					Payload: domain.TextPayload{Plaintext: "{{company_name}}", TextFormatting: domain.TextFormatting{FontSize: 32, FontWeight: "700"}},
				},
				{
					ID: "elem_002", Type: domain.ElementShape, ElementMode: domain.ElementModeStatic,
					Width: 40, Height: &h,
					Payload: domain.ShapePayload{Paths: []domain.ShapePath{{D: "M0 0", Fill: "#123456"}}, ViewBox: &domain.ViewBox{Width: 40, Height: 40}},
				},
			},
			TokenDefinitions:     map[string]domain.TokenDefinition{"company_name": {Type: domain.TokenTypeString, Label: "Company Name"}},
			MissingTokenBehavior: domain.MissingTokenPlaceholder,
		},
	}
}

func TestSQLiteTemplateStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewSQLiteTemplateStore(openDB(t))
	if err != nil {
		t.Fatal(err)
	}

	tpl := sampleTemplate()
	if err := s.Create(ctx, tpl); err != nil {
		t.Fatal(err)
	}
	if tpl.ID == "" {
		t.Fatal("id not assigned")
	}

	got, err := s.Get(ctx, tpl.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != tpl.Name || len(got.PageConfig.Elements) != 2 {
		t.Fatalf("template = %+v", got)
	}
	text, ok := got.PageConfig.Elements[0].Payload.(domain.TextPayload)
	if !ok || text.Plaintext != "{{company_name}}" || text.FontWeight != "700" {
		t.Errorf("text payload = %#v", got.PageConfig.Elements[0].Payload)
	}
	if got.PageConfig.MissingTokenBehavior != domain.MissingTokenPlaceholder {
		t.Errorf("policy = %s", got.PageConfig.MissingTokenBehavior)
	}
	if got.PageConfig.TokenDefinitions["company_name"].Label != "Company Name" {
		t.Errorf("definitions = %+v", got.PageConfig.TokenDefinitions)
	}

	got.Name = "Renamed"
	if err := s.Update(ctx, got); err != nil {
		t.Fatal(err)
	}
	list, err := s.List(ctx)
	if err != nil || len(list) != 1 || list[0].Name != "Renamed" {
		t.Fatalf("list = %+v, %v", list, err)
	}

	if err := s.Delete(ctx, tpl.ID); err != nil {
		t.Fatal(err)
	}
	_, err = s.Get(ctx, tpl.ID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get after delete = %v", err)
	}
	var se *domain.StoreError
	if !errors.As(err, &se) || se.Code != domain.StoreCodeNotFound {
		t.Errorf("err = %#v, want StoreError not_found", err)
	}
	if err := s.Delete(ctx, tpl.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete = %v", err)
	}
	if err := s.Update(ctx, tpl); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("update missing = %v", err)
	}
}

func TestOpenSQLTemplateStore_RejectsUnknownDialect(t *testing.T) {
	if _, err := storage.OpenSQLTemplateStore(context.Background(), "oracle", "x"); err == nil {
		t.Fatal("expected error")
	}
}
