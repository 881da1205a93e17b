package service_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/canvas"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/generator"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/schema"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/service"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/storage"
)

// mediaServer serves fake PNGs under /img/ and counts requests per path.
type mediaServer struct {
	*httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

func newMediaServer(t *testing.T) *mediaServer {
	t.Helper()
	ms := &mediaServer{hits: map[string]int{}}
	ms.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ms.mu.Lock()
		ms.hits[r.URL.Path]++
		ms.mu.Unlock()
		if !strings.HasPrefix(r.URL.Path, "/img/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("\x89PNG fake"))
	}))
	t.Cleanup(ms.Close)
	return ms
}

func (ms *mediaServer) Hits(path string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.hits[path]
}

type env struct {
	db        *storage.DB
	canvas    *service.CanvasService
	host      *service.LocalCanvas
	uploader  *service.MediaUploader
	templates *service.TemplateService
	emitter   *service.MockEmitter
	media     *mediaServer
}

func noSleep(context.Context, time.Duration) error { return nil }

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "test.db"), filepath.Join(dir, "data"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	ts, err := storage.NewSQLiteTemplateStore(db)
	if err != nil {
		t.Fatal(err)
	}
	e := &env{db: db, emitter: &service.MockEmitter{}, media: newMediaServer(t)}
	ms := storage.NewMediaStore(db)
	e.canvas = service.NewCanvasService(storage.NewCanvasStore(db), ms, "", e.emitter)
	e.host = service.NewLocalCanvas(e.canvas)
	e.uploader = service.NewMediaUploader(ms, db.DataDir(), e.media.Client())
	e.templates = service.NewTemplateService(ts, e.host, e.uploader, e.emitter, generator.WithSleeper(noSleep))
	return e
}

func (e *env) add(t *testing.T, pageID, typ string, data map[string]any) {
	t.Helper()
	if err := e.canvas.AttachMedia(context.Background(), e.uploader, typ, data); err != nil {
		t.Fatal(err)
	}
	if _, err := e.canvas.AddElement(pageID, typ, data); err != nil {
		t.Fatal(err)
	}
}

// buildSourcePage lays out a pricing card: a tokenized heading, a shape, a
// tokenized logo and a static badge image.
func (e *env) buildSourcePage(t *testing.T) *domain.Page {
	t.Helper()
	page, err := e.canvas.CreatePage(context.Background(), "source", &domain.Background{Color: "#ffffff"})
	if err != nil {
		t.Fatal(err)
	}
	e.add(t, page.ID, "text", map[string]any{
		"top": 10, "left": 20, "width": 300,
		"plaintext":  "Hello {{company_name}}",
		"formatting": map[string]any{"fontSize": 24, "fontWeight": "700", "color": "#111111"},
	})
	e.add(t, page.ID, "shape", map[string]any{
		"top": 0, "left": 0, "width": 40, "height": 40,
		"paths":   []any{map[string]any{"d": "M 0 0 L 10 10", "fill": "red"}},
		"viewBox": map[string]any{"top": 0, "left": 0, "width": 40, "height": 40},
	})
	e.add(t, page.ID, "image", map[string]any{
		"top": 100, "left": 100, "width": 64, "height": 64,
		"url": e.media.URL + "/img/{{logo_name}}.png",
		"ref": "M_scanned",
	})
	e.add(t, page.ID, "image", map[string]any{
		"top": 200, "left": 100, "width": 32, "height": 32,
		"url": e.media.URL + "/img/badge.png",
	})
	return page
}

func TestTemplateService_ScanSaveGenerate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.buildSourcePage(t)

	tpl, err := e.templates.SaveTemplate(ctx, service.SaveTemplateInput{Name: " Pricing card "})
	if err != nil {
		t.Fatal(err)
	}
	if tpl.Name != "Pricing card" {
		t.Errorf("name = %q", tpl.Name)
	}
	cfg := tpl.PageConfig
	if len(cfg.Elements) != 4 {
		t.Fatalf("elements = %d, want 4", len(cfg.Elements))
	}
	if cfg.Background == nil || cfg.Background.Color != "#ffffff" {
		t.Errorf("background = %+v", cfg.Background)
	}
	if d := cfg.TokenDefinitions["logo_name"]; d.Type != domain.TokenTypeImageURL || d.Label != "Logo Name" {
		t.Errorf("logo_name definition = %+v", d)
	}
	if cfg.Elements[3].IsDynamic() {
		t.Error("static badge classified dynamic")
	}
	if len(e.emitter.Named(service.EventTemplateSaved)) != 1 {
		t.Error("template:saved not emitted")
	}

	values := domain.TokenValues{"company_name": "Acme", "logo_name": "acme"}
	report, err := e.templates.Generate(ctx, "s1", tpl.ID, values)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Inserted) != 4 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v", report)
	}

	active, err := e.canvas.ActivePage()
	if err != nil || active.ID != report.PageID {
		t.Fatalf("active page = %+v, %v; want generated %s", active, err, report.PageID)
	}
	state, err := e.canvas.GetPageState(report.PageID)
	if err != nil {
		t.Fatal(err)
	}
	if state.Page.BackgroundColor != "#ffffff" {
		t.Errorf("generated background = %q", state.Page.BackgroundColor)
	}
	text := state.Elements[0]
	if text.Type != "text" || text.Data["plaintext"] != "Hello Acme" {
		t.Errorf("text element = %+v", text)
	}
	if f, _ := text.Data["formatting"].(map[string]any); f["fontWeight"] != "bold" {
		t.Errorf("formatting = %v", text.Data["formatting"])
	}
	paths, _ := state.Elements[1].Data["paths"].([]any)
	if len(paths) != 1 || paths[0].(map[string]any)["fill"] != element0Fill {
		t.Errorf("shape paths = %v", paths)
	}
	if got := state.Elements[2].Data["url"]; got != e.media.URL+"/img/acme.png" {
		t.Errorf("logo url = %v", got)
	}
	if e.media.Hits("/img/acme.png") != 1 {
		t.Errorf("acme fetched %d times", e.media.Hits("/img/acme.png"))
	}
	if len(e.emitter.Named(service.EventPageGenerated)) != 1 {
		t.Error("page:generated not emitted")
	}

	// Same session reuses the upload.
	if _, err := e.templates.Generate(ctx, "s1", tpl.ID, values); err != nil {
		t.Fatal(err)
	}
	if e.media.Hits("/img/acme.png") != 1 {
		t.Errorf("cached upload fetched again: %d", e.media.Hits("/img/acme.png"))
	}
	if n := e.templates.ClearUploadCache("s1"); n != 1 {
		t.Errorf("ClearUploadCache = %d, want 1", n)
	}

	// The generated page scans back with the values baked in.
	rescanned, err := e.templates.ScanActivePage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if p, _ := rescanned.Elements[0].Payload.(domain.TextPayload); p.Plaintext != "Hello Acme" || rescanned.Elements[0].IsDynamic() {
		t.Errorf("rescanned text = %+v", rescanned.Elements[0])
	}
}

const element0Fill = "#000000"

func TestTemplateService_StaleStaticMediaIsReuploaded(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	h := 32.0
	cfg := &domain.PageConfig{
		Elements: []domain.TemplateElement{{
			ID: "elem_000", Type: domain.ElementImage, ElementMode: domain.ElementModeStatic,
			Width: 32, Height: &h,
			Payload: domain.MediaPayload{
				Fill: &domain.MediaFill{MediaRef: "M_gone"},
				URL:  e.media.URL + "/img/badge.png",
			},
		}},
		TokenDefinitions: map[string]domain.TokenDefinition{},
	}
	report, err := e.templates.GenerateFromConfig(ctx, "", cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Retried) != 1 || len(report.Inserted) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if e.media.Hits("/img/badge.png") != 1 {
		t.Errorf("badge fetched %d times", e.media.Hits("/img/badge.png"))
	}
}

func TestTemplateService_MissingTokenErrorPolicy(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.buildSourcePage(t)
	tpl, err := e.templates.SaveTemplate(ctx, service.SaveTemplateInput{Name: "strict"})
	if err != nil {
		t.Fatal(err)
	}
	policy := domain.MissingTokenError
	if _, err := e.templates.UpdateTemplate(ctx, tpl.ID, service.UpdateTemplateInput{MissingTokenBehavior: &policy}); err != nil {
		t.Fatal(err)
	}

	report, err := e.templates.Generate(ctx, "", tpl.ID, domain.TokenValues{"company_name": "Acme"})
	if !errors.Is(err, generator.ErrMissingToken) {
		t.Fatalf("err = %v, want missing token", err)
	}
	var mt *generator.MissingTokenError
	if !errors.As(err, &mt) || mt.ElementID != "elem_002" {
		t.Errorf("missing token error = %+v", mt)
	}
	if report == nil || report.PageID == "" {
		t.Error("page should exist even when generation aborts")
	}
}

func TestTemplateService_SetElementMode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.buildSourcePage(t)
	tpl, err := e.templates.SaveTemplate(ctx, service.SaveTemplateInput{Name: "modes"})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := e.templates.SetElementMode(ctx, tpl.ID, "elem_000", domain.ElementModeStatic)
	if err != nil {
		t.Fatal(err)
	}
	if el, _ := updated.PageConfig.Element("elem_000"); el.IsDynamic() || len(el.Tokens) != 0 {
		t.Errorf("element = %+v", el)
	}
	stored, _ := e.templates.GetTemplate(ctx, tpl.ID)
	if el, _ := stored.PageConfig.Element("elem_000"); el.IsDynamic() {
		t.Error("override not persisted")
	}

	if _, err := e.templates.SetElementMode(ctx, tpl.ID, "elem_999", domain.ElementModeStatic); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown element err = %v", err)
	}
	if _, err := e.templates.SetElementMode(ctx, tpl.ID, "elem_000", "live"); err == nil {
		t.Error("invalid mode accepted")
	}
}

func TestTemplateService_ExportImport(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.buildSourcePage(t)
	tpl, err := e.templates.SaveTemplate(ctx, service.SaveTemplateInput{Name: "card", Description: "v1"})
	if err != nil {
		t.Fatal(err)
	}

	doc, err := e.templates.ExportTemplate(ctx, tpl.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := schema.Validate(doc); err != nil {
		t.Fatalf("export does not match schema: %v", err)
	}

	edited := strings.Replace(string(doc), `"description": "v1"`, `"description": "v2"`, 1)
	imported, err := e.templates.ImportJSON(ctx, []byte(edited))
	if err != nil {
		t.Fatal(err)
	}
	if imported.ID != tpl.ID || imported.Description != "v2" {
		t.Errorf("import did not replace: %+v", imported)
	}
	list, _ := e.templates.ListTemplates(ctx)
	if len(list) != 1 {
		t.Errorf("templates = %d, want 1", len(list))
	}

	fresh := strings.Replace(edited, tpl.ID, "imported-1", 1)
	path := filepath.Join(t.TempDir(), "card.json")
	if err := os.WriteFile(path, []byte(fresh), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := e.templates.ImportFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	if _, err := e.templates.GetTemplate(ctx, "imported-1"); err != nil {
		t.Errorf("imported copy missing: %v", err)
	}
}

func TestTemplateService_ImportRejectsBadDocuments(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.templates.ImportJSON(ctx, []byte(`{"name":"x","page_config":{"elements":[{"id":"a","type":"blob","elementMode":"static"}]}}`))
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("err = %v, want schema violation", err)
	}

	undefined := `{"name":"x","page_config":{"elements":[{"id":"a","type":"embed","elementMode":"dynamic","tokens":["vid"],"url":"https://v.test/{{vid}}"}]}}`
	if _, err := e.templates.ImportJSON(ctx, []byte(undefined)); err == nil || !strings.Contains(err.Error(), "undefined token") {
		t.Errorf("err = %v, want undefined token", err)
	}
}

func TestTemplateService_DeleteTemplate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.buildSourcePage(t)
	tpl, err := e.templates.SaveTemplate(ctx, service.SaveTemplateInput{Name: "gone"})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.templates.DeleteTemplate(ctx, tpl.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.templates.Generate(ctx, "", tpl.ID, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("generate deleted template err = %v", err)
	}
	if len(e.emitter.Named(service.EventTemplateDeleted)) != 1 {
		t.Error("template:deleted not emitted")
	}
}

func TestTemplateService_SaveRequiresName(t *testing.T) {
	e := newEnv(t)
	if _, err := e.templates.SaveTemplate(context.Background(), service.SaveTemplateInput{Name: "  "}); err == nil {
		t.Fatal("expected error")
	}
}

func TestLocalCanvas_RejectsUnknownMediaRef(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	page, err := e.canvas.CreatePage(ctx, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	err = e.host.Insert(ctx, canvas.PageHandle{ID: page.ID}, canvas.MediaInsertion{MediaType: "image", Ref: "nope"})
	if !errors.Is(err, canvas.ErrInvalidMediaRef) {
		t.Fatalf("err = %v", err)
	}
}

func TestImportWatcher_ImportsWrittenFiles(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()

	w := service.NewImportWatcher(dir, e.templates)
	w.SetDebounce(20 * time.Millisecond)
	imported := make(chan error, 4)
	w.OnImport = func(path string, tpl *domain.Template, err error) { imported <- err }
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	doc := `{"id":"watched","name":"watched","page_config":{"elements":[],"tokenDefinitions":{}}}`
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "watched.json"), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-imported:
		if err != nil {
			t.Fatalf("import: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("file was not imported")
	}
	if _, err := e.templates.GetTemplate(context.Background(), "watched"); err != nil {
		t.Errorf("watched template missing: %v", err)
	}
}
