package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/generator"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/service"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/storage"
)

type toolHandler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func newTestServer(t *testing.T) (*Server, *service.MockEmitter) {
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

	emitter := &service.MockEmitter{}
	ms := storage.NewMediaStore(db)
	cs := service.NewCanvasService(storage.NewCanvasStore(db), ms, "", emitter)
	host := service.NewLocalCanvas(cs)
	up := service.NewMediaUploader(ms, db.DataDir(), nil)
	noSleep := func(context.Context, time.Duration) error { return nil }
	tpl := service.NewTemplateService(ts, host, up, emitter, generator.WithSleeper(noSleep))

	return New(Deps{Emitter: emitter, Canvas: cs, Templates: tpl, Uploader: up}), emitter
}

func call(t *testing.T, h toolHandler, args map[string]any) string {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("tool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool returned error result: %+v", res.Content)
	}
	return res.Content[0].(mcp.TextContent).Text
}

func callErr(h toolHandler, args map[string]any) error {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	_, err := h(context.Background(), req)
	return err
}

func TestTools_TemplateRoundTrip(t *testing.T) {
	s, emitter := newTestServer(t)

	var page domain.Page
	if err := json.Unmarshal([]byte(call(t, s.handleCreatePage, map[string]any{"backgroundColor": "#fafafa"})), &page); err != nil {
		t.Fatal(err)
	}

	call(t, s.handleAddElement, map[string]any{
		"type": "text",
		"data": `{"width": 300, "plaintext": "Hi {{name}}", "formatting": {"fontSize": 32}}`,
	})
	call(t, s.handleAddElement, map[string]any{
		"type": "rect",
		"data": `{"width": 200, "height": 100, "fill": {"color": "#ff0000"}}`,
	})

	var els []domain.CanvasElement
	if err := json.Unmarshal([]byte(call(t, s.handleListElements, map[string]any{})), &els); err != nil {
		t.Fatal(err)
	}
	if len(els) != 2 {
		t.Fatalf("elements = %d, want 2", len(els))
	}
	a, b := boundsOf(els[0]), boundsOf(els[1])
	if a.intersects(b) {
		t.Errorf("auto-placed elements overlap: %+v %+v", a, b)
	}
	if n := len(emitter.Named("mcp:elements-changed")); n != 2 {
		t.Errorf("elements-changed emitted %d times", n)
	}

	var tpl domain.Template
	if err := json.Unmarshal([]byte(call(t, s.handleSaveTemplate, map[string]any{
		"name":                 "greeting",
		"missingTokenBehavior": "error",
	})), &tpl); err != nil {
		t.Fatal(err)
	}
	if tpl.ID == "" || tpl.PageConfig.MissingTokenBehavior != domain.MissingTokenError {
		t.Fatalf("saved template = %+v", tpl)
	}
	if _, ok := tpl.PageConfig.TokenDefinitions["name"]; !ok {
		t.Errorf("token name not found, defs = %v", tpl.PageConfig.TokenDefinitions)
	}

	list := call(t, s.handleListTemplates, nil)
	if !strings.Contains(list, `"greeting"`) || !strings.Contains(list, `"dynamic": 1`) {
		t.Errorf("list = %s", list)
	}

	var report generator.Report
	if err := json.Unmarshal([]byte(call(t, s.handleGeneratePage, map[string]any{
		"templateId": tpl.ID,
		"values":     `{"name": "Ada"}`,
	})), &report); err != nil {
		t.Fatal(err)
	}
	if report.PageID == "" || report.PageID == page.ID || len(report.Inserted) != 2 {
		t.Fatalf("report = %+v", report)
	}
	generated := call(t, s.handleListElements, map[string]any{"pageId": report.PageID})
	if !strings.Contains(generated, "Hi Ada") {
		t.Errorf("generated elements = %s", generated)
	}

	// error policy: the page is created, the failure comes back in the result
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"templateId": tpl.ID}
	res, err := s.handleGeneratePage(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError || !strings.Contains(res.Content[0].(mcp.TextContent).Text, "name") {
		t.Errorf("missing token result = %+v", res)
	}

	call(t, s.handleDeleteTemplate, map[string]any{"templateId": tpl.ID})
	if err := callErr(s.handleGetTemplate, map[string]any{"templateId": tpl.ID}); err == nil {
		t.Error("deleted template still readable")
	}
}

func TestTools_SetElementModeAndExport(t *testing.T) {
	s, _ := newTestServer(t)
	call(t, s.handleCreatePage, nil)
	call(t, s.handleAddElement, map[string]any{"type": "text", "data": `{"left": 0, "top": 0, "width": 100, "plaintext": "Plain"}`})

	var tpl domain.Template
	if err := json.Unmarshal([]byte(call(t, s.handleSaveTemplate, map[string]any{"name": "plain"})), &tpl); err != nil {
		t.Fatal(err)
	}
	elID := tpl.PageConfig.Elements[0].ID

	if err := callErr(s.handleSetElementMode, map[string]any{"templateId": tpl.ID, "elementId": elID, "mode": "sometimes"}); err == nil {
		t.Error("bad mode accepted")
	}
	out := call(t, s.handleSetElementMode, map[string]any{"templateId": tpl.ID, "elementId": elID, "mode": "dynamic"})
	if !strings.Contains(out, `"elementMode": "dynamic"`) {
		t.Errorf("set_element_mode = %s", out)
	}

	exported := call(t, s.handleExportTemplate, map[string]any{"templateId": tpl.ID})
	req := mcp.ReadResourceRequest{}
	req.Params.URI = templateURIPrefix + tpl.ID
	contents, err := s.handleTemplateResource(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if contents[0].(mcp.TextResourceContents).Text != exported {
		t.Error("resource and export_template differ")
	}

	call(t, s.handleDeleteTemplate, map[string]any{"templateId": tpl.ID})
	imported := call(t, s.handleImportTemplate, map[string]any{"json": exported})
	if !strings.Contains(imported, tpl.ID) {
		t.Errorf("import kept a different id: %s", imported)
	}
}

func TestTools_RequiredArguments(t *testing.T) {
	s, _ := newTestServer(t)
	cases := []struct {
		name string
		h    toolHandler
		args map[string]any
	}{
		{"set_active_page", s.handleSetActivePage, nil},
		{"add_element without page", s.handleAddElement, map[string]any{"type": "text"}},
		{"list_elements without page", s.handleListElements, nil},
		{"get_template", s.handleGetTemplate, nil},
		{"generate_page", s.handleGeneratePage, nil},
		{"save_template without name", s.handleSaveTemplate, map[string]any{"pageConfig": `{"elements": []}`}},
		{"save_template bad policy", s.handleSaveTemplate, map[string]any{"name": "x", "missingTokenBehavior": "ignore"}},
		{"import_template", s.handleImportTemplate, map[string]any{"json": `{"name": 1}`}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := callErr(tc.h, tc.args); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestExtractPageIDFromURI(t *testing.T) {
	if got := extractPageIDFromURI("canvaskit://page/abc-123/elements"); got != "abc-123" {
		t.Errorf("got %q", got)
	}
	if got := extractPageIDFromURI("notes://page/abc/blocks"); got != "" {
		t.Errorf("foreign scheme parsed as %q", got)
	}
}
