package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/service"
)

func (s *Server) registerTemplateTools() {
	// ── scan_page ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("scan_page",
		mcp.WithDescription("Scan the active page into a page configuration. Elements whose text contains {{token}} placeholders are marked dynamic."),
	), s.handleScanPage)

	// ── save_template ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("save_template",
		mcp.WithDescription("Save a template. Without pageConfig the active page is scanned first."),
		mcp.WithString("name",
			mcp.Description("Template name"),
			mcp.Required(),
		),
		mcp.WithString("description",
			mcp.Description("Template description"),
		),
		mcp.WithString("previewImageUrl",
			mcp.Description("URL of a preview image"),
		),
		mcp.WithString("pageConfig",
			mcp.Description("Page configuration as JSON (default: scan the active page)"),
		),
		mcp.WithString("missingTokenBehavior",
			mcp.Description("What to do with dynamic elements whose tokens have no value: skip, placeholder, error"),
		),
	), s.handleSaveTemplate)

	// ── list_templates ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_templates",
		mcp.WithDescription("List saved templates"),
	), s.handleListTemplates)

	// ── get_template ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_template",
		mcp.WithDescription("Get a template with its full page configuration"),
		mcp.WithString("templateId",
			mcp.Description("ID of the template"),
			mcp.Required(),
		),
	), s.handleGetTemplate)

	// ── delete_template ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_template",
		mcp.WithDescription("Delete a template"),
		mcp.WithString("templateId",
			mcp.Description("ID of the template to delete"),
			mcp.Required(),
		),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteTemplate)

	// ── set_element_mode ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_element_mode",
		mcp.WithDescription("Mark one element of a template static or dynamic"),
		mcp.WithString("templateId",
			mcp.Description("ID of the template"),
			mcp.Required(),
		),
		mcp.WithString("elementId",
			mcp.Description("Element ID inside the template, e.g. elem_003"),
			mcp.Required(),
		),
		mcp.WithString("mode",
			mcp.Description("static or dynamic"),
			mcp.Required(),
		),
	), s.handleSetElementMode)

	// ── generate_page ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("generate_page",
		mcp.WithDescription("Create a new page from a template, substituting token values"),
		mcp.WithString("templateId",
			mcp.Description("ID of the template"),
			mcp.Required(),
		),
		mcp.WithString("values",
			mcp.Description("Token values as a JSON object, e.g. {\"company_name\": \"Acme\"}"),
		),
		mcp.WithString("session",
			mcp.Description("Generation session; uploads are cached per session (default: default)"),
		),
	), s.handleGeneratePage)

	// ── clear_upload_cache ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("clear_upload_cache",
		mcp.WithDescription("Forget cached media uploads so the next generation uploads again"),
		mcp.WithString("session",
			mcp.Description("Session to clear (default: all sessions)"),
		),
	), s.handleClearUploadCache)

	// ── import_template ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("import_template",
		mcp.WithDescription("Import a template from its JSON export. An existing template with the same id is replaced."),
		mcp.WithString("json",
			mcp.Description("Template JSON"),
			mcp.Required(),
		),
	), s.handleImportTemplate)

	// ── export_template ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("export_template",
		mcp.WithDescription("Export a template as JSON"),
		mcp.WithString("templateId",
			mcp.Description("ID of the template"),
			mcp.Required(),
		),
	), s.handleExportTemplate)
}

func (s *Server) handleScanPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := s.templates.ScanActivePage(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan page: %w", err)
	}
	return jsonResult(cfg)
}

func (s *Server) handleSaveTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := service.SaveTemplateInput{
		Name:            req.GetString("name", ""),
		Description:     req.GetString("description", ""),
		PreviewImageURL: req.GetString("previewImageUrl", ""),
	}
	if raw := req.GetString("pageConfig", ""); raw != "" {
		var cfg domain.PageConfig
		if err := parseJSON(raw, &cfg); err != nil {
			return nil, fmt.Errorf("invalid pageConfig JSON: %w", err)
		}
		in.Config = &cfg
	}
	if policy := domain.MissingTokenBehavior(req.GetString("missingTokenBehavior", "")); policy != "" {
		if !policy.Valid() {
			return nil, fmt.Errorf("unknown missingTokenBehavior %q", policy)
		}
		if in.Config == nil {
			cfg, err := s.templates.ScanActivePage(ctx)
			if err != nil {
				return nil, fmt.Errorf("scan page: %w", err)
			}
			in.Config = cfg
		}
		in.Config.MissingTokenBehavior = policy
	}

	t, err := s.templates.SaveTemplate(ctx, in)
	if err != nil {
		return nil, err
	}
	return jsonResult(t)
}

func (s *Server) handleListTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templates, err := s.templates.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return jsonResult(summarizeTemplates(templates))
}

func (s *Server) handleGetTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("templateId", "")
	if id == "" {
		return nil, fmt.Errorf("templateId is required")
	}
	t, err := s.templates.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	return jsonResult(t)
}

func (s *Server) handleDeleteTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("templateId", "")
	if id == "" {
		return nil, fmt.Errorf("templateId is required")
	}
	if err := s.templates.DeleteTemplate(ctx, id); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Template %s deleted", id)), nil
}

func (s *Server) handleSetElementMode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templateID := req.GetString("templateId", "")
	elementID := req.GetString("elementId", "")
	mode := domain.ElementMode(req.GetString("mode", ""))
	if templateID == "" || elementID == "" {
		return nil, fmt.Errorf("templateId and elementId are required")
	}
	if mode != domain.ElementModeStatic && mode != domain.ElementModeDynamic {
		return nil, fmt.Errorf("mode must be static or dynamic")
	}
	t, err := s.templates.SetElementMode(ctx, templateID, elementID, mode)
	if err != nil {
		return nil, err
	}
	el, _ := t.PageConfig.Element(elementID)
	return jsonResult(el)
}

func (s *Server) handleGeneratePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templateID := req.GetString("templateId", "")
	if templateID == "" {
		return nil, fmt.Errorf("templateId is required")
	}
	values := domain.TokenValues{}
	if raw := req.GetString("values", ""); raw != "" {
		if err := parseJSON(raw, &values); err != nil {
			return nil, fmt.Errorf("invalid values JSON: %w", err)
		}
	}

	report, err := s.templates.Generate(ctx, req.GetString("session", ""), templateID, values)
	if err != nil {
		if report == nil {
			return nil, err
		}
		// The page exists; hand back what was inserted along with the failure.
		res, jerr := jsonResult(map[string]any{"report": report, "error": err.Error()})
		if jerr != nil {
			return nil, jerr
		}
		res.IsError = true
		return res, nil
	}
	s.emitElementsChanged(ctx, report.PageID)
	return jsonResult(report)
}

func (s *Server) handleClearUploadCache(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := s.templates.ClearUploadCache(req.GetString("session", ""))
	return textResult(fmt.Sprintf("Cleared %d cached uploads", n)), nil
}

func (s *Server) handleImportTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := req.GetString("json", "")
	if raw == "" {
		return nil, fmt.Errorf("json is required")
	}
	t, err := s.templates.ImportJSON(ctx, []byte(raw))
	if err != nil {
		return nil, err
	}
	return jsonResult(summarizeTemplates([]domain.Template{*t})[0])
}

func (s *Server) handleExportTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("templateId", "")
	if id == "" {
		return nil, fmt.Errorf("templateId is required")
	}
	data, err := s.templates.ExportTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	return textResult(string(data)), nil
}

// ── Summaries ──────────────────────────────────────────────

type templateSummary struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Elements int      `json:"elements"`
	Dynamic  int      `json:"dynamic"`
	Tokens   []string `json:"tokens"`
	Updated  string   `json:"updatedAt"`
}

func summarizeTemplates(templates []domain.Template) []templateSummary {
	out := make([]templateSummary, len(templates))
	for i, t := range templates {
		dynamic := 0
		for _, e := range t.PageConfig.Elements {
			if e.IsDynamic() {
				dynamic++
			}
		}
		out[i] = templateSummary{
			ID:       t.ID,
			Name:     t.Name,
			Elements: len(t.PageConfig.Elements),
			Dynamic:  dynamic,
			Tokens:   t.PageConfig.TokenNames(),
			Updated:  t.UpdatedAt.Format("2006-01-02 15:04"),
		}
	}
	return out
}
