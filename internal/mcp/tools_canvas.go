package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
)

func (s *Server) registerCanvasTools() {
	// ── list_pages ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List all pages of the design in order"),
	), s.handleListPages)

	// ── create_page ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_page",
		mcp.WithDescription("Create a new page and make it the active page"),
		mcp.WithString("name",
			mcp.Description("Name of the new page (default: Page N)"),
		),
		mcp.WithString("backgroundColor",
			mcp.Description("Background color, e.g. #ffffff"),
		),
	), s.handleCreatePage)

	// ── set_active_page ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_active_page",
		mcp.WithDescription("Set the active page. Scans and tools that accept pageId default to this."),
		mcp.WithString("pageId",
			mcp.Description("ID of the page to make active"),
			mcp.Required(),
		),
	), s.handleSetActivePage)

	// ── add_element ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_element",
		mcp.WithDescription("Add an element to a page. Data carries the element's properties (top, left, width, height, text, regions, paths, viewBox, fill, ref, url). Image and video elements with a url and no ref are uploaded first. Elements without left/top are placed where they don't overlap."),
		mcp.WithString("type",
			mcp.Description("Element type: text, richtext, shape, rect, image, video, embed"),
			mcp.Required(),
		),
		mcp.WithString("data",
			mcp.Description("Element properties as a JSON object"),
		),
		mcp.WithString("pageId",
			mcp.Description("Target page (default: active page)"),
		),
	), s.handleAddElement)

	// ── list_elements ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_elements",
		mcp.WithDescription("List the elements of a page in stacking order"),
		mcp.WithString("pageId",
			mcp.Description("Page to list (default: active page)"),
		),
	), s.handleListElements)

	// ── delete_element ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_element",
		mcp.WithDescription("Remove an element from its page"),
		mcp.WithString("elementId",
			mcp.Description("ID of the element to delete"),
			mcp.Required(),
		),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteElement)
}

func (s *Server) handleListPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pages, err := s.canvas.ListPages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return jsonResult(pages)
}

func (s *Server) handleCreatePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var bg *domain.Background
	if color := req.GetString("backgroundColor", ""); color != "" {
		bg = &domain.Background{Color: color}
	}
	page, err := s.canvas.CreatePage(ctx, req.GetString("name", ""), bg)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return jsonResult(page)
}

func (s *Server) handleSetActivePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID := req.GetString("pageId", "")
	if pageID == "" {
		return nil, fmt.Errorf("pageId is required")
	}
	if err := s.canvas.SetActivePage(ctx, pageID); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Active page set to %s", pageID)), nil
}

func (s *Server) handleAddElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	pageID, err := s.resolvePageID(args)
	if err != nil {
		return nil, err
	}
	elementType := req.GetString("type", "")
	if elementType == "" {
		return nil, fmt.Errorf("type is required")
	}

	data := map[string]any{}
	if raw := req.GetString("data", ""); raw != "" {
		if err := parseJSON(raw, &data); err != nil {
			return nil, fmt.Errorf("invalid data JSON: %w", err)
		}
	}

	// Auto-layout when no position is given
	_, hasLeft := data["left"]
	_, hasTop := data["top"]
	if !hasLeft || !hasTop {
		existing, err := s.canvas.ListElements(pageID)
		if err != nil {
			return nil, fmt.Errorf("list elements: %w", err)
		}
		w := getFloat(data, "width", 400)
		h := getFloat(data, "height", w)
		left, top := s.layout.NextPosition(existing, w, h)
		data["left"], data["top"] = left, top
		if _, ok := data["width"]; !ok {
			data["width"] = w
		}
	}

	if err := s.canvas.AttachMedia(ctx, s.uploader, elementType, data); err != nil {
		return nil, err
	}
	el, err := s.canvas.AddElement(pageID, elementType, data)
	if err != nil {
		return nil, fmt.Errorf("add element: %w", err)
	}
	s.emitElementsChanged(ctx, pageID)
	return jsonResult(el)
}

func (s *Server) handleListElements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	els, err := s.canvas.ListElements(pageID)
	if err != nil {
		return nil, fmt.Errorf("list elements: %w", err)
	}
	return jsonResult(els)
}

func (s *Server) handleDeleteElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("elementId", "")
	if id == "" {
		return nil, fmt.Errorf("elementId is required")
	}
	if err := s.canvas.DeleteElement(id); err != nil {
		return nil, fmt.Errorf("delete element: %w", err)
	}
	return textResult(fmt.Sprintf("Element %s deleted", id)), nil
}
