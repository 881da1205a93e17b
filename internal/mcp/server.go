package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/canvas"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/log"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/service"
)

// Server is the MCP server for canvaskit.
// It exposes tools, resources, and prompts so agents can lay out pages,
// turn them into templates and generate new pages from them.
type Server struct {
	mcp     *server.MCPServer
	emitter service.EventEmitter
	layout  *LayoutEngine
	logger  *slog.Logger

	// Services (injected from app layer)
	canvas    *service.CanvasService
	templates *service.TemplateService
	uploader  canvas.Uploader
}

// Deps holds all dependencies passed from the app layer to the MCP server.
type Deps struct {
	Emitter   service.EventEmitter
	Canvas    *service.CanvasService
	Templates *service.TemplateService
	Uploader  canvas.Uploader
	Version   string
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := &Server{
		emitter:   deps.Emitter,
		layout:    NewLayoutEngine(),
		logger:    log.WithComponent("mcp"),
		canvas:    deps.Canvas,
		templates: deps.Templates,
		uploader:  deps.Uploader,
	}

	s.mcp = server.NewMCPServer(
		"canvaskit",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerCanvasTools()
	s.registerTemplateTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout. Protocol errors go to
// the logger; stdout carries only protocol traffic.
func (s *Server) ServeStdio() error {
	s.logger.Info("starting stdio server")
	errLog := slog.NewLogLogger(s.logger.Handler(), slog.LevelError)
	return server.ServeStdio(s.mcp, server.WithErrorLogger(errLog))
}

// Notifier forwards service events to connected MCP clients.
type Notifier struct {
	srv *Server
}

// Notifier returns an EventEmitter that sends each event to every client
// as a notifications/canvaskit/event message.
func (s *Server) Notifier() *Notifier { return &Notifier{srv: s} }

func (n *Notifier) Emit(_ context.Context, event string, data any) {
	n.srv.mcp.SendNotificationToAllClients("notifications/canvaskit/event", map[string]any{
		"event": event,
		"data":  data,
	})
}

// ── Helpers ────────────────────────────────────────────────

// emitElementsChanged notifies listeners that a page's elements changed.
func (s *Server) emitElementsChanged(ctx context.Context, pageID string) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(ctx, "mcp:elements-changed", map[string]string{"pageId": pageID})
}

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// resolvePageID returns the pageId from tool args or falls back to the
// design's active page.
func (s *Server) resolvePageID(args map[string]any) (string, error) {
	if pid, ok := args["pageId"].(string); ok && pid != "" {
		return pid, nil
	}
	page, err := s.canvas.ActivePage()
	if err != nil {
		return "", fmt.Errorf("no pageId provided and no active page set (use set_active_page first)")
	}
	return page.ID, nil
}
