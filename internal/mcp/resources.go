package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const templateURIPrefix = "canvaskit://template/"

func (s *Server) registerResources() {
	// ── canvaskit://templates ──────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		"canvaskit://templates",
		"All Templates",
		mcp.WithMIMEType("application/json"),
	), s.handleTemplatesResource)

	// ── canvaskit://template/{templateId} ──────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			templateURIPrefix+"{templateId}",
			"Template Export",
		),
		s.handleTemplateResource,
	)

	// ── canvaskit://page/{pageId}/elements ─────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"canvaskit://page/{pageId}/elements",
			"Elements on a Page",
		),
		s.handlePageElementsResource,
	)
}

func (s *Server) handleTemplatesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	templates, err := s.templates.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	data, _ := json.MarshalIndent(summarizeTemplates(templates), "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "canvaskit://templates",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleTemplateResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	id := strings.TrimPrefix(uri, templateURIPrefix)
	if id == "" || id == uri {
		return nil, fmt.Errorf("could not extract templateId from URI: %s", uri)
	}
	data, err := s.templates.ExportTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handlePageElementsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	pageID := extractPageIDFromURI(uri)
	if pageID == "" {
		return nil, fmt.Errorf("could not extract pageId from URI: %s", uri)
	}
	state, err := s.canvas.GetPageState(pageID)
	if err != nil {
		return nil, err
	}
	data, _ := json.MarshalIndent(state, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// extractPageIDFromURI parses canvaskit://page/{pageId}/elements.
func extractPageIDFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, "canvaskit://page/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	return id
}
