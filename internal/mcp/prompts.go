package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("build_template",
		mcp.WithPromptDescription("Lay out a page with {{token}} placeholders and save it as a reusable template"),
		mcp.WithArgument("purpose",
			mcp.ArgumentDescription("What pages generated from the template are for"),
			mcp.RequiredArgument(),
		),
	), s.handleBuildTemplatePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("generate_from_template",
		mcp.WithPromptDescription("Fill a saved template's tokens and generate a page"),
		mcp.WithArgument("templateId",
			mcp.ArgumentDescription("ID of the template"),
			mcp.RequiredArgument(),
		),
	), s.handleGenerateFromTemplatePrompt)
}

func (s *Server) handleBuildTemplatePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	purpose := req.Params.Arguments["purpose"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Build a template for: %s", purpose),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Build a page template for "%s".

Steps:
1. create_page to start a fresh 1920x1080 page.
2. add_element for each piece of the layout. Put {{token_name}} placeholders
   in text that should change per page (token names use letters, digits and _).
   For images that change per page, use a url such as https://cdn.example.com/{{logo}}.png.
3. list_elements to check the result.
4. scan_page and review which elements came out dynamic and which tokens were found.
5. save_template with a clear name. Pass missingTokenBehavior=error if every token must be filled.
6. set_element_mode to fix any element that should be static or dynamic.`, purpose),
				},
			},
		},
	}, nil
}

func (s *Server) handleGenerateFromTemplatePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	templateID := req.Params.Arguments["templateId"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Generate a page from template %s", templateID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Generate a page from template %s.

Steps:
1. get_template to read its tokenDefinitions.
2. Ask for a value for each token. image_url and video_url tokens need full URLs.
3. generate_page with values as a JSON object.
4. Report the inserted, skipped and failed elements from the result.`, templateID),
				},
			},
		},
	}, nil
}
