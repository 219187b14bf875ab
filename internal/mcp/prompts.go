package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("build_landing_page",
		mcp.WithPromptDescription("Guide through building a landing page for a campaign, from template to saved version"),
		mcp.WithArgument("campaign",
			mcp.ArgumentDescription("What the page promotes (product, webinar, offer)"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("category",
			mcp.ArgumentDescription("Page category: lead-capture, sales, webinar, product, event, other"),
		),
	), s.handleBuildPagePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("review_page",
		mcp.WithPromptDescription("Review an existing landing page and suggest concrete component edits"),
		mcp.WithArgument("pageId",
			mcp.ArgumentDescription("ID of the page to review"),
			mcp.RequiredArgument(),
		),
	), s.handleReviewPagePrompt)
}

func (s *Server) handleBuildPagePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	campaign := req.Params.Arguments["campaign"]
	category := req.Params.Arguments["category"]
	if category == "" {
		category = "other"
	}
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Build a landing page for: %s", campaign),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Build a landing page for "%s" (category: %s). Follow these steps:

1. Call list_templates and pick the closest template, then create_from_template. If none fits, use create_page.
2. Call list_components to see what the template produced.
3. Rewrite the hero title and subtitle with update_component so they speak to the campaign.
4. Add any missing sections with add_component (list_component_types shows the available kinds and their props).
5. Use move_component or reorder_components so the call to action appears above the footer.
6. Set the page title, description and slug with update_settings.
7. Call save_page to record a version.

Use undo if an edit goes wrong. Keep the page focused on one call to action.`, campaign, category),
				},
			},
		},
	}, nil
}

func (s *Server) handleReviewPagePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	pageID := req.Params.Arguments["pageId"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Review page %s", pageID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Review landing page %s:

1. Call get_page with pageId %s and read every component.
2. Check that there is exactly one primary call to action and that the hero states the offer.
3. Check that settings have a title, description and slug.
4. List the problems you found, then fix each one with the component tools.
5. Call save_page when done. list_versions shows the earlier versions if the user wants to compare.`, pageID, pageID),
				},
			},
		},
	}, nil
}
