package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pagebuilder/internal/editor"
)

func (s *Server) registerPageTools() {
	// ── list_pages ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List all landing pages, most recently updated first"),
	), s.handleListPages)

	// ── create_page ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_page",
		mcp.WithDescription("Create a new empty landing page and make it the active page"),
		mcp.WithString("name", mcp.Description("Name of the new page"), mcp.Required()),
		mcp.WithString("category",
			mcp.Description("Category: lead-capture, sales, webinar, product, event, other (default other)"),
		),
	), s.handleCreatePage)

	// ── create_from_template ───────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_from_template",
		mcp.WithDescription("Create a landing page from a built-in template (see list_templates)"),
		mcp.WithString("templateId", mcp.Description("Template ID"), mcp.Required()),
		mcp.WithString("name", mcp.Description("Page name (optional, defaults to the template name)")),
	), s.handleCreateFromTemplate)

	// ── duplicate_page ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("duplicate_page",
		mcp.WithDescription("Copy the last saved state of a page into a new unpublished page"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("name", mcp.Description("Name of the copy (optional)")),
	), s.handleDuplicatePage)

	// ── rename_page ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("rename_page",
		mcp.WithDescription("Rename a page"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("name", mcp.Description("New name"), mcp.Required()),
	), s.handleRenamePage)

	// ── delete_page (destructive) ──────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_page",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a page and all of its saved versions. An open session is discarded without saving."),
		mcp.WithString("pageId", mcp.Description("Page ID to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeletePage)

	// ── list_templates ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_templates",
		mcp.WithDescription("List the built-in page templates"),
	), s.handleListTemplates)

	// ── list_component_types ───────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_component_types",
		mcp.WithDescription("List the component kinds that can be added to a page, with their default props"),
	), s.handleListComponentTypes)

	// ── set_active_page ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_active_page",
		mcp.WithDescription("Set the active page for subsequent tool calls. Tools that accept pageId will default to this."),
		mcp.WithString("pageId", mcp.Description("ID of the page to make active"), mcp.Required()),
	), s.handleSetActivePage)
}

func boolPtr(v bool) *bool { return &v }

func (s *Server) handleListPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pages, err := s.pages.ListPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return jsonResult(pages)
}

func (s *Server) handleCreatePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	page, err := s.pages.CreatePage(ctx, name, req.GetString("category", ""))
	if err != nil {
		return nil, err
	}
	s.setActivePage(page.ID)
	return jsonResult(page)
}

func (s *Server) handleCreateFromTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templateID := req.GetString("templateId", "")
	if templateID == "" {
		return nil, fmt.Errorf("templateId is required")
	}
	page, err := s.pages.CreateFromTemplate(ctx, templateID, req.GetString("name", ""))
	if err != nil {
		return nil, err
	}
	s.setActivePage(page.ID)
	return jsonResult(page)
}

func (s *Server) handleDuplicatePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	page, err := s.pages.DuplicatePage(ctx, pageID, req.GetString("name", ""))
	if err != nil {
		return nil, err
	}
	return jsonResult(page)
}

func (s *Server) handleRenamePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	if err := s.pages.RenamePage(ctx, pageID, req.GetString("name", "")); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Page %s renamed", pageID)), nil
}

func (s *Server) handleDeletePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID := req.GetString("pageId", "")
	if pageID == "" {
		return nil, fmt.Errorf("pageId is required")
	}
	if err := s.pages.DeletePage(ctx, pageID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.activePageID == pageID {
		s.activePageID = ""
	}
	s.mu.Unlock()
	return textResult(fmt.Sprintf("Page %s deleted", pageID)), nil
}

func (s *Server) handleListTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.pages.ListTemplates())
}

func (s *Server) handleListComponentTypes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type componentKind struct {
		Type         string         `json:"type"`
		Label        string         `json:"label"`
		DefaultProps map[string]any `json:"defaultProps"`
	}
	var kinds []componentKind
	s.editors.Registry().ForEach(func(p editor.ComponentPlugin) {
		kinds = append(kinds, componentKind{
			Type:         string(p.Type()),
			Label:        p.Label(),
			DefaultProps: p.DefaultProps(),
		})
	})
	return jsonResult(kinds)
}

func (s *Server) handleSetActivePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID := req.GetString("pageId", "")
	if pageID == "" {
		return nil, fmt.Errorf("pageId is required")
	}
	if _, err := s.pages.GetPage(ctx, pageID); err != nil {
		return nil, err
	}
	s.setActivePage(pageID)
	return textResult(fmt.Sprintf("Active page set to %s", pageID)), nil
}
