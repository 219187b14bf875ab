package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	pagesURI         = "pages://list"
	pageURIPrefix    = "pages://page/"
	pageURISuffix    = "/components"
	templatesURI     = "pages://templates"
	pageURITemplate  = pageURIPrefix + "{pageId}" + pageURISuffix
	resourceMIMEType = "application/json"
)

func (s *Server) registerResources() {
	// ── pages://list ───────────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		pagesURI,
		"All Landing Pages",
		mcp.WithMIMEType(resourceMIMEType),
	), s.handlePagesResource)

	// ── pages://templates ──────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		templatesURI,
		"Page Templates",
		mcp.WithMIMEType(resourceMIMEType),
	), s.handleTemplatesResource)

	// ── pages://page/{pageId}/components ───────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			pageURITemplate,
			"Components on a Page",
		),
		s.handlePageComponentsResource,
	)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: resourceMIMEType,
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handlePagesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	pages, err := s.pages.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(pagesURI, pages)
}

func (s *Server) handleTemplatesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(templatesURI, s.pages.ListTemplates())
}

func (s *Server) handlePageComponentsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	pageID, ok := pageIDFromURI(uri)
	if !ok {
		return nil, fmt.Errorf("invalid page resource URI: %s", uri)
	}
	page, err := s.pages.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return jsonResource(uri, page.Components)
}

// pageIDFromURI extracts the id from pages://page/{pageId}/components.
func pageIDFromURI(uri string) (string, bool) {
	rest, ok := strings.CutPrefix(uri, pageURIPrefix)
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, pageURISuffix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
