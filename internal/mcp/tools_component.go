package mcpserver

import (
	"context"
	"fmt"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
)

func (s *Server) registerComponentTools() {
	// ── list_components ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_components",
		mcp.WithDescription("List the components of a page in display order, optionally filtered by type"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("type", mcp.Description("Filter by component type (optional)")),
	), s.handleListComponents)

	// ── add_component ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_component",
		mcp.WithDescription("Add a component to the page. Props not given use the component defaults (see list_component_types)."),
		mcp.WithString("type",
			mcp.Description("Component type: hero, header, text, image, video, button, form, features, testimonials, pricing, faq, cta, countdown, gallery, divider, spacer, footer, html"),
			mcp.Required(),
		),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithObject("props", mcp.Description("Component props (optional)")),
		mcp.WithNumber("index", mcp.Description("Position to insert at (optional, appends when omitted)")),
	), s.handleAddComponent)

	// ── update_component ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_component",
		mcp.WithDescription("Replace the props and/or styles of a component. Use set_component_prop to change a single field."),
		mcp.WithString("componentId", mcp.Description("Component ID"), mcp.Required()),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithObject("props", mcp.Description("New props (optional)")),
		mcp.WithObject("styles", mcp.Description("New styles (optional)")),
	), s.handleUpdateComponent)

	// ── set_component_prop ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_component_prop",
		mcp.WithDescription("Set a single prop (or style with style=true) on a component"),
		mcp.WithString("componentId", mcp.Description("Component ID"), mcp.Required()),
		mcp.WithString("key", mcp.Description("Prop name"), mcp.Required()),
		mcp.WithString("value", mcp.Description("New value; JSON is decoded, anything else is stored as a string"), mcp.Required()),
		mcp.WithBoolean("style", mcp.Description("Set a style instead of a prop")),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleSetComponentProp)

	// ── move_component ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("move_component",
		mcp.WithDescription("Move a component to a new position in the page"),
		mcp.WithString("componentId", mcp.Description("Component ID"), mcp.Required()),
		mcp.WithNumber("index", mcp.Description("Target position, 0 is the top"), mcp.Required()),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleMoveComponent)

	// ── reorder_components ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("reorder_components",
		mcp.WithDescription("Reorder components by ID. componentIds must list every component on the page exactly once, in the new order."),
		mcp.WithString("componentIds", mcp.Description("Comma-separated component IDs"), mcp.Required()),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleReorderComponents)

	// ── remove_component ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("remove_component",
		mcp.WithDescription("Remove a component from the page. Can be undone."),
		mcp.WithString("componentId", mcp.Description("Component ID"), mcp.Required()),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleRemoveComponent)

	// ── duplicate_component ────────────────────────────
	s.mcp.AddTool(mcp.NewTool("duplicate_component",
		mcp.WithDescription("Insert a copy of a component right after it"),
		mcp.WithString("componentId", mcp.Description("Component ID"), mcp.Required()),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleDuplicateComponent)
}

// editResult reports the outcome of a mutating tool call.
type editResult struct {
	Changed    bool                  `json:"changed"`
	Component  *domain.ComponentNode `json:"component,omitempty"`
	Components int                   `json:"components"`
	CanUndo    bool                  `json:"canUndo"`
	CanRedo    bool                  `json:"canRedo"`
}

func newEditResult(sess *editor.Session, changed bool, node *domain.ComponentNode) (*mcp.CallToolResult, error) {
	return jsonResult(editResult{
		Changed:    changed,
		Component:  node,
		Components: sess.Present().Len(),
		CanUndo:    sess.CanUndo(),
		CanRedo:    sess.CanRedo(),
	})
}

func componentID(args map[string]any) (string, error) {
	id, _ := args["componentId"].(string)
	if id == "" {
		return "", fmt.Errorf("componentId is required")
	}
	return id, nil
}

func (s *Server) handleListComponents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	pageID, err := s.resolvePageID(args)
	if err != nil {
		return nil, err
	}
	page, err := s.pages.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	filter := req.GetString("type", "")
	out := domain.Components{}
	for _, n := range page.Components {
		if filter == "" || string(n.Type) == filter {
			out = append(out, n)
		}
	}
	return jsonResult(out)
}

func (s *Server) handleAddComponent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	t, err := domain.ParseComponentType(req.GetString("type", ""))
	if err != nil {
		return nil, err
	}
	props, err := objectArg(args, "props")
	if err != nil {
		return nil, err
	}
	index, err := intArg(args, "index", -1)
	if err != nil {
		return nil, err
	}
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	node, err := sess.InsertComponent(t, props, index)
	if err != nil {
		return nil, err
	}
	return newEditResult(sess, true, &node)
}

func (s *Server) handleUpdateComponent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, err := componentID(args)
	if err != nil {
		return nil, err
	}
	props, err := objectArg(args, "props")
	if err != nil {
		return nil, err
	}
	styles, err := objectArg(args, "styles")
	if err != nil {
		return nil, err
	}
	if props == nil && styles == nil {
		return nil, fmt.Errorf("props or styles is required")
	}
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	changed, err := sess.UpdateComponent(id, props, styles)
	if err != nil {
		return nil, err
	}
	return s.nodeResult(sess, changed, id)
}

func (s *Server) handleSetComponentProp(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, err := componentID(args)
	if err != nil {
		return nil, err
	}
	key := req.GetString("key", "")
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}
	value, ok := valueArg(args, "value")
	if !ok {
		return nil, fmt.Errorf("value is required")
	}
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	var changed bool
	if req.GetBool("style", false) {
		changed, err = sess.SetComponentStyle(id, key, value)
	} else {
		changed, err = sess.SetComponentProp(id, key, value)
	}
	if err != nil {
		return nil, err
	}
	return s.nodeResult(sess, changed, id)
}

func (s *Server) handleMoveComponent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, err := componentID(args)
	if err != nil {
		return nil, err
	}
	index, err := intArg(args, "index", -1)
	if err != nil {
		return nil, err
	}
	if index < 0 {
		return nil, fmt.Errorf("index is required")
	}
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	changed, err := sess.MoveComponentByID(id, index)
	if err != nil {
		return nil, err
	}
	return s.nodeResult(sess, changed, id)
}

func (s *Server) handleReorderComponents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	ids := listArg(args, "componentIds")
	if len(ids) == 0 {
		return nil, fmt.Errorf("componentIds is required")
	}
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	changed, err := sess.ReorderComponents(ids)
	if err != nil {
		return nil, err
	}
	if !changed && !slices.Equal(ids, sess.Present().IDs()) {
		return nil, fmt.Errorf("componentIds must list every component on page %s exactly once", sess.ID())
	}
	return newEditResult(sess, changed, nil)
}

func (s *Server) handleRemoveComponent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, err := componentID(args)
	if err != nil {
		return nil, err
	}
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	changed, err := sess.RemoveComponent(id)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, fmt.Errorf("component %s not found on page %s", id, sess.ID())
	}
	return newEditResult(sess, changed, nil)
}

func (s *Server) handleDuplicateComponent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, err := componentID(args)
	if err != nil {
		return nil, err
	}
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	node, err := sess.DuplicateComponent(id)
	if err != nil {
		return nil, err
	}
	return newEditResult(sess, true, &node)
}

// nodeResult reports an edit of component id, failing when the id is not on
// the page.
func (s *Server) nodeResult(sess *editor.Session, changed bool, id string) (*mcp.CallToolResult, error) {
	node, ok := sess.Present().Find(id)
	if !ok {
		return nil, fmt.Errorf("component %s not found on page %s", id, sess.ID())
	}
	return newEditResult(sess, changed, &node)
}
