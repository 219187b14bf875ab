package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
)

func (s *Server) registerSessionTools() {
	// ── open_page ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("open_page",
		mcp.WithDescription("Open an editing session on a page and make it the active page. Editing tools open the session on demand, so this is only needed to start from a known state."),
		mcp.WithString("pageId", mcp.Description("Page ID"), mcp.Required()),
	), s.handleOpenPage)

	// ── close_page ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("close_page",
		mcp.WithDescription("Close the editing session of a page. Unsaved changes are saved unless discard is true."),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithBoolean("discard", mcp.Description("Drop unsaved changes instead of saving them")),
	), s.handleClosePage)

	// ── save_page ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("save_page",
		mcp.WithDescription("Save the page now and record a version, without waiting for autosave"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleSavePage)

	// ── get_page ───────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_page",
		mcp.WithDescription("Get a page with its components and settings. Returns the live state when a session is open."),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleGetPage)

	// ── page_status ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("page_status",
		mcp.WithDescription("Show save state (saving, last saved, pending changes) and undo/redo availability of an open page"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handlePageStatus)

	// ── undo / redo ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last component change on the page"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleUndo)
	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Redo the last undone component change on the page"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleRedo)

	// ── history_state ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("history_state",
		mcp.WithDescription("Show how many undo and redo steps the page has"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleHistoryState)

	// ── update_settings ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_settings",
		mcp.WithDescription("Update page settings (title, description, slug, faviconUrl, primaryColor, fontFamily, customCss, published). Only the given fields change. Settings changes are saved but cannot be undone."),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithObject("settings", mcp.Description("Settings fields to change"), mcp.Required()),
	), s.handleUpdateSettings)

	// ── list_versions ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_versions",
		mcp.WithDescription("List saved versions of a page, most recent first. Index 0 is the newest."),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleListVersions)

	// ── restore_version ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("restore_version",
		mcp.WithDescription("Restore a saved version into the editing session. The restore can be undone."),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithNumber("index", mcp.Description("Version index from list_versions"), mcp.Required()),
	), s.handleRestoreVersion)
}

// session returns the open session for the page in args, opening one when
// none is open yet.
func (s *Server) session(ctx context.Context, args map[string]any) (*editor.Session, error) {
	pageID, err := s.resolvePageID(args)
	if err != nil {
		return nil, err
	}
	sess, err := s.editors.Session(pageID)
	if err == nil {
		return sess, nil
	}
	sess, err = s.editors.Open(ctx, pageID)
	if errors.Is(err, domain.ErrSessionOpen) {
		// Opened concurrently by another call.
		return s.editors.Session(pageID)
	}
	return sess, err
}

func (s *Server) handleOpenPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID := req.GetString("pageId", "")
	if pageID == "" {
		return nil, fmt.Errorf("pageId is required")
	}
	sess, err := s.session(ctx, map[string]any{"pageId": pageID})
	if err != nil {
		return nil, err
	}
	s.setActivePage(pageID)
	return jsonResult(sess.Document())
}

func (s *Server) handleClosePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	discard := req.GetBool("discard", false)
	if err := s.editors.Close(ctx, pageID, !discard); err != nil {
		return nil, err
	}
	if discard {
		return textResult(fmt.Sprintf("Session on %s closed, unsaved changes discarded", pageID)), nil
	}
	return textResult(fmt.Sprintf("Session on %s closed", pageID)), nil
}

func (s *Server) handleSavePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	ok, err := s.editors.Save(ctx, sess.ID())
	if err != nil {
		return nil, err
	}
	info, err := s.editors.Info(sess.ID())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("save of page %s failed; changes are kept in the session, retry save_page", sess.ID())
	}
	return jsonResult(info)
}

func (s *Server) handleGetPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	page, err := s.pages.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return jsonResult(page)
}

func (s *Server) handlePageStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	info, err := s.editors.Info(pageID)
	if err != nil {
		return nil, err
	}
	return jsonResult(info)
}

type historyStep struct {
	Applied    bool `json:"applied"`
	CanUndo    bool `json:"canUndo"`
	CanRedo    bool `json:"canRedo"`
	Components int  `json:"components"`
}

func (s *Server) handleUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.timelineStep(ctx, req, (*editor.Session).Undo)
}

func (s *Server) handleRedo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.timelineStep(ctx, req, (*editor.Session).Redo)
}

func (s *Server) timelineStep(ctx context.Context, req mcp.CallToolRequest, step func(*editor.Session) bool) (*mcp.CallToolResult, error) {
	sess, err := s.session(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	applied := step(sess)
	return jsonResult(historyStep{
		Applied:    applied,
		CanUndo:    sess.CanUndo(),
		CanRedo:    sess.CanRedo(),
		Components: sess.Present().Len(),
	})
}

func (s *Server) handleHistoryState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	h := sess.History()
	return jsonResult(map[string]any{
		"undoSteps":  len(h.Past),
		"redoSteps":  len(h.Future),
		"components": h.Present.Len(),
	})
}

func (s *Server) handleUpdateSettings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	patch, err := objectArg(args, "settings")
	if err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("settings is required")
	}
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	settings, err := mergeSettings(sess.Settings(), patch)
	if err != nil {
		return nil, err
	}
	if err := sess.UpdateSettings(settings); err != nil {
		return nil, err
	}
	return jsonResult(sess.Settings())
}

// mergeSettings overlays the JSON fields of patch onto current.
func mergeSettings(current domain.PageSettings, patch map[string]any) (domain.PageSettings, error) {
	base, err := json.Marshal(current)
	if err != nil {
		return current, err
	}
	var merged map[string]any
	if err := json.Unmarshal(base, &merged); err != nil {
		return current, err
	}
	for k, v := range patch {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return current, err
	}
	var out domain.PageSettings
	if err := json.Unmarshal(data, &out); err != nil {
		return current, fmt.Errorf("invalid settings: %w", err)
	}
	return out, nil
}

func (s *Server) handleListVersions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	versions, err := s.pages.ListVersions(ctx, pageID)
	if err != nil {
		return nil, err
	}
	type versionSummary struct {
		Index      int       `json:"index"`
		Timestamp  time.Time `json:"timestamp"`
		Components int       `json:"components"`
		Title      string    `json:"title,omitempty"`
	}
	out := make([]versionSummary, len(versions))
	for i, v := range versions {
		out[i] = versionSummary{Index: i, Timestamp: v.Timestamp, Components: v.Components.Len(), Title: v.Settings.Title}
	}
	return jsonResult(out)
}

func (s *Server) handleRestoreVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
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
	if err := s.editors.RestoreVersion(ctx, sess.ID(), index); err != nil {
		return nil, err
	}
	return jsonResult(sess.Document())
}
