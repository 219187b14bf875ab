package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"pagebuilder/internal/autosave"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
)

// ─────────────────────────────────────────────────────────────
// Editor Service: open sessions and their autosave schedulers
// ─────────────────────────────────────────────────────────────

// EditorConfig holds the editing policy applied to every session.
type EditorConfig struct {
	MaxHistory       int
	AutosaveInterval time.Duration
	AutosaveEnabled  bool
	WriteTimeout     time.Duration
}

// openSession ties a session to the scheduler that persists it.
type openSession struct {
	session     *editor.Session
	scheduler   *autosave.Scheduler
	unsubscribe func()

	mu          sync.Mutex
	persistedAt time.Time // UpdatedAt of the last snapshot this process wrote or loaded
	observedRev uint64    // last session revision handed to the scheduler
}

func (o *openSession) setObserved(rev uint64) {
	o.mu.Lock()
	o.observedRev = rev
	o.mu.Unlock()
}

func (o *openSession) observed() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.observedRev
}

func (o *openSession) setPersisted(t time.Time) {
	o.mu.Lock()
	o.persistedAt = t
	o.mu.Unlock()
}

func (o *openSession) persisted() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.persistedAt
}

// SessionInfo describes an open session.
type SessionInfo struct {
	PageID   string          `json:"pageId"`
	Status   autosave.Status `json:"status"`
	CanUndo  bool            `json:"canUndo"`
	CanRedo  bool            `json:"canRedo"`
	Elements int             `json:"components"`
}

// EditorService owns every open editing session.
type EditorService struct {
	store    domain.DocumentStore
	cfg      EditorConfig
	emitter  EventEmitter
	registry *editor.Registry
	log      *zap.Logger

	guard    sessionGuard
	mu       sync.RWMutex
	sessions map[string]*openSession
}

// NewEditorService creates an EditorService.
func NewEditorService(store domain.DocumentStore, cfg EditorConfig, emitter EventEmitter, log *zap.Logger) *EditorService {
	if log == nil {
		log = zap.NewNop()
	}
	if emitter == nil {
		emitter = LogEmitter{Log: log}
	}
	return &EditorService{
		store:    store,
		cfg:      cfg,
		emitter:  emitter,
		registry: editor.DefaultRegistry(),
		log:      log,
		sessions: make(map[string]*openSession),
	}
}

// Registry returns the component registry shared by all sessions.
func (s *EditorService) Registry() *editor.Registry { return s.registry }

// Open starts an editing session seeded from the last durable snapshot of
// the page. Only one session per page may be open.
func (s *EditorService) Open(ctx context.Context, pageID string) (*editor.Session, error) {
	if !s.guard.TryLock(pageID) {
		return nil, fmt.Errorf("open %s: %w", pageID, domain.ErrSessionOpen)
	}
	doc, err := s.store.GetDocument(ctx, pageID)
	if err != nil {
		s.guard.Unlock(pageID)
		return nil, err
	}

	session := editor.NewSession(*doc, editor.Options{
		MaxHistory: s.cfg.MaxHistory,
		Registry:   s.registry,
		Logger:     s.log,
	})
	sched := autosave.New(s.store, autosave.Options{
		DocumentID:   doc.ID,
		Interval:     s.cfg.AutosaveInterval,
		Enabled:      s.cfg.AutosaveEnabled,
		WriteTimeout: s.cfg.WriteTimeout,
		Logger:       s.log,
	})
	sched.Seed(doc.Components, doc.Settings, doc.UpdatedAt)

	o := &openSession{session: session, scheduler: sched, persistedAt: doc.UpdatedAt}
	sched.OnSaved(func(r autosave.Result) { s.onSaved(o, r) })
	o.unsubscribe = session.Subscribe(func(c editor.Change) { s.onChange(o, c) })

	s.mu.Lock()
	s.sessions[pageID] = o
	s.mu.Unlock()

	s.log.Info("session opened", zap.String("page_id", pageID), zap.Int("components", doc.Components.Len()))
	return session, nil
}

// onChange forwards session changes to the scheduler. External syncs are
// already durable and are not written back.
func (s *EditorService) onChange(o *openSession, c editor.Change) {
	if c.Reason != editor.ReasonSync {
		o.scheduler.Observe(c.Components, c.Settings)
	}
	o.setObserved(c.Rev)
	s.emitter.Emit(context.Background(), EventPageChanged, map[string]any{
		"pageId":     c.DocumentID,
		"reason":     c.Reason,
		"components": c.Components.Len(),
		"canUndo":    c.CanUndo,
		"canRedo":    c.CanRedo,
	})
}

func (s *EditorService) onSaved(o *openSession, r autosave.Result) {
	ctx := context.Background()
	if r.Err != nil {
		s.emitter.Emit(ctx, EventPageSaveFailed, map[string]any{
			"pageId": r.DocumentID,
			"manual": r.Manual,
			"error":  r.Err.Error(),
		})
		return
	}
	o.setPersisted(r.Document.UpdatedAt)
	s.emitter.Emit(ctx, EventPageSaved, map[string]any{
		"pageId":    r.DocumentID,
		"manual":    r.Manual,
		"updatedAt": r.Document.UpdatedAt,
	})
}

func (s *EditorService) lookup(pageID string) (*openSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.sessions[pageID]
	if !ok {
		return nil, fmt.Errorf("page %s: %w", pageID, domain.ErrSessionNotOpen)
	}
	return o, nil
}

// Session returns the open session for pageID.
func (s *EditorService) Session(pageID string) (*editor.Session, error) {
	o, err := s.lookup(pageID)
	if err != nil {
		return nil, err
	}
	return o.session, nil
}

// IsOpen reports whether a session is open for pageID.
func (s *EditorService) IsOpen(pageID string) bool {
	_, err := s.lookup(pageID)
	return err == nil
}

// OpenPages lists the ids of every open session, sorted.
func (s *EditorService) OpenPages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Info returns the save and history state of an open session.
func (s *EditorService) Info(pageID string) (SessionInfo, error) {
	o, err := s.lookup(pageID)
	if err != nil {
		return SessionInfo{}, err
	}
	return SessionInfo{
		PageID:   pageID,
		Status:   o.scheduler.Status(),
		CanUndo:  o.session.CanUndo(),
		CanRedo:  o.session.CanRedo(),
		Elements: o.session.Present().Len(),
	}, nil
}

// Save writes the session state immediately, cancelling any pending
// autosave. A failed write is reported through the returned bool and the
// page:save-failed event; it never closes the session.
func (s *EditorService) Save(ctx context.Context, pageID string) (bool, error) {
	o, err := s.lookup(pageID)
	if err != nil {
		return false, err
	}
	return o.scheduler.SaveNow(ctx), nil
}

// RestoreVersion loads version index of the page into its open session as
// an undoable step.
func (s *EditorService) RestoreVersion(ctx context.Context, pageID string, index int) error {
	o, err := s.lookup(pageID)
	if err != nil {
		return err
	}
	rec, err := s.store.GetVersion(ctx, pageID, index)
	if err != nil {
		return err
	}
	return o.session.RestoreVersion(*rec)
}

// Close ends the session of pageID. The pending autosave timer is always
// cancelled; with save set, unsaved changes are written first.
func (s *EditorService) Close(ctx context.Context, pageID string, save bool) error {
	s.mu.Lock()
	o, ok := s.sessions[pageID]
	delete(s.sessions, pageID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("close %s: %w", pageID, domain.ErrSessionNotOpen)
	}
	defer s.guard.Unlock(pageID)

	o.unsubscribe()
	if save {
		o.scheduler.Flush(ctx)
	}
	o.scheduler.Close()
	o.session.Close()
	s.log.Info("session closed", zap.String("page_id", pageID), zap.Bool("saved", save))
	return nil
}

// CloseAll closes every open session.
func (s *EditorService) CloseAll(ctx context.Context, save bool) {
	for _, id := range s.OpenPages() {
		if err := s.Close(ctx, id, save); err != nil {
			s.log.Warn("close session", zap.String("page_id", id), zap.Error(err))
		}
	}
}

// SyncExternal reloads a page written by another process into its open
// session without recording an undo step. Sessions with unsaved local
// changes keep them; the next autosave wins. It reports whether the session
// was updated.
func (s *EditorService) SyncExternal(ctx context.Context, pageID string) (bool, error) {
	o, err := s.lookup(pageID)
	if err != nil {
		return false, nil
	}
	doc, err := s.store.GetDocument(ctx, pageID)
	if err != nil {
		return false, err
	}
	if !doc.UpdatedAt.After(o.persisted()) {
		return false, nil
	}
	// Local edits win: the swap happens only while every session revision
	// has reached the scheduler and all of it is saved.
	applied, err := o.session.SyncState(doc.Components, doc.Settings, func(rev uint64) bool {
		return o.observed() == rev && o.scheduler.SeedIfClean(doc.Components, doc.Settings, doc.UpdatedAt)
	})
	if err != nil {
		return false, err
	}
	if !applied {
		s.log.Info("external change ignored, local edits pending", zap.String("page_id", pageID))
		return false, nil
	}
	o.setPersisted(doc.UpdatedAt)
	s.emitter.Emit(ctx, EventPageExternalChange, map[string]any{
		"pageId":    pageID,
		"updatedAt": doc.UpdatedAt,
	})
	return true, nil
}
