// Package editor is the single entry point for edits to an open page.
//
// A Session applies a structural edit to the present component sequence,
// commits the result into the history engine and then tells its subscribers
// about the new state. Persistence is one of those subscribers; the session
// itself never writes anything.
package editor

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/history"
)

var (
	undoDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pagebuilder_editor_undo_depth",
		Help: "Undo steps available per open page",
	}, []string{"page_id"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagebuilder_editor_transitions_total",
		Help: "History transitions by reason",
	}, []string{"reason"})
)

// Reason tells subscribers what produced a change.
type Reason string

const (
	ReasonCommit   Reason = "commit"
	ReasonUndo     Reason = "undo"
	ReasonRedo     Reason = "redo"
	ReasonRestore  Reason = "restore"
	ReasonSync     Reason = "sync"
	ReasonSettings Reason = "settings"
)

// Change is delivered to subscribers after every state transition.
type Change struct {
	DocumentID string              `json:"documentId"`
	Components domain.Components   `json:"components"`
	Settings   domain.PageSettings `json:"settings"`
	Reason     Reason              `json:"reason"`
	CanUndo    bool                `json:"canUndo"`
	CanRedo    bool                `json:"canRedo"`
	// Rev is the session revision this change produced.
	Rev uint64 `json:"rev"`
}

// Listener receives changes in the order they happened. Listeners run with
// no session lock held and may call any Session method; changes made from a
// listener are delivered after the current one.
type Listener func(Change)

// Options configures a Session.
type Options struct {
	MaxHistory int
	Registry   *Registry
	Logger     *zap.Logger
	// NewID generates component ids; defaults to uuid.NewString.
	NewID func() string
}

// Session is one editing session over one document. All methods are safe
// for concurrent use.
type Session struct {
	mu        sync.Mutex
	doc       domain.Document // metadata; Components is kept in hist
	hist      *history.Engine
	registry  *Registry
	listeners map[int]Listener
	nextSub   int
	closed    bool
	newID     func() string
	log       *zap.Logger
	rev       uint64 // bumped by every published transition

	// queue holds changes in commit order until they are delivered. One
	// goroutine at a time drains it.
	qmu        sync.Mutex
	queue      []delivery
	delivering bool
}

type delivery struct {
	change    Change
	listeners []Listener
}

// NewSession starts a session seeded with the last durable snapshot of doc.
// The seed is not an undoable step.
func NewSession(doc domain.Document, opts Options) *Session {
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	doc = doc.Clone()
	s := &Session{
		doc:       doc,
		hist:      history.New(doc.Components, history.WithMaxHistory(opts.MaxHistory)),
		registry:  opts.Registry,
		listeners: make(map[int]Listener),
		newID:     opts.NewID,
		log:       log.With(zap.String("page_id", doc.ID)),
	}
	undoDepth.WithLabelValues(doc.ID).Set(0)
	return s
}

// ── Queries ─────────────────────────────────────────────────

// ID returns the document id.
func (s *Session) ID() string { return s.doc.ID }

// Present returns the current component sequence. Callers must treat it as
// read-only.
func (s *Session) Present() domain.Components {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.Present()
}

// Settings returns the current page settings.
func (s *Session) Settings() domain.PageSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Settings.Clone()
}

// Document returns the document as currently edited.
func (s *Session) Document() domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.doc.Clone()
	doc.Components = s.hist.Present().Clone()
	return doc
}

// History returns the undo/redo stacks.
func (s *Session) History() history.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.State()
}

func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.CanUndo()
}

func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.CanRedo()
}

// Registry returns the component registry used for validation.
func (s *Session) Registry() *Registry { return s.registry }

// ── Subscriptions ───────────────────────────────────────────

// Subscribe registers l and returns a function that removes it.
func (s *Session) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Rev returns the current session revision.
func (s *Session) Rev() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rev
}

// publishLocked must be called with mu held. It queues the change, releases
// mu and delivers queued changes unless another goroutine already is.
func (s *Session) publishLocked(reason Reason) {
	s.rev++
	change := Change{
		DocumentID: s.doc.ID,
		Components: s.hist.Present(),
		Settings:   s.doc.Settings.Clone(),
		Reason:     reason,
		CanUndo:    s.hist.CanUndo(),
		CanRedo:    s.hist.CanRedo(),
		Rev:        s.rev,
	}
	listeners := make([]Listener, 0, len(s.listeners))
	for i := 0; i < s.nextSub; i++ {
		if l, ok := s.listeners[i]; ok {
			listeners = append(listeners, l)
		}
	}
	undoDepth.WithLabelValues(s.doc.ID).Set(float64(s.hist.PastLen()))
	transitionsTotal.WithLabelValues(string(reason)).Inc()

	s.qmu.Lock()
	s.queue = append(s.queue, delivery{change: change, listeners: listeners})
	s.qmu.Unlock()
	s.mu.Unlock()

	s.drain()
}

func (s *Session) drain() {
	s.qmu.Lock()
	if s.delivering {
		s.qmu.Unlock()
		return
	}
	s.delivering = true
	for len(s.queue) > 0 {
		d := s.queue[0]
		s.queue = s.queue[1:]
		s.qmu.Unlock()
		for _, l := range d.listeners {
			l(d.change)
		}
		s.qmu.Lock()
	}
	s.delivering = false
	s.qmu.Unlock()
}

// ── Mutations ───────────────────────────────────────────────

// apply runs edit on the present sequence and commits the result. Edits
// that fail validation or change nothing leave history untouched.
func (s *Session) apply(edit func(domain.Components) (domain.Components, error)) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, domain.ErrSessionNotOpen
	}
	present := s.hist.Present()
	next, err := edit(present)
	if err != nil {
		s.mu.Unlock()
		s.log.Debug("edit rejected", zap.Error(err))
		return false, err
	}
	if next.Equal(present) {
		s.mu.Unlock()
		return false, nil
	}
	s.hist.Commit(next)
	s.publishLocked(ReasonCommit)
	return true, nil
}

func (s *Session) validateNode(c domain.Components, id string) error {
	n, ok := c.Find(id)
	if !ok {
		return nil
	}
	return s.registry.Validate(n)
}

// AddComponent appends a new node of kind t built from the kind defaults
// overlaid with props.
func (s *Session) AddComponent(t domain.ComponentType, props map[string]any) (domain.ComponentNode, error) {
	return s.InsertComponent(t, props, -1)
}

// InsertComponent inserts a new node at index. A negative index appends;
// anything past the end is clamped.
func (s *Session) InsertComponent(t domain.ComponentType, props map[string]any, index int) (domain.ComponentNode, error) {
	node, err := s.registry.NewNode(s.newID(), t, props)
	if err != nil {
		return domain.ComponentNode{}, err
	}
	if err := s.registry.Validate(node); err != nil {
		return domain.ComponentNode{}, err
	}
	_, err = s.apply(func(c domain.Components) (domain.Components, error) {
		at := index
		if at < 0 {
			at = len(c)
		}
		return c.Insert(node, at)
	})
	if err != nil {
		return domain.ComponentNode{}, err
	}
	return node, nil
}

// InsertNode inserts a fully formed node, e.g. one pasted from elsewhere.
func (s *Session) InsertNode(node domain.ComponentNode, index int) error {
	if err := s.registry.Validate(node); err != nil {
		return err
	}
	_, err := s.apply(func(c domain.Components) (domain.Components, error) {
		return c.Insert(node, index)
	})
	return err
}

// UpdateComponent replaces the props and/or styles of node id. Nil maps are
// left untouched. It reports whether anything changed.
func (s *Session) UpdateComponent(id string, props, styles map[string]any) (bool, error) {
	return s.apply(func(c domain.Components) (domain.Components, error) {
		next, err := c.Update(id, props, styles)
		if err != nil {
			return c, err
		}
		return next, s.validateNode(next, id)
	})
}

// SetComponentProp sets a single prop, the inline-edit path.
func (s *Session) SetComponentProp(id, key string, value any) (bool, error) {
	return s.apply(func(c domain.Components) (domain.Components, error) {
		next, err := c.SetProp(id, key, value)
		if err != nil {
			return c, err
		}
		return next, s.validateNode(next, id)
	})
}

// SetComponentStyle sets a single style entry.
func (s *Session) SetComponentStyle(id, key string, value any) (bool, error) {
	return s.apply(func(c domain.Components) (domain.Components, error) {
		return c.SetStyle(id, key, value)
	})
}

// MoveComponent moves the node at from to position to.
func (s *Session) MoveComponent(from, to int) (bool, error) {
	return s.apply(func(c domain.Components) (domain.Components, error) {
		return c.Move(from, to), nil
	})
}

// MoveComponentByID moves node id to position to. Unknown ids are a no-op.
func (s *Session) MoveComponentByID(id string, to int) (bool, error) {
	return s.apply(func(c domain.Components) (domain.Components, error) {
		return c.Move(c.IndexOf(id), to), nil
	})
}

// ReorderComponents applies a full drag-and-drop ordering.
func (s *Session) ReorderComponents(ids []string) (bool, error) {
	return s.apply(func(c domain.Components) (domain.Components, error) {
		return c.Reorder(ids), nil
	})
}

// RemoveComponent deletes node id. Unknown ids are a no-op.
func (s *Session) RemoveComponent(id string) (bool, error) {
	return s.apply(func(c domain.Components) (domain.Components, error) {
		return c.Remove(id), nil
	})
}

// DuplicateComponent copies node id right after itself under a fresh id.
func (s *Session) DuplicateComponent(id string) (domain.ComponentNode, error) {
	newID := s.newID()
	changed, err := s.apply(func(c domain.Components) (domain.Components, error) {
		return c.Duplicate(id, newID)
	})
	if err != nil {
		return domain.ComponentNode{}, err
	}
	if !changed {
		return domain.ComponentNode{}, fmt.Errorf("duplicate %s: component not found", id)
	}
	n, _ := s.Present().Find(newID)
	return n, nil
}

// Resequence stamps explicit Order values matching display order.
func (s *Session) Resequence() (bool, error) {
	return s.apply(func(c domain.Components) (domain.Components, error) {
		return c.Resequence(), nil
	})
}

// RestoreVersion makes a stored version the present as an undoable step.
// The settings of the version are restored as well; settings are not part
// of the undo timeline.
func (s *Session) RestoreVersion(rec domain.VersionRecord) error {
	components := rec.Components.Clone()
	if err := components.Validate(); err != nil {
		return err
	}
	if err := rec.Settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionNotOpen
	}
	s.hist.Commit(components)
	s.doc.Settings = rec.Settings.Clone()
	s.publishLocked(ReasonRestore)
	return nil
}

// ── Timeline ────────────────────────────────────────────────

// Undo steps back once. Undo with nothing to undo is a silent no-op.
func (s *Session) Undo() bool {
	return s.step(ReasonUndo, (*history.Engine).Undo)
}

// Redo steps forward once. Redo with nothing to redo is a silent no-op.
func (s *Session) Redo() bool {
	return s.step(ReasonRedo, (*history.Engine).Redo)
}

func (s *Session) step(reason Reason, fn func(*history.Engine) bool) bool {
	s.mu.Lock()
	if s.closed || !fn(s.hist) {
		s.mu.Unlock()
		return false
	}
	s.publishLocked(reason)
	return true
}

// SetState replaces the present without recording an undo step. Used when
// the durable copy was overwritten from outside this session.
func (s *Session) SetState(components domain.Components, settings domain.PageSettings) error {
	_, err := s.SyncState(components, settings, nil)
	return err
}

// SyncState is SetState guarded by accept. accept runs with the session
// locked and gets the current revision; the state is replaced only when it
// returns true, so no edit can land between the check and the swap. accept
// must not call Session methods.
func (s *Session) SyncState(components domain.Components, settings domain.PageSettings, accept func(rev uint64) bool) (bool, error) {
	if err := components.Validate(); err != nil {
		return false, err
	}
	if err := settings.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, domain.ErrSessionNotOpen
	}
	if accept != nil && !accept(s.rev) {
		s.mu.Unlock()
		return false, nil
	}
	s.hist.SetState(components.Clone())
	s.doc.Settings = settings.Clone()
	s.publishLocked(ReasonSync)
	return true, nil
}

// ClearHistory drops every undo and redo step.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist.ClearHistory()
	undoDepth.WithLabelValues(s.doc.ID).Set(0)
}

// UpdateSettings replaces the page settings. Settings edits are persisted
// but are not undoable.
func (s *Session) UpdateSettings(settings domain.PageSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionNotOpen
	}
	s.doc.Settings = settings.Clone()
	s.publishLocked(ReasonSettings)
	return nil
}

// HandleKey runs the undo or redo shortcut for e. It reports whether the key
// press was a shortcut, even when there was nothing to undo or redo.
func (s *Session) HandleKey(e KeyEvent) bool {
	switch ResolveShortcut(e) {
	case ActionUndo:
		s.Undo()
		return true
	case ActionRedo:
		s.Redo()
		return true
	}
	return false
}

// Close ends the session. Subscribers are dropped and further mutations
// fail with domain.ErrSessionNotOpen.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.listeners = make(map[int]Listener)
	undoDepth.DeleteLabelValues(s.doc.ID)
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
