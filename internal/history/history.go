// Package history keeps a linear undo/redo timeline over component snapshots.
package history

import (
	"slices"

	"pagebuilder/internal/domain"
)

// DefaultMaxHistory is the number of undo steps kept when none is configured.
const DefaultMaxHistory = 50

// State is a read-only view of the timeline.
// Past is ordered oldest first; Future is ordered next-redo first.
type State struct {
	Past    []domain.Components `json:"past"`
	Present domain.Components   `json:"present"`
	Future  []domain.Components `json:"future"`
}

// Engine holds exactly one linear timeline. It is not safe for concurrent
// use; the editing session serializes access.
type Engine struct {
	past       []domain.Components
	present    domain.Components
	future     []domain.Components
	maxHistory int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxHistory caps the number of undo steps. Values <= 0 keep the default.
func WithMaxHistory(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxHistory = n
		}
	}
}

// New creates an engine seeded with initial as the present state.
func New(initial domain.Components, opts ...Option) *Engine {
	e := &Engine{maxHistory: DefaultMaxHistory}
	for _, opt := range opts {
		opt(e)
	}
	e.present = normalize(initial)
	return e
}

// MaxHistory returns the configured undo capacity.
func (e *Engine) MaxHistory() int { return e.maxHistory }

// Present returns the current component sequence.
func (e *Engine) Present() domain.Components { return e.present }

// State returns a snapshot of the three stacks. The stacks are copied; the
// component sequences inside them are immutable and shared.
func (e *Engine) State() State {
	return State{
		Past:    slices.Clone(e.past),
		Present: e.present,
		Future:  slices.Clone(e.future),
	}
}

// PastLen returns the number of undo steps available.
func (e *Engine) PastLen() int { return len(e.past) }

func (e *Engine) CanUndo() bool { return len(e.past) > 0 }
func (e *Engine) CanRedo() bool { return len(e.future) > 0 }

// SetState replaces the present without touching past or future. Used for
// initial loads and external overwrites; it is not an undoable action.
func (e *Engine) SetState(present domain.Components) {
	e.present = normalize(present)
}

// Commit records the current present as an undo step, installs the new
// present and drops every redo step.
func (e *Engine) Commit(present domain.Components) {
	e.past = append(e.past, e.present)
	if over := len(e.past) - e.maxHistory; over > 0 {
		e.past = slices.Clone(e.past[over:])
	}
	e.present = normalize(present)
	e.future = nil
}

// Undo steps back once. It reports false and changes nothing when there is
// nothing to undo.
func (e *Engine) Undo() bool {
	if len(e.past) == 0 {
		return false
	}
	last := len(e.past) - 1
	prev := e.past[last]
	e.past = e.past[:last]
	e.future = append([]domain.Components{e.present}, e.future...)
	e.present = prev
	return true
}

// Redo steps forward once. It reports false and changes nothing when there
// is nothing to redo.
func (e *Engine) Redo() bool {
	if len(e.future) == 0 {
		return false
	}
	next := e.future[0]
	e.future = e.future[1:]
	e.past = append(e.past, e.present)
	if over := len(e.past) - e.maxHistory; over > 0 {
		e.past = slices.Clone(e.past[over:])
	}
	e.present = next
	return true
}

// ClearHistory empties both stacks and keeps the present.
func (e *Engine) ClearHistory() {
	e.past = nil
	e.future = nil
}

func normalize(c domain.Components) domain.Components {
	if c == nil {
		return domain.Components{}
	}
	return c
}
