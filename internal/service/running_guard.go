package service

import "sync"

// ExportedSessionGuard is an exported alias so _test packages can test the guard.
type ExportedSessionGuard = sessionGuard

// ─────────────────────────────────────────────────────────────
// sessionGuard: one editing session per page
// ─────────────────────────────────────────────────────────────

// sessionGuard reserves page ids while a session is being opened or is
// open, so two callers can never edit the same page through two
// independent histories.
type sessionGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// TryLock attempts to reserve pageID. Returns false if it is already held.
func (g *sessionGuard) TryLock(pageID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held == nil {
		g.held = make(map[string]struct{})
	}
	if _, ok := g.held[pageID]; ok {
		return false
	}
	g.held[pageID] = struct{}{}
	return true
}

// Unlock releases pageID. Releasing an id that is not held is a no-op.
func (g *sessionGuard) Unlock(pageID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, pageID)
}

// Held reports whether pageID is reserved.
func (g *sessionGuard) Held(pageID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[pageID]
	return ok
}
