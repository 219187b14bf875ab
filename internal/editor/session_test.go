package editor

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pagebuilder/internal/domain"
)

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("c%d", n)
	}
}

func newSession(t *testing.T, components ...domain.ComponentNode) *Session {
	t.Helper()
	doc := domain.Document{ID: "page-1", Name: "Launch", Components: components}
	s := NewSession(doc, Options{Logger: zap.NewNop(), NewID: sequentialIDs()})
	t.Cleanup(s.Close)
	return s
}

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) listen(c Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recorder) reasons() []Reason {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Reason, len(r.changes))
	for i, c := range r.changes {
		out[i] = c.Reason
	}
	return out
}

func TestSession_HeroFooterScenario(t *testing.T) {
	s := newSession(t)

	hero, err := s.InsertComponent(domain.ComponentHero, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Present().Len())

	footer, err := s.InsertComponent(domain.ComponentFooter, nil, 1)
	require.NoError(t, err)
	two := s.Present()
	assert.Equal(t, 2, two.Len())

	require.True(t, s.Undo())
	assert.Equal(t, []string{hero.ID}, s.Present().IDs())
	require.True(t, s.Undo())
	assert.Empty(t, s.Present())

	require.True(t, s.Redo())
	require.True(t, s.Redo())
	assert.Equal(t, []string{hero.ID, footer.ID}, s.Present().IDs())
	assert.True(t, two.Equal(s.Present()))
}

func TestSession_AddUsesRegistryDefaults(t *testing.T) {
	s := newSession(t)
	n, err := s.AddComponent(domain.ComponentButton, map[string]any{"url": "/buy"})
	require.NoError(t, err)
	assert.Equal(t, "Click here", n.Props["text"])
	assert.Equal(t, "/buy", n.Props["url"])
}

func TestSession_RejectedEditLeavesStateUntouched(t *testing.T) {
	s := newSession(t)
	rec := &recorder{}
	s.Subscribe(rec.listen)

	_, err := s.AddComponent("carousel", nil)
	require.ErrorIs(t, err, domain.ErrUnknownComponentType)

	btn, err := s.AddComponent(domain.ComponentButton, nil)
	require.NoError(t, err)

	_, err = s.SetComponentProp(btn.ID, "text", "")
	require.ErrorIs(t, err, domain.ErrInvalidComponent)

	_, err = s.UpdateComponent(btn.ID, map[string]any{"text": make(chan int)}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidComponent)

	n, _ := s.Present().Find(btn.ID)
	assert.Equal(t, "Click here", n.Props["text"])
	assert.Len(t, s.History().Past, 1)
	assert.Equal(t, []Reason{ReasonCommit}, rec.reasons())
}

func TestSession_StaleIDsDoNotCommit(t *testing.T) {
	s := newSession(t)
	_, err := s.AddComponent(domain.ComponentText, nil)
	require.NoError(t, err)

	changed, err := s.RemoveComponent("gone")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.UpdateComponent("gone", map[string]any{"content": "x"}, nil)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.MoveComponent(5, 0)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Len(t, s.History().Past, 1)
}

func TestSession_MutationsCommitAndClearRedo(t *testing.T) {
	s := newSession(t)
	a, _ := s.AddComponent(domain.ComponentHeader, nil)
	b, _ := s.AddComponent(domain.ComponentText, nil)
	c, _ := s.AddComponent(domain.ComponentFooter, nil)

	changed, err := s.MoveComponentByID(c.ID, 0)
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, s.Present().IDs())

	require.True(t, s.Undo())
	assert.True(t, s.CanRedo())

	changed, err = s.ReorderComponents([]string{b.ID, a.ID, c.ID})
	require.NoError(t, err)
	require.True(t, changed)
	assert.False(t, s.CanRedo(), "a new commit drops the redo branch")

	dup, err := s.DuplicateComponent(a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID, dup.ID, c.ID}, s.Present().IDs())

	_, err = s.DuplicateComponent("nope")
	require.Error(t, err)

	changed, err = s.RemoveComponent(b.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{a.ID, dup.ID, c.ID}, s.Present().IDs())
}

func TestSession_SubscribersSeeEveryTransitionInOrder(t *testing.T) {
	s := newSession(t)
	rec := &recorder{}
	unsubscribe := s.Subscribe(rec.listen)

	_, _ = s.AddComponent(domain.ComponentHero, nil)
	s.Undo()
	s.Undo() // no-op, not published
	s.Redo()
	require.NoError(t, s.UpdateSettings(domain.PageSettings{Title: "New"}))
	require.NoError(t, s.SetState(domain.Components{}, domain.PageSettings{}))

	unsubscribe()
	_, _ = s.AddComponent(domain.ComponentText, nil)

	assert.Equal(t, []Reason{ReasonCommit, ReasonUndo, ReasonRedo, ReasonSettings, ReasonSync}, rec.reasons())
	assert.Equal(t, "New", rec.changes[3].Settings.Title)
	assert.True(t, rec.changes[0].CanUndo)
}

func TestSession_SetStateAndSettingsAreNotUndoable(t *testing.T) {
	s := newSession(t)
	_, _ = s.AddComponent(domain.ComponentHero, nil)

	external := domain.Components{{ID: "x", Type: domain.ComponentText}}
	require.NoError(t, s.SetState(external, domain.PageSettings{Title: "Remote"}))
	assert.Equal(t, []string{"x"}, s.Present().IDs())
	assert.Len(t, s.History().Past, 1)

	require.NoError(t, s.UpdateSettings(domain.PageSettings{Title: "Mine"}))
	require.True(t, s.Undo())
	assert.Empty(t, s.Present())
	assert.Equal(t, "Mine", s.Settings().Title)

	err := s.SetState(domain.Components{{ID: "bad", Type: "nope"}}, domain.PageSettings{})
	require.ErrorIs(t, err, domain.ErrUnknownComponentType)

	err = s.UpdateSettings(domain.PageSettings{Extra: map[string]any{"ratio": math.Inf(1)}})
	require.ErrorIs(t, err, domain.ErrInvalidSettings)
	assert.Equal(t, "Mine", s.Settings().Title)
}

func TestSession_RestoreVersionIsUndoable(t *testing.T) {
	s := newSession(t)
	_, _ = s.AddComponent(domain.ComponentHero, nil)
	before := s.Present()

	rec := domain.VersionRecord{
		Components: domain.Components{{ID: "old", Type: domain.ComponentCTA, Props: map[string]any{"buttonText": "Go"}}},
		Settings:   domain.PageSettings{Title: "Old"},
	}
	require.NoError(t, s.RestoreVersion(rec))
	assert.Equal(t, []string{"old"}, s.Present().IDs())
	assert.Equal(t, "Old", s.Settings().Title)

	require.True(t, s.Undo())
	assert.True(t, before.Equal(s.Present()))
}

func TestSession_HandleKey(t *testing.T) {
	s := newSession(t)
	_, _ = s.AddComponent(domain.ComponentHero, nil)

	assert.False(t, s.HandleKey(KeyEvent{Key: "z", Ctrl: true, Target: "INPUT"}))
	assert.Equal(t, 1, s.Present().Len())

	assert.True(t, s.HandleKey(KeyEvent{Key: "z", Meta: true}))
	assert.Empty(t, s.Present())
	assert.True(t, s.HandleKey(KeyEvent{Key: "z", Meta: true}), "repeated presses at the boundary are still handled")

	assert.True(t, s.HandleKey(KeyEvent{Key: "y", Ctrl: true}))
	assert.Equal(t, 1, s.Present().Len())
}

func TestSession_ClosedSessionRejectsEdits(t *testing.T) {
	s := newSession(t)
	rec := &recorder{}
	s.Subscribe(rec.listen)
	s.Close()

	_, err := s.AddComponent(domain.ComponentHero, nil)
	require.ErrorIs(t, err, domain.ErrSessionNotOpen)
	assert.False(t, s.Undo())
	require.ErrorIs(t, s.UpdateSettings(domain.PageSettings{}), domain.ErrSessionNotOpen)
	assert.True(t, s.Closed())
	assert.Empty(t, rec.reasons())
}

func TestSession_HistoryCapFromOptions(t *testing.T) {
	s := NewSession(domain.Document{ID: "p"}, Options{MaxHistory: 3, NewID: sequentialIDs()})
	defer s.Close()
	for i := 0; i < 10; i++ {
		_, err := s.AddComponent(domain.ComponentSpacer, nil)
		require.NoError(t, err)
	}
	assert.Len(t, s.History().Past, 3)

	s.ClearHistory()
	assert.False(t, s.CanUndo())
	assert.Equal(t, 10, s.Present().Len())
}

func TestSession_ConcurrentEdits(t *testing.T) {
	s := newSession(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.AddComponent(domain.ComponentText, nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, s.Present().Len())
	require.NoError(t, s.Present().Validate())
}

func TestSession_ListenersMayQueryTheSession(t *testing.T) {
	s := newSession(t)
	entered, release := make(chan struct{}), make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var seen []int
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(seen)
	}
	var unsubscribe func()
	unsubscribe = s.Subscribe(func(c Change) {
		once.Do(func() {
			close(entered)
			<-release
		})
		n := s.Present().Len()
		_ = s.Settings()
		_ = s.CanUndo()
		if count() == 1 {
			unsubscribe()
		}
		mu.Lock()
		seen = append(seen, n)
		mu.Unlock()
	})

	go func() { _, _ = s.AddComponent(domain.ComponentHero, nil) }()
	<-entered

	done := make(chan struct{})
	go func() {
		_, _ = s.AddComponent(domain.ComponentText, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("a commit blocked behind a listener")
	}
	close(release)

	require.Eventually(t, func() bool { return count() == 2 }, time.Second, time.Millisecond)
	_, _ = s.AddComponent(domain.ComponentText, nil)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{2, 2}, seen, "both changes delivered, then unsubscribed")
}

func TestSession_ChangesCarryRevisionInOrder(t *testing.T) {
	s := newSession(t)
	rec := &recorder{}
	s.Subscribe(rec.listen)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.AddComponent(domain.ComponentText, nil)
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.changes) == 20
	}, time.Second, time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, c := range rec.changes {
		assert.Equal(t, uint64(i+1), c.Rev)
		assert.Equal(t, i+1, c.Components.Len())
	}
}

func TestSession_SyncStateRespectsAccept(t *testing.T) {
	s := newSession(t)
	_, _ = s.AddComponent(domain.ComponentHero, nil)

	applied, err := s.SyncState(domain.Components{}, domain.PageSettings{}, func(rev uint64) bool {
		assert.Equal(t, uint64(1), rev)
		return false
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 1, s.Present().Len())

	applied, err = s.SyncState(domain.Components{}, domain.PageSettings{}, func(uint64) bool { return true })
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Empty(t, s.Present())
	assert.Equal(t, uint64(2), s.Rev())
}
