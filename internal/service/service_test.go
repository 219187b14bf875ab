package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"pagebuilder/internal/service"
)

// ─────────────────────────────────────────────────────────────
// SessionGuard tests
// ─────────────────────────────────────────────────────────────

func TestSessionGuard_TryLock(t *testing.T) {
	var g service.ExportedSessionGuard

	if !g.TryLock("page-1") {
		t.Fatal("expected first TryLock to succeed")
	}
	if g.TryLock("page-1") {
		t.Fatal("expected second TryLock for same page to fail")
	}
	if !g.TryLock("page-2") {
		t.Fatal("expected TryLock for different page to succeed")
	}
	if !g.Held("page-1") {
		t.Fatal("expected page-1 to be held")
	}
	g.Unlock("page-1")
	g.Unlock("page-2")
	g.Unlock("never-locked")

	if !g.TryLock("page-1") {
		t.Fatal("expected TryLock to succeed after unlock")
	}
	g.Unlock("page-1")
}

// ─────────────────────────────────────────────────────────────
// Emitter tests
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "test:event", map[string]string{"foo": "bar"})
	m.Emit(ctx, "test:event2", nil)
	m.Emit(ctx, "test:event", nil)

	if len(m.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(m.Events))
	}
	if m.Events[0].Event != "test:event" {
		t.Errorf("expected 'test:event', got %q", m.Events[0].Event)
	}
	if n := m.Count("test:event"); n != 2 {
		t.Errorf("expected 2 test:event emissions, got %d", n)
	}
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return p.err
}

func TestNATSEmitter_PublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	e := service.NewNATSEmitter(pub, "pagebuilder.", nil)

	e.Emit(context.Background(), service.EventPageSaved, map[string]any{"pageId": "p1"})

	if len(pub.subjects) != 1 || pub.subjects[0] != "pagebuilder.page.saved" {
		t.Fatalf("unexpected subjects %v", pub.subjects)
	}
	var env struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	if err := json.Unmarshal(pub.payloads[0], &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Event != "page:saved" || env.Data["pageId"] != "p1" {
		t.Errorf("unexpected envelope %+v", env)
	}
}

func TestNATSEmitter_SubjectWithoutPrefix(t *testing.T) {
	e := service.NewNATSEmitter(&fakePublisher{}, "", nil)
	if got := e.Subject(service.EventPageSaveFailed); got != "page.save-failed" {
		t.Errorf("got %q", got)
	}
}

func TestNATSEmitter_PublishErrorIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("disconnected")}
	e := service.NewNATSEmitter(pub, "x", nil)
	e.Emit(context.Background(), service.EventPageCreated, make(chan int)) // unencodable
	e.Emit(context.Background(), service.EventPageCreated, "p1")
	if len(pub.subjects) != 1 {
		t.Fatalf("expected one publish attempt, got %d", len(pub.subjects))
	}
}

func TestMultiEmitter_FansOut(t *testing.T) {
	a, b := &service.MockEmitter{}, &service.MockEmitter{}
	service.MultiEmitter{a, b}.Emit(context.Background(), "x", nil)
	if len(a.Events) != 1 || len(b.Events) != 1 {
		t.Fatal("expected both emitters to record the event")
	}
}

// ─────────────────────────────────────────────────────────────
// Template tests
// ─────────────────────────────────────────────────────────────

func TestTemplates_FreshIDs(t *testing.T) {
	tpl, err := service.LookupTemplate("product-launch")
	if err != nil {
		t.Fatal(err)
	}
	a, b := tpl.Components(), tpl.Components()
	if err := a.Validate(); err != nil {
		t.Fatalf("template must validate: %v", err)
	}
	if a[0].ID == b[0].ID {
		t.Error("two instantiations must not share component ids")
	}
	if _, err := service.LookupTemplate("nope"); err == nil || !strings.Contains(err.Error(), "unknown template") {
		t.Errorf("expected unknown template error, got %v", err)
	}
	blank, _ := service.LookupTemplate("blank")
	if len(blank.Components()) != 0 {
		t.Error("blank template must be empty")
	}
}
