package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from the transport
// ─────────────────────────────────────────────────────────────

// Event names emitted by the services.
const (
	EventPageCreated        = "page:created"
	EventPageDeleted        = "page:deleted"
	EventPageChanged        = "page:changed"
	EventPageSaved          = "page:saved"
	EventPageSaveFailed     = "page:save-failed"
	EventPageExternalChange = "page:external-change"
)

// EventEmitter publishes service events to whoever is listening.
// Services receive this interface instead of a concrete transport, which
// makes them independently testable with a mock emitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
// Autosave hooks emit from timer goroutines, so access is locked.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Names returns the recorded event names in emission order.
func (m *MockEmitter) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.Event
	}
	return out
}

// Count returns how many times event was emitted.
func (m *MockEmitter) Count(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Events {
		if e.Event == event {
			n++
		}
	}
	return n
}

// LogEmitter writes every event to a zap logger at debug level.
type LogEmitter struct {
	Log *zap.Logger
}

func (e LogEmitter) Emit(_ context.Context, event string, data any) {
	e.Log.Debug("event", zap.String("event", event), zap.Any("data", data))
}

// MultiEmitter fans an event out to several emitters.
type MultiEmitter []EventEmitter

func (m MultiEmitter) Emit(ctx context.Context, event string, data any) {
	for _, e := range m {
		e.Emit(ctx, event, data)
	}
}

// ── NATS ────────────────────────────────────────────────────

// Publisher is the subset of *nats.Conn the NATS emitter needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// EventEnvelope is the wire form of an event published on NATS.
type EventEnvelope struct {
	Event string    `json:"event"`
	Time  time.Time `json:"time"`
	Data  any       `json:"data"`
}

// NATSEmitter publishes events as JSON envelopes. The subject is the prefix
// followed by the event name with ':' replaced by '.', e.g.
// "pagebuilder.page.saved".
type NATSEmitter struct {
	pub    Publisher
	prefix string
	log    *zap.Logger
}

// NewNATSEmitter wraps a publisher, usually a *nats.Conn.
func NewNATSEmitter(pub Publisher, prefix string, log *zap.Logger) *NATSEmitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &NATSEmitter{pub: pub, prefix: strings.TrimSuffix(prefix, "."), log: log}
}

// ConnectNATS dials a NATS server for event publishing.
func ConnectNATS(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("pagebuilder"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

// Subject returns the NATS subject for event.
func (e *NATSEmitter) Subject(event string) string {
	name := strings.ReplaceAll(event, ":", ".")
	if e.prefix == "" {
		return name
	}
	return e.prefix + "." + name
}

func (e *NATSEmitter) Emit(_ context.Context, event string, data any) {
	payload, err := json.Marshal(EventEnvelope{Event: event, Time: time.Now().UTC(), Data: data})
	if err != nil {
		e.log.Warn("encode event", zap.String("event", event), zap.Error(err))
		return
	}
	if err := e.pub.Publish(e.Subject(event), payload); err != nil {
		e.log.Warn("publish event", zap.String("event", event), zap.Error(err))
	}
}
