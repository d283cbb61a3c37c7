package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MrEthical07/staysafe/auditlog"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	seen    []auditlog.Entry
}

func (s *blockingSink) Emit(_ context.Context, e auditlog.Entry) {
	<-s.release
	s.mu.Lock()
	s.seen = append(s.seen, e)
	s.mu.Unlock()
}

type panicSink struct{}

func (panicSink) Emit(context.Context, auditlog.Entry) { panic("sink exploded") }

type failingStore struct{}

func (failingStore) Append(context.Context, auditlog.Entry) error { return errors.New("db down") }
func (failingStore) Find(context.Context, auditlog.Query) ([]auditlog.Entry, error) {
	return nil, nil
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), auditlog.Entry{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	store := auditlog.NewMemoryStore()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, NewStoreSink(store, nil))

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), auditlog.Entry{ID: string(rune('a' + i)), Action: auditlog.ActionLogout})
	}
	d.Close()

	if store.Len() != 10 {
		t.Fatalf("expected 10 persisted entries, got %d", store.Len())
	}
	if d.Delivered() != 10 {
		t.Fatalf("expected 10 delivered, got %d", d.Delivered())
	}

	d.Emit(context.Background(), auditlog.Entry{ID: "late"})
	if store.Len() != 10 {
		t.Fatal("emit after close must be ignored")
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// The worker picks up the first entry and blocks in the sink; the second
	// fills the buffer; later ones are dropped.
	d.Emit(context.Background(), auditlog.Entry{ID: "1"})
	deadline := time.Now().Add(time.Second)
	for len(d.ch) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Emit(context.Background(), auditlog.Entry{ID: "2"})
	d.Emit(context.Background(), auditlog.Entry{ID: "3"})
	d.Emit(context.Background(), auditlog.Entry{ID: "4"})

	if d.Dropped() != 2 {
		t.Fatalf("expected 2 drops, got %d", d.Dropped())
	}
	close(sink.release)
	d.Close()
}

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, panicSink{})
	d.Emit(context.Background(), auditlog.Entry{ID: "1"})
	d.Emit(context.Background(), auditlog.Entry{ID: "2"})
	d.Close()

	if d.Failed() != 2 {
		t.Fatalf("expected 2 failed deliveries, got %d", d.Failed())
	}
}

func TestStoreSinkLogsAndSwallowsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := NewStoreSink(failingStore{}, zap.New(core))

	sink.Emit(context.Background(), auditlog.Entry{ID: "e1", Action: auditlog.ActionLoginFailed})

	if logs.Len() != 1 {
		t.Fatalf("expected one warning, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.ContextMap()["action"] != "login_failed" {
		t.Fatalf("unexpected log fields %v", entry.ContextMap())
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), auditlog.Entry{ID: "e1", Action: auditlog.ActionLogout, Outcome: auditlog.OutcomeSuccess})
	sink.Emit(context.Background(), auditlog.Entry{ID: "e2", Action: auditlog.ActionLogout, Outcome: auditlog.OutcomeSuccess})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var decoded auditlog.Entry
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded.ID != "e1" || decoded.Outcome != auditlog.OutcomeSuccess {
		t.Fatalf("unexpected entry %+v", decoded)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a := NewChannelSink(1)
	b := NewChannelSink(1)
	MultiSink{a, nil, b}.Emit(context.Background(), auditlog.Entry{ID: "e1"})

	if got := <-a.Entries(); got.ID != "e1" {
		t.Fatalf("unexpected entry %+v", got)
	}
	if got := <-b.Entries(); got.ID != "e1" {
		t.Fatalf("unexpected entry %+v", got)
	}
}
