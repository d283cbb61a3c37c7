package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/MrEthical07/staysafe/auditlog"
)

// Sink receives emitted audit entries. Sinks must not return failures to
// the emitter; they log and drop instead.
type Sink interface {
	Emit(ctx context.Context, entry auditlog.Entry)
}

// NoOpSink drops audit entries.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, auditlog.Entry) {}

// ChannelSink writes entries into a buffered channel.
type ChannelSink struct {
	entries chan auditlog.Entry
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		entries: make(chan auditlog.Entry, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, entry auditlog.Entry) {
	select {
	case s.entries <- entry:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Entries() <-chan auditlog.Entry {
	return s.entries
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, entry auditlog.Entry) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(append(data, '\n'))
}

// StoreSink persists entries to an auditlog.Store. Write failures are
// logged and swallowed.
type StoreSink struct {
	store  auditlog.Store
	logger *zap.Logger
}

func NewStoreSink(store auditlog.Store, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{store: store, logger: logger}
}

func (s *StoreSink) Emit(ctx context.Context, entry auditlog.Entry) {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Append(ctx, entry); err != nil {
		s.logger.Warn("audit entry not persisted",
			zap.String("action", string(entry.Action)),
			zap.String("entry_id", entry.ID),
			zap.Error(err),
		)
	}
}

// MultiSink fans an entry out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, entry auditlog.Entry) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, entry)
		}
	}
}
