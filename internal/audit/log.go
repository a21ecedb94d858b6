// Package audit records authorization decisions and data mutations on an
// append-only trail. Writes are asynchronous so handler latency does not
// include sink latency, but the logger blocks rather than drop records when
// the buffer is full.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LuisFaxas/faxas-property-sub000/internal/ids"
	"github.com/LuisFaxas/faxas-property-sub000/internal/obs"
)

// Record is one audit trail entry. Decision records carry Module/Intent and
// Allowed/Reason; mutation records carry Action and optional Detail.
type Record struct {
	ID          string         `json:"id"`
	At          time.Time      `json:"at"`
	PrincipalID string         `json:"principal_id"`
	ProjectID   string         `json:"project_id,omitempty"`
	Module      string         `json:"module,omitempty"`
	Intent      string         `json:"intent,omitempty"`
	Action      string         `json:"action,omitempty"`
	Allowed     *bool          `json:"allowed,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Detail      map[string]any `json:"detail,omitempty"`
}

// Sink persists records. Implementations must tolerate concurrent calls.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// Logger buffers records on a channel and drains them on a single goroutine.
// It satisfies auth.DecisionSink.
type Logger struct {
	sink    Sink
	ch      chan Record
	done    chan struct{}
	now     func() time.Time
	closeMu sync.Mutex
	closed  bool
}

// NewLogger starts the drain goroutine. buffer controls how many records may
// be in flight before producers block.
func NewLogger(sink Sink, buffer int) (*Logger, error) {
	if sink == nil {
		return nil, errors.New("audit: sink is required")
	}
	if buffer <= 0 {
		buffer = 256
	}
	l := &Logger{
		sink: sink,
		ch:   make(chan Record, buffer),
		done: make(chan struct{}),
		now:  time.Now,
	}
	go l.drain()
	return l, nil
}

func (l *Logger) drain() {
	defer close(l.done)
	for rec := range l.ch {
		if err := l.sink.Write(context.Background(), rec); err != nil {
			obs.LogRequest(map[string]any{
				"level": "error",
				"msg":   "audit sink write failed",
				"error": err.Error(),
				"id":    rec.ID,
			})
		}
	}
}

// Decision records one authorization outcome. Reason is scrubbed like any
// other free-text field.
func (l *Logger) Decision(_ context.Context, principalID, projectID, module, intent string, allowed bool, reason string) {
	a := allowed
	l.enqueue(Record{
		PrincipalID: principalID,
		ProjectID:   projectID,
		Module:      module,
		Intent:      intent,
		Allowed:     &a,
		Reason:      ScrubText(reason),
	})
}

// Event records a non-decision action such as a completed mutation. Detail
// is scrubbed before it leaves the caller's goroutine.
func (l *Logger) Event(_ context.Context, principalID, projectID, action string, detail map[string]any) {
	l.enqueue(Record{
		PrincipalID: principalID,
		ProjectID:   projectID,
		Action:      action,
		Detail:      Scrub(detail),
	})
}

func (l *Logger) enqueue(rec Record) {
	rec.ID = ids.New()
	rec.At = l.now().UTC()
	l.closeMu.Lock()
	if l.closed {
		l.closeMu.Unlock()
		return
	}
	// Blocks when the buffer is full; records are never dropped.
	l.ch <- rec
	l.closeMu.Unlock()
}

// Close flushes buffered records and stops the drain goroutine.
func (l *Logger) Close() error {
	l.closeMu.Lock()
	if l.closed {
		l.closeMu.Unlock()
		return nil
	}
	l.closed = true
	close(l.ch)
	l.closeMu.Unlock()
	<-l.done
	return nil
}

// MemorySink collects records in memory for tests and dev mode.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of everything written so far.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// LogSink emits records as JSON lines on the shared service logger.
type LogSink struct{}

func (LogSink) Write(_ context.Context, rec Record) error {
	entry := map[string]any{
		"ts":           rec.At.Format(time.RFC3339Nano),
		"level":        "audit",
		"id":           rec.ID,
		"principal_id": rec.PrincipalID,
	}
	if rec.ProjectID != "" {
		entry["project_id"] = rec.ProjectID
	}
	if rec.Module != "" {
		entry["module"] = rec.Module
		entry["intent"] = rec.Intent
	}
	if rec.Allowed != nil {
		entry["allowed"] = *rec.Allowed
		entry["reason"] = rec.Reason
	}
	if rec.Action != "" {
		entry["action"] = rec.Action
	}
	if len(rec.Detail) > 0 {
		entry["detail"] = rec.Detail
	}
	obs.LogRequest(entry)
	return nil
}
