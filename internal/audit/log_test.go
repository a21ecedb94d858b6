package audit

import (
	"context"
	"testing"
	"time"
)

func TestLoggerFlushesOnClose(t *testing.T) {
	sink := NewMemorySink()
	logger, err := NewLogger(sink, 8)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		logger.Decision(context.Background(), "u1", "p1", "TASKS", "read", true, "allowed")
	}
	logger.Event(context.Background(), "u1", "p1", "Task created successfully", map[string]any{"task_id": "t1"})

	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	recs := sink.Records()
	if len(recs) != 6 {
		t.Fatalf("records after close = %d, want 6", len(recs))
	}
	for _, rec := range recs {
		if rec.ID == "" || rec.At.IsZero() {
			t.Fatalf("record missing id or timestamp: %+v", rec)
		}
	}
	if recs[0].Allowed == nil || !*recs[0].Allowed {
		t.Fatalf("decision record allowed = %v, want true", recs[0].Allowed)
	}
	if recs[5].Action != "Task created successfully" {
		t.Fatalf("event action = %q", recs[5].Action)
	}
}

func TestLoggerIgnoresWritesAfterClose(t *testing.T) {
	sink := NewMemorySink()
	logger, _ := NewLogger(sink, 8)
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	logger.Decision(context.Background(), "u1", "p1", "TASKS", "read", true, "allowed")
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
	if n := len(sink.Records()); n != 0 {
		t.Fatalf("records after closed write = %d, want 0", n)
	}
}

func TestLoggerBlocksInsteadOfDropping(t *testing.T) {
	slow := &slowSink{inner: NewMemorySink(), delay: 5 * time.Millisecond}
	logger, _ := NewLogger(slow, 1)

	const n = 20
	for i := 0; i < n; i++ {
		logger.Decision(context.Background(), "u1", "p1", "TASKS", "read", false, "denied")
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
	if got := len(slow.inner.Records()); got != n {
		t.Fatalf("records delivered = %d, want %d", got, n)
	}
}

type slowSink struct {
	inner *MemorySink
	delay time.Duration
}

func (s *slowSink) Write(ctx context.Context, rec Record) error {
	time.Sleep(s.delay)
	return s.inner.Write(ctx, rec)
}

func TestDecisionReasonIsScrubbed(t *testing.T) {
	sink := NewMemorySink()
	logger, _ := NewLogger(sink, 8)

	logger.Decision(context.Background(), "u1", "p1", "TASKS", "read", false,
		"credential rejected: Bearer eyJhbGciOiJIUzI1NiJ9.abc.def")
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	recs := sink.Records()
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	if recs[0].Reason != "credential rejected: [REDACTED]" {
		t.Fatalf("reason = %q", recs[0].Reason)
	}
}

func TestScrubMasksSensitiveFields(t *testing.T) {
	in := map[string]any{
		"ssn":          "123-45-6789",
		"Password":     "hunter2",
		"bank_account": "000111222",
		"note":         "call re: SSN 987-65-4321 tomorrow",
		"header":       "Bearer eyJhbGciOiJIUzI1NiJ9.abc.def",
		"amount":       1200,
	}
	out := Scrub(in)

	for _, key := range []string{"ssn", "Password", "bank_account"} {
		if out[key] != "[REDACTED]" {
			t.Fatalf("%s = %v, want [REDACTED]", key, out[key])
		}
	}
	if out["note"] != "call re: SSN [REDACTED] tomorrow" {
		t.Fatalf("note = %v", out["note"])
	}
	if out["header"] != "[REDACTED]" {
		t.Fatalf("header = %v", out["header"])
	}
	if out["amount"] != 1200 {
		t.Fatalf("amount = %v, want untouched", out["amount"])
	}
	if in["ssn"] != "123-45-6789" {
		t.Fatal("input map mutated")
	}
}

func TestScrubNil(t *testing.T) {
	if Scrub(nil) != nil {
		t.Fatal("scrub of nil should stay nil")
	}
}
