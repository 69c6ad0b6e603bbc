package audit

import (
	"strings"
	"testing"
	"time"
)

func TestLogger_LogAndEvents(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(dir)

	// Log some events
	now := time.Now().Truncate(time.Millisecond)

	events := []Event{
		{Timestamp: now, Type: EventUp, Environment: "clinic-dev", RunID: "run-1", Details: "components=4"},
		{Timestamp: now.Add(time.Second), Type: EventReconcile, Environment: "clinic-dev", RunID: "run-1"},
		{Timestamp: now.Add(2 * time.Second), Type: EventRestore, Environment: "clinic-dev", Details: "snapshot=0f3a9c21"},
		{Timestamp: now.Add(3 * time.Second), Type: EventDown, Environment: "clinic-dev"},
	}

	for _, e := range events {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	// Read them back
	result, err := logger.Events("clinic-dev")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}

	if len(result) != len(events) {
		t.Fatalf("got %d events, want %d", len(result), len(events))
	}

	for i, e := range result {
		if e.Type != events[i].Type {
			t.Errorf("event %d: type = %q, want %q", i, e.Type, events[i].Type)
		}
		if e.Environment != events[i].Environment {
			t.Errorf("event %d: environment = %q, want %q", i, e.Environment, events[i].Environment)
		}
		if e.Details != events[i].Details {
			t.Errorf("event %d: details = %q, want %q", i, e.Details, events[i].Details)
		}
	}
}

func TestLogger_EventsEmpty(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(dir)

	result, err := logger.Events("nonexistent")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}

	if len(result) != 0 {
		t.Errorf("got %d events, want 0", len(result))
	}
}

func TestLogger_LogEvent(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(dir)

	if err := logger.LogEvent(EventUp, "acme-staging", "run-42", "routes=4"); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	events, err := logger.Events("acme-staging")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	e := events[0]
	if e.Type != EventUp {
		t.Errorf("type = %q, want %q", e.Type, EventUp)
	}
	if e.Environment != "acme-staging" {
		t.Errorf("environment = %q, want %q", e.Environment, "acme-staging")
	}
	if e.RunID != "run-42" {
		t.Errorf("run id = %q, want %q", e.RunID, "run-42")
	}
	if e.Details != "routes=4" {
		t.Errorf("details = %q, want %q", e.Details, "routes=4")
	}
	if e.Timestamp.IsZero() {
		t.Error("timestamp should be set automatically")
	}
}

func TestLogger_Remove(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(dir)

	logger.LogEvent(EventDown, "removable-dev", "", "")

	if err := logger.Remove("removable-dev"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	events, err := logger.Events("removable-dev")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events after remove, want 0", len(events))
	}
}

func TestLogger_RemoveNonexistent(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(dir)

	// Should not error
	if err := logger.Remove("nonexistent"); err != nil {
		t.Errorf("Remove should not error for nonexistent: %v", err)
	}
}

func TestLogger_EventOrder(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(dir)

	base := time.Now()
	for i := 0; i < 5; i++ {
		logger.Log(Event{
			Timestamp:   base.Add(time.Duration(i) * time.Second),
			Type:        EventUp,
			Environment: "order-test",
			Details:     string(rune('A' + i)),
		})
	}

	events, _ := logger.Events("order-test")
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5", len(events))
	}

	// Events should be in chronological order (append-only)
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Errorf("event %d timestamp before event %d", i, i-1)
		}
	}
}

func TestLogger_Tail(t *testing.T) {
	logger := NewLogger(t.TempDir())
	for i := 0; i < 4; i++ {
		logger.LogEvent(EventUp, "clinic-dev", "", string(rune('A'+i)))
	}

	events, err := logger.Tail("clinic-dev", 2)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Details != "C" || events[1].Details != "D" {
		t.Errorf("Tail() details = %q, %q, want C, D", events[0].Details, events[1].Details)
	}

	all, _ := logger.Tail("clinic-dev", 0)
	if len(all) != 4 {
		t.Errorf("Tail(0) returned %d events, want 4", len(all))
	}
}

func TestLogger_EscapingEnvironmentStaysInStateDir(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(dir)

	if err := logger.LogEvent(EventError, "../../outside", "", "boom"); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}
	path, err := logger.eventPath("../../outside")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(path, dir) {
		t.Errorf("eventPath() = %q, want a path under %q", path, dir)
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Error("NewRunID() returned the same ID twice")
	}
	if len(a) != 36 {
		t.Errorf("NewRunID() = %q, want a UUID", a)
	}
}
