// Package audit provides structured event logging for environment lifecycle events.
// Events are stored as JSON Lines (JSONL) files, one per environment.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"
)

// EventType classifies a lifecycle event.
type EventType string

const (
	EventUp        EventType = "up"
	EventDown      EventType = "down"
	EventReconcile EventType = "reconcile"
	EventRestore   EventType = "restore"
	EventHealth    EventType = "health"
	EventRepair    EventType = "repair"
	EventError     EventType = "error"
)

// Event represents a single audit log entry.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        EventType `json:"type"`
	Environment string    `json:"environment"`
	// RunID groups the events of one invocation.
	RunID   string `json:"run_id,omitempty"`
	Details string `json:"details,omitempty"`
}

// NewRunID returns an identifier for one invocation.
func NewRunID() string {
	return uuid.NewString()
}

// Logger writes and reads audit events for environments.
// Events are stored in {stateDir}/environments/{slug}.events.jsonl.
type Logger struct {
	stateDir string
}

// NewLogger creates a new audit logger rooted at stateDir.
func NewLogger(stateDir string) *Logger {
	return &Logger{stateDir: stateDir}
}

// eventPath returns the path to the JSONL event log for an environment.
func (l *Logger) eventPath(env string) (string, error) {
	return securejoin.SecureJoin(filepath.Join(l.stateDir, "environments"), env+".events.jsonl")
}

// Log appends an event to the environment's audit log.
func (l *Logger) Log(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	path, err := l.eventPath(event.Environment)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// LogEvent is a convenience method that creates and logs an event.
func (l *Logger) LogEvent(eventType EventType, env, runID, details string) error {
	return l.Log(Event{
		Timestamp:   time.Now(),
		Type:        eventType,
		Environment: env,
		RunID:       runID,
		Details:     details,
	})
}

// Events reads all events for an environment in chronological order.
func (l *Logger) Events(env string) ([]Event, error) {
	path, err := l.eventPath(env)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // Skip malformed lines
		}
		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading audit log: %w", err)
	}

	return events, nil
}

// Tail returns the last n events for an environment. n <= 0 returns all.
func (l *Logger) Tail(env string, n int) ([]Event, error) {
	events, err := l.Events(env)
	if err != nil || n <= 0 || len(events) <= n {
		return events, err
	}
	return events[len(events)-n:], nil
}

// Remove deletes the audit log for an environment.
func (l *Logger) Remove(env string) error {
	path, err := l.eventPath(env)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
