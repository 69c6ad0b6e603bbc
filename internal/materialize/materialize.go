package materialize

import (
	"time"

	"github.com/medstack-ops/envctl/internal/system"
)

// Materializer performs file operations against a FileSystem.
type Materializer struct {
	fs  system.FileSystem
	now func() time.Time
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithClock sets the clock used for generated headers.
func WithClock(now func() time.Time) Option {
	return func(m *Materializer) {
		m.now = now
	}
}

// New creates a Materializer. A nil fsys uses the OS file system.
func New(fsys system.FileSystem, opts ...Option) *Materializer {
	if fsys == nil {
		fsys = system.DefaultFS()
	}
	m := &Materializer{fs: fsys, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
