// Package testutil provides test utilities for integration tests
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/medstack-ops/envctl/internal/app"
	"github.com/medstack-ops/envctl/internal/component"
	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/lifecycle"
	"github.com/medstack-ops/envctl/internal/proxy"
	"github.com/medstack-ops/envctl/internal/reconcile"
	"github.com/medstack-ops/envctl/internal/runtime"
	"github.com/medstack-ops/envctl/internal/system"
)

// TestEnv holds the test environment
type TestEnv struct {
	T            *testing.T
	Root         string
	Settings     *config.Settings
	Runtime      *runtime.MockRuntime
	Composer     *runtime.MockComposer
	Executor     *system.MockExecutor
	ControlPlane *ControlPlane
	App          *app.App
	cleanup      func()
}

// Clock is the fixed time used by test environments.
var Clock = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

// NewTestEnv creates a new test environment with a mock runtime, a fake
// control plane and an empty sources directory. Delays are zero and the
// app is installed as app.Default until Cleanup.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	root := t.TempDir()
	plane := NewControlPlane()
	srv := httptest.NewServer(plane)
	t.Cleanup(srv.Close)

	settings, err := config.LoadSettingsFrom("", map[string]string{
		"ENVCTL_ROOT":                root,
		"ENVCTL_PROJECT":             "clinic",
		"ENVCTL_PROXY_URL":           srv.URL,
		"ENVCTL_PROXY_IDENTITY":      ControlPlaneIdentity,
		"ENVCTL_PROXY_SECRET":        ControlPlaneSecret,
		"ENVCTL_READINESS_DELAY":     "0s",
		"ENVCTL_PROXY_STARTUP_DELAY": "0s",
		"ENVCTL_AUTH_ATTEMPTS":       "1",
		"ENVCTL_AUTH_DELAY":          "0s",
		"ENVCTL_REMOVE_DELAY":        "0s",
	})
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	mockRuntime := runtime.NewMockRuntime()
	mockComposer := runtime.NewMockComposer()
	mockComposer.OnUp = func(p runtime.ComposeProject) {
		StartContainers(mockRuntime, p)
	}
	executor := system.NewMockExecutor()

	testApp, err := app.New(
		app.WithSettings(settings),
		app.WithRuntime(mockRuntime, mockComposer),
		app.WithExecutor(executor),
		app.WithControllerOptions(
			lifecycle.WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
			lifecycle.WithClock(func() time.Time { return Clock }),
			lifecycle.WithRemoverOptions(reconcile.WithSettle(0)),
		),
	)
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}

	// Save original default and set test app
	originalDefault := app.Default
	app.SetDefault(testApp)

	return &TestEnv{
		T:            t,
		Root:         root,
		Settings:     settings,
		Runtime:      mockRuntime,
		Composer:     mockComposer,
		Executor:     executor,
		ControlPlane: plane,
		App:          testApp,
		cleanup: func() {
			app.SetDefault(originalDefault)
		},
	}
}

// Cleanup restores the original app default
func (e *TestEnv) Cleanup() {
	if e.cleanup != nil {
		e.cleanup()
	}
}

// AddSource writes the fixture checkout for a component's source name.
func (e *TestEnv) AddSource(name string) string {
	e.T.Helper()

	dir := filepath.Join(e.Settings.SourcesDir, name)
	if err := WriteSource(name, dir); err != nil {
		e.T.Fatalf("Failed to write source %s: %v", name, err)
	}
	return dir
}

// AddSources writes every fixture checkout except the named ones.
func (e *TestEnv) AddSources(except ...string) {
	e.T.Helper()

	names, err := SourceNames()
	if err != nil {
		e.T.Fatalf("Failed to list fixture sources: %v", err)
	}
	skip := make(map[string]bool, len(except))
	for _, n := range except {
		skip[n] = true
	}
	for _, n := range names {
		if !skip[n] {
			e.AddSource(n)
		}
	}
}

// EnvironmentDir returns the materialized tree of a project and kind.
func (e *TestEnv) EnvironmentDir(project, kind string) string {
	return filepath.Join(e.Settings.EnvironmentsDir, project+"-"+kind)
}

// StartContainers plays the part of compose for a started project: each
// topology service of the project's component gets a running container
// carrying the envctl and compose labels.
func StartContainers(rt *runtime.MockRuntime, p runtime.ComposeProject) {
	for _, comp := range config.Components {
		suffix := "-" + string(comp)
		if !strings.HasSuffix(p.Name, suffix) {
			continue
		}
		slug := strings.TrimSuffix(p.Name, suffix)
		project, kind, ok := cutLast(slug, "-")
		if !ok {
			return
		}
		for _, entry := range component.Topology() {
			if entry.Component != comp {
				continue
			}
			rt.AddContainer("", p.Name+"-"+entry.Service+"-1", runtime.StateRunning, map[string]string{
				config.LabelProject:        project,
				config.LabelEnvironment:    kind,
				config.LabelComponent:      string(comp),
				config.LabelService:        entry.Service,
				config.LabelComposeProject: p.Name,
			})
		}
		return
	}
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

// Credentials accepted by the fake control plane.
const (
	ControlPlaneIdentity = "ops@clinic.test"
	ControlPlaneSecret   = "s3cret"
)

// ControlPlane is an in-memory reverse-proxy control plane serving the
// token and proxy-host endpoints.
type ControlPlane struct {
	mu     sync.Mutex
	Reject bool
	Hosts  []proxy.Host
	Logins int
}

// NewControlPlane creates an empty control plane.
func NewControlPlane() *ControlPlane {
	return &ControlPlane{}
}

func (p *ControlPlane) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/tokens":
		p.Logins++
		var req struct {
			Identity string `json:"identity"`
			Secret   string `json:"secret"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if p.Reject || req.Identity != ControlPlaneIdentity || req.Secret != ControlPlaneSecret {
			http.Error(w, `{"error":{"message":"Invalid email or password"}}`, http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "test-token", "expires": "2030-01-01T00:00:00Z"})

	case r.URL.Path == "/api/nginx/proxy-hosts":
		if r.Header.Get("Authorization") != "Bearer test-token" {
			http.Error(w, `{"error":{"message":"Unauthorized"}}`, http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(p.Hosts)
		case http.MethodPost:
			var h proxy.Host
			if err := json.NewDecoder(r.Body).Decode(&h); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			h.ID = len(p.Hosts) + 1
			p.Hosts = append(p.Hosts, h)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(h)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}

	default:
		http.NotFound(w, r)
	}
}

// Domains returns every domain served by the stored proxy hosts.
func (p *ControlPlane) Domains() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []string
	for _, h := range p.Hosts {
		out = append(out, h.DomainNames...)
	}
	return out
}
