package integration

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medstack-ops/envctl/internal/app"
	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/lifecycle"
	"github.com/medstack-ops/envctl/internal/runtime"
)

// EnvVar enables the integration tests.
const EnvVar = "ENVCTL_INTEGRATION_TESTS"

// TestHarness provides an isolated environment backed by the host's
// container engine.
type TestHarness struct {
	t    *testing.T
	root string
	app  *app.App
	cfg  *config.EnvironmentConfig
}

// NewHarness creates a new test harness.
// It will skip the test if ENVCTL_INTEGRATION_TESTS is not set or no
// engine answers.
func NewHarness(t *testing.T) *TestHarness {
	t.Helper()

	if os.Getenv(EnvVar) == "" {
		t.Skipf("integration tests disabled (set %s=1 to enable)", EnvVar)
	}

	root := t.TempDir()
	settings, err := config.LoadSettingsFrom("", map[string]string{
		"ENVCTL_ROOT":    root,
		"ENVCTL_RUNTIME": os.Getenv("ENVCTL_RUNTIME"),
	})
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	a, err := app.New(app.WithSettings(settings))
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}
	if err := a.RequireRuntime(); err != nil {
		t.Skipf("no container runtime available: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Runtime.Ping(ctx); err != nil {
		t.Skipf("container engine not reachable: %v", err)
	}

	cfg, err := config.Resolve(ProjectName(), string(config.KindTest), "localhost")
	if err != nil {
		t.Fatalf("Failed to resolve environment: %v", err)
	}

	h := &TestHarness{t: t, root: root, app: a, cfg: cfg}
	t.Cleanup(h.Cleanup)
	return h
}

// ProjectName returns a project identifier unique to one test run.
func ProjectName() string {
	return "it" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// Root returns the harness root directory.
func (h *TestHarness) Root() string {
	return h.root
}

// Config returns the environment under test.
func (h *TestHarness) Config() *config.EnvironmentConfig {
	return h.cfg
}

// Runtime returns the container runtime.
func (h *TestHarness) Runtime() runtime.Runtime {
	return h.app.Runtime
}

// Controller returns a lifecycle controller for the harness app.
func (h *TestHarness) Controller() *lifecycle.Controller {
	h.t.Helper()

	ctrl, err := h.app.Controller()
	if err != nil {
		h.t.Fatalf("Failed to create controller: %v", err)
	}
	return ctrl
}

// Options returns lifecycle options selecting the environment under test.
func (h *TestHarness) Options() lifecycle.Options {
	return lifecycle.Options{
		Project:     h.cfg.Project,
		Environment: string(h.cfg.Kind),
		DomainBase:  h.cfg.DomainBase,
		NoBackup:    true,
		Volumes:     true,
		Force:       true,
	}
}

// Cleanup removes every runtime resource of the environment under test.
func (h *TestHarness) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ctrl, err := h.app.Controller()
	if err != nil {
		h.t.Logf("cleanup: %v", err)
		return
	}
	if _, err := ctrl.Down(ctx, h.Options()); err != nil {
		h.t.Logf("cleanup of %s failed: %v", h.cfg.Slug(), err)
	}
}
