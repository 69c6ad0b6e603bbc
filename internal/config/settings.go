package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/joho/godotenv"
)

// DefaultSettingsFile is read from the working directory when present.
const DefaultSettingsFile = "envctl.env"

// Default credentials of a freshly installed proxy control plane.
const (
	DefaultProxyIdentity = "admin@example.com"
	DefaultProxySecret   = "changeme"
)

// Settings holds operator settings sourced from ENVCTL_* variables.
type Settings struct {
	// Root is the base directory for the relative defaults below.
	Root string `env:"ENVCTL_ROOT" envDefault:"."`
	// SourcesDir holds upstream checkouts, one directory per component.
	SourcesDir string `env:"ENVCTL_SOURCES_DIR"`
	// EnvironmentsDir holds one materialized tree per environment.
	EnvironmentsDir string `env:"ENVCTL_ENVIRONMENTS_DIR"`
	// BackupsDir holds snapshots taken before destructive operations.
	BackupsDir string `env:"ENVCTL_BACKUPS_DIR"`
	// StateDir holds the audit log.
	StateDir string `env:"ENVCTL_STATE_DIR"`

	// Project, Environment and DomainBase are the defaults for --project, --env and --domain.
	Project     string `env:"ENVCTL_PROJECT"`
	Environment string `env:"ENVCTL_ENVIRONMENT" envDefault:"dev"`
	DomainBase  string `env:"ENVCTL_DOMAIN_BASE" envDefault:"localhost"`

	// Runtime is auto, docker, podman or sdk.
	Runtime string `env:"ENVCTL_RUNTIME" envDefault:"auto"`

	// ProxyURL overrides the control plane address. Empty means the
	// environment's proxy admin port on localhost.
	ProxyURL      string `env:"ENVCTL_PROXY_URL"`
	ProxyIdentity string `env:"ENVCTL_PROXY_IDENTITY" envDefault:"admin@example.com"`
	ProxySecret   string `env:"ENVCTL_PROXY_SECRET" envDefault:"changeme"`

	ReadinessDelay    time.Duration `env:"ENVCTL_READINESS_DELAY" envDefault:"20s"`
	ProxyStartupDelay time.Duration `env:"ENVCTL_PROXY_STARTUP_DELAY" envDefault:"10s"`
	AuthAttempts      int           `env:"ENVCTL_AUTH_ATTEMPTS" envDefault:"5"`
	AuthDelay         time.Duration `env:"ENVCTL_AUTH_DELAY" envDefault:"2s"`
	RemoveAttempts    int           `env:"ENVCTL_REMOVE_ATTEMPTS" envDefault:"3"`
	RemoveDelay       time.Duration `env:"ENVCTL_REMOVE_DELAY" envDefault:"2s"`

	LogLevel string `env:"ENVCTL_LOG_LEVEL" envDefault:"info"`
}

// LoadSettings parses settings from the process environment, with values
// from the optional settings file underneath it.
func LoadSettings(settingsFile string) (*Settings, error) {
	return LoadSettingsFrom(settingsFile, environMap(os.Environ()))
}

// LoadSettingsFrom parses settings from the given variables. Keys read from
// settingsFile fill in whatever vars does not set.
func LoadSettingsFrom(settingsFile string, vars map[string]string) (*Settings, error) {
	merged := make(map[string]string, len(vars))
	if settingsFile != "" {
		fileVars, err := godotenv.Read(settingsFile)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read settings file %s: %w", settingsFile, err)
		}
		for k, v := range fileVars {
			merged[k] = v
		}
	}
	for k, v := range vars {
		merged[k] = v
	}

	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{Environment: merged}); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) applyDefaults() {
	if s.SourcesDir == "" {
		s.SourcesDir = filepath.Join(s.Root, "sources")
	}
	if s.EnvironmentsDir == "" {
		s.EnvironmentsDir = filepath.Join(s.Root, "environments")
	}
	if s.BackupsDir == "" {
		s.BackupsDir = filepath.Join(s.Root, "backups")
	}
	if s.StateDir == "" {
		s.StateDir = filepath.Join(s.Root, ".envctl")
	}
}

// Validate checks settings values that cannot be fixed up.
func (s *Settings) Validate() error {
	switch s.Runtime {
	case "auto", "docker", "podman", "sdk":
	default:
		return fmt.Errorf("invalid runtime %q (use auto, docker, podman, or sdk)", s.Runtime)
	}
	if s.AuthAttempts < 1 {
		return fmt.Errorf("auth attempts must be at least 1, got %d", s.AuthAttempts)
	}
	if s.RemoveAttempts < 1 {
		return fmt.Errorf("remove attempts must be at least 1, got %d", s.RemoveAttempts)
	}
	if s.ReadinessDelay < 0 || s.ProxyStartupDelay < 0 || s.AuthDelay < 0 || s.RemoveDelay < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	return nil
}

// EnvironmentDir returns the materialized tree of an environment.
func (s *Settings) EnvironmentDir(cfg *EnvironmentConfig) (string, error) {
	return securejoin.SecureJoin(s.EnvironmentsDir, cfg.Slug())
}

// ComponentDir returns a component's directory inside the environment tree.
func (s *Settings) ComponentDir(cfg *EnvironmentConfig, comp Component) (string, error) {
	envDir, err := s.EnvironmentDir(cfg)
	if err != nil {
		return "", err
	}
	return securejoin.SecureJoin(envDir, cfg.FolderNames[comp])
}

// SourceDir returns the upstream checkout directory for a source name.
func (s *Settings) SourceDir(name string) (string, error) {
	return securejoin.SecureJoin(s.SourcesDir, name)
}

// BackupDir returns the snapshot root of an environment.
func (s *Settings) BackupDir(cfg *EnvironmentConfig) (string, error) {
	return securejoin.SecureJoin(s.BackupsDir, cfg.Slug())
}

// ControlPlaneURL returns the proxy API base URL for an environment.
func (s *Settings) ControlPlaneURL(cfg *EnvironmentConfig) string {
	if s.ProxyURL != "" {
		return strings.TrimRight(s.ProxyURL, "/")
	}
	return fmt.Sprintf("http://127.0.0.1:%d", cfg.Port(ComponentProxy, PortAdmin))
}

func environMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}
