// Package config resolves environment configuration and operator settings.
//
// # Environment Configuration
//
// Resolve derives an EnvironmentConfig from a project identifier, an
// environment kind and a domain base. The result is a pure function of
// those inputs:
//
//	cfg, err := config.Resolve("clinic", "staging", "example.com")
//	cfg.Domains[config.RouteEMR] // "staging-clinic.example.com"
//	cfg.Domains[config.RouteVC]  // "vc-staging.clinic.example.com"
//	cfg.Networks.Proxy           // "clinic-staging-proxy"
//
// Host ports come from a static table shifted by a per-kind offset so that
// several environments can share one host. Folder names and domains are
// unique within one configuration.
//
// # Settings
//
// Settings are read from ENVCTL_* variables, with an optional envctl.env
// file supplying values the process environment does not set:
//
//	ENVCTL_ROOT              base directory (default ".")
//	ENVCTL_SOURCES_DIR       upstream checkouts (default $ROOT/sources)
//	ENVCTL_ENVIRONMENTS_DIR  materialized trees (default $ROOT/environments)
//	ENVCTL_BACKUPS_DIR       snapshots (default $ROOT/backups)
//	ENVCTL_RUNTIME           auto, docker, podman, or sdk
//	ENVCTL_PROXY_URL         control plane URL override
//
// Paths derived from project names are joined with securejoin so they stay
// inside the configured roots.
package config
