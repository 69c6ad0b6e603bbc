// Package component holds the static catalog of deployable components:
// where their sources live, how their env files and compose overlays are
// found, which networks their containers join and which routes they serve.
package component

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/medstack-ops/envctl/internal/config"
)

// ConfigBlob locates configuration generated inside a running container
// that has to survive a teardown.
type ConfigBlob struct {
	Service string
	Path    string
}

// Spec describes one component. Values are templates; the run's
// EnvironmentConfig fills in names, ports and domains.
type Spec struct {
	Name config.Component

	// SourceName is the checkout directory under the sources root.
	SourceName string

	// EnvTemplateChain lists env template candidates relative to the
	// source directory, in priority order. "{kind}" expands to the
	// environment kind.
	EnvTemplateChain []string

	// OfficialComposeDirs are searched before the checkout root when the
	// official variant is selected, keyed by mode ("dev" or "prod").
	OfficialComposeDirs map[string]string

	// Exclude lists file and directory names never copied from the source.
	Exclude []string

	// RequiredEnv lists the keys a minimal env file must carry.
	RequiredEnv []string

	// DevModeOverrides are appended to the env rules in dev mode.
	DevModeOverrides map[string]string

	// Optional components are skipped quietly when their source is absent.
	Optional bool

	// Blob is set for components whose runtime config is backed up.
	Blob *ConfigBlob
}

var defaultExclude = []string{".git", ".github", "node_modules", ".env"}

var defaultEnvChain = []string{".env.{kind}.example", ".env.{kind}", ".env.example", "env.example", "example.env"}

var catalog = []Spec{
	{
		Name:             config.ComponentProxy,
		SourceName:       "nginx-proxy-manager",
		EnvTemplateChain: defaultEnvChain,
		Exclude:          slices.Concat(defaultExclude, []string{"data", "letsencrypt"}),
		RequiredEnv:      []string{"HTTP_PORT", "HTTPS_PORT", "ADMIN_PORT", "PROXY_NETWORK"},
	},
	{
		Name:             config.ComponentEMR,
		SourceName:       "openemr",
		EnvTemplateChain: defaultEnvChain,
		OfficialComposeDirs: map[string]string{
			"dev":  "docker/development-easy",
			"prod": "docker/production",
		},
		Exclude:     slices.Concat(defaultExclude, []string{"documents"}),
		RequiredEnv: []string{"OE_DOMAIN", "HTTP_PORT", "HTTPS_PORT", "OPENEMR_ENV"},
		DevModeOverrides: map[string]string{
			"EASY_DEV_MODE": "yes",
			"XDEBUG_ON":     "1",
		},
	},
	{
		Name:             config.ComponentTelehealth,
		SourceName:       "telehealth",
		EnvTemplateChain: defaultEnvChain,
		Exclude:          defaultExclude,
		RequiredEnv:      []string{"PORT", "APP_URL", "EMR_URL", "JITSI_DOMAIN", "NODE_ENV"},
		DevModeOverrides: map[string]string{
			"NODE_ENV": "development",
			"DEBUG":    "telehealth:*",
		},
	},
	{
		Name:             config.ComponentJitsi,
		SourceName:       "docker-jitsi-meet",
		EnvTemplateChain: defaultEnvChain,
		Exclude:          slices.Concat(defaultExclude, []string{".jitsi-meet-cfg"}),
		RequiredEnv:      []string{"CONFIG", "HTTP_PORT", "HTTPS_PORT", "JVB_PORT", "PUBLIC_URL", "ENABLE_LETSENCRYPT"},
		DevModeOverrides: map[string]string{
			"ENABLE_HTTP_REDIRECT": "0",
		},
		Blob: &ConfigBlob{Service: "web", Path: "/config"},
	},
	{
		Name:             config.ComponentCMS,
		SourceName:       "wordpress",
		EnvTemplateChain: defaultEnvChain,
		Exclude:          slices.Concat(defaultExclude, []string{"uploads"}),
		RequiredEnv:      []string{"WORDPRESS_PORT", "WORDPRESS_URL"},
		DevModeOverrides: map[string]string{
			"WORDPRESS_DEBUG": "1",
		},
		Optional: true,
	},
}

// Catalog returns the component specs in bring-up order.
func Catalog() []Spec {
	out := make([]Spec, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the spec for a component.
func Lookup(name config.Component) (Spec, bool) {
	for _, s := range catalog {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// ParseNames converts component names into specs, keeping catalog order.
// An empty list selects every component.
func ParseNames(names []string) ([]Spec, error) {
	if len(names) == 0 {
		return Catalog(), nil
	}
	want := make(map[config.Component]bool, len(names))
	for _, n := range names {
		if _, ok := Lookup(config.Component(n)); !ok {
			return nil, fmt.Errorf("unknown component %q", n)
		}
		want[config.Component(n)] = true
	}
	var out []Spec
	for _, s := range catalog {
		if want[s.Name] {
			out = append(out, s)
		}
	}
	return out, nil
}

// TemplateChain expands the env template chain for an environment kind.
func (s Spec) TemplateChain(kind config.Kind) []string {
	out := make([]string, 0, len(s.EnvTemplateChain))
	for _, t := range s.EnvTemplateChain {
		out = append(out, strings.ReplaceAll(t, "{kind}", string(kind)))
	}
	return out
}

// Compose selection tiers, highest priority first.
const (
	TierEnvironment = "environment"
	TierMode        = "mode"
	TierDefault     = "default"
)

// ComposeCandidate is one position in a compose selection chain.
type ComposeCandidate struct {
	Path string
	Tier string
}

// ComposeChain returns compose file candidates relative to the component
// directory: the environment-named overlay, then the dev or prod overlay,
// then the bare default. The official variant's upstream directory is
// searched ahead of the root within each tier.
func (s Spec) ComposeChain(kind config.Kind, devMode, official bool) []ComposeCandidate {
	mode := "prod"
	if devMode {
		mode = "dev"
	}

	dirs := []string{""}
	if official {
		if d, ok := s.OfficialComposeDirs[mode]; ok {
			dirs = []string{d, ""}
		}
	}

	tiers := []struct {
		tier string
		file string
	}{
		{TierEnvironment, "docker-compose." + string(kind) + ".yml"},
		{TierMode, "docker-compose." + mode + ".yml"},
		{TierDefault, "docker-compose.yml"},
	}

	var chain []ComposeCandidate
	seen := make(map[string]bool)
	for _, t := range tiers {
		for _, d := range dirs {
			p := t.file
			if d != "" {
				p = d + "/" + t.file
			}
			// In dev the environment and mode overlays share a name.
			if seen[p] {
				continue
			}
			seen[p] = true
			chain = append(chain, ComposeCandidate{Path: p, Tier: t.tier})
		}
	}
	return chain
}

// EnvRule sets one key in a component's env file.
type EnvRule struct {
	Key   string
	Value string
}

// EnvRules returns the ordered substitutions for a component's env file.
func (s Spec) EnvRules(cfg *config.EnvironmentConfig, devMode bool) []EnvRule {
	port := func(role config.PortRole) string {
		return strconv.Itoa(cfg.Port(s.Name, role))
	}
	https := func(route config.Route) string {
		return "https://" + cfg.Domains[route]
	}

	var rules []EnvRule
	switch s.Name {
	case config.ComponentProxy:
		rules = []EnvRule{
			{"HTTP_PORT", port(config.PortHTTP)},
			{"HTTPS_PORT", port(config.PortHTTPS)},
			{"ADMIN_PORT", port(config.PortAdmin)},
			{"PROXY_NETWORK", cfg.Networks.Proxy},
		}
	case config.ComponentEMR:
		rules = []EnvRule{
			{"OE_DOMAIN", cfg.Domains[config.RouteEMR]},
			{"HTTP_PORT", port(config.PortHTTP)},
			{"HTTPS_PORT", port(config.PortHTTPS)},
			{"OPENEMR_ENV", string(cfg.Kind)},
			{"OPENEMR_SETTING_site_addr_oath", https(config.RouteEMR)},
		}
	case config.ComponentTelehealth:
		rules = []EnvRule{
			{"PORT", port(config.PortHTTP)},
			{"APP_URL", https(config.RouteTelehealth)},
			{"EMR_URL", https(config.RouteEMR)},
			{"JITSI_DOMAIN", cfg.Domains[config.RouteVC]},
			{"NODE_ENV", "production"},
		}
	case config.ComponentJitsi:
		rules = []EnvRule{
			{"CONFIG", "./.jitsi-meet-cfg"},
			{"HTTP_PORT", port(config.PortHTTP)},
			{"HTTPS_PORT", port(config.PortHTTPS)},
			{"JVB_PORT", port(config.PortJVB)},
			{"PUBLIC_URL", https(config.RouteVC)},
			{"XMPP_BOSH_URL_BASE", https(config.RouteVCBackend)},
			{"ENABLE_LETSENCRYPT", "0"},
		}
	case config.ComponentCMS:
		rules = []EnvRule{
			{"WORDPRESS_PORT", port(config.PortHTTP)},
			{"WORDPRESS_URL", https(config.RouteCMS)},
		}
	}

	if devMode {
		for _, k := range slices.Sorted(maps.Keys(s.DevModeOverrides)) {
			rules = append(rules, EnvRule{k, s.DevModeOverrides[k]})
		}
	}
	return rules
}
