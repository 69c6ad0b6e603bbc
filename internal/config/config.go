package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/medstack-ops/envctl/internal/errors"
)

// projectNameRegex validates project identifiers.
// Names must start with a lowercase letter or digit, followed by lowercase letters, digits or hyphens.
// They become part of container, network and DNS names, so the limit is kept well under 63.
var projectNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,31}$`)

// domainBaseRegex validates a DNS name such as "example.com" or "localhost".
var domainBaseRegex = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)*[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Kind is the environment kind.
type Kind string

const (
	KindDev        Kind = "dev"
	KindStaging    Kind = "staging"
	KindTest       Kind = "test"
	KindProduction Kind = "production"
)

// Kinds lists the recognized environment kinds.
var Kinds = []Kind{KindDev, KindStaging, KindTest, KindProduction}

// ParseKind returns the Kind named by s.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown environment %q (use dev, staging, test, or production)", s)
}

// Component identifies a deployable unit of the platform.
type Component string

const (
	ComponentProxy      Component = "proxy"
	ComponentEMR        Component = "openemr"
	ComponentTelehealth Component = "telehealth"
	ComponentJitsi      Component = "jitsi"
	ComponentCMS        Component = "wordpress"
)

// Components lists every component in bring-up order. The proxy comes
// first so routes can be published once the others are running.
var Components = []Component{ComponentProxy, ComponentEMR, ComponentTelehealth, ComponentJitsi, ComponentCMS}

// PortRole names a published port of a component.
type PortRole string

const (
	PortHTTP  PortRole = "http"
	PortHTTPS PortRole = "https"
	PortAdmin PortRole = "admin"
	PortJVB   PortRole = "jvb"
)

// Route names a public hostname served through the reverse proxy.
type Route string

const (
	RouteEMR        Route = "emr"
	RouteTelehealth Route = "telehealth"
	RouteVC         Route = "vc"
	RouteVCBackend  Route = "vcbknd"
	RouteCMS        Route = "cms"
)

// Variant selects between upstream official images and custom builds.
type Variant string

const (
	VariantCustom   Variant = "custom"
	VariantOfficial Variant = "official"
)

// OfficialProject is the project identifier that selects the official variant.
const OfficialProject = "official"

// NetworkRole names one of the three environment networks.
type NetworkRole string

const (
	NetworkProxy    NetworkRole = "proxy"
	NetworkFrontend NetworkRole = "frontend"
	NetworkShared   NetworkRole = "shared"
)

// Networks holds the runtime network names of an environment.
type Networks struct {
	Proxy    string `json:"proxy"`
	Frontend string `json:"frontend"`
	Shared   string `json:"shared"`
}

// Name returns the network name for a role.
func (n Networks) Name(role NetworkRole) string {
	switch role {
	case NetworkProxy:
		return n.Proxy
	case NetworkFrontend:
		return n.Frontend
	case NetworkShared:
		return n.Shared
	}
	return ""
}

// All returns the network names in creation order.
func (n Networks) All() []string {
	return []string{n.Proxy, n.Frontend, n.Shared}
}

// EnvironmentConfig is the resolved configuration of one environment.
// It is produced by Resolve and never mutated afterwards.
type EnvironmentConfig struct {
	Project        string                         `json:"project"`
	Kind           Kind                           `json:"kind"`
	DomainBase     string                         `json:"domainBase"`
	Variant        Variant                        `json:"variant"`
	ComponentPorts map[Component]map[PortRole]int `json:"componentPorts"`
	FolderNames    map[Component]string           `json:"folderNames"`
	Networks       Networks                       `json:"networks"`
	Domains        map[Route]string               `json:"domains"`
}

// basePorts are the production host ports. Other kinds add kindPortOffset.
var basePorts = map[Component]map[PortRole]int{
	ComponentProxy:      {PortHTTP: 80, PortHTTPS: 443, PortAdmin: 81},
	ComponentTelehealth: {PortHTTP: 3000},
	ComponentJitsi:      {PortHTTP: 8000, PortHTTPS: 8443, PortJVB: 10000},
	ComponentCMS:        {PortHTTP: 8200},
}

var emrPorts = map[Variant]map[PortRole]int{
	VariantOfficial: {PortHTTP: 8300, PortHTTPS: 9300},
	VariantCustom:   {PortHTTP: 8080, PortHTTPS: 9443},
}

var kindPortOffset = map[Kind]int{
	KindProduction: 0,
	KindStaging:    1000,
	KindTest:       2000,
	KindDev:        3000,
}

var folderNames = map[Variant]map[Component]string{
	VariantCustom: {
		ComponentProxy:      "nginx-proxy-manager",
		ComponentEMR:        "openemr",
		ComponentTelehealth: "telehealth",
		ComponentJitsi:      "jitsi-docker",
		ComponentCMS:        "wordpress",
	},
	VariantOfficial: {
		ComponentProxy:      "nginx-proxy-manager",
		ComponentEMR:        "openemr-official",
		ComponentTelehealth: "telehealth",
		ComponentJitsi:      "jitsi-docker",
		ComponentCMS:        "wordpress",
	},
}

// routePrefixes are the subdomain labels in front of the base domain.
// An empty prefix means the base domain itself.
var routePrefixes = map[Route]string{
	RouteEMR:        "",
	RouteTelehealth: "telehealth",
	RouteVC:         "vc",
	RouteVCBackend:  "vcbknd",
	RouteCMS:        "www",
}

// ValidateProjectName checks if a project identifier is valid.
func ValidateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("project name cannot be empty")
	}
	if !projectNameRegex.MatchString(name) {
		return fmt.Errorf("invalid project name %q: must start with a lowercase letter or digit, contain only lowercase letters, digits, or hyphens, and be at most 32 characters", name)
	}
	return nil
}

// ValidateDomainBase checks if a domain base is a valid lowercase DNS name.
func ValidateDomainBase(domain string) error {
	if domain == "" {
		return fmt.Errorf("domain base cannot be empty")
	}
	if len(domain) > 200 || !domainBaseRegex.MatchString(domain) {
		return fmt.Errorf("invalid domain base %q", domain)
	}
	return nil
}

// VariantFor returns the variant selected by a project identifier.
func VariantFor(project string) Variant {
	if project == OfficialProject {
		return VariantOfficial
	}
	return VariantCustom
}

// BaseDomain returns the primary hostname of an environment.
func BaseDomain(project string, kind Kind, domainBase string) string {
	if kind == KindProduction {
		return project + "." + domainBase
	}
	return string(kind) + "-" + project + "." + domainBase
}

// RouteDomain returns the hostname of a route. The EMR route uses the
// base domain; the others put a label in front of "{project}.{domainBase}",
// with the kind appended outside production, e.g. "vc-staging.".
func RouteDomain(route Route, project string, kind Kind, domainBase string) string {
	prefix := routePrefixes[route]
	if prefix == "" {
		return BaseDomain(project, kind, domainBase)
	}
	if kind == KindProduction {
		return prefix + "." + project + "." + domainBase
	}
	return prefix + "-" + string(kind) + "." + project + "." + domainBase
}

// Resolve derives the configuration of an environment. The result depends
// only on the three inputs.
func Resolve(project, kind, domainBase string) (*EnvironmentConfig, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, errors.ConfigError("invalid environment", err)
	}
	if err := ValidateProjectName(project); err != nil {
		return nil, errors.ConfigError("invalid project", err)
	}
	domainBase = strings.TrimSuffix(strings.ToLower(domainBase), ".")
	if err := ValidateDomainBase(domainBase); err != nil {
		return nil, errors.ConfigError("invalid domain base", err)
	}

	variant := VariantFor(project)
	offset := kindPortOffset[k]

	ports := make(map[Component]map[PortRole]int, len(Components))
	for c, roles := range basePorts {
		ports[c] = offsetPorts(roles, offset)
	}
	ports[ComponentEMR] = offsetPorts(emrPorts[variant], offset)

	folders := make(map[Component]string, len(Components))
	for c, name := range folderNames[variant] {
		folders[c] = name
	}

	domains := make(map[Route]string, len(routePrefixes))
	for route := range routePrefixes {
		domains[route] = RouteDomain(route, project, k, domainBase)
	}

	slug := project + "-" + string(k)
	cfg := &EnvironmentConfig{
		Project:        project,
		Kind:           k,
		DomainBase:     domainBase,
		Variant:        variant,
		ComponentPorts: ports,
		FolderNames:    folders,
		Networks: Networks{
			Proxy:    slug + "-proxy",
			Frontend: slug + "-frontend",
			Shared:   slug + "-shared",
		},
		Domains: domains,
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigError("inconsistent environment tables", err)
	}
	return cfg, nil
}

func offsetPorts(roles map[PortRole]int, offset int) map[PortRole]int {
	out := make(map[PortRole]int, len(roles))
	for role, port := range roles {
		out[role] = port + offset
	}
	return out
}

// Validate checks that folder names, domains and host ports are unique.
func (c *EnvironmentConfig) Validate() error {
	if err := uniqueValues("folder name", c.FolderNames); err != nil {
		return err
	}
	if err := uniqueValues("domain", c.Domains); err != nil {
		return err
	}

	seen := make(map[int]string)
	for _, comp := range Components {
		for _, role := range sortedRoles(c.ComponentPorts[comp]) {
			port := c.ComponentPorts[comp][role]
			owner := string(comp) + "/" + string(role)
			if prev, ok := seen[port]; ok {
				return fmt.Errorf("port %d used by both %s and %s", port, prev, owner)
			}
			seen[port] = owner
		}
	}
	return nil
}

func uniqueValues[K ~string](what string, m map[K]string) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	seen := make(map[string]string, len(m))
	for _, k := range keys {
		v := m[K(k)]
		if prev, ok := seen[v]; ok {
			return fmt.Errorf("%s %q used by both %s and %s", what, v, prev, k)
		}
		seen[v] = k
	}
	return nil
}

func sortedRoles(m map[PortRole]int) []PortRole {
	roles := make([]PortRole, 0, len(m))
	for r := range m {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// Slug returns "{project}-{kind}", the prefix of every runtime resource.
func (c *EnvironmentConfig) Slug() string {
	return c.Project + "-" + string(c.Kind)
}

// ComposeProject returns the compose project name of a component.
func (c *EnvironmentConfig) ComposeProject(comp Component) string {
	return c.Slug() + "-" + string(comp)
}

// Port returns a host port, or 0 when the component does not publish the role.
func (c *EnvironmentConfig) Port(comp Component, role PortRole) int {
	return c.ComponentPorts[comp][role]
}

// IsOfficial reports whether the official variant is selected.
func (c *EnvironmentConfig) IsOfficial() bool {
	return c.Variant == VariantOfficial
}

// Label keys attached to every resource created for an environment.
const (
	LabelProject     = "io.envctl.project"
	LabelEnvironment = "io.envctl.environment"
	LabelComponent   = "io.envctl.component"
	LabelService     = "com.docker.compose.service"

	// LabelComposeProject is set by compose on containers, networks and volumes.
	LabelComposeProject = "com.docker.compose.project"
)

// Labels returns the labels identifying the environment's resources.
func (c *EnvironmentConfig) Labels() map[string]string {
	return map[string]string{
		LabelProject:     c.Project,
		LabelEnvironment: string(c.Kind),
	}
}

// ComponentLabels returns Labels plus the component label.
func (c *EnvironmentConfig) ComponentLabels(comp Component) map[string]string {
	labels := c.Labels()
	labels[LabelComponent] = string(comp)
	return labels
}

// Claims reports whether a container matched by name may belong to comp of
// this environment. Unlabelled containers are claimed. Any envctl or
// compose project label naming something else disowns the container.
func (c *EnvironmentConfig) Claims(comp Component, labels map[string]string) bool {
	want := map[string]string{
		LabelProject:        c.Project,
		LabelEnvironment:    string(c.Kind),
		LabelComponent:      string(comp),
		LabelComposeProject: c.ComposeProject(comp),
	}
	for key, value := range want {
		if got, ok := labels[key]; ok && got != value {
			return false
		}
	}
	return true
}
