package component

import (
	"strings"

	"github.com/medstack-ops/envctl/internal/config"
)

// TopologyEntry names a container and the networks it must join.
type TopologyEntry struct {
	Component config.Component
	Service   string

	// ContainerNamePattern is the fallback name match used when no
	// container carries the labels. "{compose}" expands to the compose
	// project of the component.
	ContainerNamePattern string

	RequiredNetworks []config.NetworkRole
}

// NamePattern expands the container name pattern for an environment.
func (e TopologyEntry) NamePattern(cfg *config.EnvironmentConfig) string {
	return strings.ReplaceAll(e.ContainerNamePattern, "{compose}", cfg.ComposeProject(e.Component))
}

var topology = []TopologyEntry{
	{config.ComponentProxy, "app", "{compose}-app", []config.NetworkRole{config.NetworkProxy}},
	{config.ComponentEMR, "openemr", "{compose}-openemr", []config.NetworkRole{config.NetworkProxy, config.NetworkShared}},
	{config.ComponentTelehealth, "app", "{compose}-app", []config.NetworkRole{config.NetworkProxy, config.NetworkFrontend, config.NetworkShared}},
	{config.ComponentJitsi, "web", "{compose}-web", []config.NetworkRole{config.NetworkProxy, config.NetworkFrontend}},
	{config.ComponentJitsi, "prosody", "{compose}-prosody", []config.NetworkRole{config.NetworkProxy, config.NetworkFrontend}},
	{config.ComponentCMS, "wordpress", "{compose}-wordpress", []config.NetworkRole{config.NetworkProxy}},
}

// Topology returns the network wiring table.
func Topology() []TopologyEntry {
	out := make([]TopologyEntry, len(topology))
	copy(out, topology)
	return out
}

// RouteSpec maps a public route to the container serving it.
type RouteSpec struct {
	Route       config.Route
	Component   config.Component
	Service     string
	ForwardPort int
	Websocket   bool
}

var routes = []RouteSpec{
	{config.RouteEMR, config.ComponentEMR, "openemr", 80, false},
	{config.RouteTelehealth, config.ComponentTelehealth, "app", 3000, true},
	{config.RouteVC, config.ComponentJitsi, "web", 80, true},
	{config.RouteVCBackend, config.ComponentJitsi, "prosody", 5280, true},
	{config.RouteCMS, config.ComponentCMS, "wordpress", 80, false},
}

// Routes returns the proxy route table.
func Routes() []RouteSpec {
	out := make([]RouteSpec, len(routes))
	copy(out, routes)
	return out
}

// TopologyFor returns the entry for a component service.
func TopologyFor(comp config.Component, service string) (TopologyEntry, bool) {
	for _, e := range topology {
		if e.Component == comp && e.Service == service {
			return e, true
		}
	}
	return TopologyEntry{}, false
}
