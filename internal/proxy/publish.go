package proxy

import (
	"context"

	"github.com/medstack-ops/envctl/internal/component"
	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/runtime"
)

// ContainerFinder locates the running container of a component service.
type ContainerFinder interface {
	FindContainer(ctx context.Context, cfg *config.EnvironmentConfig, comp config.Component, service, pattern string) (runtime.Container, bool, error)
}

// RouteResult is the outcome of publishing one route.
type RouteResult struct {
	Route   config.Route
	Domain  string
	Target  string
	Created bool
	// Skipped is set when no container serves the route.
	Skipped bool
	Err     error
}

// PublishRoutes creates a proxy host for every route whose container is
// running. Routes are independent: one failure does not stop the rest.
func PublishRoutes(ctx context.Context, c *Client, token string, cfg *config.EnvironmentConfig, finder ContainerFinder) []RouteResult {
	var results []RouteResult
	for _, rs := range component.Routes() {
		res := RouteResult{Route: rs.Route, Domain: cfg.Domains[rs.Route]}
		if res.Domain == "" {
			continue
		}

		pattern := ""
		if entry, ok := component.TopologyFor(rs.Component, rs.Service); ok {
			pattern = entry.NamePattern(cfg)
		}
		ctr, ok, err := finder.FindContainer(ctx, cfg, rs.Component, rs.Service, pattern)
		if err != nil {
			res.Err = err
			results = append(results, res)
			continue
		}
		if !ok {
			c.logger.Warn("no running container for route, skipping", "route", rs.Route, "domain", res.Domain)
			res.Skipped = true
			results = append(results, res)
			continue
		}

		rec := Record{
			Domain:      res.Domain,
			ForwardHost: ctr.Name,
			ForwardPort: rs.ForwardPort,
			Websocket:   rs.Websocket,
		}
		res.Target = rec.ForwardHost
		res.Created, res.Err = c.CreateProxyHostIfAbsent(ctx, token, rec)
		results = append(results, res)
	}
	return results
}

// Failed returns the results that carry an error.
func Failed(results []RouteResult) []RouteResult {
	var out []RouteResult
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
