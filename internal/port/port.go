package port

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/system"
)

// DialTimeout bounds each listening probe.
const DialTimeout = 500 * time.Millisecond

// Binding is one host port published by an environment.
type Binding struct {
	Environment string
	Component   config.Component
	Role        config.PortRole
	Port        int
	// InUse is set by Probe when something accepts connections on the port.
	InUse bool
}

func (b Binding) String() string {
	return fmt.Sprintf("%s %s/%s:%d", b.Environment, b.Component, b.Role, b.Port)
}

// Bindings returns the host ports of an environment in component order.
func Bindings(cfg *config.EnvironmentConfig) []Binding {
	var out []Binding
	for _, comp := range config.Components {
		roles := make([]config.PortRole, 0, len(cfg.ComponentPorts[comp]))
		for r := range cfg.ComponentPorts[comp] {
			roles = append(roles, r)
		}
		sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
		for _, r := range roles {
			out = append(out, Binding{
				Environment: cfg.Slug(),
				Component:   comp,
				Role:        r,
				Port:        cfg.ComponentPorts[comp][r],
			})
		}
	}
	return out
}

// Conflict is a host port claimed by two environments.
type Conflict struct {
	Binding Binding
	Other   Binding
}

func (c Conflict) String() string {
	return fmt.Sprintf("port %d of %s/%s is also used by %s", c.Binding.Port, c.Binding.Component, c.Binding.Role, c.Other)
}

// Conflicts finds the ports of cfg that other environments publish too.
// Environments sharing cfg's slug are ignored.
func Conflicts(cfg *config.EnvironmentConfig, existing []*config.EnvironmentConfig) []Conflict {
	used := make(map[int]Binding)
	for _, other := range existing {
		if other.Slug() == cfg.Slug() {
			continue
		}
		for _, b := range Bindings(other) {
			if _, ok := used[b.Port]; !ok {
				used[b.Port] = b
			}
		}
	}

	var out []Conflict
	for _, b := range Bindings(cfg) {
		if other, ok := used[b.Port]; ok {
			out = append(out, Conflict{Binding: b, Other: other})
		}
	}
	return out
}

// Existing resolves the environments materialized under dir. Directory
// names that do not parse as "{project}-{kind}" are skipped.
func Existing(fsys system.FileSystem, dir, domainBase string) ([]*config.EnvironmentConfig, error) {
	if !fsys.IsDir(dir) {
		return nil, nil
	}
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list environments: %w", err)
	}

	var out []*config.EnvironmentConfig
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		i := strings.LastIndex(e.Name(), "-")
		if i <= 0 {
			continue
		}
		cfg, err := config.Resolve(e.Name()[:i], e.Name()[i+1:], domainBase)
		if err != nil {
			continue
		}
		out = append(out, cfg)
	}
	return out, nil
}

// DialFunc connects to a TCP address.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Probe marks the bindings that accept connections on the loopback
// address. A nil dial uses net.Dialer.
func Probe(ctx context.Context, bindings []Binding, dial DialFunc) []Binding {
	if dial == nil {
		d := &net.Dialer{}
		dial = d.DialContext
	}
	out := make([]Binding, len(bindings))
	for i, b := range bindings {
		dctx, cancel := context.WithTimeout(ctx, DialTimeout)
		conn, err := dial(dctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(b.Port)))
		cancel()
		if err == nil {
			conn.Close()
			b.InUse = true
		}
		out[i] = b
	}
	return out
}
