package network

import (
	"context"
	stderrors "errors"

	"github.com/medstack-ops/envctl/internal/component"
	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/errors"
	"github.com/medstack-ops/envctl/internal/logging"
	"github.com/medstack-ops/envctl/internal/runtime"
)

// LabelRole marks which of the three networks a network is.
const LabelRole = "io.envctl.network"

// Manager wires environments on a container runtime.
type Manager struct {
	rt runtime.Runtime
}

// NewManager creates a Manager.
func NewManager(rt runtime.Runtime) *Manager {
	return &Manager{rt: rt}
}

var roles = []config.NetworkRole{config.NetworkProxy, config.NetworkFrontend, config.NetworkShared}

// EnsureNetworks creates the environment's networks that do not exist yet.
// Failures are collected so one bad network does not block the others.
func (m *Manager) EnsureNetworks(ctx context.Context, cfg *config.EnvironmentConfig) error {
	var errs []error
	for _, role := range roles {
		name := cfg.Networks.Name(role)
		labels := cfg.Labels()
		labels[LabelRole] = string(role)

		err := m.rt.CreateNetwork(ctx, name, labels)
		switch {
		case err == nil:
			logging.Info("created network", "network", name)
		case stderrors.Is(err, runtime.ErrAlreadyExists):
			logging.Debug("network already exists", "network", name)
		default:
			errs = append(errs, errors.NetworkOpError("create", name, err))
		}
	}
	return errors.Join(errs...)
}

// RemoveNetworks removes the environment's networks. Networks that are
// already gone are not reported.
func (m *Manager) RemoveNetworks(ctx context.Context, cfg *config.EnvironmentConfig) []error {
	var errs []error
	for _, name := range cfg.Networks.All() {
		err := m.rt.RemoveNetwork(ctx, name)
		switch {
		case err == nil:
			logging.Info("removed network", "network", name)
		case stderrors.Is(err, runtime.ErrNotFound):
			logging.Debug("network already absent", "network", name)
		default:
			errs = append(errs, errors.NetworkOpError("remove", name, err))
		}
	}
	return errs
}

// FindContainer returns the running container of a component service. The
// envctl labels are tried first, then the first container whose name
// starts with pattern and whose labels do not name another environment.
func (m *Manager) FindContainer(ctx context.Context, cfg *config.EnvironmentConfig, comp config.Component, service, pattern string) (runtime.Container, bool, error) {
	labels := cfg.ComponentLabels(comp)
	labels[config.LabelService] = service

	found, err := m.rt.ListContainers(ctx, runtime.Filter{Labels: labels})
	if err != nil {
		return runtime.Container{}, false, err
	}
	if len(found) > 0 {
		return found[0], true, nil
	}

	if pattern == "" {
		return runtime.Container{}, false, nil
	}
	found, err = m.rt.ListContainers(ctx, runtime.Filter{NamePrefix: pattern})
	if err != nil {
		return runtime.Container{}, false, err
	}
	for _, ctr := range found {
		if !cfg.Claims(comp, ctr.Labels) {
			continue
		}
		logging.Debug("container matched by name", "component", comp, "service", service, "container", ctr.Name)
		return ctr, true, nil
	}
	return runtime.Container{}, false, nil
}

// Connection is one container attached to one network.
type Connection struct {
	Component config.Component
	Service   string
	Container string
	Network   string
	// Existing is set when the container was attached already.
	Existing bool
}

// Result summarizes ConnectContainers.
type Result struct {
	Connections []Connection
	// Missing lists "component/service" entries with no running container.
	Missing []string
	Errors  []error
}

// OK reports whether every attempted connection succeeded.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// ConnectContainers attaches each running service in the topology to its
// required networks.
func (m *Manager) ConnectContainers(ctx context.Context, cfg *config.EnvironmentConfig) Result {
	var result Result
	for _, entry := range component.Topology() {
		id := string(entry.Component) + "/" + entry.Service
		ctr, ok, err := m.FindContainer(ctx, cfg, entry.Component, entry.Service, entry.NamePattern(cfg))
		if err != nil {
			result.Errors = append(result.Errors, errors.RuntimeCommandError("list containers for "+id, err))
			continue
		}
		if !ok {
			logging.Warn("no running container, skipping network wiring", "service", id)
			result.Missing = append(result.Missing, id)
			continue
		}

		for _, role := range entry.RequiredNetworks {
			net := cfg.Networks.Name(role)
			conn := Connection{Component: entry.Component, Service: entry.Service, Container: ctr.Name, Network: net}

			err := m.rt.ConnectNetwork(ctx, net, ctr.ID)
			switch {
			case err == nil:
				logging.Debug("connected container", "container", ctr.Name, "network", net)
			case stderrors.Is(err, runtime.ErrAlreadyConnected):
				conn.Existing = true
			default:
				result.Errors = append(result.Errors, errors.NetworkOpError("connect "+ctr.Name+" to", net, err))
				continue
			}
			result.Connections = append(result.Connections, conn)
		}
	}
	return result
}
