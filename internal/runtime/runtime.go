// Package runtime defines the container runtime interface used by envctl.
// The abstraction covers the engine resources an environment owns
// (networks, containers and volumes) and compose stacks, and allows
// CLI, SDK and mock back ends.
package runtime

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
)

// Sentinel errors returned by every back end. Callers treat
// ErrAlreadyExists and ErrAlreadyConnected as success.
var (
	ErrAlreadyExists    = errors.New("already exists")
	ErrAlreadyConnected = errors.New("already connected")
	ErrNotFound         = errors.New("not found")
)

// ContainerState is the engine-reported state of a container.
type ContainerState string

const (
	StateRunning    ContainerState = "running"
	StateExited     ContainerState = "exited"
	StateCreated    ContainerState = "created"
	StatePaused     ContainerState = "paused"
	StateRestarting ContainerState = "restarting"
	StateUnknown    ContainerState = "unknown"
)

// ParseState normalizes an engine state string.
func ParseState(s string) ContainerState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "running", "up":
		return StateRunning
	case "exited", "stopped", "dead":
		return StateExited
	case "created", "configured":
		return StateCreated
	case "paused":
		return StatePaused
	case "restarting":
		return StateRestarting
	}
	return StateUnknown
}

// Container describes a container as listed by the engine.
type Container struct {
	ID       string
	Name     string
	State    ContainerState
	Labels   map[string]string
	Networks []string
	// Mounts lists host source paths. Nil when the back end cannot report them.
	Mounts []string
}

// Running reports whether the container is running.
func (c Container) Running() bool {
	return c.State == StateRunning
}

// Network describes an engine network.
type Network struct {
	ID     string
	Name   string
	Labels map[string]string
}

// Volume describes an engine volume.
type Volume struct {
	Name   string
	Labels map[string]string
}

// Filter narrows a container listing. Every label must match. NamePrefix
// is matched against the container name. All includes stopped containers.
type Filter struct {
	Labels     map[string]string
	NamePrefix string
	All        bool
}

// Matches reports whether c satisfies the filter.
func (f Filter) Matches(c Container) bool {
	if !f.All && !c.Running() {
		return false
	}
	if f.NamePrefix != "" && !strings.HasPrefix(c.Name, f.NamePrefix) {
		return false
	}
	return labelsMatch(c.Labels, f.Labels)
}

func labelsMatch(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

// labelArgs renders labels as sorted "key=value" pairs.
func labelArgs(labels map[string]string) []string {
	out := make([]string, 0, len(labels))
	for k, v := range labels {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Runtime is the interface container back ends implement.
type Runtime interface {
	// Name returns the back end identifier (e.g. "docker", "podman", "sdk").
	Name() string

	// Ping checks that the engine is reachable.
	Ping(ctx context.Context) error

	// CreateNetwork creates a labelled network. ErrAlreadyExists when present.
	CreateNetwork(ctx context.Context, name string, labels map[string]string) error

	// ListNetworks returns networks carrying all the given labels.
	ListNetworks(ctx context.Context, labels map[string]string) ([]Network, error)

	// RemoveNetwork removes a network. ErrNotFound when absent.
	RemoveNetwork(ctx context.Context, name string) error

	// ConnectNetwork attaches a container to a network.
	// ErrAlreadyConnected when it is attached already.
	ConnectNetwork(ctx context.Context, network, container string) error

	// ListContainers returns containers matching the filter, in engine order.
	ListContainers(ctx context.Context, filter Filter) ([]Container, error)

	// StopContainer stops a container.
	StopContainer(ctx context.Context, id string) error

	// RemoveContainer force-removes a container. ErrNotFound when absent.
	RemoveContainer(ctx context.Context, id string) error

	// ListVolumes returns volumes carrying all the given labels.
	ListVolumes(ctx context.Context, labels map[string]string) ([]Volume, error)

	// RemoveVolume removes a volume. ErrNotFound when absent.
	RemoveVolume(ctx context.Context, name string) error

	// CopyFrom writes a tar stream of srcPath inside the container to w.
	CopyFrom(ctx context.Context, container, srcPath string, w io.Writer) error

	// CopyTo extracts the tar stream r into dstPath inside the container.
	CopyTo(ctx context.Context, container, dstPath string, r io.Reader) error
}

// ComposeProject identifies a compose stack on disk.
type ComposeProject struct {
	Name    string
	Dir     string
	Files   []string
	EnvFile string
}

// Composer starts and stops compose stacks.
type Composer interface {
	// Up starts the stack detached.
	Up(ctx context.Context, p ComposeProject) error

	// Down stops and removes the stack, with its volumes when requested.
	Down(ctx context.Context, p ComposeProject, volumes bool) error
}
