package health

import (
	"context"
	"net/http"
	"time"

	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/runtime"
)

// Status summarizes a component's containers.
type Status string

const (
	StatusRunning Status = "running"
	StatusPartial Status = "partial"
	StatusStopped Status = "stopped"
	StatusAbsent  Status = "absent"

	// ControlPlaneTimeout bounds the control-plane reachability probe.
	ControlPlaneTimeout = 3 * time.Second
)

// ComponentHealth is the state of one component.
type ComponentHealth struct {
	Component  config.Component
	Status     Status
	Containers []runtime.Container
}

// Running returns how many containers are running.
func (c ComponentHealth) Running() int {
	n := 0
	for _, ctr := range c.Containers {
		if ctr.Running() {
			n++
		}
	}
	return n
}

// NetworkHealth records whether a network exists.
type NetworkHealth struct {
	Name   string
	Exists bool
}

// Report is the state of an environment.
type Report struct {
	Environment string
	Components  []ComponentHealth
	Networks    []NetworkHealth
	// Err is set when the runtime could not be queried.
	Err error
}

// Summarize derives a status from a container list.
func Summarize(containers []runtime.Container) Status {
	if len(containers) == 0 {
		return StatusAbsent
	}
	running := 0
	for _, c := range containers {
		if c.Running() {
			running++
		}
	}
	switch running {
	case len(containers):
		return StatusRunning
	case 0:
		return StatusStopped
	default:
		return StatusPartial
	}
}

// Overall returns the environment status: absent when nothing exists,
// running when every present component is running, otherwise partial or
// stopped.
func (r *Report) Overall() Status {
	var all []runtime.Container
	for _, c := range r.Components {
		all = append(all, c.Containers...)
	}
	return Summarize(all)
}

// Check lists every component's containers by label. Containers created
// before labels were attached are found by their compose project.
func Check(ctx context.Context, rt runtime.Runtime, cfg *config.EnvironmentConfig) *Report {
	report := &Report{Environment: cfg.Slug()}

	for _, comp := range config.Components {
		containers, err := rt.ListContainers(ctx, runtime.Filter{Labels: cfg.ComponentLabels(comp), All: true})
		if err == nil && len(containers) == 0 {
			containers, err = rt.ListContainers(ctx, runtime.Filter{
				Labels: map[string]string{config.LabelComposeProject: cfg.ComposeProject(comp)},
				All:    true,
			})
		}
		if err != nil {
			report.Err = err
			return report
		}
		report.Components = append(report.Components, ComponentHealth{
			Component:  comp,
			Status:     Summarize(containers),
			Containers: containers,
		})
	}

	// Matched by name: networks created by hand carry no labels.
	networks, err := rt.ListNetworks(ctx, nil)
	if err != nil {
		report.Err = err
		return report
	}
	have := make(map[string]bool, len(networks))
	for _, n := range networks {
		have[n.Name] = true
	}
	for _, name := range cfg.Networks.All() {
		report.Networks = append(report.Networks, NetworkHealth{Name: name, Exists: have[name]})
	}
	return report
}

// CheckControlPlane reports whether the proxy API answers at baseURL.
// Any HTTP response counts; only transport failures mean unreachable.
func CheckControlPlane(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, ControlPlaneTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
