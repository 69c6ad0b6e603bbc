package lifecycle

import (
	"fmt"
	"time"

	"github.com/medstack-ops/envctl/internal/backup"
	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/logging"
)

// StepStatus is the outcome of one step.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepSkipped StepStatus = "skipped"
	StepWarning StepStatus = "warning"
	StepFailed  StepStatus = "failed"
)

// Step names.
const (
	StepState      = "state"
	StepPorts      = "ports"
	StepReconcile  = "reconcile"
	StepSnapshot   = "snapshot"
	StepStop       = "stop"
	StepContainers = "containers"
	StepNetworks   = "networks"
	StepVolumes    = "volumes"
	StepRemoveDir  = "remove-directory"
	StepSource     = "source"
	StepSync       = "sync"
	StepEnvFile    = "env-file"
	StepCompose    = "compose"
	StepStart      = "start"
	StepWait       = "wait"
	StepConnect    = "connect"
	StepProxyLogin = "proxy-login"
	StepRoute      = "route"
	StepRestore    = "restore"
)

// Step is one recorded action.
type Step struct {
	Name      string
	Component config.Component
	Status    StepStatus
	Detail    string
	Err       error
}

// Report is the record of one run.
type Report struct {
	Operation   string
	Environment string
	RunID       string
	Dir         string

	// Existing is set when the environment directory had content.
	Existing bool
	Choice   Choice
	Aborted  bool

	Snapshot *backup.Snapshot
	Steps    []Step

	Started  time.Time
	Finished time.Time
}

func (r *Report) add(s Step) {
	r.Steps = append(r.Steps, s)
	attrs := []any{"step", s.Name, "status", s.Status}
	if s.Component != "" {
		attrs = append(attrs, "component", s.Component)
	}
	if s.Detail != "" {
		attrs = append(attrs, "detail", s.Detail)
	}
	if s.Err != nil {
		attrs = append(attrs, "error", s.Err)
	}
	switch s.Status {
	case StepFailed:
		logging.Error("step failed", attrs...)
	case StepWarning:
		logging.Warn("step warning", attrs...)
	default:
		logging.Debug("step done", attrs...)
	}
}

func (r *Report) ok(name string, comp config.Component, detail string) {
	r.add(Step{Name: name, Component: comp, Status: StepOK, Detail: detail})
}

func (r *Report) skip(name string, comp config.Component, detail string) {
	r.add(Step{Name: name, Component: comp, Status: StepSkipped, Detail: detail})
}

func (r *Report) warn(name string, comp config.Component, detail string, err error) {
	r.add(Step{Name: name, Component: comp, Status: StepWarning, Detail: detail, Err: err})
}

func (r *Report) fail(name string, comp config.Component, detail string, err error) {
	r.add(Step{Name: name, Component: comp, Status: StepFailed, Detail: detail, Err: err})
}

// Count returns how many steps have the status.
func (r *Report) Count(status StepStatus) int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == status {
			n++
		}
	}
	return n
}

// Failed returns the failed steps.
func (r *Report) Failed() []Step {
	var out []Step
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			out = append(out, s)
		}
	}
	return out
}

// OK reports whether the run finished without failed steps.
func (r *Report) OK() bool {
	return !r.Aborted && r.Count(StepFailed) == 0
}

// StepsFor returns the steps of one component.
func (r *Report) StepsFor(comp config.Component) []Step {
	var out []Step
	for _, s := range r.Steps {
		if s.Component == comp {
			out = append(out, s)
		}
	}
	return out
}

// Find returns the first step with the name and component.
func (r *Report) Find(name string, comp config.Component) (Step, bool) {
	for _, s := range r.Steps {
		if s.Name == name && s.Component == comp {
			return s, true
		}
	}
	return Step{}, false
}

func formatCounts(ok, warnings, failed, skipped int) string {
	return fmt.Sprintf("%d ok, %d warnings, %d failed, %d skipped", ok, warnings, failed, skipped)
}
