package tui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/medstack-ops/envctl/internal/audit"
	"github.com/medstack-ops/envctl/internal/backup"
	"github.com/medstack-ops/envctl/internal/health"
	"github.com/medstack-ops/envctl/internal/lifecycle"
	"github.com/medstack-ops/envctl/internal/port"
	"github.com/medstack-ops/envctl/internal/proxy"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func stepIndicator(s lifecycle.StepStatus) string {
	switch s {
	case lifecycle.StepOK:
		return okStyle.Render("✓ ok")
	case lifecycle.StepWarning:
		return warningStyle.Render("⚠ warning")
	case lifecycle.StepFailed:
		return failedStyle.Render("✗ failed")
	default:
		return mutedStyle.Render("- skipped")
	}
}

// RenderReport writes the steps of a lifecycle run and a summary line.
func RenderReport(w io.Writer, r *lifecycle.Report) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s %s", r.Operation, r.Environment)))

	t := newTable("STEP", "COMPONENT", "STATUS", "DETAIL")
	for _, s := range r.Steps {
		detail := s.Detail
		if s.Err != nil {
			if detail != "" {
				detail += ": "
			}
			detail += s.Err.Error()
		}
		comp := string(s.Component)
		if comp == "" {
			comp = "-"
		}
		t.Row(s.Name, comp, stepIndicator(s.Status), truncate(detail, 80))
	}
	fmt.Fprintln(w, t.String())

	elapsed := r.Finished.Sub(r.Started).Round(time.Millisecond)
	summary := fmt.Sprintf("%d ok, %d warnings, %d failed, %d skipped in %s",
		r.Count(lifecycle.StepOK), r.Count(lifecycle.StepWarning),
		r.Count(lifecycle.StepFailed), r.Count(lifecycle.StepSkipped), elapsed)
	switch {
	case r.Aborted:
		fmt.Fprintln(w, warningStyle.Render("aborted: "+summary))
	case r.OK():
		fmt.Fprintln(w, okStyle.Render(summary))
	default:
		fmt.Fprintln(w, failedStyle.Render(summary))
	}
	if r.Snapshot != nil {
		fmt.Fprintln(w, mutedStyle.Render("snapshot: "+r.Snapshot.Dir))
	}
}

func statusIndicator(s health.Status) string {
	switch s {
	case health.StatusRunning:
		return okStyle.Render("● running")
	case health.StatusPartial:
		return warningStyle.Render("◐ partial")
	case health.StatusStopped:
		return failedStyle.Render("○ stopped")
	default:
		return mutedStyle.Render("- absent")
	}
}

// RenderStatus writes the component and network state of an environment.
func RenderStatus(w io.Writer, r *health.Report) {
	fmt.Fprintln(w, titleStyle.Render(r.Environment)+" "+statusIndicator(r.Overall()))

	t := newTable("COMPONENT", "STATUS", "CONTAINERS")
	for _, c := range r.Components {
		names := make([]string, 0, len(c.Containers))
		for _, ctr := range c.Containers {
			names = append(names, fmt.Sprintf("%s (%s)", ctr.Name, ctr.State))
		}
		t.Row(string(c.Component), statusIndicator(c.Status), strings.Join(names, "\n"))
	}
	fmt.Fprintln(w, t.String())

	nt := newTable("NETWORK", "EXISTS")
	for _, n := range r.Networks {
		exists := failedStyle.Render("no")
		if n.Exists {
			exists = okStyle.Render("yes")
		}
		nt.Row(n.Name, exists)
	}
	fmt.Fprintln(w, nt.String())

	if r.Err != nil {
		fmt.Fprintln(w, warningStyle.Render("incomplete: "+r.Err.Error()))
	}
}

// RenderPorts writes host port bindings and whether each accepts connections.
func RenderPorts(w io.Writer, bindings []port.Binding) {
	t := newTable("PORT", "COMPONENT", "ROLE", "LISTENING")
	for _, b := range bindings {
		listening := mutedStyle.Render("no")
		if b.InUse {
			listening = okStyle.Render("yes")
		}
		t.Row(strconv.Itoa(b.Port), string(b.Component), string(b.Role), listening)
	}
	fmt.Fprintln(w, t.String())
}

// RenderSnapshots writes a snapshot listing, newest first as given.
func RenderSnapshots(w io.Writer, snaps []*backup.Snapshot) {
	if len(snaps) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no snapshots"))
		return
	}
	t := newTable("ID", "NAME", "REASON", "COMPONENTS", "CONFIG")
	for _, s := range snaps {
		blob := "-"
		if s.JitsiConfigBlob != "" {
			blob = "yes"
		}
		t.Row(s.ShortID(), s.Name(), s.Reason, strings.Join(s.Components, ", "), blob)
	}
	fmt.Fprintln(w, t.String())
}

// RenderEvents writes audit events oldest first.
func RenderEvents(w io.Writer, events []audit.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no events"))
		return
	}
	t := newTable("TIME", "EVENT", "RUN", "DETAILS")
	for _, e := range events {
		kind := string(e.Type)
		if e.Type == audit.EventError {
			kind = failedStyle.Render(kind)
		}
		t.Row(e.Timestamp.Local().Format(time.DateTime), kind, shortRun(e.RunID), truncate(e.Details, 80))
	}
	fmt.Fprintln(w, t.String())
}

// RenderHosts writes the control plane's proxy hosts.
func RenderHosts(w io.Writer, hosts []proxy.Host) {
	if len(hosts) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no proxy hosts"))
		return
	}
	t := newTable("ID", "DOMAINS", "FORWARD", "WEBSOCKET")
	for _, h := range hosts {
		ws := "-"
		if h.AllowWebsocketUpgrade {
			ws = "yes"
		}
		target := fmt.Sprintf("%s://%s:%d", h.ForwardScheme, h.ForwardHost, h.ForwardPort)
		t.Row(strconv.Itoa(h.ID), strings.Join(h.DomainNames, ", "), target, ws)
	}
	fmt.Fprintln(w, t.String())
}

func shortRun(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
