package runtime

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/medstack-ops/envctl/internal/logging"
	"github.com/medstack-ops/envctl/internal/system"
)

// DockerRuntime implements Runtime by invoking the docker or podman CLI.
type DockerRuntime struct {
	// Command is the container command to use (docker or podman)
	Command string

	exec system.CommandExecutor
}

// NewDockerRuntime creates a CLI runtime for command. A nil executor uses
// the OS executor.
func NewDockerRuntime(command string, exec system.CommandExecutor) *DockerRuntime {
	if exec == nil {
		exec = system.DefaultExecutor()
	}
	return &DockerRuntime{Command: command, exec: exec}
}

// Name returns the runtime identifier
func (r *DockerRuntime) Name() string {
	return r.Command
}

// runCmd executes a docker/podman command and classifies its failure.
func (r *DockerRuntime) runCmd(ctx context.Context, args ...string) (string, error) {
	logging.Debug("running", "cmd", shellquote.Join(append([]string{r.Command}, args...)...))
	out, err := r.exec.Execute(ctx, r.Command, args...)
	if err != nil {
		return string(out), r.cmdError(args, out, err)
	}
	return string(out), nil
}

func (r *DockerRuntime) cmdError(args []string, out []byte, err error) error {
	op := strings.Join(args[:min(2, len(args))], " ")

	// A missing binary never reached the engine.
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return fmt.Errorf("%s %s: %w", r.Command, op, err)
	}

	msg := strings.TrimSpace(string(out))
	if msg == "" {
		return fmt.Errorf("%s %s failed: %w", r.Command, op, err)
	}
	if sentinel := classify(msg); sentinel != nil {
		return fmt.Errorf("%s %s: %s: %w", r.Command, op, msg, sentinel)
	}
	return fmt.Errorf("%s %s failed: %s: %w", r.Command, op, msg, err)
}

var (
	// Docker: "No such container: x", "network x not found".
	// Podman: "no such volume", "unable to find network with name or ID x: network not found".
	objectMissing  = regexp.MustCompile(`no such (container|network|volume|object)|(container|network|volume)( \S+)? not found`)
	engineDownText = []string{
		"cannot connect to the docker daemon",
		"is the docker daemon running",
		"dial unix",
		"connection refused",
		"executable file not found",
	}
)

// classify maps engine error text to a sentinel. Docker and podman word
// these differently. Output that shows the engine was never reached is
// left unclassified.
func classify(msg string) error {
	lower := strings.ToLower(msg)
	for _, s := range engineDownText {
		if strings.Contains(lower, s) {
			return nil
		}
	}
	switch {
	case strings.Contains(lower, "already connected"),
		strings.Contains(lower, "already exists in network"):
		return ErrAlreadyConnected
	case strings.Contains(lower, "already exists"),
		strings.Contains(lower, "network is already in use"):
		return ErrAlreadyExists
	case objectMissing.MatchString(lower):
		return ErrNotFound
	}
	return nil
}

// Ping checks that the engine answers.
func (r *DockerRuntime) Ping(ctx context.Context) error {
	_, err := r.runCmd(ctx, "version", "--format", "{{.Server.Version}}")
	return err
}

// CreateNetwork creates a labelled bridge network.
func (r *DockerRuntime) CreateNetwork(ctx context.Context, name string, labels map[string]string) error {
	args := []string{"network", "create"}
	for _, l := range labelArgs(labels) {
		args = append(args, "--label", l)
	}
	args = append(args, name)
	_, err := r.runCmd(ctx, args...)
	return err
}

// ListNetworks lists networks carrying every label.
func (r *DockerRuntime) ListNetworks(ctx context.Context, labels map[string]string) ([]Network, error) {
	args := []string{"network", "ls"}
	for _, l := range labelArgs(labels) {
		args = append(args, "--filter", "label="+l)
	}
	args = append(args, "--format", "{{.ID}}\t{{.Name}}")

	out, err := r.runCmd(ctx, args...)
	if err != nil {
		return nil, err
	}

	var networks []Network
	for _, line := range lines(out) {
		id, name, _ := strings.Cut(line, "\t")
		networks = append(networks, Network{ID: id, Name: name, Labels: copyLabels(labels)})
	}
	return networks, nil
}

// RemoveNetwork removes a network by name.
func (r *DockerRuntime) RemoveNetwork(ctx context.Context, name string) error {
	_, err := r.runCmd(ctx, "network", "rm", name)
	return err
}

// ConnectNetwork attaches a container to a network.
func (r *DockerRuntime) ConnectNetwork(ctx context.Context, network, container string) error {
	_, err := r.runCmd(ctx, "network", "connect", network, container)
	return err
}

// psFormat is understood by both docker and podman.
const psFormat = "{{.ID}}\t{{.Names}}\t{{.State}}\t{{.Labels}}\t{{.Networks}}"

// ListContainers lists containers matching the filter.
func (r *DockerRuntime) ListContainers(ctx context.Context, filter Filter) ([]Container, error) {
	args := []string{"ps"}
	if filter.All {
		args = append(args, "-a")
	}
	for _, l := range labelArgs(filter.Labels) {
		args = append(args, "--filter", "label="+l)
	}
	if filter.NamePrefix != "" {
		args = append(args, "--filter", "name="+filter.NamePrefix)
	}
	args = append(args, "--format", psFormat)

	out, err := r.runCmd(ctx, args...)
	if err != nil {
		return nil, err
	}

	var containers []Container
	for _, line := range lines(out) {
		c := parsePSLine(line)
		// The engine's name filter is a substring match.
		if filter.Matches(c) {
			containers = append(containers, c)
		}
	}
	return containers, nil
}

func parsePSLine(line string) Container {
	fields := strings.Split(line, "\t")
	for len(fields) < 5 {
		fields = append(fields, "")
	}
	name, _, _ := strings.Cut(fields[1], ",")
	return Container{
		ID:       fields[0],
		Name:     strings.TrimPrefix(name, "/"),
		State:    ParseState(fields[2]),
		Labels:   parseLabels(fields[3]),
		Networks: splitList(fields[4]),
	}
}

// parseLabels reads docker's "k=v,k2=v2" and podman's "map[k:v k2:v2]".
func parseLabels(s string) map[string]string {
	labels := make(map[string]string)
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "map[") && strings.HasSuffix(s, "]") {
		for _, kv := range strings.Fields(s[4 : len(s)-1]) {
			if k, v, ok := strings.Cut(kv, ":"); ok {
				labels[k] = v
			}
		}
		return labels
	}
	for _, kv := range strings.Split(s, ",") {
		if k, v, ok := strings.Cut(kv, "="); ok {
			labels[k] = v
		}
	}
	return labels
}

func splitList(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return nil
	}
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}

// StopContainer stops a container.
func (r *DockerRuntime) StopContainer(ctx context.Context, id string) error {
	_, err := r.runCmd(ctx, "stop", id)
	return err
}

// RemoveContainer force-removes a container.
func (r *DockerRuntime) RemoveContainer(ctx context.Context, id string) error {
	_, err := r.runCmd(ctx, "rm", "-f", id)
	return err
}

// ListVolumes lists volumes carrying every label.
func (r *DockerRuntime) ListVolumes(ctx context.Context, labels map[string]string) ([]Volume, error) {
	args := []string{"volume", "ls"}
	for _, l := range labelArgs(labels) {
		args = append(args, "--filter", "label="+l)
	}
	args = append(args, "--format", "{{.Name}}")

	out, err := r.runCmd(ctx, args...)
	if err != nil {
		return nil, err
	}
	var volumes []Volume
	for _, name := range lines(out) {
		volumes = append(volumes, Volume{Name: name, Labels: copyLabels(labels)})
	}
	return volumes, nil
}

// RemoveVolume removes a volume.
func (r *DockerRuntime) RemoveVolume(ctx context.Context, name string) error {
	_, err := r.runCmd(ctx, "volume", "rm", name)
	return err
}

// CopyFrom streams srcPath out of the container as a tar archive.
func (r *DockerRuntime) CopyFrom(ctx context.Context, container, srcPath string, w io.Writer) error {
	args := []string{"cp", container + ":" + srcPath, "-"}
	logging.Debug("running", "cmd", shellquote.Join(append([]string{r.Command}, args...)...))
	if err := r.exec.ExecuteToWriter(ctx, w, r.Command, args...); err != nil {
		return r.cmdError(args, nil, err)
	}
	return nil
}

// CopyTo extracts a tar archive into dstPath inside the container.
func (r *DockerRuntime) CopyTo(ctx context.Context, container, dstPath string, rd io.Reader) error {
	args := []string{"cp", "-", container + ":" + dstPath}
	logging.Debug("running", "cmd", shellquote.Join(append([]string{r.Command}, args...)...))
	out, err := r.exec.ExecuteWithStdin(ctx, rd, r.Command, args...)
	if err != nil {
		return r.cmdError(args, out, err)
	}
	return nil
}

func lines(out string) []string {
	var result []string
	sc := bufio.NewScanner(bytes.NewBufferString(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			result = append(result, line)
		}
	}
	return result
}

func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}
