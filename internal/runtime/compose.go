package runtime

import (
	"context"
	"fmt"
	"io"

	"github.com/kballard/go-shellquote"

	"github.com/medstack-ops/envctl/internal/logging"
	"github.com/medstack-ops/envctl/internal/system"
)

// CLIComposer runs "<command> compose" for a stack.
type CLIComposer struct {
	// Command is docker or podman.
	Command string

	exec system.CommandExecutor

	// Output receives compose's stdout. Defaults to the debug log.
	Output io.Writer
}

// NewCLIComposer creates a composer. A nil executor uses the OS executor.
func NewCLIComposer(command string, exec system.CommandExecutor) *CLIComposer {
	if exec == nil {
		exec = system.DefaultExecutor()
	}
	return &CLIComposer{Command: command, exec: exec}
}

// projectArgs builds the arguments shared by every compose subcommand.
func (c *CLIComposer) projectArgs(p ComposeProject) []string {
	args := []string{"compose", "-p", p.Name}
	if p.Dir != "" {
		args = append(args, "--project-directory", p.Dir)
	}
	for _, f := range p.Files {
		args = append(args, "-f", f)
	}
	if p.EnvFile != "" {
		args = append(args, "--env-file", p.EnvFile)
	}
	return args
}

func (c *CLIComposer) run(ctx context.Context, args []string) error {
	logging.Debug("running", "cmd", shellquote.Join(append([]string{c.Command}, args...)...))
	w := c.Output
	if w == nil {
		w = logging.NewWriter(logging.Logger)
	}
	if err := c.exec.ExecuteToWriter(ctx, w, c.Command, args...); err != nil {
		return fmt.Errorf("%s compose failed: %w", c.Command, err)
	}
	return nil
}

// Up starts the stack detached.
func (c *CLIComposer) Up(ctx context.Context, p ComposeProject) error {
	args := append(c.projectArgs(p), "up", "-d")
	if err := c.run(ctx, args); err != nil {
		return fmt.Errorf("compose up %s: %w", p.Name, err)
	}
	return nil
}

// Down stops and removes the stack.
func (c *CLIComposer) Down(ctx context.Context, p ComposeProject, volumes bool) error {
	args := append(c.projectArgs(p), "down")
	if volumes {
		args = append(args, "--volumes")
	}
	if err := c.run(ctx, args); err != nil {
		return fmt.Errorf("compose down %s: %w", p.Name, err)
	}
	return nil
}
