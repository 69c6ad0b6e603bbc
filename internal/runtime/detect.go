package runtime

import (
	"fmt"
	"os/exec"

	"github.com/medstack-ops/envctl/internal/logging"
	"github.com/medstack-ops/envctl/internal/system"
)

// RuntimeType identifies which container runtime to use
type RuntimeType string

const (
	RuntimeDocker RuntimeType = "docker"
	RuntimePodman RuntimeType = "podman"
	RuntimeSDK    RuntimeType = "sdk"
	RuntimeAuto   RuntimeType = "auto"
)

// Config holds runtime configuration
type Config struct {
	// Type specifies which runtime to use (or "auto" for auto-detection)
	Type RuntimeType

	// Host overrides the engine address for the SDK back end.
	Host string

	// Executor runs CLI commands. Nil uses the OS executor.
	Executor system.CommandExecutor
}

// DefaultConfig returns the default runtime configuration
func DefaultConfig() *Config {
	return &Config{Type: RuntimeAuto}
}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// Detect determines which container CLI is available on the system.
// Docker is preferred because the component stacks are written for
// docker compose.
func Detect() (RuntimeType, error) {
	if _, err := lookPath("docker"); err == nil {
		logging.Debug("detected docker")
		return RuntimeDocker, nil
	}
	if _, err := lookPath("podman"); err == nil {
		logging.Debug("detected podman")
		return RuntimePodman, nil
	}
	return "", fmt.Errorf("no supported container runtime found (tried: docker, podman)")
}

// Available returns the container CLIs found on this system
func Available() []RuntimeType {
	var available []RuntimeType
	for _, rt := range []RuntimeType{RuntimeDocker, RuntimePodman} {
		if _, err := lookPath(string(rt)); err == nil {
			available = append(available, rt)
		}
	}
	return available
}

// New creates the Runtime and Composer selected by cfg.
// The SDK back end still drives compose through the docker CLI.
func New(cfg *Config) (Runtime, Composer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	runtimeType := cfg.Type
	if runtimeType == "" || runtimeType == RuntimeAuto {
		detected, err := Detect()
		if err != nil {
			return nil, nil, err
		}
		runtimeType = detected
	}

	logging.Debug("creating runtime", "type", runtimeType)

	switch runtimeType {
	case RuntimeDocker, RuntimePodman:
		cmd := string(runtimeType)
		return NewDockerRuntime(cmd, cfg.Executor), NewCLIComposer(cmd, cfg.Executor), nil

	case RuntimeSDK:
		rt, err := NewSDKRuntime(cfg.Host)
		if err != nil {
			return nil, nil, err
		}
		return rt, NewCLIComposer(string(RuntimeDocker), cfg.Executor), nil

	default:
		return nil, nil, fmt.Errorf("unknown runtime type: %s", runtimeType)
	}
}
