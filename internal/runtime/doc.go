// Package runtime provides a unified interface for container engines.
//
// Supported back ends:
//   - docker: the docker CLI
//   - podman: the podman CLI, which accepts the same arguments
//   - sdk: the Docker Engine API through github.com/docker/docker/client
//
// Selection is automatic unless ENVCTL_RUNTIME names a back end. New
// returns the Runtime together with a Composer for compose stacks.
//
// # Runtime Interface
//
// The Runtime interface covers what an environment owns on the engine:
//   - CreateNetwork, ListNetworks, RemoveNetwork, ConnectNetwork
//   - ListContainers, StopContainer, RemoveContainer
//   - ListVolumes, RemoveVolume
//   - CopyFrom, CopyTo: tar streams in and out of containers
//
// Idempotence is expressed through the sentinel errors ErrAlreadyExists,
// ErrAlreadyConnected and ErrNotFound, which every back end returns
// wrapped so errors.Is works regardless of the engine's wording.
//
// # Mock Runtime
//
// For testing, use NewMockRuntime() and NewMockComposer(). Both record
// their calls and accept injected errors keyed by method name.
package runtime
