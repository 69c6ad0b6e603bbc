package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// MockRuntime is a mock implementation of Runtime for testing
type MockRuntime struct {
	mu sync.RWMutex

	// Networks tracks mock networks by name.
	Networks map[string]*Network

	// Containers tracks mock containers by ID, listed in ID order.
	Containers map[string]*Container

	// Volumes tracks mock volumes by name.
	Volumes map[string]*Volume

	// Files holds tar streams keyed by "container:path" for CopyFrom,
	// and receives CopyTo payloads.
	Files map[string][]byte

	// Errors allows injecting errors for specific operations
	Errors map[string]error

	// CallLog records all method calls for verification
	CallLog []MockCall
}

// MockCall represents a recorded method call
type MockCall struct {
	Method string
	Args   []interface{}
}

// NewMockRuntime creates a new mock runtime
func NewMockRuntime() *MockRuntime {
	return &MockRuntime{
		Networks:   make(map[string]*Network),
		Containers: make(map[string]*Container),
		Volumes:    make(map[string]*Volume),
		Files:      make(map[string][]byte),
		Errors:     make(map[string]error),
		CallLog:    make([]MockCall, 0),
	}
}

func (m *MockRuntime) record(method string, args ...interface{}) {
	m.CallLog = append(m.CallLog, MockCall{Method: method, Args: args})
}

// SetError sets an error to be returned for a specific operation
func (m *MockRuntime) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[operation] = err
}

// AddContainer adds a container to the mock. The name doubles as the ID
// when id is empty.
func (m *MockRuntime) AddContainer(id, name string, state ContainerState, labels map[string]string) *Container {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		id = name
	}
	c := &Container{ID: id, Name: name, State: state, Labels: labels}
	m.Containers[id] = c
	return c
}

// AddNetwork adds a network to the mock.
func (m *MockRuntime) AddNetwork(name string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Networks[name] = &Network{ID: "net-" + name, Name: name, Labels: labels}
}

// AddVolume adds a volume to the mock.
func (m *MockRuntime) AddVolume(name string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Volumes[name] = &Volume{Name: name, Labels: labels}
}

// GetCalls returns all recorded calls
func (m *MockRuntime) GetCalls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]MockCall, len(m.CallLog))
	copy(calls, m.CallLog)
	return calls
}

// GetCallsFor returns all calls for a specific method
func (m *MockRuntime) GetCallsFor(method string) []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var calls []MockCall
	for _, call := range m.CallLog {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// Reset clears all state
func (m *MockRuntime) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Networks = make(map[string]*Network)
	m.Containers = make(map[string]*Container)
	m.Volumes = make(map[string]*Volume)
	m.Files = make(map[string][]byte)
	m.Errors = make(map[string]error)
	m.CallLog = make([]MockCall, 0)
}

// Name returns the runtime identifier
func (m *MockRuntime) Name() string {
	return "mock"
}

// Ping checks that the engine answers.
func (m *MockRuntime) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Ping")
	return m.Errors["Ping"]
}

// CreateNetwork creates a network.
func (m *MockRuntime) CreateNetwork(ctx context.Context, name string, labels map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateNetwork", name, labels)

	if err, ok := m.Errors["CreateNetwork"]; ok {
		return err
	}
	if _, ok := m.Networks[name]; ok {
		return fmt.Errorf("network with name %s %w", name, ErrAlreadyExists)
	}
	m.Networks[name] = &Network{ID: "net-" + name, Name: name, Labels: copyLabels(labels)}
	return nil
}

// ListNetworks lists networks carrying every label.
func (m *MockRuntime) ListNetworks(ctx context.Context, labels map[string]string) ([]Network, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.Errors["ListNetworks"]; ok {
		return nil, err
	}
	var out []Network
	for _, name := range sortedKeys(m.Networks) {
		if n := m.Networks[name]; labelsMatch(n.Labels, labels) {
			out = append(out, *n)
		}
	}
	return out, nil
}

// RemoveNetwork removes a network.
func (m *MockRuntime) RemoveNetwork(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("RemoveNetwork", name)

	if err, ok := m.Errors["RemoveNetwork"]; ok {
		return err
	}
	if _, ok := m.Networks[name]; !ok {
		return fmt.Errorf("network %s %w", name, ErrNotFound)
	}
	delete(m.Networks, name)
	for _, c := range m.Containers {
		c.Networks = without(c.Networks, name)
	}
	return nil
}

// ConnectNetwork attaches a container to a network.
func (m *MockRuntime) ConnectNetwork(ctx context.Context, network, container string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ConnectNetwork", network, container)

	if err, ok := m.Errors["ConnectNetwork"]; ok {
		return err
	}
	if _, ok := m.Networks[network]; !ok {
		return fmt.Errorf("network %s %w", network, ErrNotFound)
	}
	c := m.lookup(container)
	if c == nil {
		return fmt.Errorf("container %s %w", container, ErrNotFound)
	}
	for _, n := range c.Networks {
		if n == network {
			return fmt.Errorf("container %s %w to %s", container, ErrAlreadyConnected, network)
		}
	}
	c.Networks = append(c.Networks, network)
	return nil
}

// lookup finds a container by ID or name. Callers hold the lock.
func (m *MockRuntime) lookup(ref string) *Container {
	if c, ok := m.Containers[ref]; ok {
		return c
	}
	for _, id := range sortedKeys(m.Containers) {
		if m.Containers[id].Name == ref {
			return m.Containers[id]
		}
	}
	return nil
}

// ListContainers lists containers matching the filter, in ID order.
func (m *MockRuntime) ListContainers(ctx context.Context, filter Filter) ([]Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListContainers", filter)

	if err, ok := m.Errors["ListContainers"]; ok {
		return nil, err
	}
	var out []Container
	for _, id := range sortedKeys(m.Containers) {
		if c := m.Containers[id]; filter.Matches(*c) {
			out = append(out, *c)
		}
	}
	return out, nil
}

// StopContainer stops a container.
func (m *MockRuntime) StopContainer(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("StopContainer", id)

	if err, ok := m.Errors["StopContainer"]; ok {
		return err
	}
	c := m.lookup(id)
	if c == nil {
		return fmt.Errorf("container %s %w", id, ErrNotFound)
	}
	c.State = StateExited
	return nil
}

// RemoveContainer removes a container.
func (m *MockRuntime) RemoveContainer(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("RemoveContainer", id)

	if err, ok := m.Errors["RemoveContainer"]; ok {
		return err
	}
	c := m.lookup(id)
	if c == nil {
		return fmt.Errorf("container %s %w", id, ErrNotFound)
	}
	delete(m.Containers, c.ID)
	return nil
}

// ListVolumes lists volumes carrying every label.
func (m *MockRuntime) ListVolumes(ctx context.Context, labels map[string]string) ([]Volume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.Errors["ListVolumes"]; ok {
		return nil, err
	}
	var out []Volume
	for _, name := range sortedKeys(m.Volumes) {
		if v := m.Volumes[name]; labelsMatch(v.Labels, labels) {
			out = append(out, *v)
		}
	}
	return out, nil
}

// RemoveVolume removes a volume.
func (m *MockRuntime) RemoveVolume(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("RemoveVolume", name)

	if err, ok := m.Errors["RemoveVolume"]; ok {
		return err
	}
	if _, ok := m.Volumes[name]; !ok {
		return fmt.Errorf("volume %s %w", name, ErrNotFound)
	}
	delete(m.Volumes, name)
	return nil
}

// CopyFrom writes the stored payload for container:srcPath.
func (m *MockRuntime) CopyFrom(ctx context.Context, container, srcPath string, w io.Writer) error {
	m.mu.Lock()
	m.record("CopyFrom", container, srcPath)
	err, failed := m.Errors["CopyFrom"]
	data, ok := m.Files[container+":"+srcPath]
	m.mu.Unlock()

	if failed {
		return err
	}
	if !ok {
		return fmt.Errorf("%s:%s %w", container, srcPath, ErrNotFound)
	}
	_, werr := io.Copy(w, bytes.NewReader(data))
	return werr
}

// CopyTo stores the payload under container:dstPath.
func (m *MockRuntime) CopyTo(ctx context.Context, container, dstPath string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CopyTo", container, dstPath)

	if err, ok := m.Errors["CopyTo"]; ok {
		return err
	}
	if m.lookup(container) == nil {
		return fmt.Errorf("container %s %w", container, ErrNotFound)
	}
	m.Files[container+":"+dstPath] = data
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func without(list []string, item string) []string {
	out := list[:0]
	for _, s := range list {
		if s != item {
			out = append(out, s)
		}
	}
	return out
}

// MockComposer records compose invocations.
type MockComposer struct {
	mu sync.Mutex

	// Ups and Downs record the projects passed in, in call order.
	Ups   []ComposeProject
	Downs []ComposeProject

	// Errors is keyed by "Up:<project>" or "Down:<project>", or by "Up"/"Down" for all.
	Errors map[string]error

	// OnUp runs after a successful Up, e.g. to add containers to a MockRuntime.
	OnUp func(p ComposeProject)
}

// NewMockComposer creates a new mock composer.
func NewMockComposer() *MockComposer {
	return &MockComposer{Errors: make(map[string]error)}
}

func (m *MockComposer) err(op, project string) error {
	if err, ok := m.Errors[op+":"+project]; ok {
		return err
	}
	return m.Errors[op]
}

// Up records the project.
func (m *MockComposer) Up(ctx context.Context, p ComposeProject) error {
	m.mu.Lock()
	m.Ups = append(m.Ups, p)
	err := m.err("Up", p.Name)
	hook := m.OnUp
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		hook(p)
	}
	return nil
}

// Down records the project.
func (m *MockComposer) Down(ctx context.Context, p ComposeProject, volumes bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Downs = append(m.Downs, p)
	return m.err("Down", p.Name)
}

// Ensure the mocks implement their interfaces
var (
	_ Runtime  = (*MockRuntime)(nil)
	_ Composer = (*MockComposer)(nil)
	_ Runtime  = (*DockerRuntime)(nil)
	_ Runtime  = (*SDKRuntime)(nil)
	_ Composer = (*CLIComposer)(nil)
)
