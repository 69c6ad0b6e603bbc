package runtime

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"

	"github.com/medstack-ops/envctl/internal/logging"
)

// engineAPI is the subset of the Docker client used by SDKRuntime.
type engineAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error)
	NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error)
	NetworkRemove(ctx context.Context, networkID string) error
	NetworkConnect(ctx context.Context, networkID, containerID string, config *network.EndpointSettings) error
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	VolumeList(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error)
	VolumeRemove(ctx context.Context, volumeID string, force bool) error
	CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, container.PathStat, error)
	CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader, options container.CopyToContainerOptions) error
	Close() error
}

// SDKRuntime implements Runtime against the Docker Engine API.
type SDKRuntime struct {
	api engineAPI
}

// NewSDKRuntime connects using the DOCKER_* environment, or host when set.
func NewSDKRuntime(host string) (*SDKRuntime, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &SDKRuntime{api: cli}, nil
}

// Name returns the runtime identifier
func (r *SDKRuntime) Name() string {
	return "sdk"
}

// Close releases the client.
func (r *SDKRuntime) Close() error {
	return r.api.Close()
}

// sdkError maps engine errors to the package sentinels.
func sdkError(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errdefs.IsNotFound(err):
		return fmt.Errorf("%s: %v: %w", op, err, ErrNotFound)
	case strings.Contains(msg, "already exists in network"), strings.Contains(msg, "already connected"):
		return fmt.Errorf("%s: %v: %w", op, err, ErrAlreadyConnected)
	case errdefs.IsConflict(err), strings.Contains(msg, "already exists"):
		return fmt.Errorf("%s: %v: %w", op, err, ErrAlreadyExists)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func labelFilters(labels map[string]string) filters.Args {
	args := filters.NewArgs()
	for _, l := range labelArgs(labels) {
		args.Add("label", l)
	}
	return args
}

// Ping checks that the engine answers.
func (r *SDKRuntime) Ping(ctx context.Context) error {
	ping, err := r.api.Ping(ctx)
	if err != nil {
		return fmt.Errorf("docker ping: %w", err)
	}
	if ping.APIVersion == "" {
		return fmt.Errorf("docker ping returned empty API version")
	}
	return nil
}

// CreateNetwork creates a labelled bridge network.
func (r *SDKRuntime) CreateNetwork(ctx context.Context, name string, labels map[string]string) error {
	logging.Debug("creating network", "name", name, "runtime", "sdk")
	_, err := r.api.NetworkCreate(ctx, name, network.CreateOptions{Driver: "bridge", Labels: labels})
	return sdkError("network create "+name, err)
}

// ListNetworks lists networks carrying every label.
func (r *SDKRuntime) ListNetworks(ctx context.Context, labels map[string]string) ([]Network, error) {
	list, err := r.api.NetworkList(ctx, network.ListOptions{Filters: labelFilters(labels)})
	if err != nil {
		return nil, sdkError("network list", err)
	}
	out := make([]Network, 0, len(list))
	for _, n := range list {
		out = append(out, Network{ID: n.ID, Name: n.Name, Labels: n.Labels})
	}
	return out, nil
}

// RemoveNetwork removes a network by name.
func (r *SDKRuntime) RemoveNetwork(ctx context.Context, name string) error {
	return sdkError("network rm "+name, r.api.NetworkRemove(ctx, name))
}

// ConnectNetwork attaches a container to a network.
func (r *SDKRuntime) ConnectNetwork(ctx context.Context, net, ctr string) error {
	return sdkError("network connect "+net, r.api.NetworkConnect(ctx, net, ctr, nil))
}

// ListContainers lists containers matching the filter.
func (r *SDKRuntime) ListContainers(ctx context.Context, filter Filter) ([]Container, error) {
	args := labelFilters(filter.Labels)
	if filter.NamePrefix != "" {
		args.Add("name", filter.NamePrefix)
	}
	list, err := r.api.ContainerList(ctx, container.ListOptions{All: filter.All, Filters: args})
	if err != nil {
		return nil, sdkError("container list", err)
	}

	var out []Container
	for _, c := range list {
		ctr := Container{
			ID:     c.ID,
			State:  ParseState(c.State),
			Labels: c.Labels,
			Mounts: []string{},
		}
		if len(c.Names) > 0 {
			ctr.Name = strings.TrimPrefix(c.Names[0], "/")
		}
		if c.NetworkSettings != nil {
			for name := range c.NetworkSettings.Networks {
				ctr.Networks = append(ctr.Networks, name)
			}
		}
		for _, m := range c.Mounts {
			if m.Source != "" {
				ctr.Mounts = append(ctr.Mounts, m.Source)
			}
		}
		if filter.Matches(ctr) {
			out = append(out, ctr)
		}
	}
	return out, nil
}

// StopContainer stops a container.
func (r *SDKRuntime) StopContainer(ctx context.Context, id string) error {
	return sdkError("container stop "+id, r.api.ContainerStop(ctx, id, container.StopOptions{}))
}

// RemoveContainer force-removes a container.
func (r *SDKRuntime) RemoveContainer(ctx context.Context, id string) error {
	return sdkError("container rm "+id, r.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}))
}

// ListVolumes lists volumes carrying every label.
func (r *SDKRuntime) ListVolumes(ctx context.Context, labels map[string]string) ([]Volume, error) {
	resp, err := r.api.VolumeList(ctx, volume.ListOptions{Filters: labelFilters(labels)})
	if err != nil {
		return nil, sdkError("volume list", err)
	}
	out := make([]Volume, 0, len(resp.Volumes))
	for _, v := range resp.Volumes {
		if v == nil {
			continue
		}
		out = append(out, Volume{Name: v.Name, Labels: v.Labels})
	}
	return out, nil
}

// RemoveVolume removes a volume.
func (r *SDKRuntime) RemoveVolume(ctx context.Context, name string) error {
	return sdkError("volume rm "+name, r.api.VolumeRemove(ctx, name, false))
}

// CopyFrom streams srcPath out of the container as a tar archive.
func (r *SDKRuntime) CopyFrom(ctx context.Context, ctr, srcPath string, w io.Writer) error {
	rc, _, err := r.api.CopyFromContainer(ctx, ctr, srcPath)
	if err != nil {
		return sdkError("copy from "+ctr, err)
	}
	defer rc.Close()
	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("copy from %s: %w", ctr, err)
	}
	return nil
}

// CopyTo extracts a tar archive into dstPath inside the container.
func (r *SDKRuntime) CopyTo(ctx context.Context, ctr, dstPath string, rd io.Reader) error {
	err := r.api.CopyToContainer(ctx, ctr, dstPath, rd, container.CopyToContainerOptions{AllowOverwriteDirWithFile: true})
	return sdkError("copy to "+ctr, err)
}
