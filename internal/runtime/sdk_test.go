package runtime

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/errdefs"
)

// fakeEngine implements engineAPI in memory.
type fakeEngine struct {
	networks   []network.Summary
	containers []types.Container
	volumes    []*volume.Volume
	copied     map[string]string

	createErr  error
	connectErr error
	removeErr  error
	lastList   container.ListOptions
}

func (f *fakeEngine) Ping(ctx context.Context) (types.Ping, error) {
	return types.Ping{APIVersion: "1.46"}, nil
}

func (f *fakeEngine) NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error) {
	if f.createErr != nil {
		return network.CreateResponse{}, f.createErr
	}
	f.networks = append(f.networks, network.Summary{ID: "id-" + name, Name: name, Labels: options.Labels})
	return network.CreateResponse{ID: "id-" + name}, nil
}

func (f *fakeEngine) NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error) {
	return f.networks, nil
}

func (f *fakeEngine) NetworkRemove(ctx context.Context, networkID string) error {
	return f.removeErr
}

func (f *fakeEngine) NetworkConnect(ctx context.Context, networkID, containerID string, config *network.EndpointSettings) error {
	return f.connectErr
}

func (f *fakeEngine) ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error) {
	f.lastList = options
	return f.containers, nil
}

func (f *fakeEngine) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	return nil
}

func (f *fakeEngine) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	return f.removeErr
}

func (f *fakeEngine) VolumeList(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error) {
	return volume.ListResponse{Volumes: f.volumes}, nil
}

func (f *fakeEngine) VolumeRemove(ctx context.Context, volumeID string, force bool) error {
	return f.removeErr
}

func (f *fakeEngine) CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, container.PathStat, error) {
	data, ok := f.copied[containerID+":"+srcPath]
	if !ok {
		return nil, container.PathStat{}, errdefs.NotFound(errors.New("no such file"))
	}
	return io.NopCloser(strings.NewReader(data)), container.PathStat{Name: srcPath}, nil
}

func (f *fakeEngine) CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader, options container.CopyToContainerOptions) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	f.copied[containerID+":"+dstPath] = string(data)
	return nil
}

func (f *fakeEngine) Close() error { return nil }

func TestSDKRuntime_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"conflict", errdefs.Conflict(errors.New("network with name x already exists")), ErrAlreadyExists},
		{"endpoint exists", errdefs.Forbidden(errors.New("endpoint with name y already exists in network x")), ErrAlreadyConnected},
		{"not found", errdefs.NotFound(errors.New("network x not found")), ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sdkError("op", tt.err); !errors.Is(got, tt.want) {
				t.Errorf("sdkError() = %v, want %v", got, tt.want)
			}
		})
	}

	if sdkError("op", nil) != nil {
		t.Error("sdkError(nil) should be nil")
	}
}

func TestSDKRuntime_Networks(t *testing.T) {
	fake := &fakeEngine{}
	rt := &SDKRuntime{api: fake}
	ctx := context.Background()

	labels := map[string]string{"io.envctl.project": "clinic"}
	if err := rt.CreateNetwork(ctx, "clinic-dev-proxy", labels); err != nil {
		t.Fatalf("CreateNetwork() error = %v", err)
	}

	fake.createErr = errdefs.Conflict(errors.New("network with name clinic-dev-proxy already exists"))
	if err := rt.CreateNetwork(ctx, "clinic-dev-proxy", labels); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("second CreateNetwork() error = %v, want ErrAlreadyExists", err)
	}

	nets, err := rt.ListNetworks(ctx, labels)
	if err != nil || len(nets) != 1 || nets[0].Name != "clinic-dev-proxy" {
		t.Errorf("ListNetworks() = %+v, %v", nets, err)
	}

	fake.connectErr = errdefs.Forbidden(errors.New("endpoint with name web already exists in network clinic-dev-proxy"))
	if err := rt.ConnectNetwork(ctx, "clinic-dev-proxy", "web"); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("ConnectNetwork() error = %v, want ErrAlreadyConnected", err)
	}
}

func TestSDKRuntime_ListContainers(t *testing.T) {
	fake := &fakeEngine{containers: []types.Container{
		{
			ID:     "abc",
			Names:  []string{"/clinic-dev-openemr-openemr-1"},
			State:  "running",
			Labels: map[string]string{"io.envctl.project": "clinic"},
			NetworkSettings: &types.SummaryNetworkSettings{Networks: map[string]*network.EndpointSettings{
				"clinic-dev-proxy": {},
			}},
			Mounts: []types.MountPoint{{Source: "/env/clinic-dev/openemr"}},
		},
		{ID: "def", Names: []string{"/clinic-dev-openemr-mysql-1"}, State: "exited"},
	}}
	rt := &SDKRuntime{api: fake}

	got, err := rt.ListContainers(context.Background(), Filter{
		Labels: map[string]string{"io.envctl.project": "clinic"},
	})
	if err != nil {
		t.Fatalf("ListContainers() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ListContainers() = %+v, want one running labelled container", got)
	}
	c := got[0]
	if c.Name != "clinic-dev-openemr-openemr-1" || c.Networks[0] != "clinic-dev-proxy" || c.Mounts[0] != "/env/clinic-dev/openemr" {
		t.Errorf("container = %+v", c)
	}
	if fake.lastList.Filters.Get("label")[0] != "io.envctl.project=clinic" {
		t.Errorf("label filter = %v", fake.lastList.Filters.Get("label"))
	}
}

func TestSDKRuntime_Copy(t *testing.T) {
	fake := &fakeEngine{copied: map[string]string{}}
	rt := &SDKRuntime{api: fake}
	ctx := context.Background()

	if err := rt.CopyTo(ctx, "web", "/", strings.NewReader("TAR")); err != nil {
		t.Fatalf("CopyTo() error = %v", err)
	}
	var buf bytes.Buffer
	if err := rt.CopyFrom(ctx, "web", "/", &buf); err != nil {
		t.Fatalf("CopyFrom() error = %v", err)
	}
	if buf.String() != "TAR" {
		t.Errorf("round trip = %q", buf.String())
	}

	if err := rt.CopyFrom(ctx, "web", "/missing", &buf); !errors.Is(err, ErrNotFound) {
		t.Errorf("CopyFrom(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSDKRuntime_Volumes(t *testing.T) {
	fake := &fakeEngine{volumes: []*volume.Volume{{Name: "clinic-dev-openemr_db"}, nil}}
	rt := &SDKRuntime{api: fake}

	vols, err := rt.ListVolumes(context.Background(), nil)
	if err != nil || len(vols) != 1 {
		t.Fatalf("ListVolumes() = %+v, %v", vols, err)
	}

	fake.removeErr = errdefs.NotFound(errors.New("no such volume"))
	if err := rt.RemoveVolume(context.Background(), "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemoveVolume() error = %v, want ErrNotFound", err)
	}
}
