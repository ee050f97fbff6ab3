package build

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	dockerpkg "github.com/dyluth/warren/internal/docker"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocker struct {
	mu       sync.Mutex
	configs  map[string]*container.Config
	hosts    map[string]*container.HostConfig
	removed  []string
	exitCode int64
	// exitService makes the service container stop immediately.
	exitService bool
	logs        string
	createErr   error
}

func newFakeDocker() *fakeDocker {
	return &fakeDocker{configs: map[string]*container.Config{}, hosts: map[string]*container.HostConfig{}}
}

func (f *fakeDocker) ContainerCreate(_ context.Context, config *container.Config, host *container.HostConfig,
	_ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs[name] = config
	f.hosts[name] = host
	return container.CreateResponse{ID: name}, nil
}

func (f *fakeDocker) ContainerStart(context.Context, string, container.StartOptions) error {
	return nil
}

func (f *fakeDocker) ContainerWait(ctx context.Context, id string, _ container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)

	f.mu.Lock()
	service := f.configs[id] != nil && f.configs[id].Labels[dockerpkg.LabelComponent] == dockerpkg.ComponentService
	f.mu.Unlock()

	if service && !f.exitService {
		go func() {
			<-ctx.Done()
			errCh <- ctx.Err()
		}()
		return statusCh, errCh
	}
	statusCh <- container.WaitResponse{StatusCode: f.exitCode}
	return statusCh, errCh
}

func (f *fakeDocker) ContainerLogs(context.Context, string, container.LogsOptions) (io.ReadCloser, error) {
	var buf bytes.Buffer
	_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(f.logs))
	return io.NopCloser(&buf), nil
}

func (f *fakeDocker) ContainerRemove(_ context.Context, id string, _ container.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return nil
}

func dockerOptions() DockerOptions {
	return DockerOptions{
		Options: Options{
			Dir:         "/tmp/project",
			Command:     []string{"cargo", "build"},
			RunCommand:  []string{"cargo", "run"},
			Port:        8080,
			StartupWait: 20 * time.Millisecond,
		},
		Image: "rust:1",
		RunID: "abcd1234-0000",
	}
}

func TestNewDockerBuilderRequiresImage(t *testing.T) {
	opts := dockerOptions()
	opts.Image = ""
	_, err := NewDockerBuilder(newFakeDocker(), opts, nil)
	assert.Error(t, err)
}

func TestDockerBuild(t *testing.T) {
	t.Run("success removes container", func(t *testing.T) {
		api := newFakeDocker()
		b, err := NewDockerBuilder(api, dockerOptions(), nil)
		require.NoError(t, err)

		res, err := b.Build(context.Background())
		require.NoError(t, err)
		assert.True(t, res.Success)

		name := "warren-build-abcd1234"
		cfg := api.configs[name]
		require.NotNil(t, cfg)
		assert.Equal(t, "rust:1", cfg.Image)
		assert.Equal(t, []string{"cargo", "build"}, []string(cfg.Cmd))
		assert.Equal(t, workspaceMount, cfg.WorkingDir)
		assert.Equal(t, dockerpkg.ComponentBuild, cfg.Labels[dockerpkg.LabelComponent])
		require.Len(t, api.hosts[name].Mounts, 1)
		assert.Equal(t, "/tmp/project", api.hosts[name].Mounts[0].Source)
		assert.Equal(t, []string{name}, api.removed)
	})

	t.Run("non-zero exit returns demuxed logs", func(t *testing.T) {
		api := newFakeDocker()
		api.exitCode = 101
		api.logs = "error: expected one of `;`"
		b, err := NewDockerBuilder(api, dockerOptions(), nil)
		require.NoError(t, err)

		res, err := b.Build(context.Background())
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "error: expected one of `;`", res.Diagnostic)
	})

	t.Run("create failure is an error", func(t *testing.T) {
		api := newFakeDocker()
		api.createErr = errors.New("no such image")
		b, err := NewDockerBuilder(api, dockerOptions(), nil)
		require.NoError(t, err)

		_, err = b.Build(context.Background())
		assert.ErrorContains(t, err, "no such image")
	})
}

func TestDockerStart(t *testing.T) {
	t.Run("publishes port and stops", func(t *testing.T) {
		api := newFakeDocker()
		b, err := NewDockerBuilder(api, dockerOptions(), nil)
		require.NoError(t, err)

		h, err := b.Start(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "http://127.0.0.1:8080", h.BaseURL())

		name := "warren-service-abcd1234"
		cfg := api.configs[name]
		require.NotNil(t, cfg)
		assert.Contains(t, cfg.ExposedPorts, nat.Port("8080/tcp"))
		bindings := api.hosts[name].PortBindings[nat.Port("8080/tcp")]
		require.Len(t, bindings, 1)
		assert.Equal(t, "127.0.0.1", bindings[0].HostIP)

		require.NoError(t, h.Stop(context.Background()))
		assert.Equal(t, []string{name}, api.removed)
	})

	t.Run("early exit", func(t *testing.T) {
		api := newFakeDocker()
		api.exitService = true
		api.logs = "panicked at main.rs"
		opts := dockerOptions()
		opts.StartupWait = time.Second
		b, err := NewDockerBuilder(api, opts, nil)
		require.NoError(t, err)

		_, err = b.Start(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExited)
		assert.Contains(t, err.Error(), "panicked")
		assert.Len(t, api.removed, 1)
	})
}
