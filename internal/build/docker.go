package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	dockerpkg "github.com/dyluth/warren/internal/docker"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"
)

const workspaceMount = "/workspace"

// ContainerAPI is the subset of the Docker client used by DockerBuilder.
type ContainerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// DockerOptions extends Options with the image both steps run in.
type DockerOptions struct {
	Options
	Image string
	RunID string
}

// DockerBuilder runs the build and the service in containers with Dir bind
// mounted at /workspace.
type DockerBuilder struct {
	api    ContainerAPI
	opts   DockerOptions
	logger *zap.Logger
}

// NewDockerBuilder validates opts and returns a Docker driver.
func NewDockerBuilder(api ContainerAPI, opts DockerOptions, logger *zap.Logger) (*DockerBuilder, error) {
	opts.Options = opts.Options.withDefaults()
	if err := opts.Options.validate(); err != nil {
		return nil, err
	}
	if opts.Image == "" {
		return nil, fmt.Errorf("docker driver requires an image")
	}
	if opts.RunID == "" {
		opts.RunID = dockerpkg.GenerateRunID()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DockerBuilder{
		api:    api,
		opts:   opts,
		logger: logger.With(zap.String("component", "docker_builder")),
	}, nil
}

func (b *DockerBuilder) hostConfig() *container.HostConfig {
	return &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: b.opts.Dir,
			Target: workspaceMount,
		}},
	}
}

// Build runs the build command in a fresh container and removes it
// afterwards.
func (b *DockerBuilder) Build(ctx context.Context) (Result, error) {
	execCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	name := dockerpkg.ContainerName(b.opts.RunID, dockerpkg.ComponentBuild)
	resp, err := b.api.ContainerCreate(execCtx, &container.Config{
		Image:      b.opts.Image,
		Cmd:        b.opts.Command,
		WorkingDir: workspaceMount,
		Labels:     dockerpkg.BuildLabels(b.opts.RunID, b.opts.Dir, dockerpkg.ComponentBuild),
	}, b.hostConfig(), nil, nil, name)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create build container: %w", err)
	}
	defer b.remove(resp.ID)

	if err := b.api.ContainerStart(execCtx, resp.ID, container.StartOptions{}); err != nil {
		return Result{}, fmt.Errorf("failed to start build container: %w", err)
	}

	statusCh, errCh := b.api.ContainerWait(execCtx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if execCtx.Err() == context.DeadlineExceeded {
			return Result{Success: false, Diagnostic: fmt.Sprintf("build timed out after %s", b.opts.Timeout)}, nil
		}
		return Result{}, fmt.Errorf("failed waiting for build container: %w", err)
	case status := <-statusCh:
		exitCode = status.StatusCode
	}

	logs := b.logs(resp.ID)
	b.logger.Info("build finished",
		zap.String("event_type", "build_finished"),
		zap.String("container_id", resp.ID),
		zap.Int64("exit_code", exitCode))

	return Result{Success: exitCode == 0, Diagnostic: tail(logs, maxDiagnostic)}, nil
}

// Start runs the service container with Port published on 127.0.0.1.
func (b *DockerBuilder) Start(ctx context.Context) (Handle, error) {
	port := nat.Port(strconv.Itoa(b.opts.Port) + "/tcp")
	name := dockerpkg.ContainerName(b.opts.RunID, dockerpkg.ComponentService)

	hostConfig := b.hostConfig()
	hostConfig.PortBindings = nat.PortMap{
		port: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: strconv.Itoa(b.opts.Port)}},
	}

	resp, err := b.api.ContainerCreate(ctx, &container.Config{
		Image:        b.opts.Image,
		Cmd:          b.opts.RunCommand,
		WorkingDir:   workspaceMount,
		ExposedPorts: nat.PortSet{port: struct{}{}},
		Labels:       dockerpkg.BuildLabels(b.opts.RunID, b.opts.Dir, dockerpkg.ComponentService),
	}, hostConfig, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create service container: %w", err)
	}

	h := &containerHandle{builder: b, id: resp.ID, url: baseURL(b.opts.Port)}
	if err := b.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = h.Stop(context.Background())
		return nil, fmt.Errorf("failed to start service container: %w", err)
	}

	b.logger.Info("service started",
		zap.String("event_type", "service_started"),
		zap.String("container_id", resp.ID),
		zap.String("base_url", h.url))

	waitCtx, cancelWait := context.WithCancel(ctx)
	defer cancelWait()
	exited := make(chan struct{})
	statusCh, _ := b.api.ContainerWait(waitCtx, resp.ID, container.WaitConditionNotRunning)
	go func() {
		select {
		case <-statusCh:
			close(exited)
		case <-waitCtx.Done():
		}
	}()

	if err := waitStartup(ctx, b.opts.StartupWait, exited); err != nil {
		logs := b.logs(resp.ID)
		_ = h.Stop(context.Background())
		if errors.Is(err, ErrExited) {
			return nil, fmt.Errorf("%w\n%s", ErrExited, tail(logs, maxDiagnostic))
		}
		return nil, err
	}
	return h, nil
}

func (b *DockerBuilder) logs(containerID string) string {
	reader, err := b.api.ContainerLogs(context.Background(), containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       "200",
	})
	if err != nil {
		return fmt.Sprintf("(failed to retrieve logs: %v)", err)
	}
	defer reader.Close()

	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, reader); err != nil {
		return fmt.Sprintf("%s\n(failed to read logs: %v)", out.String(), err)
	}
	return out.String()
}

func (b *DockerBuilder) remove(containerID string) {
	if err := b.api.ContainerRemove(context.Background(), containerID, container.RemoveOptions{Force: true}); err != nil {
		b.logger.Warn("failed to remove container",
			zap.String("event_type", "container_remove_failed"),
			zap.String("container_id", containerID),
			zap.Error(err))
	}
}

type containerHandle struct {
	builder *DockerBuilder
	id      string
	url     string
	once    sync.Once
}

func (h *containerHandle) BaseURL() string { return h.url }

func (h *containerHandle) Stop(ctx context.Context) error {
	var err error
	h.once.Do(func() {
		err = h.builder.api.ContainerRemove(ctx, h.id, container.RemoveOptions{Force: true})
	})
	return err
}
