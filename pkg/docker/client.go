// Package docker adapts the Docker SDK to the narrow runtime surface the
// orchestrator consumes: build, attached run, stop, remove, image checks and
// running-container discovery. Podman is reachable through the same API via
// its docker-compatible socket.
package docker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	dockerfilters "github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/moby/term"
)

// ErrUnavailable means no responsive container runtime daemon was found.
var ErrUnavailable = fmt.Errorf(
	"container runtime not available: is the docker (or podman) daemon running?")

// Client wraps the Docker SDK client.
type Client struct {
	cli *client.Client
}

// NewClient connects to the runtime daemon. The configured socket path is
// tried first, then the environment (DOCKER_HOST), then well-known socket
// locations. Every candidate is ping-checked; a client that cannot reach a
// daemon is useless to the orchestrator.
func NewClient(socketPath string) (*Client, error) {
	var candidates []client.Opt

	if socketPath != "" {
		candidates = append(candidates, client.WithHost("unix://"+socketPath))
	}
	candidates = append(candidates, client.FromEnv)

	home, _ := os.UserHomeDir()
	for _, path := range []string{
		"/var/run/docker.sock",
		filepath.Join(home, ".docker", "run", "docker.sock"),
		"/run/podman/podman.sock",
	} {
		candidates = append(candidates, client.WithHost("unix://"+path))
	}

	for _, opt := range candidates {
		cli, err := client.NewClientWithOpts(opt, client.WithAPIVersionNegotiation())
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err = cli.Ping(ctx)
		cancel()
		if err == nil {
			return &Client{cli: cli}, nil
		}
		_ = cli.Close()
	}

	return nil, ErrUnavailable
}

// Close closes the underlying SDK client.
func (c *Client) Close() error {
	return c.cli.Close()
}

// ImageExists checks if an image exists locally.
func (c *Client) ImageExists(ctx context.Context, tag string) bool {
	_, _, err := c.cli.ImageInspectWithRaw(ctx, tag)
	return err == nil
}

// ImageRemove removes an image. Idempotent - returns nil if the image doesn't exist.
func (c *Client) ImageRemove(ctx context.Context, tag string) error {
	_, err := c.cli.ImageRemove(ctx, tag, types.ImageRemoveOptions{Force: true})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to remove image %s: %w", tag, err)
	}
	return nil
}

// ImageBuild builds an image from a context directory, streaming build output
// to stdout. A nonzero build exit surfaces as an error from the JSON stream.
func (c *Client) ImageBuild(ctx context.Context, contextDir, dockerfile, tag string, buildArgs map[string]*string) error {
	excludes, err := readDockerignore(contextDir)
	if err != nil {
		return fmt.Errorf("failed to read .dockerignore: %w", err)
	}

	tarCtx, err := archive.TarWithOptions(contextDir, &archive.TarOptions{
		ExcludePatterns: excludes,
	})
	if err != nil {
		return fmt.Errorf("failed to create build context tar: %w", err)
	}
	defer func() { _ = tarCtx.Close() }()

	opts := types.ImageBuildOptions{
		Tags:       []string{tag},
		Dockerfile: dockerfile,
		Remove:     true,
		BuildArgs:  buildArgs,
	}

	resp, err := c.cli.ImageBuild(ctx, tarCtx, opts)
	if err != nil {
		return fmt.Errorf("failed to build image %s: %w", tag, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, os.Stdout, 0, false, nil); err != nil {
		return fmt.Errorf("build failed for image %s: %w", tag, err)
	}
	return nil
}

// ContainerStop stops a container. Idempotent - returns nil if the container
// doesn't exist or is already stopped.
func (c *Client) ContainerStop(ctx context.Context, name string, timeout time.Duration) error {
	timeoutSec := int(timeout.Seconds())
	err := c.cli.ContainerStop(ctx, name, container.StopOptions{Timeout: &timeoutSec})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to stop container %s: %w", name, err)
	}
	return nil
}

// ContainerRemove removes a container (force). Idempotent.
func (c *Client) ContainerRemove(ctx context.Context, name string) error {
	err := c.cli.ContainerRemove(ctx, name, types.ContainerRemoveOptions{Force: true})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to remove container %s: %w", name, err)
	}
	return nil
}

// ListRunning returns the names of running containers matching nameFilter.
func (c *Client) ListRunning(ctx context.Context, nameFilter string) ([]string, error) {
	f := dockerfilters.NewArgs()
	f.Add("name", nameFilter)
	containers, err := c.cli.ContainerList(ctx, types.ContainerListOptions{Filters: f})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	var names []string
	for _, ctr := range containers {
		if len(ctr.Names) > 0 {
			names = append(names, strings.TrimPrefix(ctr.Names[0], "/"))
		}
	}
	return names, nil
}

// RunOptions configures an attached container run.
type RunOptions struct {
	Name         string
	Image        string
	WorkDir      string
	Cmd          []string
	Env          []string
	Mounts       []mount.Mount
	PortBindings nat.PortMap
	ExposedPorts nat.PortSet
	Labels       map[string]string
	Memory       int64 // bytes, 0 = unlimited
	NanoCPUs     int64 // 1e9 = one cpu, 0 = unlimited
	ExtraHosts   []string
}

// RunAttached creates and starts a container attached to this process's
// stdio and blocks until it exits, returning the container's exit code. The
// container is auto-removed by the daemon on exit. A duplicate name is the
// daemon's error to raise; it is passed through verbatim.
func (c *Client) RunAttached(ctx context.Context, opts RunOptions) (int, error) {
	stdinFd, isTerminal := term.GetFdInfo(os.Stdin)

	cfg := &container.Config{
		Image:        opts.Image,
		WorkingDir:   opts.WorkDir,
		Cmd:          opts.Cmd,
		Env:          opts.Env,
		Labels:       opts.Labels,
		ExposedPorts: opts.ExposedPorts,
		Tty:          isTerminal,
		OpenStdin:    true,
		StdinOnce:    true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	}
	hostCfg := &container.HostConfig{
		Mounts:       opts.Mounts,
		PortBindings: opts.PortBindings,
		AutoRemove:   true,
		ExtraHosts:   opts.ExtraHosts,
		Resources: container.Resources{
			Memory:   opts.Memory,
			NanoCPUs: opts.NanoCPUs,
		},
	}

	resp, err := c.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, opts.Name)
	if err != nil {
		return 0, fmt.Errorf("failed to create container %s: %w", opts.Name, err)
	}

	attach, err := c.cli.ContainerAttach(ctx, resp.ID, types.ContainerAttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to attach to container %s: %w", opts.Name, err)
	}
	defer attach.Close()

	waitCh, waitErrCh := c.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNextExit)

	if err := c.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return 0, fmt.Errorf("failed to start container %s: %w", opts.Name, err)
	}

	if isTerminal {
		state, err := term.MakeRaw(stdinFd)
		if err == nil {
			defer func() { _ = term.RestoreTerminal(stdinFd, state) }()
		}
	}

	go func() {
		_, _ = io.Copy(attach.Conn, os.Stdin)
		_ = attach.CloseWrite()
	}()

	outDone := make(chan error, 1)
	go func() {
		var err error
		if isTerminal {
			_, err = io.Copy(os.Stdout, attach.Reader)
		} else {
			_, err = stdcopy.StdCopy(os.Stdout, os.Stderr, attach.Reader)
		}
		outDone <- err
	}()

	select {
	case result := <-waitCh:
		<-outDone
		if result.Error != nil {
			return 0, fmt.Errorf("container %s: %s", opts.Name, result.Error.Message)
		}
		return int(result.StatusCode), nil
	case err := <-waitErrCh:
		return 0, fmt.Errorf("failed waiting for container %s: %w", opts.Name, err)
	}
}

// readDockerignore reads a .dockerignore file and returns exclude patterns.
func readDockerignore(contextDir string) ([]string, error) {
	f, err := os.Open(filepath.Join(contextDir, ".dockerignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var excludes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		excludes = append(excludes, line)
	}
	return excludes, scanner.Err()
}
