// Package lifecycle drives the build/run/teardown of the single named
// devcell container.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/mount"
	"github.com/docker/go-connections/nat"
	units "github.com/docker/go-units"
	"go.uber.org/zap"

	"github.com/devcell-app/devcell/pkg/config"
	"github.com/devcell-app/devcell/pkg/docker"
	"github.com/devcell-app/devcell/pkg/provision"
)

const (
	// ContainerName is the single instance this tool manages per host.
	ContainerName = "devcell"
	// ImageTag is the image the container runs.
	ImageTag = "devcell:latest"

	stopTimeout = 10 * time.Second
)

// Runtime is the container runtime surface the orchestrator consumes.
// Implemented by *docker.Client; faked in tests.
type Runtime interface {
	ImageExists(ctx context.Context, tag string) bool
	ImageBuild(ctx context.Context, contextDir, dockerfile, tag string, buildArgs map[string]*string) error
	ImageRemove(ctx context.Context, tag string) error
	ContainerStop(ctx context.Context, name string, timeout time.Duration) error
	ContainerRemove(ctx context.Context, name string) error
	ListRunning(ctx context.Context, nameFilter string) ([]string, error)
	RunAttached(ctx context.Context, opts docker.RunOptions) (int, error)
}

// BuildError is a fatal image build failure; it aborts the whole command.
type BuildError struct {
	Err error
}

func (e *BuildError) Error() string { return fmt.Sprintf("image build failed: %v", e.Err) }
func (e *BuildError) Unwrap() error { return e.Err }

// Orchestrator sequences runtime calls for one session.
type Orchestrator struct {
	Runtime Runtime
	Logger  *zap.Logger
	BaseDir string
}

// New returns an orchestrator rooted at baseDir.
func New(rt Runtime, logger *zap.Logger, baseDir string) *Orchestrator {
	return &Orchestrator{Runtime: rt, Logger: logger, BaseDir: baseDir}
}

// dockerfilePath is where the session Dockerfile lives; the build context is
// its directory.
func (o *Orchestrator) dockerfilePath() string {
	return filepath.Join(o.BaseDir, "config", "Dockerfile")
}

// Build builds the devcell image, writing the default Dockerfile first if the
// operator has not provided one. Proxy and registry settings are forwarded as
// build args.
func (o *Orchestrator) Build(ctx context.Context, cfg *config.Config) error {
	path := o.dockerfilePath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return &BuildError{Err: err}
		}
		if err := os.WriteFile(path, []byte(defaultDockerfile), 0o644); err != nil {
			return &BuildError{Err: err}
		}
		o.Logger.Debug("wrote default Dockerfile", zap.String("path", path))
	}

	buildArgs := map[string]*string{
		"HTTP_PROXY":    strPtr(cfg.HTTPProxy),
		"HTTPS_PROXY":   strPtr(cfg.HTTPSProxy),
		"NO_PROXY":      strPtr(cfg.NoProxy),
		"NPM_REGISTRY":  strPtr(cfg.NPMRegistry),
		"PIP_INDEX_URL": strPtr(cfg.PipIndexURL),
	}

	fmt.Printf("Building %s...\n", ImageTag)
	if err := o.Runtime.ImageBuild(ctx, filepath.Dir(path), filepath.Base(path), ImageTag, buildArgs); err != nil {
		return &BuildError{Err: err}
	}
	return nil
}

// Run starts the named container attached to this process and blocks until
// it exits, returning the container's exit code. The image is rebuilt only
// when rebuild is set or the image is absent. An already-running container of
// the same name is reported but not pre-empted; the daemon rejects duplicate
// names itself and that error is surfaced verbatim.
func (o *Orchestrator) Run(ctx context.Context, cfg *config.Config, bundle *provision.Bundle, rebuild bool, command []string) (int, error) {
	if rebuild || !o.Runtime.ImageExists(ctx, ImageTag) {
		if err := o.Build(ctx, cfg); err != nil {
			return 0, err
		}
	}

	if running, err := o.Runtime.ListRunning(ctx, ContainerName); err == nil && len(running) > 0 {
		fmt.Printf("Container %s is already running\n", running[0])
	}

	opts, err := o.runOptions(cfg, bundle, command)
	if err != nil {
		return 0, err
	}

	o.Logger.Debug("starting container",
		zap.String("name", ContainerName),
		zap.String("image", ImageTag),
		zap.String("bind", cfg.BindAddress))
	return o.Runtime.RunAttached(ctx, opts)
}

// Stop stops the named container; missing containers are a no-op.
func (o *Orchestrator) Stop(ctx context.Context) error {
	return o.Runtime.ContainerStop(ctx, ContainerName, stopTimeout)
}

// Remove tears the session down: stop, remove the container, and optionally
// the image. Idempotent end to end.
func (o *Orchestrator) Remove(ctx context.Context, alsoImage bool) error {
	if err := o.Runtime.ContainerStop(ctx, ContainerName, stopTimeout); err != nil {
		return err
	}
	if err := o.Runtime.ContainerRemove(ctx, ContainerName); err != nil {
		return err
	}
	if alsoImage {
		if err := o.Runtime.ImageRemove(ctx, ImageTag); err != nil {
			return err
		}
	}
	return nil
}

// runOptions assembles the container invocation from the resolved
// configuration and the staged credential bundle. Credential mounts are
// read-only; only the workspace is writable.
func (o *Orchestrator) runOptions(cfg *config.Config, bundle *provision.Bundle, command []string) (docker.RunOptions, error) {
	mounts := []mount.Mount{
		{Type: mount.TypeBind, Source: bundle.WorkspaceDir(), Target: "/workspace"},
		{Type: mount.TypeBind, Source: bundle.Dir(provision.Certs), Target: "/opt/devcell/certs", ReadOnly: true},
		{Type: mount.TypeBind, Source: bundle.Dir(provision.SSH), Target: "/home/dev/.ssh", ReadOnly: true},
		{Type: mount.TypeBind, Source: bundle.Dir(provision.AWS), Target: "/home/dev/.aws", ReadOnly: true},
	}

	bindings := nat.PortMap{}
	exposed := nat.PortSet{}
	for _, a := range cfg.Ports {
		// Services inside the container listen on the desired port; only the
		// host side moves on a conflict.
		port, err := nat.NewPort("tcp", strconv.Itoa(a.Desired))
		if err != nil {
			return docker.RunOptions{}, fmt.Errorf("invalid port %d: %w", a.Desired, err)
		}
		exposed[port] = struct{}{}
		bindings[port] = []nat.PortBinding{{
			HostIP:   cfg.BindAddress,
			HostPort: strconv.Itoa(a.Resolved),
		}}
	}

	env := []string{
		"AWS_REGION=" + cfg.AWSRegion,
		"BEDROCK_MODEL_ID=" + cfg.BedrockModel,
		"SSL_CERT_FILE=/opt/devcell/certs/ca-bundle.crt",
		"AWS_CA_BUNDLE=/opt/devcell/certs/ca-bundle.crt",
		"NODE_EXTRA_CA_CERTS=/opt/devcell/certs/ca-bundle.crt",
	}
	for _, kv := range [][2]string{
		{"HTTP_PROXY", cfg.HTTPProxy},
		{"HTTPS_PROXY", cfg.HTTPSProxy},
		{"NO_PROXY", cfg.NoProxy},
		{"NPM_CONFIG_REGISTRY", cfg.NPMRegistry},
		{"PIP_INDEX_URL", cfg.PipIndexURL},
		{"GIT_AUTHOR_NAME", cfg.GitName},
		{"GIT_COMMITTER_NAME", cfg.GitName},
		{"GIT_AUTHOR_EMAIL", cfg.GitEmail},
		{"GIT_COMMITTER_EMAIL", cfg.GitEmail},
	} {
		if kv[1] != "" {
			env = append(env, kv[0]+"="+kv[1])
		}
	}

	var memory int64
	if cfg.MemoryLimit != "" {
		m, err := units.RAMInBytes(cfg.MemoryLimit)
		if err != nil {
			return docker.RunOptions{}, fmt.Errorf("invalid memory limit %q: %w", cfg.MemoryLimit, err)
		}
		memory = m
	}
	var nanoCPUs int64
	if cfg.CPULimit != "" {
		f, err := strconv.ParseFloat(cfg.CPULimit, 64)
		if err != nil {
			return docker.RunOptions{}, fmt.Errorf("invalid cpu limit %q: %w", cfg.CPULimit, err)
		}
		nanoCPUs = int64(f * 1e9)
	}

	return docker.RunOptions{
		Name:         ContainerName,
		Image:        ImageTag,
		WorkDir:      "/workspace",
		Cmd:          command,
		Env:          env,
		Mounts:       mounts,
		PortBindings: bindings,
		ExposedPorts: exposed,
		Labels:       map[string]string{"devcell.managed": "true"},
		Memory:       memory,
		NanoCPUs:     nanoCPUs,
		ExtraHosts:   []string{"host.docker.internal:host-gateway"},
	}, nil
}

func strPtr(s string) *string { return &s }
