package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devcell-app/devcell/pkg/config"
	"github.com/devcell-app/devcell/pkg/docker"
	"github.com/devcell-app/devcell/pkg/platform"
	"github.com/devcell-app/devcell/pkg/ports"
	"github.com/devcell-app/devcell/pkg/provision"
)

// fakeRuntime records calls and scripts outcomes.
type fakeRuntime struct {
	imageExists bool
	buildErr    error
	buildCalls  int
	running     []string
	lastRun     docker.RunOptions
	runCalls    int
	exitCode    int
	stopped     []string
	removed     []string
	imageGone   bool
}

func (f *fakeRuntime) ImageExists(ctx context.Context, tag string) bool { return f.imageExists }

func (f *fakeRuntime) ImageBuild(ctx context.Context, contextDir, dockerfile, tag string, buildArgs map[string]*string) error {
	f.buildCalls++
	if f.buildErr != nil {
		return f.buildErr
	}
	f.imageExists = true
	return nil
}

func (f *fakeRuntime) ImageRemove(ctx context.Context, tag string) error {
	f.imageGone = true
	return nil
}

func (f *fakeRuntime) ContainerStop(ctx context.Context, name string, timeout time.Duration) error {
	f.stopped = append(f.stopped, name)
	return nil
}

func (f *fakeRuntime) ContainerRemove(ctx context.Context, name string) error {
	f.removed = append(f.removed, name)
	return nil
}

func (f *fakeRuntime) ListRunning(ctx context.Context, nameFilter string) ([]string, error) {
	return f.running, nil
}

func (f *fakeRuntime) RunAttached(ctx context.Context, opts docker.RunOptions) (int, error) {
	f.runCalls++
	f.lastRun = opts
	return f.exitCode, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Platform:    platform.Ubuntu,
		Runtime:     "docker",
		BindAddress: "0.0.0.0",
		Ports: ports.Assignments{
			{Name: config.PortHTTP, Desired: 3000, Resolved: 4000},
			{Name: config.PortNotebook, Desired: 8888, Resolved: 8888},
		},
		AWSRegion:    "us-east-1",
		BedrockModel: "us.anthropic.claude-3-5-sonnet-20241022-v2:0",
		GitName:      "Dev",
		GitEmail:     "dev@example.com",
		MemoryLimit:  "4g",
		CPULimit:     "2",
	}
}

func testBundle(t *testing.T) *provision.Bundle {
	t.Helper()
	base := t.TempDir()
	require.NoError(t, provision.EnsureLayout(base))
	return &provision.Bundle{BaseDir: base}
}

func newOrchestrator(t *testing.T, rt Runtime) *Orchestrator {
	t.Helper()
	return New(rt, zap.NewNop(), t.TempDir())
}

func TestRunSkipsBuildWhenImagePresent(t *testing.T) {
	rt := &fakeRuntime{imageExists: true}
	o := newOrchestrator(t, rt)

	_, err := o.Run(context.Background(), testConfig(), testBundle(t), false, nil)
	require.NoError(t, err)
	assert.Zero(t, rt.buildCalls, "run must not rebuild implicitly")
	assert.Equal(t, 1, rt.runCalls)
}

func TestRunBuildsWhenImageAbsent(t *testing.T) {
	rt := &fakeRuntime{imageExists: false}
	o := newOrchestrator(t, rt)

	_, err := o.Run(context.Background(), testConfig(), testBundle(t), false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rt.buildCalls)
}

func TestRunRebuildForced(t *testing.T) {
	rt := &fakeRuntime{imageExists: true}
	o := newOrchestrator(t, rt)

	_, err := o.Run(context.Background(), testConfig(), testBundle(t), true, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rt.buildCalls)
}

func TestBuildFailureAborts(t *testing.T) {
	rt := &fakeRuntime{buildErr: fmt.Errorf("step 4/9 failed")}
	o := newOrchestrator(t, rt)

	_, err := o.Run(context.Background(), testConfig(), testBundle(t), true, nil)
	require.Error(t, err)
	var be *BuildError
	assert.True(t, errors.As(err, &be))
	assert.Zero(t, rt.runCalls, "run must not proceed after a failed build")
}

func TestBuildWritesDefaultDockerfile(t *testing.T) {
	rt := &fakeRuntime{}
	o := newOrchestrator(t, rt)

	require.NoError(t, o.Build(context.Background(), testConfig()))

	content, err := os.ReadFile(o.dockerfilePath())
	require.NoError(t, err)
	assert.Contains(t, string(content), "FROM ubuntu")

	// An operator-customized Dockerfile is never overwritten.
	require.NoError(t, os.WriteFile(o.dockerfilePath(), []byte("FROM alpine\n"), 0o644))
	require.NoError(t, o.Build(context.Background(), testConfig()))
	content, err = os.ReadFile(o.dockerfilePath())
	require.NoError(t, err)
	assert.Equal(t, "FROM alpine\n", string(content))
}

func TestRunExitCodePropagated(t *testing.T) {
	rt := &fakeRuntime{imageExists: true, exitCode: 42}
	o := newOrchestrator(t, rt)

	code, err := o.Run(context.Background(), testConfig(), testBundle(t), false, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, code)
}

func TestRunOptionsAssembly(t *testing.T) {
	rt := &fakeRuntime{imageExists: true}
	o := newOrchestrator(t, rt)
	bundle := testBundle(t)

	_, err := o.Run(context.Background(), testConfig(), bundle, false, []string{"bash", "-l"})
	require.NoError(t, err)
	opts := rt.lastRun

	assert.Equal(t, ContainerName, opts.Name)
	assert.Equal(t, ImageTag, opts.Image)
	assert.Equal(t, []string{"bash", "-l"}, opts.Cmd)

	// Host side remapped, container side canonical.
	httpPort, err := nat.NewPort("tcp", "3000")
	require.NoError(t, err)
	require.Contains(t, opts.PortBindings, httpPort)
	assert.Equal(t, "4000", opts.PortBindings[httpPort][0].HostPort)
	assert.Equal(t, "0.0.0.0", opts.PortBindings[httpPort][0].HostIP)

	// Credential mounts are read-only; the workspace is not.
	var roTargets []string
	for _, m := range opts.Mounts {
		if m.ReadOnly {
			roTargets = append(roTargets, m.Target)
		} else {
			assert.Equal(t, "/workspace", m.Target)
		}
	}
	assert.ElementsMatch(t, roTargets,
		[]string{"/opt/devcell/certs", "/home/dev/.ssh", "/home/dev/.aws"})

	assert.Contains(t, opts.Env, "AWS_REGION=us-east-1")
	assert.Contains(t, opts.Env, "GIT_AUTHOR_NAME=Dev")
	assert.Equal(t, int64(4*1024*1024*1024), opts.Memory)
	assert.Equal(t, int64(2e9), opts.NanoCPUs)
}

func TestRemoveIdempotent(t *testing.T) {
	rt := &fakeRuntime{}
	o := newOrchestrator(t, rt)

	require.NoError(t, o.Remove(context.Background(), true))
	require.NoError(t, o.Remove(context.Background(), true))
	assert.True(t, rt.imageGone)
	assert.Equal(t, []string{ContainerName, ContainerName}, rt.removed)
}
