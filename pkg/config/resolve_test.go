package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devcell-app/devcell/pkg/platform"
	"github.com/devcell-app/devcell/pkg/ports"
)

// noListeners is a ListenerSource with an empty table.
type noListeners struct{}

func (noListeners) Name() string                    { return "fake" }
func (noListeners) Available() bool                 { return true }
func (noListeners) Listening() (map[int]bool, error) { return map[int]bool{}, nil }

// busyPorts reports the given ports as occupied.
type busyPorts map[int]bool

func (busyPorts) Name() string                      { return "fake" }
func (busyPorts) Available() bool                   { return true }
func (b busyPorts) Listening() (map[int]bool, error) { return b, nil }

func testResolver(env map[string]string, src ports.ListenerSource) *Resolver {
	return &Resolver{
		Lookup: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
		Ports:       ports.NewResolverWithSources(zap.NewNop(), src),
		Logger:      zap.NewNop(),
		GitIdentity: func() (string, string) { return "", "" },
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devcell.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolveDefaults(t *testing.T) {
	r := testResolver(nil, noListeners{})
	cfg, err := r.Resolve(filepath.Join(t.TempDir(), "absent.conf"), platform.Ubuntu)
	require.NoError(t, err)

	assert.Equal(t, "docker", cfg.Runtime)
	assert.Equal(t, "0.0.0.0", cfg.BindAddress)
	assert.Equal(t, 3000, cfg.Port(PortHTTP))
	assert.Equal(t, 8888, cfg.Port(PortNotebook))
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, "/var/run/docker.sock", cfg.SocketPath)
}

func TestResolvePrecedenceEnvOverFileOverDefaults(t *testing.T) {
	path := writeConfig(t, "port_http = 3100\nnpm_registry = https://npm.corp.example\n")
	env := map[string]string{"DEVCELL_PORT_HTTP": "3200"}

	cfg, err := testResolver(env, noListeners{}).Resolve(path, platform.Ubuntu)
	require.NoError(t, err)

	assert.Equal(t, 3200, cfg.Port(PortHTTP), "env wins over file")
	assert.Equal(t, "https://npm.corp.example", cfg.NPMRegistry, "file wins over defaults")
	assert.Equal(t, 8888, cfg.Port(PortNotebook), "defaults fill the rest")
}

func TestResolvePlatformDefaultsOnlyForUnsetKeys(t *testing.T) {
	path := writeConfig(t, "socket_path = /custom/docker.sock\n")
	cfg, err := testResolver(nil, noListeners{}).Resolve(path, platform.MacOS)
	require.NoError(t, err)
	assert.Equal(t, "/custom/docker.sock", cfg.SocketPath,
		"file value must survive the platform layer")
}

func TestResolveMacOSDefaults(t *testing.T) {
	// Scenario: no config file, no env, platform macos.
	cfg, err := testResolver(nil, noListeners{}).
		Resolve(filepath.Join(t.TempDir(), "absent.conf"), platform.MacOS)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.BindAddress)
	assert.True(t, strings.HasSuffix(cfg.SocketPath, filepath.Join(".docker", "run", "docker.sock")),
		"socket path %q should be the macOS Docker Desktop socket", cfg.SocketPath)
}

func TestResolveRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non-numeric port", map[string]string{"DEVCELL_PORT_HTTP": "eight"}},
		{"port zero", map[string]string{"DEVCELL_PORT_HTTP": "0"}},
		{"port too large", map[string]string{"DEVCELL_PORT_DEBUG": "70000"}},
		{"duplicate ports", map[string]string{"DEVCELL_PORT_HTTP": "8888"}},
		{"unknown runtime", map[string]string{"DEVCELL_RUNTIME": "containerd"}},
		{"placeholder bind address", map[string]string{"DEVCELL_BIND_ADDRESS": "CHANGE_ME"}},
		{"garbage memory limit", map[string]string{"DEVCELL_MEMORY_LIMIT": "lots"}},
		{"negative cpu limit", map[string]string{"DEVCELL_CPU_LIMIT": "-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testResolver(tt.env, noListeners{}).
				Resolve(filepath.Join(t.TempDir(), "absent.conf"), platform.Ubuntu)
			require.Error(t, err)
			assert.True(t, IsValidation(err), "want ValidationError, got %v", err)
		})
	}
}

func TestResolvePortConflictPass(t *testing.T) {
	// Scenario: http:3000 occupied on the host, notebook:8888 free.
	cfg, err := testResolver(nil, busyPorts{3000: true}).
		Resolve(filepath.Join(t.TempDir(), "absent.conf"), platform.Ubuntu)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Port(PortHTTP))
	assert.Equal(t, 8888, cfg.Port(PortNotebook))
	assert.True(t, cfg.Ports.Remapped())
}

func TestResolveRemapCollisionFails(t *testing.T) {
	// notebook desired 4000, http 3000 occupied and remapped onto 4000.
	env := map[string]string{"DEVCELL_PORT_NOTEBOOK": "4000"}
	_, err := testResolver(env, busyPorts{3000: true}).
		Resolve(filepath.Join(t.TempDir(), "absent.conf"), platform.Ubuntu)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestResolveDerivedModel(t *testing.T) {
	tests := []struct {
		region string
		prefix string
	}{
		{"us-east-1", "us."},
		{"eu-central-1", "eu."},
		{"ap-southeast-2", "apac."},
	}
	for _, tt := range tests {
		t.Run(tt.region, func(t *testing.T) {
			env := map[string]string{"DEVCELL_AWS_REGION": tt.region}
			cfg, err := testResolver(env, noListeners{}).
				Resolve(filepath.Join(t.TempDir(), "absent.conf"), platform.Ubuntu)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(cfg.BedrockModel, tt.prefix),
				"model %q should carry prefix %q", cfg.BedrockModel, tt.prefix)
		})
	}
}

func TestResolveExplicitModelNotDerived(t *testing.T) {
	env := map[string]string{"DEVCELL_BEDROCK_MODEL": "anthropic.claude-3-haiku-20240307-v1:0"}
	cfg, err := testResolver(env, noListeners{}).
		Resolve(filepath.Join(t.TempDir(), "absent.conf"), platform.Ubuntu)
	require.NoError(t, err)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", cfg.BedrockModel)
}

func TestResolveGitIdentityFallback(t *testing.T) {
	r := testResolver(nil, noListeners{})
	r.GitIdentity = func() (string, string) { return "Dev Eloper", "dev@example.com" }

	cfg, err := r.Resolve(filepath.Join(t.TempDir(), "absent.conf"), platform.Ubuntu)
	require.NoError(t, err)
	assert.Equal(t, "Dev Eloper", cfg.GitName)
	assert.Equal(t, "dev@example.com", cfg.GitEmail)

	// Explicit config wins over the host identity.
	env := map[string]string{"DEVCELL_GIT_NAME": "Other"}
	r2 := testResolver(env, noListeners{})
	r2.GitIdentity = func() (string, string) { return "Dev Eloper", "dev@example.com" }
	cfg2, err := r2.Resolve(filepath.Join(t.TempDir(), "absent.conf"), platform.Ubuntu)
	require.NoError(t, err)
	assert.Equal(t, "Other", cfg2.GitName)
}

func TestParseFile(t *testing.T) {
	content := `# comment
[network]
port_http = 3100

bind_address=10.0.0.1
mystery_key = whatever
`
	values, unknown, err := parseFile(strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "3100", values[KeyPortHTTP])
	assert.Equal(t, "10.0.0.1", values[KeyBindAddress])
	assert.Equal(t, []string{"mystery_key"}, unknown)
}

func TestParseFileRejectsGarbageLine(t *testing.T) {
	_, _, err := parseFile(strings.NewReader("this is not a pair\n"))
	require.Error(t, err)
}

func TestWriteTemplateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "devcell.conf")
	require.NoError(t, WriteTemplate(path))

	// Overwrites unconditionally.
	require.NoError(t, WriteTemplate(path))

	// Every line in the template is a comment, a section, or blank, so the
	// parsed overlay must be empty.
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	values, unknown, err := parseFile(f)
	require.NoError(t, err)
	assert.Empty(t, values)
	assert.Empty(t, unknown)
}
