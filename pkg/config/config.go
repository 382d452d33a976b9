// Package config resolves the session configuration from layered sources:
// built-in defaults, the configuration file, process environment, platform
// defaults, and finally the port-conflict pass.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devcell-app/devcell/pkg/platform"
	"github.com/devcell-app/devcell/pkg/ports"
)

// Recognized configuration keys. The environment variable for key K is
// "DEVCELL_" + upper(K), e.g. DEVCELL_PORT_HTTP.
const (
	KeyRuntime      = "runtime"
	KeyBindAddress  = "bind_address"
	KeyPortHTTP     = "port_http"
	KeyPortNotebook = "port_notebook"
	KeyPortCode     = "port_code"
	KeyPortDebug    = "port_debug"
	KeyHTTPProxy    = "http_proxy"
	KeyHTTPSProxy   = "https_proxy"
	KeyNoProxy      = "no_proxy"
	KeyNPMRegistry  = "npm_registry"
	KeyPipIndexURL  = "pip_index_url"
	KeyAWSRegion    = "aws_region"
	KeyBedrockModel = "bedrock_model"
	KeySocketPath   = "socket_path"
	KeyGitName      = "git_name"
	KeyGitEmail     = "git_email"
	KeyMemoryLimit  = "memory_limit"
	KeyCPULimit     = "cpu_limit"
)

// Logical port names used across the resolver and the orchestrator.
const (
	PortHTTP     = "http"
	PortNotebook = "notebook"
	PortCode     = "code"
	PortDebug    = "debug"
)

// portKeys maps logical port names to their configuration keys.
var portKeys = map[string]string{
	PortHTTP:     KeyPortHTTP,
	PortNotebook: KeyPortNotebook,
	PortCode:     KeyPortCode,
	PortDebug:    KeyPortDebug,
}

// Config is the fully merged and validated configuration for one invocation.
// It is built fresh each run and never written back.
type Config struct {
	Platform platform.Kind

	Runtime     string
	BindAddress string
	SocketPath  string

	Ports ports.Assignments

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string

	NPMRegistry string
	PipIndexURL string

	AWSRegion    string
	BedrockModel string

	GitName  string
	GitEmail string

	MemoryLimit string
	CPULimit    string
}

// Port returns the resolved port for a logical name.
func (c *Config) Port(name string) int {
	return c.Ports.Get(name)
}

// EnvKey returns the environment variable that overrides a configuration key.
func EnvKey(key string) string {
	return "DEVCELL_" + strings.ToUpper(key)
}

// DefaultPath returns the well-known configuration file location,
// <base>/config/devcell.conf under the user's home.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".devcell", "config", "devcell.conf")
}

// ValidationError describes one invalid merged configuration value.
type ValidationError struct {
	Key    string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%q (%s)", e.Key, e.Value, e.Reason)
}
