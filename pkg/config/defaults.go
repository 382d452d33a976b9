package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/devcell-app/devcell/pkg/platform"
)

// builtinDefaults is the lowest layer of the merge. Platform-dependent keys
// (bind_address, socket_path) are deliberately absent so the platform layer
// can fill them only when nothing else has.
func builtinDefaults() map[string]string {
	return map[string]string{
		KeyRuntime:      "docker",
		KeyPortHTTP:     "3000",
		KeyPortNotebook: "8888",
		KeyPortCode:     "8443",
		KeyPortDebug:    "5678",
		KeyNPMRegistry:  "https://registry.npmjs.org",
		KeyPipIndexURL:  "https://pypi.org/simple",
		KeyAWSRegion:    "us-east-1",
	}
}

// platformDefaults returns the defaults for keys the earlier layers left
// unset. Exhaustive over platform.Kind.
func platformDefaults(kind platform.Kind) map[string]string {
	defaults := map[string]string{
		KeyBindAddress: "0.0.0.0",
		KeySocketPath:  "/var/run/docker.sock",
	}
	switch kind {
	case platform.MacOS:
		home, err := os.UserHomeDir()
		if err == nil {
			defaults[KeySocketPath] = filepath.Join(home, ".docker", "run", "docker.sock")
		}
	case platform.CloudWorkspace:
		// Managed workspaces are multi-tenant hosts; don't bind wide open.
		defaults[KeyBindAddress] = "127.0.0.1"
	case platform.WSL, platform.Ubuntu, platform.GenericLinux:
	case platform.Unsupported:
		// Unreachable: detection aborts before configuration resolves.
	}
	return defaults
}

// knownRegions is the curated set of regions with Bedrock Anthropic model
// availability. Anything else gets an advisory warning, not a failure.
var knownRegions = map[string]bool{
	"us-east-1":      true,
	"us-east-2":      true,
	"us-west-2":      true,
	"eu-west-1":      true,
	"eu-west-3":      true,
	"eu-central-1":   true,
	"ap-northeast-1": true,
	"ap-south-1":     true,
	"ap-southeast-1": true,
	"ap-southeast-2": true,
}

const baseModelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"

// defaultModelForRegion derives the model identifier from the resolved
// region: cross-region inference profiles are prefixed by geography.
func defaultModelForRegion(region string) string {
	switch {
	case strings.HasPrefix(region, "us-"):
		return "us." + baseModelID
	case strings.HasPrefix(region, "eu-"):
		return "eu." + baseModelID
	case strings.HasPrefix(region, "ap-"):
		return "apac." + baseModelID
	default:
		return baseModelID
	}
}
