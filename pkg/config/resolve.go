package config

import (
	"errors"
	"net"
	"os"
	"regexp"
	"strconv"

	units "github.com/docker/go-units"
	gitconfig "github.com/go-git/go-git/v5/config"
	"go.uber.org/zap"

	"github.com/devcell-app/devcell/pkg/platform"
	"github.com/devcell-app/devcell/pkg/ports"
)

// hostnameRe accepts DNS-style hostnames for the bind address. Underscores
// are rejected on purpose so unresolved placeholders like CHANGE_ME fail
// validation instead of reaching the container runtime.
var hostnameRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?$`)

// Resolver merges all configuration layers into a validated Config.
//
// The environment is read only through Lookup so tests can substitute it;
// no other component touches the process environment.
type Resolver struct {
	Lookup func(string) (string, bool)
	Ports  *ports.Resolver
	Logger *zap.Logger

	// GitIdentity supplies a fallback git name/email when neither the file
	// nor the environment sets one. Defaults to the host's global git config.
	GitIdentity func() (name, email string)
}

// NewResolver returns a resolver reading the real process environment and
// host listener table.
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{
		Lookup:      os.LookupEnv,
		Ports:       ports.NewResolver(logger),
		Logger:      logger,
		GitIdentity: hostGitIdentity,
	}
}

// Resolve produces the final configuration for one invocation.
//
// Merge order, lowest to highest precedence: built-in defaults, the file at
// filePath (if present), environment variables, platform defaults for keys
// still unset, then the port-conflict pass which overrides ports last.
func (r *Resolver) Resolve(filePath string, kind platform.Kind) (*Config, error) {
	values := builtinDefaults()

	fileValues, unknown, err := loadFile(filePath)
	if err != nil {
		return nil, err
	}
	for _, key := range unknown {
		r.Logger.Warn("ignoring unrecognized configuration key",
			zap.String("key", key), zap.String("file", filePath))
	}
	for key, value := range fileValues {
		values[key] = value
	}

	for key := range recognizedKeys {
		if v, ok := r.Lookup(EnvKey(key)); ok && v != "" {
			values[key] = v
		}
	}

	for key, value := range platformDefaults(kind) {
		if values[key] == "" {
			values[key] = value
		}
	}

	cfg, err := r.validate(values, kind)
	if err != nil {
		return nil, err
	}

	if cfg.GitName == "" || cfg.GitEmail == "" {
		name, email := r.GitIdentity()
		if cfg.GitName == "" {
			cfg.GitName = name
		}
		if cfg.GitEmail == "" {
			cfg.GitEmail = email
		}
	}

	if !knownRegions[cfg.AWSRegion] {
		r.Logger.Warn("region is outside the known-good Bedrock set; model invocation may fail",
			zap.String("region", cfg.AWSRegion))
	}
	if cfg.BedrockModel == "" {
		cfg.BedrockModel = defaultModelForRegion(cfg.AWSRegion)
	}

	desired := make(map[string]int, len(portKeys))
	for name, key := range portKeys {
		desired[name], _ = strconv.Atoi(values[key])
	}
	cfg.Ports = r.Ports.Resolve(desired)

	// A remap can still collide with another resolved port; that is a hard
	// configuration error, not something to silently run with.
	seen := make(map[int]string)
	for _, a := range cfg.Ports {
		if prev, dup := seen[a.Resolved]; dup {
			return nil, &ValidationError{
				Key:    portKeys[a.Name],
				Value:  strconv.Itoa(a.Resolved),
				Reason: "resolved port collides with " + prev,
			}
		}
		seen[a.Resolved] = a.Name
	}

	return cfg, nil
}

// validate converts the merged string map into a typed Config, collecting
// every invalid value rather than stopping at the first.
func (r *Resolver) validate(values map[string]string, kind platform.Kind) (*Config, error) {
	var errs []error
	invalid := func(key, reason string) {
		errs = append(errs, &ValidationError{Key: key, Value: values[key], Reason: reason})
	}

	runtimeSel := values[KeyRuntime]
	if runtimeSel != "docker" && runtimeSel != "podman" {
		invalid(KeyRuntime, "must be docker or podman")
	}

	bind := values[KeyBindAddress]
	if net.ParseIP(bind) == nil && !hostnameRe.MatchString(bind) {
		invalid(KeyBindAddress, "not an IP literal or hostname")
	}

	for _, key := range []string{KeyPortHTTP, KeyPortNotebook, KeyPortCode, KeyPortDebug} {
		port, err := strconv.Atoi(values[key])
		if err != nil {
			invalid(key, "not a number")
			continue
		}
		if port < 1 || port > 65535 {
			invalid(key, "out of range 1-65535")
		}
	}

	seen := make(map[string]string)
	for name, key := range portKeys {
		if prev, dup := seen[values[key]]; dup {
			invalid(key, "duplicates "+portKeys[prev])
		} else {
			seen[values[key]] = name
		}
	}

	if v := values[KeyMemoryLimit]; v != "" {
		if _, err := units.RAMInBytes(v); err != nil {
			invalid(KeyMemoryLimit, "not a memory size (e.g. 4g, 512m)")
		}
	}
	if v := values[KeyCPULimit]; v != "" {
		if f, err := strconv.ParseFloat(v, 64); err != nil || f <= 0 {
			invalid(KeyCPULimit, "not a positive number")
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &Config{
		Platform:     kind,
		Runtime:      runtimeSel,
		BindAddress:  bind,
		SocketPath:   values[KeySocketPath],
		HTTPProxy:    values[KeyHTTPProxy],
		HTTPSProxy:   values[KeyHTTPSProxy],
		NoProxy:      values[KeyNoProxy],
		NPMRegistry:  values[KeyNPMRegistry],
		PipIndexURL:  values[KeyPipIndexURL],
		AWSRegion:    values[KeyAWSRegion],
		BedrockModel: values[KeyBedrockModel],
		GitName:      values[KeyGitName],
		GitEmail:     values[KeyGitEmail],
		MemoryLimit:  values[KeyMemoryLimit],
		CPULimit:     values[KeyCPULimit],
	}, nil
}

// hostGitIdentity reads user.name and user.email from the host's global git
// configuration. Missing config is fine; identity stays empty.
func hostGitIdentity() (string, string) {
	cfg, err := gitconfig.LoadConfig(gitconfig.GlobalScope)
	if err != nil {
		return "", ""
	}
	return cfg.User.Name, cfg.User.Email
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
