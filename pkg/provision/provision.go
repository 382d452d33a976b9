// Package provision stages host credentials, certificates and SSH material
// into the devcell base directory for read-only mounting into the container.
package provision

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/devcell-app/devcell/pkg/platform"
)

// Kind identifies one class of staged material.
type Kind string

const (
	Certs Kind = "certs"
	SSH   Kind = "ssh"
	AWS   Kind = "aws"
)

// AllKinds is the provisioning order for shell/start sessions. Build only
// needs Certs.
var AllKinds = []Kind{Certs, SSH, AWS}

// Subdirectories of the base directory. All created 0755.
var layout = []string{
	"workspace", "config", "cache", "certs", "ssh", "aws", "logs", "backups",
}

// Result records the outcome of one provisioning strategy attempt.
type Result struct {
	Kind     Kind   `yaml:"kind"`
	Strategy string `yaml:"strategy"`
	Applied  bool   `yaml:"applied"`
	Detail   string `yaml:"detail,omitempty"`
}

// Bundle is the staged credential tree plus a record of how each material
// kind was satisfied.
type Bundle struct {
	BaseDir  string   `yaml:"base_dir"`
	Results  []Result `yaml:"results"`
	Warnings []string `yaml:"warnings,omitempty"`
}

// Dir returns the staging directory for a material kind.
func (b *Bundle) Dir(kind Kind) string {
	return filepath.Join(b.BaseDir, string(kind))
}

// WorkspaceDir returns the read-write workspace directory.
func (b *Bundle) WorkspaceDir() string {
	return filepath.Join(b.BaseDir, "workspace")
}

// Provisioner copies credential material from well-known host locations into
// the staging tree, falling back to synthetic defaults where the host has
// nothing to offer.
type Provisioner struct {
	Logger *zap.Logger

	// HomeDir is the host home directory to discover material under.
	HomeDir string
	// Lookup reads environment variables (AWS key material fallback).
	Lookup func(string) (string, bool)
}

// New returns a Provisioner reading the real host.
func New(logger *zap.Logger) *Provisioner {
	home, _ := os.UserHomeDir()
	return &Provisioner{
		Logger:  logger,
		HomeDir: home,
		Lookup:  os.LookupEnv,
	}
}

// Provision stages the requested material kinds under baseDir. Strategies for
// a kind are tried in order; the first success wins and is recorded. A kind
// with no working strategy degrades to a warning, never an error: missing
// source material must not block a session.
func (p *Provisioner) Provision(kind platform.Kind, baseDir string, kinds ...Kind) (*Bundle, error) {
	if len(kinds) == 0 {
		kinds = AllKinds
	}
	if err := EnsureLayout(baseDir); err != nil {
		return nil, err
	}

	bundle := &Bundle{BaseDir: baseDir}
	for _, k := range kinds {
		destDir := bundle.Dir(k)
		applied := false
		for _, s := range p.strategies(k, kind) {
			ok, detail, err := s.Apply(p, destDir)
			if err != nil {
				return nil, fmt.Errorf("provisioning %s via %s: %w", k, s.Name, err)
			}
			if !ok {
				continue
			}
			// Copies do not preserve modes across platforms; the policy is
			// re-applied after every strategy, correct source modes or not.
			if err := applyPermissions(k, destDir); err != nil {
				return nil, fmt.Errorf("enforcing permissions under %s: %w", destDir, err)
			}
			bundle.Results = append(bundle.Results, Result{
				Kind: k, Strategy: s.Name, Applied: true, Detail: detail,
			})
			if s.Warning != "" {
				bundle.Warnings = append(bundle.Warnings, s.Warning)
				p.Logger.Warn(s.Warning, zap.String("kind", string(k)))
			}
			p.Logger.Debug("material provisioned",
				zap.String("kind", string(k)),
				zap.String("strategy", s.Name),
				zap.String("detail", detail))
			applied = true
			break
		}
		if !applied {
			warning := fmt.Sprintf("no source found for %s material; container starts without it", k)
			bundle.Warnings = append(bundle.Warnings, warning)
			bundle.Results = append(bundle.Results, Result{Kind: k, Strategy: "none"})
			p.Logger.Warn(warning)
		}
	}

	if err := writeManifest(bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

// EnsureLayout creates the base directory tree.
func EnsureLayout(baseDir string) error {
	for _, sub := range layout {
		if err := os.MkdirAll(filepath.Join(baseDir, sub), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Join(baseDir, sub), err)
		}
	}
	return nil
}

// DefaultBaseDir is ~/.devcell.
func DefaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".devcell")
}

// applyPermissions enforces the per-kind mode policy on every file under dir:
// private key material 0600, public material and configs 0644.
func applyPermissions(kind Kind, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		return os.Chmod(path, fileMode(kind, info.Name()))
	})
}

// fileMode classifies a staged file's sensitivity by kind and name.
func fileMode(kind Kind, name string) os.FileMode {
	switch kind {
	case AWS:
		if name == "credentials" {
			return 0o600
		}
	case SSH:
		if strings.HasPrefix(name, "id_") && !strings.HasSuffix(name, ".pub") {
			return 0o600
		}
	case Certs:
	}
	return 0o644
}

// copyFile copies src to dst, creating dst's directory if needed. The mode is
// temporary; applyPermissions settles the final mode.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
