package provision

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// manifest is the diagnostic record written after provisioning: which
// strategy satisfied each material kind, and any degradation warnings.
type manifest struct {
	GeneratedAt time.Time `yaml:"generated_at"`
	BaseDir     string    `yaml:"base_dir"`
	Results     []Result  `yaml:"results"`
	Warnings    []string  `yaml:"warnings,omitempty"`
}

// ManifestPath returns the manifest location under a base directory.
func ManifestPath(baseDir string) string {
	return filepath.Join(baseDir, "config", "provision-manifest.yaml")
}

func writeManifest(b *Bundle) error {
	m := manifest{
		GeneratedAt: time.Now().UTC(),
		BaseDir:     b.BaseDir,
		Results:     b.Results,
		Warnings:    b.Warnings,
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("failed to encode provisioning manifest: %w", err)
	}
	if err := os.WriteFile(ManifestPath(b.BaseDir), data, 0o644); err != nil {
		return fmt.Errorf("failed to write provisioning manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest from a prior provisioning run, if any.
func ReadManifest(baseDir string) (*Bundle, error) {
	data, err := os.ReadFile(ManifestPath(baseDir))
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse provisioning manifest: %w", err)
	}
	return &Bundle{BaseDir: m.BaseDir, Results: m.Results, Warnings: m.Warnings}, nil
}
