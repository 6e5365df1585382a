package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// manifestName is written next to the config file it pins.
const manifestName = ".checksums"

const manifestVersion = 2

// ErrNotLocked means no manifest sits next to the config file.
var ErrNotLocked = errors.New("config file is not locked")

// Manifest pins one config file to its BLAKE3 digest.
type Manifest struct {
	Version  int    `yaml:"version"`
	File     string `yaml:"file"`
	BLAKE3   string `yaml:"blake3"`
	LockedAt string `yaml:"locked_at"`
}

// LockReport describes one "config lock" run.
type LockReport struct {
	ConfigFile   string
	ManifestPath string
	Digest       string
	Written      bool
}

// ManifestPath returns where the manifest for configFile lives.
func ManifestPath(configFile string) string {
	return filepath.Join(filepath.Dir(configFile), manifestName)
}

func digestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// LockConfigFile records the digest of configFile in its manifest.
// With dryRun the digest is computed and reported but nothing is written.
func LockConfigFile(configFile string, dryRun bool) (*LockReport, error) {
	digest, err := digestFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", configFile, err)
	}

	report := &LockReport{
		ConfigFile:   configFile,
		ManifestPath: ManifestPath(configFile),
		Digest:       digest,
	}
	if dryRun {
		return report, nil
	}

	data, err := yaml.Marshal(Manifest{
		Version:  manifestVersion,
		File:     filepath.Base(configFile),
		BLAKE3:   digest,
		LockedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	// 0600: the manifest is the trust anchor for the config file
	if err := os.WriteFile(report.ManifestPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	report.Written = true
	return report, nil
}

// VerifyConfigFile checks configFile against its manifest.
// Returns ErrNotLocked when there is no manifest to check against.
func VerifyConfigFile(configFile string) error {
	manifest, err := readManifest(ManifestPath(configFile))
	if err != nil {
		return err
	}

	name := filepath.Base(configFile)
	if manifest.File != name {
		return fmt.Errorf("manifest %s locks %q, not %q\n"+
			"Run: interactions-gw config lock --config %s", ManifestPath(configFile), manifest.File, name, configFile)
	}

	digest, err := digestFile(configFile)
	if err != nil {
		return fmt.Errorf("verify %s: %w", configFile, err)
	}
	if digest != manifest.BLAKE3 {
		return fmt.Errorf("config verification failed for %s: digest %s does not match locked %s\n"+
			"This indicates tampering or unauthorized modification.\n"+
			"If you edited this file intentionally, run: interactions-gw config lock --config %s",
			configFile, digest, manifest.BLAKE3, configFile)
	}
	return nil
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotLocked
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("manifest %s: unsupported version %d", path, m.Version)
	}
	return &m, nil
}
