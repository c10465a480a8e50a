package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const manifestName = "trainplan.toml"

type projectManifest struct {
	Path   string
	Root   string
	Config manifestConfig
	meta   toml.MetaData
}

type manifestConfig struct {
	Plan     planConfig     `toml:"plan"`
	Cluster  clusterConfig  `toml:"cluster"`
	Validate validateConfig `toml:"validate"`
}

type planConfig struct {
	Fragments []string `toml:"fragments"`
	Output    string   `toml:"output"`
	Format    string   `toml:"format"`
}

type clusterConfig struct {
	Devices int64 `toml:"devices"`
}

type validateConfig struct {
	Strict           bool     `toml:"strict"`
	SchemaVersion    string   `toml:"schema-version"`
	SchemaExtensions []string `toml:"schema-extensions"`
}

func findManifest(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, manifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// loadManifest finds trainplan.toml walking up from startDir. ok is false
// when there is none.
func loadManifest(startDir string) (*projectManifest, bool, error) {
	path, ok, err := findManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, err := readManifest(path)
	if err != nil {
		return nil, true, err
	}
	return m, true, nil
}

func readManifest(path string) (*projectManifest, error) {
	var cfg manifestConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("cluster", "devices") && cfg.Cluster.Devices <= 0 {
		return nil, fmt.Errorf("%s: [cluster].devices must be positive", path)
	}
	for i, f := range cfg.Plan.Fragments {
		if strings.TrimSpace(f) == "" {
			return nil, fmt.Errorf("%s: [plan].fragments[%d] is empty", path, i)
		}
	}
	return &projectManifest{
		Path:   path,
		Root:   filepath.Dir(path),
		Config: cfg,
		meta:   meta,
	}, nil
}

// has reports whether key was set in the manifest.
func (m *projectManifest) has(key ...string) bool {
	return m != nil && m.meta.IsDefined(key...)
}

// resolvePath makes p relative to the manifest directory.
func (m *projectManifest) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Root, filepath.FromSlash(p))
}

func (m *projectManifest) fragments() []string {
	out := make([]string, len(m.Config.Plan.Fragments))
	for i, f := range m.Config.Plan.Fragments {
		out[i] = m.resolvePath(f)
	}
	return out
}
