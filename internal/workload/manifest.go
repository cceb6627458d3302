package workload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ManifestName is the file Find looks for.
const ManifestName = "selfprof.toml"

// Manifest is a loaded workload description.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// Config mirrors the TOML layout:
//
//	[package]
//	name = "demo"
//
//	[profile]            # optional
//	events = ["default", "query-keys"]
//	dir = "profiles"
//	time_passes = true
//
//	[[item]]
//	name = "parse"
//	work = 40
//	deps = []
type Config struct {
	Package PackageConfig `toml:"package"`
	Profile ProfileConfig `toml:"profile"`
	Items   []ItemConfig  `toml:"item"`
}

type PackageConfig struct {
	Name string `toml:"name"`
}

// ProfileConfig holds profiling defaults; command-line flags override it.
type ProfileConfig struct {
	// Events lists event filter names; empty selects the default set.
	Events     []string `toml:"events"`
	Dir        string   `toml:"dir"`
	Mode       string   `toml:"mode"`
	TimePasses bool     `toml:"time_passes"`
}

// ItemConfig describes one unit of synthetic work.
type ItemConfig struct {
	Name string   `toml:"name"`
	Work uint64   `toml:"work"`
	Deps []string `toml:"deps"`
}

// Find walks up from startDir looking for ManifestName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
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

// Load reads and validates a manifest. It does not check the dependency
// graph; see Build.
func Load(path string) (*Manifest, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("package") {
		return nil, fmt.Errorf("%s: missing [package]", path)
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return nil, fmt.Errorf("%s: missing [package].name", path)
	}
	if len(cfg.Items) == 0 {
		return nil, fmt.Errorf("%s: no [[item]] entries", path)
	}
	for i, item := range cfg.Items {
		if strings.TrimSpace(item.Name) == "" {
			return nil, fmt.Errorf("%s: item #%d has no name", path, i+1)
		}
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &Manifest{
		Path:   abs,
		Root:   filepath.Dir(abs),
		Config: cfg,
	}, nil
}

// ProfileDir resolves [profile].dir against the manifest directory.
func (m *Manifest) ProfileDir() string {
	dir := m.Config.Profile.Dir
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(m.Root, dir)
}
