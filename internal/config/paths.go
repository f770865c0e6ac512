package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths holds the XDG-style directories wolo writes to.
type Paths struct {
	Data   string // XDG_DATA_HOME/wolo
	Config string // XDG_CONFIG_HOME/wolo
	Cache  string // XDG_CACHE_HOME/wolo
	State  string // XDG_STATE_HOME/wolo
}

// GetPaths resolves the standard directories, honoring XDG overrides.
func GetPaths() *Paths {
	return &Paths{
		Data:   xdgDir("XDG_DATA_HOME", ".local", "share"),
		Config: xdgDir("XDG_CONFIG_HOME", ".config"),
		Cache:  xdgDir("XDG_CACHE_HOME", ".cache"),
		State:  xdgDir("XDG_STATE_HOME", ".local", "state"),
	}
}

// xdgDir resolves one XDG base directory plus the wolo suffix: the env
// override when set, the conventional $HOME subpath otherwise. Windows
// collapses everything under APPDATA.
func xdgDir(envKey string, homeParts ...string) string {
	base := os.Getenv(envKey)
	if base == "" {
		if runtime.GOOS == "windows" {
			base = os.Getenv("APPDATA")
		} else {
			base = filepath.Join(append([]string{os.Getenv("HOME")}, homeParts...)...)
		}
	}
	return filepath.Join(base, "wolo")
}

// EnsurePaths creates every directory that doesn't exist yet.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Data, p.Config, p.Cache, p.State} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// StoragePath is where session data lives.
func (p *Paths) StoragePath() string {
	return filepath.Join(p.Data, "storage")
}

// AuthPath is where stored credentials live.
func (p *Paths) AuthPath() string {
	return filepath.Join(p.Data, "auth.json")
}

// GlobalConfigPath is the global config file, the second-lowest-priority
// layer config.Load merges.
func GlobalConfigPath() string {
	return filepath.Join(GetPaths().Config, "config.yaml")
}

// ProjectConfigPath is a project's config file, layered ahead of
// environment variables.
func ProjectConfigPath(directory string) string {
	return filepath.Join(directory, ".wolo", "config.yaml")
}
