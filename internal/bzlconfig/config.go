// Package bzlconfig provides unified configuration loading for bzlnav
// tools.
//
// It supports two configuration formats:
//   - bzlnav.star: dynamic Starlark configuration
//   - bzlnav.toml: simple, declarative TOML configuration
//
// Configuration files are discovered by walking up the directory tree
// from the starting directory, stopping at the enclosing Bazel
// workspace or git repository. The BZLNAV_CONFIG environment variable
// overrides discovery entirely.
package bzlconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config file names.
const (
	// ConfigStarlark is the Starlark config filename.
	ConfigStarlark = "bzlnav.star"
	// ConfigTOML is the TOML config filename.
	ConfigTOML = "bzlnav.toml"
)

// EnvConfig is the environment variable for specifying the config file
// path directly.
const EnvConfig = "BZLNAV_CONFIG"

// ErrConflict is returned when both config files exist in the same
// directory.
var ErrConflict = errors.New("multiple config files found in the same directory; use only one")

// Config is the unified bzlnav configuration.
type Config struct {
	// Bazel configures how the Bazel server is reached.
	Bazel BazelConfig `json:"bazel" toml:"bazel"`

	// Completion configures label completion behavior.
	Completion CompletionConfig `json:"completion" toml:"completion"`

	// Cache configures the persistent info cache.
	Cache CacheConfig `json:"cache" toml:"cache"`
}

// BazelConfig configures the Bazel client.
type BazelConfig struct {
	// Path is the bazel binary to invoke.
	Path string `json:"path" toml:"path"`

	// QueryOutputBase redirects queries to a dedicated output base so
	// they never contend with interactive builds.
	QueryOutputBase string `json:"query_output_base" toml:"query_output_base"`

	// Timeout bounds each bazel invocation (e.g. "30s", "2m").
	// Zero means no bound.
	Timeout Duration `json:"timeout" toml:"timeout"`
}

// CompletionConfig configures label completion.
type CompletionConfig struct {
	// DisableQueries turns off bazel query for target completion;
	// completion then offers only what the filesystem shows.
	DisableQueries bool `json:"disable_queries" toml:"disable_queries"`
}

// CacheConfig configures the persistent info cache.
type CacheConfig struct {
	// Disable turns the cache off; every process asks the server.
	Disable bool `json:"disable" toml:"disable"`

	// Dir overrides the cache directory.
	Dir string `json:"dir" toml:"dir"`
}

// Duration wraps time.Duration for TOML/JSON string parsing.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	if d.Duration == 0 {
		return nil, nil
	}
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Bazel: BazelConfig{
			Path: "bazel",
		},
	}
}

// LoadConfig loads configuration from the specified path. The format is
// picked by file extension.
func LoadConfig(path string) (*Config, error) {
	switch ext := filepath.Ext(path); ext {
	case ".toml":
		return LoadTOMLConfig(path)
	case ".star":
		return LoadStarlarkConfig(path, DefaultStarlarkTimeout)
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s (expected .star or .toml)", ext)
	}
}

// Discover searches for a configuration file.
//
// Resolution order:
//  1. If BZLNAV_CONFIG is set, load that path.
//  2. Walk up from startDir looking for bzlnav.star or bzlnav.toml,
//     stopping at the enclosing Bazel workspace or git repository.
//
// Both files in the same directory is an error. With no config found,
// Discover returns (DefaultConfig(), "", nil).
func Discover(startDir string) (*Config, string, error) {
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		cfg, err := LoadConfig(envPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading config from %s: %w", EnvConfig, err)
		}
		return cfg, envPath, nil
	}

	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("getting working directory: %w", err)
		}
	}
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path: %w", err)
	}

	stop := findScopeRoot(absDir)

	dir := absDir
	for {
		configPath, err := findConfigInDir(dir)
		if err != nil {
			return nil, "", err
		}
		if configPath != "" {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return nil, "", err
			}
			return cfg, configPath, nil
		}

		if stop != "" && dir == stop {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return DefaultConfig(), "", nil
}

// findConfigInDir looks for config files in one directory. Exactly one
// may exist.
func findConfigInDir(dir string) (string, error) {
	starPath := filepath.Join(dir, ConfigStarlark)
	tomlPath := filepath.Join(dir, ConfigTOML)

	starExists := fileExists(starPath)
	tomlExists := fileExists(tomlPath)

	switch {
	case starExists && tomlExists:
		return "", fmt.Errorf("%w: found %s and %s in %s", ErrConflict, ConfigStarlark, ConfigTOML, dir)
	case starExists:
		return starPath, nil
	case tomlExists:
		return tomlPath, nil
	}
	return "", nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// scopeMarkers bound config discovery: a config above the workspace or
// repository a file belongs to should not leak into it.
var scopeMarkers = []string{
	"MODULE.bazel",
	"WORKSPACE",
	"WORKSPACE.bazel",
	".git",
}

// findScopeRoot returns the nearest ancestor of startDir (inclusive)
// holding a workspace or repository marker, or "" when there is none.
func findScopeRoot(startDir string) string {
	dir := startDir
	for {
		for _, marker := range scopeMarkers {
			if fileExists(filepath.Join(dir, marker)) {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
