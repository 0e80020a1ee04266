package bzlconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.starlark.net/starlark"
)

// DefaultStarlarkTimeout is the default execution timeout for Starlark
// config files.
const DefaultStarlarkTimeout = 5 * time.Second

// ErrConfigureNotFound is returned when the config file doesn't define
// a configure() function.
var ErrConfigureNotFound = errors.New("bzlnav.star must define a configure() function")

// ErrConfigureReturnType is returned when configure() doesn't return a
// dict.
var ErrConfigureReturnType = errors.New("configure() must return a dict")

// LoadStarlarkConfig loads a configuration from a Starlark file. The
// file must define a configure() function returning a dict. Execution
// is sandboxed: no filesystem or network access, bounded by timeout.
func LoadStarlarkConfig(path string, timeout time.Duration) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	thread := &starlark.Thread{Name: path}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel("execution timeout")
		case <-done:
		}
	}()
	defer close(done)

	globals, err := starlark.ExecFile(thread, path, data, configPredeclared())
	if err != nil {
		return nil, fmt.Errorf("executing config %s: %w", path, err)
	}

	configureFn, ok := globals["configure"]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrConfigureNotFound)
	}
	fn, ok := configureFn.(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("%s: configure must be a function, got %s", path, configureFn.Type())
	}

	result, err := starlark.Call(thread, fn, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: calling configure(): %w", path, err)
	}

	dict, ok := result.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("%s: %w, got %s", path, ErrConfigureReturnType, result.Type())
	}
	return dictToConfig(dict)
}

// configPredeclared returns the predeclared values for config Starlark
// files. The environment is sandboxed; getenv is the only way in.
func configPredeclared() starlark.StringDict {
	return starlark.StringDict{
		"getenv":    starlark.NewBuiltin("getenv", builtinGetenv),
		"host_os":   starlark.String(runtime.GOOS),
		"host_arch": starlark.String(runtime.GOARCH),
		"duration":  starlark.NewBuiltin("duration", builtinDuration),
	}
}

// builtinGetenv implements getenv(name, default="") -> string.
func builtinGetenv(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var defaultVal starlark.String
	if err := starlark.UnpackArgs("getenv", args, kwargs, "name", &name, "default?", &defaultVal); err != nil {
		return nil, err
	}
	val := os.Getenv(name)
	if val == "" {
		return defaultVal, nil
	}
	return starlark.String(val), nil
}

// builtinDuration implements duration(s) -> string, validating that s
// parses as a Go duration.
func builtinDuration(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackArgs("duration", args, kwargs, "s", &s); err != nil {
		return nil, err
	}
	if _, err := time.ParseDuration(s); err != nil {
		return nil, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return starlark.String(s), nil
}

// dictToConfig converts the configure() result to a Config.
func dictToConfig(d *starlark.Dict) (*Config, error) {
	cfg := DefaultConfig()

	if v, found, _ := d.Get(starlark.String("bazel")); found {
		section, ok := v.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("bazel must be a dict, got %s", v.Type())
		}
		if err := parseBazelConfig(section, &cfg.Bazel); err != nil {
			return nil, fmt.Errorf("parsing bazel config: %w", err)
		}
	}

	if v, found, _ := d.Get(starlark.String("completion")); found {
		section, ok := v.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("completion must be a dict, got %s", v.Type())
		}
		if err := parseCompletionConfig(section, &cfg.Completion); err != nil {
			return nil, fmt.Errorf("parsing completion config: %w", err)
		}
	}

	if v, found, _ := d.Get(starlark.String("cache")); found {
		section, ok := v.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("cache must be a dict, got %s", v.Type())
		}
		if err := parseCacheConfig(section, &cfg.Cache); err != nil {
			return nil, fmt.Errorf("parsing cache config: %w", err)
		}
	}

	return cfg, nil
}

func parseBazelConfig(d *starlark.Dict, cfg *BazelConfig) error {
	if v, found, _ := d.Get(starlark.String("path")); found {
		s, ok := starlark.AsString(v)
		if !ok {
			return fmt.Errorf("path must be a string, got %s", v.Type())
		}
		cfg.Path = s
	}

	if v, found, _ := d.Get(starlark.String("query_output_base")); found {
		s, ok := starlark.AsString(v)
		if !ok {
			return fmt.Errorf("query_output_base must be a string, got %s", v.Type())
		}
		cfg.QueryOutputBase = s
	}

	if v, found, _ := d.Get(starlark.String("timeout")); found {
		s, ok := starlark.AsString(v)
		if !ok {
			return fmt.Errorf("timeout must be a string, got %s", v.Type())
		}
		dur, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", s, err)
		}
		cfg.Timeout = Duration{dur}
	}

	return nil
}

func parseCompletionConfig(d *starlark.Dict, cfg *CompletionConfig) error {
	if v, found, _ := d.Get(starlark.String("disable_queries")); found {
		b, ok := v.(starlark.Bool)
		if !ok {
			return fmt.Errorf("disable_queries must be a bool, got %s", v.Type())
		}
		cfg.DisableQueries = bool(b)
	}
	return nil
}

func parseCacheConfig(d *starlark.Dict, cfg *CacheConfig) error {
	if v, found, _ := d.Get(starlark.String("disable")); found {
		b, ok := v.(starlark.Bool)
		if !ok {
			return fmt.Errorf("disable must be a bool, got %s", v.Type())
		}
		cfg.Disable = bool(b)
	}

	if v, found, _ := d.Get(starlark.String("dir")); found {
		s, ok := starlark.AsString(v)
		if !ok {
			return fmt.Errorf("dir must be a string, got %s", v.Type())
		}
		cfg.Dir = s
	}

	return nil
}
