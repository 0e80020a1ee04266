package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// CLI invokes a Bazel executable.
type CLI struct {
	path            string
	queryOutputBase string
}

// Option configures a CLI client.
type Option func(*CLI)

// WithQueryOutputBase points query invocations at a separate output base
// so completion queries do not contend with interactive builds.
func WithQueryOutputBase(dir string) Option {
	return func(c *CLI) {
		c.queryOutputBase = dir
	}
}

// NewCLI returns a client invoking the given executable. An empty path
// means "bazel" from PATH.
func NewCLI(path string, opts ...Option) *CLI {
	if path == "" {
		path = "bazel"
	}
	c := &CLI{path: path}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CLI) run(ctx context.Context, root string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := lastLine(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s %s: %w: %s", c.path, args[0], err, msg)
		}
		return nil, fmt.Errorf("%s %s: %w", c.path, args[0], err)
	}
	return stdout.Bytes(), nil
}

// lastLine extracts the final non-empty stderr line; bazel prints its
// actual error there, after pages of loading progress.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Info implements Client.
func (c *CLI) Info(ctx context.Context, root string) (Info, error) {
	out, err := c.run(ctx, root, "info")
	if err != nil {
		return Info{}, err
	}
	return parseInfo(string(out)), nil
}

// Query implements Client. The pattern runs with --keep_going, which
// exits non-zero when it only partially evaluates; partial output is
// still returned because completion would rather show some targets than
// none.
func (c *CLI) Query(ctx context.Context, root, pattern string) (string, error) {
	var args []string
	if c.queryOutputBase != "" {
		args = append(args, "--output_base="+c.queryOutputBase)
	}
	args = append(args, "query", pattern, "--keep_going")

	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Dir = root
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil && stdout.Len() == 0 {
		return "", fmt.Errorf("%s query %q: %w", c.path, pattern, err)
	}
	return stdout.String(), nil
}

// DumpRepoMapping implements Client.
func (c *CLI) DumpRepoMapping(ctx context.Context, root, repo string) (map[string]string, error) {
	out, err := c.run(ctx, root, "mod", "dump_repo_mapping", repo)
	if err != nil {
		return nil, err
	}
	mapping := map[string]string{}
	if err := json.Unmarshal(out, &mapping); err != nil {
		return nil, fmt.Errorf("parse repo mapping for %q: %w", repo, err)
	}
	return mapping, nil
}

// BuildLanguage implements Client.
func (c *CLI) BuildLanguage(ctx context.Context, root string) ([]byte, error) {
	return c.run(ctx, root, "info", "build-language")
}
