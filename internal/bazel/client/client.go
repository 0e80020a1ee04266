// Package client runs Bazel commands on behalf of the resolution engine.
//
// The engine consumes a Bazel installation through exactly four
// operations. CLI shells out to a real executable; Fake serves canned
// responses for tests and for embedders that bring their own metadata.
package client

import (
	"context"
	"path/filepath"
	"strings"
)

// Client is the narrow interface to a Bazel installation. Implementations
// must be safe for concurrent use.
type Client interface {
	// Info reports metadata for the workspace rooted at root.
	Info(ctx context.Context, root string) (Info, error)
	// Query evaluates a target pattern and returns the raw
	// newline-delimited label output.
	Query(ctx context.Context, root, pattern string) (string, error)
	// DumpRepoMapping returns the apparent-to-canonical repository name
	// mapping visible from repo. The empty repo name is the main
	// repository.
	DumpRepoMapping(ctx context.Context, root, repo string) (map[string]string, error)
	// BuildLanguage returns the serialized description of the build
	// language understood by this Bazel version.
	BuildLanguage(ctx context.Context, root string) ([]byte, error)
}

// Info is the subset of `bazel info` the engine consumes.
type Info struct {
	WorkspaceRoot string `json:"workspace_root"`
	OutputBase    string `json:"output_base"`
	ExecutionRoot string `json:"execution_root"`
	Release       string `json:"release"`
}

// WorkspaceName derives the legacy workspace name from the execution
// root, whose final path element Bazel names after the workspace. Bzlmod
// placeholder names count as unnamed.
func (i Info) WorkspaceName() string {
	switch name := filepath.Base(i.ExecutionRoot); name {
	case "", ".", "/", "_main", "__main__":
		return ""
	default:
		return name
	}
}

func parseInfo(out string) Info {
	var info Info
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch key {
		case "workspace":
			info.WorkspaceRoot = value
		case "output_base":
			info.OutputBase = value
		case "execution_root":
			info.ExecutionRoot = value
		case "release":
			info.Release = value
		}
	}
	return info
}
