package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/albertocavalcante/bzlnav/internal/bazel/client"
	"github.com/albertocavalcante/bzlnav/internal/docurl"
)

// Marker file Bazel plants in output bases. Its content is the path of
// the workspace root the output base belongs to, which is how files
// opened from the external store find their way back to the real root.
const markerName = "DO_NOT_BUILD_HERE"

// Registry caches one Workspace snapshot per root directory.
type Registry struct {
	cli             client.Client
	queryOutputBase string

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithQueryOutputBase makes snapshots read the external store from a
// separate output base.
func WithQueryOutputBase(dir string) RegistryOption {
	return func(r *Registry) {
		r.queryOutputBase = dir
	}
}

// NewRegistry returns an empty registry backed by the given client.
func NewRegistry(cli client.Client, opts ...RegistryOption) *Registry {
	r := &Registry{
		cli:        cli,
		workspaces: make(map[string]*Workspace),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// For returns the snapshot for the workspace rooted at root, building it
// on first use. The lock is held across the info call so construction
// happens at most once per root.
func (r *Registry) For(ctx context.Context, root string) (*Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ws, ok := r.workspaces[root]; ok {
		return ws, nil
	}
	info, err := r.cli.Info(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("workspace info for %s: %w", root, err)
	}
	ws := New(info, r.queryOutputBase)
	r.workspaces[root] = ws
	return ws, nil
}

// ForFile returns the workspace governing the given document, or nil when
// the document is not inside any workspace. A non-empty rootOverride
// skips discovery. Virtual documents never resolve to a workspace.
func (r *Registry) ForFile(ctx context.Context, doc docurl.URL, rootOverride string) (*Workspace, error) {
	if rootOverride != "" {
		return r.For(ctx, rootOverride)
	}
	path, ok := doc.Filename()
	if !ok {
		return nil, nil
	}
	root, found, err := InferRoot(path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return r.For(ctx, root)
}

// InferRoot walks the ancestors of path (excluding path itself) looking
// for the workspace marker. The marker's entire content is the literal
// root path to use.
func InferRoot(path string) (root string, found bool, err error) {
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		marker := filepath.Join(dir, markerName)
		if _, err := os.Stat(marker); err == nil {
			content, err := os.ReadFile(marker)
			if err != nil {
				return "", false, err
			}
			return string(content), true, nil
		}
		if parent := filepath.Dir(dir); parent == dir {
			return "", false, nil
		}
	}
}

// Boundary files marking a workspace root, in Bazel's own precedence.
var boundaryFiles = []string{
	"MODULE.bazel",
	"WORKSPACE.bazel",
	"WORKSPACE",
}

// FindRoot walks up from startDir (inclusive) looking for a workspace
// boundary file, the way the bazel binary locates the workspace for the
// directory it was invoked in. Unlike InferRoot it inspects the workspace
// itself, not an output base.
func FindRoot(startDir string) (string, bool) {
	for dir := startDir; ; dir = filepath.Dir(dir) {
		for _, name := range boundaryFiles {
			if fi, err := os.Stat(filepath.Join(dir, name)); err == nil && !fi.IsDir() {
				return dir, true
			}
		}
		if parent := filepath.Dir(dir); parent == dir {
			return "", false
		}
	}
}
