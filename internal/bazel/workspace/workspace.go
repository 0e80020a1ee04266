// Package workspace discovers Bazel workspaces and caches their metadata.
package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/albertocavalcante/bzlnav/internal/bazel/client"
)

// Workspace is an immutable snapshot of one Bazel workspace. Snapshots
// are built once per root, shared read-only by every resolver, and never
// invalidated for the life of the process.
type Workspace struct {
	// Root is the absolute path of the workspace root directory.
	Root string
	// Name is the legacy WORKSPACE name; empty under bzlmod.
	Name string
	// OutputBase is the output base backing the external store.
	OutputBase string

	externalRoot string
	repos        map[string]string
	repoNames    []string
}

// New builds a snapshot from a bazel info response. A non-empty
// queryOutputBase points the external store at a separate output base.
func New(info client.Info, queryOutputBase string) *Workspace {
	base := info.OutputBase
	if queryOutputBase != "" {
		base = queryOutputBase
	}
	ws := &Workspace{
		Root:       info.WorkspaceRoot,
		Name:       info.WorkspaceName(),
		OutputBase: base,
	}
	if base == "" {
		return ws
	}
	ws.externalRoot = filepath.Join(base, "external")
	entries, err := os.ReadDir(ws.externalRoot)
	if err != nil {
		return ws
	}
	ws.repos = make(map[string]string, len(entries))
	for _, entry := range entries {
		dir := filepath.Join(ws.externalRoot, entry.Name())
		// Entries may be symlinks into the repository cache; follow them.
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			continue
		}
		ws.repos[entry.Name()] = dir
		ws.repoNames = append(ws.repoNames, entry.Name())
	}
	sort.Strings(ws.repoNames)
	return ws
}

// Repository returns the directory of the repository with the given
// canonical name.
func (w *Workspace) Repository(name string) (string, bool) {
	dir, ok := w.repos[name]
	return dir, ok
}

// RepositoryNames returns the known repository names, sorted.
func (w *Workspace) RepositoryNames() []string {
	return w.repoNames
}

// RepositoryDir returns the directory a repository with the given name
// occupies in the external store.
func (w *Workspace) RepositoryDir(name string) string {
	return filepath.Join(w.externalRoot, name)
}

// RepositoryForPath reports which repository contains path, together with
// the path's remainder relative to that repository's directory. ok is
// false for paths outside the external store, which belong to the main
// repository.
func (w *Workspace) RepositoryForPath(path string) (name, rel string, ok bool) {
	if w.externalRoot == "" {
		return "", "", false
	}
	rel, err := filepath.Rel(w.externalRoot, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", false
	}
	name, rest, _ := strings.Cut(rel, string(filepath.Separator))
	return name, rest, true
}
