// Package resolve maps Bazel labels to filesystem locations and back.
package resolve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/albertocavalcante/bzlnav/internal/bazel/client"
	"github.com/albertocavalcante/bzlnav/internal/bazel/filetype"
	"github.com/albertocavalcante/bzlnav/internal/bazel/label"
	"github.com/albertocavalcante/bzlnav/internal/bazel/workspace"
	"github.com/albertocavalcante/bzlnav/internal/docurl"
)

// Resolver resolves labels against workspaces obtained from a registry.
type Resolver struct {
	registry *workspace.Registry
	cli      client.Client
}

// New returns a resolver.
func New(registry *workspace.Registry, cli client.Client) *Resolver {
	return &Resolver{registry: registry, cli: cli}
}

// Folder computes the absolute directory the label's repository and
// package parts designate. ws may be nil when no workspace governs the
// current file. The guard clauses run in a fixed order; reordering them
// changes resolution semantics.
func (r *Resolver) Folder(ctx context.Context, l label.Label, current docurl.URL, ws *workspace.Workspace) (string, error) {
	root, rootKnown, err := r.folderRoot(ctx, l, current, ws)
	if err != nil {
		return "", err
	}

	if l.Pkg != nil {
		if !rootKnown {
			return "", &MissingWorkspaceRootError{Label: l}
		}
		return filepath.Join(root, *l.Pkg), nil
	}

	// Package-less labels resolve relative to the editing location, never
	// to a repository root.
	path, ok := current.Filename()
	if !ok || path == "" {
		return "", &MissingCurrentFileError{Label: l}
	}
	return filepath.Dir(path), nil
}

func (r *Resolver) folderRoot(ctx context.Context, l label.Label, current docurl.URL, ws *workspace.Workspace) (root string, known bool, err error) {
	if l.Repo == nil {
		if ws == nil {
			return "", false, nil
		}
		if path, ok := current.Filename(); ok {
			if name, _, found := ws.RepositoryForPath(path); found {
				return ws.RepositoryDir(name), true, nil
			}
		}
		return ws.Root, true, nil
	}

	// An explicitly empty repository qualifier names the main repository.
	if *l.Repo == "" {
		if ws == nil {
			return "", false, nil
		}
		return ws.Root, true, nil
	}

	if ws == nil {
		return "", false, &UnknownRepositoryError{Label: l, Repository: *l.Repo}
	}
	name := *l.Repo
	mapping, _ := workspace.RepoMapping(ctx, r.cli, ws, current)
	if canonical, ok := mapping[name]; ok {
		name = canonical
	}
	if name == ws.Name {
		return ws.Root, true, nil
	}
	if dir, ok := ws.Repository(name); ok {
		return dir, true, nil
	}
	return "", false, &UnknownRepositoryError{Label: l, Repository: *l.Repo}
}

// Load resolves a label string to the file it names: the literal target
// name inside the resolved directory, or, failing that, the directory's
// build file. This mirrors Bazel's own discovery convention, where a
// label may name a file directly or implicitly name the build file
// governing a package.
func (r *Resolver) Load(ctx context.Context, text string, current docurl.URL, rootOverride string) (docurl.URL, error) {
	l, err := label.Parse(text)
	if err != nil {
		return docurl.URL{}, err
	}
	ws, err := r.registry.ForFile(ctx, current, rootOverride)
	if err != nil {
		return docurl.URL{}, err
	}
	dir, err := r.Folder(ctx, l, current, ws)
	if err != nil {
		return docurl.URL{}, err
	}

	if path := filepath.Join(dir, l.Name); isFile(path) {
		return docurl.File(path), nil
	}
	for _, name := range filetype.BuildFileNames {
		if path := filepath.Join(dir, name); isFile(path) {
			return docurl.File(path), nil
		}
	}
	return docurl.URL{}, &TargetNotFoundError{Text: text}
}

// RenderAsLoad produces the label string that names target from the
// package structure visible to current. Same-directory targets render in
// their relative ":name" form and round-trip through Load exactly;
// cross-package rendering depends on workspace metadata being available.
func (r *Resolver) RenderAsLoad(ctx context.Context, target, current docurl.URL, rootOverride string) (string, error) {
	targetPath, ok := target.Filename()
	if !ok {
		return "", &WrongSchemeError{Want: "file://", URL: target}
	}
	currentPath, ok := current.Filename()
	if !ok {
		return "", &WrongSchemeError{Want: "file://", URL: current}
	}

	if filepath.Dir(targetPath) == filepath.Dir(currentPath) {
		name := filepath.Base(targetPath)
		if name == "." || name == string(filepath.Separator) {
			return "", &MissingTargetFilenameError{Path: targetPath}
		}
		return ":" + name, nil
	}

	ws, err := r.registry.ForFile(ctx, current, rootOverride)
	if err != nil {
		return "", err
	}
	repo := ""
	rel := targetPath
	if ws != nil {
		if name, rest, found := ws.RepositoryForPath(targetPath); found {
			repo, rel = name, rest
		} else if strings.HasPrefix(targetPath, ws.Root+string(filepath.Separator)) {
			rel = targetPath[len(ws.Root)+1:]
		}
	}

	pkg, name := filepath.Split(rel)
	if name == "" {
		return "", &MissingTargetFilenameError{Path: targetPath}
	}
	pkg = strings.TrimSuffix(pkg, string(filepath.Separator))
	return fmt.Sprintf("@%s//%s:%s", repo, filepath.ToSlash(pkg), name), nil
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
