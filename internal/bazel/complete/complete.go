// Package complete drives interactive completion of partially-typed
// Bazel labels.
//
// There is no persisted state machine: every request re-classifies the
// partial string from scratch, decides which candidate classes apply
// (repository names, directories, files, build targets), picks the
// directory to enumerate, and lists it. Build-system collaborator
// failures degrade to fewer candidates; only filesystem enumeration
// failures propagate.
package complete

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/albertocavalcante/bzlnav/internal/bazel/client"
	"github.com/albertocavalcante/bzlnav/internal/bazel/filetype"
	"github.com/albertocavalcante/bzlnav/internal/bazel/label"
	"github.com/albertocavalcante/bzlnav/internal/bazel/resolve"
	"github.com/albertocavalcante/bzlnav/internal/bazel/workspace"
	"github.com/albertocavalcante/bzlnav/internal/docurl"
)

// Kind tags what a candidate completes.
type Kind string

const (
	KindRepository Kind = "repository"
	KindFolder     Kind = "folder"
	KindFile       Kind = "file"
	KindTarget     Kind = "target"
)

// StringType says what sort of string is being completed.
type StringType int

const (
	// PlainString is any string literal that may hold a label, such as a
	// rule attribute. Build targets are offered here.
	PlainString StringType = iota
	// LoadPath is the first argument of a load() statement; only
	// loadable files are offered.
	LoadPath
)

// Candidate is one completion result.
type Candidate struct {
	// Value is the display text.
	Value string
	// InsertText is the text to splice into the typed string.
	InsertText string
	// InsertOffset is the byte offset into the typed string at which
	// InsertText replaces the remainder.
	InsertOffset int
	// Kind tags the candidate class.
	Kind Kind
}

type fileOption int

const (
	filesNone fileOption = iota
	filesAll
	filesLoadable
)

// Engine computes completion candidates.
type Engine struct {
	registry  *workspace.Registry
	cli       client.Client
	resolver  *resolve.Resolver
	noQueries bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithoutQueries turns off bazel query for target completion; the
// engine then offers only what the filesystem shows.
func WithoutQueries() Option {
	return func(e *Engine) {
		e.noQueries = true
	}
}

// NewEngine returns an engine resolving against the given registry.
func NewEngine(registry *workspace.Registry, cli client.Client, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		cli:      cli,
		resolver: resolve.New(registry, cli),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Complete classifies the partial string s typed inside doc and
// enumerates candidates. rootOverride pins the workspace root the way an
// editor's open folder does.
func (e *Engine) Complete(ctx context.Context, doc docurl.URL, st StringType, s string, rootOverride string) ([]Candidate, error) {
	// A broken build-system integration must not take filesystem-based
	// completion down with it.
	ws, err := e.registry.ForFile(ctx, doc, rootOverride)
	if err != nil {
		ws = nil
	}
	var mapping map[string]string
	mappingOK := false
	if ws != nil {
		mapping, mappingOK = workspace.RepoMapping(ctx, e.cli, ws, doc)
	}

	var out []Candidate
	if offerRepositoryNames(s) && ws != nil {
		names := ws.RepositoryNames()
		if mappingOK {
			names = make([]string, 0, len(mapping))
			for name := range mapping {
				if name == "" {
					continue
				}
				names = append(names, name)
			}
			sort.Strings(names)
		}
		for _, name := range names {
			out = append(out, Candidate{
				Value:      "@" + name,
				InsertText: "@" + name + "//",
				Kind:       KindRepository,
			})
		}
	}

	filenames := completeFilenames(s)
	opts := enumOptions{
		directories: completeDirectories(s),
		targets:     st == PlainString && filenames && !e.noQueries,
	}
	// Load paths always complete loadable files, even past a directory
	// separator; plain strings offer files only before one.
	if st == LoadPath {
		opts.files = filesLoadable
	} else if filenames {
		opts.files = filesAll
	}
	// Mid-repository-name positions enumerate nothing, whatever the
	// string type.
	if !opts.directories && !filenames {
		return out, nil
	}

	dir, base, ok, err := e.completionRoot(ctx, doc, s, opts, ws)
	if err != nil {
		var unknownRepo *resolve.UnknownRepositoryError
		if errors.As(err, &unknownRepo) {
			return out, nil
		}
		return nil, err
	}
	if !ok {
		return out, nil
	}
	entries, err := e.enumerate(ctx, dir, base, opts, ws)
	if err != nil {
		return nil, err
	}
	return append(out, entries...), nil
}

// offerRepositoryNames reports whether s is at a point where a repository
// name could still be typed.
func offerRepositoryNames(s string) bool {
	return s == "" ||
		s == "@" ||
		(strings.HasPrefix(s, "@") && !strings.Contains(s, "/")) ||
		(!strings.Contains(s, "/") && !strings.Contains(s, ":"))
}

func completeDirectories(s string) bool {
	return (!strings.HasPrefix(s, "@") || strings.Contains(s, "//")) &&
		!strings.Contains(s, ":")
}

func completeFilenames(s string) bool {
	return (!strings.HasPrefix(s, "@") || strings.Contains(s, "//")) &&
		(!strings.Contains(s, "/") || strings.Contains(s, ":"))
}

type enumOptions struct {
	directories bool
	files       fileOption
	targets     bool
}

// completionRoot picks the directory to enumerate and the prefix of s it
// stands for. With no delimiter typed yet, the ambiguous relative form
// completes against the edited document's own directory; otherwise the
// prefix through the last delimiter is re-parsed as a label and resolved.
func (e *Engine) completionRoot(ctx context.Context, doc docurl.URL, s string, opts enumOptions, ws *workspace.Workspace) (dir, base string, ok bool, err error) {
	if opts.directories && opts.files != filesNone && !strings.ContainsAny(s, "/:") {
		path, isFile := doc.Filename()
		if !isFile || path == "" {
			return "", "", false, nil
		}
		return filepath.Dir(path), "", true, nil
	}

	sep := ":"
	if opts.directories {
		sep = "/"
	}
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return "", "", false, nil
	}
	base = s[:i+1]
	l, err := label.Parse(base)
	if err != nil {
		return "", "", false, err
	}
	dir, err = e.resolver.Folder(ctx, l, doc, ws)
	if err != nil {
		return "", "", false, err
	}
	return dir, base, true, nil
}

func (e *Engine) enumerate(ctx context.Context, dir, base string, opts enumOptions, ws *workspace.Workspace) ([]Candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, entry := range entries {
		name := entry.Name()
		// Stat, not the entry type: external store entries are often
		// symlinks into the repository cache. An entry that does not
		// stat (a dangling symlink) is not offered at all.
		fi, err := os.Stat(filepath.Join(dir, name))
		if err != nil || (!fi.IsDir() && !fi.Mode().IsRegular()) {
			continue
		}
		isDir := fi.IsDir()
		switch {
		case isDir:
			if !opts.directories {
				continue
			}
			insert := name
			if base != "" && !strings.HasSuffix(base, "/") {
				insert = "/" + name
			}
			out = append(out, Candidate{Value: name, InsertText: insert, InsertOffset: len(base), Kind: KindFolder})

		case filetype.IsBuildFileName(name):
			// The build file itself is never a candidate; it stands for
			// the targets it declares.
			if !opts.targets {
				continue
			}
			out = append(out, e.queryTargets(ctx, base, ws)...)

		default:
			if opts.files == filesNone {
				continue
			}
			if opts.files == filesLoadable && !filetype.FromName(name).Loadable() {
				continue
			}
			insert := name
			if base != "" && !strings.HasSuffix(base, ":") {
				insert = ":" + name
			}
			out = append(out, Candidate{Value: name, InsertText: insert, InsertOffset: len(base), Kind: KindFile})
		}
	}
	return out, nil
}

// queryTargets asks the build system for the target names of the package
// base denotes. Best effort: a failed query produces no candidates.
func (e *Engine) queryTargets(ctx context.Context, base string, ws *workspace.Workspace) []Candidate {
	if ws == nil {
		return nil
	}
	module := base
	if !strings.HasSuffix(module, ":") {
		module += ":"
	}
	raw, err := e.cli.Query(ctx, ws.Root, module+"*")
	if err != nil {
		return nil
	}
	var out []Candidate
	for _, line := range strings.Split(raw, "\n") {
		target, ok := strings.CutPrefix(line, module)
		if !ok || target == "" {
			continue
		}
		insert := target
		if !strings.HasSuffix(base, ":") {
			insert = ":" + target
		}
		out = append(out, Candidate{Value: target, InsertText: insert, InsertOffset: len(base), Kind: KindTarget})
	}
	return out
}
