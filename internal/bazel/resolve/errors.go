package resolve

import (
	"fmt"

	"github.com/albertocavalcante/bzlnav/internal/bazel/label"
	"github.com/albertocavalcante/bzlnav/internal/docurl"
)

// The resolvers fail with distinguishable kinds because callers branch on
// them: completion silently skips enumeration on UnknownRepositoryError,
// while direct resolution surfaces it.

// MissingCurrentFileError reports a package-less label used from a
// document that has no filesystem path.
type MissingCurrentFileError struct {
	Label label.Label
}

func (e *MissingCurrentFileError) Error() string {
	return fmt.Sprintf("label %s is relative, but the current file has no path", e.Label)
}

// WrongSchemeError reports an operation that needed a filesystem URL and
// got another kind.
type WrongSchemeError struct {
	Want string
	URL  docurl.URL
}

func (e *WrongSchemeError) Error() string {
	return fmt.Sprintf("url %q is not a %s url", e.URL.String(), e.Want)
}

// MissingWorkspaceRootError reports a label whose package part needed a
// workspace root when none was known.
type MissingWorkspaceRootError struct {
	Label label.Label
}

func (e *MissingWorkspaceRootError) Error() string {
	return fmt.Sprintf("label %s is absolute, but no workspace root is known", e.Label)
}

// UnknownRepositoryError reports a label naming a repository the
// workspace does not know.
type UnknownRepositoryError struct {
	Label      label.Label
	Repository string
}

func (e *UnknownRepositoryError) Error() string {
	return fmt.Sprintf("cannot resolve label %s: unknown repository %q", e.Label, e.Repository)
}

// TargetNotFoundError reports a label that resolved to a directory with
// neither the named file nor a build file.
type TargetNotFoundError struct {
	Text string
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("cannot find target %q", e.Text)
}

// MissingTargetFilenameError reports a render target whose path has no
// filename component.
type MissingTargetFilenameError struct {
	Path string
}

func (e *MissingTargetFilenameError) Error() string {
	return fmt.Sprintf("path %q has no filename", e.Path)
}
