// Package filetype classifies the files that make up a Bazel workspace.
package filetype

import (
	"path/filepath"
	"strings"
)

// Type is the role a file plays in a Bazel workspace.
type Type string

const (
	// TypeBuild is a package build file (BUILD or BUILD.bazel).
	TypeBuild Type = "build"
	// TypeWorkspace is a legacy workspace file (WORKSPACE or WORKSPACE.bazel).
	TypeWorkspace Type = "workspace"
	// TypeModule is a bzlmod module file (MODULE.bazel).
	TypeModule Type = "module"
	// TypeLibrary is a Starlark extension (.bzl).
	TypeLibrary Type = "library"
	// TypeUnknown is any other file.
	TypeUnknown Type = "unknown"
)

// BuildFileNames lists the names Bazel accepts for package build files, in
// the order the resolver tries them when a label names a package rather
// than a concrete file.
var BuildFileNames = []string{"BUILD.bazel", "BUILD"}

// String returns the string representation of the Type.
func (t Type) String() string {
	return string(t)
}

// Loadable reports whether files of this type may be the target of a
// load() statement.
func (t Type) Loadable() bool {
	return t == TypeLibrary
}

// FromName classifies a bare file name.
func FromName(name string) Type {
	switch name {
	case "BUILD", "BUILD.bazel":
		return TypeBuild
	case "WORKSPACE", "WORKSPACE.bazel":
		return TypeWorkspace
	case "MODULE.bazel":
		return TypeModule
	}
	if strings.HasSuffix(name, ".bzl") {
		return TypeLibrary
	}
	return TypeUnknown
}

// FromPath classifies a file by the final element of its path.
func FromPath(path string) Type {
	return FromName(filepath.Base(path))
}

// IsBuildFileName reports whether name is one of BuildFileNames.
func IsBuildFileName(name string) bool {
	return FromName(name) == TypeBuild
}
