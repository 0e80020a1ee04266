// Package docurl models the URLs editors use to identify documents.
//
// Resolution and completion address documents by URL rather than by bare
// path so real files stay distinguishable from virtual documents (unsaved
// buffers, previews, generated content). Only file documents participate
// in workspace discovery and relative resolution.
package docurl

import (
	"net/url"
	"strings"

	"go.lsp.dev/uri"
)

// URL identifies one document.
//
// The zero value is an empty virtual document.
type URL struct {
	raw  string
	path string
}

// File returns the URL of the document stored at the given filesystem path.
func File(path string) URL {
	if path == "" {
		return URL{}
	}
	return URL{raw: string(uri.File(path)), path: path}
}

// Parse interprets a document URI as received from an editor. Anything
// that is not a file:// URI is kept verbatim as a virtual document.
func Parse(s string) URL {
	rest, ok := strings.CutPrefix(s, "file://")
	if !ok {
		return URL{raw: s}
	}
	if unescaped, err := url.PathUnescape(rest); err == nil {
		rest = unescaped
	}
	return URL{raw: s, path: rest}
}

// IsFile reports whether the document is stored on the filesystem.
func (u URL) IsFile() bool {
	return u.path != ""
}

// Filename returns the document's filesystem path. ok is false for
// virtual documents.
func (u URL) Filename() (path string, ok bool) {
	return u.path, u.path != ""
}

// String returns the document URI.
func (u URL) String() string {
	return u.raw
}
