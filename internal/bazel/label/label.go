// Package label parses and renders Bazel labels.
package label

import (
	"fmt"
	"strings"
)

// Label is a parsed Bazel label of the form [@[repo]]//[pkg]:[name].
//
// The repository and package parts are optional, and absence is distinct
// from emptiness: "@//x:y" names the empty (main) repository while
// "//x:y" names no repository at all, and "@repo//" carries an empty
// package while ":gen" and "gen" carry none. A label without a package is
// always interpreted relative to the file it appears in.
type Label struct {
	// Repo is the apparent repository name, set when the label had an
	// "@" prefix. It may point at an empty string.
	Repo *string
	// Pkg is the package path, set when the label contained "//".
	// It may point at an empty string.
	Pkg *string
	// Name is the target name. When the input names a package without an
	// explicit ":name", it defaults to the last package segment.
	Name string
}

// SyntaxError reports a string that could not be parsed as a label.
type SyntaxError struct {
	Text string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid label %q", e.Text)
}

// Parse splits a label string into its parts. It validates only the
// structure the resolver depends on: an "@" prefix must be followed by a
// repository name and "//" somewhere after it. Canonical "@@repo//..."
// labels are accepted by dropping one "@".
func Parse(text string) (Label, error) {
	var l Label
	rest := text
	if strings.HasPrefix(rest, "@") {
		rest = strings.TrimPrefix(rest[1:], "@")
		i := strings.Index(rest, "//")
		if i < 0 {
			return Label{}, &SyntaxError{Text: text}
		}
		repo := rest[:i]
		l.Repo = &repo
		rest = rest[i:]
	}

	if after, ok := strings.CutPrefix(rest, "//"); ok {
		pkg := after
		switch i := strings.LastIndex(after, ":"); {
		case i >= 0:
			pkg, l.Name = after[:i], after[i+1:]
		default:
			l.Name = after[strings.LastIndex(after, "/")+1:]
		}
		l.Pkg = &pkg
		return l, nil
	}

	if after, ok := strings.CutPrefix(rest, ":"); ok {
		l.Name = after
		return l, nil
	}
	l.Name = rest
	return l, nil
}

// String renders the label back to its textual form. Package-less labels
// render in their ":name" form.
func (l Label) String() string {
	var b strings.Builder
	if l.Repo != nil {
		b.WriteByte('@')
		b.WriteString(*l.Repo)
	}
	if l.Pkg != nil {
		b.WriteString("//")
		b.WriteString(*l.Pkg)
	}
	if l.Name != "" || l.Pkg == nil {
		b.WriteByte(':')
		b.WriteString(l.Name)
	}
	return b.String()
}
