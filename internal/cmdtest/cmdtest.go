// Package cmdtest provides a testscript-based test harness for the bzlnav
// CLI tools.
//
// It uses txtar format test files to specify input files and expected outputs,
// making it easy to write end-to-end CLI tests.
//
// Example test file (testdata/bzlnav/resolve.txtar):
//
//	# Resolve a relative label against the file it is written in
//	exec bzlnav -from lib/BUILD :defs.bzl
//	stdout 'defs\.bzl'
//
//	-- lib/BUILD --
//	-- lib/defs.bzl --
package cmdtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/albertocavalcante/bzlnav/internal/cmd/bzlnav"
	"github.com/albertocavalcante/bzlnav/internal/cmd/bzlnavlsp"
)

// Run executes the testscript tests in the given directory.
func Run(t *testing.T, dir string) {
	testscript.Run(t, testscript.Params{
		Dir: dir,
		Setup: func(env *testscript.Env) error {
			// Keep the bazel info cache inside the script's work directory
			// so runs never touch the developer's real cache.
			env.Setenv("BZLNAV_CACHE_DIR", filepath.Join(env.WorkDir, ".cache"))
			return nil
		},
	})
}

// Main is the TestMain function that should be called from test files.
// It sets up the CLI tools as testscript commands.
func Main(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"bzlnav":     wrapRun(bzlnav.Run),
		"bzlnav-lsp": wrapRun(bzlnavlsp.Run),
	}))
}

// wrapRun wraps a Run(args []string) int function to func() int for testscript.
// The args are taken from os.Args[1:].
func wrapRun(run func(args []string) int) func() int {
	return func() int {
		return run(os.Args[1:])
	}
}
