// Package bzlnav implements the bzlnav command line tool.
package bzlnav

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/albertocavalcante/bzlnav/internal/bazel/client"
	"github.com/albertocavalcante/bzlnav/internal/bazel/complete"
	"github.com/albertocavalcante/bzlnav/internal/bazel/infocache"
	"github.com/albertocavalcante/bzlnav/internal/bazel/resolve"
	"github.com/albertocavalcante/bzlnav/internal/bazel/workspace"
	"github.com/albertocavalcante/bzlnav/internal/bzlconfig"
	"github.com/albertocavalcante/bzlnav/internal/cli"
	"github.com/albertocavalcante/bzlnav/internal/docurl"
	"github.com/albertocavalcante/bzlnav/internal/version"
)

// Run executes bzlnav with the given arguments.
func Run(args []string) int {
	return RunWithIO(context.Background(), args, os.Stdin, os.Stdout, os.Stderr)
}

// RunWithIO allows custom IO for embedding/testing.
func RunWithIO(ctx context.Context, args []string, _ io.Reader, stdout, stderr io.Writer) int {
	var (
		fromFlag      string
		workspaceFlag string
		bazelFlag     string
		renderFlag    bool
		completeFlag  bool
		loadFlag      bool
		watchFlag     bool
		timeoutFlag   time.Duration
		versionFlag   bool
		verboseFlag   bool
	)

	fs := flag.NewFlagSet("bzlnav", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&fromFlag, "from", "", "file the label is written in; anchors relative labels")
	fs.StringVar(&workspaceFlag, "workspace", "", "workspace root directory; overrides discovery")
	fs.StringVar(&bazelFlag, "bazel", "", "bazel binary to invoke (default from config)")
	fs.BoolVar(&renderFlag, "render", false, "treat the argument as a file path and print its load label")
	fs.BoolVar(&completeFlag, "complete", false, "treat the argument as a partial label and print candidates")
	fs.BoolVar(&loadFlag, "load", false, "with -complete, complete a load() path")
	fs.BoolVar(&watchFlag, "watch", false, "keep running and re-resolve when the resolved file changes")
	fs.DurationVar(&timeoutFlag, "timeout", 0, "bound each bazel invocation (default from config)")
	fs.BoolVar(&versionFlag, "version", false, "print version and exit")
	fs.BoolVar(&verboseFlag, "v", false, "verbose logging to stderr")

	fs.Usage = func() {
		cli.Writeln(stderr, "Usage: bzlnav [flags] <label>")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Resolves Bazel labels to filesystem paths and back.")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Flags:")
		fs.PrintDefaults()
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Examples:")
		cli.Writeln(stderr, "  bzlnav //lib:defs.bzl                        # print the file the label names")
		cli.Writeln(stderr, "  bzlnav -from lib/BUILD :defs.bzl             # resolve relative to a file")
		cli.Writeln(stderr, "  bzlnav -render -from lib/BUILD lib/defs.bzl  # path back to a label")
		cli.Writeln(stderr, "  bzlnav -complete '//lib:'                    # list completion candidates")
		cli.Writeln(stderr, "  bzlnav -complete -load '//lib:'              # only loadable files")
		cli.Writeln(stderr, "  bzlnav -watch //lib:defs.bzl                 # re-resolve on file changes")
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return cli.ExitOK
		}
		return cli.ExitError
	}

	if versionFlag {
		cli.Writef(stdout, "bzlnav %s\n", version.String())
		return cli.ExitOK
	}

	// Setup logging
	if verboseFlag {
		log.SetOutput(stderr)
		log.SetFlags(log.Ltime | log.Lshortfile)
	} else {
		log.SetOutput(io.Discard)
	}

	switch {
	case renderFlag && completeFlag:
		cli.Writeln(stderr, "bzlnav: -render and -complete are mutually exclusive")
		return cli.ExitError
	case loadFlag && !completeFlag:
		cli.Writeln(stderr, "bzlnav: -load requires -complete")
		return cli.ExitError
	case watchFlag && (renderFlag || completeFlag):
		cli.Writeln(stderr, "bzlnav: -watch applies only to label resolution")
		return cli.ExitError
	}

	if len(fs.Args()) != 1 {
		fs.Usage()
		return cli.ExitError
	}
	arg := fs.Args()[0]

	var current docurl.URL
	if fromFlag != "" {
		abs, err := filepath.Abs(fromFlag)
		if err != nil {
			cli.Writef(stderr, "bzlnav: %v\n", err)
			return cli.ExitError
		}
		fromFlag = abs
		current = docurl.File(abs)
	}
	if workspaceFlag != "" {
		abs, err := filepath.Abs(workspaceFlag)
		if err != nil {
			cli.Writef(stderr, "bzlnav: %v\n", err)
			return cli.ExitError
		}
		workspaceFlag = abs
	}

	startDir, err := startDirectory(fromFlag, workspaceFlag)
	if err != nil {
		cli.Writef(stderr, "bzlnav: %v\n", err)
		return cli.ExitError
	}

	cfg, cfgPath, err := bzlconfig.Discover(startDir)
	if err != nil {
		cli.Writef(stderr, "bzlnav: %v\n", err)
		return cli.ExitError
	}
	if cfgPath != "" {
		log.Printf("bzlnav: config %s", cfgPath)
	}
	if bazelFlag != "" {
		cfg.Bazel.Path = bazelFlag
	}
	if cfg.Bazel.Path == "" {
		cfg.Bazel.Path = "bazel"
	}
	if timeoutFlag > 0 {
		cfg.Bazel.Timeout.Duration = timeoutFlag
	}

	override := rootOverride(workspaceFlag, fromFlag, startDir)
	if override != "" {
		log.Printf("bzlnav: workspace root %s", override)
	}

	t := newTool(cfg, current, override)

	switch {
	case renderFlag:
		return t.renderPath(ctx, arg, stdout, stderr)
	case completeFlag:
		st := complete.PlainString
		if loadFlag {
			st = complete.LoadPath
		}
		return t.completePartial(ctx, arg, st, stdout, stderr)
	case watchFlag:
		return t.watchLabel(ctx, arg, stdout, stderr)
	default:
		return t.resolveLabel(ctx, arg, stdout, stderr)
	}
}

// startDirectory picks where config discovery begins: the directory of
// the current file when one is given, the explicit workspace root
// otherwise, the working directory as a last resort.
func startDirectory(from, workspaceDir string) (string, error) {
	switch {
	case from != "":
		return filepath.Dir(from), nil
	case workspaceDir != "":
		return workspaceDir, nil
	default:
		return os.Getwd()
	}
}

// rootOverride decides the workspace root handed to the engine. An
// explicit -workspace wins. A current file below an output base keeps the
// override empty so per-call marker discovery applies. Otherwise the
// nearest boundary file above the start directory is used, the way bazel
// itself finds the workspace it was invoked in.
func rootOverride(workspaceDir, from, startDir string) string {
	if workspaceDir != "" {
		return workspaceDir
	}
	if from != "" {
		if _, found, _ := workspace.InferRoot(from); found {
			return ""
		}
	}
	if root, ok := workspace.FindRoot(startDir); ok {
		return root
	}
	return ""
}

// tool bundles the engine stack behind the CLI modes.
type tool struct {
	cfg      *bzlconfig.Config
	resolver *resolve.Resolver
	engine   *complete.Engine
	current  docurl.URL
	override string
}

func newTool(cfg *bzlconfig.Config, current docurl.URL, override string) *tool {
	var bazelClient client.Client = client.NewCLI(cfg.Bazel.Path, client.WithQueryOutputBase(cfg.Bazel.QueryOutputBase))
	if !cfg.Cache.Disable {
		if cache, err := openCache(cfg); err == nil {
			bazelClient = infocache.Wrap(bazelClient, cache)
		} else {
			log.Printf("bzlnav: info cache unavailable: %v", err)
		}
	}
	registry := workspace.NewRegistry(bazelClient, workspace.WithQueryOutputBase(cfg.Bazel.QueryOutputBase))

	var opts []complete.Option
	if cfg.Completion.DisableQueries {
		opts = append(opts, complete.WithoutQueries())
	}

	return &tool{
		cfg:      cfg,
		resolver: resolve.New(registry, bazelClient),
		engine:   complete.NewEngine(registry, bazelClient, opts...),
		current:  current,
		override: override,
	}
}

func openCache(cfg *bzlconfig.Config) (*infocache.Cache, error) {
	if cfg.Cache.Dir != "" {
		return infocache.New(cfg.Cache.Dir), nil
	}
	return infocache.Default()
}

// opCtx bounds one engine operation by the configured timeout.
func (t *tool) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := t.cfg.Bazel.Timeout.Duration; d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return ctx, func() {}
}

func (t *tool) resolveLabel(ctx context.Context, text string, stdout, stderr io.Writer) int {
	path, err := t.loadTarget(ctx, text)
	if err != nil {
		cli.Writef(stderr, "bzlnav: %v\n", err)
		return cli.ExitError
	}
	cli.Writeln(stdout, path)
	return cli.ExitOK
}

// loadTarget resolves a label string to the path it names.
func (t *tool) loadTarget(ctx context.Context, text string) (string, error) {
	opCtx, cancel := t.opCtx(ctx)
	defer cancel()
	target, err := t.resolver.Load(opCtx, text, t.current, t.override)
	if err != nil {
		return "", err
	}
	if path, ok := target.Filename(); ok {
		return path, nil
	}
	return target.String(), nil
}

func (t *tool) renderPath(ctx context.Context, path string, stdout, stderr io.Writer) int {
	if !t.current.IsFile() {
		cli.Writeln(stderr, "bzlnav: -render requires -from")
		return cli.ExitError
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		cli.Writef(stderr, "bzlnav: %v\n", err)
		return cli.ExitError
	}
	opCtx, cancel := t.opCtx(ctx)
	defer cancel()
	rendered, err := t.resolver.RenderAsLoad(opCtx, docurl.File(abs), t.current, t.override)
	if err != nil {
		cli.Writef(stderr, "bzlnav: %v\n", err)
		return cli.ExitError
	}
	cli.Writeln(stdout, rendered)
	return cli.ExitOK
}

func (t *tool) completePartial(ctx context.Context, s string, st complete.StringType, stdout, stderr io.Writer) int {
	opCtx, cancel := t.opCtx(ctx)
	defer cancel()
	candidates, err := t.engine.Complete(opCtx, t.current, st, s, t.override)
	if err != nil {
		cli.Writef(stderr, "bzlnav: %v\n", err)
		return cli.ExitError
	}
	if len(candidates) == 0 {
		cli.Writeln(stderr, "bzlnav: no candidates")
		return cli.ExitWarning
	}
	writeCandidates(stdout, candidates)
	return cli.ExitOK
}

// writeCandidates prints one candidate per line in aligned columns. The
// kind column is colorized only on terminals. Every escape sequence has
// the same byte length, so tabwriter still pads the column consistently.
func writeCandidates(w io.Writer, candidates []complete.Candidate) {
	color := false
	if f, ok := w.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range candidates {
		kind := string(c.Kind)
		if color {
			kind = kindColors[c.Kind] + kind + ansiReset
		}
		cli.Writef(tw, "%s\t%s\t%s\n", kind, c.Value, c.InsertText)
	}
	_ = tw.Flush()
}

var kindColors = map[complete.Kind]string{
	complete.KindRepository: "\x1b[36m",
	complete.KindFolder:     "\x1b[34m",
	complete.KindFile:       "\x1b[32m",
	complete.KindTarget:     "\x1b[33m",
}

const ansiReset = "\x1b[0m"
