// Package bzlnavlsp implements the bzlnav-lsp command.
package bzlnavlsp

import (
	"context"
	"flag"
	"io"
	"log"
	"os"

	"github.com/albertocavalcante/bzlnav/internal/bazel/client"
	"github.com/albertocavalcante/bzlnav/internal/bzlconfig"
	"github.com/albertocavalcante/bzlnav/internal/cli"
	"github.com/albertocavalcante/bzlnav/internal/lsp"
	"github.com/albertocavalcante/bzlnav/internal/version"
)

// Run executes bzlnav-lsp with the given arguments.
func Run(args []string) int {
	return RunWithIO(context.Background(), args, os.Stdin, os.Stdout, os.Stderr)
}

// RunWithIO allows custom IO for testing.
func RunWithIO(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var (
		versionFlag bool
		verboseFlag bool
	)

	fs := flag.NewFlagSet("bzlnav-lsp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&versionFlag, "version", false, "print version and exit")
	fs.BoolVar(&verboseFlag, "v", false, "verbose logging to stderr")

	fs.Usage = func() {
		cli.Writeln(stderr, "Usage: bzlnav-lsp [flags]")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Language server for Bazel label navigation.")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "The server communicates over stdio using JSON-RPC 2.0.")
		cli.Writeln(stderr, "Configure your editor to launch this binary as an LSP server.")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Features:")
		cli.Writeln(stderr, "  - Go to definition on label strings")
		cli.Writeln(stderr, "  - Label and rule-name completion")
		cli.Writeln(stderr, "  - Hover on labels and rule names")
		cli.Writeln(stderr, "  - Document links on load() paths")
		cli.Writeln(stderr, "  - Diagnostics for unresolvable load() paths")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Flags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return cli.ExitOK
		}
		return cli.ExitError
	}

	if versionFlag {
		cli.Writef(stdout, "bzlnav-lsp %s\n", version.String())
		return cli.ExitOK
	}

	// Setup logging
	if verboseFlag {
		log.SetOutput(stderr)
		log.SetFlags(log.Ltime | log.Lshortfile)
	} else {
		log.SetOutput(io.Discard)
	}

	wd, err := os.Getwd()
	if err != nil {
		cli.Writef(stderr, "bzlnav-lsp: %v\n", err)
		return cli.ExitError
	}
	cfg, cfgPath, err := bzlconfig.Discover(wd)
	if err != nil {
		cli.Writef(stderr, "bzlnav-lsp: %v\n", err)
		return cli.ExitError
	}
	if cfgPath != "" {
		log.Printf("bzlnav-lsp: config %s", cfgPath)
	}
	if cfg.Bazel.Path == "" {
		cfg.Bazel.Path = "bazel"
	}

	bazelClient := client.NewCLI(cfg.Bazel.Path, client.WithQueryOutputBase(cfg.Bazel.QueryOutputBase))

	// Create context with cancellation for clean shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := lsp.NewServer(cfg, bazelClient, cancel)

	// Create stdio connection
	rwc := &stdioConn{
		Reader: stdin,
		Writer: stdout,
	}

	conn := lsp.NewConn(rwc, server)
	server.SetConn(conn)

	log.Printf("bzlnav-lsp: starting server")

	// Run the server
	if err := conn.Run(ctx); err != nil && ctx.Err() == nil {
		cli.Writef(stderr, "bzlnav-lsp: %v\n", err)
		return cli.ExitError
	}

	log.Printf("bzlnav-lsp: server stopped")
	return cli.ExitOK
}

// stdioConn wraps stdin/stdout as an io.ReadWriteCloser.
type stdioConn struct {
	io.Reader
	io.Writer
}

func (s *stdioConn) Close() error {
	return nil
}
