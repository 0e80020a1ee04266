// Command dump-build-language prints the rule catalog a bazel server
// advertises through `bazel info build-language`, the same data bzlnav-lsp
// feeds its rule-name completion and hover.
//
// Usage:
//
//	go run ./tools/dump-build-language [options]
//
// Options:
//
//	-input      Read a serialized catalog from a file instead of asking bazel
//	-workspace  Workspace directory to ask bazel in (default ".")
//	-bazel      Bazel binary to invoke (default "bazel")
//	-rule       Print one rule with its whole attribute schema
//	-raw        Copy the serialized catalog to stdout, for capturing fixtures
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/albertocavalcante/bzlnav/internal/bazel/buildlang"
	"github.com/albertocavalcante/bzlnav/internal/bazel/client"
	"github.com/albertocavalcante/bzlnav/internal/cli"
)

var (
	inputPath    = flag.String("input", "", "Path to a serialized build-language.pb file")
	workspaceDir = flag.String("workspace", ".", "Workspace directory to ask bazel in")
	bazelPath    = flag.String("bazel", "bazel", "Bazel binary to invoke")
	ruleName     = flag.String("rule", "", "Print a single rule with its attribute schema")
	rawOutput    = flag.Bool("raw", false, "Copy the serialized catalog to stdout")
	timeout      = flag.Duration("timeout", 2*time.Minute, "Bound the bazel invocation")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	data, err := catalogBytes()
	if err != nil {
		return err
	}

	if *rawOutput {
		cli.WriteBytes(os.Stdout, data)
		return nil
	}

	rules, err := buildlang.Decode(data)
	if err != nil {
		return err
	}

	if *ruleName != "" {
		for _, rule := range rules {
			if rule.Name == *ruleName {
				printRule(rule)
				return nil
			}
		}
		return fmt.Errorf("rule %q is not in the catalog", *ruleName)
	}

	for _, rule := range rules {
		cli.Writeln(os.Stdout, rule.Signature())
	}
	cli.Writef(os.Stderr, "%d rules\n", len(rules))
	return nil
}

// catalogBytes reads the serialized catalog from -input when given,
// otherwise it asks the bazel server of -workspace.
func catalogBytes() ([]byte, error) {
	if *inputPath != "" {
		data, err := os.ReadFile(*inputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		return data, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	return client.NewCLI(*bazelPath).BuildLanguage(ctx, *workspaceDir)
}

// printRule writes one rule with its full attribute schema. Mandatory
// attributes are starred.
func printRule(rule buildlang.Rule) {
	cli.Writeln(os.Stdout, rule.Signature())
	if rule.Documentation != "" {
		cli.Writeln(os.Stdout)
		cli.Writeln(os.Stdout, rule.Documentation)
	}
	cli.Writeln(os.Stdout)
	for _, attr := range rule.Attributes {
		marker := " "
		if attr.Mandatory {
			marker = "*"
		}
		cli.Writef(os.Stdout, "%s %-32s %s\n", marker, attr.Name, attr.Type)
	}
}
