package complete

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/albertocavalcante/bzlnav/internal/bazel/client"
	"github.com/albertocavalcante/bzlnav/internal/bazel/workspace"
	"github.com/albertocavalcante/bzlnav/internal/docurl"
)

type fixture struct {
	root string
	out  string
	cli  *client.Fake
	eng  *Engine
}

// newFixture lays out a bzlmod workspace whose foo package holds a build
// file, two sources and a subdirectory, plus an external rules_go
// repository reachable through the apparent name "go".
func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "myws")
	out := filepath.Join(base, "out")

	for _, name := range []string{
		"lib.bzl",
		"foo/BUILD",
		"foo/helper.bzl",
		"foo/main.cc",
		"foo/inner/input.txt",
	} {
		mustWrite(t, filepath.Join(root, name), "")
	}
	mustWrite(t, filepath.Join(out, "external", "rules_go", "BUILD.bazel"), "")
	mustWrite(t, filepath.Join(out, "external", "rules_go", "DO_NOT_BUILD_HERE"), root)
	mustWrite(t, filepath.Join(out, "external", "rules_go", "go", "def.bzl"), "")

	cli := &client.Fake{
		InfoResult: client.Info{
			WorkspaceRoot: root,
			OutputBase:    out,
			ExecutionRoot: filepath.Join(out, "execroot", "_main"),
		},
		RepoMappings: map[string]map[string]string{
			"": {"": "", "go": "rules_go"},
		},
		QueryResults: map[string]string{
			"//foo:*": "//foo:main\n//foo:gen\n",
		},
	}
	return &fixture{root: root, out: out, cli: cli, eng: NewEngine(workspace.NewRegistry(cli), cli)}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestComplete_EmptyString(t *testing.T) {
	fx := newFixture(t)
	doc := docurl.File(filepath.Join(fx.root, "foo", "BUILD"))

	got, err := fx.eng.Complete(context.Background(), doc, PlainString, "", fx.root)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	want := []Candidate{
		{Value: "@go", InsertText: "@go//", InsertOffset: 0, Kind: KindRepository},
		{Value: "helper.bzl", InsertText: "helper.bzl", InsertOffset: 0, Kind: KindFile},
		{Value: "inner", InsertText: "inner", InsertOffset: 0, Kind: KindFolder},
		{Value: "main.cc", InsertText: "main.cc", InsertOffset: 0, Kind: KindFile},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Complete(\"\") mismatch (-want +got):\n%s", diff)
	}
}

func TestComplete_TargetsFromQuery(t *testing.T) {
	fx := newFixture(t)
	doc := docurl.File(filepath.Join(fx.root, "lib.bzl"))

	got, err := fx.eng.Complete(context.Background(), doc, PlainString, "//foo:", fx.root)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	want := []Candidate{
		{Value: "main", InsertText: "main", InsertOffset: 6, Kind: KindTarget},
		{Value: "gen", InsertText: "gen", InsertOffset: 6, Kind: KindTarget},
		{Value: "helper.bzl", InsertText: "helper.bzl", InsertOffset: 6, Kind: KindFile},
		{Value: "main.cc", InsertText: "main.cc", InsertOffset: 6, Kind: KindFile},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Complete(\"//foo:\") mismatch (-want +got):\n%s", diff)
	}
}

func TestComplete_LoadPathOffersOnlyLoadableFiles(t *testing.T) {
	fx := newFixture(t)
	doc := docurl.File(filepath.Join(fx.root, "lib.bzl"))

	got, err := fx.eng.Complete(context.Background(), doc, LoadPath, "//foo:", fx.root)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	want := []Candidate{
		{Value: "helper.bzl", InsertText: "helper.bzl", InsertOffset: 6, Kind: KindFile},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Complete mismatch (-want +got):\n%s", diff)
	}
	if calls := fx.cli.Calls(); calls.Query != 0 {
		t.Errorf("load path completion ran %d queries, want 0", calls.Query)
	}
}

func TestComplete_LoadPathAfterDirectory(t *testing.T) {
	fx := newFixture(t)
	doc := docurl.File(filepath.Join(fx.root, "lib.bzl"))

	got, err := fx.eng.Complete(context.Background(), doc, LoadPath, "//foo/", fx.root)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	want := []Candidate{
		{Value: "helper.bzl", InsertText: ":helper.bzl", InsertOffset: 6, Kind: KindFile},
		{Value: "inner", InsertText: "inner", InsertOffset: 6, Kind: KindFolder},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Complete(\"//foo/\") mismatch (-want +got):\n%s", diff)
	}
}

func TestComplete_SkipsDanglingSymlinks(t *testing.T) {
	fx := newFixture(t)
	if err := os.Symlink(filepath.Join(fx.root, "foo", "gone"), filepath.Join(fx.root, "foo", "broken")); err != nil {
		t.Skipf("symlink: %v", err)
	}
	doc := docurl.File(filepath.Join(fx.root, "foo", "BUILD"))

	got, err := fx.eng.Complete(context.Background(), doc, PlainString, "", fx.root)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	for _, c := range got {
		if c.Value == "broken" {
			t.Errorf("dangling symlink offered as %v candidate", c.Kind)
		}
	}
}

func TestComplete_RepositoryContents(t *testing.T) {
	fx := newFixture(t)
	doc := docurl.File(filepath.Join(fx.root, "lib.bzl"))

	got, err := fx.eng.Complete(context.Background(), doc, PlainString, "@go//", fx.root)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	want := []Candidate{
		{Value: "go", InsertText: "go", InsertOffset: 5, Kind: KindFolder},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Complete(\"@go//\") mismatch (-want +got):\n%s", diff)
	}
	// The mapping is computed once up front and once while resolving the
	// enumeration root.
	if calls := fx.cli.Calls(); calls.DumpRepoMapping != 2 {
		t.Errorf("DumpRepoMapping ran %d times, want 2", calls.DumpRepoMapping)
	}
}

func TestComplete_RepositoryNames(t *testing.T) {
	fx := newFixture(t)
	doc := docurl.File(filepath.Join(fx.root, "lib.bzl"))

	got, err := fx.eng.Complete(context.Background(), doc, PlainString, "@", fx.root)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	want := []Candidate{
		{Value: "@go", InsertText: "@go//", InsertOffset: 0, Kind: KindRepository},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Complete(\"@\") mismatch (-want +got):\n%s", diff)
	}
	if calls := fx.cli.Calls(); calls.DumpRepoMapping != 1 {
		t.Errorf("DumpRepoMapping ran %d times, want 1", calls.DumpRepoMapping)
	}
}

func TestComplete_MappingFailureFallsBackToStoreNames(t *testing.T) {
	fx := newFixture(t)
	fx.cli.RepoMappings = nil
	doc := docurl.File(filepath.Join(fx.root, "lib.bzl"))

	got, err := fx.eng.Complete(context.Background(), doc, PlainString, "@", fx.root)
	if err != nil {
		t.Fatalf("Complete must not fail on a mapping failure: %v", err)
	}
	want := []Candidate{
		{Value: "@rules_go", InsertText: "@rules_go//", InsertOffset: 0, Kind: KindRepository},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Complete(\"@\") mismatch (-want +got):\n%s", diff)
	}
}

func TestComplete_UnknownRepositorySkipsEnumeration(t *testing.T) {
	fx := newFixture(t)
	doc := docurl.File(filepath.Join(fx.root, "lib.bzl"))

	got, err := fx.eng.Complete(context.Background(), doc, PlainString, "@nope//", fx.root)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Complete(\"@nope//\") = %v, want no candidates", got)
	}
}

func TestComplete_WithoutQueries(t *testing.T) {
	fx := newFixture(t)
	eng := NewEngine(workspace.NewRegistry(fx.cli), fx.cli, WithoutQueries())
	doc := docurl.File(filepath.Join(fx.root, "lib.bzl"))

	got, err := eng.Complete(context.Background(), doc, PlainString, "//foo:", fx.root)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	want := []Candidate{
		{Value: "helper.bzl", InsertText: "helper.bzl", InsertOffset: 6, Kind: KindFile},
		{Value: "main.cc", InsertText: "main.cc", InsertOffset: 6, Kind: KindFile},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Complete mismatch (-want +got):\n%s", diff)
	}
	if calls := fx.cli.Calls(); calls.Query != 0 {
		t.Errorf("Query ran %d times with queries disabled", calls.Query)
	}
}

func TestComplete_QueryFailureIsSwallowed(t *testing.T) {
	fx := newFixture(t)
	fx.cli.QueryResults = nil
	doc := docurl.File(filepath.Join(fx.root, "lib.bzl"))

	got, err := fx.eng.Complete(context.Background(), doc, PlainString, "//foo:", fx.root)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	want := []Candidate{
		{Value: "helper.bzl", InsertText: "helper.bzl", InsertOffset: 6, Kind: KindFile},
		{Value: "main.cc", InsertText: "main.cc", InsertOffset: 6, Kind: KindFile},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Complete mismatch (-want +got):\n%s", diff)
	}
}

func TestComplete_EnumerationFailurePropagates(t *testing.T) {
	fx := newFixture(t)
	doc := docurl.File(filepath.Join(fx.root, "lib.bzl"))

	if _, err := fx.eng.Complete(context.Background(), doc, PlainString, "//missing/", fx.root); err == nil {
		t.Fatal("Complete of an unreadable directory should fail")
	}
}

func TestComplete_WithoutWorkspace(t *testing.T) {
	fx := newFixture(t)
	doc := docurl.File(filepath.Join(fx.root, "foo", "BUILD"))

	got, err := fx.eng.Complete(context.Background(), doc, PlainString, "he", "")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	want := []Candidate{
		{Value: "helper.bzl", InsertText: "helper.bzl", InsertOffset: 0, Kind: KindFile},
		{Value: "inner", InsertText: "inner", InsertOffset: 0, Kind: KindFolder},
		{Value: "main.cc", InsertText: "main.cc", InsertOffset: 0, Kind: KindFile},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Complete mismatch (-want +got):\n%s", diff)
	}
	if calls := fx.cli.Calls(); calls.DumpRepoMapping != 0 {
		t.Errorf("DumpRepoMapping ran %d times without a workspace", calls.DumpRepoMapping)
	}
}

func TestComplete_VirtualDocument(t *testing.T) {
	fx := newFixture(t)

	got, err := fx.eng.Complete(context.Background(), docurl.Parse("untitled:1"), PlainString, "ma", "")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Complete from a virtual document = %v, want none", got)
	}
}
