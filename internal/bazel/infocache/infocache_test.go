package infocache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/albertocavalcante/bzlnav/internal/bazel/client"
)

func testInfo(root string) client.Info {
	return client.Info{
		WorkspaceRoot: root,
		OutputBase:    "/out/abc123",
		ExecutionRoot: "/out/abc123/execroot/_main",
		Release:       "release 8.0.0",
	}
}

func TestCache_PutGet(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "MODULE.bazel"), "module(name = \"x\")\n")
	cache := New(t.TempDir())

	want := testInfo(root)
	if err := cache.Put(root, want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := cache.Get(root)
	if !ok {
		t.Fatal("Get missed right after Put")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestCache_GetMissesOnEmptyCache(t *testing.T) {
	cache := New(t.TempDir())
	if _, ok := cache.Get(t.TempDir()); ok {
		t.Fatal("Get hit an empty cache")
	}
}

func TestCache_BoundaryFileChangeInvalidates(t *testing.T) {
	root := t.TempDir()
	module := filepath.Join(root, "MODULE.bazel")
	mustWrite(t, module, "module(name = \"x\")\n")
	cache := New(t.TempDir())

	if err := cache.Put(root, testInfo(root)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(module, later, later); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.Get(root); ok {
		t.Fatal("Get hit after MODULE.bazel changed")
	}
}

func TestCache_BoundaryFileAppearanceInvalidates(t *testing.T) {
	root := t.TempDir()
	cache := New(t.TempDir())

	if err := cache.Put(root, testInfo(root)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	mustWrite(t, filepath.Join(root, ".bazelversion"), "8.0.0\n")
	if _, ok := cache.Get(root); ok {
		t.Fatal("Get hit after .bazelversion appeared")
	}
}

func TestCache_CorruptFileMisses(t *testing.T) {
	dir := t.TempDir()
	cache := New(dir)
	mustWrite(t, cache.file(), "{not json")

	root := t.TempDir()
	if _, ok := cache.Get(root); ok {
		t.Fatal("Get hit on a corrupt cache file")
	}
	// Put replaces the corrupt file.
	if err := cache.Put(root, testInfo(root)); err != nil {
		t.Fatalf("Put over corrupt file: %v", err)
	}
	if _, ok := cache.Get(root); !ok {
		t.Fatal("Get missed after Put replaced the corrupt file")
	}
}

func TestCache_HoldsMultipleRoots(t *testing.T) {
	cache := New(t.TempDir())
	rootA := t.TempDir()
	rootB := t.TempDir()

	if err := cache.Put(rootA, testInfo(rootA)); err != nil {
		t.Fatal(err)
	}
	if err := cache.Put(rootB, testInfo(rootB)); err != nil {
		t.Fatal(err)
	}
	a, ok := cache.Get(rootA)
	if !ok || a.WorkspaceRoot != rootA {
		t.Errorf("Get(%q) = %+v, %t", rootA, a, ok)
	}
	b, ok := cache.Get(rootB)
	if !ok || b.WorkspaceRoot != rootB {
		t.Errorf("Get(%q) = %+v, %t", rootB, b, ok)
	}
}

func TestWrap_ServesSecondCallFromCache(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "MODULE.bazel"), "")
	inner := &client.Fake{InfoResult: testInfo(root)}
	wrapped := Wrap(inner, New(t.TempDir()))

	ctx := context.Background()
	first, err := wrapped.Info(ctx, root)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	second, err := wrapped.Info(ctx, root)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second Info differs (-first +second):\n%s", diff)
	}
	if calls := inner.Calls(); calls.Info != 1 {
		t.Errorf("inner Info ran %d times, want 1", calls.Info)
	}
}

func TestWrap_PropagatesInnerFailure(t *testing.T) {
	inner := &client.Fake{}
	wrapped := Wrap(inner, New(t.TempDir()))

	if _, err := wrapped.Info(context.Background(), t.TempDir()); err == nil {
		t.Fatal("Info should propagate the inner failure")
	}
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
