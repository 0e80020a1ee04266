// Package infocache persists `bazel info` results across processes.
//
// Starting a Bazel server just to learn where a workspace keeps its
// output base can take seconds; the answers only change when the
// workspace boundary files change. Entries are keyed by workspace root
// and stamped with the modification times of those files, so a stale
// entry is simply not returned.
package infocache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/albertocavalcante/bzlnav/internal/bazel/client"
)

// boundaryFiles are the workspace files whose modification times stamp a
// cache entry. A change to any of them drops the entry.
var boundaryFiles = []string{
	"WORKSPACE",
	"WORKSPACE.bazel",
	"MODULE.bazel",
	".bazelversion",
}

type entry struct {
	Info   client.Info      `json:"info"`
	Stamps map[string]int64 `json:"stamps"`
}

// Cache stores info results under a directory.
type Cache struct {
	Dir string
}

// New returns a cache rooted at dir.
func New(dir string) *Cache {
	return &Cache{Dir: dir}
}

// Default returns the per-user cache. BZLNAV_CACHE_DIR overrides the
// location.
func Default() (*Cache, error) {
	if override := os.Getenv("BZLNAV_CACHE_DIR"); override != "" {
		return &Cache{Dir: override}, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}
	return &Cache{Dir: filepath.Join(base, "bzlnav")}, nil
}

func (c *Cache) file() string {
	return filepath.Join(c.Dir, "info.json")
}

func (c *Cache) lockFile() string {
	return filepath.Join(c.Dir, "info.lock")
}

// Get returns the cached info for root if its stamps still match.
func (c *Cache) Get(root string) (client.Info, bool) {
	entries, err := c.load()
	if err != nil {
		return client.Info{}, false
	}
	e, ok := entries[root]
	if !ok {
		return client.Info{}, false
	}
	if !stampsEqual(e.Stamps, stamp(root)) {
		return client.Info{}, false
	}
	return e.Info, true
}

// Put records info for root, stamping it against the current state of
// the workspace boundary files.
func (c *Cache) Put(root string, info client.Info) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}

	lock := flock.New(c.lockFile())
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	entries, err := c.load()
	if err != nil {
		// A corrupt cache file is replaced, not fatal.
		entries = nil
	}
	if entries == nil {
		entries = map[string]entry{}
	}
	entries[root] = entry{Info: info, Stamps: stamp(root)}
	return c.store(entries)
}

func (c *Cache) load() (map[string]entry, error) {
	data, err := os.ReadFile(c.file())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var entries map[string]entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Cache) store(entries map[string]entry) error {
	tmp, err := os.CreateTemp(c.Dir, ".tmp-*.json")
	if err != nil {
		return err
	}
	cleaned := false
	defer func() {
		if !cleaned {
			_ = os.Remove(tmp.Name())
		}
	}()

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(entries); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), c.file()); err != nil {
		return err
	}
	cleaned = true
	return nil
}

// stamp snapshots the boundary file modification times under root.
// Missing files stamp as zero so their later appearance invalidates.
func stamp(root string) map[string]int64 {
	stamps := make(map[string]int64, len(boundaryFiles))
	for _, name := range boundaryFiles {
		var mtime int64
		if fi, err := os.Stat(filepath.Join(root, name)); err == nil {
			mtime = fi.ModTime().UnixNano()
		}
		stamps[name] = mtime
	}
	return stamps
}

func stampsEqual(a, b map[string]int64) bool {
	if len(a) != len(b) {
		return false
	}
	for name, mtime := range a {
		if b[name] != mtime {
			return false
		}
	}
	return true
}

// Client decorates an inner Bazel client so Info answers come from the
// cache when fresh. All other calls pass through.
type Client struct {
	client.Client
	cache *Cache
}

// Wrap returns inner with its Info calls backed by cache.
func Wrap(inner client.Client, cache *Cache) *Client {
	return &Client{Client: inner, cache: cache}
}

// Info returns the cached result for root when its stamps match;
// otherwise it asks the inner client and records the answer. Cache
// write failures are ignored: a cold cache only costs time.
func (c *Client) Info(ctx context.Context, root string) (client.Info, error) {
	if info, ok := c.cache.Get(root); ok {
		return info, nil
	}
	info, err := c.Client.Info(ctx, root)
	if err != nil {
		return client.Info{}, err
	}
	_ = c.cache.Put(root, info)
	return info, nil
}
