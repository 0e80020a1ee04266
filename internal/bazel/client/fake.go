package client

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a canned Client for tests. The zero value fails every call;
// populate the result fields for the operations under test. Calls counts
// collaborator traffic so tests can assert how often each operation ran.
type Fake struct {
	InfoResult        Info
	InfoErr           error
	QueryResults      map[string]string            // pattern -> raw query output
	RepoMappings      map[string]map[string]string // repo -> mapping
	BuildLanguageData []byte

	mu    sync.Mutex
	calls CallCounts
}

// CallCounts records how many times each Client operation ran.
type CallCounts struct {
	Info, Query, DumpRepoMapping, BuildLanguage int
}

// Calls returns a snapshot of the call counters.
func (f *Fake) Calls() CallCounts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Info implements Client.
func (f *Fake) Info(ctx context.Context, root string) (Info, error) {
	f.mu.Lock()
	f.calls.Info++
	f.mu.Unlock()
	if f.InfoErr != nil {
		return Info{}, f.InfoErr
	}
	if f.InfoResult == (Info{}) {
		return Info{}, fmt.Errorf("fake: no info for %s", root)
	}
	return f.InfoResult, nil
}

// Query implements Client.
func (f *Fake) Query(ctx context.Context, root, pattern string) (string, error) {
	f.mu.Lock()
	f.calls.Query++
	f.mu.Unlock()
	out, ok := f.QueryResults[pattern]
	if !ok {
		return "", fmt.Errorf("fake: no query result for %q", pattern)
	}
	return out, nil
}

// DumpRepoMapping implements Client.
func (f *Fake) DumpRepoMapping(ctx context.Context, root, repo string) (map[string]string, error) {
	f.mu.Lock()
	f.calls.DumpRepoMapping++
	f.mu.Unlock()
	mapping, ok := f.RepoMappings[repo]
	if !ok {
		return nil, fmt.Errorf("fake: no repo mapping for %q", repo)
	}
	return mapping, nil
}

// BuildLanguage implements Client.
func (f *Fake) BuildLanguage(ctx context.Context, root string) ([]byte, error) {
	f.mu.Lock()
	f.calls.BuildLanguage++
	f.mu.Unlock()
	if f.BuildLanguageData == nil {
		return nil, fmt.Errorf("fake: no build language")
	}
	return f.BuildLanguageData, nil
}
