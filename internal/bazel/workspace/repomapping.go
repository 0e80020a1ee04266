package workspace

import (
	"context"

	"github.com/albertocavalcante/bzlnav/internal/bazel/client"
	"github.com/albertocavalcante/bzlnav/internal/docurl"
)

// RepoMapping obtains the apparent-to-canonical repository name mapping
// visible from the repository containing doc. The mapping is not
// workspace-global: the same apparent name may translate differently
// depending on which repository's source text uses it. Best effort: any
// failure degrades to the empty mapping (identity translation), reported
// through ok rather than an error. Mappings are recomputed per call.
func RepoMapping(ctx context.Context, cli client.Client, ws *Workspace, doc docurl.URL) (mapping map[string]string, ok bool) {
	if ws == nil {
		return nil, false
	}
	repo := ""
	if path, isFile := doc.Filename(); isFile {
		if name, _, found := ws.RepositoryForPath(path); found {
			repo = name
		}
	}
	mapping, err := cli.DumpRepoMapping(ctx, ws.Root, repo)
	if err != nil {
		return nil, false
	}
	return mapping, true
}
