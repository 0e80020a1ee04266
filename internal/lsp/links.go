package lsp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bazelbuild/buildtools/build"
	"go.lsp.dev/protocol"

	"github.com/albertocavalcante/bzlnav/internal/docurl"
)

// handleDocumentLink marks every load() path with a link to the file it
// resolves to. Paths that do not resolve simply get no link; diagnostics
// is the surface that explains why.
func (s *Server) handleDocumentLink(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DocumentLinkParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("parsing document link params: %w", err)
	}

	doc, ok := s.document(p.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	current := docurl.Parse(string(p.TextDocument.URI))
	path, ok := current.Filename()
	if !ok {
		return nil, nil
	}
	file, err := parseBazelFile(path, []byte(doc.Content))
	if err != nil {
		return nil, nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	override := s.rootOverridePath()
	links := []protocol.DocumentLink{}
	for _, stmt := range file.Stmt {
		load, ok := stmt.(*build.LoadStmt)
		if !ok || load.Module == nil {
			continue
		}
		target, err := s.resolver.Load(ctx, load.Module.Value, current, override)
		if err != nil {
			continue
		}
		start, end := load.Module.Span()
		links = append(links, protocol.DocumentLink{
			Range:  spanToRange(start, end),
			Target: protocol.DocumentURI(target.String()),
		})
	}
	return links, nil
}
