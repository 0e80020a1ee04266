package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"

	"go.lsp.dev/protocol"

	"github.com/albertocavalcante/bzlnav/internal/bazel/filetype"
	"github.com/albertocavalcante/bzlnav/internal/bazel/label"
	"github.com/albertocavalcante/bzlnav/internal/docurl"
)

// handleDefinition jumps from a label string to the file it names. When
// the label names a rule declared in a build file, the location narrows
// to the rule's declaration.
func (s *Server) handleDefinition(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DefinitionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("parsing definition params: %w", err)
	}

	doc, ok := s.document(p.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	text, ok := stringAt(doc.Content, int(p.Position.Line), int(p.Position.Character))
	if !ok || text == "" {
		return nil, nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	current := docurl.Parse(string(p.TextDocument.URI))
	target, err := s.resolver.Load(ctx, text, current, s.rootOverridePath())
	if err != nil {
		log.Printf("definition for %q: %v", text, err)
		return nil, nil
	}

	loc := protocol.Location{URI: protocol.DocumentURI(target.String())}
	if r, ok := s.ruleLocation(text, target); ok {
		loc.Range = r
	}
	return []protocol.Location{loc}, nil
}

// ruleLocation finds the declaration of the rule a label names inside
// the build file the label resolved to.
func (s *Server) ruleLocation(text string, target docurl.URL) (protocol.Range, bool) {
	l, err := label.Parse(text)
	if err != nil || l.Name == "" {
		return protocol.Range{}, false
	}
	path, ok := target.Filename()
	if !ok {
		return protocol.Range{}, false
	}
	// Only build files declare rules, and a label that resolved to the
	// named file itself needs no narrowing.
	if filetype.FromPath(path) != filetype.TypeBuild || filepath.Base(path) == l.Name {
		return protocol.Range{}, false
	}

	content, err := s.fileContent(path)
	if err != nil {
		return protocol.Range{}, false
	}
	file, err := parseBazelFile(path, []byte(content))
	if err != nil {
		return protocol.Range{}, false
	}
	for _, rule := range file.Rules("") {
		if rule.Name() != l.Name || rule.Call == nil {
			continue
		}
		start, end := rule.Call.Span()
		return spanToRange(start, end), true
	}
	return protocol.Range{}, false
}

// stringAt extracts the entire string literal covering the cursor.
func stringAt(content string, line, character int) (string, bool) {
	lit, ok := stringContext(content, line, character)
	if !ok {
		return "", false
	}
	text, _ := lineAt(content, line)
	character = byteColumn(text, character)
	quote := text[lit.start-1]
	for i := character; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case quote:
			return text[lit.start:i], true
		}
	}
	return "", false
}
