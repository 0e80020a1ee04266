package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode/utf16"

	"go.lsp.dev/protocol"

	"github.com/albertocavalcante/bzlnav/internal/bazel/complete"
	"github.com/albertocavalcante/bzlnav/internal/bazel/filetype"
	"github.com/albertocavalcante/bzlnav/internal/docurl"
)

func (s *Server) handleCompletion(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.CompletionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("parsing completion params: %w", err)
	}

	doc, ok := s.document(p.TextDocument.URI)
	if !ok {
		return &protocol.CompletionList{Items: []protocol.CompletionItem{}}, nil
	}

	if lit, ok := stringContext(doc.Content, int(p.Position.Line), int(p.Position.Character)); ok {
		return s.labelCompletions(ctx, p, lit), nil
	}
	return s.ruleCompletions(ctx, p.TextDocument.URI, doc.Content, p.Position), nil
}

// labelCompletions completes the partially-typed label inside a string
// literal. Failures produce an empty list rather than an error response;
// an editor retriggers completion on every keystroke.
func (s *Server) labelCompletions(ctx context.Context, p protocol.CompletionParams, lit stringLiteral) *protocol.CompletionList {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	doc := docurl.Parse(string(p.TextDocument.URI))
	candidates, err := s.engine.Complete(ctx, doc, lit.kind, lit.prefix, s.rootOverridePath())
	if err != nil {
		log.Printf("label completion for %q: %v", lit.prefix, err)
		return &protocol.CompletionList{Items: []protocol.CompletionItem{}}
	}

	items := make([]protocol.CompletionItem, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, protocol.CompletionItem{
			Label: c.Value,
			Kind:  completionKind(c.Kind),
			TextEdit: &protocol.TextEdit{
				Range: protocol.Range{
					Start: protocol.Position{
						Line:      p.Position.Line,
						Character: utf16Column(lit.line, lit.start+c.InsertOffset),
					},
					End: p.Position,
				},
				NewText: c.InsertText,
			},
		})
	}
	return &protocol.CompletionList{IsIncomplete: false, Items: items}
}

func completionKind(kind complete.Kind) protocol.CompletionItemKind {
	switch kind {
	case complete.KindRepository:
		return protocol.CompletionItemKindModule
	case complete.KindFolder:
		return protocol.CompletionItemKindFolder
	case complete.KindFile:
		return protocol.CompletionItemKindFile
	case complete.KindTarget:
		return protocol.CompletionItemKindValue
	default:
		return protocol.CompletionItemKindText
	}
}

// ruleCompletions completes rule names from the build language outside
// string literals. Rules are callable in BUILD and WORKSPACE files only.
func (s *Server) ruleCompletions(ctx context.Context, uri protocol.DocumentURI, content string, pos protocol.Position) *protocol.CompletionList {
	items := []protocol.CompletionItem{}

	path, ok := docurl.Parse(string(uri)).Filename()
	if !ok {
		return &protocol.CompletionList{Items: items}
	}
	switch filetype.FromPath(path) {
	case filetype.TypeBuild, filetype.TypeWorkspace:
	default:
		return &protocol.CompletionList{Items: items}
	}

	prefix := identifierPrefix(content, int(pos.Line), int(pos.Character))
	if prefix == "" {
		return &protocol.CompletionList{Items: items}
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	for _, rule := range s.rulesFor(ctx, uri) {
		if !strings.HasPrefix(rule.Name, prefix) {
			continue
		}
		item := protocol.CompletionItem{
			Label:            rule.Name,
			Kind:             protocol.CompletionItemKindFunction,
			Detail:           rule.Signature(),
			InsertText:       rule.Name + "($0)",
			InsertTextFormat: protocol.InsertTextFormatSnippet,
		}
		if rule.Documentation != "" {
			item.Documentation = rule.Documentation
		}
		items = append(items, item)
	}
	return &protocol.CompletionList{IsIncomplete: false, Items: items}
}

// stringLiteral is the string under the cursor, located by stringContext.
type stringLiteral struct {
	// prefix is the text between the opening quote and the cursor.
	prefix string
	// line is the full line the literal sits on.
	line string
	// start is the byte offset of the first character after the opening
	// quote.
	start int
	// kind classifies the surrounding call: the first argument of load()
	// completes as a load path, everything else as a plain label string.
	kind complete.StringType
}

// stringContext reports whether the cursor sits inside a string literal,
// scanning the line's quote state up to the cursor column. character is a
// UTF-16 column, as positions arrive on the wire.
func stringContext(content string, line, character int) (stringLiteral, bool) {
	text, ok := lineAt(content, line)
	if !ok {
		return stringLiteral{}, false
	}
	character = byteColumn(text, character)

	in := false
	var quote byte
	start := 0
	for i := 0; i < character; i++ {
		c := text[i]
		if in {
			switch c {
			case '\\':
				i++
			case quote:
				in = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			in = true
			quote = c
			start = i + 1
		case '#':
			return stringLiteral{}, false
		}
	}
	if !in {
		return stringLiteral{}, false
	}

	kind := complete.PlainString
	if strings.HasSuffix(strings.TrimSpace(text[:start-1]), "load(") {
		kind = complete.LoadPath
	}
	return stringLiteral{
		prefix: text[start:character],
		line:   text,
		start:  start,
		kind:   kind,
	}, true
}

// identifierPrefix extracts the identifier ending at the cursor position.
func identifierPrefix(content string, line, character int) string {
	text, ok := lineAt(content, line)
	if !ok {
		return ""
	}
	character = byteColumn(text, character)
	start := character
	for start > 0 && isIdentChar(text[start-1]) {
		start--
	}
	return text[start:character]
}

func isIdentChar(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' || ch == '_'
}

// lineAt returns the line'th line of content without its newline.
func lineAt(content string, line int) (string, bool) {
	if line < 0 {
		return "", false
	}
	rest := content
	for ; line > 0; line-- {
		_, after, found := strings.Cut(rest, "\n")
		if !found {
			return "", false
		}
		rest = after
	}
	text, _, _ := strings.Cut(rest, "\n")
	return text, true
}

// byteColumn converts a UTF-16 column into a byte index within text,
// clamping to the end of the line.
func byteColumn(text string, character int) int {
	u := 0
	for i, r := range text {
		if u >= character {
			return i
		}
		u += utf16.RuneLen(r)
	}
	return len(text)
}

// utf16Column converts a byte index within text into a UTF-16 column.
func utf16Column(text string, offset int) uint32 {
	u := 0
	for i, r := range text {
		if i >= offset {
			break
		}
		u += utf16.RuneLen(r)
	}
	return uint32(u)
}
