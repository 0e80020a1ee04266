package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/albertocavalcante/bzlnav/internal/bazel/buildlang"
	"github.com/albertocavalcante/bzlnav/internal/docurl"
)

func (s *Server) handleHover(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.HoverParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("parsing hover params: %w", err)
	}

	doc, ok := s.document(p.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var markdown string
	if text, ok := stringAt(doc.Content, int(p.Position.Line), int(p.Position.Character)); ok {
		markdown = s.labelHover(ctx, p.TextDocument.URI, text)
	} else if word := wordAt(doc.Content, int(p.Position.Line), int(p.Position.Character)); word != "" {
		markdown = s.ruleHover(ctx, p.TextDocument.URI, word)
	}
	if markdown == "" {
		return nil, nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: markdown,
		},
	}, nil
}

// labelHover shows where a label string leads.
func (s *Server) labelHover(ctx context.Context, uri protocol.DocumentURI, text string) string {
	if text == "" {
		return ""
	}
	current := docurl.Parse(string(uri))
	target, err := s.resolver.Load(ctx, text, current, s.rootOverridePath())
	if err != nil {
		log.Printf("hover for %q: %v", text, err)
		return ""
	}
	path, ok := target.Filename()
	if !ok {
		return ""
	}
	return fmt.Sprintf("`%s`\n\nResolves to `%s`", text, path)
}

// ruleHover shows the build-language documentation of a native rule.
func (s *Server) ruleHover(ctx context.Context, uri protocol.DocumentURI, word string) string {
	for _, rule := range s.rulesFor(ctx, uri) {
		if rule.Name == word {
			return formatRuleHover(rule)
		}
	}
	return ""
}

// formatRuleHover renders a rule's catalog entry as Markdown. Optional
// attributes are summarized rather than listed; rules like cc_library
// carry dozens of them.
func formatRuleHover(rule buildlang.Rule) string {
	var b strings.Builder
	b.WriteString("```python\n")
	b.WriteString(rule.Signature())
	b.WriteString("\n```\n")

	if rule.Documentation != "" {
		b.WriteString("\n")
		b.WriteString(rule.Documentation)
		b.WriteString("\n")
	}

	var mandatory []buildlang.Attribute
	optional := 0
	for _, attr := range rule.Attributes {
		if attr.Mandatory {
			mandatory = append(mandatory, attr)
		} else {
			optional++
		}
	}
	if len(mandatory) > 0 {
		b.WriteString("\n**Attributes:**\n")
		for _, attr := range mandatory {
			b.WriteString("- `")
			b.WriteString(attr.Name)
			b.WriteString("` (")
			b.WriteString(attr.Type)
			b.WriteString(")")
			if attr.Documentation != "" {
				b.WriteString(": ")
				b.WriteString(attr.Documentation)
			}
			b.WriteString("\n")
		}
	}
	if optional > 0 {
		fmt.Fprintf(&b, "\nOptional attributes: %d\n", optional)
	}
	return b.String()
}

// wordAt extracts the identifier covering the given position.
func wordAt(content string, line, character int) string {
	text, ok := lineAt(content, line)
	if !ok {
		return ""
	}
	character = byteColumn(text, character)
	start := character
	for start > 0 && isIdentChar(text[start-1]) {
		start--
	}
	end := character
	for end < len(text) && isIdentChar(text[end]) {
		end++
	}
	return text[start:end]
}
