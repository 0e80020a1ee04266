package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/bazelbuild/buildtools/build"
	"go.lsp.dev/protocol"

	"github.com/albertocavalcante/bzlnav/internal/bazel/buildlang"
	"github.com/albertocavalcante/bzlnav/internal/bazel/client"
	"github.com/albertocavalcante/bzlnav/internal/bazel/complete"
	"github.com/albertocavalcante/bzlnav/internal/bazel/filetype"
	"github.com/albertocavalcante/bzlnav/internal/bazel/label"
	"github.com/albertocavalcante/bzlnav/internal/bazel/resolve"
	"github.com/albertocavalcante/bzlnav/internal/bazel/workspace"
	"github.com/albertocavalcante/bzlnav/internal/bzlconfig"
	"github.com/albertocavalcante/bzlnav/internal/docurl"
	"github.com/albertocavalcante/bzlnav/internal/version"
)

// Server handles LSP requests for Bazel build files.
type Server struct {
	conn *Conn

	// State
	mu          sync.RWMutex
	initialized bool
	shutdown    bool
	documents   map[protocol.DocumentURI]*Document
	rootURI     protocol.DocumentURI

	cfg      *bzlconfig.Config
	cli      client.Client
	registry *workspace.Registry
	resolver *resolve.Resolver
	engine   *complete.Engine

	// Rule catalog per workspace root, fetched at most once each.
	langMu    sync.Mutex
	langRules map[string][]buildlang.Rule

	// Callbacks
	onExit func()
}

// Document represents an open text document.
type Document struct {
	URI     protocol.DocumentURI
	Version int32
	Content string
}

// NewServer creates an LSP server resolving labels through cli.
func NewServer(cfg *bzlconfig.Config, cli client.Client, onExit func()) *Server {
	if cfg == nil {
		cfg = bzlconfig.DefaultConfig()
	}
	registry := workspace.NewRegistry(cli, workspace.WithQueryOutputBase(cfg.Bazel.QueryOutputBase))
	var engineOpts []complete.Option
	if cfg.Completion.DisableQueries {
		engineOpts = append(engineOpts, complete.WithoutQueries())
	}
	return &Server{
		documents: make(map[protocol.DocumentURI]*Document),
		cfg:       cfg,
		cli:       cli,
		registry:  registry,
		resolver:  resolve.New(registry, cli),
		engine:    complete.NewEngine(registry, cli, engineOpts...),
		langRules: make(map[string][]buildlang.Rule),
		onExit:    onExit,
	}
}

// SetConn sets the connection for sending notifications.
func (s *Server) SetConn(conn *Conn) {
	s.conn = conn
}

// Handle implements Handler, routing requests to methods.
func (s *Server) Handle(ctx context.Context, req *Request) (any, error) {
	s.mu.RLock()
	shutdown := s.shutdown
	initialized := s.initialized
	s.mu.RUnlock()

	if shutdown && req.Method != "exit" {
		return nil, &ResponseError{
			Code:    CodeInvalidRequest,
			Message: "server is shutting down",
		}
	}

	if !initialized {
		switch req.Method {
		case "initialize", "initialized", "shutdown", "exit":
		default:
			return nil, &ResponseError{
				Code:    CodeInvalidRequest,
				Message: "server not initialized",
			}
		}
	}

	switch req.Method {
	// Lifecycle
	case "initialize":
		return s.handleInitialize(ctx, req.Params)
	case "initialized":
		return s.handleInitialized(ctx, req.Params)
	case "shutdown":
		return s.handleShutdown(ctx)
	case "exit":
		return s.handleExit(ctx)

	// Text document sync
	case "textDocument/didOpen":
		return s.handleDidOpen(ctx, req.Params)
	case "textDocument/didChange":
		return s.handleDidChange(ctx, req.Params)
	case "textDocument/didClose":
		return s.handleDidClose(ctx, req.Params)
	case "textDocument/didSave":
		return s.handleDidSave(ctx, req.Params)

	// Language features
	case "textDocument/completion":
		return s.handleCompletion(ctx, req.Params)
	case "textDocument/definition":
		return s.handleDefinition(ctx, req.Params)
	case "textDocument/documentLink":
		return s.handleDocumentLink(ctx, req.Params)
	case "textDocument/hover":
		return s.handleHover(ctx, req.Params)

	default:
		log.Printf("unhandled method: %s", req.Method)
		return nil, ErrMethodNotFound
	}
}

// --- Lifecycle methods ---

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.InitializeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("parsing initialize params: %w", err)
	}

	var root protocol.DocumentURI
	if len(p.WorkspaceFolders) > 0 {
		root = protocol.DocumentURI(p.WorkspaceFolders[0].URI)
	} else if p.RootURI != "" {
		root = p.RootURI
	}
	s.mu.Lock()
	s.rootURI = root
	s.mu.Unlock()

	log.Printf("initialize: root=%s", root)

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
				Save: &protocol.SaveOptions{
					IncludeText: true,
				},
			},
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{"/", ":", "@", "\""},
			},
			DefinitionProvider:   true,
			HoverProvider:        true,
			DocumentLinkProvider: &protocol.DocumentLinkOptions{},
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    "bzlnav-lsp",
			Version: version.Version,
		},
	}, nil
}

func (s *Server) handleInitialized(ctx context.Context, params json.RawMessage) (any, error) {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	log.Printf("initialized")
	return nil, nil
}

func (s *Server) handleShutdown(ctx context.Context) (any, error) {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	log.Printf("shutdown")
	return nil, nil
}

func (s *Server) handleExit(ctx context.Context) (any, error) {
	log.Printf("exit")
	if s.onExit != nil {
		s.onExit()
	}
	return nil, nil
}

// --- Text document sync ---

func (s *Server) handleDidOpen(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.documents[p.TextDocument.URI] = &Document{
		URI:     p.TextDocument.URI,
		Version: p.TextDocument.Version,
		Content: p.TextDocument.Text,
	}
	s.mu.Unlock()

	log.Printf("didOpen: %s", p.TextDocument.URI)

	s.publishDiagnostics(ctx, p.TextDocument.URI, p.TextDocument.Text)
	return nil, nil
}

func (s *Server) handleDidChange(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if doc, ok := s.documents[p.TextDocument.URI]; ok {
		doc.Version = p.TextDocument.Version
		// Full sync, take the last change.
		if len(p.ContentChanges) > 0 {
			doc.Content = p.ContentChanges[len(p.ContentChanges)-1].Text
		}
	}
	s.mu.Unlock()

	log.Printf("didChange: %s v%d", p.TextDocument.URI, p.TextDocument.Version)
	return nil, nil
}

func (s *Server) handleDidClose(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.documents, p.TextDocument.URI)
	s.mu.Unlock()

	log.Printf("didClose: %s", p.TextDocument.URI)

	if s.conn != nil {
		if err := s.conn.Notify(ctx, "textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
			URI:         p.TextDocument.URI,
			Diagnostics: []protocol.Diagnostic{},
		}); err != nil {
			log.Printf("failed to clear diagnostics: %v", err)
		}
	}
	return nil, nil
}

func (s *Server) handleDidSave(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	log.Printf("didSave: %s", p.TextDocument.URI)

	content, known := p.Text, p.Text != ""
	if !known {
		if doc, ok := s.document(p.TextDocument.URI); ok {
			content, known = doc.Content, true
		}
	}
	if known {
		s.publishDiagnostics(ctx, p.TextDocument.URI, content)
	}
	return nil, nil
}

// --- Shared helpers ---

// document returns a snapshot of an open document.
func (s *Server) document(uri protocol.DocumentURI) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[uri]
	if !ok {
		return Document{}, false
	}
	return *doc, true
}

// rootOverridePath is the editor's open folder, which pins workspace
// discovery for every request in the session.
func (s *Server) rootOverridePath() string {
	s.mu.RLock()
	root := s.rootURI
	s.mu.RUnlock()
	if root == "" {
		return ""
	}
	path, ok := docurl.Parse(string(root)).Filename()
	if !ok {
		return ""
	}
	return path
}

// opCtx bounds a request that may start a Bazel server.
func (s *Server) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout := s.cfg.Bazel.Timeout.Duration; timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return ctx, func() {}
}

// fileContent reads a file, preferring the open-document state over
// the disk.
func (s *Server) fileContent(path string) (string, error) {
	uri := protocol.DocumentURI(docurl.File(path).String())
	if doc, ok := s.document(uri); ok {
		return doc.Content, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseBazelFile parses content with the dialect its filename implies.
func parseBazelFile(path string, content []byte) (*build.File, error) {
	switch filetype.FromPath(path) {
	case filetype.TypeBuild:
		return build.ParseBuild(path, content)
	case filetype.TypeWorkspace:
		return build.ParseWorkspace(path, content)
	case filetype.TypeModule:
		return build.ParseModule(path, content)
	case filetype.TypeLibrary:
		return build.ParseBzl(path, content)
	default:
		return build.ParseDefault(path, content)
	}
}

// lineToRange creates a Range covering a 1-based line.
func lineToRange(line int) protocol.Range {
	l := uint32(0)
	if line > 0 {
		l = uint32(line - 1)
	}
	return protocol.Range{
		Start: protocol.Position{Line: l, Character: 0},
		End:   protocol.Position{Line: l, Character: 1000}, // end of line approximation
	}
}

// spanToRange converts a buildtools span to an LSP range.
func spanToRange(start, end build.Position) protocol.Range {
	toPos := func(p build.Position) protocol.Position {
		line, char := uint32(0), uint32(0)
		if p.Line > 0 {
			line = uint32(p.Line - 1)
		}
		if p.LineRune > 0 {
			char = uint32(p.LineRune - 1)
		}
		return protocol.Position{Line: line, Character: char}
	}
	return protocol.Range{Start: toPos(start), End: toPos(end)}
}

// rulesFor returns the build-language rule catalog for the workspace of
// uri, fetching it at most once per root. Failures cache as empty.
func (s *Server) rulesFor(ctx context.Context, uri protocol.DocumentURI) []buildlang.Rule {
	ws, err := s.registry.ForFile(ctx, docurl.Parse(string(uri)), s.rootOverridePath())
	if err != nil || ws == nil {
		return nil
	}

	s.langMu.Lock()
	defer s.langMu.Unlock()
	if rules, ok := s.langRules[ws.Root]; ok {
		return rules
	}
	var rules []buildlang.Rule
	if data, err := s.cli.BuildLanguage(ctx, ws.Root); err == nil {
		if decoded, err := buildlang.Decode(data); err == nil {
			rules = decoded
		} else {
			log.Printf("build language decode: %v", err)
		}
	} else {
		log.Printf("build language fetch: %v", err)
	}
	s.langRules[ws.Root] = rules
	return rules
}

// --- Diagnostics ---

// publishDiagnostics flags load statements whose labels do not resolve.
func (s *Server) publishDiagnostics(ctx context.Context, uri protocol.DocumentURI, content string) {
	// Guard against nil connection (e.g. in tests).
	if s.conn == nil {
		return
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	diagnostics := s.loadDiagnostics(ctx, uri, content)
	if err := s.conn.Notify(ctx, "textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	}); err != nil {
		log.Printf("failed to publish diagnostics: %v", err)
	}
	log.Printf("published %d diagnostics for %s", len(diagnostics), uri)
}

// loadDiagnostics resolves every load statement in content. Definitive
// failures become diagnostics; collaborator failures produce none.
func (s *Server) loadDiagnostics(ctx context.Context, uri protocol.DocumentURI, content string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}

	doc := docurl.Parse(string(uri))
	path, ok := doc.Filename()
	if !ok {
		return diagnostics
	}
	file, err := parseBazelFile(path, []byte(content))
	if err != nil {
		return diagnostics
	}

	override := s.rootOverridePath()
	for _, stmt := range file.Stmt {
		load, ok := stmt.(*build.LoadStmt)
		if !ok || load.Module == nil {
			continue
		}
		_, err := s.resolver.Load(ctx, load.Module.Value, doc, override)
		if err == nil {
			continue
		}
		severity, message := diagnoseLoadError(err)
		if message == "" {
			continue
		}
		start, end := load.Module.Span()
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    spanToRange(start, end),
			Severity: severity,
			Source:   "bzlnav",
			Message:  message,
		})
	}
	return diagnostics
}

// diagnoseLoadError classifies a resolution failure. An empty message
// means the failure is environmental and should stay quiet.
func diagnoseLoadError(err error) (protocol.DiagnosticSeverity, string) {
	var syntaxErr *label.SyntaxError
	if errors.As(err, &syntaxErr) {
		return protocol.DiagnosticSeverityError, err.Error()
	}
	var notFound *resolve.TargetNotFoundError
	if errors.As(err, &notFound) {
		return protocol.DiagnosticSeverityWarning, err.Error()
	}
	var unknownRepo *resolve.UnknownRepositoryError
	if errors.As(err, &unknownRepo) {
		return protocol.DiagnosticSeverityWarning, err.Error()
	}
	var noRoot *resolve.MissingWorkspaceRootError
	if errors.As(err, &noRoot) {
		return protocol.DiagnosticSeverityInformation, err.Error()
	}
	return 0, ""
}
