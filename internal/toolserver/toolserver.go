// Package toolserver advertises the fixed JSON-RPC tool vocabulary spec
// §4.J names (search, find_def, find_refs, callers, callees, open_at,
// refresh, symbols) over stdio, generalizing the teacher's
// internal/mcp/server.go (MCPServer: chromem+bleve searchers, a graph
// searcher, a files tool, a pattern tool, all wired ad hoc) into the
// spec's single symbol-aware contract — the Open Question resolution
// that drops the teacher's database-backed-only and hybrid-only tool
// variants.
package toolserver

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/codeindex-dev/codeindex/internal/graphindex"
	"github.com/codeindex-dev/codeindex/internal/indexer"
	"github.com/codeindex-dev/codeindex/internal/search"
	"github.com/codeindex-dev/codeindex/internal/store"
)

// Application-level error codes. -32601/-32602/-32603/-32002 mirror
// spec §6's reserved JSON-RPC codes (unknown tool, invalid arguments,
// internal error, index unavailable); -32001 is the dedicated
// authentication-failure code spec §4.J/§6 require be distinct from the
// rest. mcp-go's tool layer carries errors as structured content rather
// than raw JSON-RPC error objects, so every handler embeds one of these
// codes in the JSON body it returns instead of a transport-level code.
const (
	CodeUnknownTool   = -32601
	CodeInvalidArgs   = -32602
	CodeInternal      = -32603
	CodeIndexUnavail  = -32002
	CodeUnauthorized  = -32001
)

// DefaultShutdownGrace is the bounded wait spec §5 names: "Shutdown
// cancels all in-flight requests after a grace period (10 s)."
const DefaultShutdownGrace = 10 * time.Second

// DefaultSearchDeadline and DefaultToolDeadline are the per-request
// deadlines spec §5 names ("300 ms for search, 5 s otherwise").
const (
	DefaultSearchDeadline = 300 * time.Millisecond
	DefaultToolDeadline   = 5 * time.Second
)

// Server wires the store, graph index, search engine, and indexer
// behind the fixed tool vocabulary.
type Server struct {
	store   *store.Store
	graph   *graphindex.Index
	engine  *search.Engine
	indexer *indexer.Indexer
	rootDir string

	authToken string

	mcp *server.MCPServer

	mu      sync.Mutex
	active  int
	drained chan struct{}
}

// New builds a Server. authToken, when non-empty, must be supplied by
// every tool call's "auth_token" argument; an empty authToken disables
// the check (local single-user use).
func New(rootDir string, s *store.Store, g *graphindex.Index, engine *search.Engine, idx *indexer.Indexer, authToken string) *Server {
	srv := &Server{
		store:     s,
		graph:     g,
		engine:    engine,
		indexer:   idx,
		rootDir:   rootDir,
		authToken: authToken,
	}

	mcpServer := server.NewMCPServer("codeindex", "1.0.0", server.WithToolCapabilities(true))
	srv.mcp = mcpServer

	registerSearchTool(mcpServer, srv)
	registerFindDefTool(mcpServer, srv)
	registerFindRefsTool(mcpServer, srv)
	registerCallersTool(mcpServer, srv)
	registerCalleesTool(mcpServer, srv)
	registerOpenAtTool(mcpServer, srv)
	registerRefreshTool(mcpServer, srv)
	registerSymbolsTool(mcpServer, srv)

	return srv
}

// authorize implements the "authenticated before dispatch" requirement;
// every tool handler calls this first, before touching any collaborator.
func (s *Server) authorize(argsMap map[string]interface{}) error {
	if s.authToken == "" {
		return nil
	}
	token, _ := argsMap["auth_token"].(string)
	if token != s.authToken {
		return &ToolError{Code: CodeUnauthorized, Message: "authentication failed"}
	}
	return nil
}

// enter/leave track active requests for the graceful-shutdown wait.
func (s *Server) enter() {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()
}

func (s *Server) leave() {
	s.mu.Lock()
	s.active--
	active := s.active
	s.mu.Unlock()
	if active == 0 && s.drained != nil {
		select {
		case s.drained <- struct{}{}:
		default:
		}
	}
}

// Serve runs the server over stdio until ctx is cancelled or a shutdown
// signal arrives, then waits up to DefaultShutdownGrace for in-flight
// requests to finish.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("toolserver: serve stdio: %w", err)
		}
	}()

	select {
	case <-sigCh:
		log.Printf("toolserver: shutdown signal received")
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return s.gracefulShutdown()
}

func (s *Server) gracefulShutdown() error {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active == 0 {
		return nil
	}

	s.drained = make(chan struct{}, 1)
	select {
	case <-s.drained:
	case <-time.After(DefaultShutdownGrace):
		log.Printf("toolserver: shutdown grace period elapsed with requests still active")
	}
	return nil
}

// ToolError carries the application-level error code a tool handler's
// JSON error body embeds.
type ToolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ToolError) Error() string { return e.Message }
