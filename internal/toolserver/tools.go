package toolserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codeindex-dev/codeindex/internal/search"
	"github.com/codeindex-dev/codeindex/internal/store"
)

func argsOf(request mcp.CallToolRequest) (map[string]interface{}, bool) {
	m, ok := request.Params.Arguments.(map[string]interface{})
	return m, ok
}

func errResult(code int, message string) *mcp.CallToolResult {
	body, _ := json.Marshal(ToolError{Code: code, Message: message})
	return mcp.NewToolResultError(string(body))
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return errResult(CodeInternal, err.Error()), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

// withDispatch wraps a tool handler with the shared auth-before-dispatch
// check and active-request tracking spec §4.J/§5 require.
func (s *Server) withDispatch(fn func(context.Context, map[string]interface{}) (*mcp.CallToolResult, error)) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, ok := argsOf(request)
		if !ok {
			argsMap = map[string]interface{}{}
		}
		if err := s.authorize(argsMap); err != nil {
			var te *ToolError
			if ok := asToolError(err, &te); ok {
				return errResult(te.Code, te.Message), nil
			}
			return errResult(CodeUnauthorized, err.Error()), nil
		}

		s.enter()
		defer s.leave()
		return fn(ctx, argsMap)
	}
}

func asToolError(err error, out **ToolError) bool {
	if te, ok := err.(*ToolError); ok {
		*out = te
		return true
	}
	return false
}

func registerSearchTool(mcpServer *server.MCPServer, s *Server) {
	tool := mcp.NewTool("search",
		mcp.WithDescription("Hybrid lexical+semantic search over the project's indexed chunks."),
		mcp.WithString("query", mcp.Required(), mcp.Description("free-text query")),
		mcp.WithString("directory_prefix", mcp.Description("restrict results to this directory prefix")),
		mcp.WithString("language", mcp.Description("restrict results to this language")),
		mcp.WithNumber("limit", mcp.Description("maximum results (default 10)")),
		mcp.WithString("auth_token", mcp.Description("shared-secret auth token, if configured")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	mcpServer.AddTool(tool, s.withDispatch(func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
		query, _ := args["query"].(string)
		if query == "" {
			return errResult(CodeInvalidArgs, "query is required"), nil
		}
		limit := 10
		if v, ok := args["limit"].(float64); ok && v > 0 {
			limit = int(v)
		}

		ctx, cancel := context.WithTimeout(ctx, DefaultSearchDeadline)
		defer cancel()

		resp, err := s.engine.Search(ctx, search.Query{
			Text: query,
			Filter: search.Filter{
				DirectoryPrefix: stringArg(args, "directory_prefix"),
				Language:        stringArg(args, "language"),
			},
			Limit: limit,
		})
		if err != nil {
			return errResult(CodeInternal, err.Error()), nil
		}
		return jsonResult(resp)
	}))
}

func registerFindDefTool(mcpServer *server.MCPServer, s *Server) {
	tool := mcp.NewTool("find_def",
		mcp.WithDescription("Find symbol definitions by name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("symbol name")),
		mcp.WithString("auth_token", mcp.Description("shared-secret auth token, if configured")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(tool, s.withDispatch(func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
		name := stringArg(args, "name")
		if name == "" {
			return errResult(CodeInvalidArgs, "name is required"), nil
		}
		matches, err := s.store.FindDef(name)
		if err != nil {
			return errResult(CodeIndexUnavail, err.Error()), nil
		}
		return jsonResult(withPreviews(s.rootDir, matches))
	}))
}

func registerFindRefsTool(mcpServer *server.MCPServer, s *Server) {
	tool := mcp.NewTool("find_refs",
		mcp.WithDescription("Find call sites referencing a symbol by name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("symbol name")),
		mcp.WithString("auth_token", mcp.Description("shared-secret auth token, if configured")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(tool, s.withDispatch(func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
		name := stringArg(args, "name")
		if name == "" {
			return errResult(CodeInvalidArgs, "name is required"), nil
		}
		matches, err := s.store.FindRefs(name)
		if err != nil {
			return errResult(CodeIndexUnavail, err.Error()), nil
		}
		return jsonResult(matches)
	}))
}

func registerCallersTool(mcpServer *server.MCPServer, s *Server) {
	tool := mcp.NewTool("callers",
		mcp.WithDescription("List callers of a symbol, optionally traversing multiple hops via the in-memory call graph."),
		mcp.WithString("name", mcp.Required(), mcp.Description("symbol name or qualified node id")),
		mcp.WithNumber("depth", mcp.Description("traversal depth (default 1)")),
		mcp.WithString("auth_token", mcp.Description("shared-secret auth token, if configured")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(tool, s.withDispatch(func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
		name := stringArg(args, "name")
		if name == "" {
			return errResult(CodeInvalidArgs, "name is required"), nil
		}
		depth := intArg(args, "depth", 1)
		if s.graph == nil {
			return errResult(CodeIndexUnavail, "graph index not available"), nil
		}
		ids, err := s.graph.Callers(name, depth)
		if err != nil {
			return errResult(CodeInternal, err.Error()), nil
		}
		return jsonResult(ids)
	}))
}

func registerCalleesTool(mcpServer *server.MCPServer, s *Server) {
	tool := mcp.NewTool("callees",
		mcp.WithDescription("List callees of a symbol, optionally traversing multiple hops via the in-memory call graph."),
		mcp.WithString("name", mcp.Required(), mcp.Description("symbol name or qualified node id")),
		mcp.WithNumber("depth", mcp.Description("traversal depth (default 1)")),
		mcp.WithString("auth_token", mcp.Description("shared-secret auth token, if configured")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(tool, s.withDispatch(func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
		name := stringArg(args, "name")
		if name == "" {
			return errResult(CodeInvalidArgs, "name is required"), nil
		}
		depth := intArg(args, "depth", 1)
		if s.graph == nil {
			return errResult(CodeIndexUnavail, "graph index not available"), nil
		}
		ids, err := s.graph.Callees(name, depth)
		if err != nil {
			return errResult(CodeInternal, err.Error()), nil
		}
		return jsonResult(ids)
	}))
}

func registerSymbolsTool(mcpServer *server.MCPServer, s *Server) {
	tool := mcp.NewTool("symbols",
		mcp.WithDescription("List every symbol defined in a file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("project-relative file path")),
		mcp.WithString("auth_token", mcp.Description("shared-secret auth token, if configured")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(tool, s.withDispatch(func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
		path := stringArg(args, "path")
		if path == "" {
			return errResult(CodeInvalidArgs, "path is required"), nil
		}
		matches, err := s.store.SymbolsInFile(path)
		if err != nil {
			return errResult(CodeIndexUnavail, err.Error()), nil
		}
		return jsonResult(withPreviews(s.rootDir, matches))
	}))
}

// openAtResponse is the shape open_at returns, with Exists=false (not an
// error) when the file is missing, per spec §4.J.
type openAtResponse struct {
	Exists    bool   `json:"exists"`
	Path      string `json:"path"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	Text      string `json:"text,omitempty"`
}

func registerOpenAtTool(mcpServer *server.MCPServer, s *Server) {
	tool := mcp.NewTool("open_at",
		mcp.WithDescription("Extract a preview window around a line range in a file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("project-relative file path")),
		mcp.WithNumber("start_line", mcp.Required(), mcp.Description("1-indexed start line")),
		mcp.WithNumber("end_line", mcp.Description("1-indexed end line (default: start_line)")),
		mcp.WithNumber("context", mcp.Description("lines of context around the span (default 10, max 50)")),
		mcp.WithString("auth_token", mcp.Description("shared-secret auth token, if configured")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(tool, s.withDispatch(func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
		path := stringArg(args, "path")
		if path == "" {
			return errResult(CodeInvalidArgs, "path is required"), nil
		}
		start := intArg(args, "start_line", 0)
		if start <= 0 {
			return errResult(CodeInvalidArgs, "start_line is required"), nil
		}
		end := intArg(args, "end_line", start)
		ctxLines := intArg(args, "context", DefaultPreviewLines)

		text, actualStart, actualEnd, ok, err := extractPreview(s.rootDir, path, start, end, ctxLines)
		if err != nil {
			return errResult(CodeInternal, err.Error()), nil
		}
		if !ok {
			return jsonResult(openAtResponse{Exists: false, Path: path})
		}
		return jsonResult(openAtResponse{Exists: true, Path: path, StartLine: actualStart, EndLine: actualEnd, Text: text})
	}))
}

func registerRefreshTool(mcpServer *server.MCPServer, s *Server) {
	tool := mcp.NewTool("refresh",
		mcp.WithDescription("Re-index the project (or a scoped set of paths) and clear memoized search state."),
		mcp.WithArray("paths", mcp.Description("optional project-relative paths to scope the refresh to")),
		mcp.WithString("auth_token", mcp.Description("shared-secret auth token, if configured")),
		mcp.WithDestructiveHintAnnotation(true),
	)
	mcpServer.AddTool(tool, s.withDispatch(func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
		if s.indexer == nil {
			return errResult(CodeIndexUnavail, "indexer not available"), nil
		}

		ctx, cancel := context.WithTimeout(ctx, DefaultToolDeadline)
		defer cancel()

		paths := stringSliceArg(args, "paths")
		var (
			stats interface{}
			err   error
		)
		if len(paths) > 0 {
			stats, err = s.indexer.RefreshFiles(ctx, paths)
		} else {
			stats, err = s.indexer.RefreshIndex(ctx)
		}
		if err != nil {
			return errResult(CodeInternal, err.Error()), nil
		}
		return jsonResult(stats)
	}))
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]interface{}, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

func stringSliceArg(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// withPreviews attaches a short source preview to each symbol match,
// best-effort: a read failure leaves Preview empty rather than failing
// the whole tool call.
type symbolWithPreview struct {
	FilePath  string `json:"file_path"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Signature string `json:"signature"`
	Preview   string `json:"preview,omitempty"`
}

func withPreviews(rootDir string, matches []store.SymbolMatch) []symbolWithPreview {
	out := make([]symbolWithPreview, 0, len(matches))
	for _, m := range matches {
		preview, _, _, ok, err := extractPreview(rootDir, m.FilePath, m.StartLine, m.EndLine, DefaultPreviewLines)
		sp := symbolWithPreview{
			FilePath:  m.FilePath,
			Name:      m.Name,
			Kind:      m.Kind,
			StartLine: m.StartLine,
			EndLine:   m.EndLine,
			Signature: m.Signature,
		}
		if err == nil && ok {
			sp.Preview = preview
		}
		out = append(out, sp)
	}
	return out
}
