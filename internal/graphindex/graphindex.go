// Package graphindex is the in-memory, multi-hop symbol/call graph that
// sits above internal/store's one-hop callers/callees queries. It
// rehydrates from internal/astdoc at startup and is swapped atomically on
// reindex, generalizing the teacher's internal/graph/searcher.go from a
// Go-only package/interface/call graph to the spec's generic
// Symbol/Call model, keyed by qualified name instead of Go identifiers.
package graphindex

import (
	"fmt"
	"sync"

	"github.com/dominikbraun/graph"
	"github.com/maypok86/otter"

	"github.com/codeindex-dev/codeindex/internal/extractor"
)

// MaxTraversalCacheWeight caps the otter cache's approximate memory use,
// mirroring the teacher's MaxFileCacheWeight budget for its own cache.
const MaxTraversalCacheWeight = 10_000_000

// Node is one symbol in the graph, identified by its qualified name
// ("path::name").
type Node struct {
	ID        string
	Name      string
	FilePath  string
	Kind      extractor.SymbolKind
	StartLine int
	EndLine   int
}

func qualify(filePath, name string) string {
	return filePath + "::" + name
}

// Index is the in-memory graph, safe for concurrent queries during a
// rebuild (readers block only for the duration of the atomic swap).
type Index struct {
	mu sync.RWMutex

	g graph.Graph[string, *Node]

	callers map[string][]string // qualified callee ID -> [qualified caller IDs]
	callees map[string][]string // qualified caller ID -> [qualified callee IDs]
	byName  map[string][]string // bare symbol name -> [qualified IDs] (handles ambiguous/unqualified lookups)

	traversalCache otter.Cache[string, []string]
}

// New builds an empty, ready-to-Rebuild index.
func New() (*Index, error) {
	cache, err := otter.MustBuilder[string, []string](MaxTraversalCacheWeight).
		Cost(func(key string, value []string) uint32 { return uint32(len(value) * 64) }).
		CollectStats().
		Build()
	if err != nil {
		return nil, fmt.Errorf("graphindex: create traversal cache: %w", err)
	}

	idx := &Index{traversalCache: cache}
	idx.g = graph.New(func(n *Node) string { return n.ID }, graph.Directed())
	return idx, nil
}

// Rebuild replaces the graph's contents from a full set of per-file facts,
// the shape astdoc.Store.All() returns. It builds the new graph off to
// the side and swaps it in under the write lock, so concurrent readers
// never see a partially-built graph.
func (idx *Index) Rebuild(facts []*extractor.FileFacts) error {
	g := graph.New(func(n *Node) string { return n.ID }, graph.Directed())
	callers := map[string][]string{}
	callees := map[string][]string{}

	// byName resolves a bare symbol name to every qualified ID that
	// declares it, so a call site's unqualified Callee can be matched
	// back to the symbol(s) it actually refers to across files. Ambiguous
	// names (declared in more than one file) fan out to all candidates,
	// the same trade-off the teacher's reverse indexes make by matching
	// on identifier text rather than full type resolution.
	byName := map[string][]string{}

	for _, f := range facts {
		for name, sym := range f.Functions {
			id := qualify(f.FilePath, name)
			addNode(g, id, name, f.FilePath, sym)
			byName[name] = append(byName[name], id)
		}
		for name, cf := range f.Classes {
			classID := qualify(f.FilePath, name)
			addNode(g, classID, name, f.FilePath, cf.Symbol)
			byName[name] = append(byName[name], classID)
			for mname, msym := range cf.Methods {
				qualifiedName := cf.Symbol.Name + "." + mname
				id := qualify(f.FilePath, qualifiedName)
				addNode(g, id, qualifiedName, f.FilePath, msym)
				byName[mname] = append(byName[mname], id)
			}
			for pname, psym := range cf.Properties {
				qualifiedName := cf.Symbol.Name + "." + pname
				id := qualify(f.FilePath, qualifiedName)
				addNode(g, id, qualifiedName, f.FilePath, psym)
				byName[pname] = append(byName[pname], id)
			}
		}
	}

	for _, f := range facts {
		for _, call := range f.Calls {
			callerName := callIDForSpan(f, call)
			if callerName == "" {
				callerName = "<file>"
			}
			caller := qualify(f.FilePath, callerName)

			targets := byName[call.Callee]
			if len(targets) == 0 {
				// No known declaration: keep the bare name as an
				// external/unresolved leaf node.
				targets = []string{call.Callee}
			}
			for _, callee := range targets {
				callers[callee] = append(callers[callee], caller)
				callees[caller] = append(callees[caller], callee)
				_ = g.AddEdge(caller, callee)
			}
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.g = g
	idx.callers = callers
	idx.callees = callees
	idx.byName = byName
	idx.traversalCache.Clear()
	return nil
}

func addNode(g graph.Graph[string, *Node], id, name, filePath string, sym extractor.Symbol) {
	n := &Node{
		ID: id, Name: name, FilePath: filePath,
		Kind: sym.Kind, StartLine: sym.Span.StartLine, EndLine: sym.Span.EndLine,
	}
	_ = g.AddVertex(n)
}

// callIDForSpan finds the function/method whose span contains a call's
// start line, so the call graph's edges originate from the correct
// enclosing symbol rather than always from the file-level fallback node.
func callIDForSpan(f *extractor.FileFacts, call extractor.Call) string {
	for name, sym := range f.Functions {
		if call.Span.StartLine >= sym.Span.StartLine && call.Span.StartLine <= sym.Span.EndLine {
			return name
		}
	}
	for _, cf := range f.Classes {
		for mname, msym := range cf.Methods {
			if call.Span.StartLine >= msym.Span.StartLine && call.Span.StartLine <= msym.Span.EndLine {
				return cf.Symbol.Name + "." + mname
			}
		}
	}
	return ""
}

// Callers returns every qualified symbol ID that calls name, traversing
// up to depth hops (depth=1 matches internal/store's one-hop Callers;
// depth>1 walks further up the call graph, deduping visited nodes).
func (idx *Index) Callers(name string, depth int) ([]string, error) {
	return idx.traverse("callers", name, depth, func(n string) []string { return idx.callers[n] })
}

// Callees returns every callee name reachable from the qualified symbol
// id within depth hops.
func (idx *Index) Callees(id string, depth int) ([]string, error) {
	return idx.traverse("callees", id, depth, func(n string) []string { return idx.callees[n] })
}

// startingFrontier resolves the caller's start value to one or more
// qualified IDs: if start is itself a qualified ID (or has no known
// declaration) it is used as-is, otherwise every qualified ID sharing
// that bare name seeds the traversal.
func (idx *Index) startingFrontier(start string) []string {
	if ids, ok := idx.byName[start]; ok && len(ids) > 0 {
		return append([]string{}, ids...)
	}
	return []string{start}
}

func (idx *Index) traverse(kind, start string, depth int, next func(string) []string) ([]string, error) {
	if depth <= 0 {
		depth = 1
	}
	cacheKey := fmt.Sprintf("%s|%s|%d", kind, start, depth)

	idx.mu.RLock()
	if cached, ok := idx.traversalCache.Get(cacheKey); ok {
		idx.mu.RUnlock()
		return cached, nil
	}

	frontier := idx.startingFrontier(start)
	visited := map[string]bool{}
	for _, n := range frontier {
		visited[n] = true
	}
	var result []string

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var nextFrontier []string
		for _, node := range frontier {
			for _, neighbor := range next(node) {
				if visited[neighbor] {
					continue
				}
				visited[neighbor] = true
				result = append(result, neighbor)
				nextFrontier = append(nextFrontier, neighbor)
			}
		}
		frontier = nextFrontier
	}
	idx.mu.RUnlock()

	idx.mu.Lock()
	idx.traversalCache.Set(cacheKey, result)
	idx.mu.Unlock()

	return result, nil
}

// Path finds the shortest call-graph path between two qualified symbol
// IDs using dominikbraun/graph's built-in shortest-path search, the same
// API the teacher's queryPath operation relies on.
func (idx *Index) Path(fromID, toID string) ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	path, err := graph.ShortestPath(idx.g, fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("graphindex: no path from %s to %s: %w", fromID, toID, err)
	}
	return path, nil
}

// Close releases the traversal cache's background resources.
func (idx *Index) Close() {
	idx.traversalCache.Close()
}

// Node looks up a vertex by its qualified ID.
func (idx *Index) Node(id string) (*Node, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n, err := idx.g.Vertex(id)
	if err != nil {
		return nil, false
	}
	return n, true
}
