package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Walk recursively visits node and its descendants, depth-first. The
// visitor returns false to skip a node's children (used by extractors to
// avoid descending into a nested function body they've already captured
// whole). Generalizes walkTree from the teacher's
// internal/indexer/parsers/treesitter.go.
func Walk(node *sitter.Node, visit func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	if !visit(node) {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		Walk(node.Child(uint(i)), visit)
	}
}

// Text returns the source text spanned by node.
func Text(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// Line returns node's 1-indexed start and end line.
func Line(node *sitter.Node) (start, end int) {
	return int(node.StartPosition().Row) + 1, int(node.EndPosition().Row) + 1
}

// ChildrenOfKind returns all direct children of node whose Kind() equals
// kind, generalizing findChildrenByType.
func ChildrenOfKind(node *sitter.Node, kind string) []*sitter.Node {
	if node == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		if c := node.Child(uint(i)); c != nil && c.Kind() == kind {
			out = append(out, c)
		}
	}
	return out
}

// PrecedingDocumentation returns the documentation node immediately
// preceding node, separated only by whitespace, or nil. For JS/TS this is
// a contiguous run of `//` line comments or a `/** */` block comment
// directly above node; callers hand in the already-located candidate node
// since tree-sitter's sibling traversal differs per-grammar.
func PrecedingDocumentation(prev *sitter.Node, source []byte) string {
	if prev == nil {
		return ""
	}
	switch prev.Kind() {
	case "comment":
		return strings.TrimSpace(Text(prev, source))
	default:
		return ""
	}
}

// CollapseWhitespace collapses every run of whitespace (including
// newlines) in s to a single space and trims the result, implementing the
// "body with all runs of whitespace collapsed" half of the chunk identity
// normalization in spec §3.
func CollapseWhitespace(s string) string {
	var b strings.Builder
	inWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !inWS {
				b.WriteByte(' ')
				inWS = true
			}
			continue
		}
		inWS = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
