package extractor

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeindex-dev/codeindex/internal/parser"
)

// Extract walks tree and returns the structured facts document for it,
// dispatching on tree.Language the way the teacher's ParseFile methods are
// one-per-language but share a common walkTree/extractNodeText base
// (internal/indexer/parsers/treesitter.go).
func Extract(tree *parser.Tree) (*FileFacts, error) {
	facts := newFileFacts(tree.Path, string(tree.Language))

	switch tree.Language {
	case parserLangTypeScript, parserLangTSX, parserLangJavaScript, parserLangJSX:
		extractTSFile(tree, facts)
	case parserLangPython:
		extractPyFile(tree, facts)
	default:
		return nil, fmt.Errorf("extractor: unsupported language %q", tree.Language)
	}

	return facts, nil
}

// Re-exported as local constants so this file reads without a package
// qualifier on every case arm; kept in sync with parser.Language's values.
const (
	parserLangTypeScript = parser.LangTypeScript
	parserLangTSX        = parser.LangTSX
	parserLangJavaScript = parser.LangJavaScript
	parserLangJSX        = parser.LangJSX
	parserLangPython     = parser.LangPython
)

// argumentCount counts the direct argument expressions inside a call's
// arguments node, skipping punctuation tokens ("(", ",", ")").
func argumentCount(argsNode *sitter.Node) int {
	if argsNode == nil {
		return 0
	}
	n := 0
	for i := 0; i < int(argsNode.ChildCount()); i++ {
		c := argsNode.Child(uint(i))
		if c == nil || !c.IsNamed() {
			continue
		}
		n++
	}
	return n
}
