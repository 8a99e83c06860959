// Package chunker carves a parsed file into content-hashed, documented
// chunks. It replaces the teacher's markdown-only chunker
// (internal/indexer/chunker.go, which splits prose by header/paragraph/
// sentence) with a code-aware chunker operating on internal/extractor's
// facts, but keeps the teacher's line-slicing idiom
// (internal/indexer/parsers/treesitter.go's extractLines) for turning a
// symbol's line range into chunk content.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/codeindex-dev/codeindex/internal/extractor"
	"github.com/codeindex-dev/codeindex/internal/parser"
)

// Kind restricts extractor.SymbolKind to the subset spec §3 says a Chunk
// may represent.
type Kind = extractor.SymbolKind

// Context carries the enclosing-scope metadata spec §3 names.
type Context struct {
	ClassName        string
	ClassInheritance []string
	ModulePath       string
	Namespace        string
	IsTopLevel       bool
	ParentChunkHash  string
}

// Chunk is one content-addressed semantic unit.
type Chunk struct {
	ChunkHash     string
	Kind          Kind
	Name          string
	Signature     string
	Documentation string
	StartLine     int
	EndLine       int
	Language      string
	Context       Context
	Content       string
}

// Warning is a non-fatal observation recorded alongside a chunk, e.g. a
// chunk exceeding the configurable line threshold.
type Warning struct {
	ChunkName string
	Message   string
}

// LineWarnThreshold is the default line-count above which Chunk emits a
// Warning but still produces the chunk, per spec §4.C step 5.
const LineWarnThreshold = 5000

// Chunk walks tree's facts and produces the ordered chunk list for the
// file, plus any line-threshold warnings. facts must have been produced by
// extractor.Extract(tree).
func Chunk(tree *parser.Tree, facts *extractor.FileFacts, modulePath string) ([]Chunk, []Warning) {
	lines := strings.Split(string(tree.Source), "\n")
	lang := string(tree.Language)

	var chunks []Chunk
	var warnings []Warning

	emit := func(c Chunk) {
		c.Content = extractLines(lines, c.StartLine, c.EndLine)
		c.ChunkHash = identityHash(c)
		chunks = append(chunks, c)
		if c.EndLine-c.StartLine+1 > LineWarnThreshold {
			warnings = append(warnings, Warning{
				ChunkName: c.Name,
				Message:   "chunk exceeds line threshold",
			})
		}
	}

	for _, fn := range sortedSymbols(facts.Functions) {
		emit(Chunk{
			Kind: fn.Kind, Name: fn.Name, Signature: fn.Signature,
			Documentation: findDocumentation(lines, fn.Span.StartLine, lang),
			StartLine:     fn.Span.StartLine, EndLine: fn.Span.EndLine,
			Language: lang,
			Context:  Context{ModulePath: modulePath, IsTopLevel: true},
		})
	}

	for _, className := range sortedClassNames(facts.Classes) {
		cf := facts.Classes[className]
		classDoc := findDocumentation(lines, cf.Symbol.Span.StartLine, lang)
		if lang == "python" {
			// The class docstring, if any, was folded into Signature by
			// extractPyClass; surface it as Documentation instead so the
			// identity hash treats it as documentation, matching TS/JS.
			if i := strings.Index(cf.Symbol.Signature, " -- "); i >= 0 {
				classDoc = cf.Symbol.Signature[i+4:]
			}
		}

		members := 0
		for _, m := range sortedSymbols(cf.Methods) {
			members++
			emit(Chunk{
				Kind: m.Kind, Name: m.Name, Signature: m.Signature,
				Documentation: findDocumentation(lines, m.Span.StartLine, lang),
				StartLine:     m.Span.StartLine, EndLine: m.Span.EndLine,
				Language: lang,
				Context: Context{
					ClassName: className, ClassInheritance: cf.Symbol.Inheritance,
					ModulePath: modulePath,
				},
			})
		}
		for _, p := range sortedSymbols(cf.Properties) {
			members++
			emit(Chunk{
				Kind: p.Kind, Name: p.Name, Signature: p.Signature,
				StartLine: p.Span.StartLine, EndLine: p.Span.EndLine,
				Language: lang,
				Context: Context{
					ClassName: className, ClassInheritance: cf.Symbol.Inheritance,
					ModulePath: modulePath,
				},
			})
		}

		// Step 2: a class with no methods still gets a chunk for the
		// declaration itself.
		if members == 0 {
			emit(Chunk{
				Kind: extractor.KindClass, Name: className, Signature: cf.Symbol.Signature,
				Documentation: classDoc,
				StartLine:     cf.Symbol.Span.StartLine, EndLine: cf.Symbol.Span.EndLine,
				Language: lang,
				Context: Context{
					ClassName: className, ClassInheritance: cf.Symbol.Inheritance,
					ModulePath: modulePath, IsTopLevel: true,
				},
			})
		}
	}

	return chunks, warnings
}

// extractLines slices lines[startLine-1:endLine] back into text, mirroring
// the teacher's extractLines (internal/indexer/parsers/treesitter.go).
func extractLines(lines []string, startLine, endLine int) string {
	if startLine < 1 || startLine > len(lines) {
		return ""
	}
	end := endLine
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[startLine-1:end], "\n")
}

// findDocumentation scans upward from a TS/JS symbol's first line for an
// immediately adjacent documentation block, per spec §4.C step 3:
// "separated only by whitespace". For Python it returns "".
func findDocumentation(lines []string, startLine int, lang string) string {
	if lang == "python" {
		return "" // class docstrings handled separately; function/method
		// docstrings live inside their own chunk content already.
	}

	idx := startLine - 2 // line before the definition, 0-indexed
	var blockLines []string

	// Block comment: scan upward collecting a contiguous /** ... */ run.
	if idx >= 0 && strings.HasSuffix(strings.TrimSpace(lines[idx]), "*/") {
		for i := idx; i >= 0; i-- {
			blockLines = append([]string{lines[i]}, blockLines...)
			if strings.Contains(lines[i], "/**") || strings.Contains(lines[i], "/*") {
				return strings.TrimSpace(strings.Join(blockLines, "\n"))
			}
		}
	}

	// Line-comment run: scan upward while lines are `//` comments.
	blockLines = nil
	for i := idx; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			break
		}
		if !strings.HasPrefix(trimmed, "//") {
			break
		}
		blockLines = append([]string{trimmed}, blockLines...)
	}
	return strings.Join(blockLines, "\n")
}

// identityHash computes the chunk_hash per the stability law in spec §3: a
// SHA-256 over (kind, name, signature, documentation, whitespace-collapsed
// body), reusing parser.CollapseWhitespace so the normalization logic lives
// in exactly one place.
func identityHash(c Chunk) string {
	normalized := strings.Join([]string{
		string(c.Kind),
		c.Name,
		c.Signature,
		c.Documentation,
		parser.CollapseWhitespace(c.Content),
	}, "\x00")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func sortedSymbols(m map[string]extractor.Symbol) []extractor.Symbol {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]extractor.Symbol, 0, len(names))
	for _, n := range names {
		out = append(out, m[n])
	}
	return out
}

func sortedClassNames(m map[string]extractor.ClassFacts) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
