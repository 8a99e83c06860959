package extractor

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeindex-dev/codeindex/internal/parser"
)

// extractPyFile walks a Python tree and populates facts. The teacher has no
// Python parser at all (internal/indexer/parsers only covers Go/TS/JS), so
// this package is built fresh, following the same walk/field-access idiom
// tree-sitter wires teach in extract_ts.go and grounded on the teacher's
// treesitter.go helpers (walkTree, extractNodeText, findChildByType).
func extractPyFile(tree *parser.Tree, facts *FileFacts) {
	source := tree.Source
	root := tree.Root()

	parser.Walk(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "import_statement", "import_from_statement":
			recordPyImport(n, source, facts)
			return false
		case "decorated_definition":
			extractPyDecorated(n, source, facts, nil)
			return false
		case "class_definition":
			extractPyClass(n, source, facts, nil, nil)
			return false
		case "function_definition":
			extractPyFunction(n, source, facts, nil, nil)
			return false
		case "call":
			recordPyCall(n, source, facts)
			return true
		}
		return true
	})
}

func recordPyImport(n *sitter.Node, source []byte, facts *FileFacts) {
	line, _ := parser.Line(n)
	if n.Kind() == "import_statement" {
		for _, name := range parser.ChildrenOfKind(n, "dotted_name") {
			facts.Imports = append(facts.Imports, ImportRecord{
				Module: parser.Text(name, source), Line: line,
			})
		}
		for _, alias := range parser.ChildrenOfKind(n, "aliased_import") {
			nameNode := alias.ChildByFieldName("name")
			asNode := alias.ChildByFieldName("alias")
			rec := ImportRecord{Module: parser.Text(nameNode, source), Line: line}
			if asNode != nil {
				rec.Specifiers = []Specifier{{Local: parser.Text(asNode, source)}}
			}
			facts.Imports = append(facts.Imports, rec)
		}
		return
	}

	// import_from_statement: `from module import a, b as c`
	moduleNode := n.ChildByFieldName("module_name")
	module := parser.Text(moduleNode, source)
	rec := ImportRecord{Module: module, Line: line}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(uint(i))
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "dotted_name":
			if c == moduleNode {
				continue
			}
			rec.Specifiers = append(rec.Specifiers, Specifier{Local: parser.Text(c, source), Imported: parser.Text(c, source)})
		case "aliased_import":
			nameNode := c.ChildByFieldName("name")
			asNode := c.ChildByFieldName("alias")
			imported := parser.Text(nameNode, source)
			local := imported
			if asNode != nil {
				local = parser.Text(asNode, source)
			}
			rec.Specifiers = append(rec.Specifiers, Specifier{Local: local, Imported: imported})
		case "wildcard_import":
			rec.Specifiers = append(rec.Specifiers, Specifier{Local: "*"})
		}
	}
	facts.Imports = append(facts.Imports, rec)
}

// extractPyDecorated handles `@decorator` wrapping a function or class: it
// recurses into the wrapped definition node (field "definition") so the
// decorator doesn't hide the symbol. The decorator names are passed along
// but a decorated top-level function or class does not use them; only
// methods inside a class body read their decorators, where @staticmethod and
// @classmethod set Metadata.Static.
func extractPyDecorated(n *sitter.Node, source []byte, facts *FileFacts, parents []string) {
	def := n.ChildByFieldName("definition")
	if def == nil {
		return
	}
	decorators := decoratorNames(n, source)
	switch def.Kind() {
	case "class_definition":
		extractPyClass(def, source, facts, parents, decorators)
	case "function_definition":
		extractPyFunction(def, source, facts, parents, decorators)
	}
}

func decoratorNames(n *sitter.Node, source []byte) []string {
	var out []string
	for _, d := range parser.ChildrenOfKind(n, "decorator") {
		text := strings.TrimPrefix(parser.Text(d, source), "@")
		if i := strings.IndexAny(text, "(\n"); i >= 0 {
			text = text[:i]
		}
		out = append(out, strings.TrimSpace(text))
	}
	return out
}

func extractPyClass(n *sitter.Node, source []byte, facts *FileFacts, parents []string, _ []string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := parser.Text(nameNode, source)
	start, end := parser.Line(n)

	sym := Symbol{
		Name: name, Kind: KindClass,
		Span:      Span{StartLine: start, EndLine: end},
		Parents:   append([]string{}, parents...),
		Metadata:  Metadata{Exported: !strings.HasPrefix(name, "_")},
		Signature: name,
	}
	if super := n.ChildByFieldName("superclasses"); super != nil {
		parser.Walk(super, func(c *sitter.Node) bool {
			switch c.Kind() {
			case "identifier":
				sym.Inheritance = append(sym.Inheritance, parser.Text(c, source))
				return false
			case "attribute":
				sym.Inheritance = append(sym.Inheritance, parser.Text(c, source))
				return false
			}
			return true
		})
	}

	cf := ClassFacts{Symbol: sym, Methods: map[string]Symbol{}, Properties: map[string]Symbol{}}
	childParents := append(append([]string{}, parents...), name)

	body := n.ChildByFieldName("body")
	if body != nil {
		recordPyClassDoc(body, source, &cf.Symbol)
		for i := 0; i < int(body.ChildCount()); i++ {
			member := body.Child(uint(i))
			if member == nil {
				continue
			}
			switch member.Kind() {
			case "function_definition":
				m := pyMethodSymbol(member, source, childParents, nil)
				cf.Methods[m.Name] = m
				recordPyCallsIn(member.ChildByFieldName("body"), source, facts)
			case "decorated_definition":
				def := member.ChildByFieldName("definition")
				if def != nil && def.Kind() == "function_definition" {
					m := pyMethodSymbol(def, source, childParents, decoratorNames(member, source))
					cf.Methods[m.Name] = m
					recordPyCallsIn(def.ChildByFieldName("body"), source, facts)
				}
			case "expression_statement":
				recordPyClassAttr(member, source, childParents, &cf)
			}
		}
	}
	facts.Classes[name] = cf
}

func recordPyClassDoc(body *sitter.Node, source []byte, sym *Symbol) {
	if body.ChildCount() == 0 {
		return
	}
	first := body.Child(0)
	if first == nil || first.Kind() != "expression_statement" {
		return
	}
	str := firstChildOfKind(first, "string")
	if str != nil {
		sym.Signature = sym.Name + " -- " + parser.CollapseWhitespace(parser.Text(str, source))
	}
}

func recordPyClassAttr(stmt *sitter.Node, source []byte, parents []string, cf *ClassFacts) {
	assign := firstChildOfKind(stmt, "assignment")
	if assign == nil {
		return
	}
	left := assign.ChildByFieldName("left")
	if left == nil || left.Kind() != "identifier" {
		return
	}
	name := parser.Text(left, source)
	start, end := parser.Line(assign)
	cf.Properties[name] = Symbol{
		Name: name, Kind: KindProperty,
		Span:     Span{StartLine: start, EndLine: end},
		Parents:  parents,
		Metadata: Metadata{Exported: !strings.HasPrefix(name, "_")},
	}
}

func pyMethodSymbol(n *sitter.Node, source []byte, parents []string, decorators []string) Symbol {
	nameNode := n.ChildByFieldName("name")
	name := parser.Text(nameNode, source)
	start, end := parser.Line(n)
	kind := KindMethod
	if name == "__init__" {
		kind = KindConstructor
	}
	meta := Metadata{Exported: !strings.HasPrefix(name, "_")}
	for _, d := range decorators {
		if d == "staticmethod" || d == "classmethod" {
			meta.Static = true
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(uint(i)); c != nil && parser.Text(c, source) == "async" {
			meta.Async = true
		}
	}
	return Symbol{
		Name: name, Kind: kind,
		Span:      Span{StartLine: start, EndLine: end},
		Parents:   parents,
		Metadata:  meta,
		Signature: pyFunctionSignature(n, source, name),
	}
}

func extractPyFunction(n *sitter.Node, source []byte, facts *FileFacts, parents []string, _ []string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := parser.Text(nameNode, source)
	start, end := parser.Line(n)
	async := false
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(uint(i)); c != nil && parser.Text(c, source) == "async" {
			async = true
		}
	}
	facts.Functions[name] = Symbol{
		Name: name, Kind: KindFunction,
		Span:      Span{StartLine: start, EndLine: end},
		Parents:   parents,
		Metadata:  Metadata{Async: async, Exported: !strings.HasPrefix(name, "_")},
		Signature: pyFunctionSignature(n, source, name),
	}
	recordPyCallsIn(n.ChildByFieldName("body"), source, facts)
}

// recordPyCallsIn walks every call nested inside body — including ones
// inside closures declared within it — so a call site is still recorded
// even though the caller stopped the top-level extractPyFile walk from
// descending into body itself (to keep nested function/class definitions
// out of the top-level symbol maps).
func recordPyCallsIn(body *sitter.Node, source []byte, facts *FileFacts) {
	if body == nil {
		return
	}
	parser.Walk(body, func(n *sitter.Node) bool {
		if n.Kind() == "call" {
			recordPyCall(n, source, facts)
		}
		return true
	})
}

func pyFunctionSignature(n *sitter.Node, source []byte, name string) string {
	params := n.ChildByFieldName("parameters")
	ret := n.ChildByFieldName("return_type")
	sig := name
	if params != nil {
		sig += parser.Text(params, source)
	} else {
		sig += "()"
	}
	if ret != nil {
		sig += " -> " + parser.Text(ret, source)
	}
	return sig
}

// recordPyCall mirrors recordTSCall for Python's `call` node, whose callee
// is either an identifier (function call) or an attribute (method call on
// the object in field "object").
func recordPyCall(n *sitter.Node, source []byte, facts *FileFacts) {
	start, end := parser.Line(n)
	span := Span{StartLine: start, EndLine: end}
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	call := Call{ArgumentCount: argumentCount(args), Span: span}

	switch {
	case fn == nil:
		call.Callee = "<dynamic>"
		call.Kind = CallDynamic
	case fn.Kind() == "identifier":
		call.Callee = parser.Text(fn, source)
		if isPyConstructorName(call.Callee) {
			call.Kind = CallConstructor
		} else {
			call.Kind = CallFunction
		}
	case fn.Kind() == "attribute":
		obj := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		call.Callee = parser.Text(attr, source)
		call.Receiver = parser.Text(obj, source)
		call.Kind = CallMethod
		if obj != nil && obj.Kind() == "call" {
			call.Chain = &ChainPosition{Previous: chainPyCalleeName(obj, source)}
		}
	default:
		call.Callee = "<dynamic>"
		call.Kind = CallDynamic
	}
	facts.Calls = append(facts.Calls, call)
}

func isPyConstructorName(name string) bool {
	return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
}

func chainPyCalleeName(n *sitter.Node, source []byte) string {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	if fn.Kind() == "attribute" {
		if attr := fn.ChildByFieldName("attribute"); attr != nil {
			return parser.Text(attr, source)
		}
	}
	return parser.Text(fn, source)
}
