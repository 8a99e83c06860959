package extractor

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeindex-dev/codeindex/internal/parser"
)

// extractTSFile walks a TypeScript/TSX/JavaScript/JSX tree and populates
// facts, generalizing the teacher's extractClass/extractInterface/
// extractTypeAlias/extractFunction/extractLexicalDeclaration
// (internal/indexer/parsers/typescript.go) from the teacher's flat
// SymbolInfo/Definition model into the enumerated SymbolKind model, adding
// method/property/constructor extraction inside class bodies and call-site
// recording that the teacher's extractor never did for TS/JS at all.
func extractTSFile(tree *parser.Tree, facts *FileFacts) {
	source := tree.Source
	root := tree.Root()

	parser.Walk(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "import_statement":
			recordTSImport(n, source, facts)
			return false
		case "export_statement":
			recordTSExport(n, source, facts)
			return true // descend into the wrapped declaration
		case "class_declaration":
			extractTSClass(n, source, facts, nil)
			return false
		case "interface_declaration":
			extractTSInterface(n, source, facts, nil)
			return false
		case "type_alias_declaration":
			extractTSTypeAlias(n, source, facts, nil)
			return false
		case "enum_declaration":
			extractTSEnum(n, source, facts, nil)
			return false
		case "function_declaration", "generator_function_declaration":
			extractTSFunction(n, source, facts, nil)
			return false
		case "lexical_declaration", "variable_declaration":
			extractTSVariables(n, source, facts, nil)
			return true
		case "call_expression", "new_expression":
			recordTSCall(n, source, facts)
			return true
		}
		return true
	})
}

func tsIsExported(n *sitter.Node) bool {
	p := n.Parent()
	return p != nil && p.Kind() == "export_statement"
}

func recordTSImport(n *sitter.Node, source []byte, facts *FileFacts) {
	sourceNode := n.ChildByFieldName("source")
	module := strings.Trim(parser.Text(sourceNode, source), `"'`)
	line, _ := parser.Line(n)
	rec := ImportRecord{Module: module, Line: line}

	clause := firstChildOfKind(n, "import_clause")
	if clause != nil {
		parser.Walk(clause, func(c *sitter.Node) bool {
			switch c.Kind() {
			case "identifier":
				rec.Specifiers = append(rec.Specifiers, Specifier{Local: parser.Text(c, source)})
			case "import_specifier":
				nameNode := c.ChildByFieldName("name")
				aliasNode := c.ChildByFieldName("alias")
				imported := parser.Text(nameNode, source)
				local := imported
				if aliasNode != nil {
					local = parser.Text(aliasNode, source)
				}
				rec.Specifiers = append(rec.Specifiers, Specifier{Local: local, Imported: imported})
			case "namespace_import":
				rec.Specifiers = append(rec.Specifiers, Specifier{Local: parser.Text(c, source)})
			}
			return true
		})
	}
	facts.Imports = append(facts.Imports, rec)
}

func recordTSExport(n *sitter.Node, source []byte, facts *FileFacts) {
	line, _ := parser.Line(n)
	rec := ExportRecord{Line: line}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(uint(i))
		if c != nil && c.Kind() == "export_clause" {
			for j := 0; j < int(c.ChildCount()); j++ {
				spec := c.Child(uint(j))
				if spec == nil || spec.Kind() != "export_specifier" {
					continue
				}
				nameNode := spec.ChildByFieldName("name")
				aliasNode := spec.ChildByFieldName("alias")
				local := parser.Text(nameNode, source)
				exported := local
				if aliasNode != nil {
					exported = parser.Text(aliasNode, source)
				}
				rec.Specifiers = append(rec.Specifiers, Specifier{Local: local, Imported: exported})
			}
		}
	}
	if len(rec.Specifiers) > 0 {
		facts.Exports = append(facts.Exports, rec)
	}
}

func extractTSClass(n *sitter.Node, source []byte, facts *FileFacts, parents []string) {
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
		Metadata:  Metadata{Exported: tsIsExported(n)},
		Signature: name,
	}
	sym.Inheritance = tsHeritage(n, source)

	cf := ClassFacts{Symbol: sym, Methods: map[string]Symbol{}, Properties: map[string]Symbol{}}

	body := n.ChildByFieldName("body")
	childParents := append(append([]string{}, parents...), name)
	if body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			member := body.Child(uint(i))
			if member == nil {
				continue
			}
			switch member.Kind() {
			case "method_definition":
				m := extractTSMethod(member, source, childParents)
				cf.Methods[m.Name] = m
				recordTSCallsIn(member.ChildByFieldName("body"), source, facts)
			case "public_field_definition", "field_definition":
				p := extractTSProperty(member, source, childParents)
				cf.Properties[p.Name] = p
				recordTSCallsIn(member.ChildByFieldName("value"), source, facts)
			}
		}
	}
	facts.Classes[name] = cf
}

func tsHeritage(n *sitter.Node, source []byte) []string {
	var out []string
	heritage := firstChildOfKind(n, "class_heritage")
	if heritage == nil {
		return out
	}
	parser.Walk(heritage, func(c *sitter.Node) bool {
		if c.Kind() == "identifier" || c.Kind() == "type_identifier" || c.Kind() == "nested_type_identifier" {
			out = append(out, parser.Text(c, source))
			return false
		}
		return true
	})
	return out
}

func extractTSMethod(n *sitter.Node, source []byte, parents []string) Symbol {
	nameNode := n.ChildByFieldName("name")
	name := parser.Text(nameNode, source)
	start, end := parser.Line(n)
	kind := KindMethod
	if name == "constructor" {
		kind = KindConstructor
	}
	meta := Metadata{}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(uint(i))
		if c == nil {
			continue
		}
		switch parser.Text(c, source) {
		case "async":
			meta.Async = true
		case "static":
			meta.Static = true
		case "*":
			meta.Generator = true
		}
	}
	return Symbol{
		Name: name, Kind: kind,
		Span:      Span{StartLine: start, EndLine: end},
		Parents:   parents,
		Metadata:  meta,
		Signature: tsFunctionSignature(n, source, name),
	}
}

func extractTSProperty(n *sitter.Node, source []byte, parents []string) Symbol {
	nameNode := n.ChildByFieldName("name")
	name := parser.Text(nameNode, source)
	start, end := parser.Line(n)
	static := false
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(uint(i)); c != nil && parser.Text(c, source) == "static" {
			static = true
		}
	}
	return Symbol{
		Name: name, Kind: KindProperty,
		Span:     Span{StartLine: start, EndLine: end},
		Parents:  parents,
		Metadata: Metadata{Static: static},
	}
}

func extractTSInterface(n *sitter.Node, source []byte, facts *FileFacts, parents []string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := parser.Text(nameNode, source)
	start, end := parser.Line(n)
	sym := Symbol{
		Name: name, Kind: KindInterface,
		Span:      Span{StartLine: start, EndLine: end},
		Parents:   parents,
		Metadata:  Metadata{Exported: tsIsExported(n)},
		Signature: name,
	}
	if ext := firstChildOfKind(n, "extends_type_clause"); ext != nil {
		parser.Walk(ext, func(c *sitter.Node) bool {
			if c.Kind() == "type_identifier" {
				sym.Inheritance = append(sym.Inheritance, parser.Text(c, source))
				return false
			}
			return true
		})
	}
	facts.Interfaces[name] = sym
}

func extractTSTypeAlias(n *sitter.Node, source []byte, facts *FileFacts, parents []string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := parser.Text(nameNode, source)
	start, end := parser.Line(n)
	valueNode := n.ChildByFieldName("value")
	sig := name
	if valueNode != nil {
		sig = name + " = " + parser.Text(valueNode, source)
	}
	facts.Types[name] = Symbol{
		Name: name, Kind: KindType,
		Span:      Span{StartLine: start, EndLine: end},
		Parents:   parents,
		Metadata:  Metadata{Exported: tsIsExported(n)},
		Signature: sig,
	}
}

func extractTSEnum(n *sitter.Node, source []byte, facts *FileFacts, parents []string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := parser.Text(nameNode, source)
	start, end := parser.Line(n)
	facts.Enums[name] = Symbol{
		Name: name, Kind: KindEnum,
		Span:      Span{StartLine: start, EndLine: end},
		Parents:   parents,
		Metadata:  Metadata{Exported: tsIsExported(n)},
		Signature: name,
	}
}

func extractTSFunction(n *sitter.Node, source []byte, facts *FileFacts, parents []string) {
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
		Metadata:  Metadata{Async: async, Exported: tsIsExported(n), Generator: n.Kind() == "generator_function_declaration"},
		Signature: tsFunctionSignature(n, source, name),
	}
	recordTSCallsIn(n.ChildByFieldName("body"), source, facts)
}

// recordTSCallsIn walks every call_expression/new_expression nested inside
// body — including ones inside closures declared within it — so a call
// site is still recorded even though the caller stopped the top-level
// extractTSFile walk from descending into body itself (to keep nested
// function/class declarations out of the top-level symbol maps).
func recordTSCallsIn(body *sitter.Node, source []byte, facts *FileFacts) {
	if body == nil {
		return
	}
	parser.Walk(body, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "call_expression", "new_expression":
			recordTSCall(n, source, facts)
		}
		return true
	})
}

func tsFunctionSignature(n *sitter.Node, source []byte, name string) string {
	params := n.ChildByFieldName("parameters")
	ret := n.ChildByFieldName("return_type")
	sig := name + "("
	if params != nil {
		sig = name + parser.Text(params, source)
	} else {
		sig += ")"
	}
	if ret != nil {
		sig += ": " + parser.Text(ret, source)
	}
	return sig
}

func extractTSVariables(n *sitter.Node, source []byte, facts *FileFacts, parents []string) {
	isConst := n.Kind() == "lexical_declaration" && strings.HasPrefix(parser.Text(n, source), "const")
	exported := tsIsExported(n)
	for _, decl := range parser.ChildrenOfKind(n, "variable_declarator") {
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil || nameNode.Kind() != "identifier" {
			continue
		}
		name := parser.Text(nameNode, source)
		start, end := parser.Line(decl)
		typeNode := decl.ChildByFieldName("type")
		sig := name
		if typeNode != nil {
			sig += ": " + parser.Text(typeNode, source)
		}
		kind := KindVariable
		if isConst {
			kind = KindConstant
		}
		facts.Variables[name] = Symbol{
			Name: name, Kind: kind,
			Span:      Span{StartLine: start, EndLine: end},
			Parents:   parents,
			Metadata:  Metadata{Exported: exported},
			Signature: sig,
		}
	}
}

// recordTSCall records one call_expression/new_expression site, classifying
// dispatch kind and, for member-expression callees, the chain position
// within a fluent call like a.f().g().h() — the teacher's extractor never
// produced call sites for TS/JS at all, so this generalizes from how its Go
// call-graph extractor (internal/graph/extractor.go) records call edges.
func recordTSCall(n *sitter.Node, source []byte, facts *FileFacts) {
	start, end := parser.Line(n)
	span := Span{StartLine: start, EndLine: end}

	if n.Kind() == "new_expression" {
		ctor := n.ChildByFieldName("constructor")
		args := n.ChildByFieldName("arguments")
		facts.Calls = append(facts.Calls, Call{
			Callee: parser.Text(ctor, source), Kind: CallConstructor,
			ArgumentCount: argumentCount(args), Span: span,
		})
		return
	}

	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	call := Call{ArgumentCount: argumentCount(args), Span: span}

	switch {
	case fn == nil:
		call.Callee = "<dynamic>"
		call.Kind = CallDynamic
	case fn.Kind() == "identifier":
		call.Callee = parser.Text(fn, source)
		call.Kind = CallFunction
	case fn.Kind() == "member_expression":
		prop := fn.ChildByFieldName("property")
		obj := fn.ChildByFieldName("object")
		call.Callee = parser.Text(prop, source)
		call.Receiver = parser.Text(obj, source)
		call.Kind = CallMethod
		if obj != nil && (obj.Kind() == "call_expression" || obj.Kind() == "new_expression") {
			call.Chain = &ChainPosition{Previous: chainCalleeName(obj, source)}
		}
	default:
		call.Callee = "<dynamic>"
		call.Kind = CallDynamic
	}
	facts.Calls = append(facts.Calls, call)
}

func chainCalleeName(n *sitter.Node, source []byte) string {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	if fn.Kind() == "member_expression" {
		if prop := fn.ChildByFieldName("property"); prop != nil {
			return parser.Text(prop, source)
		}
	}
	return parser.Text(fn, source)
}

func firstChildOfKind(n *sitter.Node, kind string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(uint(i)); c != nil && c.Kind() == kind {
			return c
		}
	}
	return nil
}
