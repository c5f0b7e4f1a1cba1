package parser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/svcs-project/svcs/internal/model"
)

// PythonAnalyzer is the "strong" backend required by §4.1: it parses real
// Python syntax with Tree-sitter rather than regexes, the same technique
// theRebelliousNerd-codenerd's PythonCodeParser uses for its CodeDOM.
type PythonAnalyzer struct{}

// NewPythonAnalyzer constructs a PythonAnalyzer. A fresh *sitter.Parser is
// created per Parse call because sitter.Parser is not safe for concurrent
// reuse across goroutines, and the commit processor (C6) analyzes files
// concurrently (spec §5).
func NewPythonAnalyzer() *PythonAnalyzer { return &PythonAnalyzer{} }

func (p *PythonAnalyzer) Language() string { return "python" }

func (p *PythonAnalyzer) SupportedExtensions() []string { return []string{".py", ".pyw"} }

// Parse implements LanguageAnalyzer. It never panics: a Tree-sitter parse
// failure on malformed source still yields whatever nodes the incremental
// parser recovered, tagged Partial.
func (p *PythonAnalyzer) Parse(path string, content []byte) (m model.CodeModel, err error) {
	defer func() {
		if r := recover(); r != nil {
			m = model.New(path, p.Language())
			m.Partial = true
			err = fmt.Errorf("python parser panic on %s: %v", path, r)
		}
	}()

	m = model.New(path, p.Language())
	if len(content) == 0 {
		m.Empty = true
		return m, nil
	}

	sp := sitter.NewParser()
	sp.SetLanguage(python.GetLanguage())
	tree, perr := sp.ParseCtx(context.Background(), nil, content)
	if perr != nil || tree == nil {
		m.Partial = true
		return m, nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		m.Partial = true
	}

	w := &pyWalker{src: content, model: &m}
	w.walkModule(root)
	m.TokensNormalized = w.tokens
	return m, nil
}

type pyWalker struct {
	src   []byte
	model *model.CodeModel
	tokens []string
}

func (w *pyWalker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(w.src[n.StartByte():n.EndByte()])
}

// walkModule scans top-level statements for imports, the module docstring,
// and function/class definitions (decorated or not).
func (w *pyWalker) walkModule(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "import_statement", "import_from_statement":
			w.model.Module.Imports = append(w.model.Module.Imports, w.parseImport(child))
		case "expression_statement":
			if i == 0 {
				if s := child.NamedChild(0); s != nil && s.Type() == "string" {
					w.model.Module.ModuleDocstringPresent = true
				}
			}
			if assign := findAssignment(child); assign != nil {
				w.model.Module.TopLevelAssignments = append(w.model.Module.TopLevelAssignments, w.text(assign))
			}
		case "function_definition":
			w.addFunction(child, nil, "")
		case "class_definition":
			w.addClass(child, "")
		case "decorated_definition":
			w.addDecorated(child, "")
		}
	}
}

func findAssignment(exprStmt *sitter.Node) *sitter.Node {
	if exprStmt.NamedChildCount() == 0 {
		return nil
	}
	n := exprStmt.NamedChild(0)
	if n.Type() == "assignment" {
		return n
	}
	return nil
}

func (w *pyWalker) parseImport(n *sitter.Node) model.Import {
	imp := model.Import{}
	switch n.Type() {
	case "import_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			switch c.Type() {
			case "dotted_name":
				imp.ModulePath = w.text(c)
			case "aliased_import":
				if name := c.ChildByFieldName("name"); name != nil {
					imp.ModulePath = w.text(name)
				}
				if alias := c.ChildByFieldName("alias"); alias != nil {
					imp.Alias = w.text(alias)
				}
			}
		}
	case "import_from_statement":
		if mod := n.ChildByFieldName("module_name"); mod != nil {
			imp.ModulePath = w.text(mod)
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "dotted_name" && w.text(c) != imp.ModulePath {
				imp.Symbols = append(imp.Symbols, w.text(c))
			}
			if c.Type() == "aliased_import" {
				if name := c.ChildByFieldName("name"); name != nil {
					imp.Symbols = append(imp.Symbols, w.text(name))
				}
			}
		}
	}
	return imp
}

func (w *pyWalker) addDecorated(n *sitter.Node, parentClass string) {
	var decorators []string
	var inner *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "decorator":
			decorators = append(decorators, strings.TrimPrefix(strings.TrimSpace(w.text(c)), "@"))
		case "function_definition":
			inner = c
		case "class_definition":
			inner = c
		}
	}
	if inner == nil {
		return
	}
	if inner.Type() == "function_definition" {
		w.addFunction(inner, decorators, parentClass)
	} else {
		w.addClass(inner, parentClass)
	}
}

func (w *pyWalker) addFunction(n *sitter.Node, decorators []string, parentClass string) {
	nameNode := n.ChildByFieldName("name")
	name := w.text(nameNode)
	qualified := name
	if parentClass != "" {
		qualified = parentClass + "." + name
	}

	isAsync := strings.HasPrefix(strings.TrimSpace(w.text(n)), "async ")

	fn := model.Function{
		Name:                name,
		QualifiedName:       qualified,
		Decorators:          decorators,
		IsAsync:             isAsync,
		Calls:               map[string]struct{}{},
		Raises:              map[string]struct{}{},
		ControlFlowFeatures: map[model.ControlFlowFeature]struct{}{},
		Modifiers:           map[model.Modifier]struct{}{},
		Visibility:          visibilityOf(name),
		StartLine:           int(n.StartPoint().Row) + 1,
		EndLine:             int(n.EndPoint().Row) + 1,
	}

	if params := n.ChildByFieldName("parameters"); params != nil {
		fn.Parameters = w.parseParameters(params)
	}
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		fn.ReturnAnnotationText = w.text(ret)
	}

	body := n.ChildByFieldName("body")
	bodyText := w.text(body)
	fn.BodyDigest = digest(bodyText)
	fn.ComplexityScore = 1

	if body != nil {
		w.scanBody(body, &fn)
	}

	w.model.Functions[fn.ID()] = fn
}

func visibilityOf(name string) model.Visibility {
	if strings.HasPrefix(name, "__") && !strings.HasSuffix(name, "__") {
		return model.VisibilityPrivate
	}
	if strings.HasPrefix(name, "_") {
		return model.VisibilityProtected
	}
	return model.VisibilityPublic
}

func (w *pyWalker) parseParameters(n *sitter.Node) []model.Parameter {
	var params []model.Parameter
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		p := model.Parameter{}
		switch c.Type() {
		case "identifier":
			p.Name = w.text(c)
		case "typed_parameter":
			if id := c.NamedChild(0); id != nil {
				p.Name = w.text(id)
			}
			p.TypeAnnotationPresent = true
			if t := c.ChildByFieldName("type"); t != nil {
				p.AnnotationText = w.text(t)
			}
		case "default_parameter":
			if nameN := c.ChildByFieldName("name"); nameN != nil {
				p.Name = w.text(nameN)
			}
			p.DefaultPresent = true
		case "typed_default_parameter":
			if nameN := c.ChildByFieldName("name"); nameN != nil {
				p.Name = w.text(nameN)
			}
			p.DefaultPresent = true
			p.TypeAnnotationPresent = true
			if t := c.ChildByFieldName("type"); t != nil {
				p.AnnotationText = w.text(t)
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			p.Name = w.text(c)
		default:
			p.Name = w.text(c)
		}
		if p.Name != "" {
			params = append(params, p)
		}
	}
	return params
}

// scanBody walks a function body recursively, populating control-flow
// features, calls, raises, yields, complexity, and the token stream used by
// layer 5a (spec §4.1, §4.2 step 2 inputs).
func (w *pyWalker) scanBody(n *sitter.Node, fn *model.Function) {
	depth := 0
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		switch node.Type() {
		case "if_statement":
			fn.ControlFlowFeatures[model.FeatureIf] = struct{}{}
			fn.ComplexityScore++
		case "for_statement":
			fn.ControlFlowFeatures[model.FeatureFor] = struct{}{}
			fn.ComplexityScore++
			depth++
			if depth > fn.MaxLoopNestingDepth {
				fn.MaxLoopNestingDepth = depth
			}
			defer func() { depth-- }()
		case "while_statement":
			fn.ControlFlowFeatures[model.FeatureWhile] = struct{}{}
			fn.ComplexityScore++
			depth++
			if depth > fn.MaxLoopNestingDepth {
				fn.MaxLoopNestingDepth = depth
			}
			defer func() { depth-- }()
		case "try_statement":
			fn.ControlFlowFeatures[model.FeatureTry] = struct{}{}
			fn.ComplexityScore++
		case "with_statement":
			fn.ControlFlowFeatures[model.FeatureWith] = struct{}{}
		case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
			fn.ControlFlowFeatures[model.FeatureComprehension] = struct{}{}
			fn.ComprehensionCount++
			fn.ComplexityScore++
		case "lambda":
			fn.ControlFlowFeatures[model.FeatureLambda] = struct{}{}
			fn.LambdaCount++
		case "conditional_expression":
			fn.ControlFlowFeatures[model.FeatureTernary] = struct{}{}
		case "call":
			if fnode := node.ChildByFieldName("function"); fnode != nil {
				name := w.text(fnode)
				fn.Calls[name] = struct{}{}
				if name == "map" || name == "filter" || name == "reduce" || name == "sorted" || name == "functools.reduce" {
					fn.HigherOrderCalls++
				}
				if name == "set" || name == "dict" || name == "frozenset" {
					fn.SetOrDictConstructions++
				}
				if strings.HasSuffix(name, ".append") || strings.HasSuffix(name, ".extend") ||
					strings.HasSuffix(name, ".sort") || strings.HasSuffix(name, ".update") ||
					strings.HasSuffix(name, ".add") || strings.HasSuffix(name, ".pop") {
					fn.InPlaceMutationCalls++
				}
			}
		case "set", "dictionary":
			fn.SetOrDictConstructions++
		case "raise_statement":
			if n := node.NamedChild(0); n != nil {
				fn.Raises[firstIdent(w.text(n))] = struct{}{}
			}
		case "except_clause":
			if n := node.NamedChild(0); n != nil {
				fn.Raises[firstIdent(w.text(n))] = struct{}{}
			}
		case "yield", "yield_expression":
			fn.Yields = true
		case "assert_statement":
			fn.AssertionCount++
		case "global_statement":
			fn.GlobalDeclarations++
		case "nonlocal_statement":
			fn.NonlocalDeclarations++
		case "augmented_assignment":
			fn.AugmentedAssignments++
		case "assignment":
			if left := node.ChildByFieldName("left"); left != nil {
				if left.Type() == "pattern_list" || left.Type() == "tuple_pattern" {
					fn.DestructuringAssignments++
				}
			}
			if right := node.ChildByFieldName("right"); right != nil {
				if right.Type() == "tuple" || right.Type() == "frozenset" {
					fn.ImmutableRebindingCount++
				}
			}
		case "attribute":
			fn.AttributeAccesses++
		case "subscript":
			fn.SubscriptAccesses++
		case "true", "false":
			fn.BooleanLiteralUses++
		case "integer", "float":
			fn.NumericLiteralCount++
		case "identifier":
			if text := w.text(node); isUpperCaseConstant(text) {
				fn.UpperCaseIdentifierRefs++
			}
		}

		w.tokens = append(w.tokens, tokenRole(node.Type()))

		for i := 0; i < int(node.NamedChildCount()); i++ {
			walk(node.NamedChild(i))
		}
	}
	walk(n)
}

// tokenRole reduces a Tree-sitter node type to a role token for layer 5a's
// structural token stream (spec §4.1's tokens_normalized).
func tokenRole(nodeType string) string {
	switch nodeType {
	case "identifier", "attribute", "call":
		return "EXPR"
	case "integer", "float", "string", "true", "false", "none":
		return "LIT"
	default:
		return nodeType
	}
}

// isUpperCaseConstant applies the common convention that SCREAMING_SNAKE_CASE
// identifiers of at least 2 characters reference module-level constants.
func isUpperCaseConstant(name string) bool {
	if len(name) < 2 {
		return false
	}
	hasLetter := false
	for _, r := range name {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}

func firstIdent(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, "( \t"); idx >= 0 {
		return s[:idx]
	}
	return s
}

func (w *pyWalker) addClass(n *sitter.Node, outerClass string) {
	nameNode := n.ChildByFieldName("name")
	name := w.text(nameNode)
	qualified := name
	if outerClass != "" {
		qualified = outerClass + "." + name
	}

	cls := model.Class{
		Name:          name,
		QualifiedName: qualified,
		Methods:       map[string]struct{}{},
		Attributes:    map[string]string{},
		Modifiers:     map[model.Modifier]struct{}{},
		StartLine:     int(n.StartPoint().Row) + 1,
		EndLine:       int(n.EndPoint().Row) + 1,
	}

	if args := n.ChildByFieldName("superclasses"); args != nil {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			cls.Bases = append(cls.Bases, w.text(args.NamedChild(i)))
		}
	}

	body := n.ChildByFieldName("body")
	if body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			member := body.NamedChild(i)
			switch member.Type() {
			case "function_definition":
				w.addFunction(member, nil, qualified)
				cls.Methods["func:"+qualified+"."+w.text(member.ChildByFieldName("name"))] = struct{}{}
			case "decorated_definition":
				w.addDecorated(member, qualified)
			case "expression_statement":
				if assign := findAssignment(member); assign != nil {
					if left := assign.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
						t := ""
						if typ := assign.ChildByFieldName("type"); typ != nil {
							t = w.text(typ)
						}
						cls.Attributes[w.text(left)] = t
					}
				}
			}
		}
	}

	w.model.Classes[cls.ID()] = cls
}

func digest(s string) string {
	normalized := normalizeWhitespace(s)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// normalizeWhitespace collapses runs of whitespace so that whitespace-only
// edits do not change a function's BodyDigest (spec §8 boundary behavior:
// whitespace/comment-only changes emit no events).
func normalizeWhitespace(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
