package parser

import (
	"regexp"
	"strings"

	"github.com/svcs-project/svcs/internal/model"
)

// JavaScriptAnalyzer is a lightweight regex-based adapter, as required by
// §4.1 for languages that don't warrant a full grammar: it recognizes
// function/class/import declarations and top-level variables by pattern
// matching rather than a parser.
type JavaScriptAnalyzer struct{}

func NewJavaScriptAnalyzer() *JavaScriptAnalyzer { return &JavaScriptAnalyzer{} }

func (j *JavaScriptAnalyzer) Language() string { return "javascript" }

func (j *JavaScriptAnalyzer) SupportedExtensions() []string {
	return []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"}
}

var (
	jsFunctionDecl = regexp.MustCompile(`(?m)^\s*(export\s+)?(default\s+)?(async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(([^)]*)\)`)
	jsArrowAssign  = regexp.MustCompile(`(?m)^\s*(export\s+)?(const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(async\s+)?\(([^)]*)\)\s*=>`)
	jsClassDecl    = regexp.MustCompile(`(?m)^\s*(export\s+)?(default\s+)?class\s+([A-Za-z_$][\w$]*)\s*(extends\s+([A-Za-z_$][\w$.]*))?`)
	jsMethodDecl   = regexp.MustCompile(`(?m)^\s*(static\s+)?(async\s+)?(get\s+|set\s+)?([A-Za-z_$][\w$]*)\s*\(([^)]*)\)\s*\{`)
	jsImportDecl   = regexp.MustCompile(`(?m)^\s*import\s+(.+?)\s+from\s+['"]([^'"]+)['"]`)
	jsDecorator    = regexp.MustCompile(`(?m)^\s*@([A-Za-z_$][\w$.]*)`)
	jsTopLevelVar  = regexp.MustCompile(`(?m)^(const|let|var)\s+([A-Za-z_$][\w$]*)\s*=`)
)

func (j *JavaScriptAnalyzer) Parse(path string, content []byte) (model.CodeModel, error) {
	m := model.New(path, j.Language())
	if len(content) == 0 {
		m.Empty = true
		return m, nil
	}
	src := string(content)
	lines := strings.Split(src, "\n")

	for _, im := range jsImportDecl.FindAllStringSubmatch(src, -1) {
		m.Module.Imports = append(m.Module.Imports, model.Import{
			ModulePath: im[2],
			Symbols:    splitImportSymbols(im[1]),
		})
	}

	for _, cm := range jsClassDecl.FindAllStringSubmatchIndex(src, -1) {
		name := src[cm[6]:cm[7]]
		var bases []string
		if cm[10] >= 0 {
			bases = append(bases, src[cm[10]:cm[11]])
		}
		decorators := decoratorsBefore(lines, lineOf(src, cm[0]))
		cls := model.Class{
			Name:          name,
			QualifiedName: name,
			Bases:         bases,
			Decorators:    decorators,
			Methods:       map[string]struct{}{},
			Attributes:    map[string]string{},
			Modifiers:     map[model.Modifier]struct{}{},
			StartLine:     lineOf(src, cm[0]) + 1,
		}
		body := bodyFrom(src, cm[1])
		for _, mm := range jsMethodDecl.FindAllStringSubmatch(body, -1) {
			methodName := mm[4]
			if methodName == "if" || methodName == "for" || methodName == "while" || methodName == "switch" || methodName == "catch" {
				continue
			}
			qualified := name + "." + methodName
			fn := model.Function{
				Name:                methodName,
				QualifiedName:       qualified,
				IsAsync:             strings.TrimSpace(mm[2]) == "async",
				Parameters:          parseJSParams(mm[5]),
				Calls:               map[string]struct{}{},
				Raises:              map[string]struct{}{},
				ControlFlowFeatures: scanJSControlFlow(body),
				Modifiers:           map[model.Modifier]struct{}{},
				Visibility:          model.VisibilityPublic,
				BodyDigest:          digest(body),
				ComplexityScore:     estimateJSComplexity(body),
			}
			if strings.TrimSpace(mm[1]) == "static" {
				fn.Modifiers[model.ModifierStatic] = struct{}{}
			}
			m.Functions[fn.ID()] = fn
			cls.Methods[fn.ID()] = struct{}{}
		}
		m.Classes[cls.ID()] = cls
	}

	for _, fm := range jsFunctionDecl.FindAllStringSubmatch(src, -1) {
		name := fm[4]
		body := bodyFromName(src, name)
		fn := model.Function{
			Name:                name,
			QualifiedName:       name,
			IsAsync:             strings.TrimSpace(fm[3]) == "async",
			Parameters:          parseJSParams(fm[5]),
			Calls:               map[string]struct{}{},
			Raises:              map[string]struct{}{},
			ControlFlowFeatures: scanJSControlFlow(body),
			Modifiers:           map[model.Modifier]struct{}{},
			Visibility:          model.VisibilityPublic,
			BodyDigest:          digest(body),
			ComplexityScore:     estimateJSComplexity(body),
		}
		m.Functions[fn.ID()] = fn
	}

	for _, am := range jsArrowAssign.FindAllStringSubmatch(src, -1) {
		name := am[3]
		body := bodyFromName(src, name)
		fn := model.Function{
			Name:                name,
			QualifiedName:       name,
			IsAsync:             strings.TrimSpace(am[4]) == "async",
			Parameters:          parseJSParams(am[5]),
			Calls:               map[string]struct{}{},
			Raises:              map[string]struct{}{},
			ControlFlowFeatures: scanJSControlFlow(body),
			Modifiers:           map[model.Modifier]struct{}{},
			Visibility:          model.VisibilityPublic,
			BodyDigest:          digest(body),
			ComplexityScore:     estimateJSComplexity(body),
		}
		m.Functions[fn.ID()] = fn
	}

	for _, vm := range jsTopLevelVar.FindAllStringSubmatch(src, -1) {
		m.Module.TopLevelAssignments = append(m.Module.TopLevelAssignments, vm[2])
	}

	return m, nil
}

func splitImportSymbols(clause string) []string {
	clause = strings.TrimSpace(clause)
	clause = strings.Trim(clause, "{}")
	var out []string
	for _, s := range strings.Split(clause, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func lineOf(src string, byteOffset int) int {
	return strings.Count(src[:byteOffset], "\n")
}

func decoratorsBefore(lines []string, lineIdx int) []string {
	var out []string
	for i := lineIdx - 1; i >= 0; i-- {
		m := jsDecorator.FindStringSubmatch(lines[i])
		if m == nil {
			break
		}
		out = append([]string{m[1]}, out...)
	}
	return out
}

// bodyFrom extracts a brace-delimited body starting at the first '{' at or
// after offset, using simple brace counting (sufficient for event
// classification; not a full parser).
func bodyFrom(src string, offset int) string {
	start := strings.IndexByte(src[offset:], '{')
	if start < 0 {
		return ""
	}
	start += offset
	depth := 0
	for i := start; i < len(src); i++ {
		switch src[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return src[start : i+1]
			}
		}
	}
	return src[start:]
}

func bodyFromName(src, name string) string {
	idx := strings.Index(src, name)
	if idx < 0 {
		return ""
	}
	return bodyFrom(src, idx)
}

func parseJSParams(raw string) []model.Parameter {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var params []model.Parameter
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		param := model.Parameter{}
		if eq := strings.Index(p, "="); eq >= 0 {
			param.DefaultPresent = true
			p = p[:eq]
		}
		if colon := strings.Index(p, ":"); colon >= 0 {
			param.TypeAnnotationPresent = true
			param.AnnotationText = strings.TrimSpace(p[colon+1:])
			p = p[:colon]
		}
		param.Name = strings.TrimSpace(strings.TrimPrefix(p, "..."))
		params = append(params, param)
	}
	return params
}

func scanJSControlFlow(body string) map[model.ControlFlowFeature]struct{} {
	f := map[model.ControlFlowFeature]struct{}{}
	if strings.Contains(body, "if (") || strings.Contains(body, "if(") {
		f[model.FeatureIf] = struct{}{}
	}
	if strings.Contains(body, "for (") || strings.Contains(body, "for(") || strings.Contains(body, ".map(") || strings.Contains(body, ".filter(") {
		f[model.FeatureFor] = struct{}{}
	}
	if strings.Contains(body, "while (") || strings.Contains(body, "while(") {
		f[model.FeatureWhile] = struct{}{}
	}
	if strings.Contains(body, "try {") || strings.Contains(body, "try{") {
		f[model.FeatureTry] = struct{}{}
	}
	if strings.Contains(body, "=>") {
		f[model.FeatureLambda] = struct{}{}
	}
	if strings.Contains(body, "?") && strings.Contains(body, ":") {
		f[model.FeatureTernary] = struct{}{}
	}
	return f
}

func estimateJSComplexity(body string) int {
	score := 1
	for _, kw := range []string{"if (", "if(", "for (", "for(", "while (", "while(", "catch (", "catch(", "case "} {
		score += strings.Count(body, kw)
	}
	return score
}
