package parser

import (
	"regexp"
	"strings"

	"github.com/svcs-project/svcs/internal/model"
)

// PHPAnalyzer is the second lightweight regex-based adapter required by
// §4.1: functions, classes, imports (use/require) and top-level variables,
// matched by pattern rather than a PHP grammar.
type PHPAnalyzer struct{}

func NewPHPAnalyzer() *PHPAnalyzer { return &PHPAnalyzer{} }

func (p *PHPAnalyzer) Language() string { return "php" }

func (p *PHPAnalyzer) SupportedExtensions() []string { return []string{".php", ".phtml"} }

var (
	phpFunctionDecl = regexp.MustCompile(`(?m)^\s*(public\s+|private\s+|protected\s+)?(static\s+)?(abstract\s+)?(final\s+)?function\s+&?([A-Za-z_]\w*)\s*\(([^)]*)\)`)
	phpClassDecl    = regexp.MustCompile(`(?m)^\s*(abstract\s+)?(final\s+)?class\s+([A-Za-z_]\w*)\s*(extends\s+([A-Za-z_\\]\w*))?\s*(implements\s+([A-Za-z_\\, ]+))?`)
	phpUseDecl      = regexp.MustCompile(`(?m)^\s*use\s+([A-Za-z_\\]+)(\s+as\s+([A-Za-z_]\w*))?\s*;`)
	phpRequireDecl  = regexp.MustCompile(`(?m)^\s*(require|require_once|include|include_once)\s*\(?['"]([^'"]+)['"]\)?\s*;`)
	phpTopLevelVar  = regexp.MustCompile(`(?m)^\$([A-Za-z_]\w*)\s*=`)
)

func (p *PHPAnalyzer) Parse(path string, content []byte) (model.CodeModel, error) {
	m := model.New(path, p.Language())
	if len(content) == 0 {
		m.Empty = true
		return m, nil
	}
	src := string(content)

	for _, um := range phpUseDecl.FindAllStringSubmatch(src, -1) {
		m.Module.Imports = append(m.Module.Imports, model.Import{ModulePath: um[1], Alias: um[3]})
	}
	for _, rm := range phpRequireDecl.FindAllStringSubmatch(src, -1) {
		m.Module.Imports = append(m.Module.Imports, model.Import{ModulePath: rm[2]})
	}

	for _, cm := range phpClassDecl.FindAllStringSubmatchIndex(src, -1) {
		name := src[cm[6]:cm[7]]
		cls := model.Class{
			Name:          name,
			QualifiedName: name,
			Methods:       map[string]struct{}{},
			Attributes:    map[string]string{},
			Modifiers:     map[model.Modifier]struct{}{},
			StartLine:     lineOf(src, cm[0]) + 1,
		}
		if cm[10] >= 0 {
			cls.Bases = append(cls.Bases, src[cm[10]:cm[11]])
		}
		if cm[14] >= 0 {
			for _, iface := range strings.Split(src[cm[14]:cm[15]], ",") {
				cls.Bases = append(cls.Bases, strings.TrimSpace(iface))
			}
		}
		if cm[2] >= 0 {
			cls.Modifiers[model.ModifierAbstract] = struct{}{}
		}
		if cm[4] >= 0 {
			cls.Modifiers[model.ModifierFinal] = struct{}{}
		}

		body := bodyFrom(src, cm[1])
		for _, fm := range phpFunctionDecl.FindAllStringSubmatch(body, -1) {
			methodName := fm[5]
			qualified := name + "." + methodName
			fn := model.Function{
				Name:                methodName,
				QualifiedName:       qualified,
				Parameters:          parsePHPParams(fm[6]),
				Calls:               map[string]struct{}{},
				Raises:              map[string]struct{}{},
				ControlFlowFeatures: scanPHPControlFlow(body),
				Modifiers:           map[model.Modifier]struct{}{},
				Visibility:          visibilityFromPHP(fm[1]),
				BodyDigest:          digest(body),
				ComplexityScore:     estimateJSComplexity(body),
			}
			if strings.TrimSpace(fm[2]) == "static" {
				fn.Modifiers[model.ModifierStatic] = struct{}{}
			}
			if strings.TrimSpace(fm[3]) == "abstract" {
				fn.Modifiers[model.ModifierAbstract] = struct{}{}
			}
			m.Functions[fn.ID()] = fn
			cls.Methods[fn.ID()] = struct{}{}
		}
		m.Classes[cls.ID()] = cls
	}

	bodyMinusClasses := phpClassDecl.ReplaceAllString(src, "")
	for _, fm := range phpFunctionDecl.FindAllStringSubmatch(bodyMinusClasses, -1) {
		name := fm[5]
		id := "func:" + name
		if _, exists := m.Functions[id]; exists {
			continue
		}
		body := bodyFromName(src, name)
		fn := model.Function{
			Name:                name,
			QualifiedName:       name,
			Parameters:          parsePHPParams(fm[6]),
			Calls:               map[string]struct{}{},
			Raises:              map[string]struct{}{},
			ControlFlowFeatures: scanPHPControlFlow(body),
			Modifiers:           map[model.Modifier]struct{}{},
			Visibility:          model.VisibilityPublic,
			BodyDigest:          digest(body),
			ComplexityScore:     estimateJSComplexity(body),
		}
		m.Functions[fn.ID()] = fn
	}

	for _, vm := range phpTopLevelVar.FindAllStringSubmatch(src, -1) {
		m.Module.TopLevelAssignments = append(m.Module.TopLevelAssignments, vm[1])
	}

	return m, nil
}

func visibilityFromPHP(kw string) model.Visibility {
	switch strings.TrimSpace(kw) {
	case "private":
		return model.VisibilityPrivate
	case "protected":
		return model.VisibilityProtected
	default:
		return model.VisibilityPublic
	}
}

func parsePHPParams(raw string) []model.Parameter {
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
		p = strings.TrimSpace(p)
		if sp := strings.LastIndexAny(p, " \t"); sp >= 0 {
			param.AnnotationText = strings.TrimSpace(p[:sp])
			param.TypeAnnotationPresent = param.AnnotationText != ""
			p = p[sp+1:]
		}
		param.Name = strings.TrimPrefix(strings.TrimSpace(p), "$")
		if param.Name != "" {
			params = append(params, param)
		}
	}
	return params
}

func scanPHPControlFlow(body string) map[model.ControlFlowFeature]struct{} {
	f := map[model.ControlFlowFeature]struct{}{}
	if strings.Contains(body, "if (") || strings.Contains(body, "if(") {
		f[model.FeatureIf] = struct{}{}
	}
	if strings.Contains(body, "foreach (") || strings.Contains(body, "for (") {
		f[model.FeatureFor] = struct{}{}
	}
	if strings.Contains(body, "while (") {
		f[model.FeatureWhile] = struct{}{}
	}
	if strings.Contains(body, "try {") {
		f[model.FeatureTry] = struct{}{}
	}
	if strings.Contains(body, "function (") || strings.Contains(body, "fn(") || strings.Contains(body, "fn (") {
		f[model.FeatureLambda] = struct{}{}
	}
	if strings.Contains(body, "?") && strings.Contains(body, ":") {
		f[model.FeatureTernary] = struct{}{}
	}
	return f
}
