// Package llmchange implements the layer 5b LLM abstract-change detector
// (C4, spec §4.4): for non-trivial diffs, it asks an external model to
// describe the change in terms no deterministic comparator can reach
// (architectural shift, readability, maintainability).
package llmchange

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/svcs-project/svcs/internal/events"
	"github.com/svcs-project/svcs/internal/model"
)

// DisableEnvVar force-disables layer 5b regardless of API key presence,
// for CI or offline use (spec §4.4's failure policy extended with an
// explicit opt-out).
const DisableEnvVar = "SVCS_DISABLE_LAYER_5B"

// defaultTimeout is the per-call LLM timeout (spec §4.4: "default 30s").
const defaultTimeout = 30 * time.Second

// maxSnippetChars is the smart-truncation bound applied to each side of the
// diff before it's sent to the model (spec §4.4).
const maxSnippetChars = 2000

// allowedChangeTypes is the closed set of change_type values the prompt
// permits in its JSON response (spec §4.4).
var allowedChangeTypes = map[string]bool{
	"algorithm_optimization":      true,
	"design_pattern":              true,
	"readability_improvement":     true,
	"architecture_change":         true,
	"abstraction_improvement":     true,
	"performance_optimization":    true,
	"maintainability_improvement": true,
	"error_strategy_change":       true,
}

// minConfidence drops low-confidence entries from the model's response
// (spec §4.4: "drop entries with confidence < 0.6").
const minConfidence = 0.6

// Detector wraps a genai client with SVCS's triviality gate and prompt
// contract. A nil *genai.Client (no API key) makes every call a silent
// no-op, matching §4.4's failure policy.
type Detector struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	log     *zap.Logger
}

// New constructs a Detector. apiKey == "" (or DisableEnvVar set) yields a
// Detector that always returns an empty result without ever touching the
// network, matching §4.4: "Missing API key -> skip silently, return empty."
func New(ctx context.Context, apiKey, modelName string, timeout time.Duration, log *zap.Logger) (*Detector, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	if log == nil {
		log = zap.NewNop()
	}
	if apiKey == "" || os.Getenv(DisableEnvVar) != "" {
		return &Detector{model: modelName, timeout: timeout, log: log}, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Detector{client: client, model: modelName, timeout: timeout, log: log}, nil
}

// Enabled reports whether this Detector will actually call the LLM.
func (d *Detector) Enabled() bool { return d.client != nil }

// Detect runs the triviality gate and, if the change is non-trivial, asks
// the model to describe it abstractly (spec §4.4).
func (d *Detector) Detect(ctx context.Context, path string, before, after model.CodeModel, beforeSrc, afterSrc []byte) []events.Event {
	if d.client == nil {
		return nil
	}
	if isTrivial(before, after, beforeSrc, afterSrc) {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	prompt := buildPrompt(path, beforeSrc, afterSrc)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	result, err := d.client.Models.GenerateContent(callCtx, d.model, contents, nil)
	if err != nil {
		d.log.Warn("layer 5b call failed", zap.String("path", path), zap.Error(err))
		return nil
	}

	text := responseText(result)
	entries, err := parseResponse(text)
	if err != nil {
		d.log.Warn("layer 5b response parse failed", zap.String("path", path), zap.Error(err))
		return nil
	}

	moduleID := "module:" + path
	var out []events.Event
	for _, e := range entries {
		if e.Confidence < minConfidence {
			continue
		}
		if !allowedChangeTypes[e.ChangeType] {
			continue
		}
		confidence := e.Confidence
		reasoning := e.Reasoning
		var impact *events.Impact
		if e.Impact != "" {
			i := events.Impact(e.Impact)
			impact = &i
		}
		out = append(out, events.Event{
			EventType:        events.AbstractType(e.ChangeType),
			NodeID:           moduleID,
			Location:         path,
			Details:          e.Description,
			Layer:            events.Layer5b,
			LayerDescription: events.LayerDescriptionFor(events.Layer5b),
			Confidence:       &confidence,
			Reasoning:        &reasoning,
			Impact:           impact,
		})
	}
	return out
}

func responseText(result *genai.GenerateContentResponse) string {
	if result == nil {
		return ""
	}
	return result.Text()
}

// responseEntry mirrors one JSON object in the model's response array
// (spec §4.4: "{change_type, confidence, description, reasoning, impact,
// before_abstract, after_abstract}").
type responseEntry struct {
	ChangeType     string  `json:"change_type"`
	Confidence     float64 `json:"confidence"`
	Description    string  `json:"description"`
	Reasoning      string  `json:"reasoning"`
	Impact         string  `json:"impact"`
	BeforeAbstract string  `json:"before_abstract"`
	AfterAbstract  string  `json:"after_abstract"`
}

// parseResponse extracts the first balanced JSON array or object from text
// and decodes it into zero or more entries, per §4.4's "Extract the first
// balanced JSON object in the response" (the model may wrap a single object
// or an array of objects; both are accepted).
func parseResponse(text string) ([]responseEntry, error) {
	jsonText := extractBalancedJSON(text)
	if jsonText == "" {
		return nil, fmt.Errorf("no balanced JSON object found in response")
	}

	trimmed := strings.TrimSpace(jsonText)
	if strings.HasPrefix(trimmed, "[") {
		var entries []responseEntry
		if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
			return nil, fmt.Errorf("decode JSON array: %w", err)
		}
		return entries, nil
	}

	var single responseEntry
	if err := json.Unmarshal([]byte(trimmed), &single); err != nil {
		return nil, fmt.Errorf("decode JSON object: %w", err)
	}
	return []responseEntry{single}, nil
}

// extractBalancedJSON scans text for the first top-level balanced {...} or
// [...] span, respecting string quoting so braces inside string literals
// don't unbalance the scan.
func extractBalancedJSON(text string) string {
	start := -1
	var open, close byte
	for i := 0; i < len(text); i++ {
		if text[i] == '{' || text[i] == '[' {
			start = i
			open = text[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// buildPrompt assembles the JSON-response-contract prompt of §4.4.
func buildPrompt(path string, beforeSrc, afterSrc []byte) string {
	var b strings.Builder
	b.WriteString("You are analyzing a code change for a semantic version control system.\n")
	b.WriteString("File: " + path + "\n\n")
	b.WriteString("--- BEFORE ---\n")
	b.WriteString(smartTruncate(string(beforeSrc), maxSnippetChars))
	b.WriteString("\n\n--- AFTER ---\n")
	b.WriteString(smartTruncate(string(afterSrc), maxSnippetChars))
	b.WriteString("\n\nDescribe the abstract nature of this change. Respond with a JSON array of objects, ")
	b.WriteString("each with exactly these fields: change_type (one of algorithm_optimization, design_pattern, ")
	b.WriteString("readability_improvement, architecture_change, abstraction_improvement, performance_optimization, ")
	b.WriteString("maintainability_improvement, error_strategy_change), confidence (0..1), description, reasoning, ")
	b.WriteString("impact (low|medium|high|critical), before_abstract, after_abstract. ")
	b.WriteString("Return only entries you are confident about; omit anything with confidence below 0.6. ")
	b.WriteString("Respond with JSON only, no prose.")
	return b.String()
}

// smartTruncate keeps whole lines, trimming from the end, until the result
// fits within maxChars (spec §4.4: "smart-truncated ... at line/function
// boundaries").
func smartTruncate(src string, maxChars int) string {
	if len(src) <= maxChars {
		return src
	}
	lines := strings.Split(src, "\n")
	var b strings.Builder
	for _, line := range lines {
		if b.Len()+len(line)+1 > maxChars {
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	out := b.String()
	if out == "" {
		return src[:maxChars]
	}
	return out
}

// isTrivial implements the §4.4 triviality gate: the LLM is skipped when
// any condition holds.
func isTrivial(before, after model.CodeModel, beforeSrc, afterSrc []byte) bool {
	beforeLines := countLines(beforeSrc)
	afterLines := countLines(afterSrc)

	if beforeLines <= 5 && afterLines <= 5 {
		return true
	}

	linesChanged, maxLines := lineChangeStats(beforeSrc, afterSrc)
	if linesChanged <= 2 && maxLines <= 10 {
		return true
	}

	if normalizeForComparison(string(beforeSrc)) == normalizeForComparison(string(afterSrc)) {
		return true
	}

	if onlyLiteralValueChanges(beforeSrc, afterSrc) {
		return true
	}

	if combinedComplexity(before, after) < 3 {
		return true
	}

	return false
}

func countLines(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	return strings.Count(string(src), "\n") + 1
}

// lineChangeStats returns the number of differing lines and the larger of
// the two line counts, a cheap proxy for "lines changed" that avoids a full
// diff for the triviality gate.
func lineChangeStats(beforeSrc, afterSrc []byte) (changed, maxLines int) {
	beforeLines := strings.Split(string(beforeSrc), "\n")
	afterLines := strings.Split(string(afterSrc), "\n")
	maxLines = len(beforeLines)
	if len(afterLines) > maxLines {
		maxLines = len(afterLines)
	}
	limit := len(beforeLines)
	if len(afterLines) < limit {
		limit = len(afterLines)
	}
	for i := 0; i < limit; i++ {
		if beforeLines[i] != afterLines[i] {
			changed++
		}
	}
	changed += maxLines - limit
	return changed, maxLines
}

// normalizeForComparison trims each line, drops blank lines and lines that
// start with '#', and joins the rest, for the "normalized before == after"
// triviality condition. Comments after code and whitespace inside a line
// are kept.
func normalizeForComparison(src string) string {
	var b strings.Builder
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if idx := strings.Index(line, "#"); idx == 0 {
			continue
		}
		if line == "" {
			continue
		}
		b.WriteString(line)
	}
	return b.String()
}

// onlyLiteralValueChanges reports whether every differing line differs only
// in a numeric or string literal token, keeping identifiers and structure
// identical.
func onlyLiteralValueChanges(beforeSrc, afterSrc []byte) bool {
	beforeLines := strings.Split(string(beforeSrc), "\n")
	afterLines := strings.Split(string(afterSrc), "\n")
	if len(beforeLines) != len(afterLines) {
		return false
	}
	sawDiff := false
	for i := range beforeLines {
		if beforeLines[i] == afterLines[i] {
			continue
		}
		sawDiff = true
		if !differsOnlyInLiteral(beforeLines[i], afterLines[i]) {
			return false
		}
	}
	return sawDiff
}

// differsOnlyInLiteral strips digits and quoted-string contents from both
// lines and checks whether what remains is identical.
func differsOnlyInLiteral(a, b string) bool {
	return stripLiterals(a) == stripLiterals(b)
}

func stripLiterals(s string) string {
	var b strings.Builder
	inString := false
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if c == quote {
				inString = false
			}
			continue
		}
		if c == '"' || c == '\'' {
			inString = true
			quote = c
			b.WriteByte('#')
			continue
		}
		if c >= '0' && c <= '9' {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// combinedComplexity is the structural weight of both models together: one
// per function, class and import, one per function decorator, and one per
// function for each of try/for/while/with that its body contains. A
// construct used several times in one function counts once, and class
// decorators are not counted.
func combinedComplexity(before, after model.CodeModel) int {
	return structuralWeight(before) + structuralWeight(after)
}

func structuralWeight(m model.CodeModel) int {
	w := len(m.Functions) + len(m.Classes) + len(m.Module.Imports)
	for _, fn := range m.Functions {
		if _, ok := fn.ControlFlowFeatures[model.FeatureTry]; ok {
			w++
		}
		if _, ok := fn.ControlFlowFeatures[model.FeatureFor]; ok {
			w++
		}
		if _, ok := fn.ControlFlowFeatures[model.FeatureWhile]; ok {
			w++
		}
		if _, ok := fn.ControlFlowFeatures[model.FeatureWith]; ok {
			w++
		}
		w += len(fn.Decorators)
	}
	return w
}
