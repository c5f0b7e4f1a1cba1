// Package pattern implements the layer 5a heuristic pattern detector (C3,
// spec §4.3): cross-statement idiom-shift detection that needs no AI,
// running on the same before/after CodeModel pairs C2 already compared.
package pattern

import (
	"fmt"
	"strings"

	diffmatchpatch "github.com/sergi/go-diff/diffmatchpatch"

	"github.com/svcs-project/svcs/internal/events"
	"github.com/svcs-project/svcs/internal/model"
)

// minConfidence is the floor below which a detected pattern is dropped
// (spec §4.3: "Events below confidence 0.6 are dropped").
const minConfidence = 0.6

// Detect runs every heuristic detector over each function present in both
// before and after, returning layer-5a events with confidence in [0.6, 0.95].
// beforeSrc/afterSrc are the full file contents, used only to cite
// before/after snippets in a matched event's details text.
func Detect(path string, before, after model.CodeModel, beforeSrc, afterSrc []byte) []events.Event {
	var out []events.Event
	for id, afterFn := range after.Functions {
		beforeFn, ok := before.Functions[id]
		if !ok {
			continue // added functions have no "before" to compare a pattern against
		}
		snippet := diffSnippet(
			extractLines(beforeSrc, beforeFn.StartLine, beforeFn.EndLine),
			extractLines(afterSrc, afterFn.StartLine, afterFn.EndLine),
		)
		out = append(out, detectFunction(path, id, beforeFn, afterFn, snippet)...)
	}
	return out
}

// extractLines slices a 1-indexed, inclusive [start,end] line range out of
// src. Out-of-range or zero bounds return "".
func extractLines(src []byte, start, end int) string {
	if start <= 0 || end < start {
		return ""
	}
	lines := strings.Split(string(src), "\n")
	if start > len(lines) {
		return ""
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start-1:end], "\n")
}

// diffSnippet cites the first changed fragment between before and after
// using sergi/go-diff, truncated to keep event details compact.
func diffSnippet(before, after string) string {
	if before == "" && after == "" {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			continue
		}
		frag := strings.TrimSpace(d.Text)
		if frag == "" {
			continue
		}
		if len(frag) > 80 {
			frag = frag[:80] + "..."
		}
		verb := "added"
		if d.Type == diffmatchpatch.DiffDelete {
			verb = "removed"
		}
		return fmt.Sprintf(" (%s: %q)", verb, frag)
	}
	return ""
}

func detectFunction(path, id string, before, after model.Function, snippet string) []events.Event {
	var out []events.Event
	for _, detector := range []func(string, string, model.Function, model.Function, string) (events.Event, bool){
		loopToComprehension,
		conditionalToBuiltin,
		algorithmOptimized,
		errorHandlingPatternImproved,
		designPatternApplied,
		magicNumbersToConstants,
		complexExpressionSimplified,
	} {
		if ev, ok := detector(path, id, before, after, snippet); ok && ev.ConfidenceOf() >= minConfidence {
			out = append(out, ev)
		}
	}
	return out
}

func patternEvent(path, nodeID string, eventType events.Type, confidence float64, details string) events.Event {
	c := confidence
	return events.Event{
		EventType:        eventType,
		NodeID:           nodeID,
		Location:         path,
		Details:          details,
		Layer:            events.Layer5a,
		LayerDescription: events.LayerDescriptionFor(events.Layer5a),
		Confidence:       &c,
	}
}

// loopToComprehension: a for-loop with append/assignment disappears and a
// comprehension appears in the same function (§4.3).
func loopToComprehension(path, id string, before, after model.Function, snippet string) (events.Event, bool) {
	_, hadFor := before.ControlFlowFeatures[model.FeatureFor]
	_, hasForAfter := after.ControlFlowFeatures[model.FeatureFor]
	_, hadCompr := before.ControlFlowFeatures[model.FeatureComprehension]
	_, hasComprAfter := after.ControlFlowFeatures[model.FeatureComprehension]

	if hadFor && !hasForAfter && !hadCompr && hasComprAfter && before.InPlaceMutationCalls > 0 {
		return patternEvent(path, id, events.TypeLoopToComprehension, 0.85,
			"explicit for-loop with accumulation replaced by a comprehension"+snippet), true
	}
	return events.Event{}, false
}

var builtinReductions = map[string]bool{
	"abs": true, "max": true, "min": true, "sorted": true,
	"sum": true, "any": true, "all": true,
}

// conditionalToBuiltin: an if/else pattern collapses into a call to a
// built-in reduction (§4.3).
func conditionalToBuiltin(path, id string, before, after model.Function, snippet string) (events.Event, bool) {
	_, hadIf := before.ControlFlowFeatures[model.FeatureIf]
	_, hasIfAfter := after.ControlFlowFeatures[model.FeatureIf]
	if !hadIf || hasIfAfter {
		return events.Event{}, false
	}
	for name := range after.Calls {
		if builtinReductions[name] {
			if _, already := before.Calls[name]; already {
				continue
			}
			return patternEvent(path, id, events.TypeConditionalToBuiltin, 0.8,
				fmt.Sprintf("if/else branch collapsed into %s(...)%s", name, snippet)), true
		}
	}
	return events.Event{}, false
}

// algorithmOptimized: nested-loop count decreases while set/dict
// construction appears, or in-place mutation is replaced by an immutable
// alternative (§4.3).
func algorithmOptimized(path, id string, before, after model.Function, snippet string) (events.Event, bool) {
	if before.MaxLoopNestingDepth > after.MaxLoopNestingDepth && after.SetOrDictConstructions > before.SetOrDictConstructions {
		return patternEvent(path, id, events.TypeAlgorithmOptimized, 0.75,
			fmt.Sprintf("loop nesting %d -> %d alongside new set/dict construction", before.MaxLoopNestingDepth, after.MaxLoopNestingDepth)), true
	}
	if before.InPlaceMutationCalls > after.InPlaceMutationCalls && after.ImmutableRebindingCount > before.ImmutableRebindingCount {
		return patternEvent(path, id, events.TypeAlgorithmOptimized, 0.7,
			"in-place mutation replaced by immutable rebinding"), true
	}
	return events.Event{}, false
}

var genericExceptionNames = map[string]bool{"Exception": true, "BaseException": true, "": true}

// errorHandlingPatternImproved: a generic catch becomes typed, or manual
// resource management becomes scoped acquisition via `with` (§4.3).
func errorHandlingPatternImproved(path, id string, before, after model.Function, snippet string) (events.Event, bool) {
	hadGeneric := false
	for name := range before.Raises {
		if genericExceptionNames[name] {
			hadGeneric = true
		}
	}
	hasSpecificAfter := false
	for name := range after.Raises {
		if !genericExceptionNames[name] {
			hasSpecificAfter = true
		}
	}
	if hadGeneric && hasSpecificAfter && len(after.Raises) > 0 {
		return patternEvent(path, id, events.TypeErrorHandlingPatternImproved, 0.7,
			"generic exception catch narrowed to a specific type"+snippet), true
	}

	_, hadWith := before.ControlFlowFeatures[model.FeatureWith]
	_, hasWithAfter := after.ControlFlowFeatures[model.FeatureWith]
	if !hadWith && hasWithAfter {
		return patternEvent(path, id, events.TypeErrorHandlingPatternImproved, 0.65,
			"manual resource management replaced by a scoped `with` block"), true
	}
	return events.Event{}, false
}

var wrappingDecorators = map[string]bool{
	"property": true, "cached_property": true, "staticmethod": true,
	"classmethod": true, "contextmanager": true, "wraps": true,
}

// designPatternApplied: decorator-style wrapping or a property accessor is
// introduced (§4.3).
func designPatternApplied(path, id string, before, after model.Function, snippet string) (events.Event, bool) {
	beforeSet := toSet(before.Decorators)
	for _, dec := range after.Decorators {
		base := dec
		if idx := strings.IndexByte(base, '('); idx >= 0 {
			base = base[:idx]
		}
		if beforeSet[dec] {
			continue
		}
		if wrappingDecorators[base] {
			return patternEvent(path, id, events.TypeDesignPatternApplied, 0.75,
				fmt.Sprintf("decorator @%s introduces an accessor/wrapping pattern", base)), true
		}
	}
	return events.Event{}, false
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}

// magicNumbersToConstants: numeric literals drop while references to
// SCREAMING_SNAKE_CASE identifiers increase (§4.3).
func magicNumbersToConstants(path, id string, before, after model.Function, snippet string) (events.Event, bool) {
	if before.NumericLiteralCount > after.NumericLiteralCount && after.UpperCaseIdentifierRefs > before.UpperCaseIdentifierRefs {
		return patternEvent(path, id, events.TypeMagicNumbersToConstants, 0.7,
			fmt.Sprintf("numeric literals %d -> %d replaced by named constants%s", before.NumericLiteralCount, after.NumericLiteralCount, snippet)), true
	}
	return events.Event{}, false
}

// complexExpressionSimplified: complexity drops materially while the
// function's control-flow feature set is unchanged, i.e. the simplification
// is expression-level rather than structural (§4.3).
func complexExpressionSimplified(path, id string, before, after model.Function, snippet string) (events.Event, bool) {
	delta := before.ComplexityScore - after.ComplexityScore
	if delta < 2 {
		return events.Event{}, false
	}
	if !sameFeatureSet(before.ControlFlowFeatures, after.ControlFlowFeatures) {
		return events.Event{}, false
	}
	return patternEvent(path, id, events.TypeComplexExpressionSimplified, 0.65,
		fmt.Sprintf("complexity %d -> %d with unchanged control flow%s", before.ComplexityScore, after.ComplexityScore, snippet)), true
}

func sameFeatureSet(a, b map[model.ControlFlowFeature]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for f := range a {
		if _, ok := b[f]; !ok {
			return false
		}
	}
	return true
}
