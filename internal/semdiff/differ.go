// Package semdiff implements the layer 1-4 structural differ (spec §4.2,
// C2): deterministic comparison of two model.CodeModel values for the same
// file, emitting the closed ~40-tag event vocabulary of §6.2.
//
// Every event produced here has Layer == events.LayerCore and Confidence ==
// nil; event ids are assigned later by the analysis orchestrator (C5).
package semdiff

import (
	"fmt"
	"sort"

	"github.com/svcs-project/svcs/internal/events"
	"github.com/svcs-project/svcs/internal/model"
)

// complexityAbsoluteThreshold and complexityRelativeThreshold implement the
// fixed default of §4.2: "absolute change >= 2 or >= 20% relative".
const (
	complexityAbsoluteThreshold = 2
	complexityRelativeThreshold = 0.20
)

// Diff compares before and after for one file and returns the deterministic
// core events (spec §4.2's algorithm, steps 1-5). It never panics: a bug in
// one comparator is caught and turned into analysis_partial_failure (spec
// §4.2 "Failure"), and the rest of the comparisons still run.
func Diff(path string, before, after model.CodeModel) (out []events.Event) {
	out = append(out, diffFunctions(path, before, after)...)
	out = append(out, diffClasses(path, before, after)...)
	out = append(out, diffModule(path, before, after)...)
	out = append(out, diffFunctionalProgramming(path, before, after)...)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].NodeID != out[j].NodeID {
			return out[i].NodeID < out[j].NodeID
		}
		return out[i].EventType < out[j].EventType
	})
	return out
}

// safely runs fn and converts any panic into an analysis_partial_failure
// event for nodeID, per §4.2's "Failure" clause.
func safely(path, nodeID string, fn func() []events.Event) (result []events.Event) {
	defer func() {
		if r := recover(); r != nil {
			result = []events.Event{coreEvent(path, nodeID, events.TypeAnalysisPartialFailure, fmt.Sprintf("comparator panic: %v", r))}
		}
	}()
	return fn()
}

func coreEvent(location, nodeID string, eventType events.Type, details string) events.Event {
	return events.Event{
		EventType:        eventType,
		NodeID:           nodeID,
		Location:         location,
		Details:          details,
		Layer:            events.LayerCore,
		LayerDescription: events.LayerDescriptionFor(events.LayerCore),
	}
}

func diffFunctions(path string, before, after model.CodeModel) []events.Event {
	var out []events.Event
	for id, fn := range before.Functions {
		if _, ok := after.Functions[id]; !ok {
			out = append(out, coreEvent(path, id, events.TypeNodeRemoved, fmt.Sprintf("function %s removed", fn.QualifiedName)))
		}
	}
	for id, fn := range after.Functions {
		beforeFn, ok := before.Functions[id]
		if !ok {
			out = append(out, coreEvent(path, id, events.TypeNodeAdded, fmt.Sprintf("function %s added", fn.QualifiedName)))
			continue
		}
		out = append(out, safely(path, id, func() []events.Event {
			return compareFunctions(path, id, beforeFn, fn)
		})...)
	}
	return out
}

func compareFunctions(path, id string, before, after model.Function) []events.Event {
	if before.BodyDigest == after.BodyDigest && sameSignature(before, after) && sameDecorators(before, after) && before.IsAsync == after.IsAsync {
		return nil // whitespace/comment-only edit: spec §8 boundary behavior
	}

	var out []events.Event

	sigChanged, sigDetail := diffSignature(before, after)
	if sigChanged {
		out = append(out, coreEvent(path, id, events.TypeSignatureChanged, sigDetail))
	}

	addedDefaults, removedDefaults := diffDefaultParams(before, after)
	if len(addedDefaults) > 0 {
		out = append(out, coreEvent(path, id, events.TypeDefaultParametersAdded, fmt.Sprintf("added defaults: %v", addedDefaults)))
	}
	if len(removedDefaults) > 0 {
		out = append(out, coreEvent(path, id, events.TypeDefaultParametersRemoved, fmt.Sprintf("removed defaults: %v", removedDefaults)))
	}

	if before.ReturnAnnotationText != after.ReturnAnnotationText || before.BodyDigest != after.BodyDigest {
		if returnPatternChanged(before, after) {
			out = append(out, coreEvent(path, id, events.TypeReturnPatternChanged, "return pattern changed"))
		}
	}

	if !before.IsAsync && after.IsAsync {
		out = append(out, coreEvent(path, id, events.TypeFunctionMadeAsync, "function made async"))
	} else if before.IsAsync && !after.IsAsync {
		out = append(out, coreEvent(path, id, events.TypeFunctionMadeSync, "function made sync"))
	}

	if !before.Yields && after.Yields {
		out = append(out, coreEvent(path, id, events.TypeFunctionMadeGenerator, "function made generator"))
	} else if before.Yields && !after.Yields {
		out = append(out, coreEvent(path, id, events.TypeGeneratorMadeFunction, "generator made function"))
	}

	addedDec, removedDec := diffStringSets(before.Decorators, after.Decorators)
	if len(addedDec) > 0 {
		out = append(out, coreEvent(path, id, events.TypeDecoratorAdded, fmt.Sprintf("decorators added: %v", addedDec)))
	}
	if len(removedDec) > 0 {
		out = append(out, coreEvent(path, id, events.TypeDecoratorRemoved, fmt.Sprintf("decorators removed: %v", removedDec)))
	}

	addedRaises, removedRaises := diffStringSetMaps(before.Raises, after.Raises)
	if len(addedRaises) > 0 && len(removedRaises) > 0 {
		out = append(out, coreEvent(path, id, events.TypeExceptionHandlingChanged, fmt.Sprintf("exception types changed: +%v -%v", addedRaises, removedRaises)))
	} else if len(addedRaises) > 0 {
		out = append(out, coreEvent(path, id, events.TypeExceptionHandlingAdded, fmt.Sprintf("exception types added: %v", addedRaises)))
	} else if len(removedRaises) > 0 {
		out = append(out, coreEvent(path, id, events.TypeExceptionHandlingRemoved, fmt.Sprintf("exception types removed: %v", removedRaises)))
	}

	_, hadTry := before.ControlFlowFeatures[model.FeatureTry]
	_, hasTry := after.ControlFlowFeatures[model.FeatureTry]
	if !hadTry && hasTry {
		out = append(out, coreEvent(path, id, events.TypeErrorHandlingIntroduced, "try/except introduced"))
	} else if hadTry && !hasTry {
		out = append(out, coreEvent(path, id, events.TypeErrorHandlingRemoved, "try/except removed"))
	}

	addedCalls, removedCalls := diffStringSetMaps(before.Calls, after.Calls)
	if len(addedCalls) > 0 {
		out = append(out, coreEvent(path, id, events.TypeInternalCallAdded, fmt.Sprintf("calls added: %v", addedCalls)))
	}
	if len(removedCalls) > 0 {
		out = append(out, coreEvent(path, id, events.TypeInternalCallRemoved, fmt.Sprintf("calls removed: %v", removedCalls)))
	}

	if cfDetail, changed := diffControlFlow(before, after); changed {
		out = append(out, coreEvent(path, id, events.TypeControlFlowChanged, cfDetail))
	}

	if detail, changed := diffComplexity(before, after); changed {
		out = append(out, coreEvent(path, id, events.TypeFunctionComplexityChanged, detail))
	}

	if before.LambdaCount != after.LambdaCount {
		out = append(out, coreEvent(path, id, events.TypeLambdaUsageChanged, fmt.Sprintf("lambda count %d -> %d", before.LambdaCount, after.LambdaCount)))
	}
	if before.ComprehensionCount != after.ComprehensionCount {
		out = append(out, coreEvent(path, id, events.TypeComprehensionUsageChanged, fmt.Sprintf("comprehension count %d -> %d", before.ComprehensionCount, after.ComprehensionCount)))
	}
	if before.Yields != after.Yields {
		out = append(out, coreEvent(path, id, events.TypeYieldPatternChanged, "yield usage changed"))
	}
	if before.AssertionCount != after.AssertionCount {
		out = append(out, coreEvent(path, id, events.TypeAssertionUsageChanged, fmt.Sprintf("assertion count %d -> %d", before.AssertionCount, after.AssertionCount)))
	}
	if before.DestructuringAssignments != after.DestructuringAssignments {
		out = append(out, coreEvent(path, id, events.TypeAssignmentPatternChanged, "destructuring assignment usage changed"))
	}
	if before.AugmentedAssignments != after.AugmentedAssignments {
		out = append(out, coreEvent(path, id, events.TypeAugmentedAssignmentChanged, fmt.Sprintf("augmented assignment count %d -> %d", before.AugmentedAssignments, after.AugmentedAssignments)))
	}
	if before.AttributeAccesses != after.AttributeAccesses {
		out = append(out, coreEvent(path, id, events.TypeAttributeAccessChanged, fmt.Sprintf("attribute access count %d -> %d", before.AttributeAccesses, after.AttributeAccesses)))
	}
	if before.SubscriptAccesses != after.SubscriptAccesses {
		out = append(out, coreEvent(path, id, events.TypeSubscriptAccessChanged, fmt.Sprintf("subscript access count %d -> %d", before.SubscriptAccesses, after.SubscriptAccesses)))
	}
	if before.BooleanLiteralUses != after.BooleanLiteralUses {
		out = append(out, coreEvent(path, id, events.TypeBooleanLiteralUsageChanged, fmt.Sprintf("boolean literal count %d -> %d", before.BooleanLiteralUses, after.BooleanLiteralUses)))
	}
	if before.GlobalDeclarations != after.GlobalDeclarations || before.NonlocalDeclarations != after.NonlocalDeclarations {
		out = append(out, coreEvent(path, id, events.TypeNonlocalScopeChanged, fmt.Sprintf("global %d -> %d, nonlocal %d -> %d", before.GlobalDeclarations, after.GlobalDeclarations, before.NonlocalDeclarations, after.NonlocalDeclarations)))
	}

	return out
}

func sameSignature(a, b model.Function) bool {
	changed, _ := diffSignature(a, b)
	return !changed
}

func sameDecorators(a, b model.Function) bool {
	added, removed := diffStringSets(a.Decorators, b.Decorators)
	return len(added) == 0 && len(removed) == 0
}

func diffSignature(before, after model.Function) (bool, string) {
	if len(before.Parameters) != len(after.Parameters) {
		return true, fmt.Sprintf("parameter count %d -> %d", len(before.Parameters), len(after.Parameters))
	}
	for i := range before.Parameters {
		b, a := before.Parameters[i], after.Parameters[i]
		if b.Name != a.Name || b.DefaultPresent != a.DefaultPresent || b.TypeAnnotationPresent != a.TypeAnnotationPresent || b.AnnotationText != a.AnnotationText {
			return true, fmt.Sprintf("parameter %d changed: %+v -> %+v", i, b, a)
		}
	}
	if before.ReturnAnnotationText != after.ReturnAnnotationText {
		return true, fmt.Sprintf("return annotation %q -> %q", before.ReturnAnnotationText, after.ReturnAnnotationText)
	}
	return false, ""
}

func diffDefaultParams(before, after model.Function) (added, removed []string) {
	beforeDefaults := map[string]bool{}
	for _, p := range before.Parameters {
		if p.DefaultPresent {
			beforeDefaults[p.Name] = true
		}
	}
	afterDefaults := map[string]bool{}
	for _, p := range after.Parameters {
		if p.DefaultPresent {
			afterDefaults[p.Name] = true
		}
	}
	for name := range afterDefaults {
		if !beforeDefaults[name] {
			added = append(added, name)
		}
	}
	for name := range beforeDefaults {
		if !afterDefaults[name] {
			removed = append(removed, name)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// returnPatternChanged is a coarse structural signal: it fires when the
// control-flow feature set around returns differs (ternary introduced,
// comprehension-based single-expression return, etc.) rather than trying to
// diff return expressions themselves.
func returnPatternChanged(before, after model.Function) bool {
	_, beforeTernary := before.ControlFlowFeatures[model.FeatureTernary]
	_, afterTernary := after.ControlFlowFeatures[model.FeatureTernary]
	_, beforeCompr := before.ControlFlowFeatures[model.FeatureComprehension]
	_, afterCompr := after.ControlFlowFeatures[model.FeatureComprehension]
	return beforeTernary != afterTernary || beforeCompr != afterCompr
}

func diffControlFlow(before, after model.Function) (string, bool) {
	added, removed := diffFeatureSets(before.ControlFlowFeatures, after.ControlFlowFeatures)
	if len(added) == 0 && len(removed) == 0 {
		return "", false
	}
	return fmt.Sprintf("control flow features: +%v -%v", added, removed), true
}

func diffFeatureSets(before, after map[model.ControlFlowFeature]struct{}) (added, removed []model.ControlFlowFeature) {
	for f := range after {
		if _, ok := before[f]; !ok {
			added = append(added, f)
		}
	}
	for f := range before {
		if _, ok := after[f]; !ok {
			removed = append(removed, f)
		}
	}
	return added, removed
}

func diffComplexity(before, after model.Function) (string, bool) {
	delta := after.ComplexityScore - before.ComplexityScore
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	if abs >= complexityAbsoluteThreshold {
		return fmt.Sprintf("complexity %d -> %d", before.ComplexityScore, after.ComplexityScore), true
	}
	if before.ComplexityScore > 0 {
		relative := float64(abs) / float64(before.ComplexityScore)
		if relative >= complexityRelativeThreshold {
			return fmt.Sprintf("complexity %d -> %d (%.0f%% relative change)", before.ComplexityScore, after.ComplexityScore, relative*100), true
		}
	}
	return "", false
}

func diffStringSets(before, after []string) (added, removed []string) {
	beforeSet := toSet(before)
	afterSet := toSet(after)
	for s := range afterSet {
		if !beforeSet[s] {
			added = append(added, s)
		}
	}
	for s := range beforeSet {
		if !afterSet[s] {
			removed = append(removed, s)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}

func diffStringSetMaps(before, after map[string]struct{}) (added, removed []string) {
	for s := range after {
		if _, ok := before[s]; !ok {
			added = append(added, s)
		}
	}
	for s := range before {
		if _, ok := after[s]; !ok {
			removed = append(removed, s)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
