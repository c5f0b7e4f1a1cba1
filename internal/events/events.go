// Package events defines the SemanticEvent record shared by every analysis
// layer, the store, and the notes codec (spec §3, §6.2).
package events

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Layer tags which analysis pass produced an event.
type Layer string

const (
	LayerCore Layer = "core"
	Layer5a   Layer = "5a"
	Layer5b   Layer = "5b"
)

// Impact is the optional severity classification on 5b events.
type Impact string

const (
	ImpactLow      Impact = "low"
	ImpactMedium   Impact = "medium"
	ImpactHigh     Impact = "high"
	ImpactCritical Impact = "critical"
)

// Type is a tag drawn from the closed vocabulary in §6.2.
type Type string

// Core (layer "core") event types, §6.2.
const (
	TypeFileAdded                     Type = "file_added"
	TypeFileRemoved                   Type = "file_removed"
	TypeFileRenamed                   Type = "file_renamed"
	TypeNodeAdded                     Type = "node_added"
	TypeNodeRemoved                   Type = "node_removed"
	TypeSignatureChanged              Type = "signature_changed"
	TypeDefaultParametersAdded        Type = "default_parameters_added"
	TypeDefaultParametersRemoved      Type = "default_parameters_removed"
	TypeReturnPatternChanged          Type = "return_pattern_changed"
	TypeFunctionMadeAsync             Type = "function_made_async"
	TypeFunctionMadeSync              Type = "function_made_sync"
	TypeFunctionMadeGenerator         Type = "function_made_generator"
	TypeGeneratorMadeFunction         Type = "generator_made_function"
	TypeDecoratorAdded                Type = "decorator_added"
	TypeDecoratorRemoved              Type = "decorator_removed"
	TypeExceptionHandlingAdded        Type = "exception_handling_added"
	TypeExceptionHandlingRemoved      Type = "exception_handling_removed"
	TypeExceptionHandlingChanged      Type = "exception_handling_changed"
	TypeErrorHandlingIntroduced       Type = "error_handling_introduced"
	TypeErrorHandlingRemoved          Type = "error_handling_removed"
	TypeInternalCallAdded             Type = "internal_call_added"
	TypeInternalCallRemoved           Type = "internal_call_removed"
	TypeControlFlowChanged            Type = "control_flow_changed"
	TypeFunctionComplexityChanged     Type = "function_complexity_changed"
	TypeLambdaUsageChanged            Type = "lambda_usage_changed"
	TypeComprehensionUsageChanged     Type = "comprehension_usage_changed"
	TypeYieldPatternChanged           Type = "yield_pattern_changed"
	TypeAssertionUsageChanged         Type = "assertion_usage_changed"
	TypeAssignmentPatternChanged      Type = "assignment_pattern_changed"
	TypeAugmentedAssignmentChanged    Type = "augmented_assignment_changed"
	TypeAttributeAccessChanged        Type = "attribute_access_changed"
	TypeSubscriptAccessChanged        Type = "subscript_access_changed"
	TypeBooleanLiteralUsageChanged    Type = "boolean_literal_usage_changed"
	TypeClassMethodsChanged           Type = "class_methods_changed"
	TypeClassAttributesChanged        Type = "class_attributes_changed"
	TypeInheritanceChanged            Type = "inheritance_changed"
	TypeDependencyAdded               Type = "dependency_added"
	TypeDependencyRemoved             Type = "dependency_removed"
	TypeGlobalScopeChanged            Type = "global_scope_changed"
	TypeNonlocalScopeChanged          Type = "nonlocal_scope_changed"
	TypeFunctionalProgrammingAdopted  Type = "functional_programming_adopted"
	TypeFunctionalProgrammingChanged  Type = "functional_programming_changed"
	TypeFunctionalProgrammingRemoved  Type = "functional_programming_removed"
	TypeAnalysisPartialFailure        Type = "analysis_partial_failure"
)

// 5a (layer "5a") heuristic pattern event types, §4.3/§6.2.
const (
	TypeLoopToComprehension          Type = "loop_to_comprehension"
	TypeConditionalToBuiltin         Type = "conditional_to_builtin"
	TypeAlgorithmOptimized           Type = "algorithm_optimized"
	TypeErrorHandlingPatternImproved Type = "error_handling_pattern_improved"
	TypeDesignPatternApplied         Type = "design_pattern_applied"
	TypeMagicNumbersToConstants      Type = "magic_numbers_to_constants"
	TypeComplexExpressionSimplified  Type = "complex_expression_simplified"
)

// 5b (layer "5b") abstract-change event types, §4.4/§6.2.
const (
	TypeAbstractAlgorithmOptimization      Type = "abstract_algorithm_optimization"
	TypeAbstractDesignPattern              Type = "abstract_design_pattern"
	TypeAbstractReadabilityImprovement     Type = "abstract_readability_improvement"
	TypeAbstractArchitectureChange         Type = "abstract_architecture_change"
	TypeAbstractAbstractionImprovement     Type = "abstract_abstraction_improvement"
	TypeAbstractPerformanceOptimization    Type = "abstract_performance_optimization"
	TypeAbstractMaintainabilityImprovement Type = "abstract_maintainability_improvement"
	TypeAbstractErrorStrategyChange        Type = "abstract_error_strategy_change"
)

// AbstractType maps an allowed 5b change_type (from the LLM's JSON response)
// to its event Type, per §4.4's prompt contract.
func AbstractType(changeType string) Type {
	return Type("abstract_" + changeType)
}

// Event is a single SemanticEvent as described in spec §3.
type Event struct {
	EventID           string  `json:"event_id"`
	RepositoryID      string  `json:"-"`
	CommitHash        string  `json:"-"`
	Branch            string  `json:"branch"`
	Author            string  `json:"author"`
	Timestamp         int64   `json:"timestamp"`
	EventType         Type    `json:"event_type"`
	NodeID            string  `json:"node_id"`
	Location          string  `json:"location"`
	Details           string  `json:"details"`
	Layer             Layer   `json:"layer"`
	LayerDescription  string  `json:"layer_description"`
	Confidence        *float64 `json:"confidence"`
	Reasoning         *string `json:"reasoning"`
	Impact            *Impact `json:"impact"`
	CreatedAt         string  `json:"-"`
	NotesSynced       bool    `json:"-"`

	// MergeParentIndex is set only when a merge commit was analyzed against
	// its second parent in addition to the default first-parent diff (spec
	// §4.6: "may optionally also diff against the second parent and tag
	// events with merge_parent_index").
	MergeParentIndex *int `json:"merge_parent_index,omitempty"`

	// ordinal disambiguates multiple identical (type,node,location,details)
	// candidates within the same commit before dedup collapses them; it is
	// folded into the event id derivation (§4.5) and never serialized.
	ordinal int
}

// LayerDescriptionFor returns the human label for a layer, used to populate
// Event.LayerDescription when constructing events.
func LayerDescriptionFor(l Layer) string {
	switch l {
	case LayerCore:
		return "Structural/Syntactic Analysis"
	case Layer5a:
		return "Heuristic Pattern Detection"
	case Layer5b:
		return "AI-Powered Abstract Analysis"
	default:
		return ""
	}
}

// DeriveID computes the deterministic event id of §4.5:
// sha256(commit_hash || layer || event_type || node_id || location || ordinal)[0..16].
func DeriveID(commitHash string, layer Layer, eventType Type, nodeID, location string, ordinal int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%d", commitHash, layer, eventType, nodeID, location, ordinal)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:16]
}

// WithOrdinal returns a copy of e with ordinal set and EventID recomputed.
// Callers use this to disambiguate duplicate (type, node, location) events
// emitted for the same commit before final id assignment.
func (e Event) WithOrdinal(ordinal int) Event {
	e.ordinal = ordinal
	e.EventID = DeriveID(e.CommitHash, e.Layer, e.EventType, e.NodeID, e.Location, ordinal)
	return e
}

// Ordinal exposes the event's disambiguation ordinal.
func (e Event) Ordinal() int { return e.ordinal }

// DedupKey is the key used by the orchestrator (§4.5 step 7) and the notes
// merge (§4.8) to recognize "the same event" regardless of id.
type DedupKey struct {
	EventType Type
	NodeID    string
	Location  string
	Details   string
}

// Key returns e's dedup key.
func (e Event) Key() DedupKey {
	return DedupKey{EventType: e.EventType, NodeID: e.NodeID, Location: e.Location, Details: e.Details}
}

// ConfidenceOf returns e's confidence, or -1 if e is a deterministic
// (confidence == nil) event, for use when comparing "highest confidence wins".
func (e Event) ConfidenceOf() float64 {
	if e.Confidence == nil {
		return -1
	}
	return *e.Confidence
}
