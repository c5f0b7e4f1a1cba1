// Package analysis implements the analysis orchestrator (C5, spec §4.5):
// it drives the parser, structural differ, heuristic pattern detector, and
// LLM abstract-change detector for one file and produces the final,
// deduplicated, tagged event set.
package analysis

import (
	"context"
	"sort"

	"github.com/svcs-project/svcs/internal/events"
	"github.com/svcs-project/svcs/internal/llmchange"
	"github.com/svcs-project/svcs/internal/parser"
	"github.com/svcs-project/svcs/internal/pattern"
	"github.com/svcs-project/svcs/internal/semdiff"
)

// Orchestrator wires C1-C4 together, per file, for the commit processor (C6).
type Orchestrator struct {
	registry *parser.Registry
	llm      *llmchange.Detector
}

// New constructs an Orchestrator. llm may be nil, in which case layer 5b is
// never invoked (equivalent to a Detector with no API key).
func New(registry *parser.Registry, llm *llmchange.Detector) *Orchestrator {
	if registry == nil {
		registry = parser.Default()
	}
	return &Orchestrator{registry: registry, llm: llm}
}

// FileContext is the (file_path, before_bytes, after_bytes) input the
// commit processor assembles for each changed path (spec §4.6).
type FileContext struct {
	Path       string
	BeforeSrc  []byte
	AfterSrc   []byte
	CommitHash string
	Branch     string
	Author     string
	Timestamp  int64
}

// AnalyzeFile runs the full C5 protocol for one file and returns the final
// event set: tagged with layer/event_id/node_id, deduplicated, and ordered
// by (node_id, event_type) ascending.
func (o *Orchestrator) AnalyzeFile(ctx context.Context, fc FileContext) []events.Event {
	_, languageKnown := o.registry.LanguageOf(fc.Path)

	before, _ := o.registry.Parse(fc.Path, fc.BeforeSrc)
	after, _ := o.registry.Parse(fc.Path, fc.AfterSrc)

	var all []events.Event
	all = append(all, semdiff.Diff(fc.Path, before, after)...)

	if languageKnown {
		all = append(all, pattern.Detect(fc.Path, before, after, fc.BeforeSrc, fc.AfterSrc)...)
		if o.llm != nil && o.llm.Enabled() {
			all = append(all, o.llm.Detect(ctx, fc.Path, before, after, fc.BeforeSrc, fc.AfterSrc)...)
		}
	}

	return tagAndDedup(all, fc)
}

// tagAndDedup implements §4.5 steps 6-7: default node_id, stable event_id
// derivation (disambiguated by ordinal within a dedup group), then keep the
// highest-confidence event per (event_type, node_id, location, details).
func tagAndDedup(all []events.Event, fc FileContext) []events.Event {
	moduleID := "module:" + fc.Path

	for i := range all {
		e := &all[i]
		e.CommitHash = fc.CommitHash
		e.Branch = fc.Branch
		e.Author = fc.Author
		e.Timestamp = fc.Timestamp
		if e.NodeID == "" {
			e.NodeID = moduleID
		}
		if e.Location == "" {
			e.Location = fc.Path
		}
	}

	best := make(map[events.DedupKey]events.Event)
	ordinals := make(map[events.DedupKey]int)
	for _, e := range all {
		key := e.Key()
		ordinal := ordinals[key]
		ordinals[key] = ordinal + 1
		e = e.WithOrdinal(ordinal)

		existing, ok := best[key]
		if !ok || e.ConfidenceOf() > existing.ConfidenceOf() {
			best[key] = e
		}
	}

	out := make([]events.Event, 0, len(best))
	for _, e := range best {
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].NodeID != out[j].NodeID {
			return out[i].NodeID < out[j].NodeID
		}
		return out[i].EventType < out[j].EventType
	})
	return out
}
