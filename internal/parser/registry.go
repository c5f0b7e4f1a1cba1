// Package parser implements the language parser adapters of spec §4.1 (C1):
// pluggable, by-extension LanguageAnalyzer implementations that turn source
// bytes into a normalized model.CodeModel.
package parser

import (
	"path/filepath"
	"strings"

	"github.com/svcs-project/svcs/internal/model"
)

// LanguageAnalyzer is the contract every language backend implements. It is
// the Go analogue of the source's duck-typed analyzer registry (spec §9):
// dispatch is by file extension, resolved once at registry construction,
// never by runtime type inspection.
type LanguageAnalyzer interface {
	// Parse extracts a CodeModel from source content. It must never panic;
	// on a syntax error it returns a partial model with Partial set, per
	// §4.1's error-condition contract.
	Parse(path string, content []byte) (model.CodeModel, error)

	// SupportedExtensions lists the file extensions this analyzer handles,
	// each with a leading dot. The first is the canonical extension.
	SupportedExtensions() []string

	// Language returns the short language tag used in log messages.
	Language() string
}

// Registry dispatches a file path to the LanguageAnalyzer that owns its
// extension.
type Registry struct {
	byExt map[string]LanguageAnalyzer
}

// NewRegistry builds a Registry from a set of analyzers, indexing each by
// every extension it declares. A later analyzer overrides an earlier one
// that claims the same extension.
func NewRegistry(analyzers ...LanguageAnalyzer) *Registry {
	r := &Registry{byExt: make(map[string]LanguageAnalyzer)}
	for _, a := range analyzers {
		for _, ext := range a.SupportedExtensions() {
			r.byExt[strings.ToLower(ext)] = a
		}
	}
	return r
}

// Default returns the registry wired with every adapter SVCS ships:
// Python (the strong, Tree-sitter-backed backend) plus lightweight
// regex-based JavaScript and PHP adapters (spec §4.1's "Required languages").
func Default() *Registry {
	return NewRegistry(
		NewPythonAnalyzer(),
		NewJavaScriptAnalyzer(),
		NewPHPAnalyzer(),
	)
}

// LanguageOf resolves the analyzer for a path's extension. It returns
// (nil, false) when the extension is unrecognized, in which case the
// orchestrator must fall back to pure structural add/remove/rename signals
// (spec §4.1, §4.5 step 1).
func (r *Registry) LanguageOf(path string) (LanguageAnalyzer, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	a, ok := r.byExt[ext]
	return a, ok
}

// Parse resolves path's analyzer and parses content, or returns an empty,
// non-partial CodeModel for an unrecognized extension.
func (r *Registry) Parse(path string, content []byte) (model.CodeModel, error) {
	a, ok := r.LanguageOf(path)
	if !ok {
		m := model.New(path, "")
		m.Empty = true
		return m, nil
	}
	return a.Parse(path, content)
}
