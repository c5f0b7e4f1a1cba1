package semdiff

import (
	"fmt"
	"sort"

	"github.com/svcs-project/svcs/internal/events"
	"github.com/svcs-project/svcs/internal/model"
)

// diffModule implements the module-level comparator of §4.2 step 4:
// dependency (import) delta and top-level/global scope shifts. file_added
// and file_removed are emitted by the commit processor (C6), which is the
// only layer that knows whether a file is wholly new or deleted.
func diffModule(path string, before, after model.CodeModel) []events.Event {
	moduleID := "module:" + path
	return safely(path, moduleID, func() []events.Event {
		var out []events.Event

		addedImports, removedImports := diffImports(before.Module.Imports, after.Module.Imports)
		for _, imp := range addedImports {
			out = append(out, coreEvent(path, moduleID, events.TypeDependencyAdded, fmt.Sprintf("import added: %s", imp)))
		}
		for _, imp := range removedImports {
			out = append(out, coreEvent(path, moduleID, events.TypeDependencyRemoved, fmt.Sprintf("import removed: %s", imp)))
		}

		addedTop, removedTop := diffStringSets(before.Module.TopLevelAssignments, after.Module.TopLevelAssignments)
		if len(addedTop) > 0 || len(removedTop) > 0 {
			out = append(out, coreEvent(path, moduleID, events.TypeGlobalScopeChanged, fmt.Sprintf("top-level assignments: +%v -%v", addedTop, removedTop)))
		}

		return out
	})
}

// diffImports compares import sets by module path (the stable identity of an
// import regardless of which symbols are pulled from it or how it's aliased).
func diffImports(before, after []model.Import) (added, removed []string) {
	beforeSet := map[string]bool{}
	for _, imp := range before {
		beforeSet[imp.ModulePath] = true
	}
	afterSet := map[string]bool{}
	for _, imp := range after {
		afterSet[imp.ModulePath] = true
	}
	for path := range afterSet {
		if !beforeSet[path] {
			added = append(added, path)
		}
	}
	for path := range beforeSet {
		if !afterSet[path] {
			removed = append(removed, path)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
