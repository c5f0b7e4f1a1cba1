package semdiff

import (
	"fmt"
	"sort"

	"github.com/svcs-project/svcs/internal/events"
	"github.com/svcs-project/svcs/internal/model"
)

func diffClasses(path string, before, after model.CodeModel) []events.Event {
	var out []events.Event
	for id, cls := range before.Classes {
		if _, ok := after.Classes[id]; !ok {
			out = append(out, coreEvent(path, id, events.TypeNodeRemoved, fmt.Sprintf("class %s removed", cls.QualifiedName)))
		}
	}
	for id, cls := range after.Classes {
		beforeCls, ok := before.Classes[id]
		if !ok {
			out = append(out, coreEvent(path, id, events.TypeNodeAdded, fmt.Sprintf("class %s added", cls.QualifiedName)))
			continue
		}
		out = append(out, safely(path, id, func() []events.Event {
			return compareClasses(path, id, beforeCls, cls)
		})...)
	}
	return out
}

func compareClasses(path, id string, before, after model.Class) []events.Event {
	var out []events.Event

	addedMethods, removedMethods := diffStringSetMaps(before.Methods, after.Methods)
	if len(addedMethods) > 0 || len(removedMethods) > 0 {
		out = append(out, coreEvent(path, id, events.TypeClassMethodsChanged, fmt.Sprintf("methods: +%v -%v", addedMethods, removedMethods)))
	}

	addedAttrs, removedAttrs, changedAttrs := diffAttributes(before.Attributes, after.Attributes)
	if len(addedAttrs) > 0 || len(removedAttrs) > 0 || len(changedAttrs) > 0 {
		out = append(out, coreEvent(path, id, events.TypeClassAttributesChanged, fmt.Sprintf("attributes: +%v -%v changed:%v", addedAttrs, removedAttrs, changedAttrs)))
	}

	addedBases, removedBases := diffStringSets(before.Bases, after.Bases)
	if len(addedBases) > 0 || len(removedBases) > 0 {
		out = append(out, coreEvent(path, id, events.TypeInheritanceChanged, fmt.Sprintf("bases: +%v -%v", addedBases, removedBases)))
	}

	addedDec, removedDec := diffStringSets(before.Decorators, after.Decorators)
	if len(addedDec) > 0 {
		out = append(out, coreEvent(path, id, events.TypeDecoratorAdded, fmt.Sprintf("class decorators added: %v", addedDec)))
	}
	if len(removedDec) > 0 {
		out = append(out, coreEvent(path, id, events.TypeDecoratorRemoved, fmt.Sprintf("class decorators removed: %v", removedDec)))
	}

	return out
}

func diffAttributes(before, after map[string]string) (added, removed, changed []string) {
	for name, typ := range after {
		beforeTyp, ok := before[name]
		if !ok {
			added = append(added, name)
			continue
		}
		if beforeTyp != typ {
			changed = append(changed, name)
		}
	}
	for name := range before {
		if _, ok := after[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(changed)
	return added, removed, changed
}
