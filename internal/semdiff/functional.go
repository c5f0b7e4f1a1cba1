package semdiff

import (
	"fmt"

	"github.com/svcs-project/svcs/internal/events"
	"github.com/svcs-project/svcs/internal/model"
)

// functionalProgrammingThreshold is the minimum population score delta that
// counts as a meaningful shift once some functional usage already exists
// (spec §4.2 step 5: "crosses a threshold").
const functionalProgrammingThreshold = 2

// diffFunctionalProgramming is the cross-cutting detector of §4.2 step 5: it
// sums lambda/comprehension/higher-order-call usage across every function in
// the file and reports adoption, removal, or a material shift in that
// population score. It is intentionally whole-file, not per-function — the
// signal is about idiom shift across the file, not any one function.
func diffFunctionalProgramming(path string, before, after model.CodeModel) []events.Event {
	moduleID := "module:" + path
	beforeScore := functionalScore(before)
	afterScore := functionalScore(after)

	if beforeScore == afterScore {
		return nil
	}

	switch {
	case beforeScore == 0 && afterScore > 0:
		return []events.Event{coreEvent(path, moduleID, events.TypeFunctionalProgrammingAdopted,
			fmt.Sprintf("functional usage score 0 -> %d", afterScore))}
	case beforeScore > 0 && afterScore == 0:
		return []events.Event{coreEvent(path, moduleID, events.TypeFunctionalProgrammingRemoved,
			fmt.Sprintf("functional usage score %d -> 0", beforeScore))}
	default:
		delta := afterScore - beforeScore
		if delta < 0 {
			delta = -delta
		}
		if delta >= functionalProgrammingThreshold {
			return []events.Event{coreEvent(path, moduleID, events.TypeFunctionalProgrammingChanged,
				fmt.Sprintf("functional usage score %d -> %d", beforeScore, afterScore))}
		}
	}
	return nil
}

func functionalScore(m model.CodeModel) int {
	score := 0
	for _, fn := range m.Functions {
		score += fn.LambdaCount + fn.ComprehensionCount + fn.HigherOrderCalls
	}
	return score
}
