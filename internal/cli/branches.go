package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/svcs-project/svcs/internal/events"
	"github.com/svcs-project/svcs/internal/store"
)

var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "Branch-level semantic reports",
}

var compareFormat string

var branchesCompareCmd = &cobra.Command{
	Use:   "compare <branch-a> <branch-b>",
	Short: "Compare two branches' semantic event history",
	Long: `Groups every event by (node_id, event_type) and partitions the
result into events seen only on <branch-a>, only on <branch-b>, and present
on both but with differing details (spec §4.7 "compare_branches").`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cleanup, err := openContext()
		if err != nil {
			return err
		}
		defer cleanup()

		cmp, err := ctx.CompareBranches(args[0], args[1])
		if err != nil {
			return err
		}
		return printComparison(cmd, args[0], args[1], cmp, compareFormat)
	},
}

// comparisonEntry flattens one (node_id, event_type) bucket into a JSON- and
// text-friendly shape; store.BranchComparisonKey is a struct and so cannot
// be a JSON object key directly.
type comparisonEntry struct {
	NodeID    string         `json:"node_id"`
	EventType events.Type    `json:"event_type"`
	EventsA   []events.Event `json:"events_a,omitempty"`
	EventsB   []events.Event `json:"events_b,omitempty"`
}

type comparisonReport struct {
	OnlyInA []comparisonEntry `json:"only_in_a"`
	OnlyInB []comparisonEntry `json:"only_in_b"`
	Diverged []comparisonEntry `json:"diverged"`
}

func buildReport(cmp store.BranchComparison) comparisonReport {
	var r comparisonReport
	for key, evs := range cmp.OnlyInA {
		r.OnlyInA = append(r.OnlyInA, comparisonEntry{NodeID: key.NodeID, EventType: key.EventType, EventsA: evs})
	}
	for key, evs := range cmp.OnlyInB {
		r.OnlyInB = append(r.OnlyInB, comparisonEntry{NodeID: key.NodeID, EventType: key.EventType, EventsB: evs})
	}
	for key, pair := range cmp.CommonWithDiff {
		r.Diverged = append(r.Diverged, comparisonEntry{NodeID: key.NodeID, EventType: key.EventType, EventsA: pair.A, EventsB: pair.B})
	}
	return r
}

func printComparison(cmd *cobra.Command, a, b string, cmp store.BranchComparison, format string) error {
	w := cmd.OutOrStdout()
	if format == "json" {
		data, err := json.MarshalIndent(buildReport(cmp), "", "  ")
		if err != nil {
			return fmt.Errorf("marshal comparison: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	fmt.Fprintf(w, "only on %s (%d node/event-type pairs):\n", a, len(cmp.OnlyInA))
	for key, evs := range cmp.OnlyInA {
		fmt.Fprintf(w, "  %s %s (%d event(s))\n", key.NodeID, key.EventType, len(evs))
	}
	fmt.Fprintf(w, "only on %s (%d node/event-type pairs):\n", b, len(cmp.OnlyInB))
	for key, evs := range cmp.OnlyInB {
		fmt.Fprintf(w, "  %s %s (%d event(s))\n", key.NodeID, key.EventType, len(evs))
	}
	fmt.Fprintf(w, "diverged on both (%d node/event-type pairs):\n", len(cmp.CommonWithDiff))
	for key, pair := range cmp.CommonWithDiff {
		fmt.Fprintf(w, "  %s %s (%s: %d, %s: %d)\n", key.NodeID, key.EventType, a, len(pair.A), b, len(pair.B))
	}
	return nil
}

func init() {
	branchesCompareCmd.Flags().StringVar(&compareFormat, "format", "text", "output format: text or json")
	branchesCmd.AddCommand(branchesCompareCmd)
}
