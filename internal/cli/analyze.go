package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/svcs-project/svcs/internal/events"
)

var analyzeFormat string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <commit>",
	Short: "Run the semantic analysis pipeline over a commit",
	Long: `Diffs <commit> against its first parent (or an empty tree for a
root commit), emits semantic events for every changed file, persists them
to the semantic store, and attaches the result as a git note on
refs/notes/svcs-semantic.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cleanup, err := openContext()
		if err != nil {
			return err
		}
		defer cleanup()

		evs, err := ctx.AnalyzeCommit(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printEvents(cmd, evs, analyzeFormat)
	},
}

func printEvents(cmd *cobra.Command, evs []events.Event, format string) error {
	w := cmd.OutOrStdout()
	if format == "json" {
		data, err := json.MarshalIndent(evs, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal events: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	if len(evs) == 0 {
		fmt.Fprintln(w, "no semantic events")
		return nil
	}
	for _, e := range evs {
		conf := "-"
		if e.Confidence != nil {
			conf = fmt.Sprintf("%.2f", *e.Confidence)
		}
		fmt.Fprintf(w, "%-8s %-38s %-6s %-5s %s\n", e.Layer, e.EventType, conf, shortHash(e.CommitHash), e.NodeID)
	}
	return nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "text", "output format: text or json")
}
