package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/svcs-project/svcs/internal/store"
)

var (
	statsGroupBy string
	statsSince   string
	statsUntil   string
	statsFormat  string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate semantic event counts by event type, layer, author, or location",
	Long: `Groups every recorded event by --group-by and counts them, optionally
restricted to a time window (spec §4.7 "stats").`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var since, until *int64
		if statsSince != "" {
			t, ok := store.ParseRelativeDate(statsSince, time.Now())
			if !ok {
				return userErrorf(fmt.Errorf("--since: unrecognized date %q", statsSince))
			}
			u := t.Unix()
			since = &u
		}
		if statsUntil != "" {
			t, ok := store.ParseRelativeDate(statsUntil, time.Now())
			if !ok {
				return userErrorf(fmt.Errorf("--until: unrecognized date %q", statsUntil))
			}
			u := t.Unix()
			until = &u
		}

		ctx, cleanup, err := openContext()
		if err != nil {
			return err
		}
		defer cleanup()

		buckets, err := ctx.Stats(store.GroupBy(statsGroupBy), since, until)
		if err != nil {
			return err
		}
		return printStats(cmd, buckets, statsFormat)
	},
}

func printStats(cmd *cobra.Command, buckets []store.StatBucket, format string) error {
	w := cmd.OutOrStdout()
	if format == "json" {
		data, err := json.MarshalIndent(buckets, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal stats: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	for _, b := range buckets {
		fmt.Fprintf(w, "%-30s %d\n", b.Key, b.Count)
	}
	return nil
}

func init() {
	statsCmd.Flags().StringVar(&statsGroupBy, "group-by", "event_type", "grouping dimension: event_type, layer, author, location")
	statsCmd.Flags().StringVar(&statsSince, "since", "", `start of the time window (ISO date or "7 days ago", "yesterday", ...)`)
	statsCmd.Flags().StringVar(&statsUntil, "until", "", "end of the time window, same formats as --since")
	statsCmd.Flags().StringVar(&statsFormat, "format", "text", "output format: text or json")
}
