package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/svcs-project/svcs/internal/events"
	"github.com/svcs-project/svcs/internal/store"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Query recorded semantic events",
}

// filterFlags groups the query_events flags shared by `events list` and
// `events node-evolution` (spec §4.7 "query_events").
type filterFlags struct {
	authors       []string
	eventTypes    []string
	layers        []string
	location      string
	minConfidence float64
	maxConfidence float64
	since         string
	until         string
	branch        string
	orderBy       string
	desc          bool
	limit         int
	offset        int
	format        string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.authors, "author", nil, "filter by author (repeatable)")
	cmd.Flags().StringSliceVar(&f.eventTypes, "type", nil, "filter by event type (repeatable)")
	cmd.Flags().StringSliceVar(&f.layers, "layer", nil, "filter by layer: core, 5a, 5b (repeatable)")
	cmd.Flags().StringVar(&f.location, "location", "", "SQL LIKE pattern over the file location")
	cmd.Flags().Float64Var(&f.minConfidence, "min-confidence", -1, "minimum confidence (0..1)")
	cmd.Flags().Float64Var(&f.maxConfidence, "max-confidence", -1, "maximum confidence (0..1)")
	cmd.Flags().StringVar(&f.since, "since", "", `start of the time window (ISO date or "7 days ago", "yesterday", ...)`)
	cmd.Flags().StringVar(&f.until, "until", "", "end of the time window, same formats as --since")
	cmd.Flags().StringVar(&f.branch, "branch", "", "filter by branch")
	cmd.Flags().StringVar(&f.orderBy, "order-by", "timestamp", "sort field: timestamp, confidence, event_type, author")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum rows to return (0 = unbounded)")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "rows to skip before --limit applies")
	cmd.Flags().StringVar(&f.format, "format", "text", "output format: text or json")
}

// toStoreFilters parses f into a store.Filters, resolving --since/--until
// through the shared relative-date parser (spec §4.7, P8).
func (f *filterFlags) toStoreFilters() (store.Filters, error) {
	filters := store.Filters{
		Authors:         f.authors,
		LocationPattern: f.location,
		Branch:          f.branch,
		OrderBy:         store.OrderField(f.orderBy),
		OrderDesc:       f.desc,
		Limit:           f.limit,
		Offset:          f.offset,
	}
	for _, t := range f.eventTypes {
		filters.EventTypes = append(filters.EventTypes, events.Type(t))
	}
	for _, l := range f.layers {
		filters.Layers = append(filters.Layers, events.Layer(l))
	}
	if f.minConfidence >= 0 {
		filters.MinConfidence = &f.minConfidence
	}
	if f.maxConfidence >= 0 {
		filters.MaxConfidence = &f.maxConfidence
	}
	if f.since != "" {
		t, ok := store.ParseRelativeDate(f.since, time.Now())
		if !ok {
			return store.Filters{}, fmt.Errorf("--since: unrecognized date %q", f.since)
		}
		unix := t.Unix()
		filters.SinceTimestamp = &unix
	}
	if f.until != "" {
		t, ok := store.ParseRelativeDate(f.until, time.Now())
		if !ok {
			return store.Filters{}, fmt.Errorf("--until: unrecognized date %q", f.until)
		}
		unix := t.Unix()
		filters.UntilTimestamp = &unix
	}
	return filters, nil
}

var eventsListFlags filterFlags

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List semantic events matching a filter set",
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := eventsListFlags.toStoreFilters()
		if err != nil {
			return userErrorf(err)
		}
		ctx, cleanup, err := openContext()
		if err != nil {
			return err
		}
		defer cleanup()

		evs, err := ctx.ListEvents(filters)
		if err != nil {
			return err
		}
		return printEvents(cmd, evs, eventsListFlags.format)
	},
}

var nodeEvolutionFlags filterFlags

var nodeEvolutionCmd = &cobra.Command{
	Use:   "node-evolution <node-id>",
	Short: "Show every recorded event for one code entity, oldest first",
	Long:  `<node-id> follows §4.1's logical id form: func:<qualified-name>, class:<qualified-name>, or module:<path>.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := nodeEvolutionFlags.toStoreFilters()
		if err != nil {
			return userErrorf(err)
		}
		ctx, cleanup, err := openContext()
		if err != nil {
			return err
		}
		defer cleanup()

		evs, err := ctx.NodeEvolution(args[0], filters)
		if err != nil {
			return err
		}
		return printEvents(cmd, evs, nodeEvolutionFlags.format)
	},
}

func init() {
	eventsListFlags.register(eventsListCmd)
	nodeEvolutionFlags.register(nodeEvolutionCmd)
	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(nodeEvolutionCmd)
}
