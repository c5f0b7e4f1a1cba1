package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove semantic events whose commit no longer exists in any branch or tag",
	Long: `Walks the reachable commit set from every local branch and tag (and
a detached HEAD) and deletes
store rows for commits that have fallen out of history, e.g. after a
rebase or a branch deletion (spec §4.7 "prune").`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cleanup, err := openContext()
		if err != nil {
			return err
		}
		defer cleanup()

		commits, evs, err := ctx.Prune()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d commit(s), %d event(s)\n", commits, evs)
		return nil
	},
}
