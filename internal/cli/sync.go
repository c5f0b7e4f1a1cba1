package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Exchange semantic notes with a remote (spec §4.8, §5)",
}

var syncRemote string

var syncFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch refs/notes/svcs-semantic from --remote and merge it into the local store and notes ref",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cleanup, err := openContext()
		if err != nil {
			return err
		}
		defer cleanup()

		commits, evs, err := ctx.SyncNotesFetch(syncRemote)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d commit(s), %d event(s) from %s\n", commits, evs, syncRemote)
		return nil
	},
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push refs/notes/svcs-semantic to --remote",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cleanup, err := openContext()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := ctx.SyncNotesPush(syncRemote); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pushed svcs-semantic notes to %s\n", syncRemote)
		return nil
	},
}

func init() {
	syncFetchCmd.Flags().StringVar(&syncRemote, "remote", "origin", "remote name")
	syncPushCmd.Flags().StringVar(&syncRemote, "remote", "origin", "remote name")
	syncCmd.AddCommand(syncFetchCmd)
	syncCmd.AddCommand(syncPushCmd)
}
