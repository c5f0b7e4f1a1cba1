package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/svcs-project/svcs/internal/svcsctx"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove SVCS's git hooks, restoring any hook they replaced",
	Long: `Removes the SVCS-managed hook shims, restoring whatever hook was
backed up at install time. The semantic store and its data are left
untouched; use "svcs purge" to remove them explicitly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := svcsctx.Uninstall(repoFlag); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "svcs: hooks uninstalled")
		return nil
	},
}
