package cli

import (
	"github.com/spf13/cobra"

	"github.com/svcs-project/svcs/internal/svcsctx"
)

var hookCmd = &cobra.Command{
	Use:    "hook <name> [args...]",
	Short:  "Run one git lifecycle hook (invoked by the installed shims)",
	Hidden: true,
	Args:   cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := svcsctx.Open(repoFlag)
		if err != nil {
			return err
		}
		defer ctx.Close()

		return ctx.RunHook(cmd.Context(), args[0], args[1:], cmd.InOrStdin())
	},
}
