package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var purgeYes bool

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete the entire semantic store",
	Long: `Irreversibly drops every recorded event, commit, and branch row from
the semantic store. refs/notes/svcs-semantic is left in place, and unlike
"uninstall", the git hooks stay installed. Without --yes it asks on stdin
and proceeds only on the answer "yes".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !purgeYes {
			confirmed, err := confirmPurge(cmd)
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
		}

		ctx, cleanup, err := openContext()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := ctx.Purge(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "purged the semantic store")
		return nil
	},
}

func confirmPurge(cmd *cobra.Command) (bool, error) {
	fmt.Fprint(cmd.OutOrStdout(), "this deletes all recorded semantic history for this repository. type \"yes\" to continue: ")
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	return strings.TrimSpace(line) == "yes", nil
}

func init() {
	purgeCmd.Flags().BoolVar(&purgeYes, "yes", false, "skip the interactive confirmation prompt")
}
