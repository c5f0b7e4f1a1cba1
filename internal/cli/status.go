package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show this repository's SVCS state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cleanup, err := openContext()
		if err != nil {
			return err
		}
		defer cleanup()

		st, err := ctx.Status()
		if err != nil {
			return err
		}

		if statusFormat == "json" {
			data, _ := json.MarshalIndent(st, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "repository:  %s\n", st.RepositoryName)
		fmt.Fprintf(w, "branch:      %s\n", st.Branch)
		fmt.Fprintf(w, "HEAD:        %s\n", st.HeadHash)
		fmt.Fprintf(w, "commits:     %d\n", st.CommitCount)
		fmt.Fprintf(w, "events:      %d\n", st.EventCount)
		fmt.Fprintf(w, "layer 5b:    %s\n", enabledLabel(st.LLMEnabled))
		return nil
	},
}

func enabledLabel(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "text", "output format: text or json")
}
