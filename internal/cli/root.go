// Package cli implements the cobra command surface consuming
// internal/svcsctx's core operations (spec §6.3). cmd/svcs/main.go maps the
// error a subcommand returns to an exit code through svcsctx.ExitCode, so
// misuse, environment, and success stay distinguishable (§7).
package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

// SetVersion records the build-time version string for `svcs version`.
func SetVersion(v string) {
	version = v
}

var repoFlag string

var rootCmd = &cobra.Command{
	Use:   "svcs",
	Short: "SVCS — a semantic version control layer over git",
	Long: `SVCS augments a git repository with a durable, queryable record of
semantic code changes: function and class additions, signature changes,
control-flow and error-handling shifts, dependency movement, and
higher-level refactoring patterns, attached to commits and synchronized
across clones via git notes (refs/notes/svcs-semantic).

Most invocations run against the nearest enclosing git repository; pass
--repo to target another one.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", ".", "path to the target git repository")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(branchesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(purgeCmd)
}
