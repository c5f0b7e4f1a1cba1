package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/svcs-project/svcs/internal/svcsctx"
)

var initName string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize SVCS in a git repository",
	Long: `Creates .svcs/ (config + semantic store), then installs git hooks
appropriate to the repository kind: post-commit/post-merge/post-checkout/
pre-push for a working clone, post-receive/update for a bare repository.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := initName
		if name == "" {
			abs, err := filepath.Abs(repoFlag)
			if err == nil {
				name = filepath.Base(abs)
			} else {
				name = filepath.Base(repoFlag)
			}
		}
		ctx, err := svcsctx.Init(repoFlag, name)
		if err != nil {
			return err
		}
		defer ctx.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "svcs: initialized %q in %s\n", name, repoFlag)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "repository name (defaults to the directory name)")
}
