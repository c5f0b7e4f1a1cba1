package cli

import (
	"github.com/svcs-project/svcs/internal/svcsctx"
)

// openContext opens the repository at repoFlag and returns a cleanup func
// every subcommand should defer immediately.
func openContext() (*svcsctx.Context, func(), error) {
	ctx, err := svcsctx.Open(repoFlag)
	if err != nil {
		return nil, func() {}, err
	}
	return ctx, func() { ctx.Close() }, nil
}
