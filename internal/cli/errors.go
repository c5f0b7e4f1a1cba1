package cli

import "github.com/svcs-project/svcs/internal/svcsctx"

// userErrorf wraps a CLI-local argument-parsing failure as a misuse error
// (exit code 2, spec §7), the same taxonomy svcsctx.Open/Init already apply
// to errors originating deeper in the stack.
func userErrorf(err error) error {
	if err == nil {
		return nil
	}
	return svcsctx.UserError("%s", err.Error())
}
