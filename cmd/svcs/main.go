package main

import (
	"fmt"
	"os"

	"github.com/svcs-project/svcs/internal/cli"
	"github.com/svcs-project/svcs/internal/svcsctx"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	cli.SetVersion(Version)
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(svcsctx.ExitCode(err))
	}
}
