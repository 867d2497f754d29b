// Command chronorm compiles portal schemas and moves their rows between
// flat files, SQL tables and columnar snapshots.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/chronorm/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
