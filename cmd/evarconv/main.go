package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/evarconv/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		// Commands have already written their structured output to stdout.
		fmt.Fprintf(os.Stderr, "evarconv: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
