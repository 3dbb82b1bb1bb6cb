// cmd/tally/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/law-makers/tally/internal/cli"
)

func main() {
	// SIGINT/SIGTERM cancel the command context; watch tears its panel down
	// and every command closes the store before exiting.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.Execute(ctx)
}
