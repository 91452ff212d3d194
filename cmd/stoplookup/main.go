// Command stoplookup finds the transit stop nearest to you, the buses serving
// a stop and their arrival schedules, using a stop lookup backend.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, NewRootCommand(), os.Stderr)
	stop()
	os.Exit(code)
}
