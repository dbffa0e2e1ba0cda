// Package main is the polyglot command.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/polyglot/internal/app"
)

// shutdownSignals end a running workspace; SIGHUP covers a closed terminal.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one invocation. The first shutdown signal cancels the command;
// a second one falls through to the default handler and kills the process.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	return app.Execute(ctx, args, stdout, stderr)
}
