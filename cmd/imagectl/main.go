package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)

	stop()

	if err != nil {
		os.Exit(1)
	}
}
