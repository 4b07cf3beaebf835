package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/youssefsiam38/ctxoffload/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
