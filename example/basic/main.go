package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/Thomas-Heisig/MODAX"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := modax.Run(ctx, "../../data/config.yaml"); err != nil && err != context.Canceled {
		log.Fatalf("field node exited: %v", err)
	}
}
