// main.go
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/pagewright/cmd"
)

func main() {
	// Ctrl-C cancels in-flight waits; browsers are still torn down on the way out.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cmd.ExecuteContext(ctx)
}
