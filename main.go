// ./main.go
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/framewalk/cmd"
	"github.com/xkilldash9x/framewalk/internal/observability"
)

// main is the entry point for the framewalk CLI.
func main() {
	// The browser session and any in-flight traversal are bounded by this
	// context; SIGINT/SIGTERM aborts the run, and the orchestrator still
	// performs its best-effort partial save on the way out.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
	observability.Sync()
}
