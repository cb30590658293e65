// Command ceespwatch polls the CEESP opinions export and reports rows that
// were not present on the previous run.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/ceespwatch/internal/core"
	_ "github.com/JonMunkholm/ceespwatch/internal/core/profiles" // Register built-in profiles
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(1)
	}
}

// formatError renders err as "error [CODE]: message" followed by the
// original error and the suggested action.
func formatError(err error) string {
	msg := core.MapError(err)
	return fmt.Sprintf("error [%s]: %s\n  cause: %v\n  action: %s", msg.Code, msg.Message, err, msg.Action)
}
