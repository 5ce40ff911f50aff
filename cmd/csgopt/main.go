// Command csgopt optimizes, extracts, inflates, samples and compares CSG
// trees stored in the JSON interchange format.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "csgopt:", err)
		stop()
		os.Exit(1)
	}
}
