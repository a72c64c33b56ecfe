package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cardctl",
		Short:         "Maintenance tools for cardvault collections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCompressCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "cardctl:", err)
		stop()
		os.Exit(1)
	}
}
