package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that keep payment data consistent.`,
}

// Index reconciler command
var reindexWorkerCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Repair the payment status index",
	Long:  `Re-derive the status index from payment records, either once or on the configured interval`,
	Run: func(cmd *cobra.Command, args []string) {
		startReindexWorker()
	},
}

var reindexOnce bool

func startReindexWorker() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	logger := deps.Logger

	if reindexOnce {
		changed, err := deps.Reconciler.RunOnce(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Reindex failed: %v\n", err)
			os.Exit(1)
		}
		logger.Info("reindex complete", "changed", changed)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps.Reconciler.Start(ctx)
	logger.Info("reindex worker is running. Press Ctrl+C to stop.")

	<-ctx.Done()
	logger.Info("received signal, shutting down reindex worker")
	deps.Reconciler.Stop()
	logger.Info("reindex worker shutdown complete")
}

func init() {
	reindexWorkerCmd.Flags().BoolVar(&reindexOnce, "once", false, "Run a single repair pass and exit")

	workerCmd.AddCommand(reindexWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
