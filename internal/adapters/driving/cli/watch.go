package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Watch a directory and keep the index synchronised",
	Long: `Performs an initial full scan of the directory, then watches
for filesystem changes and keeps the index synchronised. Runs until
interrupted; pending work is drained on shutdown.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if newWatcher == nil {
		return errors.New("watcher not configured")
	}

	w, err := newWatcher(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	cmd.Printf("Watching %s (press Ctrl-C to stop)\n", args[0])

	<-ctx.Done()
	stop()

	cmd.Println("Draining pending work...")
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.Stop(drainCtx); err != nil {
		return fmt.Errorf("stopping watcher: %w", err)
	}

	status := w.Status()
	cmd.Printf("Processed %d, dropped %d, abandoned %d\n",
		status.Processed, status.Dropped, status.Abandoned)
	return nil
}
