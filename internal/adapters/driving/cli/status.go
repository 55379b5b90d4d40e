package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index size, backend health, and cache statistics",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if statusService == nil {
		return errors.New("status service not configured")
	}

	report, err := statusService.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("collecting status: %w", err)
	}

	if statusJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Documents: %d\n", report.Documents)
	cmd.Printf("Chunks:    %d\n", report.Chunks)

	if len(report.Backends) > 0 {
		cmd.Println()
		cmd.Println("Embedding backends:")
		for _, b := range report.Backends {
			health := report.BackendHealth[b.Name]
			if health == "" {
				health = "healthy"
			}
			cmd.Printf("  %-10s %s (%d ok, %d failed)\n", b.Name, health, b.Successes, b.Failures)
		}
	}

	cmd.Println()
	cmd.Printf("Cache: %d entries, %.0f%% hit rate\n",
		report.Cache.Entries, report.Cache.HitRate()*100)

	if report.Watcher != nil {
		cmd.Println()
		cmd.Printf("Watcher: %s\n", report.Watcher.State)
		kinds := make([]string, 0, len(report.Watcher.QueueDepths))
		for kind := range report.Watcher.QueueDepths {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			cmd.Printf("  queue %-9s %d\n", kind, report.Watcher.QueueDepths[kind])
		}
		cmd.Printf("  processed %d, dropped %d, abandoned %d\n",
			report.Watcher.Processed, report.Watcher.Dropped, report.Watcher.Abandoned)
	}

	return nil
}
