// Package cli implements the ferret command line interface.
// Commands hold no business logic; they call the driving ports wired
// in through SetServices and render the results.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/ferret-search/ferret/internal/core/ports/driven"
	"github.com/ferret-search/ferret/internal/core/ports/driving"
	"github.com/ferret-search/ferret/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// WatcherFactory builds a watcher rooted at the given directory.
// The watch command constructs its watcher lazily because the root is
// only known at invocation time.
type WatcherFactory func(root string) (driving.Watcher, error)

var (
	searchService driving.SearchService
	ingestService driving.Ingestor
	statusService driving.StatusReporter
	documentStore driven.DocumentStore
	newWatcher    WatcherFactory
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ferret",
	Short: "Local hybrid search over your documents and code",
	Long: `Ferret indexes text and code into vector and lexical
representations and serves low-latency hybrid search, keeping the
index synchronised with a live filesystem.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Services carries the wired driving ports the commands depend on.
type Services struct {
	Search    driving.SearchService
	Ingestor  driving.Ingestor
	Status    driving.StatusReporter
	Documents driven.DocumentStore
	Watcher   WatcherFactory
}

// SetServices injects the wired services. Must be called before Execute.
func SetServices(s Services) {
	searchService = s.Search
	ingestService = s.Ingestor
	statusService = s.Status
	documentStore = s.Documents
	newWatcher = s.Watcher
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
