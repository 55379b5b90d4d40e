package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ferret-search/ferret/internal/core/domain"
)

var (
	searchLimit       int
	searchJSON        bool
	searchMode        string
	searchLanguage    string
	searchContentType string
	searchMinSim      float64
	searchNoCache     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Long: `Performs hybrid search across all indexed documents.
Combines keyword (BM25) and semantic (vector) search for best results.
Use --mode to restrict the search to a single retrieval leg.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", "hybrid", "search mode: hybrid, semantic, or keyword")
	searchCmd.Flags().StringVar(&searchLanguage, "language", "", "restrict results to a programming language")
	searchCmd.Flags().StringVar(&searchContentType, "type", "", "restrict results to a content type: code, text, or markdown")
	searchCmd.Flags().Float64Var(&searchMinSim, "min-similarity", 0, "exclude semantic hits scoring below this threshold")
	searchCmd.Flags().BoolVar(&searchNoCache, "no-cache", false, "bypass the result cache")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	opts := domain.SearchOptions{
		Limit:         searchLimit,
		Mode:          domain.SearchMode(searchMode),
		Caller:        "cli",
		MinSimilarity: searchMinSim,
		BypassCache:   searchNoCache,
		Filters: domain.SearchFilters{
			Language:    searchLanguage,
			ContentType: domain.ContentType(searchContentType),
		},
	}

	results, err := searchService.Search(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		// Format: [N] Path (Score)
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, results[i].SourcePath, results[i].Score)
		if results[i].Snippet != "" {
			cmd.Printf("      %s\n", results[i].Snippet)
		}
		cmd.Println()
	}

	return nil
}
