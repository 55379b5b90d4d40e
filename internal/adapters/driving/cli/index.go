package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ferret-search/ferret/internal/core/ports/driving"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a file or directory",
	Long: `Indexes a file, or every non-hidden regular file under a
directory, into the search index. Unchanged documents are skipped by
content hash; changed documents have their chunks replaced atomically.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	batch, err := readBatch(args[0])
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		cmd.Println("Nothing to index.")
		return nil
	}

	report, err := ingestService.IngestDocuments(cmd.Context(), batch)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	cmd.Printf("Indexed %d, skipped %d (unchanged), failed %d\n",
		report.Indexed, report.Skipped, report.Failed)
	for _, failure := range report.Failures {
		cmd.Printf("  failed %s: %v\n", failure.Path, failure.Err)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d documents failed to index", report.Failed)
	}
	return nil
}

// readBatch loads a file, or a directory tree, into an ingestion batch.
// Hidden files and directories are skipped.
func readBatch(path string) ([]driving.IngestDocument, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		content, err := os.ReadFile(abs)
		if err != nil {
			return nil, err
		}
		return []driving.IngestDocument{{Path: abs, Content: string(content)}}, nil
	}

	var batch []driving.IngestDocument
	walkErr := filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != abs && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !d.Type().IsRegular() {
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		batch = append(batch, driving.IngestDocument{Path: p, Content: string(content)})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return batch, nil
}
