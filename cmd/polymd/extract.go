// Copyright PolyMD Authors, 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apaudelx/PolyMD/internal/extract"
	"github.com/apaudelx/PolyMD/internal/httputil"
	"github.com/apaudelx/PolyMD/internal/store"
	"github.com/apaudelx/PolyMD/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract polymer property records from article text",
	Long: `Extract sends each Markdown article in the docs directory to the
configured language model and parses the reply against the fixed property
schema. Parsed records are written one JSON file per document; replies that
fail to parse are captured verbatim as raw text. Documents with existing
output are skipped, so interrupted runs resume where they left off.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("docs-dir", "", "directory of article Markdown files (overrides config)")
	extractCmd.Flags().String("output-dir", "", "directory for extraction output (overrides config)")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	if dir, _ := cmd.Flags().GetString("docs-dir"); dir != "" {
		cfg.Extraction.DocsDir = dir
	}
	if dir, _ := cmd.Flags().GetString("output-dir"); dir != "" {
		cfg.Extraction.OutputDir = dir
	}

	client := &http.Client{Timeout: cfg.Extraction.Timeout}
	backend := &extract.ChatBackend{
		Endpoint: httputil.NewEndpoint("extraction", client, cfg.Extraction.Retry),
		BaseURL:  cfg.Extraction.Endpoint.BaseURL,
		Model:    cfg.Extraction.Endpoint.Model,
		APIKey:   cfg.Extraction.Endpoint.APIKey,
	}

	summary, err := extract.ExtractBatch(cmd.Context(), backend, cfg.Extraction, os.Stdout)
	if err != nil {
		return err
	}
	if err := recordExtractions(cmd, cfg); err != nil {
		return err
	}

	if summary.HasFailures() {
		return fmt.Errorf("%d document(s) failed extraction", summary.Failed)
	}
	return nil
}

// recordExtractions writes per-document extraction outcomes to the run
// ledger from the output artifacts, covering skipped documents from
// earlier runs too.
func recordExtractions(cmd *cobra.Command, cfg types.PipelineConfig) error {
	ledger, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer ledger.Close()

	entries, err := os.ReadDir(cfg.Extraction.DocsDir)
	if err != nil {
		return fmt.Errorf("reading docs directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		docID := types.DOI(strings.TrimSuffix(entry.Name(), ".md"))

		parsedPath := filepath.Join(cfg.Extraction.OutputDir, string(docID)+".json")
		if records, err := extract.ReadRecords(parsedPath, docID); err == nil {
			detail := fmt.Sprintf("%d records", len(records))
			if err := ledger.Record(cmd.Context(), string(docID), store.StageExtract, store.StatusParsed, detail); err != nil {
				return err
			}
			continue
		}

		rawPath := filepath.Join(cfg.Extraction.OutputDir, string(docID)+"_raw.txt")
		if _, err := os.Stat(rawPath); err == nil {
			if err := ledger.Record(cmd.Context(), string(docID), store.StageExtract, store.StatusParseFailed, "raw reply captured"); err != nil {
				return err
			}
		}
	}
	return nil
}
