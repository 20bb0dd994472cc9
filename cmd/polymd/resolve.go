// Copyright PolyMD Authors, 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apaudelx/PolyMD/internal/resolve"
	"github.com/apaudelx/PolyMD/internal/secrets"
	"github.com/apaudelx/PolyMD/internal/store"
	"github.com/apaudelx/PolyMD/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [DOIs...]",
	Short: "Resolve bibliographic metadata for DOI-identified articles",
	Long: `Resolve queries the configured bibliographic providers (Semantic Scholar,
Crossref, OpenAlex) for each DOI and merges their answers field by field in
provider priority order. Identifiers come from the command line or from a
file of DOIs, one per line. Every input ends up either resolved or recorded
as a resolution failure with its missing fields.`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().String("input", "", "file of DOIs, one per line (# comments allowed)")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ids := args
	if inputPath, _ := cmd.Flags().GetString("input"); inputPath != "" {
		fromFile, err := readIdentifierFile(inputPath)
		if err != nil {
			return err
		}
		ids = append(ids, fromFile...)
	}
	if len(ids) == 0 {
		return fmt.Errorf("provide one or more DOIs, or --input with a DOI list file")
	}

	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}

	providers, err := resolve.BuildProviders(cfg.Resolve, resolve.Credentials{
		SemanticScholarAPIKey: loadedSecrets[secrets.KeySemanticScholar],
		CrossrefMailto:        loadedSecrets[secrets.KeyCrossrefMailto],
		OpenAlexEmail:         loadedSecrets[secrets.KeyOpenAlexEmail],
	})
	if err != nil {
		return err
	}

	resolver := resolve.NewResolver(providers, cfg.Resolve.CacheTTL)
	result, err := resolver.ResolveBatch(cmd.Context(), ids, os.Stdout)
	if err != nil {
		return err
	}

	if err := result.WriteOutputs(cfg.Resolve.OutputDir); err != nil {
		return err
	}
	if err := recordResolutions(cmd, cfg.Store, result); err != nil {
		return err
	}

	if result.HasFailures() {
		return fmt.Errorf("%d identifier(s) failed resolution", result.Failed)
	}
	return nil
}

func recordResolutions(cmd *cobra.Command, cfg types.StoreConfig, result resolve.BatchResult) error {
	ledger, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	for _, doi := range result.Order {
		res := result.Resolutions[doi]
		// The ledger is keyed by the DOI slug so later stages, which
		// only see artifact filenames, land on the same row set.
		docID := doi.Slug()
		if res.Resolved() {
			err = ledger.Record(cmd.Context(), docID, store.StageResolve, store.StatusResolved, string(doi))
		} else {
			detail := "missing: " + strings.Join(res.Failure.MissingFields, ", ")
			err = ledger.Record(cmd.Context(), docID, store.StageResolve, store.StatusResolutionFailed, detail)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// readIdentifierFile reads DOIs one per line, skipping blanks and
// # comment lines.
func readIdentifierFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading identifier file: %w", err)
	}

	var ids []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, nil
}
