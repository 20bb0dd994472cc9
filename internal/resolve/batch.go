// Copyright PolyMD Authors, 2026. All rights reserved.

package resolve

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/apaudelx/PolyMD/pkg/types"
)

const metadataDir = "metadata"

// batchCSVHeader defines the tabular output: one row per input
// identifier, with whichever fields were resolvable and which provider
// contributed each.
var batchCSVHeader = []string{
	"doi", "status", "title", "abstract", "authors", "year", "url",
	"field_sources", "missing_fields",
}

// BatchResult summarizes one resolution run. Every input identifier
// appears in Order with an entry in Resolutions; nothing is dropped.
type BatchResult struct {
	Resolved int
	Failed   int

	Order       []types.DOI
	Resolutions map[types.DOI]Resolution
}

// Total returns the number of identifiers processed.
func (r BatchResult) Total() int { return r.Resolved + r.Failed }

// HasFailures reports whether any identifier failed resolution.
func (r BatchResult) HasFailures() bool { return r.Failed > 0 }

// ResolveBatch resolves a list of raw identifiers sequentially,
// printing per-item status to w and returning the full accounting.
//
// Identifiers are normalized up front; a syntactically invalid DOI or a
// duplicate normalized identifier rejects the whole batch before any
// network call, since either indicates a caller bug rather than a
// provider problem. Per-identifier resolution failures are recorded and
// the batch continues. Cancelling ctx stops new lookups; the result
// covers the identifiers processed so far.
func (r *Resolver) ResolveBatch(ctx context.Context, rawIDs []string, w io.Writer) (BatchResult, error) {
	dois := make([]types.DOI, 0, len(rawIDs))
	seen := make(map[types.DOI]bool)
	for _, raw := range rawIDs {
		doi := types.NormalizeDOI(raw)
		if !doi.IsValid() {
			return BatchResult{}, fmt.Errorf("invalid DOI %q", raw)
		}
		if seen[doi] {
			return BatchResult{}, fmt.Errorf("%w: %s", ErrDuplicateIdentifier, doi)
		}
		seen[doi] = true
		dois = append(dois, doi)
	}

	result := BatchResult{Resolutions: make(map[types.DOI]Resolution)}
	for _, doi := range dois {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		res, err := r.Resolve(ctx, doi)
		if err != nil {
			return result, err
		}

		result.Order = append(result.Order, doi)
		result.Resolutions[doi] = res

		for _, pe := range res.ProviderErrors {
			fmt.Fprintf(w, "  warning: %s: %s\n", doi, pe)
		}
		if res.Resolved() {
			fmt.Fprintf(w, "resolved:   %s — %s\n", doi, res.Record.Title)
			result.Resolved++
		} else {
			fmt.Fprintf(w, "unresolved: %s (missing: %s)\n",
				doi, strings.Join(res.Failure.MissingFields, ", "))
			result.Failed++
		}
	}

	fmt.Fprintf(w, "\nBatch summary: %d resolved, %d failed (total: %d)\n",
		result.Resolved, result.Failed, result.Total())
	return result, nil
}

// WriteOutputs writes the batch CSV and one metadata YAML per resolved
// document under outputDir.
func (r BatchResult) WriteOutputs(outputDir string) error {
	if err := os.MkdirAll(filepath.Join(outputDir, metadataDir), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	if err := r.writeCSV(filepath.Join(outputDir, "metadata.csv")); err != nil {
		return err
	}

	for _, doi := range r.Order {
		res := r.Resolutions[doi]
		if !res.Resolved() {
			continue
		}
		path := filepath.Join(outputDir, metadataDir, doi.Slug()+".yaml")
		data, err := yaml.Marshal(res.Record)
		if err != nil {
			return fmt.Errorf("marshaling metadata for %s: %w", doi, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing metadata for %s: %w", doi, err)
		}
	}
	return nil
}

func (r BatchResult) writeCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(batchCSVHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for _, doi := range r.Order {
		res := r.Resolutions[doi]
		row := make([]string, len(batchCSVHeader))
		row[0] = doi.String()
		if res.Resolved() {
			rec := res.Record
			row[1] = "resolved"
			row[2] = rec.Title
			row[3] = rec.Abstract
			row[4] = strings.Join(rec.Authors, "; ")
			if rec.Year != 0 {
				row[5] = strconv.Itoa(rec.Year)
			}
			row[6] = rec.URL
			row[7] = formatSources(rec.Sources)
		} else {
			row[1] = "resolution_failed"
			row[8] = strings.Join(res.Failure.MissingFields, "; ")
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row for %s: %w", doi, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// formatSources renders field provenance as "field=provider" pairs in a
// stable order.
func formatSources(sources map[string]string) string {
	var parts []string
	for _, field := range []string{
		types.FieldTitle, types.FieldAbstract, types.FieldAuthors,
		types.FieldYear, types.FieldURL,
	} {
		if provider, ok := sources[field]; ok {
			parts = append(parts, field+"="+provider)
		}
	}
	return strings.Join(parts, ";")
}
