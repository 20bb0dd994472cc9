// Copyright PolyMD Authors, 2026. All rights reserved.

package verify

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apaudelx/PolyMD/internal/extract"
	"github.com/apaudelx/PolyMD/pkg/types"
)

// csvHeader fixes the verification output columns: one answer and one
// notes column per verifier, in configured verifier order.
var csvHeader = []string{
	"document_id", "polymer_name", "force_field", "properties", "value",
	"ai_model_1_answer", "ai_model_2_answer", "notes_model_1", "notes_model_2",
}

// Summary holds counts from a batch verification run.
type Summary struct {
	Documents   int
	MissingDocs int
	Rows        int

	// NoCounts maps verifier ID to how many records it flagged NO.
	NoCounts map[string]int
}

// VerifyBatch reviews every extracted document. For each <doc>.json in
// extractedDir the matching <doc>.md is loaded from docsDir; a missing
// article still produces one row per record, with error verdicts, so
// failures are visible in the output rather than silently skipped.
// Results are written to outputPath as CSV and returned to the caller.
func (e *Engine) VerifyBatch(ctx context.Context, docsDir, extractedDir, outputPath string, w io.Writer) ([]RecordVerdicts, Summary, error) {
	entries, err := os.ReadDir(extractedDir)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("reading extracted directory %s: %w", extractedDir, err)
	}

	summary := Summary{NoCounts: make(map[string]int)}
	var rows []RecordVerdicts

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return rows, summary, err
		}

		docID := types.DOI(strings.TrimSuffix(entry.Name(), ".json"))
		records, err := extract.ReadRecords(filepath.Join(extractedDir, entry.Name()), docID)
		if err != nil {
			return rows, summary, fmt.Errorf("loading records for %s: %w", docID, err)
		}
		if len(records) == 0 {
			continue
		}
		summary.Documents++

		docPath := filepath.Join(docsDir, string(docID)+".md")
		document, err := os.ReadFile(docPath)
		if err != nil {
			fmt.Fprintf(w, "missing article for %s: %v\n", docID, err)
			summary.MissingDocs++
			rows = append(rows, e.errorRows(docID, records, fmt.Sprintf("article not found: %v", err))...)
			continue
		}

		fmt.Fprintf(w, "verifying %s (%d records)\n", docID, len(records))
		docRows, err := e.VerifyDocument(ctx, docID, string(document), records, w)
		if err != nil {
			return rows, summary, err
		}
		rows = append(rows, docRows...)
	}

	for _, row := range rows {
		for _, v := range row.Verdicts {
			if v.Verdict == types.VerdictNo {
				summary.NoCounts[v.VerifierID]++
			}
		}
	}
	summary.Rows = len(rows)

	if err := writeCSV(outputPath, rows); err != nil {
		return rows, summary, err
	}

	fmt.Fprintf(w, "\nVerification summary: %d records across %d documents\n", summary.Rows, summary.Documents)
	if summary.MissingDocs > 0 {
		fmt.Fprintf(w, "  articles missing: %d\n", summary.MissingDocs)
	}
	for _, v := range e.Verifiers {
		no := summary.NoCounts[v.ID()]
		pct := 0.0
		if summary.Rows > 0 {
			pct = 100 * float64(no) / float64(summary.Rows)
		}
		fmt.Fprintf(w, "  %s flagged as incorrect: %d (%.1f%%)\n", v.ID(), no, pct)
	}
	return rows, summary, nil
}

// errorRows builds verdict rows for a document that could not be
// verified at all, keeping the one-verdict-per-verifier invariant.
func (e *Engine) errorRows(docID types.DOI, records []types.PropertyRecord, reason string) []RecordVerdicts {
	rows := make([]RecordVerdicts, len(records))
	for i, rec := range records {
		rows[i] = RecordVerdicts{Record: rec}
		for _, v := range e.Verifiers {
			rows[i].Verdicts = append(rows[i].Verdicts, types.VerificationVerdict{
				DOI:         docID,
				RecordIndex: i,
				VerifierID:  v.ID(),
				Verdict:     types.VerdictError,
				Rationale:   reason,
			})
		}
	}
	return rows
}

func writeCSV(path string, rows []RecordVerdicts) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			string(row.Record.DOI),
			row.Record.PolymerSystem,
			row.Record.ForceField,
			string(row.Record.Property),
			strconv.FormatFloat(row.Record.Value, 'g', -1, 64),
		}
		var answers, notes []string
		for _, v := range row.Verdicts {
			answers = append(answers, v.Verdict.Upper())
			notes = append(notes, v.Rationale)
		}
		record = append(record, answers...)
		record = append(record, notes...)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
