// Copyright PolyMD Authors, 2026. All rights reserved.

// Package extract turns article text into structured property records
// via a schema-constrained language-model prompt, with raw-capture
// fallback when the reply does not parse.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apaudelx/PolyMD/internal/httputil"
	"github.com/apaudelx/PolyMD/pkg/types"
)

// Extract prompts the backend with document text and parses the reply
// into an ExtractionResult.
//
// A reply that is not valid structured output yields status
// parse_failed with the verbatim reply preserved; the model's answer
// was syntactically delivered, so no retry happens here (retries belong
// to the transport layer). Records failing field-level validation are
// dropped individually with a logged reason; the rest of the result
// stands. The returned error is non-nil only when the backend call
// itself failed.
func Extract(ctx context.Context, backend Backend, docID types.DOI, text string, w io.Writer) (*types.ExtractionResult, error) {
	prompt, err := renderPrompt(text)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	reply, err := backend.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extraction call for %s: %w", docID, err)
	}

	var wire []wireRecord
	if err := json.Unmarshal([]byte(cleanReply(reply)), &wire); err != nil {
		fmt.Fprintf(w, "  parse failed for %s: %v\n", docID, err)
		return &types.ExtractionResult{
			DOI:    docID,
			Status: types.ExtractionParseFailed,
			Raw:    reply,
		}, nil
	}

	result := &types.ExtractionResult{
		DOI:    docID,
		Status: types.ExtractionParsed,
	}
	for i, wr := range wire {
		rec, reason := validateRecord(wr, docID)
		if reason != "" {
			msg := fmt.Sprintf("record %d: %s", i, reason)
			result.Dropped = append(result.Dropped, msg)
			fmt.Fprintf(w, "  dropped %s: %s\n", docID, msg)
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// wireRecord is the reply schema. Value is flexible because models
// return numbers both bare and quoted.
type wireRecord struct {
	PolymerSystem string    `json:"polymer_system"`
	ForceField    string    `json:"force_field"`
	Property      string    `json:"property"`
	Value         flexValue `json:"value"`
	Unit          string    `json:"unit"`
}

// flexValue accepts a JSON number or a numeric string.
type flexValue struct {
	raw string
	set bool
}

func (v *flexValue) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(data, &unquoted); err != nil {
			return err
		}
		s = strings.TrimSpace(unquoted)
	}
	v.raw = s
	v.set = s != ""
	return nil
}

// validateRecord converts one wire record to a PropertyRecord or
// returns a non-empty drop reason.
func validateRecord(wr wireRecord, docID types.DOI) (types.PropertyRecord, string) {
	if strings.TrimSpace(wr.PolymerSystem) == "" {
		return types.PropertyRecord{}, "empty polymer_system"
	}

	prop := types.Property(strings.TrimSpace(wr.Property))
	if !types.ValidProperty(prop) {
		return types.PropertyRecord{}, fmt.Sprintf("unknown property %q", wr.Property)
	}

	// Value and unit travel together: one without the other is invalid,
	// never silently accepted.
	unit := strings.TrimSpace(wr.Unit)
	switch {
	case !wr.Value.set && unit == "":
		return types.PropertyRecord{}, "missing value and unit"
	case !wr.Value.set:
		return types.PropertyRecord{}, "unit without value"
	case unit == "":
		return types.PropertyRecord{}, "value without unit"
	}

	value, err := strconv.ParseFloat(wr.Value.raw, 64)
	if err != nil {
		return types.PropertyRecord{}, fmt.Sprintf("non-numeric value %q", wr.Value.raw)
	}

	return types.PropertyRecord{
		PolymerSystem: strings.TrimSpace(wr.PolymerSystem),
		ForceField:    strings.TrimSpace(wr.ForceField),
		Property:      prop,
		Value:         value,
		Unit:          unit,
		DOI:           docID,
	}, ""
}

// cleanReply strips reasoning sections and markdown fences that chat
// models wrap around JSON output.
func cleanReply(reply string) string {
	s := strings.TrimSpace(reply)

	if idx := strings.LastIndex(s, "</think>"); idx >= 0 {
		s = strings.TrimSpace(s[idx+len("</think>"):])
	}

	if strings.HasPrefix(s, "```json") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```json"))
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// BatchSummary holds counts from a batch extraction run.
type BatchSummary struct {
	Parsed      int
	ParseFailed int
	Skipped     int
	Failed      int
}

// Total returns the number of documents processed.
func (s BatchSummary) Total() int {
	return s.Parsed + s.ParseFailed + s.Skipped + s.Failed
}

// HasFailures reports whether any document failed at the call level.
func (s BatchSummary) HasFailures() bool { return s.Failed > 0 }

// ExtractBatch processes every .md document in cfg.DocsDir. Documents
// whose parsed output already exists are skipped, so interrupted runs
// resume where they left off. Parsed results are written as
// <doc>.json, parse failures as <doc>_raw.txt (the fallback capture).
// Per-document failures never stop the batch; a rejected credential
// does.
func ExtractBatch(ctx context.Context, backend Backend, cfg types.ExtractionConfig, w io.Writer) (BatchSummary, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return BatchSummary{}, fmt.Errorf("creating output directory: %w", err)
	}

	entries, err := os.ReadDir(cfg.DocsDir)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("reading docs directory %s: %w", cfg.DocsDir, err)
	}

	var summary BatchSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		docID := types.DOI(strings.TrimSuffix(entry.Name(), ".md"))
		parsedPath := filepath.Join(cfg.OutputDir, string(docID)+".json")
		rawPath := filepath.Join(cfg.OutputDir, string(docID)+"_raw.txt")

		if _, err := os.Stat(parsedPath); err == nil {
			fmt.Fprintf(w, "skipped %s (already extracted)\n", docID)
			summary.Skipped++
			continue
		}

		content, err := os.ReadFile(filepath.Join(cfg.DocsDir, entry.Name()))
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", docID, err)
			summary.Failed++
			continue
		}

		fmt.Fprintf(w, "extracting %s\n", docID)
		result, err := Extract(ctx, backend, docID, string(content), w)
		if err != nil {
			// A rejected credential fails every remaining document the
			// same way; stop the batch instead of burning through it.
			if httputil.IsAuth(err) {
				return summary, fmt.Errorf("extraction credential rejected: %w", err)
			}
			fmt.Fprintf(w, "failed  %s: %v\n", docID, err)
			summary.Failed++
			continue
		}

		switch result.Status {
		case types.ExtractionParsed:
			if err := writeRecords(parsedPath, result.Records); err != nil {
				fmt.Fprintf(w, "failed  %s: %v\n", docID, err)
				summary.Failed++
				continue
			}
			fmt.Fprintf(w, "extracted %s (%d records)\n", docID, len(result.Records))
			summary.Parsed++
		case types.ExtractionParseFailed:
			if err := os.WriteFile(rawPath, []byte(result.Raw), 0o644); err != nil {
				fmt.Fprintf(w, "failed  %s: %v\n", docID, err)
				summary.Failed++
				continue
			}
			fmt.Fprintf(w, "parse failed %s (raw reply saved)\n", docID)
			summary.ParseFailed++
		}
	}

	fmt.Fprintf(w, "\nBatch summary: %d parsed, %d parse-failed, %d skipped, %d failed (total: %d)\n",
		summary.Parsed, summary.ParseFailed, summary.Skipped, summary.Failed, summary.Total())
	return summary, nil
}

// outputRecord fixes the per-document JSON output to exactly the five
// record fields; the document identifier is the filename.
type outputRecord struct {
	PolymerSystem string  `json:"polymer_system"`
	ForceField    string  `json:"force_field"`
	Property      string  `json:"property"`
	Value         float64 `json:"value"`
	Unit          string  `json:"unit"`
}

func writeRecords(path string, records []types.PropertyRecord) error {
	out := make([]outputRecord, len(records))
	for i, r := range records {
		out[i] = outputRecord{
			PolymerSystem: r.PolymerSystem,
			ForceField:    r.ForceField,
			Property:      string(r.Property),
			Value:         r.Value,
			Unit:          r.Unit,
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling records: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadRecords loads a per-document extraction output written by
// ExtractBatch, reattaching the document identifier.
func ReadRecords(path string, docID types.DOI) ([]types.PropertyRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []outputRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	records := make([]types.PropertyRecord, len(out))
	for i, r := range out {
		records[i] = types.PropertyRecord{
			PolymerSystem: r.PolymerSystem,
			ForceField:    r.ForceField,
			Property:      types.Property(r.Property),
			Value:         r.Value,
			Unit:          r.Unit,
			DOI:           docID,
		}
	}
	return records, nil
}
