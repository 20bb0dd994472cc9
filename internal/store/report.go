// Copyright PolyMD Authors, 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"io"
)

// Report summarizes the ledger across all documents.
type Report struct {
	// Documents is the number of distinct identifiers in the ledger.
	Documents int

	// Counts maps stage to status to document count.
	Counts map[Stage]map[Status]int
}

// reportStages fixes the print order.
var reportStages = []struct {
	Stage    Stage
	Statuses []Status
}{
	{StageResolve, []Status{StatusResolved, StatusResolutionFailed}},
	{StageExtract, []Status{StatusParsed, StatusParseFailed}},
	{StageVerify, []Status{StatusVerified, StatusVerifiedWithErrors}},
}

// Report aggregates outcome counts per stage and status.
func (s *Store) Report(ctx context.Context) (Report, error) {
	r := Report{Counts: make(map[Stage]map[Status]int)}

	if err := s.db.QueryRowContext(ctx,
		`SELECT count(DISTINCT doc_id) FROM outcomes`).Scan(&r.Documents); err != nil {
		return r, fmt.Errorf("counting documents: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, status, count(*) FROM outcomes GROUP BY stage, status`)
	if err != nil {
		return r, fmt.Errorf("querying outcome counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stage, status string
		var n int
		if err := rows.Scan(&stage, &status, &n); err != nil {
			return r, fmt.Errorf("scanning count: %w", err)
		}
		if r.Counts[Stage(stage)] == nil {
			r.Counts[Stage(stage)] = make(map[Status]int)
		}
		r.Counts[Stage(stage)][Status(status)] = n
	}
	return r, rows.Err()
}

// WriteReport prints the ledger summary followed by every failed
// document, so a run's losses are inspectable without opening the
// database.
func (s *Store) WriteReport(ctx context.Context, w io.Writer) error {
	r, err := s.Report(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run ledger: %d documents\n", r.Documents)
	for _, rs := range reportStages {
		counts := r.Counts[rs.Stage]
		if len(counts) == 0 {
			continue
		}
		fmt.Fprintf(w, "  %s:", rs.Stage)
		for _, status := range rs.Statuses {
			fmt.Fprintf(w, " %s=%d", status, counts[status])
		}
		fmt.Fprintln(w)
	}

	failures, err := s.failures(ctx)
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		for _, o := range failures {
			if o.Detail != "" {
				fmt.Fprintf(w, "  %s  %s/%s: %s\n", o.DocID, o.Stage, o.Status, o.Detail)
			} else {
				fmt.Fprintf(w, "  %s  %s/%s\n", o.DocID, o.Stage, o.Status)
			}
		}
	}
	return nil
}

func (s *Store) failures(ctx context.Context) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, stage, status, detail, updated_at FROM outcomes
		 WHERE status IN (?, ?, ?)
		 ORDER BY doc_id, stage`,
		string(StatusResolutionFailed), string(StatusParseFailed), string(StatusVerifiedWithErrors))
	if err != nil {
		return nil, fmt.Errorf("querying failures: %w", err)
	}
	defer rows.Close()
	return scanOutcomes(rows)
}
