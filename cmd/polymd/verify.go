// Copyright PolyMD Authors, 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/apaudelx/PolyMD/internal/store"
	"github.com/apaudelx/PolyMD/internal/verify"
	"github.com/apaudelx/PolyMD/pkg/types"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify extracted property records against source articles",
	Long: `Verify reviews every extracted property record with two independent
verifier models. Values are first converted to canonical units from the
configured table; each verifier then judges, per record, whether the property
was actually studied and whether the value matches the article. Results are
written as a CSV with one row per record and one answer column per verifier.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().String("output", "", "verification results CSV path (overrides config)")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		cfg.Verification.OutputPath = out
	}

	engine := verify.NewEngine(cfg.Verification)
	rows, _, err := engine.VerifyBatch(cmd.Context(),
		cfg.Extraction.DocsDir, cfg.Extraction.OutputDir,
		cfg.Verification.OutputPath, os.Stdout)
	if err != nil {
		return err
	}

	return recordVerifications(cmd, cfg.Store, rows)
}

// recordVerifications collapses per-record verdicts into one ledger
// outcome per document: verified, or verified_with_errors when any
// verdict is an error.
func recordVerifications(cmd *cobra.Command, cfg types.StoreConfig, rows []verify.RecordVerdicts) error {
	ledger, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	type docState struct {
		records int
		errored bool
	}
	states := make(map[types.DOI]*docState)
	var order []types.DOI

	for _, row := range rows {
		if len(row.Verdicts) == 0 {
			continue
		}
		doi := row.Verdicts[0].DOI
		st, ok := states[doi]
		if !ok {
			st = &docState{}
			states[doi] = st
			order = append(order, doi)
		}
		st.records++
		for _, v := range row.Verdicts {
			if v.Verdict == types.VerdictError {
				st.errored = true
			}
		}
	}

	for _, doi := range order {
		st := states[doi]
		status := store.StatusVerified
		if st.errored {
			status = store.StatusVerifiedWithErrors
		}
		detail := fmt.Sprintf("%d records", st.records)
		if err := ledger.Record(cmd.Context(), string(doi), store.StageVerify, status, detail); err != nil {
			return err
		}
	}
	return nil
}
