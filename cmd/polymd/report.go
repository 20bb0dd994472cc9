// Copyright PolyMD Authors, 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/apaudelx/PolyMD/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the run ledger summary",
	Long: `Report summarizes the run ledger: per-stage outcome counts across all
documents, followed by every recorded failure with its detail, so a batch's
losses are inspectable without opening the database.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}

	ledger, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer ledger.Close()

	return ledger.WriteReport(cmd.Context(), os.Stdout)
}
