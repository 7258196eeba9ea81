package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/forecourt/internal/results"
	"github.com/sells-group/forecourt/internal/store"
)

var (
	resultsXLSX      string
	resultsCorrected bool
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Print the results table as JSON or export it to XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		table, err := results.New(cfg.Results)
		if err != nil {
			return err
		}
		rows, err := table.List(ctx)
		if err != nil {
			return err
		}

		if resultsCorrected {
			st, err := store.Open(ctx, cfg.Corrections)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			corrections, err := st.ListCorrections(ctx)
			if err != nil {
				return err
			}
			store.Overlay(rows, corrections)
		}

		if resultsXLSX != "" {
			if err := results.WriteXLSX(resultsXLSX, cfg.Results.Sheet, rows); err != nil {
				return err
			}
			zap.L().Info("results exported", zap.String("path", resultsXLSX), zap.Int("rows", len(rows)))
			return nil
		}
		return writeJSON(cmd.OutOrStdout(), rows)
	},
}

func init() {
	resultsCmd.Flags().StringVar(&resultsXLSX, "xlsx", "", "write an XLSX copy to this path instead of printing")
	resultsCmd.Flags().BoolVar(&resultsCorrected, "corrected", false, "overlay human corrections")
	rootCmd.AddCommand(resultsCmd)
}
