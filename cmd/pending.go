package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Print the SiteIDs that still need a result row",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initClassify(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer env.Close()

		universe, pending, err := env.Pipeline.PendingSites(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range pending {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		zap.L().Info("pending sites",
			zap.Int("universe", len(universe)),
			zap.Int("pending", len(pending)),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pendingCmd)
}
