package main

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/forecourt/internal/model"
	"github.com/sells-group/forecourt/internal/results"
	"github.com/sells-group/forecourt/internal/store"
)

var (
	correctBrand   string
	correctHasShop string
	correctNote    string
	correctBy      string
)

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Manage human brand corrections",
}

var correctSetCmd = &cobra.Command{
	Use:   "set <site-id>",
	Short: "Record or replace the correction for a site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := buildCorrection(args[0], cmd.Flags().Changed("brand"), correctBrand, correctHasShop)
		if err != nil {
			return err
		}
		c.Note = correctNote
		c.CorrectedBy = correctBy

		// Record what the model said so the correction stays auditable.
		table, err := results.New(cfg.Results)
		if err != nil {
			return err
		}
		rows, err := table.List(ctx)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if results.Canonical(r.SiteID) == c.SiteID {
				c.OriginalBrand = r.ShopBrand
				break
			}
		}

		st, err := store.Open(ctx, cfg.Corrections)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		saved, err := st.UpsertCorrection(ctx, c)
		if err != nil {
			return err
		}
		zap.L().Info("correction saved", zap.String("site_id", saved.SiteID))
		return writeJSON(cmd.OutOrStdout(), saved)
	},
}

var correctDeleteCmd = &cobra.Command{
	Use:   "delete <site-id>",
	Short: "Remove the correction for a site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cmd.Context(), cfg.Corrections)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		return st.DeleteCorrection(cmd.Context(), results.Canonical(args[0]))
	},
}

var correctListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print all corrections as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cmd.Context(), cfg.Corrections)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListCorrections(cmd.Context())
		if err != nil {
			return err
		}
		if list == nil {
			list = []model.Correction{}
		}
		return writeJSON(cmd.OutOrStdout(), list)
	},
}

// buildCorrection validates the set flags. An explicit empty --brand clears
// the brand; --has-shop accepts anything strconv.ParseBool does.
func buildCorrection(siteID string, brandSet bool, brand, hasShop string) (model.Correction, error) {
	c := model.Correction{SiteID: results.Canonical(siteID)}
	if c.SiteID == "" {
		return c, eris.New("correct: site id is required")
	}
	if brandSet {
		c.CorrectedBrand = model.String(brand)
	}
	if hasShop != "" {
		b, err := strconv.ParseBool(hasShop)
		if err != nil {
			return c, eris.Wrapf(err, "correct: invalid --has-shop %q", hasShop)
		}
		c.HasShop = model.Bool(b)
	}
	if c.CorrectedBrand == nil && c.HasShop == nil {
		return c, eris.New("correct: set --brand or --has-shop")
	}
	return c, nil
}

func init() {
	correctSetCmd.Flags().StringVar(&correctBrand, "brand", "", "corrected shop brand")
	correctSetCmd.Flags().StringVar(&correctHasShop, "has-shop", "", "corrected shop presence (true/false)")
	correctSetCmd.Flags().StringVar(&correctNote, "note", "", "free-text note")
	correctSetCmd.Flags().StringVar(&correctBy, "by", "", "reviewer name")

	correctCmd.AddCommand(correctSetCmd, correctDeleteCmd, correctListCmd)
	rootCmd.AddCommand(correctCmd)
}
