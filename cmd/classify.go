package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/forecourt/internal/monitoring"
	"github.com/sells-group/forecourt/internal/pipeline"
)

var (
	classifyLimit   int
	classifyDryRun  bool
	classifyPrompt  string
	classifyBackend string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify every site that has photos but no result row",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if classifyBackend != "" {
			cfg.Inference.Backend = classifyBackend
		}
		if classifyPrompt != "" {
			cfg.Inference.Prompt = classifyPrompt
		}
		limit := classifyLimit
		if limit == 0 {
			limit = cfg.Pipeline.Limit
		}

		env, err := initClassify(ctx, cfg, !classifyDryRun)
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := env.Pipeline.Run(ctx, pipeline.Options{Limit: limit, DryRun: classifyDryRun})
		if sum != nil && !classifyDryRun {
			alerter := monitoring.NewAlerter(cfg.Monitoring)
			alerter.SendAlerts(cmd.Context(), alerter.Evaluate(sum))
		}
		if sum != nil {
			if werr := writeJSON(cmd.OutOrStdout(), sum); werr != nil && err == nil {
				err = werr
			}
		}
		return err
	},
}

func init() {
	classifyCmd.Flags().IntVar(&classifyLimit, "limit", 0, "max sites to attempt (default from config, 0 = all)")
	classifyCmd.Flags().BoolVar(&classifyDryRun, "dry-run", false, "list the sites that would be attempted without calling a backend")
	classifyCmd.Flags().StringVar(&classifyPrompt, "prompt", "", "prompt variant (basic, brand-rules)")
	classifyCmd.Flags().StringVar(&classifyBackend, "backend", "", "inference backend (openai, gemini, anthropic)")
	rootCmd.AddCommand(classifyCmd)
}
