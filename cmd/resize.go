package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/forecourt/internal/evidence"
)

var (
	resizeSrc   string
	resizeDst   string
	resizeWidth int
)

var resizeCmd = &cobra.Command{
	Use:   "resize",
	Short: "Scale every photo in a folder to a fixed width",
	RunE: func(cmd *cobra.Command, args []string) error {
		src := resizeSrc
		if src == "" {
			if cfg.Evidence.Driver == "gcs" {
				return eris.New("resize: --src is required when evidence.driver is gcs")
			}
			src = cfg.Evidence.Dir
		}
		dst := resizeDst
		if dst == "" {
			dst = src
		}
		width := resizeWidth
		if width == 0 {
			width = cfg.Resize.Width
		}

		sum, err := evidence.ResizeDir(cmd.Context(), src, dst, width)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), sum)
	},
}

func init() {
	resizeCmd.Flags().StringVar(&resizeSrc, "src", "", "source folder (default evidence.dir)")
	resizeCmd.Flags().StringVar(&resizeDst, "dst", "", "destination folder (default: overwrite in place)")
	resizeCmd.Flags().IntVar(&resizeWidth, "width", 0, "target width in pixels (default resize.width)")
	rootCmd.AddCommand(resizeCmd)
}
