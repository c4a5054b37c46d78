package cli

import (
	"github.com/spf13/cobra"

	"curtailment-alerts/internal/app"
)

var (
	inspectPNGPath   string
	inspectCSVPath   string
	inspectThreshold float64
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Evaluate a local forecast artifact and print the report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.InspectOptions{
			Path:    args[0],
			PNGPath: inspectPNGPath,
			CSVPath: inspectCSVPath,
		}
		// --threshold 0 是合法覆盖, 仅在显式传入时生效
		if cmd.Flags().Changed("threshold") {
			opts.Threshold = &inspectThreshold
		}
		return getApp().Inspect(cmd.Context(), opts)
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectPNGPath, "png", "", "Path to write PNG price curve")
	inspectCmd.Flags().StringVar(&inspectCSVPath, "csv", "", "Path to write projected series CSV")
	inspectCmd.Flags().Float64Var(&inspectThreshold, "threshold", 0, "Override configured price threshold")
}
