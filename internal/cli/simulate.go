package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"bdot-detumbler/internal/app"
)

var (
	simulateDuration time.Duration
	simulateCSVPath  string
	simulatePNGPath  string
	simulatePersist  bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Detumble the built-in spacecraft model in closed loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateDuration < 0 {
			return errors.New("--duration must not be negative")
		}

		opts := app.SimulateOptions{
			Duration: simulateDuration,
			Persist:  simulatePersist,
			CSVPath:  simulateCSVPath,
			PNGPath:  simulatePNGPath,
		}
		a, err := getApp()
		if err != nil {
			return err
		}
		return a.Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().DurationVar(&simulateDuration, "duration", 0, "Simulated time span (defaults to config)")
	simulateCmd.Flags().StringVar(&simulateCSVPath, "csv", "", "Path to write per-cycle CSV")
	simulateCmd.Flags().StringVar(&simulatePNGPath, "png", "", "Path to write PNG chart")
	simulateCmd.Flags().BoolVar(&simulatePersist, "persist", false, "Write cycles to the database")
}
