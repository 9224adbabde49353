package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"bdot-detumbler/internal/app"
)

var (
	runInterval  time.Duration
	runNoPersist bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control loop against the sensor bus",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runInterval < 0 {
			return errors.New("--interval must not be negative")
		}
		a, err := getApp()
		if err != nil {
			return err
		}
		return a.Run(cmd.Context(), app.RunOptions{Interval: runInterval, NoPersist: runNoPersist})
	},
}

func init() {
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "Control period override (defaults to control.interval)")
	runCmd.Flags().BoolVar(&runNoPersist, "no-persist", false, "Do not write cycles to the database")
}
