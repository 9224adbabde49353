package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bdot-detumbler/internal/app"
)

var (
	replayFile   string
	replayDryRun bool
	replayStep   time.Duration
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Reprocess a recorded sensor log",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayFile == "" {
			return fmt.Errorf("--file must be provided")
		}

		opts := app.ReplayOptions{
			Path:   replayFile,
			DryRun: replayDryRun,
			Step:   replayStep,
		}
		a, err := getApp()
		if err != nil {
			return err
		}
		return a.Replay(cmd.Context(), opts)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayFile, "file", "", "CSV log: seconds,subseconds,bx,by,bz,wx,wy,wz")
	replayCmd.Flags().BoolVar(&replayDryRun, "dry-run", false, "Run without writing to storage")
	replayCmd.Flags().DurationVar(&replayStep, "step", 0, "Tick spacing for stored cycles (defaults to control.interval)")
}
