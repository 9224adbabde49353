package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bdot-detumbler/internal/app"
)

var (
	showLimit       int
	showTransitions bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent control cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		a, err := getApp()
		if err != nil {
			return err
		}
		return a.Show(cmd.Context(), app.ShowOptions{Limit: showLimit, Transitions: showTransitions})
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().BoolVar(&showTransitions, "transitions", false, "Also list recent mode transitions")
}
