package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"bdot-detumbler/internal/storage"
)

// Show prints recent control cycles and mode transitions.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show cycles")
	}
	if closeStore != nil {
		defer closeStore()
	}

	cycles, err := store.ListRecentCycles(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(cycles) == 0 {
		fmt.Fprintln(os.Stdout, "no cycles found")
		return nil
	}
	if err := printCycles(os.Stdout, cycles); err != nil {
		return err
	}

	if !opts.Transitions {
		return nil
	}
	transitions, err := store.ListRecentTransitions(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(transitions) > 0 {
		fmt.Fprintln(os.Stdout)
		return printTransitions(os.Stdout, transitions)
	}
	return nil
}

func printCycles(w io.Writer, cycles []storage.CycleRecord) error {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tCycle\tMode\tRate (rad/s)\tDrive\tStatus\tError")

	for _, rec := range cycles {
		errMsg := ""
		if rec.Error != nil {
			errMsg = sanitizeInline(*rec.Error)
		}
		fmt.Fprintf(
			writer,
			"%s\t%d\t%s\t%s\t%d/%d/%d\t%s\t%s\n",
			rec.TickAt.UTC().Format(time.RFC3339Nano),
			rec.Cycle,
			rec.Mode,
			rec.AngularRate.StringFixed(4),
			rec.DriveX, rec.DriveY, rec.DriveZ,
			rec.Status,
			errMsg,
		)
	}
	return writer.Flush()
}

func printTransitions(w io.Writer, transitions []storage.ModeTransition) error {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tRun\tCycle\tFrom\tTo\tRate (rad/s)")
	for _, tr := range transitions {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%s\t%s\t%s\n",
			tr.CreatedAt.UTC().Format(time.RFC3339),
			tr.RunID.String()[:8],
			tr.Cycle,
			tr.FromMode,
			tr.ToMode,
			tr.AngularRate.StringFixed(4),
		)
	}
	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
