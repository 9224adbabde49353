package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	chart "github.com/wcharczuk/go-chart/v2"

	"bdot-detumbler/internal/storage"
)

// Export renders a persisted run as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	var runID uuid.UUID
	if opts.RunID != nil {
		runID = *opts.RunID
	} else {
		runID, err = store.LatestRun(ctx)
		if err != nil {
			return err
		}
	}

	cycles, err := store.ListRunCycles(ctx, runID)
	if err != nil {
		return err
	}
	if len(cycles) == 0 {
		a.Logger.Info().Str("run_id", runID.String()).Msg("no cycles found for run")
		return nil
	}

	a.Logger.Info().Str("run_id", runID.String()).Int("total", len(cycles)).Msg("exporting cycles")
	return a.writeOutputs(cycles, opts.CSVPath, opts.PNGPath, a.Config.ResolveMaxPoints(opts.MaxPoints))
}

func downsampleCycles(cycles []storage.CycleRecord, max int) []storage.CycleRecord {
	if max <= 0 || len(cycles) <= max {
		return cycles
	}
	if max == 1 {
		return cycles[:1]
	}

	result := make([]storage.CycleRecord, 0, max)
	step := float64(len(cycles)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(cycles) {
			idx = len(cycles) - 1
		}
		result = append(result, cycles[idx])
	}
	return result
}

var cycleHeader = []string{
	"run_id", "cycle", "tick_at", "timestamp_us", "mode", "angular_rate",
	"field_x", "field_y", "field_z", "moment_x", "moment_y", "moment_z",
	"drive_x", "drive_y", "drive_z", "status", "error",
}

func writeCyclesCSV(path string, cycles []storage.CycleRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(cycleHeader); err != nil {
		return err
	}

	for _, rec := range cycles {
		errMsg := ""
		if rec.Error != nil {
			errMsg = *rec.Error
		}
		row := []string{
			rec.RunID.String(),
			strconv.FormatInt(rec.Cycle, 10),
			rec.TickAt.UTC().Format(time.RFC3339Nano),
			strconv.FormatInt(rec.TimestampUS, 10),
			rec.Mode,
			rec.AngularRate.String(),
			rec.FieldX.String(),
			rec.FieldY.String(),
			rec.FieldZ.String(),
			rec.MomentX.String(),
			rec.MomentY.String(),
			rec.MomentZ.String(),
			strconv.Itoa(int(rec.DriveX)),
			strconv.Itoa(int(rec.DriveY)),
			strconv.Itoa(int(rec.DriveZ)),
			rec.Status,
			errMsg,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeCyclesPNG(path string, cycles []storage.CycleRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	seconds := make([]float64, len(cycles))
	rate := make([]float64, len(cycles))
	drives := [3][]float64{
		make([]float64, len(cycles)),
		make([]float64, len(cycles)),
		make([]float64, len(cycles)),
	}

	origin := cycles[0].TimestampUS
	for i, rec := range cycles {
		seconds[i] = float64(rec.TimestampUS-origin) / 1e6
		rate[i] = rec.AngularRate.InexactFloat64()
		drives[0][i] = float64(rec.DriveX)
		drives[1][i] = float64(rec.DriveY)
		drives[2][i] = float64(rec.DriveZ)
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name: "Elapsed (s)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		YAxis: chart.YAxis{
			Name: "Angular rate (rad/s)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.3f")
			},
		},
		YAxisSecondary: chart.YAxis{
			Name: "Drive",
			Range: &chart.ContinuousRange{
				Min: -128,
				Max: 128,
			},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{Name: "|w|", XValues: seconds, YValues: rate},
			chart.ContinuousSeries{Name: "Drive X", XValues: seconds, YValues: drives[0], YAxis: chart.YAxisSecondary},
			chart.ContinuousSeries{Name: "Drive Y", XValues: seconds, YValues: drives[1], YAxis: chart.YAxisSecondary},
			chart.ContinuousSeries{Name: "Drive Z", XValues: seconds, YValues: drives[2], YAxis: chart.YAxisSecondary},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
