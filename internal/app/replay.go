package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"bdot-detumbler/internal/clock"
	"bdot-detumbler/internal/sensor"
	"bdot-detumbler/internal/service"
	"bdot-detumbler/internal/storage"
)

var replayHeader = []string{"seconds", "subseconds", "bx", "by", "bz", "wx", "wy", "wz"}

// ReadFrames parses a recorded sensor log. A header row is optional.
func ReadFrames(r io.Reader) ([]sensor.Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(replayHeader)
	reader.TrimLeadingSpace = true

	var frames []sensor.Frame
	line := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, err
		}
		if line == 1 && strings.EqualFold(row[0], replayHeader[0]) {
			continue
		}
		frame, err := parseFrame(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func parseFrame(row []string) (sensor.Frame, error) {
	sec, err := strconv.ParseUint(row[0], 10, 32)
	if err != nil {
		return sensor.Frame{}, fmt.Errorf("seconds: %w", err)
	}
	sub, err := strconv.ParseUint(row[1], 10, 32)
	if err != nil {
		return sensor.Frame{}, fmt.Errorf("subseconds: %w", err)
	}
	values := make([]float64, 6)
	for i := range values {
		v, err := strconv.ParseFloat(row[i+2], 64)
		if err != nil {
			return sensor.Frame{}, fmt.Errorf("%s: %w", replayHeader[i+2], err)
		}
		values[i] = v
	}
	return sensor.Frame{
		Clock: clock.Reading{Seconds: uint32(sec), Subseconds: uint32(sub)},
		Field: r3.Vec{X: values[0], Y: values[1], Z: values[2]},
		Rate:  r3.Vec{X: values[3], Y: values[4], Z: values[5]},
	}, nil
}

// Replay feeds a recorded sensor log through a fresh control pipeline.
func (a *App) Replay(ctx context.Context, opts ReplayOptions) error {
	if opts.Path == "" {
		return errors.New("--file is required")
	}
	file, err := os.Open(opts.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	frames, err := ReadFrames(file)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return errors.New("replay file contains no frames")
	}

	var store *storage.Store
	if opts.DryRun {
		a.Logger.Warn().Msg("replay dry-run: nothing will be written to the database")
	} else {
		var closeStore func()
		store, closeStore, err = a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("database.dsn not configured; use --dry-run to replay without persistence")
		}
		if closeStore != nil {
			defer closeStore()
		}
	}

	playback := &sensor.Playback{}
	cycles, transitions := stores(store)
	svc, err := service.New(a.Config, nil, playback.Suite(), cycles, transitions, nil, a.Logger)
	if err != nil {
		return err
	}

	step := opts.Step
	if step <= 0 {
		step = a.Config.Control.Interval
	}
	tick := time.Now().UTC()
	for _, frame := range frames {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		playback.Load(frame)
		if _, err := svc.Step(ctx, tick); err != nil {
			return err
		}
		tick = tick.Add(step)
	}

	stats := svc.Stats()
	a.Logger.Info().
		Str("run_id", svc.RunID().String()).
		Int("frames", len(frames)).
		Int64("actuated", stats.Actuated).
		Int64("held", stats.Held).
		Int64("skipped", stats.Skipped).
		Int64("transitions", stats.Transitions).
		Msg("replay completed")
	return nil
}
