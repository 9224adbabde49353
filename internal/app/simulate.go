package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"bdot-detumbler/internal/config"
	"bdot-detumbler/internal/service"
	"bdot-detumbler/internal/sim"
	"bdot-detumbler/internal/storage"
)

// Simulate closes the control loop around the built-in spacecraft model.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	duration := opts.Duration
	if duration <= 0 {
		duration = a.Config.Simulation.Duration
	}
	if duration <= 0 {
		return errors.New("simulation duration must be positive")
	}

	if err := config.CheckSampleSpacing(a.Config.Estimator, a.Config.Simulation.Step); err != nil {
		return fmt.Errorf("simulation.step: %w", err)
	}

	torquers, err := a.Config.Actuator.Torquers()
	if err != nil {
		return err
	}
	craft, err := sim.New(simConfig(a.Config.Simulation, 0), torquers)
	if err != nil {
		return err
	}

	var store *storage.Store
	if opts.Persist {
		var closeStore func()
		store, closeStore, err = a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("database.dsn not configured; cannot persist simulation")
		}
		if closeStore != nil {
			defer closeStore()
		}
	}

	cycles, transitions := stores(store)
	svc, err := service.New(a.Config, nil, craft.Suite(), cycles, transitions, a.newNotifier(), a.Logger)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Str("run_id", svc.RunID().String()).
		Dur("duration", duration).
		Float64("initial_rate", r3.Norm(craft.Rate())).
		Msg("simulation starting")

	start := time.Now().UTC()
	var records []storage.CycleRecord
	for craft.Elapsed() < duration {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		res, err := svc.Step(ctx, start.Add(craft.Elapsed()))
		if err != nil {
			return err
		}
		if opts.CSVPath != "" || opts.PNGPath != "" {
			records = append(records, service.ToRecord(svc.RunID(), res))
		}
		craft.Advance()
	}

	stats := svc.Stats()
	a.Logger.Info().
		Int64("cycles", stats.Cycles).
		Int64("actuated", stats.Actuated).
		Int64("held", stats.Held).
		Int64("skipped", stats.Skipped).
		Int64("transitions", stats.Transitions).
		Float64("final_rate", r3.Norm(craft.Rate())).
		Msg("simulation completed")

	return a.writeOutputs(records, opts.CSVPath, opts.PNGPath, a.Config.ResolveMaxPoints(0))
}

func (a *App) writeOutputs(records []storage.CycleRecord, csvPath, pngPath string, maxPoints int) error {
	if len(records) == 0 {
		return nil
	}
	records = downsampleCycles(records, maxPoints)
	if csvPath != "" {
		if err := writeCyclesCSV(csvPath, records); err != nil {
			return err
		}
		a.Logger.Info().Str("path", csvPath).Int("rows", len(records)).Msg("csv written")
	}
	if pngPath != "" {
		if err := writeCyclesPNG(pngPath, records); err != nil {
			return err
		}
		a.Logger.Info().Str("path", pngPath).Msg("chart written")
	}
	return nil
}
