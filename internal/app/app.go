package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"

	"bdot-detumbler/internal/alerting"
	"bdot-detumbler/internal/bus"
	"bdot-detumbler/internal/config"
	"bdot-detumbler/internal/scheduler"
	"bdot-detumbler/internal/service"
	"bdot-detumbler/internal/sim"
	"bdot-detumbler/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	router := alerting.NewRouter(a.Logger)
	router.Register(alerting.ChannelLog, alerting.NewLogNotifier(a.Logger))
	if tg := a.Config.Alerting.Telegram; tg.Enabled {
		router.Register(alerting.ChannelTelegram, alerting.NewTelegramNotifier(tg.BotToken, tg.ChatID, tg.APIBase, tg.Timeout, a.Logger))
	}
	a.Logger.Debug().Strs("channels", router.Channels()).Msg("alert routes registered")
	return router
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	applied, err := storage.Migrate(ctx, pool, a.Config.Database.MigrationsPath)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	a.Logger.Debug().Int("migrations", applied).Msg("database schema ensured")

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// stores splits an optional store into the service's interfaces without
// producing typed nils.
func stores(store *storage.Store) (storage.CycleStore, storage.TransitionStore) {
	if store == nil {
		return nil, nil
	}
	return store, store
}

// Run executes the live control loop against the Redis sensor bus.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	interval := a.Config.Control.Interval
	if opts.Interval > 0 {
		interval = opts.Interval
	}
	if err := config.CheckSampleSpacing(a.Config.Estimator, interval); err != nil {
		return fmt.Errorf("--interval: %w", err)
	}

	var store *storage.Store
	if !opts.NoPersist {
		var closeStore func()
		var err error
		store, closeStore, err = a.openStore(ctx)
		if err != nil {
			return err
		}
		if closeStore != nil {
			defer closeStore()
		}
	}
	if store == nil {
		a.Logger.Warn().Msg("telemetry persistence disabled; the advisory lock is not taken")
	}

	sensorBus := bus.New(a.Config.Bus, a.Logger)
	defer sensorBus.Close()
	if err := sensorBus.Ping(ctx); err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     interval,
		AlignToStart: a.Config.Control.AlignToInterval,
		StartupDelay: a.Config.Control.StartupDelay,
	}, a.Logger)

	cycles, transitions := stores(store)
	svc, err := service.New(a.Config, sched, sensorBus.Suite(), cycles, transitions, a.newNotifier(), a.Logger)
	if err != nil {
		return err
	}

	a.Logger.Info().Str("run_id", svc.RunID().String()).Dur("interval", interval).Msg("starting control loop")
	err = svc.Run(ctx)
	stats := svc.Stats()
	a.Logger.Info().
		Int64("cycles", stats.Cycles).
		Int64("actuated", stats.Actuated).
		Int64("skipped", stats.Skipped).
		Int64("failed", stats.Failed).
		Int64("missed_ticks", sched.Skipped()).
		Msg("control loop stopped")

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("control loop terminated with error")
		return err
	}
	return nil
}

// RunOptions override the live loop configuration.
type RunOptions struct {
	Interval  time.Duration
	NoPersist bool
}

// SimulateOptions configure a closed-loop simulation.
type SimulateOptions struct {
	Duration time.Duration
	Persist  bool
	CSVPath  string
	PNGPath  string
}

// ReplayOptions configure offline reprocessing of a recorded log.
type ReplayOptions struct {
	Path   string
	DryRun bool
	Step   time.Duration
}

// ExportOptions hold parameters for exporting a persisted run.
type ExportOptions struct {
	RunID     *uuid.UUID
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit       int
	Transitions bool
}

func vec(v []float64) r3.Vec {
	if len(v) != 3 {
		return r3.Vec{}
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

func simConfig(cfg config.SimulationConfig, step time.Duration) sim.Config {
	if step <= 0 {
		step = cfg.Step
	}
	return sim.Config{
		Step:              step,
		Inertia:           vec(cfg.Inertia),
		InitialRate:       vec(cfg.InitialRate),
		Field:             vec(cfg.Field),
		FieldNoise:        cfg.FieldNoise,
		FieldRotationRate: cfg.FieldRotationRate,
		Seed:              cfg.Seed,
		SubsecondStart:    cfg.SubsecondStart,
		ClockJitter:       cfg.ClockJitter,
	}
}
