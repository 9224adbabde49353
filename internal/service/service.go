package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/spatial/r3"

	"bdot-detumbler/internal/actuator"
	"bdot-detumbler/internal/alerting"
	"bdot-detumbler/internal/clock"
	"bdot-detumbler/internal/config"
	"bdot-detumbler/internal/estimator"
	"bdot-detumbler/internal/mode"
	"bdot-detumbler/internal/scheduler"
	"bdot-detumbler/internal/sensor"
	"bdot-detumbler/internal/storage"
)

// Result describes one executed control cycle.
type Result struct {
	Cycle       int64
	Tick        time.Time
	Timestamp   uint64
	Mode        mode.Mode
	AngularRate float64
	Field       r3.Vec
	Moment      r3.Vec
	Drive       [3]int8
	Status      string
	EstimateErr error
}

// Stats counts cycle outcomes.
type Stats struct {
	Cycles      int64
	Actuated    int64
	Held        int64
	Skipped     int64
	Failed      int64
	Transitions int64
}

// Service owns one instance of each control component and runs the detumble
// pipeline once per tick. It is not safe for concurrent use.
type Service struct {
	scheduler   *scheduler.Scheduler
	sensors     sensor.Suite
	rescaler    *clock.Rescaler
	estimator   estimator.Estimator
	selector    *mode.Selector
	torquers    actuator.Torquers
	store       storage.CycleStore
	transitions storage.TransitionStore
	notifier    alerting.Notifier
	logger      zerolog.Logger

	runID    uuid.UUID
	cycle    int64
	stats    Stats
	channels []string
	alertsOn bool
	locker   storage.AdvisoryLocker
	lockKey  int64
}

// New constructs the control service from configuration. store, transitions
// and notifier may be nil.
func New(cfg *config.Config, sched *scheduler.Scheduler, sensors sensor.Suite, store storage.CycleStore, transitions storage.TransitionStore, notifier alerting.Notifier, logger zerolog.Logger) (*Service, error) {
	est, err := estimator.New(cfg.Estimator)
	if err != nil {
		return nil, err
	}

	torquers, err := cfg.Actuator.Torquers()
	if err != nil {
		return nil, err
	}

	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	runID := uuid.New()
	return &Service{
		scheduler:   sched,
		sensors:     sensors,
		rescaler:    clock.NewRescaler(),
		estimator:   est,
		selector:    mode.NewSelector(cfg.Mode),
		torquers:    torquers,
		store:       store,
		transitions: transitions,
		notifier:    notifier,
		logger:      logger.With().Str("component", "service").Str("run_id", runID.String()).Logger(),
		runID:       runID,
		channels:    cfg.Alerting.Channels,
		alertsOn:    cfg.Alerting.Enabled,
		locker:      locker,
		lockKey:     cfg.Control.AdvisoryLockKey,
	}, nil
}

// RunID identifies this service instance in persisted telemetry.
func (s *Service) RunID() uuid.UUID {
	return s.runID
}

// Stats returns cycle outcome counters.
func (s *Service) Stats() Stats {
	return s.stats
}

// Torquers returns the rod mappers in use.
func (s *Service) Torquers() actuator.Torquers {
	return s.torquers
}

// ErrLockHeld means another controller instance owns the torque rods.
var ErrLockHeld = errors.New("another controller holds the actuator lock")

// Run takes the advisory lock, if configured, and runs the periodic control
// loop while holding it.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		return ErrLockHeld
	}
	if unlock != nil {
		defer unlock()
	}

	s.logger.Info().Str("estimator", fmt.Sprintf("%T", s.estimator)).
		Float64("max_dipole_x", s.torquers.X.MaxDipole()).
		Float64("max_dipole_y", s.torquers.Y.MaxDipole()).
		Float64("max_dipole_z", s.torquers.Z.MaxDipole()).
		Msg("control loop starting")
	return s.scheduler.Run(ctx, s.ProcessCycle)
}

// ProcessCycle is the scheduler tick: one control cycle.
func (s *Service) ProcessCycle(ctx context.Context, tick time.Time) error {
	_, err := s.Step(ctx, tick)
	return err
}

// Step executes one control cycle without locking and returns its outcome.
func (s *Service) Step(ctx context.Context, tick time.Time) (Result, error) {
	reading, err := s.sensors.Clock.ReadClock(ctx)
	if err != nil {
		s.stats.Failed++
		return Result{}, fmt.Errorf("read clock: %w", err)
	}
	field, err := s.sensors.Magnetometer.ReadField(ctx)
	if err != nil {
		s.stats.Failed++
		return Result{}, fmt.Errorf("read magnetometer: %w", err)
	}
	rate, err := s.sensors.Gyroscope.ReadRate(ctx)
	if err != nil {
		s.stats.Failed++
		return Result{}, fmt.Errorf("read gyroscope: %w", err)
	}

	s.cycle++
	s.stats.Cycles++

	res := Result{
		Cycle:       s.cycle,
		Tick:        tick,
		Timestamp:   s.rescaler.Rescale(reading),
		Field:       field,
		AngularRate: r3.Norm(rate),
	}

	// the estimator runs every cycle so its history stays current
	res.Moment, res.EstimateErr = s.estimator.Estimate(estimator.Sample{Field: field, Timestamp: res.Timestamp})

	previous := s.selector.Mode()
	res.Mode = s.selector.Select(res.AngularRate)

	apply := true
	switch {
	case res.Mode != mode.Bdot:
		res.Status = storage.StatusHeld
	case res.EstimateErr != nil:
		res.Status = storage.StatusSkipped
		apply = false
		s.logger.Debug().Int64("cycle", res.Cycle).Str("reason", estimator.Kind(res.EstimateErr)).Msg("no actuation this cycle")
	default:
		res.Drive = s.torquers.Drive(res.Moment)
		res.Status = storage.StatusActuated
	}

	var applyErr error
	if apply {
		if err := s.sensors.Actuator.Apply(ctx, sensor.NewCommand(res.Drive, res.Mode, res.Timestamp)); err != nil {
			applyErr = fmt.Errorf("apply command: %w", err)
			res.Status = storage.StatusFailed
		}
	}

	switch {
	case applyErr != nil:
		s.stats.Failed++
	case res.Status == storage.StatusActuated:
		s.stats.Actuated++
	case res.Status == storage.StatusHeld:
		s.stats.Held++
	default:
		s.stats.Skipped++
	}

	s.persistCycle(ctx, res, applyErr)
	if res.Mode != previous {
		s.handleTransition(ctx, res, previous)
	}

	return res, applyErr
}

func (s *Service) persistCycle(ctx context.Context, res Result, applyErr error) {
	if s.store == nil {
		return
	}
	rec := ToRecord(s.runID, res)
	if applyErr != nil {
		msg := applyErr.Error()
		rec.Error = &msg
	}
	if err := s.store.InsertCycle(ctx, rec); err != nil {
		s.logger.Error().Err(err).Int64("cycle", res.Cycle).Msg("failed to persist cycle")
	}
}

func (s *Service) handleTransition(ctx context.Context, res Result, previous mode.Mode) {
	s.stats.Transitions++
	s.logger.Info().Int64("cycle", res.Cycle).
		Str("from", previous.String()).
		Str("to", res.Mode.String()).
		Float64("rate", res.AngularRate).
		Msg("control mode changed")

	if s.transitions != nil {
		tr := storage.ModeTransition{
			RunID:       s.runID,
			Cycle:       res.Cycle,
			FromMode:    previous.String(),
			ToMode:      res.Mode.String(),
			AngularRate: decimal.NewFromFloat(res.AngularRate),
		}
		if _, err := s.transitions.InsertTransition(ctx, tr); err != nil {
			s.logger.Error().Err(err).Int64("cycle", res.Cycle).Msg("failed to persist mode transition")
		}
	}

	if !s.alertsOn || s.notifier == nil || !notable(previous, res.Mode) {
		return
	}
	th := s.selector.Thresholds()
	note := alerting.Notification{
		RunID:       s.runID.String(),
		Cycle:       res.Cycle,
		At:          res.Tick,
		FromMode:    previous.String(),
		ToMode:      res.Mode.String(),
		AngularRate: decimal.NewFromFloat(res.AngularRate),
		Lower:       decimal.NewFromFloat(th.Lower),
		Upper:       decimal.NewFromFloat(th.Upper),
		Max:         decimal.NewFromFloat(th.Max),
		Channels:    s.channels,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Int64("cycle", res.Cycle).Msg("failed to dispatch notification")
	}
}

// notable reports whether an operator should hear about a transition: spin
// above Max, or coming to rest.
func notable(from, to mode.Mode) bool {
	return to == mode.Hysteresis || (to == mode.Idle && from != mode.Idle)
}

// ToRecord converts a cycle result into its persisted form.
func ToRecord(runID uuid.UUID, res Result) storage.CycleRecord {
	rec := storage.CycleRecord{
		RunID:       runID,
		Cycle:       res.Cycle,
		TickAt:      res.Tick.UTC(),
		TimestampUS: int64(res.Timestamp),
		Mode:        res.Mode.String(),
		AngularRate: decimal.NewFromFloat(res.AngularRate),
		FieldX:      decimal.NewFromFloat(res.Field.X),
		FieldY:      decimal.NewFromFloat(res.Field.Y),
		FieldZ:      decimal.NewFromFloat(res.Field.Z),
		MomentX:     decimal.NewFromFloat(res.Moment.X),
		MomentY:     decimal.NewFromFloat(res.Moment.Y),
		MomentZ:     decimal.NewFromFloat(res.Moment.Z),
		DriveX:      int16(res.Drive[0]),
		DriveY:      int16(res.Drive[1]),
		DriveZ:      int16(res.Drive[2]),
		Status:      res.Status,
		CreatedAt:   time.Now().UTC(),
	}
	if res.EstimateErr != nil {
		msg := estimator.Kind(res.EstimateErr)
		rec.Error = &msg
	}
	return rec
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
