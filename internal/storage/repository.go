package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const cycleColumns = `run_id,
        cycle,
        tick_at,
        timestamp_us,
        mode,
        angular_rate,
        field_x,
        field_y,
        field_z,
        moment_x,
        moment_y,
        moment_z,
        drive_x,
        drive_y,
        drive_z,
        status,
        error`

const (
	insertCycleSQL = `INSERT INTO control_cycles (
        ` + cycleColumns + `
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
    )
    ON CONFLICT (run_id, cycle) DO NOTHING;`

	listRunCyclesSQL = `SELECT
        ` + cycleColumns + `,
        created_at
    FROM control_cycles
    WHERE run_id = $1
    ORDER BY cycle;`

	listRecentCyclesSQL = `SELECT
        ` + cycleColumns + `,
        created_at
    FROM control_cycles
    ORDER BY tick_at DESC, cycle DESC
    LIMIT $1;`

	latestRunSQL = `SELECT run_id FROM control_cycles ORDER BY tick_at DESC LIMIT 1;`

	countCyclesSQL = `SELECT COUNT(*) FROM control_cycles;`

	insertTransitionSQL = `INSERT INTO mode_transitions (
        run_id,
        cycle,
        from_mode,
        to_mode,
        angular_rate
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (run_id, cycle) DO UPDATE
    SET from_mode    = EXCLUDED.from_mode,
        to_mode      = EXCLUDED.to_mode,
        angular_rate = EXCLUDED.angular_rate
    RETURNING id, run_id, cycle, from_mode, to_mode, angular_rate, created_at;`

	listRecentTransitionsSQL = `SELECT
        id,
        run_id,
        cycle,
        from_mode,
        to_mode,
        angular_rate,
        created_at
    FROM mode_transitions
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteCyclesBeforeSQL = `DELETE FROM control_cycles WHERE tick_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// CycleStore defines operations for control cycle persistence.
type CycleStore interface {
	InsertCycle(ctx context.Context, rec CycleRecord) error
	ListRunCycles(ctx context.Context, runID uuid.UUID) ([]CycleRecord, error)
	ListRecentCycles(ctx context.Context, limit int) ([]CycleRecord, error)
	LatestRun(ctx context.Context) (uuid.UUID, error)
	CountCycles(ctx context.Context) (int64, error)
	DeleteCyclesBefore(ctx context.Context, olderThan time.Time) error
}

// TransitionStore defines operations for mode transition auditing.
type TransitionStore interface {
	InsertTransition(ctx context.Context, tr ModeTransition) (ModeTransition, error)
	ListRecentTransitions(ctx context.Context, limit int) ([]ModeTransition, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to control cycles and mode transitions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
// The lock is session scoped, so the connection is held until unlock.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertCycle persists a control cycle. Re-inserting the same (run, cycle) is a no-op.
func (s *Store) InsertCycle(ctx context.Context, rec CycleRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if rec.Error != nil {
		errMsg = *rec.Error
	}

	_, execErr := pool.Exec(ctx, insertCycleSQL,
		rec.RunID,
		rec.Cycle,
		rec.TickAt,
		rec.TimestampUS,
		rec.Mode,
		rec.AngularRate.String(),
		rec.FieldX.String(),
		rec.FieldY.String(),
		rec.FieldZ.String(),
		rec.MomentX.String(),
		rec.MomentY.String(),
		rec.MomentZ.String(),
		rec.DriveX,
		rec.DriveY,
		rec.DriveZ,
		rec.Status,
		errMsg,
	)
	if execErr != nil {
		return fmt.Errorf("insert cycle: %w", execErr)
	}
	return nil
}

// ListRunCycles returns every cycle of a run in order.
func (s *Store) ListRunCycles(ctx context.Context, runID uuid.UUID) ([]CycleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRunCyclesSQL, runID)
	if queryErr != nil {
		return nil, fmt.Errorf("list run cycles: %w", queryErr)
	}
	return collectCycles(rows, 0)
}

// ListRecentCycles lists the most recent cycles, newest first.
func (s *Store) ListRecentCycles(ctx context.Context, limit int) ([]CycleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentCyclesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent cycles: %w", queryErr)
	}
	return collectCycles(rows, limit)
}

// LatestRun returns the run id of the most recent cycle.
func (s *Store) LatestRun(ctx context.Context) (uuid.UUID, error) {
	pool, err := s.getPool()
	if err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	if scanErr := pool.QueryRow(ctx, latestRunSQL).Scan(&id); scanErr != nil {
		return uuid.Nil, fmt.Errorf("latest run: %w", scanErr)
	}
	return id, nil
}

// CountCycles counts stored cycles.
func (s *Store) CountCycles(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countCyclesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count cycles: %w", scanErr)
	}
	return count, nil
}

// DeleteCyclesBefore prunes old telemetry.
func (s *Store) DeleteCyclesBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteCyclesBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete cycles before: %w", execErr)
	}
	return nil
}

// InsertTransition persists a mode change.
func (s *Store) InsertTransition(ctx context.Context, tr ModeTransition) (ModeTransition, error) {
	pool, err := s.getPool()
	if err != nil {
		return ModeTransition{}, err
	}

	row := pool.QueryRow(ctx, insertTransitionSQL,
		tr.RunID,
		tr.Cycle,
		tr.FromMode,
		tr.ToMode,
		tr.AngularRate.String(),
	)

	rec, scanErr := scanTransition(row)
	if scanErr != nil {
		return ModeTransition{}, fmt.Errorf("insert transition: %w", scanErr)
	}
	return rec, nil
}

// ListRecentTransitions lists the most recent mode changes.
func (s *Store) ListRecentTransitions(ctx context.Context, limit int) ([]ModeTransition, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentTransitionsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent transitions: %w", queryErr)
	}
	defer rows.Close()

	out := make([]ModeTransition, 0, limit)
	for rows.Next() {
		rec, scanErr := scanTransition(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanTransition(row pgx.Row) (ModeTransition, error) {
	var rec ModeTransition
	var rateStr string
	if err := row.Scan(
		&rec.ID,
		&rec.RunID,
		&rec.Cycle,
		&rec.FromMode,
		&rec.ToMode,
		&rateStr,
		&rec.CreatedAt,
	); err != nil {
		return ModeTransition{}, err
	}

	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return ModeTransition{}, fmt.Errorf("parse angular rate: %w", err)
	}
	rec.AngularRate = rate
	return rec, nil
}

func collectCycles(rows pgx.Rows, capacity int) ([]CycleRecord, error) {
	defer rows.Close()

	out := make([]CycleRecord, 0, capacity)
	for rows.Next() {
		rec, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanCycle(rows pgx.Rows) (CycleRecord, error) {
	var (
		rec     CycleRecord
		numeric [7]string
		errMsg  sql.NullString
	)

	if err := rows.Scan(
		&rec.RunID,
		&rec.Cycle,
		&rec.TickAt,
		&rec.TimestampUS,
		&rec.Mode,
		&numeric[0],
		&numeric[1],
		&numeric[2],
		&numeric[3],
		&numeric[4],
		&numeric[5],
		&numeric[6],
		&rec.DriveX,
		&rec.DriveY,
		&rec.DriveZ,
		&rec.Status,
		&errMsg,
		&rec.CreatedAt,
	); err != nil {
		return CycleRecord{}, err
	}

	targets := []*decimal.Decimal{
		&rec.AngularRate,
		&rec.FieldX, &rec.FieldY, &rec.FieldZ,
		&rec.MomentX, &rec.MomentY, &rec.MomentZ,
	}
	for i, dst := range targets {
		v, err := decimal.NewFromString(numeric[i])
		if err != nil {
			return CycleRecord{}, fmt.Errorf("parse numeric column %d: %w", i, err)
		}
		*dst = v
	}

	if errMsg.Valid {
		msg := errMsg.String
		rec.Error = &msg
	}
	return rec, nil
}

var (
	_ CycleStore      = (*Store)(nil)
	_ TransitionStore = (*Store)(nil)
	_ AdvisoryLocker  = (*Store)(nil)
)
