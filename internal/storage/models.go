package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cycle status values.
const (
	StatusActuated = "actuated"
	StatusHeld     = "held"
	StatusSkipped  = "skipped"
	// StatusFailed means the command was computed but the actuator rejected it.
	StatusFailed   = "failed"
)

// CycleRecord is one persisted control cycle.
type CycleRecord struct {
	RunID       uuid.UUID
	Cycle       int64
	TickAt      time.Time
	TimestampUS int64
	Mode        string
	AngularRate decimal.Decimal
	FieldX      decimal.Decimal
	FieldY      decimal.Decimal
	FieldZ      decimal.Decimal
	MomentX     decimal.Decimal
	MomentY     decimal.Decimal
	MomentZ     decimal.Decimal
	DriveX      int16
	DriveY      int16
	DriveZ      int16
	Status      string
	Error       *string
	CreatedAt   time.Time
}

// ModeTransition records a change of control mode.
type ModeTransition struct {
	ID          int64
	RunID       uuid.UUID
	Cycle       int64
	FromMode    string
	ToMode      string
	AngularRate decimal.Decimal
	CreatedAt   time.Time
}
