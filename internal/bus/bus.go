// Package bus exchanges sensor readings and torque rod commands with the
// device drivers over Redis. Drivers keep the latest reading of each sensor in
// a hash; the controller writes the last command to a hash and publishes it.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"

	"bdot-detumbler/internal/clock"
	"bdot-detumbler/internal/config"
	"bdot-detumbler/internal/sensor"
)

// ErrNoReading means a driver has not published the requested reading yet.
var ErrNoReading = errors.New("bus: no reading published")

// Key suffixes under the configured prefix.
const (
	KeyField    = "mag"
	KeyRate     = "gyro"
	KeyClock    = "rtc"
	KeyActuator = "actuator"
)

// Bus is a Redis-backed sensor suite.
type Bus struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	logger  zerolog.Logger
}

// New builds a bus client. It does not connect until first use.
func New(cfg config.BusConfig, logger zerolog.Logger) *Bus {
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	return &Bus{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix:  cfg.Prefix,
		timeout: timeout,
		logger:  logger.With().Str("component", "bus").Logger(),
	}
}

// Ping checks connectivity.
func (b *Bus) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (b *Bus) Close() error {
	return b.client.Close()
}

// Key returns the full Redis key for suffix.
func (b *Bus) Key(suffix string) string {
	return FormatKey(b.prefix, suffix)
}

// FormatKey joins prefix and suffix with a colon.
func FormatKey(prefix, suffix string) string {
	if prefix == "" {
		return suffix
	}
	return prefix + ":" + suffix
}

func (b *Bus) readHash(ctx context.Context, suffix string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	values, err := b.client.HGetAll(ctx, b.Key(suffix)).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", suffix, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("read %s: %w", suffix, ErrNoReading)
	}
	return values, nil
}

// ReadField returns the latest magnetometer vector.
func (b *Bus) ReadField(ctx context.Context) (r3.Vec, error) {
	values, err := b.readHash(ctx, KeyField)
	if err != nil {
		return r3.Vec{}, err
	}
	return ParseVector(values)
}

// ReadRate returns the latest gyroscope vector.
func (b *Bus) ReadRate(ctx context.Context) (r3.Vec, error) {
	values, err := b.readHash(ctx, KeyRate)
	if err != nil {
		return r3.Vec{}, err
	}
	return ParseVector(values)
}

// ReadClock returns the latest RTC reading.
func (b *Bus) ReadClock(ctx context.Context) (clock.Reading, error) {
	values, err := b.readHash(ctx, KeyClock)
	if err != nil {
		return clock.Reading{}, err
	}
	return ParseReading(values)
}

// Apply stores the command in the actuator hash and publishes it on the
// actuator channel in one transaction.
func (b *Bus) Apply(ctx context.Context, cmd sensor.Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	key := b.Key(KeyActuator)
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, CommandFields(cmd))
		pipe.Publish(ctx, key, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply command: %w", err)
	}

	b.logger.Debug().Ints8("drive", cmd.Drive[:]).Str("mode", cmd.ModeName).Msg("command applied")
	return nil
}

// Suite exposes the bus as every sensor and the actuator.
func (b *Bus) Suite() sensor.Suite {
	return sensor.Suite{Magnetometer: b, Gyroscope: b, Clock: b, Actuator: b}
}

// ParseVector reads x, y and z float fields.
func ParseVector(values map[string]string) (r3.Vec, error) {
	var out [3]float64
	for i, field := range []string{"x", "y", "z"} {
		raw, ok := values[field]
		if !ok {
			return r3.Vec{}, fmt.Errorf("missing field %q", field)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return r3.Vec{}, fmt.Errorf("parse field %q: %w", field, err)
		}
		out[i] = v
	}
	return r3.Vec{X: out[0], Y: out[1], Z: out[2]}, nil
}

// ParseReading reads seconds and subseconds unsigned 32-bit fields.
func ParseReading(values map[string]string) (clock.Reading, error) {
	sec, err := parseUint32(values, "seconds")
	if err != nil {
		return clock.Reading{}, err
	}
	sub, err := parseUint32(values, "subseconds")
	if err != nil {
		return clock.Reading{}, err
	}
	return clock.Reading{Seconds: sec, Subseconds: sub}, nil
}

func parseUint32(values map[string]string, field string) (uint32, error) {
	raw, ok := values[field]
	if !ok {
		return 0, fmt.Errorf("missing field %q", field)
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse field %q: %w", field, err)
	}
	return uint32(v), nil
}

// CommandFields flattens a command into hash fields.
func CommandFields(cmd sensor.Command) map[string]interface{} {
	return map[string]interface{}{
		"x":            int(cmd.Drive[0]),
		"y":            int(cmd.Drive[1]),
		"z":            int(cmd.Drive[2]),
		"mode":         cmd.ModeName,
		"timestamp_us": strconv.FormatUint(cmd.Timestamp, 10),
	}
}

var (
	_ sensor.Magnetometer = (*Bus)(nil)
	_ sensor.Gyroscope    = (*Bus)(nil)
	_ sensor.Clock        = (*Bus)(nil)
	_ sensor.Actuator     = (*Bus)(nil)
)
