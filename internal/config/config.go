package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"bdot-detumbler/internal/actuator"
	"bdot-detumbler/internal/alerting"
	"bdot-detumbler/internal/estimator"
	"bdot-detumbler/internal/logging"
	"bdot-detumbler/internal/mode"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Control    ControlConfig    `mapstructure:"control"`
	Estimator  estimator.Config `mapstructure:"estimator"`
	Mode       mode.Thresholds  `mapstructure:"mode"`
	Actuator   ActuatorConfig   `mapstructure:"actuator"`
	Bus        BusConfig        `mapstructure:"bus"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// ControlConfig governs the control loop cadence.
type ControlConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToInterval bool          `mapstructure:"align_to_interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// ActuatorConfig holds one coil per body axis.
type ActuatorConfig struct {
	X CoilConfig `mapstructure:"x"`
	Y CoilConfig `mapstructure:"y"`
	Z CoilConfig `mapstructure:"z"`
}

// CoilConfig is the YAML form of actuator.CoilConfig.
type CoilConfig struct {
	Shape      string  `mapstructure:"shape"`
	Width      float64 `mapstructure:"width"`
	Length     float64 `mapstructure:"length"`
	Diameter   float64 `mapstructure:"diameter"`
	Turns      int     `mapstructure:"turns"`
	Voltage    float64 `mapstructure:"voltage"`
	Resistance float64 `mapstructure:"resistance"`
	Direction  int     `mapstructure:"direction"`
}

// Coil converts to the actuator representation.
func (c CoilConfig) Coil() (actuator.CoilConfig, error) {
	shape, err := actuator.ParseShape(c.Shape)
	if err != nil {
		return actuator.CoilConfig{}, err
	}
	return actuator.CoilConfig{
		Shape:      shape,
		Width:      c.Width,
		Length:     c.Length,
		Diameter:   c.Diameter,
		Turns:      c.Turns,
		Voltage:    c.Voltage,
		Resistance: c.Resistance,
		Direction:  c.Direction,
	}, nil
}

// Torquers builds the three axis mappers.
func (a ActuatorConfig) Torquers() (actuator.Torquers, error) {
	x, err := a.X.Coil()
	if err != nil {
		return actuator.Torquers{}, fmt.Errorf("actuator.x: %w", err)
	}
	y, err := a.Y.Coil()
	if err != nil {
		return actuator.Torquers{}, fmt.Errorf("actuator.y: %w", err)
	}
	z, err := a.Z.Coil()
	if err != nil {
		return actuator.Torquers{}, fmt.Errorf("actuator.z: %w", err)
	}
	return actuator.NewTorquers(x, y, z), nil
}

// BusConfig covers the Redis sensor bus.
type BusConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	Prefix      string        `mapstructure:"prefix"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// SimulationConfig parameterises the built-in spacecraft model.
type SimulationConfig struct {
	Duration          time.Duration `mapstructure:"duration"`
	Step              time.Duration `mapstructure:"step"`
	Inertia           []float64     `mapstructure:"inertia"`
	InitialRate       []float64     `mapstructure:"initial_rate"`
	Field             []float64     `mapstructure:"field"`
	FieldNoise        float64       `mapstructure:"field_noise"`
	Seed              int64         `mapstructure:"seed"`
	SubsecondStart    uint32        `mapstructure:"subsecond_start"`
	ClockJitter       time.Duration `mapstructure:"clock_jitter"`
	FieldRotationRate float64       `mapstructure:"field_rotation_rate"`
}

// AlertingConfig defines mode-change notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram notifier.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DETUMBLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "detumbler")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.max_size_mb", 50)
	v.SetDefault("logging.file.max_backups", 5)
	v.SetDefault("logging.file.max_age_days", 14)

	v.SetDefault("control.interval", "100ms")
	v.SetDefault("control.align_to_interval", false)
	v.SetDefault("control.startup_delay", "0s")
	v.SetDefault("control.advisory_lock_key", int64(0x62646f74))

	v.SetDefault("estimator.strategy", string(estimator.StrategyContinuous))
	v.SetDefault("estimator.gain", -1000.0)
	v.SetDefault("estimator.period", "100ms")
	v.SetDefault("estimator.min_interval", "10ms")
	v.SetDefault("estimator.max_interval", "500ms")
	v.SetDefault("estimator.min_magnitude", 1e-6)

	v.SetDefault("mode.lower", 0.02)
	v.SetDefault("mode.upper", 0.05)
	v.SetDefault("mode.max", 0.5)

	for _, axis := range []string{"x", "y", "z"} {
		prefix := "actuator." + axis + "."
		v.SetDefault(prefix+"shape", "rectangular")
		v.SetDefault(prefix+"width", 0.08)
		v.SetDefault(prefix+"length", 0.08)
		v.SetDefault(prefix+"turns", 250)
		v.SetDefault(prefix+"voltage", 5.0)
		v.SetDefault(prefix+"resistance", 25.0)
		v.SetDefault(prefix+"direction", 1)
	}

	v.SetDefault("bus.addr", "localhost:6379")
	v.SetDefault("bus.db", 0)
	v.SetDefault("bus.prefix", "adcs")
	v.SetDefault("bus.read_timeout", "50ms")

	v.SetDefault("simulation.duration", "30m")
	v.SetDefault("simulation.step", "100ms")
	v.SetDefault("simulation.inertia", []float64{0.002, 0.002, 0.002})
	v.SetDefault("simulation.initial_rate", []float64{0.1, -0.08, 0.06})
	v.SetDefault("simulation.field", []float64{2.0e-5, -1.0e-5, 3.5e-5})
	v.SetDefault("simulation.field_noise", 0.0)
	v.SetDefault("simulation.seed", int64(1))
	v.SetDefault("simulation.subsecond_start", uint32(0))
	v.SetDefault("simulation.clock_jitter", "0s")
	v.SetDefault("simulation.field_rotation_rate", 0.001)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{alerting.ChannelLog, alerting.ChannelTelegram})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("export.max_data_points", 5000)

	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs the configuration-time checks the control core omits.
func (c *Config) Validate() error {
	if c.Control.Interval <= 0 {
		return fmt.Errorf("control.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}

	if !(c.Mode.Lower < c.Mode.Upper && c.Mode.Upper < c.Mode.Max) {
		return fmt.Errorf("mode thresholds must satisfy lower < upper < max (got %g, %g, %g)", c.Mode.Lower, c.Mode.Upper, c.Mode.Max)
	}

	if err := c.validateEstimator(); err != nil {
		return err
	}

	for axis, coil := range map[string]CoilConfig{"x": c.Actuator.X, "y": c.Actuator.Y, "z": c.Actuator.Z} {
		if err := coil.validate(); err != nil {
			return fmt.Errorf("actuator.%s: %w", axis, err)
		}
	}

	if err := c.Simulation.validate(); err != nil {
		return err
	}

	for _, ch := range c.Alerting.Channels {
		switch strings.ToLower(strings.TrimSpace(ch)) {
		case alerting.ChannelLog, alerting.ChannelTelegram:
		default:
			return fmt.Errorf("alerting.channels: unknown channel %q", ch)
		}
	}

	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be set")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be set")
		}
	}
	return nil
}

func (c *Config) validateEstimator() error {
	e := c.Estimator
	switch e.Strategy {
	case estimator.StrategyWindowed:
		if e.Period <= 0 {
			return fmt.Errorf("estimator.period must be greater than zero")
		}
		if err := CheckSampleSpacing(e, c.Control.Interval); err != nil {
			return fmt.Errorf("control.interval: %w", err)
		}
	case estimator.StrategyContinuous:
		if e.MinInterval <= 0 || e.MaxInterval <= 0 {
			return fmt.Errorf("estimator.min_interval and estimator.max_interval must be greater than zero")
		}
		if e.MinInterval >= e.MaxInterval {
			return fmt.Errorf("estimator.min_interval must be below estimator.max_interval")
		}
		if e.MinMagnitude < 0 {
			return fmt.Errorf("estimator.min_magnitude cannot be negative")
		}
	default:
		return fmt.Errorf("estimator.strategy %q is not one of windowed, continuous", e.Strategy)
	}
	return nil
}

// CheckSampleSpacing rejects a windowed estimator whose period differs from
// the spacing at which samples will actually arrive.
func CheckSampleSpacing(e estimator.Config, spacing time.Duration) error {
	if e.Strategy != estimator.StrategyWindowed || spacing == e.Period {
		return nil
	}
	return fmt.Errorf("sample spacing %s does not match windowed estimator.period %s", spacing, e.Period)
}

func (c CoilConfig) validate() error {
	shape, err := actuator.ParseShape(c.Shape)
	if err != nil {
		return err
	}
	if c.Direction != 1 && c.Direction != -1 {
		return fmt.Errorf("direction must be 1 or -1")
	}
	if c.Turns < 0 || c.Voltage < 0 || c.Resistance < 0 {
		return fmt.Errorf("turns, voltage and resistance cannot be negative")
	}
	switch shape {
	case actuator.Rectangular:
		if c.Width < 0 || c.Length < 0 {
			return fmt.Errorf("width and length cannot be negative")
		}
	case actuator.Circular:
		if c.Diameter < 0 {
			return fmt.Errorf("diameter cannot be negative")
		}
	}
	return nil
}

func (s SimulationConfig) validate() error {
	if s.Step <= 0 {
		return fmt.Errorf("simulation.step must be greater than zero")
	}
	for name, vec := range map[string][]float64{"inertia": s.Inertia, "initial_rate": s.InitialRate, "field": s.Field} {
		if len(vec) != 3 {
			return fmt.Errorf("simulation.%s must have three components", name)
		}
	}
	for _, i := range s.Inertia {
		if i <= 0 {
			return fmt.Errorf("simulation.inertia components must be positive")
		}
	}
	if s.FieldNoise < 0 {
		return fmt.Errorf("simulation.field_noise cannot be negative")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
