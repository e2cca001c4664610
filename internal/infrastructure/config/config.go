package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Pipetting PipettingConfig
	Hardware  HardwareConfig
	Scheduler SchedulerConfig
	Runner    RunnerConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	TrustedProxies    []string
	CORSAllowOrigins  []string
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// PipettingConfig holds the liquid handling constants, all volumes in uL
// and offsets in mm.
type PipettingConfig struct {
	TipCapacity         float64
	AirGap              float64
	DripStop            float64
	PurgeVolume         float64
	WellOverdraw        float64
	StockMarginFraction float64
	ClearOffsetMM       float64
	VialClearanceMM     float64
}

// HardwareConfig selects the hardware drivers. With UseMocks set the
// motion system, pump and potentiostat are replaced by in-process fakes.
type HardwareConfig struct {
	UseMocks     bool
	MotionPort   string
	PumpAddress  int
	StatChannel  int
	MockStepTime time.Duration // simulated duration of mocked hardware moves
}

// SchedulerConfig holds experiment queue configuration
type SchedulerConfig struct {
	PollInterval   time.Duration
	RandomTiebreak bool
	TiebreakSeed   int64
}

// RunnerConfig holds execution loop configuration
type RunnerConfig struct {
	Enabled       bool
	RinseSolution string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with PANDA_ prefix (e.g., PANDA_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("PANDA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
		},
		Pipetting: PipettingConfig{
			TipCapacity:         v.GetFloat64("pipetting.tip_capacity"),
			AirGap:              v.GetFloat64("pipetting.air_gap"),
			DripStop:            v.GetFloat64("pipetting.drip_stop"),
			PurgeVolume:         v.GetFloat64("pipetting.purge_volume"),
			WellOverdraw:        v.GetFloat64("pipetting.well_overdraw"),
			StockMarginFraction: v.GetFloat64("pipetting.stock_margin_fraction"),
			ClearOffsetMM:       v.GetFloat64("pipetting.clear_offset_mm"),
			VialClearanceMM:     v.GetFloat64("pipetting.vial_clearance_mm"),
		},
		Hardware: HardwareConfig{
			UseMocks:     v.GetBool("hardware.use_mocks"),
			MotionPort:   v.GetString("hardware.motion_port"),
			PumpAddress:  v.GetInt("hardware.pump_address"),
			StatChannel:  v.GetInt("hardware.stat_channel"),
			MockStepTime: v.GetDuration("hardware.mock_step_time"),
		},
		Scheduler: SchedulerConfig{
			PollInterval:   v.GetDuration("scheduler.poll_interval"),
			RandomTiebreak: v.GetBool("scheduler.random_tiebreak"),
			TiebreakSeed:   v.GetInt64("scheduler.tiebreak_seed"),
		},
		Runner: RunnerConfig{
			Enabled:       v.GetBool("runner.enabled"),
			RinseSolution: v.GetString("runner.rinse_solution"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "panda-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "panda"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB, experiment payloads are small
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Pipetting.TipCapacity == 0 {
		cfg.Pipetting.TipCapacity = 200
	}
	if cfg.Pipetting.AirGap == 0 {
		cfg.Pipetting.AirGap = 20
	}
	if cfg.Pipetting.DripStop == 0 {
		cfg.Pipetting.DripStop = 5
	}
	if cfg.Pipetting.PurgeVolume == 0 {
		cfg.Pipetting.PurgeVolume = 10
	}
	if cfg.Pipetting.WellOverdraw == 0 {
		cfg.Pipetting.WellOverdraw = 20
	}
	if cfg.Pipetting.StockMarginFraction == 0 {
		cfg.Pipetting.StockMarginFraction = 0.1
	}
	if cfg.Pipetting.ClearOffsetMM == 0 {
		cfg.Pipetting.ClearOffsetMM = 1.5
	}
	if cfg.Pipetting.VialClearanceMM == 0 {
		cfg.Pipetting.VialClearanceMM = 2.0
	}
	if cfg.Hardware.MotionPort == "" {
		cfg.Hardware.MotionPort = "/dev/ttyUSB0"
	}
	if cfg.Hardware.MockStepTime == 0 {
		cfg.Hardware.MockStepTime = 5 * time.Millisecond
	}
	if cfg.Scheduler.PollInterval == 0 {
		cfg.Scheduler.PollInterval = 10 * time.Second
	}
	if cfg.Runner.RinseSolution == "" {
		cfg.Runner.RinseSolution = "water"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Pipetting.TipCapacity <= 0 {
		return fmt.Errorf("pipetting.tip_capacity must be positive")
	}
	if c.Pipetting.StockMarginFraction < 0 || c.Pipetting.StockMarginFraction >= 1 {
		return fmt.Errorf("pipetting.stock_margin_fraction must be in [0, 1), got %f",
			c.Pipetting.StockMarginFraction)
	}
	if c.Pipetting.AirGap+c.Pipetting.DripStop+c.Pipetting.WellOverdraw >= c.Pipetting.TipCapacity {
		return fmt.Errorf("pipetting overheads (air gap, drip stop, overdraw) leave no tip capacity for liquid")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Hardware.UseMocks {
			return fmt.Errorf("hardware.use_mocks must be false in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
