// Package config loads the engine configuration from YAML with
// environment overrides layered on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"market-pattern-engine/internal/backtest"
	"market-pattern-engine/internal/engine"
	"market-pattern-engine/internal/logging"
	"market-pattern-engine/internal/market"
)

type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Scan     ScanConfig     `yaml:"scan"`
	Replay   ReplayConfig   `yaml:"replay"`
	Logging  LoggingConfig  `yaml:"logging"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type EngineConfig struct {
	BaseAlertThreshold       float64 `yaml:"base_alert_threshold" default:"0.7" validate:"gte=0,lte=1"`
	PerformanceHistoryWindow int     `yaml:"performance_history_window" default:"10" validate:"gte=0"`
	PerformanceRecordCap     int     `yaml:"performance_record_cap" default:"100" validate:"gte=0"`
	RegimeLookback           int     `yaml:"regime_lookback" default:"50" validate:"gte=0"`
	PeakTroughMinDistance    int     `yaml:"peak_trough_min_distance" default:"5" validate:"gte=0"`
	MinConfluenceTimeframes  int     `yaml:"min_confluence_timeframes" default:"2" validate:"gte=2"`
	RegimeTimeframe          string  `yaml:"regime_timeframe"`
}

type ScanConfig struct {
	// DataDir holds CSV files named SYMBOL_TIMEFRAME.csv.
	DataDir string `yaml:"data_dir" default:"./data"`
	// Symbols filters which symbols to analyze; empty means all found.
	Symbols []string `yaml:"symbols"`
	// Timeframes filters which series to feed in; empty means all found.
	Timeframes []string `yaml:"timeframes"`
	// SnapshotName keys the learned state in the snapshot store.
	SnapshotName string `yaml:"snapshot_name" default:"default"`
	// IntervalSeconds reruns the scan on a timer; zero scans once.
	IntervalSeconds int `yaml:"interval_seconds" validate:"gte=0"`
}

type ReplayConfig struct {
	WarmupBars   int `yaml:"warmup_bars" default:"50" validate:"gte=0"`
	HorizonBars  int `yaml:"horizon_bars" default:"30" validate:"gte=0"`
	CooldownBars int `yaml:"cooldown_bars" default:"10" validate:"gte=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" default:":9090"`
	Path    string `yaml:"path" default:"/metrics"`
}

var validate = validator.New()

// Load reads the YAML file at path, fills defaults, applies environment
// overrides, and validates the result. An empty path loads pure
// defaults.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	applyEnv(&c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the configuration with every field at its default.
func Default() *Config {
	c, err := Load("")
	if err != nil {
		panic(err)
	}
	return c
}

// applyEnv lets deployment environments override file settings without
// editing the file.
func applyEnv(c *Config) {
	if v := os.Getenv("PATTERN_ENGINE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PATTERN_ENGINE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("PATTERN_ENGINE_DATA_DIR"); v != "" {
		c.Scan.DataDir = v
	}
	if v := os.Getenv("PATTERN_ENGINE_SYMBOLS"); v != "" {
		c.Scan.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("PATTERN_ENGINE_BASE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Engine.BaseAlertThreshold = f
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.DSN = v
		c.Postgres.Enabled = true
	}
}

// Validate checks ranges and enumerations, naming the first offending
// field. Logging fields are normalized before checking.
func (c *Config) Validate() error {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			field := strings.TrimPrefix(e.Namespace(), "Config.")
			return fmt.Errorf("invalid configuration: %s failed %q (got %v)", field, e.Tag(), e.Value())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Engine.RegimeTimeframe != "" {
		if _, err := market.ParseTimeframe(c.Engine.RegimeTimeframe); err != nil {
			return fmt.Errorf("invalid configuration: engine.regime_timeframe: %w", err)
		}
	}
	for _, tf := range c.Scan.Timeframes {
		if _, err := market.ParseTimeframe(tf); err != nil {
			return fmt.Errorf("invalid configuration: scan.timeframes: %w", err)
		}
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("invalid configuration: postgres.dsn is required when postgres is enabled")
	}
	return nil
}

// Options converts the section into the engine's own config type.
func (e EngineConfig) Options() engine.Config {
	tf, _ := market.ParseTimeframe(e.RegimeTimeframe)
	return engine.Config{
		BaseAlertThreshold:       e.BaseAlertThreshold,
		PerformanceHistoryWindow: e.PerformanceHistoryWindow,
		PerformanceRecordCap:     e.PerformanceRecordCap,
		RegimeLookback:           e.RegimeLookback,
		PeakTroughMinDistance:    e.PeakTroughMinDistance,
		MinConfluenceTimeframes:  e.MinConfluenceTimeframes,
		RegimeTimeframe:          tf,
	}
}

// Options converts the section into the replayer's config type.
func (r ReplayConfig) Options() backtest.Config {
	return backtest.Config{
		WarmupBars:   r.WarmupBars,
		HorizonBars:  r.HorizonBars,
		CooldownBars: r.CooldownBars,
	}
}

// Options converts the section into the logging config type.
func (l LoggingConfig) Options() logging.Config {
	return logging.Config{
		Level:  l.Level,
		Format: l.Format,
		Output: l.Output,
	}
}

// TimeframeFilter parses the configured scan timeframes. Empty config
// admits every timeframe.
func (s ScanConfig) TimeframeFilter() map[market.Timeframe]bool {
	if len(s.Timeframes) == 0 {
		return nil
	}
	out := make(map[market.Timeframe]bool, len(s.Timeframes))
	for _, raw := range s.Timeframes {
		if tf, err := market.ParseTimeframe(raw); err == nil {
			out[tf] = true
		}
	}
	return out
}

// SymbolFilter returns the configured symbols as a set. Empty config
// admits every symbol.
func (s ScanConfig) SymbolFilter() map[string]bool {
	if len(s.Symbols) == 0 {
		return nil
	}
	out := make(map[string]bool, len(s.Symbols))
	for _, sym := range s.Symbols {
		out[strings.ToUpper(strings.TrimSpace(sym))] = true
	}
	return out
}

// WriteSample writes a fully-populated sample configuration to path.
func WriteSample(path string) error {
	c := Default()
	c.Scan.Symbols = []string{"BTCUSDT"}
	c.Scan.Timeframes = []string{"5m", "15m", "1h", "4h"}
	c.Engine.RegimeTimeframe = "1h"
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal sample config: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}
