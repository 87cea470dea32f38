// Package config defines all configuration for the live trading bot core.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// LIVEBOT_* environment variables overriding individual fields.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Bot         BotConfig          `mapstructure:"bot"`
	Instruments []InstrumentConfig `mapstructure:"instruments"`
	Transport   TransportConfig    `mapstructure:"transport"`
	Logging     LoggingConfig      `mapstructure:"logging"`
	Audit       AuditConfig        `mapstructure:"audit"`
}

// BotConfig holds bot-wide settings not tied to any single instrument.
//
//   - ID: fixed bot id. Zero means "unset"; the Builder draws a random one.
//   - DefaultWaitTimeout: loaded and validated (must be >= 0), but not
//     passed to the bot: Submit/Cancel fall back to their own fixed 60s
//     default when the caller passes a non-positive waitTimeout.
type BotConfig struct {
	ID                 uint64        `mapstructure:"id"`
	DefaultWaitTimeout time.Duration `mapstructure:"default_wait_timeout"`
}

// InstrumentConfig describes one (connector, symbol) pair the bot trades,
// matching bot.InstrumentSpec field-for-field so Load's output can be
// turned directly into Builder.AddInstrument calls.
type InstrumentConfig struct {
	ConnectorName string  `mapstructure:"connector_name"`
	Symbol        string  `mapstructure:"symbol"`
	TickSize      float64 `mapstructure:"tick_size"`
	LotSize       float64 `mapstructure:"lot_size"`
	DepthKind     string  `mapstructure:"depth_kind"`
	TradeCapacity int     `mapstructure:"trade_capacity"`
}

// TransportConfig maps a connector name to the websocket URL wstransport
// should dial for it. Connectors absent here are expected to be wired to
// an in-process looptransport.Endpoint by the caller instead.
type TransportConfig struct {
	WebsocketURLs map[string]string `mapstructure:"websocket_urls"`
}

// LoggingConfig controls the slog handler cmd/livebot constructs.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuditConfig controls where audit.Log writes its JSONL trail.
type AuditConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads config from a YAML file, then applies LIVEBOT_* environment
// overrides for the fields operators most often need to change without
// editing the file (bot id, wait timeout, log level/format, audit path).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("LIVEBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if id := os.Getenv("LIVEBOT_BOT_ID"); id != "" {
		parsed, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("LIVEBOT_BOT_ID: %w", err)
		}
		cfg.Bot.ID = parsed
	}
	if timeout := os.Getenv("LIVEBOT_DEFAULT_WAIT_TIMEOUT"); timeout != "" {
		parsed, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("LIVEBOT_DEFAULT_WAIT_TIMEOUT: %w", err)
		}
		cfg.Bot.DefaultWaitTimeout = parsed
	}
	if level := os.Getenv("LIVEBOT_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("LIVEBOT_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
	if auditPath := os.Getenv("LIVEBOT_AUDIT_PATH"); auditPath != "" {
		cfg.Audit.Path = auditPath
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.Instruments) == 0 {
		return fmt.Errorf("instruments: at least one instrument is required")
	}
	seen := make(map[string]bool, len(c.Instruments))
	for i, inst := range c.Instruments {
		if inst.ConnectorName == "" {
			return fmt.Errorf("instruments[%d].connector_name is required", i)
		}
		if inst.Symbol == "" {
			return fmt.Errorf("instruments[%d].symbol is required", i)
		}
		key := inst.ConnectorName + "\x00" + inst.Symbol
		if seen[key] {
			return fmt.Errorf("instruments[%d]: duplicate (connector, symbol) pair (%s, %s)", i, inst.ConnectorName, inst.Symbol)
		}
		seen[key] = true
		if inst.TickSize <= 0 {
			return fmt.Errorf("instruments[%d].tick_size must be > 0", i)
		}
		if inst.LotSize <= 0 {
			return fmt.Errorf("instruments[%d].lot_size must be > 0", i)
		}
		switch inst.DepthKind {
		case "", "l2":
		default:
			return fmt.Errorf("instruments[%d].depth_kind must be \"l2\" (default)", i)
		}
	}
	if c.Bot.DefaultWaitTimeout < 0 {
		return fmt.Errorf("bot.default_wait_timeout must be >= 0")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format must be one of json, text")
	}
	return nil
}
