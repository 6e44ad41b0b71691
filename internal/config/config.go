// Package config handles configuration loading and validation, grounded on
// the teacher's internal/config/config.go: YAML unmarshal with environment
// variable expansion, then hand-rolled validation functions (the teacher's
// own `validate:"required,oneof=..."` struct tags are documentation only —
// nothing in that package wires a validator engine to read them, so this
// package follows the code that actually runs rather than the tags).
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "gridbot/pkg/errors"
)

// Config is the top-level structure recognized by spec.md §6.
type Config struct {
	Exchange        ExchangeConfig        `yaml:"exchange"`
	Pair            PairConfig            `yaml:"pair"`
	TradingSettings TradingSettingsConfig `yaml:"trading_settings"`
	GridStrategy    GridStrategyConfig    `yaml:"grid_strategy"`
	RiskManagement  RiskManagementConfig  `yaml:"risk_management"`
	Logging         LoggingConfig         `yaml:"logging"`
}

type ExchangeConfig struct {
	Name        string  `yaml:"name"`
	TradingFee  float64 `yaml:"trading_fee"`
	TradingMode string  `yaml:"trading_mode"`
}

type PairConfig struct {
	BaseCurrency  string `yaml:"base_currency"`
	QuoteCurrency string `yaml:"quote_currency"`
}

type PeriodConfig struct {
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
}

type TradingSettingsConfig struct {
	Timeframe          string       `yaml:"timeframe"`
	Period             PeriodConfig `yaml:"period"`
	InitialBalance     float64      `yaml:"initial_balance"`
	HistoricalDataFile string       `yaml:"historical_data_file"`
}

type RangeConfig struct {
	Mode   string  `yaml:"mode"`
	Top    float64 `yaml:"top"`
	Bottom float64 `yaml:"bottom"`
}

type GridStrategyConfig struct {
	Type        string      `yaml:"type"`
	Spacing     string      `yaml:"spacing"`
	OrderSizing string      `yaml:"order_sizing"`
	NumGrids    int         `yaml:"num_grids"`
	Range       RangeConfig `yaml:"range"`
}

type ThresholdConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
}

type RiskManagementConfig struct {
	Mode       string          `yaml:"mode"`
	TakeProfit ThresholdConfig `yaml:"take_profit"`
	StopLoss   ThresholdConfig `yaml:"stop_loss"`
}

type LoggingConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogToFile bool   `yaml:"log_to_file"`
}

// ValidationError represents one configuration validation failure.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// Load reads and merges one or more YAML config files in order, later
// files overriding earlier ones field-by-field (spec.md §6 "--config
// <path...>"), then validates the merged result.
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("config: at least one --config path is required")
	}

	var cfg Config
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrConfigNotFound, path, err)
		}
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("%w in %s: %v", apperrors.ErrConfigParse, path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate performs the hand-rolled checks spec.md §6 implies for each key.
func (c *Config) Validate() error {
	var errs []string
	for _, fn := range []func() error{
		c.validateExchange,
		c.validatePair,
		c.validateTradingSettings,
		c.validateGridStrategy,
		c.validateRiskManagement,
		c.validateLogging,
	} {
		if err := fn(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

func (c *Config) validateExchange() error {
	if c.Exchange.Name == "" {
		return ValidationError{Field: "exchange.name", Message: "is required"}
	}
	switch c.Exchange.TradingMode {
	case "backtest", "paper_trading", "live":
	default:
		return ValidationError{Field: "exchange.trading_mode", Value: c.Exchange.TradingMode, Message: "must be one of: backtest, paper_trading, live"}
	}
	if c.Exchange.TradingFee < 0 || c.Exchange.TradingFee > 1 {
		return ValidationError{Field: "exchange.trading_fee", Value: c.Exchange.TradingFee, Message: "must be between 0 and 1"}
	}
	if c.Exchange.TradingMode != "backtest" {
		if os.Getenv("EXCHANGE_API_KEY") == "" {
			return ValidationError{Field: "EXCHANGE_API_KEY", Message: "required environment variable is not set for paper/live trading"}
		}
		if os.Getenv("EXCHANGE_SECRET_KEY") == "" {
			return ValidationError{Field: "EXCHANGE_SECRET_KEY", Message: "required environment variable is not set for paper/live trading"}
		}
	}
	return nil
}

func (c *Config) validatePair() error {
	if c.Pair.BaseCurrency == "" || c.Pair.QuoteCurrency == "" {
		return ValidationError{Field: "pair", Message: "base_currency and quote_currency are both required"}
	}
	return nil
}

func (c *Config) validateTradingSettings() error {
	if c.TradingSettings.InitialBalance <= 0 {
		return ValidationError{Field: "trading_settings.initial_balance", Value: c.TradingSettings.InitialBalance, Message: "must be positive"}
	}
	if c.Exchange.TradingMode == "backtest" && c.TradingSettings.HistoricalDataFile == "" {
		return ValidationError{Field: "trading_settings.historical_data_file", Message: "is required in backtest mode"}
	}
	return nil
}

func (c *Config) validateGridStrategy() error {
	switch c.GridStrategy.Type {
	case "simple_grid", "hedged_grid":
	default:
		return ValidationError{Field: "grid_strategy.type", Value: c.GridStrategy.Type, Message: "must be one of: simple_grid, hedged_grid"}
	}
	switch c.GridStrategy.Spacing {
	case "arithmetic", "geometric":
	default:
		return ValidationError{Field: "grid_strategy.spacing", Value: c.GridStrategy.Spacing, Message: "must be one of: arithmetic, geometric"}
	}
	switch c.GridStrategy.OrderSizing {
	case "equal_crypto", "equal_dollar":
	default:
		return ValidationError{Field: "grid_strategy.order_sizing", Value: c.GridStrategy.OrderSizing, Message: "must be one of: equal_crypto, equal_dollar"}
	}
	if c.GridStrategy.NumGrids < 2 {
		return ValidationError{Field: "grid_strategy.num_grids", Value: c.GridStrategy.NumGrids, Message: "must be >= 2"}
	}
	switch c.GridStrategy.Range.Mode {
	case "manual":
		if c.GridStrategy.Range.Top <= c.GridStrategy.Range.Bottom {
			return ValidationError{Field: "grid_strategy.range", Message: "top must be greater than bottom"}
		}
	case "crypto_zero":
	default:
		return ValidationError{Field: "grid_strategy.range.mode", Value: c.GridStrategy.Range.Mode, Message: "must be one of: manual, crypto_zero"}
	}
	return nil
}

func (c *Config) validateRiskManagement() error {
	switch c.RiskManagement.Mode {
	case "take_profit_stop_loss", "dynamic":
	default:
		return ValidationError{Field: "risk_management.mode", Value: c.RiskManagement.Mode, Message: "must be one of: take_profit_stop_loss, dynamic"}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToUpper(c.Logging.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR", "FATAL":
	case "":
		c.Logging.LogLevel = "INFO"
	default:
		return ValidationError{Field: "logging.log_level", Value: c.Logging.LogLevel, Message: "must be one of: DEBUG, INFO, WARN, ERROR, FATAL"}
	}
	return nil
}

// expandEnvVars expands ${VAR} references in raw YAML text before parsing,
// matching the teacher's approach of resolving secrets (API keys) outside
// of the committed config file.
func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}
