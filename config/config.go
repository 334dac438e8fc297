package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"PerpTradeBot/internal/operations/backtest"
	"PerpTradeBot/internal/services/strategy"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterStructValidation(validateDatabase, Config{})
}

// Load reads .env when present and builds a validated config from the
// environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the config from the process environment only
func FromEnv() (*Config, error) {
	end, err := getTime("BACKTEST_END", time.Now().UTC().Truncate(time.Hour))
	if err != nil {
		return nil, err
	}
	start, err := getTime("BACKTEST_START", end.Add(-7*24*time.Hour))
	if err != nil {
		return nil, err
	}
	sweep, err := getLeverages()
	if err != nil {
		return nil, err
	}

	defaults := backtest.NewConfig()
	cfg := &Config{
		Exchange: ExchangeConfig{
			APIKey:    os.Getenv("BINANCE_API_KEY"),
			SecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		},
		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     EnvtoInt(getEnv("DB_PORT", "5432")),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
		},
		ClickHouseDSN: os.Getenv("CLICKHOUSE_DSN"),
		DataSource:    strings.ToLower(getEnv("DATA_SOURCE", DataSourceBinance)),
		Symbols:       getSymbols(),
		Start:         start,
		End:           end,
		Backtest: BacktestConfig{
			Strategy:             strings.ToUpper(getEnv("STRATEGY", defaults.StrategyName)),
			InitialBalance:       EnvtoFloat(getEnv("BACKTEST_INITIAL_BALANCE", fmtFloat(defaults.InitialBalance))),
			Fee:                  EnvtoFloat(getEnv("BACKTEST_FEE", fmtFloat(defaults.Fee))),
			InvestmentPerTrade:   EnvtoFloat(getEnv("BACKTEST_INVESTMENT_PER_TRADE", fmtFloat(defaults.InvestmentPerTrade))),
			CapitalPercentage:    EnvtoFloat(os.Getenv("BACKTEST_CAPITAL_PERCENTAGE")),
			MaxConcurrentTrades:  EnvtoInt(getEnv("BACKTEST_MAX_CONCURRENT_TRADES", strconv.Itoa(defaults.MaxConcurrentTrades))),
			EnableStopLoss:       EnvtoBool(getEnv("BACKTEST_ENABLE_STOP_LOSS", "true")),
			EnableTakeProfit:     EnvtoBool(getEnv("BACKTEST_ENABLE_TAKE_PROFIT", "true")),
			Slippage:             EnvtoFloat(os.Getenv("BACKTEST_SLIPPAGE")),
			Leverage:             EnvtoInt(getEnv("BACKTEST_LEVERAGE", strconv.Itoa(defaults.Leverage))),
			MinProfitPercentage:  EnvtoFloat(os.Getenv("BACKTEST_MIN_PROFIT_PERCENTAGE")),
			EnableTrailingStop:   EnvtoBool(os.Getenv("BACKTEST_ENABLE_TRAILING_STOP")),
			TrailingStopDistance: EnvtoFloat(getEnv("BACKTEST_TRAILING_STOP_DISTANCE", fmtFloat(defaults.TrailingStopDistance))),
			SimulationMode:       strings.ToUpper(getEnv("BACKTEST_SIMULATION_MODE", string(defaults.SimulationMode))),
			AmbientTimeframe:     getEnv("BACKTEST_AMBIENT_TIMEFRAME", defaults.AmbientTimeframe),
			ActionTimeframe:      getEnv("BACKTEST_ACTION_TIMEFRAME", defaults.ActionTimeframe),
		},
		Backfill:       EnvtoBool(os.Getenv("BACKFILL")),
		PersistRuns:    EnvtoBool(os.Getenv("PERSIST_RUNS")),
		SweepLeverages: sweep,
		ReportPath:     os.Getenv("REPORT_PATH"),
		MetricsAddr:    os.Getenv("METRICS_ADDR"),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// NeedsDatabase reports whether postgres has to be opened
func (c *Config) NeedsDatabase() bool {
	return c.DataSource == DataSourcePostgres || c.PersistRuns
}

// ToSimulationConfig maps the environment onto the engine config. Values
// are passed through as read; the engine clamps what it cannot use.
func (c *Config) ToSimulationConfig() backtest.SimulationConfig {
	b := c.Backtest
	sim := backtest.NewConfig()
	sim.InitialBalance = b.InitialBalance
	sim.Fee = b.Fee
	sim.InvestmentPerTrade = b.InvestmentPerTrade
	sim.CapitalPercentage = b.CapitalPercentage
	sim.MaxConcurrentTrades = b.MaxConcurrentTrades
	sim.EnableStopLoss = b.EnableStopLoss
	sim.EnableTakeProfit = b.EnableTakeProfit
	sim.Slippage = b.Slippage
	sim.Leverage = b.Leverage
	sim.MinProfitPercentage = b.MinProfitPercentage
	sim.EnableTrailingStop = b.EnableTrailingStop
	sim.TrailingStopDistance = b.TrailingStopDistance
	sim.SimulationMode = backtest.SimulationMode(b.SimulationMode)
	sim.AmbientTimeframe = b.AmbientTimeframe
	sim.ActionTimeframe = b.ActionTimeframe
	sim.StrategyName = b.Strategy
	sim.Strategy = strategy.DefaultConfig()
	return sim
}

// SweepConfigs is one simulation config per sweep leverage, or the single
// configured run when no sweep is set.
func (c *Config) SweepConfigs() []backtest.SimulationConfig {
	base := c.ToSimulationConfig()
	if len(c.SweepLeverages) == 0 {
		return []backtest.SimulationConfig{base}
	}
	configs := make([]backtest.SimulationConfig, 0, len(c.SweepLeverages))
	for _, lev := range c.SweepLeverages {
		sim := base
		sim.Leverage = lev
		configs = append(configs, sim)
	}
	return configs
}

func validateDatabase(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	if !cfg.NeedsDatabase() {
		return
	}
	db := cfg.Database
	if db.Host == "" {
		sl.ReportError(db.Host, "Database.Host", "Host", "required", "")
	}
	if db.Port == 0 {
		sl.ReportError(db.Port, "Database.Port", "Port", "required", "")
	}
	if db.User == "" {
		sl.ReportError(db.User, "Database.User", "User", "required", "")
	}
	if db.DBName == "" {
		sl.ReportError(db.DBName, "Database.DBName", "DBName", "required", "")
	}
}

// helper env(string) to int
func EnvtoInt(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}

// helper env(string) to float
func EnvtoFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// helper env(string) to bool, anything unparsable is false
func EnvtoBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return b
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func getTime(key string, fallback time.Time) (time.Time, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", key, err)
	}
	return t.UTC(), nil
}

func getLeverages() ([]int, error) {
	v := strings.TrimSpace(os.Getenv("SWEEP_LEVERAGES"))
	if v == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		lev, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("parse SWEEP_LEVERAGES: %w", err)
		}
		out = append(out, lev)
	}
	return out, nil
}

// helper to get symbols
func getSymbols() []string {
	symbols := os.Getenv("TRADING_SYMBOLS")
	if symbols == "" {
		return []string{"BTCUSDT", "ETHUSDT"} // Default pairs if none specified
	}
	var out []string
	for _, s := range strings.Split(symbols, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
