package config

import (
	"fmt"
	"time"
)

const (
	DataSourcePostgres   = "postgres"
	DataSourceClickHouse = "clickhouse"
	DataSourceBinance    = "binance"
)

type Config struct {
	Exchange      ExchangeConfig
	Database      DatabaseConfig
	ClickHouseDSN string   `validate:"required_if=DataSource clickhouse"`
	DataSource    string   `validate:"oneof=postgres clickhouse binance"`
	Symbols       []string `validate:"required,min=1,dive,required,uppercase"`

	Start time.Time `validate:"required"`
	End   time.Time `validate:"required,gtfield=Start"`

	Backtest BacktestConfig

	// Backfill syncs binance candles into the selected store before running
	Backfill       bool
	PersistRuns    bool
	SweepLeverages []int `validate:"dive,min=1,max=125"`
	ReportPath     string
	MetricsAddr    string
	LogLevel       string `validate:"omitempty,oneof=trace debug info warn error"`
}

type ExchangeConfig struct {
	APIKey    string
	SecretKey string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// DSN is the postgres connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.DBName)
}

// BacktestConfig mirrors the BACKTEST_* variables
type BacktestConfig struct {
	Strategy             string  `validate:"oneof=DEFAULT PROMAX LEVEL"`
	InitialBalance       float64 `validate:"gt=0"`
	Fee                  float64 `validate:"gte=0"`
	InvestmentPerTrade   float64 `validate:"gte=0"`
	CapitalPercentage    float64 `validate:"gte=0,lte=100"`
	MaxConcurrentTrades  int     `validate:"min=1"`
	EnableStopLoss       bool
	EnableTakeProfit     bool
	Slippage             float64 `validate:"gte=0"`
	Leverage             int     `validate:"min=1,max=125"`
	MinProfitPercentage  float64 `validate:"gte=0"`
	EnableTrailingStop   bool
	TrailingStopDistance float64 `validate:"gte=0"`
	SimulationMode       string  `validate:"oneof=AUTO HIGH_FIDELITY STANDARD"`
	AmbientTimeframe     string  `validate:"oneof=1m 3m 5m 15m 30m 1h 2h 4h 1d"`
	ActionTimeframe      string  `validate:"oneof=1m 3m 5m 15m 30m 1h 2h 4h 1d"`
}
