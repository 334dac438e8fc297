package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"PerpTradeBot/config"
	"PerpTradeBot/internal/handlers"
	"PerpTradeBot/internal/observability"
	"PerpTradeBot/internal/operations/binance"
	"PerpTradeBot/internal/operations/price"
	"PerpTradeBot/internal/operations/report"
	"PerpTradeBot/internal/repositories"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Shutting down...")
		cancel()
	}()

	exchange := binance.NewBinanceClient(cfg.Exchange.APIKey, cfg.Exchange.SecretKey)

	var db *gorm.DB
	if cfg.NeedsDatabase() {
		db = setupDatabase(cfg.Database)
	}

	source, store := openCandleSource(ctx, cfg, exchange, db)
	if cfg.Backfill && store != nil {
		sim, _ := cfg.ToSimulationConfig().Normalize()
		if err := handlers.NewPriceHandler(exchange, store, cfg.Symbols).
			Backfill(ctx, cfg.Start, cfg.End, sim.DataTimeframe()); err != nil {
			log.Fatal().Err(err).Msg("Backfill failed")
		}
	}

	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		metrics = observability.NewMetrics("", prometheus.NewRegistry())
		serveMetrics(cfg.MetricsAddr, metrics)
	}

	var recorder handlers.RunRecorder
	if cfg.PersistRuns {
		recorder = handlers.RunRecorder{
			Runs:   repositories.NewBacktestRunRepository(db),
			Trades: repositories.NewTradeRecordRepository(db),
			Equity: repositories.NewEquityRepository(db),
		}
	}

	backtests := handlers.NewBacktestHandler(price.NewLoader(source, 0), recorder, metrics)

	var outcomes []*handlers.BacktestOutcome
	if len(cfg.SweepLeverages) > 0 {
		configs := cfg.SweepConfigs()
		candles, err := backtests.Load(ctx, configs[0], cfg.Symbols, cfg.Start, cfg.End)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load candles")
		}
		outcomes = handlers.NewSweepHandler(backtests, 0).Run(ctx, candles, cfg.Symbols, cfg.Start, cfg.End, configs)
	} else {
		outcome, err := backtests.Run(ctx, handlers.BacktestRequest{
			Config:  cfg.ToSimulationConfig(),
			Symbols: cfg.Symbols,
			Start:   cfg.Start,
			End:     cfg.End,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Backtest failed")
		}
		outcomes = append(outcomes, outcome)
	}

	for _, outcome := range outcomes {
		if outcome.Err != nil {
			continue
		}
		report.PrintSummary(os.Stdout, outcome.RunID, outcome.Results)
		if cfg.ReportPath == "" {
			continue
		}
		path := cfg.ReportPath
		if len(outcomes) > 1 {
			path = leveragePath(path, outcome.Config.Leverage)
		}
		if err := report.WriteFile(path, report.NewDocument(outcome.RunID, cfg.Symbols, outcome.Results)); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to write report")
			continue
		}
		log.Info().Str("path", path).Msg("Report written")
	}
}

// openCandleSource returns where the backtest reads candles from and, for
// local stores, where backfill writes to.
func openCandleSource(ctx context.Context, cfg *config.Config, exchange *binance.BinanceClient, db *gorm.DB) (price.CandleSource, price.CandleStore) {
	switch cfg.DataSource {
	case config.DataSourcePostgres:
		repo := repositories.NewCandleRepository(db)
		return repo, repo
	case config.DataSourceClickHouse:
		conn, err := repositories.NewClickHouseConn(ctx, cfg.ClickHouseDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to clickhouse")
		}
		repo := repositories.NewClickHouseCandleRepository(conn)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to create clickhouse schema")
		}
		return repo, repo
	default:
		return exchange, nil
	}
}

func serveMetrics(addr string, metrics *observability.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("Serving /metrics")
}

// leveragePath turns report.json into report_10x.json
func leveragePath(path string, leverage int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%dx%s", strings.TrimSuffix(path, ext), leverage, ext)
}

func setupDatabase(dbConfig config.DatabaseConfig) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dbConfig.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Auto migrate database schemas
	if err := repositories.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	return db
}
