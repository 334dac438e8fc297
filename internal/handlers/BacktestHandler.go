package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PerpTradeBot/internal/observability"
	"PerpTradeBot/internal/operations/backtest"
	"PerpTradeBot/internal/operations/price"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// BacktestRequest describes one run over [Start, End)
type BacktestRequest struct {
	Config  backtest.SimulationConfig
	Symbols []string
	Start   time.Time
	End     time.Time
}

type BacktestOutcome struct {
	RunID   string
	Config  backtest.SimulationConfig
	Results *backtest.BacktestResults
	Err     error
}

type BacktestHandler struct {
	loader   *price.Loader
	recorder RunRecorder
	metrics  *observability.Metrics
}

// NewBacktestHandler takes an optional metrics sink; a nil one disables it
func NewBacktestHandler(loader *price.Loader, recorder RunRecorder, metrics *observability.Metrics) *BacktestHandler {
	return &BacktestHandler{
		loader:   loader,
		recorder: recorder,
		metrics:  metrics,
	}
}

// Load fetches the candles a run with cfg needs and builds the store
func (h *BacktestHandler) Load(ctx context.Context, cfg backtest.SimulationConfig, symbols []string, start, end time.Time) (*backtest.CandleStore, error) {
	normalized, _ := cfg.Normalize()
	timeFrame := normalized.DataTimeframe()

	data, err := h.loader.LoadCandles(ctx, symbols, timeFrame, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("load %s candles: %w", timeFrame, err)
	}
	store, err := backtest.NewCandleStore(timeFrame, data)
	if err != nil {
		return nil, err
	}
	if store.Len() == 0 {
		return nil, fmt.Errorf("%w: no candles for %v between %s and %s",
			backtest.ErrDataInsufficient, symbols, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return store, nil
}

// Run loads candles, simulates and persists one backtest
func (h *BacktestHandler) Run(ctx context.Context, req BacktestRequest) (*BacktestOutcome, error) {
	store, err := h.Load(ctx, req.Config, req.Symbols, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	outcome := h.simulate(ctx, store, req)
	return outcome, outcome.Err
}

// simulate runs one fresh engine over a shared store. The store is only
// read, so several simulations may share it.
func (h *BacktestHandler) simulate(ctx context.Context, store *backtest.CandleStore, req BacktestRequest) *BacktestOutcome {
	runID := uuid.NewString()
	outcome := &BacktestOutcome{RunID: runID, Config: req.Config}
	logger := log.With().Str("run", runID).Logger()

	opts := []backtest.Option{backtest.WithLogger(logger)}
	if h.metrics != nil {
		opts = append(opts, backtest.WithProgress(h.metrics.Reporter(runID)))
	}
	engine, err := backtest.NewEngine(req.Config, nil, opts...)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Config = engine.Config()

	started := time.Now()
	results, err := engine.Run(ctx, store)
	h.observe(outcome.Config.StrategyName, results, err, time.Since(started))
	if err != nil {
		outcome.Err = fmt.Errorf("run %s: %w", runID, err)
		return outcome
	}
	outcome.Results = results

	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = store.Symbols()
	}
	if err := h.recorder.Record(ctx, runID, symbols, req.Start, req.End, outcome.Config, results); err != nil {
		// the simulation itself succeeded
		logger.Error().Err(err).Msg("Failed to persist backtest run")
	}
	return outcome
}

func (h *BacktestHandler) observe(strategyName string, results *backtest.BacktestResults, err error, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	status := "completed"
	switch {
	case errors.Is(err, backtest.ErrRunCancelled):
		status = "cancelled"
	case err != nil:
		status = "failed"
	case results.Report == nil:
		status = "empty"
	}
	h.metrics.RecordRun(strategyName, status, elapsed.Seconds())
}
