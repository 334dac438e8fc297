package handlers

import (
	"context"
	"time"

	"PerpTradeBot/internal/operations/backtest"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const DefaultSweepParallelism = 4

// SweepHandler runs many configurations over the same candles. Every run
// gets its own engine and state; one failing run does not stop the others.
type SweepHandler struct {
	backtests   *BacktestHandler
	parallelism int
}

func NewSweepHandler(backtests *BacktestHandler, parallelism int) *SweepHandler {
	if parallelism < 1 {
		parallelism = DefaultSweepParallelism
	}
	return &SweepHandler{backtests: backtests, parallelism: parallelism}
}

// Run simulates every config over store. Outcomes keep the order of configs.
func (h *SweepHandler) Run(ctx context.Context, store *backtest.CandleStore, symbols []string, start, end time.Time, configs []backtest.SimulationConfig) []*BacktestOutcome {
	outcomes := make([]*BacktestOutcome, len(configs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.parallelism)
	for i, cfg := range configs {
		g.Go(func() error {
			outcomes[i] = h.backtests.simulate(gctx, store, BacktestRequest{
				Config:  cfg,
				Symbols: symbols,
				Start:   start,
				End:     end,
			})
			if err := outcomes[i].Err; err != nil {
				log.Error().Err(err).Int("leverage", cfg.Leverage).Msg("Sweep run failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
