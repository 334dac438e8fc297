package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"PerpTradeBot/internal/models"
	"PerpTradeBot/internal/operations/backtest"
	"PerpTradeBot/internal/operations/report"
)

type RunStore interface {
	Create(ctx context.Context, run *models.BacktestRun) error
}

type TradeStore interface {
	CreateBatch(ctx context.Context, records []models.TradeRecord) error
}

type EquityStore interface {
	CreateBatch(ctx context.Context, points []models.EquityPoint) error
}

// RunRecorder persists finished runs. A zero RunRecorder records nothing.
type RunRecorder struct {
	Runs   RunStore
	Trades TradeStore
	Equity EquityStore
}

func (r RunRecorder) enabled() bool {
	return r.Runs != nil
}

// Record stores the run row, its fills and its equity curve
func (r RunRecorder) Record(ctx context.Context, runID string, symbols []string, start, end time.Time, cfg backtest.SimulationConfig, results *backtest.BacktestResults) error {
	if !r.enabled() {
		return nil
	}

	if err := r.Runs.Create(ctx, newRunRow(runID, symbols, start, end, cfg, results)); err != nil {
		return fmt.Errorf("save run %s: %w", runID, err)
	}

	if r.Trades != nil && len(results.Trades) > 0 {
		records := make([]models.TradeRecord, len(results.Trades))
		for i, t := range results.Trades {
			records[i] = models.TradeRecord{
				RunID:       runID,
				Sequence:    i,
				Symbol:      t.Symbol,
				Action:      t.Action,
				EntryPrice:  report.RoundAmount(t.EntryPrice),
				ExitPrice:   report.RoundAmount(t.ExitPrice),
				Units:       t.Units,
				PnL:         report.RoundAmount(t.PnL),
				Fees:        report.RoundAmount(t.Fees),
				Reason:      t.Reason,
				EntryTime:   t.Timestamp,
				ExitTime:    t.ExitTimestamp,
				IsPartial:   t.IsPartial,
				TargetIndex: int(t.TargetIndex),
			}
		}
		if err := r.Trades.CreateBatch(ctx, records); err != nil {
			return fmt.Errorf("save trades of %s: %w", runID, err)
		}
	}

	if r.Equity != nil && len(results.EquityCurve) > 0 {
		points := make([]models.EquityPoint, len(results.EquityCurve))
		for i, p := range results.EquityCurve {
			points[i] = models.EquityPoint{RunID: runID, Timestamp: p.Timestamp, Balance: report.RoundAmount(p.Balance)}
		}
		if err := r.Equity.CreateBatch(ctx, points); err != nil {
			return fmt.Errorf("save equity of %s: %w", runID, err)
		}
	}
	return nil
}

func newRunRow(runID string, symbols []string, start, end time.Time, cfg backtest.SimulationConfig, results *backtest.BacktestResults) *models.BacktestRun {
	row := &models.BacktestRun{
		RunID:          runID,
		Strategy:       results.Strategy,
		Mode:           string(results.Mode),
		Status:         models.BacktestRunStatusEmpty,
		Symbols:        strings.Join(symbols, ","),
		Leverage:       cfg.Leverage,
		InitialBalance: report.RoundAmount(results.InitialBalance),
		FinalBalance:   report.RoundAmount(results.FinalBalance),
		MaxDrawdown:    results.MaxDrawdown,
		StartTime:      start.UnixMilli(),
		EndTime:        end.UnixMilli(),
	}
	if rep := report.Round(results.Report); rep != nil {
		row.Status = models.BacktestRunStatusCompleted
		row.TotalReturn = rep.Summary.TotalReturn
		row.TotalTrades = rep.Performance.TotalTrades
		row.WinRate = rep.Performance.WinRate
		row.ProfitFactor = rep.Performance.ProfitFactor
		row.SharpeRatio = rep.Performance.SharpeRatio
	}
	return row
}
