package backtest

import (
	"fmt"
	"math"
	"sort"

	"PerpTradeBot/internal/models"
	"PerpTradeBot/internal/services/strategy"
)

// ExecutionSimulator turns decisions and exit prices into positions and
// fills. It never touches the account; callers apply the records it returns.
type ExecutionSimulator struct {
	config SimulationConfig
}

func NewExecutionSimulator(config SimulationConfig) *ExecutionSimulator {
	return &ExecutionSimulator{config: config}
}

// EntryPrice applies slippage against the trader on entry
func (x *ExecutionSimulator) EntryPrice(action string, price float64) float64 {
	if action == models.TradeActionLong {
		return price * (1 + x.config.Slippage)
	}
	return price * (1 - x.config.Slippage)
}

// ExitPrice applies slippage against the trader on exit
func (x *ExecutionSimulator) ExitPrice(action string, price float64) float64 {
	if action == models.TradeActionLong {
		return price * (1 - x.config.Slippage)
	}
	return price * (1 + x.config.Slippage)
}

// SizePosition returns the margin committed and the units bought at entry.
// Notional is investment times leverage, capped at MaxNotional.
func (x *ExecutionSimulator) SizePosition(balance, entry float64) (investment, units float64) {
	investment = x.config.InvestmentAmount(balance)
	if investment <= 0 || entry <= 0 {
		return 0, 0
	}
	notional := investment * float64(x.config.Leverage)
	if notional > x.config.MaxNotional {
		notional = x.config.MaxNotional
	}
	return investment, notional / entry
}

// CalculateFill is the fee model shared by partial and full fills.
func CalculateFill(action string, entry, exit, units, fee float64) (gross, fees, net float64) {
	entryValue := entry * units
	exitValue := exit * units
	if action == models.TradeActionLong {
		gross = exitValue - entryValue
	} else {
		gross = entryValue - exitValue
	}
	fees = entryValue*fee + exitValue*fee
	return gross, fees, gross - fees
}

// OpenPosition validates d and builds a position sized from balance. A
// rejected decision returns an error wrapping ErrInvalidDecision.
func (x *ExecutionSimulator) OpenPosition(symbol string, d *strategy.Decision, ts int64, balance float64) (*Position, error) {
	targets, stops, takeProfit, err := validateDecision(d)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}

	entry := x.EntryPrice(d.Action, d.Entry)
	investment, units := x.SizePosition(balance, entry)
	if units <= 0 || math.IsInf(units, 0) || math.IsNaN(units) {
		return nil, fmt.Errorf("%w: %s cannot size position with balance %.2f", ErrInvalidDecision, symbol, balance)
	}

	perTarget := units
	if len(targets) > 0 {
		perTarget = units / float64(len(targets))
	}

	return &Position{
		Symbol:          symbol,
		Action:          d.Action,
		EntryPrice:      entry,
		TotalUnits:      units,
		RemainingUnits:  units,
		UnitsPerTarget:  perTarget,
		Targets:         targets,
		StopLosses:      stops,
		TakeProfit:      takeProfit,
		ExecutedTargets: make(map[int]bool, len(targets)),
		OpenTimestamp:   ts,
		CurrentPrice:    d.Entry,
		LastTimestamp:   ts,
		TradeSystem:     d.TradeSystem,
		Investment:      investment,
	}, nil
}

// ExecuteTarget closes UnitsPerTarget at target idx and marks it executed.
func (x *ExecutionSimulator) ExecuteTarget(pos *Position, idx int, ts int64) TradeRecord {
	units := math.Min(pos.UnitsPerTarget, pos.RemainingUnits)
	rec := x.fill(pos, pos.Targets[idx], units, ts, ReasonTarget)
	rec.IsPartial = true
	rec.TargetIndex = TargetIndex(idx)
	pos.markExecuted(idx)
	return rec
}

// ClosePosition fills all remaining units at rawPrice.
func (x *ExecutionSimulator) ClosePosition(pos *Position, rawPrice float64, ts int64, reason string) TradeRecord {
	rec := x.fill(pos, rawPrice, pos.RemainingUnits, ts, reason)
	pos.RemainingUnits = 0
	return rec
}

func (x *ExecutionSimulator) fill(pos *Position, rawPrice, units float64, ts int64, reason string) TradeRecord {
	exit := x.ExitPrice(pos.Action, rawPrice)
	_, fees, net := CalculateFill(pos.Action, pos.EntryPrice, exit, units, x.config.Fee)
	pos.RealizedPnL += net
	pos.CurrentPrice = rawPrice
	pos.LastTimestamp = ts

	return TradeRecord{
		Symbol:        pos.Symbol,
		Action:        pos.Action,
		EntryPrice:    pos.EntryPrice,
		ExitPrice:     exit,
		Units:         units,
		PnL:           net,
		Fees:          fees,
		Reason:        reason,
		Timestamp:     pos.OpenTimestamp,
		ExitTimestamp: ts,
		TargetIndex:   FinalTarget,
		TradeSystem:   pos.TradeSystem,
	}
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// validateDecision returns targets in reach order, stops nearest first and
// the single take profit used when there are no targets.
func validateDecision(d *strategy.Decision) (targets, stops []float64, takeProfit float64, err error) {
	if d == nil {
		return nil, nil, 0, fmt.Errorf("%w: nil decision", ErrInvalidDecision)
	}
	long := d.Action == models.TradeActionLong
	if !long && d.Action != models.TradeActionShort {
		return nil, nil, 0, fmt.Errorf("%w: unknown action %q", ErrInvalidDecision, d.Action)
	}
	if !finitePositive(d.Entry) {
		return nil, nil, 0, fmt.Errorf("%w: entry %v", ErrInvalidDecision, d.Entry)
	}

	profitSide := func(level float64) bool {
		if long {
			return level > d.Entry
		}
		return level < d.Entry
	}

	for _, t := range d.Targets {
		if !finitePositive(t) || !profitSide(t) {
			return nil, nil, 0, fmt.Errorf("%w: target %v for %s entry %v", ErrInvalidDecision, t, d.Action, d.Entry)
		}
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		if !finitePositive(d.Target) || !profitSide(d.Target) {
			return nil, nil, 0, fmt.Errorf("%w: take profit %v for %s entry %v", ErrInvalidDecision, d.Target, d.Action, d.Entry)
		}
		takeProfit = d.Target
	}

	levels := d.StopLosses
	if len(levels) == 0 {
		levels = []float64{d.Stop}
	}
	for _, s := range levels {
		if !finitePositive(s) || profitSide(s) || s == d.Entry {
			return nil, nil, 0, fmt.Errorf("%w: stop %v for %s entry %v", ErrInvalidDecision, s, d.Action, d.Entry)
		}
		stops = append(stops, s)
	}

	if long {
		sort.Float64s(targets)
		sort.Sort(sort.Reverse(sort.Float64Slice(stops)))
	} else {
		sort.Sort(sort.Reverse(sort.Float64Slice(targets)))
		sort.Float64s(stops)
	}
	return targets, stops, takeProfit, nil
}
