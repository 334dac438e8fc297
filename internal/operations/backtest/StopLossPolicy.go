package backtest

import (
	"sort"
	"strings"

	"PerpTradeBot/internal/models"
	"PerpTradeBot/internal/services/strategy"
)

// PriceTick is the price information one tick exposes for exit checks. With
// Intrabar set, stops and targets are checked against High and Low instead
// of Close.
type PriceTick struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Intrabar  bool
}

func tickFromCandle(c models.Candle, intrabar bool) PriceTick {
	return PriceTick{
		Timestamp: c.Timestamp,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Intrabar:  intrabar,
	}
}

// adverse is the worst price of the tick for the position
func (t PriceTick) adverse(long bool) float64 {
	if !t.Intrabar {
		return t.Close
	}
	if long {
		return t.Low
	}
	return t.High
}

// favourable is the best price of the tick for the position
func (t PriceTick) favourable(long bool) float64 {
	if !t.Intrabar {
		return t.Close
	}
	if long {
		return t.High
	}
	return t.Low
}

type ExitKind int

const (
	ExitNone ExitKind = iota
	ExitStopLoss
	ExitMinProfit
	ExitTargets
	ExitTakeProfit
)

func (k ExitKind) String() string {
	switch k {
	case ExitStopLoss:
		return "stop_loss"
	case ExitMinProfit:
		return "min_profit"
	case ExitTargets:
		return "targets"
	case ExitTakeProfit:
		return "take_profit"
	}
	return "none"
}

// ExitDecision is what a policy wants done with a position this tick. For
// ExitTargets, Targets lists the target indexes to fill in order and
// CloseAll is set once every target will have been executed. For the other
// kinds the whole position closes at Price.
type ExitDecision struct {
	Kind     ExitKind
	Price    float64
	Reason   string
	Targets  []int
	CloseAll bool
}

// StopLossPolicy decides exits for open positions. Policies are stateless
// and may only read the position.
type StopLossPolicy interface {
	Name() string
	Evaluate(pos *Position, tick PriceTick) *ExitDecision
}

// NewStopLossPolicy selects the exit policy for a strategy. Unknown names
// get the plain LEVEL behaviour.
func NewStopLossPolicy(strategyName string, config SimulationConfig) StopLossPolicy {
	base := exitRules{config: config}
	switch strings.ToUpper(strategyName) {
	case strategy.StrategyDefault, "":
		return &DefaultStopLoss{exitRules: base}
	case strategy.StrategyProMax:
		return &ProMaxStopLoss{exitRules: base}
	}
	return &LevelStopLoss{exitRules: base}
}

// exitRules holds the checks every policy is built from
type exitRules struct {
	config SimulationConfig
}

// activeStops merges the decision stops, honoured only with EnableStopLoss,
// and the trailing stop, honoured only with EnableTrailingStop. The result
// is a new slice ordered nearest first.
func (r exitRules) activeStops(pos *Position, decision []float64) []float64 {
	var stops []float64
	if r.config.EnableStopLoss {
		stops = append(stops, decision...)
	}
	if r.config.EnableTrailingStop && pos.TrailingStop > 0 {
		stops = append(stops, pos.TrailingStop)
	}
	if pos.IsLong() {
		sort.Sort(sort.Reverse(sort.Float64Slice(stops)))
	} else {
		sort.Float64s(stops)
	}
	return stops
}

// checkStops closes on the first breached level. Intrabar fills happen at
// the level, or at the open when the tick gapped through it.
func (r exitRules) checkStops(pos *Position, tick PriceTick, decision []float64) *ExitDecision {
	stops := r.activeStops(pos, decision)
	long := pos.IsLong()
	price := tick.adverse(long)
	for _, stop := range stops {
		if stop <= 0 {
			continue
		}
		breached := (long && price <= stop) || (!long && price >= stop)
		if !breached {
			continue
		}
		fill := tick.Close
		if tick.Intrabar {
			fill = stop
			if (long && tick.Open <= stop) || (!long && tick.Open >= stop) {
				fill = tick.Open
			}
		}
		return &ExitDecision{Kind: ExitStopLoss, Price: fill, Reason: ReasonStopLoss}
	}
	return nil
}

// checkMinProfit closes once the remaining units are net positive after fees
// and above MinProfitPercentage of their entry value.
func (r exitRules) checkMinProfit(pos *Position, tick PriceTick) *ExitDecision {
	if pos.RemainingUnits <= 0 {
		return nil
	}
	_, _, net := CalculateFill(pos.Action, pos.EntryPrice, tick.Close, pos.RemainingUnits, r.config.Fee)
	threshold := pos.EntryPrice * pos.RemainingUnits * r.config.MinProfitPercentage / 100
	if net > 0 && net >= threshold {
		return &ExitDecision{Kind: ExitMinProfit, Price: tick.Close, Reason: ReasonMinProfit}
	}
	return nil
}

// checkTargets collects every unexecuted target the tick crossed.
func (r exitRules) checkTargets(pos *Position, tick PriceTick) *ExitDecision {
	if !r.config.EnableTakeProfit || len(pos.Targets) == 0 {
		return nil
	}
	long := pos.IsLong()
	price := tick.favourable(long)

	var hit []int
	for idx, target := range pos.Targets {
		if pos.ExecutedTargets[idx] {
			continue
		}
		if (long && price >= target) || (!long && price <= target) {
			hit = append(hit, idx)
		}
	}
	if len(hit) == 0 {
		return nil
	}
	return &ExitDecision{
		Kind:     ExitTargets,
		Price:    pos.Targets[hit[len(hit)-1]],
		Reason:   ReasonTarget,
		Targets:  hit,
		CloseAll: len(pos.ExecutedTargets)+len(hit) >= len(pos.Targets),
	}
}

// checkTakeProfit is the single target path for positions without targets.
func (r exitRules) checkTakeProfit(pos *Position, tick PriceTick) *ExitDecision {
	if !r.config.EnableTakeProfit || len(pos.Targets) > 0 || pos.TakeProfit <= 0 {
		return nil
	}
	long := pos.IsLong()
	price := tick.favourable(long)
	if (long && price >= pos.TakeProfit) || (!long && price <= pos.TakeProfit) {
		return &ExitDecision{Kind: ExitTakeProfit, Price: pos.TakeProfit, Reason: ReasonTakeProfit}
	}
	return nil
}

func firstExit(checks ...func() *ExitDecision) *ExitDecision {
	for _, check := range checks {
		if d := check(); d != nil {
			return d
		}
	}
	return nil
}

// DefaultStopLoss adds the min-profit exit between stops and targets.
type DefaultStopLoss struct {
	exitRules
}

func (p *DefaultStopLoss) Name() string {
	return strategy.StrategyDefault
}

func (p *DefaultStopLoss) Evaluate(pos *Position, tick PriceTick) *ExitDecision {
	return firstExit(
		func() *ExitDecision { return p.checkStops(pos, tick, pos.StopLosses) },
		func() *ExitDecision { return p.checkMinProfit(pos, tick) },
		func() *ExitDecision { return p.checkTargets(pos, tick) },
		func() *ExitDecision { return p.checkTakeProfit(pos, tick) },
	)
}

// ProMaxStopLoss moves every stop to breakeven once a target has filled.
type ProMaxStopLoss struct {
	exitRules
}

func (p *ProMaxStopLoss) Name() string {
	return strategy.StrategyProMax
}

func (p *ProMaxStopLoss) Evaluate(pos *Position, tick PriceTick) *ExitDecision {
	stops := pos.StopLosses
	if len(pos.ExecutedTargets) > 0 {
		stops = breakevenStops(pos)
	}
	return firstExit(
		func() *ExitDecision { return p.checkStops(pos, tick, stops) },
		func() *ExitDecision { return p.checkTargets(pos, tick) },
		func() *ExitDecision { return p.checkTakeProfit(pos, tick) },
	)
}

// breakevenStops tightens stops to the entry price without touching pos
func breakevenStops(pos *Position) []float64 {
	if len(pos.StopLosses) == 0 {
		return []float64{pos.EntryPrice}
	}
	stops := make([]float64, len(pos.StopLosses))
	for i, s := range pos.StopLosses {
		switch {
		case pos.IsLong() && s < pos.EntryPrice:
			s = pos.EntryPrice
		case !pos.IsLong() && s > pos.EntryPrice:
			s = pos.EntryPrice
		}
		stops[i] = s
	}
	return stops
}

// LevelStopLoss checks stops then targets
type LevelStopLoss struct {
	exitRules
}

func (p *LevelStopLoss) Name() string {
	return strategy.StrategyLevel
}

func (p *LevelStopLoss) Evaluate(pos *Position, tick PriceTick) *ExitDecision {
	return firstExit(
		func() *ExitDecision { return p.checkStops(pos, tick, pos.StopLosses) },
		func() *ExitDecision { return p.checkTargets(pos, tick) },
		func() *ExitDecision { return p.checkTakeProfit(pos, tick) },
	)
}
