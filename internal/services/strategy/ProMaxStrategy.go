package strategy

import (
	"math"

	"PerpTradeBot/internal/models"
	"PerpTradeBot/internal/services/analysis"
)

// ProMaxStrategy follows strong trends confirmed by ADX and refuses to chase
// when the whole market is stretched, using the average RSI across symbols.
type ProMaxStrategy struct{}

var _ Strategy = (*ProMaxStrategy)(nil)

func NewProMaxStrategy() *ProMaxStrategy {
	return &ProMaxStrategy{}
}

func (s *ProMaxStrategy) Name() string {
	return StrategyProMax
}

func (s *ProMaxStrategy) AnalyzeTrade(fee float64, snap *analysis.MarketSnapshot, investmentUSD float64, rsiAverage float64, cfg Config) (*Decision, error) {
	if snap == nil || snap.Indicators == nil || investmentUSD <= 0 {
		return nil, nil
	}
	ind := snap.Indicators
	if ind.ADX < cfg.ADXMin || ind.ATR <= 0 {
		return nil, nil
	}

	var action string
	switch {
	case ind.PlusDI > ind.MinusDI && ind.EMAFast > ind.EMASlow &&
		ind.RSI < cfg.RSILongMax && rsiAverage < cfg.MarketRSIOverbought:
		action = models.TradeActionLong
	case ind.MinusDI > ind.PlusDI && ind.EMAFast < ind.EMASlow &&
		ind.RSI > cfg.RSIShortMin && rsiAverage > cfg.MarketRSIOversold:
		action = models.TradeActionShort
	default:
		return nil, nil
	}

	long := action == models.TradeActionLong
	entry := snap.Price
	targets := atrLadder(entry, ind.ATR*cfg.TargetATRMultiplier, cfg.TargetCount, long)
	if len(targets) == 0 || !coversFees(entry, targets[0], fee) {
		return nil, nil
	}

	// Nearest stop first
	stops := []float64{
		entry - ind.ATR*cfg.StopATRMultiplier,
		entry - ind.ATR*cfg.SecondStopATRMultiplier,
	}
	if !long {
		stops = []float64{
			entry + ind.ATR*cfg.StopATRMultiplier,
			entry + ind.ATR*cfg.SecondStopATRMultiplier,
		}
	}

	return &Decision{
		Action:      action,
		Entry:       entry,
		Stop:        stops[0],
		Target:      targets[len(targets)-1],
		Targets:     targets,
		StopLosses:  stops,
		TradeSystem: StrategyProMax,
		Confidence:  math.Min(ind.ADX/50, 1.0),
		Reason:      "trend confirmed by adx",
	}, nil
}
