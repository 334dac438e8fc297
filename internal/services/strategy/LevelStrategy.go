package strategy

import (
	"PerpTradeBot/internal/models"
	"PerpTradeBot/internal/services/analysis"
)

// LevelStrategy fades moves outside the Bollinger bands and takes profit at
// the VWAP, the middle band and the opposite band.
type LevelStrategy struct {
	bandEdge float64 // percent-B distance from the band that counts as touching
}

var _ Strategy = (*LevelStrategy)(nil)

func NewLevelStrategy() *LevelStrategy {
	return &LevelStrategy{bandEdge: 0.05}
}

func (s *LevelStrategy) Name() string {
	return StrategyLevel
}

func (s *LevelStrategy) AnalyzeTrade(fee float64, snap *analysis.MarketSnapshot, investmentUSD float64, rsiAverage float64, cfg Config) (*Decision, error) {
	if snap == nil || snap.Indicators == nil || investmentUSD <= 0 {
		return nil, nil
	}
	ind := snap.Indicators
	if ind.ATR <= 0 || ind.BBMiddle <= 0 {
		return nil, nil
	}

	entry := snap.Price
	var long bool
	switch {
	case ind.BBPercentB <= s.bandEdge && ind.StochK <= cfg.StochOversold:
		long = true
	case ind.BBPercentB >= 1-s.bandEdge && ind.StochK >= cfg.StochOverbought:
		long = false
	default:
		return nil, nil
	}

	action := models.TradeActionShort
	targets := orderTargets(entry, false, ind.VWAP, ind.BBMiddle, ind.BBLower)
	stops := []float64{entry + ind.ATR*cfg.StopATRMultiplier, entry + ind.ATR*cfg.SecondStopATRMultiplier}
	if long {
		action = models.TradeActionLong
		targets = orderTargets(entry, true, ind.VWAP, ind.BBMiddle, ind.BBUpper)
		stops = []float64{entry - ind.ATR*cfg.StopATRMultiplier, entry - ind.ATR*cfg.SecondStopATRMultiplier}
	}

	if len(targets) == 0 || !coversFees(entry, targets[0], fee) {
		return nil, nil
	}

	return &Decision{
		Action:      action,
		Entry:       entry,
		Stop:        stops[0],
		Target:      targets[len(targets)-1],
		Targets:     targets,
		StopLosses:  stops,
		TradeSystem: StrategyLevel,
		Confidence:  0.5,
		Reason:      "band reversion",
	}, nil
}
