package strategy

import (
	"PerpTradeBot/internal/models"
	"PerpTradeBot/internal/services/analysis"
)

// StrategyManager is the DEFAULT strategy: it scores both directions and
// trades the more confident one with an ATR target ladder.
type StrategyManager struct {
	long  *LongStrategy
	short *ShortStrategy
}

var _ Strategy = (*StrategyManager)(nil)

func NewStrategyManager() *StrategyManager {
	return &StrategyManager{
		long:  NewLongStrategy(),
		short: NewShortStrategy(),
	}
}

func (m *StrategyManager) Name() string {
	return StrategyDefault
}

func (m *StrategyManager) AnalyzeTrade(fee float64, snap *analysis.MarketSnapshot, investmentUSD float64, rsiAverage float64, cfg Config) (*Decision, error) {
	if snap == nil || snap.Indicators == nil || investmentUSD <= 0 {
		return nil, nil
	}

	longResult := m.long.Evaluate(snap, cfg)
	shortResult := m.short.Evaluate(snap, cfg)

	var chosen signal
	action := ""
	switch {
	case longResult.valid && shortResult.valid:
		// Higher confidence wins, long on ties
		if longResult.confidence >= shortResult.confidence {
			chosen, action = longResult, models.TradeActionLong
		} else {
			chosen, action = shortResult, models.TradeActionShort
		}
	case longResult.valid:
		chosen, action = longResult, models.TradeActionLong
	case shortResult.valid:
		chosen, action = shortResult, models.TradeActionShort
	default:
		return nil, nil
	}

	if chosen.confidence < cfg.MinConfidence {
		return nil, nil
	}

	atr := snap.Indicators.ATR
	if atr <= 0 {
		return nil, nil
	}

	entry := snap.Price
	long := action == models.TradeActionLong
	targets := atrLadder(entry, atr*cfg.TargetATRMultiplier, cfg.TargetCount, long)
	if len(targets) == 0 || !coversFees(entry, targets[0], fee) {
		return nil, nil
	}

	stop := entry + atr*cfg.StopATRMultiplier
	if long {
		stop = entry - atr*cfg.StopATRMultiplier
	}

	return &Decision{
		Action:      action,
		Entry:       entry,
		Stop:        stop,
		Target:      targets[len(targets)-1],
		Targets:     targets,
		StopLosses:  []float64{stop},
		TradeSystem: StrategyDefault,
		Confidence:  chosen.confidence,
		Reason:      chosen.reason,
	}, nil
}
