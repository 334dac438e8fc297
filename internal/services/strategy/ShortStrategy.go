package strategy

import (
	"math"

	"PerpTradeBot/internal/services/analysis"
)

// ShortStrategy scores short setups on a snapshot; conditions mirror LongStrategy
type ShortStrategy struct {
	volatilityCap float64
}

func NewShortStrategy() *ShortStrategy {
	return &ShortStrategy{volatilityCap: 0.02}
}

func (s *ShortStrategy) Evaluate(snap *analysis.MarketSnapshot, cfg Config) signal {
	ind := snap.Indicators
	if ind == nil {
		return signal{reason: "no indicators"}
	}

	if ind.RSI <= cfg.RSIShortMin || ind.RSI >= cfg.RSIShortMax {
		return signal{reason: "rsi out of short range"}
	}
	if ind.EMAFast >= ind.EMASlow {
		return signal{reason: "ema not aligned"}
	}
	if ind.MACD >= ind.MACDSignal {
		return signal{reason: "macd above signal"}
	}
	if snap.Volume.VolumeRatio < cfg.MinVolumeRatio {
		return signal{reason: "volume too low"}
	}

	confidence := 0.3
	if snap.Volume.VolumeRatio > 1.0 {
		confidence += 0.1
	}
	if snap.Momentum.Signal < 0 {
		confidence += 0.1
	}
	if ind.RSI > 40 && ind.RSI < 55 {
		confidence += 0.1
	}
	if ind.MACDHistogram < 0 {
		confidence += 0.1
	}
	if ind.EMACross != nil && ind.EMACross.Crossed && ind.EMACross.Direction < 0 {
		confidence += 0.1
	}
	if snap.Pattern != nil && snap.Pattern.Signal < 0 {
		confidence += 0.1 * snap.Pattern.Strength
	}

	if snap.Momentum.Volatility > s.volatilityCap {
		confidence *= 0.9
	}

	return signal{valid: true, confidence: math.Min(confidence, 1.0), reason: "short setup"}
}
