package strategy

import (
	"math"

	"PerpTradeBot/internal/services/analysis"
)

// LongStrategy scores long setups on a snapshot
type LongStrategy struct {
	volatilityCap float64
}

// signal is one direction's verdict on a snapshot
type signal struct {
	valid      bool
	confidence float64
	reason     string
}

func NewLongStrategy() *LongStrategy {
	return &LongStrategy{volatilityCap: 0.02}
}

func (s *LongStrategy) Evaluate(snap *analysis.MarketSnapshot, cfg Config) signal {
	ind := snap.Indicators
	if ind == nil {
		return signal{reason: "no indicators"}
	}

	if ind.RSI <= cfg.RSILongMin || ind.RSI >= cfg.RSILongMax {
		return signal{reason: "rsi out of long range"}
	}
	if ind.EMAFast <= ind.EMASlow {
		return signal{reason: "ema not aligned"}
	}
	if ind.MACD <= ind.MACDSignal {
		return signal{reason: "macd below signal"}
	}
	if snap.Volume.VolumeRatio < cfg.MinVolumeRatio {
		return signal{reason: "volume too low"}
	}

	confidence := 0.3
	if snap.Volume.VolumeRatio > 1.0 {
		confidence += 0.1
	}
	if snap.Momentum.Signal > 0 {
		confidence += 0.1
	}
	if ind.RSI > 45 && ind.RSI < 60 {
		confidence += 0.1
	}
	if ind.MACDHistogram > 0 {
		confidence += 0.1
	}
	if ind.EMACross != nil && ind.EMACross.Crossed && ind.EMACross.Direction > 0 {
		confidence += 0.1
	}
	if snap.Pattern != nil && snap.Pattern.Signal > 0 {
		confidence += 0.1 * snap.Pattern.Strength
	}

	// Reduce confidence in high volatility
	if snap.Momentum.Volatility > s.volatilityCap {
		confidence *= 0.9
	}

	return signal{valid: true, confidence: math.Min(confidence, 1.0), reason: "long setup"}
}
