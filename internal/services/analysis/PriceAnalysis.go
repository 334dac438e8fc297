package analysis

import (
	"math"

	"PerpTradeBot/internal/models"
)

type PriceAnalyzer struct {
	window    int
	decay     float64
	threshold float64
}

func NewPriceAnalyzer() *PriceAnalyzer {
	return &PriceAnalyzer{
		window:    12,
		decay:     0.9,
		threshold: 0.001, // Small threshold to avoid noise
	}
}

func (a *PriceAnalyzer) Analyze(candles []models.Candle) PriceData {
	if len(candles) < 3 {
		return PriceData{}
	}

	window := a.window
	if len(candles) < window {
		window = len(candles)
	}
	recent := candles[len(candles)-window:]

	returns := make([]float64, 0, len(recent)-1)
	for i := 1; i < len(recent); i++ {
		returns = append(returns, (recent[i].Close-recent[i-1].Close)/recent[i-1].Close)
	}

	// Newest return carries weight 1, older ones decay
	momentum, weight, totalWeight := 0.0, 1.0, 0.0
	for i := len(returns) - 1; i >= 0; i-- {
		momentum += returns[i] * weight
		totalWeight += weight
		weight *= a.decay
	}
	momentum /= totalWeight

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}

	signal := 0
	if momentum > a.threshold {
		signal = 1
	} else if momentum < -a.threshold {
		signal = -1
	}

	return PriceData{
		Momentum:   momentum,
		Volatility: math.Sqrt(variance / float64(len(returns))),
		Signal:     signal,
	}
}
