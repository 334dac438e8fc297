package analysis

import (
	"math"

	"PerpTradeBot/internal/models"
)

type VolumeAnalyzer struct {
	window int
	decay  float64
}

func NewVolumeAnalyzer() *VolumeAnalyzer {
	return &VolumeAnalyzer{
		window: 12,
		decay:  1.1,
	}
}

func (a *VolumeAnalyzer) Analyze(candles []models.Candle) VolumeData {
	if len(candles) < 2 {
		return VolumeData{}
	}

	window := a.window
	if len(candles) < window {
		window = len(candles)
	}
	recent := candles[len(candles)-window:]
	current := recent[len(recent)-1]

	rising := 0.0
	for i := 1; i < len(recent); i++ {
		if recent[i].Volume > recent[i-1].Volume {
			rising++
		}
	}

	// Progressive volume weighting, newest bars weigh most
	weightedVolume, totalWeight := 0.0, 0.0
	for i := range recent {
		weight := math.Pow(a.decay, float64(i))
		weightedVolume += recent[i].Volume * weight
		totalWeight += weight
	}

	data := VolumeData{
		TradeCount: current.Trades,
		TrendUp:    rising / float64(len(recent)-1),
	}
	if avg := weightedVolume / totalWeight; avg > 0 {
		data.VolumeRatio = current.Volume / avg
	}
	if current.Trades > 0 {
		data.AvgTradeSize = current.Volume / float64(current.Trades)
	}
	return data
}
