package analysis

import (
	"math"

	"PerpTradeBot/internal/models"
)

const (
	PatternHigherLows       = "HigherLows"
	PatternLowerHighs       = "LowerHighs"
	PatternBullishEngulfing = "BullishEngulfing"
	PatternBearishEngulfing = "BearishEngulfing"
	PatternBullishPinbar    = "BullishPinbar"
	PatternBearishPinbar    = "BearishPinbar"
)

// PatternResult describes the candlestick pattern ending at the latest candle
type PatternResult struct {
	Type     string
	Signal   int     // 1 bullish, -1 bearish
	Strength float64 // 0-1
}

type PatternAnalyzer struct {
	minHeight float64 // minimum body or range as a fraction of price
}

func NewPatternAnalyzer() *PatternAnalyzer {
	return &PatternAnalyzer{
		minHeight: 0.001,
	}
}

func (a *PatternAnalyzer) Analyze(candles []models.Candle) *PatternResult {
	if len(candles) < 3 {
		return nil
	}

	c2 := candles[len(candles)-3]
	c1 := candles[len(candles)-2]
	c0 := candles[len(candles)-1]

	if pattern := a.checkThreeBar(c2, c1, c0); pattern != nil {
		return pattern
	}

	if pattern := a.checkEngulfing(c1, c0); pattern != nil {
		return pattern
	}

	if pattern := a.checkPinbar(c0); pattern != nil {
		return pattern
	}

	return nil
}

func (a *PatternAnalyzer) checkThreeBar(c2, c1, c0 models.Candle) *PatternResult {
	if c0.Low > c1.Low && c1.Low > c2.Low {
		strength := (c0.Low - c2.Low) / c2.Low
		return &PatternResult{
			Type:     PatternHigherLows,
			Signal:   1,
			Strength: math.Min(strength*10, 1.0),
		}
	}

	if c0.High < c1.High && c1.High < c2.High {
		strength := (c2.High - c0.High) / c2.High
		return &PatternResult{
			Type:     PatternLowerHighs,
			Signal:   -1,
			Strength: math.Min(strength*10, 1.0),
		}
	}

	return nil
}

func (a *PatternAnalyzer) checkEngulfing(prev, curr models.Candle) *PatternResult {
	prevSize := math.Abs(prev.Close - prev.Open)
	currSize := math.Abs(curr.Close - curr.Open)

	if currSize < a.minHeight*curr.Close {
		return nil
	}

	if curr.Open < prev.Close && curr.Close > prev.Open {
		return &PatternResult{
			Type:     PatternBullishEngulfing,
			Signal:   1,
			Strength: engulfStrength(currSize, prevSize),
		}
	}

	if curr.Open > prev.Close && curr.Close < prev.Open {
		return &PatternResult{
			Type:     PatternBearishEngulfing,
			Signal:   -1,
			Strength: engulfStrength(currSize, prevSize),
		}
	}

	return nil
}

func (a *PatternAnalyzer) checkPinbar(candle models.Candle) *PatternResult {
	bodySize := math.Abs(candle.Close - candle.Open)
	upperWick := candle.High - math.Max(candle.Open, candle.Close)
	lowerWick := math.Min(candle.Open, candle.Close) - candle.Low
	totalSize := candle.High - candle.Low

	if totalSize < a.minHeight*candle.Close {
		return nil
	}

	if lowerWick > (totalSize*0.6) && bodySize < (totalSize*0.3) {
		return &PatternResult{
			Type:     PatternBullishPinbar,
			Signal:   1,
			Strength: lowerWick / totalSize,
		}
	}

	if upperWick > (totalSize*0.6) && bodySize < (totalSize*0.3) {
		return &PatternResult{
			Type:     PatternBearishPinbar,
			Signal:   -1,
			Strength: upperWick / totalSize,
		}
	}

	return nil
}

func engulfStrength(currSize, prevSize float64) float64 {
	if prevSize == 0 {
		return 1.0
	}
	return math.Min(currSize/prevSize, 1.0)
}
