package analysis

import (
	"errors"
	"fmt"

	"PerpTradeBot/internal/models"
	"PerpTradeBot/internal/services/indicators"
)

var ErrInsufficientData = errors.New("insufficient data for snapshot")

// MarketSnapshot is everything a strategy sees about one symbol at one tick
type MarketSnapshot struct {
	Symbol     string
	Timestamp  int64
	Price      float64 // close of the latest candle
	Candle     models.Candle
	Indicators *indicators.IndicatorSet
	Volume     VolumeData
	Momentum   PriceData
	Pattern    *PatternResult
	Window     []models.Candle
}

// VolumeData contains volume-based metrics of the window
type VolumeData struct {
	VolumeRatio  float64 // Current/weighted average volume
	TradeCount   int64
	AvgTradeSize float64
	TrendUp      float64 // share of bars with rising volume, 0-1
}

// PriceData contains price action metrics
type PriceData struct {
	Momentum   float64 // decaying weighted rate of change
	Volatility float64 // stddev of returns over the recent window
	Signal     int     // 1 up, -1 down, 0 flat
}

type Analysis struct {
	volume  *VolumeAnalyzer
	price   *PriceAnalyzer
	pattern *PatternAnalyzer
}

func NewAnalysis() *Analysis {
	return &Analysis{
		volume:  NewVolumeAnalyzer(),
		price:   NewPriceAnalyzer(),
		pattern: NewPatternAnalyzer(),
	}
}

// BuildSnapshot computes the snapshot for the last candle of window. The
// window must be in ascending timestamp order and hold at least
// indicators.MinimumCandles candles.
func (a *Analysis) BuildSnapshot(symbol string, window []models.Candle) (*MarketSnapshot, error) {
	if len(window) < indicators.MinimumCandles {
		return nil, fmt.Errorf("%w: %s has %d candles", ErrInsufficientData, symbol, len(window))
	}

	set, err := indicators.Compute(window)
	if err != nil {
		return nil, fmt.Errorf("indicator calculation failed: %w", err)
	}

	current := window[len(window)-1]

	return &MarketSnapshot{
		Symbol:     symbol,
		Timestamp:  current.Timestamp,
		Price:      current.Close,
		Candle:     current,
		Indicators: set,
		Volume:     a.volume.Analyze(window),
		Momentum:   a.price.Analyze(window),
		Pattern:    a.pattern.Analyze(window),
		Window:     window,
	}, nil
}
