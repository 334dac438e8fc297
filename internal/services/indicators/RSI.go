package indicators

import "math"

type RSIService struct {
	ema *EMAService
}

type RSIResult struct {
	RSI        []float64 // Main RSI line
	Signal     []float64 // Smoothed RSI line
	Histogram  []float64 // RSI minus signal
	Divergence []float64 // 1 bullish, -1 bearish, 0 none
}

// RSIPoint summarises the latest point of an RSIResult
type RSIPoint struct {
	Value        float64
	Signal       float64
	Histogram    float64
	Trend        int     // 1 (bullish), -1 (bearish), 0 (neutral)
	Strength     float64 // 0-1 based on distance from neutral (50)
	IsOverbought bool
	IsOversold   bool
	CrossAbove   bool // RSI crossed above signal
	CrossBelow   bool // RSI crossed below signal
}

const (
	RSIOverbought = 70.0
	RSIOversold   = 30.0
)

func NewRSIService() *RSIService {
	return &RSIService{
		ema: NewEMAService(),
	}
}

// Calculate computes RSI using EMA-smoothed gains and losses, plus an EMA
// signal line of the RSI itself. Returns nil when the series is too short.
func (s *RSIService) Calculate(prices []float64, period int, smoothPeriod int) *RSIResult {
	if period <= 0 || smoothPeriod <= 0 || len(prices) < period+smoothPeriod {
		return nil
	}

	gains := make([]float64, len(prices))
	losses := make([]float64, len(prices))
	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	// Gains start at index 1, so the EMAs run over the shifted series.
	avgGain := s.ema.Calculate(gains[1:], period)
	avgLoss := s.ema.Calculate(losses[1:], period)

	rsi := make([]float64, len(prices))
	for i := period; i < len(prices); i++ {
		g, l := avgGain[i-1], avgLoss[i-1]
		switch {
		case l == 0 && g == 0:
			rsi[i] = 50
		case l == 0:
			rsi[i] = 100
		default:
			rsi[i] = 100 - (100 / (1 + g/l))
		}
	}

	signal := make([]float64, len(prices))
	if tail := s.ema.Calculate(rsi[period:], smoothPeriod); tail != nil {
		copy(signal[period:], tail)
	}

	histogram := make([]float64, len(prices))
	for i := period + smoothPeriod - 1; i < len(prices); i++ {
		histogram[i] = rsi[i] - signal[i]
	}

	return &RSIResult{
		RSI:        rsi,
		Signal:     signal,
		Histogram:  histogram,
		Divergence: s.calculateDivergence(prices, rsi),
	}
}

// Latest returns the point view of the last value in the result.
func (r *RSIResult) Latest() *RSIPoint {
	n := len(r.RSI)
	if n < 2 {
		return nil
	}

	value, signal := r.RSI[n-1], r.Signal[n-1]
	prevValue, prevSignal := r.RSI[n-2], r.Signal[n-2]
	histogram := value - signal

	return &RSIPoint{
		Value:        value,
		Signal:       signal,
		Histogram:    histogram,
		Trend:        determineTrend(value, signal, histogram),
		Strength:     math.Abs(value-50) / 50,
		IsOverbought: value >= RSIOverbought,
		IsOversold:   value <= RSIOversold,
		CrossAbove:   prevValue <= prevSignal && value > signal,
		CrossBelow:   prevValue >= prevSignal && value < signal,
	}
}

func (s *RSIService) calculateDivergence(prices, rsi []float64) []float64 {
	divergence := make([]float64, len(prices))
	if len(prices) < 5 {
		return divergence
	}

	// Compare price and RSI movements over the last 5 candles
	for i := 4; i < len(prices); i++ {
		priceDelta := prices[i] - prices[i-4]
		rsiDelta := rsi[i] - rsi[i-4]

		if priceDelta > 0 && rsiDelta < 0 {
			divergence[i] = -1
		} else if priceDelta < 0 && rsiDelta > 0 {
			divergence[i] = 1
		}
	}

	return divergence
}

func determineTrend(rsi, signal, histogram float64) int {
	if rsi > signal && histogram > 0 {
		return 1
	} else if rsi < signal && histogram < 0 {
		return -1
	}
	return 0
}
