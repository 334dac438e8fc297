package indicators

import "math"

type BBandsService struct{}

type BBandsResult struct {
	Upper    []float64
	Middle   []float64
	Lower    []float64
	Width    []float64 // (upper-lower)/middle
	PercentB []float64 // position of price inside the bands, 0 at lower and 1 at upper
}

func NewBBandsService() *BBandsService {
	return &BBandsService{}
}

func (s *BBandsService) Calculate(prices []float64, period int, deviations float64) *BBandsResult {
	if !s.ValidatePeriod(prices, period) {
		return nil
	}

	upper := make([]float64, len(prices))
	middle := make([]float64, len(prices))
	lower := make([]float64, len(prices))
	width := make([]float64, len(prices))
	percentB := make([]float64, len(prices))

	for i := period - 1; i < len(prices); i++ {
		sma, stdDev := meanStdDev(prices[i-period+1 : i+1])

		middle[i] = sma
		upper[i] = sma + deviations*stdDev
		lower[i] = sma - deviations*stdDev
		if sma != 0 {
			width[i] = (upper[i] - lower[i]) / sma
		}
		if span := upper[i] - lower[i]; span != 0 {
			percentB[i] = (prices[i] - lower[i]) / span
		} else {
			percentB[i] = 0.5
		}
	}

	return &BBandsResult{
		Upper:    upper,
		Middle:   middle,
		Lower:    lower,
		Width:    width,
		PercentB: percentB,
	}
}

// ValidatePeriod checks if we have enough data
func (s *BBandsService) ValidatePeriod(prices []float64, period int) bool {
	return period > 0 && len(prices) >= period
}

// meanStdDev returns the population mean and standard deviation
func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	squareSum := 0.0
	for _, v := range values {
		diff := v - mean
		squareSum += diff * diff
	}

	return mean, math.Sqrt(squareSum / float64(len(values)))
}
