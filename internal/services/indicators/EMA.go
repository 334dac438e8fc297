package indicators

import "math"

// EMAService provides Exponential Moving Average calculations
type EMAService struct{}

// CrossSignal represents EMA crossover status
type CrossSignal struct {
	Crossed   bool
	Direction int // 1 (bullish), -1 (bearish)
	Strength  float64
}

func NewEMAService() *EMAService {
	return &EMAService{}
}

// Calculate computes the EMA for the entire series. Values before index
// period-1 are zero; the seed is the simple average of the first period values.
func (s *EMAService) Calculate(prices []float64, period int) []float64 {
	if !s.validateInputs(prices, period) {
		return nil
	}

	ema := make([]float64, len(prices))
	multiplier := s.getMultiplier(period)

	ema[period-1] = s.calculateInitialSMA(prices, period)
	for i := period; i < len(prices); i++ {
		ema[i] = s.calculatePoint(prices[i], ema[i-1], multiplier)
	}

	return ema
}

// CheckCrossover detects a crossover between the last two points of two EMA lines
func (s *EMAService) CheckCrossover(fastEMA, slowEMA []float64) *CrossSignal {
	if len(fastEMA) < 2 || len(slowEMA) < 2 {
		return &CrossSignal{}
	}

	currFast := fastEMA[len(fastEMA)-1]
	prevFast := fastEMA[len(fastEMA)-2]
	currSlow := slowEMA[len(slowEMA)-1]
	prevSlow := slowEMA[len(slowEMA)-2]

	bullishCross := prevFast <= prevSlow && currFast > currSlow
	bearishCross := prevFast >= prevSlow && currFast < currSlow
	if !bullishCross && !bearishCross || currSlow == 0 {
		return &CrossSignal{}
	}

	direction := 1
	if bearishCross {
		direction = -1
	}

	return &CrossSignal{
		Crossed:   true,
		Direction: direction,
		Strength:  math.Abs((currFast - currSlow) / currSlow),
	}
}

// Private helper methods

func (s *EMAService) validateInputs(prices []float64, period int) bool {
	return period > 0 && len(prices) >= period
}

func (s *EMAService) getMultiplier(period int) float64 {
	return 2.0 / float64(period+1)
}

func (s *EMAService) calculateInitialSMA(prices []float64, period int) float64 {
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	return sum / float64(period)
}

func (s *EMAService) calculatePoint(price, prevEMA, multiplier float64) float64 {
	return (price-prevEMA)*multiplier + prevEMA
}
