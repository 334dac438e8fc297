package indicators

// StochasticService computes the stochastic oscillator %K and its %D average
type StochasticService struct{}

type StochasticResult struct {
	K []float64
	D []float64
}

func NewStochasticService() *StochasticService {
	return &StochasticService{}
}

func (s *StochasticService) Calculate(highs, lows, closes []float64, kPeriod, dPeriod int) *StochasticResult {
	n := len(closes)
	if kPeriod <= 0 || dPeriod <= 0 || n < kPeriod+dPeriod-1 || len(highs) != n || len(lows) != n {
		return nil
	}

	k := make([]float64, n)
	for i := kPeriod - 1; i < n; i++ {
		highest, lowest := highs[i], lows[i]
		for j := i - kPeriod + 1; j <= i; j++ {
			if highs[j] > highest {
				highest = highs[j]
			}
			if lows[j] < lowest {
				lowest = lows[j]
			}
		}
		if highest == lowest {
			k[i] = 50
			continue
		}
		k[i] = 100 * (closes[i] - lowest) / (highest - lowest)
	}

	d := make([]float64, n)
	for i := kPeriod + dPeriod - 2; i < n; i++ {
		sum := 0.0
		for j := i - dPeriod + 1; j <= i; j++ {
			sum += k[j]
		}
		d[i] = sum / float64(dPeriod)
	}

	return &StochasticResult{K: k, D: d}
}
